package control

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestNewStateStartsWithEmptySet(t *testing.T) {
	s := New(0, 0, nil)
	if s.ActiveFaults().Len() != 0 {
		t.Fatalf("fresh State has %d faults, want 0", s.ActiveFaults().Len())
	}
	if string(s.currentJSON) == "" {
		t.Fatal("fresh State has empty currentJSON")
	}
}

func TestOpenForReadSnapshotsCurrentDocument(t *testing.T) {
	s := New(0, 0, nil)
	id := s.Open(false, true)
	acc, ok := s.Accessor(id)
	if !ok {
		t.Fatal("accessor not found after Open")
	}
	if got, want := string(acc.Snapshot()), string(s.currentJSON); got != want {
		t.Fatalf("read-open snapshot = %q, want %q", got, want)
	}
}

func TestOpenForWriteTruncStartsEmpty(t *testing.T) {
	s := New(0, 0, nil)
	id := s.Open(true, false)
	acc, _ := s.Accessor(id)
	if len(acc.Snapshot()) != 0 {
		t.Fatalf("trunc-open accessor buffer = %q, want empty", acc.Snapshot())
	}
}

func TestWriteThenReleaseCommitsNewSet(t *testing.T) {
	s := New(0, 0, nil)
	id := s.Open(true, false)
	acc, _ := s.Accessor(id)

	doc := []byte(`{"faults":[{"type":"unreadable","prefix":"/","suffix":"","code":5}]}`)
	acc.Write(0, doc)

	if err := s.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if s.ActiveFaults().Len() != 1 {
		t.Fatalf("after commit, ActiveFaults().Len() = %d, want 1", s.ActiveFaults().Len())
	}
}

func TestReadOnlyReleaseNeverCommits(t *testing.T) {
	s := New(0, 0, nil)
	id := s.Open(false, true)
	acc, _ := s.Accessor(id)
	// A read-only accessor shouldn't normally be written to, but even if
	// the buffer were mutated, a read-only Release must not commit it.
	acc.Write(0, []byte(`{"faults":[{"type":"unreadable","prefix":"/","suffix":"","code":1}]}`))

	before := append([]byte(nil), s.currentJSON...)
	if err := s.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if string(s.currentJSON) != string(before) {
		t.Fatal("read-only release committed a change")
	}
}

func TestRejectedConfigurationPreservesOldSet(t *testing.T) {
	s := New(0, 0, nil)

	// Establish a known-good configuration first.
	goodID := s.Open(true, false)
	goodAcc, _ := s.Accessor(goodID)
	goodAcc.Write(0, []byte(`{"faults":[{"type":"unreadable","prefix":"/","suffix":"","code":1}]}`))
	if err := s.Release(goodID); err != nil {
		t.Fatalf("Release (good): %v", err)
	}
	before := append([]byte(nil), s.currentJSON...)
	beforeFaults := s.ActiveFaults()

	// Now attempt to commit garbage.
	badID := s.Open(true, false)
	badAcc, _ := s.Accessor(badID)
	badAcc.Write(0, []byte(`not json at all`))
	if err := s.Release(badID); err != nil {
		t.Fatalf("Release (bad): %v", err)
	}

	if string(s.currentJSON) != string(before) {
		t.Fatalf("currentJSON changed after rejected write: got %q, want %q", s.currentJSON, before)
	}
	if diff := pretty.Compare(beforeFaults, s.ActiveFaults()); diff != "" {
		t.Fatalf("active fault set changed after rejected write (-before +after):\n%s", diff)
	}
}

func TestIdempotentCommitSkipsReparse(t *testing.T) {
	s := New(0, 0, nil)

	id := s.Open(true, false)
	acc, _ := s.Accessor(id)
	acc.Write(0, []byte(`{"faults":[{"type":"unreadable","prefix":"/","suffix":"","code":1}]}`))
	if err := s.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	first := s.ActiveFaults()

	id2 := s.Open(false, false)
	acc2, _ := s.Accessor(id2)
	// acc2 starts as a snapshot of currentJSON: writing it back unchanged
	// and releasing must be a no-op, not a reparse that allocates a new
	// *fault.Set.
	if err := s.Release(id2); err != nil {
		t.Fatalf("Release (idempotent): %v", err)
	}
	if s.ActiveFaults() != first {
		t.Fatal("idempotent commit replaced the active fault set")
	}
	_ = acc2
}

func TestWriteBeyondCapacityTruncates(t *testing.T) {
	s := New(0, 8, nil)
	id := s.Open(true, false)
	acc, _ := s.Accessor(id)

	n := acc.Write(0, []byte(`{"faults":[{"type":"unreadable"}]}`))
	if n != 8 {
		t.Fatalf("Write returned %d, want capacity-truncated 8", n)
	}
	if len(acc.Snapshot()) != 8 {
		t.Fatalf("accessor buffer length = %d, want 8", len(acc.Snapshot()))
	}

	// Truncated document is no longer valid JSON, so release must be
	// safe-fail: it leaves the active set untouched rather than erroring.
	before := s.ActiveFaults()
	if err := s.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if s.ActiveFaults() != before {
		t.Fatal("truncated/invalid document was committed")
	}
}

func TestSizeReflectsCurrentDocument(t *testing.T) {
	s := New(0, 0, nil)
	if s.Size() != int64(len(s.currentJSON)) {
		t.Fatalf("Size() = %d, want %d", s.Size(), len(s.currentJSON))
	}
}

func TestReleaseUnknownIDIsNoop(t *testing.T) {
	s := New(0, 0, nil)
	if err := s.Release(9999); err != nil {
		t.Fatalf("Release on unknown id: %v", err)
	}
}
