package fault

import "testing"

// TestReadCorruptDecay verifies that a read_corrupt with count=2 corrupts
// exactly 2 matches with the configured mode, then the 3rd (and every
// subsequent) match behaves as DROP@1.0.
func TestReadCorruptDecay(t *testing.T) {
	k := &ReadCorrupt{
		matcher:  matcher{prefix: "/", suffix: "", op: OpRead},
		Mode:     ModeZero,
		Count:    2,
		Fraction: 0.5,
	}
	rng := NewUnseededRNG()
	buf := make([]byte, 1024)

	for i := 0; i < 2; i++ {
		for j := range buf {
			buf[j] = 'A'
		}
		eff := k.Apply(buf, rng)
		if eff.N != len(buf) {
			t.Fatalf("match %d: N = %d, want %d (ZERO mode always reports full transfer)", i, eff.N, len(buf))
		}
	}
	if k.Mode != ModeZero {
		t.Fatalf("mode changed to %v before count reached 0", k.Mode)
	}

	for j := range buf {
		buf[j] = 'A'
	}
	eff := k.Apply(buf, rng)
	if eff.N == len(buf) {
		// DROP@1.0 over a 1024-byte buffer returns a value in [0,1024),
		// so it never reports the full length.
		t.Fatalf("after count exhausted: N = %d, want a DROP short count below %d", eff.N, len(buf))
	}
	if k.Mode != ModeDrop || k.Fraction != 1.0 {
		t.Fatalf("after count exhausted: mode=%v fraction=%v, want DROP,1.0", k.Mode, k.Fraction)
	}
	if k.Count != 0 {
		t.Fatalf("count = %d, want 0 (negative counts never decay, but 0 stays 0)", k.Count)
	}
}

func TestCountNegativeNeverDecays(t *testing.T) {
	k := &ReadCorrupt{
		matcher:  matcher{prefix: "/", suffix: "", op: OpRead},
		Mode:     ModeZero,
		Count:    -1,
		Fraction: 1.0,
	}
	rng := NewUnseededRNG()
	buf := make([]byte, 16)

	for i := 0; i < 50; i++ {
		k.Apply(buf, rng)
		if k.Count != -1 {
			t.Fatalf("iteration %d: count = %d, want -1 forever", i, k.Count)
		}
		if k.Mode != ModeZero {
			t.Fatalf("iteration %d: mode = %v, want ModeZero forever", i, k.Mode)
		}
	}
}

func TestWriteCorruptNeverMutatesSource(t *testing.T) {
	k := &WriteCorrupt{
		matcher:  matcher{prefix: "/", suffix: "", op: OpWrite},
		Mode:     ModeRand,
		Count:    -1,
		Fraction: 1.0,
	}
	src := []byte("the quick brown fox")
	want := append([]byte(nil), src...)

	eff := k.Apply(src, NewUnseededRNG())

	for i := range src {
		if src[i] != want[i] {
			t.Fatalf("source buffer mutated at %d: got %q, want %q", i, src, want)
		}
	}
	if len(eff.Buf) != len(src) {
		t.Fatalf("replacement buffer length = %d, want %d", len(eff.Buf), len(src))
	}
}

func TestUnreadableNegatesCodeRegardlessOfSign(t *testing.T) {
	pos := &Unreadable{Code: 5}
	neg := &Unreadable{Code: -5}

	if got := pos.Apply(nil, nil).Errno; got != -5 {
		t.Errorf("positive code: errno = %d, want -5", got)
	}
	if got := neg.Apply(nil, nil).Errno; got != -5 {
		t.Errorf("negative code: errno = %d, want -5", got)
	}
}

func TestDelayFaultsCarryNoBufferEffect(t *testing.T) {
	k := &ReadDelay{DelayMS: 100, Fraction: 1.0}
	eff := k.Apply(nil, nil)
	if eff.DelayMS != 100 {
		t.Errorf("DelayMS = %d, want 100", eff.DelayMS)
	}
	if eff.Errno != 0 || eff.Buf != nil {
		t.Errorf("delay fault should carry no error/buffer effect, got %+v", eff)
	}
}
