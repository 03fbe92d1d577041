package fault

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestEmptyDocumentLaw(t *testing.T) {
	for _, text := range []string{`{}`, `{"faults":[]}`} {
		s, err := Parse([]byte(text))
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", text, err)
		}
		if s.Len() != 0 {
			t.Errorf("Parse(%q).Len() = %d, want 0", text, s.Len())
		}
	}
}

func TestParseUnparseRoundTrip(t *testing.T) {
	text := `{"faults":[
		{"type":"unreadable","prefix":"/","suffix":".log","code":5},
		{"type":"read_delay","prefix":"/","suffix":"","delay_ms":100,"fraction":1},
		{"type":"read_corrupt","prefix":"/","suffix":"","mode":1200,"count":2,"fraction":0.5}
	]}`

	s, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}

	out, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}

	if diff := pretty.Compare(s, again); diff != "" {
		t.Errorf("round trip changed the set (-orig +reparsed):\n%s", diff)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"faults":[{"type":"bogus"}]}`))
	if err == nil {
		t.Fatal("expected error for unknown fault type")
	}
}

func TestParseRejectsMissingRequiredField(t *testing.T) {
	cases := []string{
		`{"faults":[{"type":"unreadable"}]}`,
		`{"faults":[{"type":"read_delay","delay_ms":10}]}`,
		`{"faults":[{"type":"read_corrupt","mode":1000,"count":1}]}`,
	}
	for _, text := range cases {
		if _, err := Parse([]byte(text)); err == nil {
			t.Errorf("Parse(%q): expected error, got none", text)
		}
	}
}

func TestParseAbortsWholeSetOnOneBadElement(t *testing.T) {
	text := `{"faults":[
		{"type":"unreadable","prefix":"/","suffix":"","code":1},
		{"type":"bogus"}
	]}`
	if _, err := Parse([]byte(text)); err == nil {
		t.Fatal("expected error; one bad element must fail the whole parse")
	}
}

func TestFirstMatchReturnsFirstHit(t *testing.T) {
	text := `{"faults":[
		{"type":"unreadable","prefix":"/","suffix":".txt","code":1},
		{"type":"unreadable","prefix":"/","suffix":"","code":2}
	]}`
	s, err := Parse([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	k := s.FirstMatch("/a.txt", OpRead, NewUnseededRNG())
	if k == nil {
		t.Fatal("expected a match")
	}
	if got := k.Apply(nil, nil).Errno; got != -1 {
		t.Errorf("matched fault errno = %d, want -1 (first match wins)", got)
	}
}

func TestFirstMatchNoneMatches(t *testing.T) {
	s := Empty()
	if k := s.FirstMatch("/anything", OpRead, NewUnseededRNG()); k != nil {
		t.Errorf("expected no match against the empty set, got %#v", k)
	}
}
