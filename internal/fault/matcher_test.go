package fault

import "testing"

func TestMatcherPrefixSuffix(t *testing.T) {
	cases := []struct {
		prefix, suffix, path string
		op, faultOp          Op
		want                 bool
	}{
		{"/", "", "/a.txt", OpRead, OpRead, true},
		{"/", ".log", "/b.log", OpRead, OpRead, true},
		{"/", ".log", "/b.txt", OpRead, OpRead, false},
		{"/var/", "", "/etc/foo", OpRead, OpRead, false},
		{"/", "", "/a.txt", OpRead, OpWrite, false},
	}

	for _, c := range cases {
		m := matcher{prefix: c.prefix, suffix: c.suffix, op: c.faultOp}
		if got := m.matches(c.path, c.op); got != c.want {
			t.Errorf("matcher{%q,%q,%v}.matches(%q,%v) = %v, want %v",
				c.prefix, c.suffix, c.faultOp, c.path, c.op, got, c.want)
		}
	}
}

func TestDefaultedMatcherDefaults(t *testing.T) {
	m := defaultedMatcher(OpRead, nil, nil)
	if m.prefix != "/" || m.suffix != "" {
		t.Fatalf("defaults = (%q,%q), want (\"/\",\"\")", m.prefix, m.suffix)
	}

	p := "/srv"
	m2 := defaultedMatcher(OpRead, &p, nil)
	if m2.prefix != "/srv" || m2.suffix != "" {
		t.Fatalf("defaults = (%q,%q), want (\"/srv\",\"\")", m2.prefix, m2.suffix)
	}
}
