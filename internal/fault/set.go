// Package fault implements Kibosh's fault model: the path matcher, the
// corruption kernel, the fault descriptor tagged union, and the ordered
// fault set that holds them.
package fault

import "encoding/json"

// Set is an ordered sequence of faults. Order is significant: FirstMatch
// returns the first element that matches.
type Set struct {
	faults []Kind
}

// document is the root JSON shape: {"faults": [...]}.
type document struct {
	Faults []json.RawMessage `json:"faults"`
}

// Parse decodes text into a Set. A document lacking "faults" (including
// `{}`) or with an empty array yields the empty Set. Any element that
// fails to parse aborts the whole parse with no partial set.
func Parse(text []byte) (*Set, error) {
	var doc document
	if err := json.Unmarshal(text, &doc); err != nil {
		return nil, &ParseError{Reason: "invalid JSON: " + err.Error()}
	}

	faults := make([]Kind, 0, len(doc.Faults))
	for i, raw := range doc.Faults {
		var w wireFault
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ParseError{Reason: "element " + itoa(i) + ": " + err.Error()}
		}
		k, err := parseKind(w)
		if err != nil {
			return nil, err
		}
		faults = append(faults, k)
	}
	return &Set{faults: faults}, nil
}

// itoa avoids pulling in strconv purely for error-message formatting.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// MarshalJSON renders the set as {"faults":[...]}' with elements in
// original order.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s == nil || len(s.faults) == 0 {
		return []byte(`{"faults":[]}`), nil
	}

	raws := make([]json.RawMessage, 0, len(s.faults))
	for _, k := range s.faults {
		b, err := marshalWireFault(unparseKind(k))
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(document{Faults: raws})
}

// Len reports the number of faults in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.faults)
}

// FirstMatch performs a linear scan for the first fault matching (path,
// op), consuming randomness from r for any probabilistic faults it tests
// along the way.
func (s *Set) FirstMatch(path string, op Op, r *RNG) Kind {
	if s == nil {
		return nil
	}
	for _, k := range s.faults {
		if k.Matches(path, op, r) {
			return k
		}
	}
	return nil
}

// Empty returns a ready-to-use, empty fault set — the startup default.
func Empty() *Set {
	return &Set{}
}
