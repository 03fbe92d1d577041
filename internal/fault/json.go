package fault

import (
	"encoding/json"
	"fmt"
)

// wireFault mirrors the wire JSON schema: a discriminated union flattened
// into one object. Pointer fields distinguish "absent" from "present with
// zero value", which Parse needs for prefix/suffix defaulting and for
// required-field validation.
type wireFault struct {
	Type     string   `json:"type"`
	Prefix   *string  `json:"prefix,omitempty"`
	Suffix   *string  `json:"suffix,omitempty"`
	Code     *int     `json:"code,omitempty"`
	DelayMS  *int64   `json:"delay_ms,omitempty"`
	Fraction *float64 `json:"fraction,omitempty"`
	Mode     *int     `json:"mode,omitempty"`
	Count    *int64   `json:"count,omitempty"`
}

// ParseError reports a recoverable failure to parse one fault descriptor
// or the root document: any element that fails to parse aborts the whole
// parse, leaving the previously active configuration untouched.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "fault: " + e.Reason }

func missingField(kind, field string) error {
	return &ParseError{Reason: fmt.Sprintf("%s: missing or ill-typed field %q", kind, field)}
}

func parseKind(w wireFault) (Kind, error) {
	switch w.Type {
	case "unreadable", "unwritable":
		if w.Code == nil {
			return nil, missingField(w.Type, "code")
		}
		m := defaultedMatcher(readOrWrite(w.Type == "unwritable"), w.Prefix, w.Suffix)
		if w.Type == "unreadable" {
			return &Unreadable{matcher: m, Code: *w.Code}, nil
		}
		return &Unwritable{matcher: m, Code: *w.Code}, nil

	case "read_delay", "write_delay":
		if w.DelayMS == nil {
			return nil, missingField(w.Type, "delay_ms")
		}
		if w.Fraction == nil {
			return nil, missingField(w.Type, "fraction")
		}
		m := defaultedMatcher(readOrWrite(w.Type == "write_delay"), w.Prefix, w.Suffix)
		if w.Type == "read_delay" {
			return &ReadDelay{matcher: m, DelayMS: *w.DelayMS, Fraction: *w.Fraction}, nil
		}
		return &WriteDelay{matcher: m, DelayMS: *w.DelayMS, Fraction: *w.Fraction}, nil

	case "read_corrupt", "write_corrupt":
		if w.Mode == nil {
			return nil, missingField(w.Type, "mode")
		}
		if w.Count == nil {
			return nil, missingField(w.Type, "count")
		}
		if w.Fraction == nil {
			return nil, missingField(w.Type, "fraction")
		}
		mode := Mode(*w.Mode)
		if !mode.valid() {
			return nil, &ParseError{Reason: fmt.Sprintf("%s: unknown mode %d", w.Type, *w.Mode)}
		}
		m := defaultedMatcher(readOrWrite(w.Type == "write_corrupt"), w.Prefix, w.Suffix)
		if w.Type == "read_corrupt" {
			return &ReadCorrupt{matcher: m, Mode: mode, Count: *w.Count, Fraction: *w.Fraction}, nil
		}
		return &WriteCorrupt{matcher: m, Mode: mode, Count: *w.Count, Fraction: *w.Fraction}, nil

	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unknown fault type %q", w.Type)}
	}
}

func readOrWrite(isWrite bool) Op {
	if isWrite {
		return OpWrite
	}
	return OpRead
}

func unparseKind(k Kind) wireFault {
	w := wireFault{Type: k.typeTag()}

	switch v := k.(type) {
	case *Unreadable:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		w.Code = &v.Code
	case *Unwritable:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		w.Code = &v.Code
	case *ReadDelay:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		w.DelayMS, w.Fraction = &v.DelayMS, &v.Fraction
	case *WriteDelay:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		w.DelayMS, w.Fraction = &v.DelayMS, &v.Fraction
	case *ReadCorrupt:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		mode := int(v.Mode)
		w.Mode, w.Count, w.Fraction = &mode, &v.Count, &v.Fraction
	case *WriteCorrupt:
		w.Prefix, w.Suffix = &v.prefix, &v.suffix
		mode := int(v.Mode)
		w.Mode, w.Count, w.Fraction = &mode, &v.Count, &v.Fraction
	}
	return w
}

// marshalWireFault renders w with a stable field order, independent of Go
// struct-tag/map-key ordering quirks.
func marshalWireFault(w wireFault) ([]byte, error) {
	// encoding/json already emits struct fields in declaration order, so a
	// plain Marshal gives the stable schema; this wrapper exists as the
	// single choke point so Set.MarshalJSON and tests don't each re-derive
	// field order by hand.
	return json.Marshal(w)
}
