package messages

import (
	"encoding/json"
	"fmt"
)

// ExtKind tags the primitive carried by an ExtValue.
type ExtKind string

const (
	ExtKindBool   ExtKind = "bool"
	ExtKindInt    ExtKind = "int"
	ExtKindFloat  ExtKind = "float"
	ExtKindString ExtKind = "string"
)

// ExtValue is a primitive value in a per-sensor extension map. The zero
// value has no kind and fails validation.
type ExtValue struct {
	kind ExtKind
	b    bool
	i    int64
	f    float64
	s    string
}

// ExtBool wraps a bool.
func ExtBool(v bool) ExtValue { return ExtValue{kind: ExtKindBool, b: v} }

// ExtInt wraps an int64.
func ExtInt(v int64) ExtValue { return ExtValue{kind: ExtKindInt, i: v} }

// ExtFloat wraps a float64.
func ExtFloat(v float64) ExtValue { return ExtValue{kind: ExtKindFloat, f: v} }

// ExtString wraps a string.
func ExtString(v string) ExtValue { return ExtValue{kind: ExtKindString, s: v} }

// Kind returns the tag.
func (v ExtValue) Kind() ExtKind { return v.kind }

// Bool returns the wrapped bool and whether the kind matched.
func (v ExtValue) Bool() (bool, bool) { return v.b, v.kind == ExtKindBool }

// Int returns the wrapped integer and whether the kind matched.
func (v ExtValue) Int() (int64, bool) { return v.i, v.kind == ExtKindInt }

// Float returns the wrapped float and whether the kind matched.
func (v ExtValue) Float() (float64, bool) { return v.f, v.kind == ExtKindFloat }

// Str returns the wrapped string and whether the kind matched.
func (v ExtValue) Str() (string, bool) { return v.s, v.kind == ExtKindString }

func (v ExtValue) String() string {
	switch v.kind {
	case ExtKindBool:
		return fmt.Sprintf("%t", v.b)
	case ExtKindInt:
		return fmt.Sprintf("%d", v.i)
	case ExtKindFloat:
		return fmt.Sprintf("%g", v.f)
	case ExtKindString:
		return v.s
	}
	return "<invalid>"
}

type extWire struct {
	Kind  ExtKind         `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes as {"kind": ..., "value": ...}.
func (v ExtValue) MarshalJSON() ([]byte, error) {
	var raw interface{}
	switch v.kind {
	case ExtKindBool:
		raw = v.b
	case ExtKindInt:
		raw = v.i
	case ExtKindFloat:
		raw = v.f
	case ExtKindString:
		raw = v.s
	default:
		return nil, fmt.Errorf("cannot marshal extension value with kind %q", v.kind)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(extWire{Kind: v.kind, Value: payload})
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (v *ExtValue) UnmarshalJSON(data []byte) error {
	var w extWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := ExtValue{kind: w.Kind}
	var err error
	switch w.Kind {
	case ExtKindBool:
		err = json.Unmarshal(w.Value, &out.b)
	case ExtKindInt:
		err = json.Unmarshal(w.Value, &out.i)
	case ExtKindFloat:
		err = json.Unmarshal(w.Value, &out.f)
	case ExtKindString:
		err = json.Unmarshal(w.Value, &out.s)
	default:
		return fmt.Errorf("unknown extension kind %q", w.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s extension value: %w", w.Kind, err)
	}
	*v = out
	return nil
}

// Extensions is a forward-compatible per-sensor key/value map restricted
// to primitive values.
type Extensions map[string]ExtValue

// Validate rejects empty keys, untagged values and non-finite floats.
func (e Extensions) Validate(msg string) error {
	for k, v := range e {
		if k == "" {
			return invalid(msg, "extensions", k, "key must not be empty")
		}
		switch v.kind {
		case ExtKindBool, ExtKindInt, ExtKindString:
		case ExtKindFloat:
			if !isFinite(v.f) {
				return invalid(msg, "extensions."+k, v.f, "must be finite")
			}
		default:
			return invalid(msg, "extensions."+k, v.kind, "unknown value kind")
		}
	}
	return nil
}

// Clone returns a copy that shares nothing with e. A nil map stays nil.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
