package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Arg is an encoded operation argument. The concrete types are Scalar,
// Null, Undefined, Date, File, Address, Data, StyleSheets and every
// Snapshot.
type Arg interface {
	arg()
}

// Scalar is a string, number or boolean passed through unchanged.
type Scalar struct {
	Value any
}

// Null is the JSON null.
type Null struct{}

// Undefined marks an argument the caller left out.
type Undefined struct{}

// Date is a point in time in epoch milliseconds.
type Date struct {
	Millis int64
}

// File is the metadata of a file. Contents are never transferred.
type File struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

// Data is a plain JSON object copied by value.
type Data map[string]any

// StyleSheets is a list of stylesheets, each a list of rule texts.
type StyleSheets [][]string

func (Scalar) arg()      {}
func (Null) arg()        {}
func (Undefined) arg()   {}
func (Date) arg()        {}
func (File) arg()        {}
func (Data) arg()        {}
func (StyleSheets) arg() {}

// Marker names opening tagged arrays that are not snapshots.
const (
	MarkerUndefined   = "Undefined"
	MarkerDate        = "Date"
	MarkerFile        = "File"
	MarkerStyleSheets = "StyleSheets"
)

// MarshalJSON encodes the scalar value. Only strings, booleans and finite
// numbers are accepted.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch v := s.Value.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return json.Marshal(v)
	case float32:
		return marshalFloat(float64(v))
	case float64:
		return marshalFloat(v)
	}
	return nil, fmt.Errorf("mutation: scalar of type %T: %w", s.Value, ErrMalformed)
}

func marshalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("mutation: non-finite number: %w", ErrMalformed)
	}
	return json.Marshal(f)
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (Undefined) MarshalJSON() ([]byte, error) { return json.Marshal([]any{MarkerUndefined}) }

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal([]any{MarkerDate, d.Millis}) }

func (f File) MarshalJSON() ([]byte, error) {
	type plain File
	return json.Marshal([]any{MarkerFile, plain(f)})
}

func (d Data) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

func (s StyleSheets) MarshalJSON() ([]byte, error) {
	sheets := make([][]string, len(s))
	for i, rules := range s {
		sheets[i] = rules
		if rules == nil {
			sheets[i] = []string{}
		}
	}
	return json.Marshal([]any{MarkerStyleSheets, sheets})
}

// MarshalArg encodes one argument.
func MarshalArg(a Arg) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("mutation: nil argument: %w", ErrMalformed)
	}
	return json.Marshal(a)
}

// UnmarshalArg decodes one argument. Arrays are classified by content: an
// array of indices and edge names is an Address, an array opening with a
// marker is that marker, anything else is a snapshot.
func UnmarshalArg(raw []byte) (Arg, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("mutation: empty argument: %w", ErrMalformed)
	}
	switch raw[0] {
	case 'n':
		if string(raw) != "null" {
			return nil, fmt.Errorf("mutation: argument %s: %w", raw, ErrMalformed)
		}
		return Null{}, nil
	case '{':
		var d Data
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("mutation: data argument: %w", err)
		}
		return d, nil
	case '[':
		return unmarshalArray(raw)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("mutation: scalar argument: %w", err)
	}
	return Scalar{Value: v}, nil
}

func unmarshalArray(raw []byte) (Arg, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("mutation: array argument: %w", err)
	}
	if addr, ok := parseAddress(items); ok {
		return addr, nil
	}
	var head string
	if err := json.Unmarshal(items[0], &head); err != nil {
		return nil, fmt.Errorf("mutation: array argument %s: %w", raw, ErrMalformed)
	}
	switch head {
	case MarkerUndefined:
		if len(items) != 1 {
			return nil, fmt.Errorf("mutation: Undefined with payload: %w", ErrMalformed)
		}
		return Undefined{}, nil
	case MarkerDate:
		var ms float64
		if len(items) != 2 || json.Unmarshal(items[1], &ms) != nil {
			return nil, fmt.Errorf("mutation: Date %s: %w", raw, ErrMalformed)
		}
		return Date{Millis: int64(ms)}, nil
	case MarkerFile:
		var f File
		if len(items) != 2 || json.Unmarshal(items[1], &f) != nil {
			return nil, fmt.Errorf("mutation: File %s: %w", raw, ErrMalformed)
		}
		return f, nil
	case MarkerStyleSheets:
		var sheets [][]string
		if len(items) != 2 || json.Unmarshal(items[1], &sheets) != nil {
			return nil, fmt.Errorf("mutation: StyleSheets %s: %w", raw, ErrMalformed)
		}
		return StyleSheets(sheets), nil
	}
	return decodeSnapshot(head, items)
}

// parseAddress reports whether every item is a step. The empty array is
// the empty address.
func parseAddress(items []json.RawMessage) (Address, bool) {
	addr := make(Address, 0, len(items))
	for _, it := range items {
		s, ok := parseStep(it)
		if !ok {
			return nil, false
		}
		addr = append(addr, s)
	}
	return addr, true
}
