// Package mutation defines the wire contract between a primary tree and its
// replicas: mutation records, node addresses, encoded arguments and
// snapshots. Everything in this package marshals to plain JSON arrays and
// objects so that any runtime can produce or consume it.
package mutation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is returned when wire data does not match any known shape.
var ErrMalformed = errors.New("mutation: malformed wire data")

// Edge is a non-index step of an address.
type Edge string

const (
	EdgeShadowRoot Edge = "shadowRoot" // host element -> its shadow root
	EdgeContent    Edge = "content"    // template element -> its content fragment
	EdgeLocation   Edge = "location"   // document -> its location
)

func (e Edge) valid() bool {
	return e == EdgeShadowRoot || e == EdgeContent || e == EdgeLocation
}

// Step is one step of an address: a sibling index, or an Edge when Edge is
// not empty.
type Step struct {
	Index int
	Edge  Edge
}

// Index returns a sibling index step.
func Index(i int) Step { return Step{Index: i} }

// EdgeStep returns a sentinel step.
func EdgeStep(e Edge) Step { return Step{Edge: e} }

func (s Step) String() string {
	if s.Edge != "" {
		return string(s.Edge)
	}
	return strconv.Itoa(s.Index)
}

// MarshalJSON encodes an index as a number and an edge as its name.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Edge != "" {
		if !s.Edge.valid() {
			return nil, fmt.Errorf("mutation: step %q: %w", s.Edge, ErrMalformed)
		}
		return json.Marshal(string(s.Edge))
	}
	if s.Index < 0 {
		return nil, fmt.Errorf("mutation: step %d: %w", s.Index, ErrMalformed)
	}
	return []byte(strconv.Itoa(s.Index)), nil
}

// UnmarshalJSON accepts a non-negative integer or a known edge name.
func (s *Step) UnmarshalJSON(b []byte) error {
	st, ok := parseStep(b)
	if !ok {
		return fmt.Errorf("mutation: step %s: %w", b, ErrMalformed)
	}
	*s = st
	return nil
}

func parseStep(b []byte) (Step, bool) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return Step{}, false
	}
	switch x := v.(type) {
	case float64:
		if x < 0 || x != math.Trunc(x) || x > math.MaxInt32 {
			return Step{}, false
		}
		return Index(int(x)), true
	case string:
		if e := Edge(x); e.valid() {
			return EdgeStep(e), true
		}
	}
	return Step{}, false
}

// Address names a node relative to a shared root. The empty address names
// the root itself.
type Address []Step

func (Address) arg() {}

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, s := range a {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// MarshalJSON always produces an array, never null.
func (a Address) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Step(a))
}

// OpPath is the operation of a record: one segment for an operation on the
// target itself, two or more for an operation on a sub-object.
type OpPath []string

func (p OpPath) String() string { return strings.Join(p, ".") }

// MarshalJSON encodes a single segment as a string and longer paths as an
// array.
func (p OpPath) MarshalJSON() ([]byte, error) {
	switch len(p) {
	case 0:
		return nil, fmt.Errorf("mutation: empty operation path: %w", ErrMalformed)
	case 1:
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

// UnmarshalJSON accepts a string or an array of strings.
func (p *OpPath) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			return fmt.Errorf("mutation: empty operation name: %w", ErrMalformed)
		}
		*p = OpPath{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil || len(many) == 0 {
		return fmt.Errorf("mutation: operation path %s: %w", b, ErrMalformed)
	}
	*p = many
	return nil
}

// Record is one captured mutating operation.
type Record struct {
	TargetPath Address
	Prop       OpPath
	Args       []Arg
}

type wireRecord struct {
	TargetPath Address           `json:"targetPath"`
	Prop       OpPath            `json:"prop"`
	Args       []json.RawMessage `json:"args"`
}

// MarshalJSON encodes the record as {"targetPath", "prop", "args"}.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{TargetPath: r.TargetPath, Prop: r.Prop, Args: make([]json.RawMessage, len(r.Args))}
	for i, a := range r.Args {
		b, err := MarshalArg(a)
		if err != nil {
			return nil, fmt.Errorf("mutation: arg %d: %w", i, err)
		}
		w.Args[i] = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a record and each of its arguments.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.TargetPath == nil {
		return fmt.Errorf("mutation: record without targetPath: %w", ErrMalformed)
	}
	if len(w.Prop) == 0 {
		return fmt.Errorf("mutation: record without prop: %w", ErrMalformed)
	}
	args := make([]Arg, len(w.Args))
	for i, raw := range w.Args {
		a, err := UnmarshalArg(raw)
		if err != nil {
			return fmt.Errorf("mutation: arg %d: %w", i, err)
		}
		args[i] = a
	}
	*r = Record{TargetPath: w.TargetPath, Prop: w.Prop, Args: args}
	return nil
}

// Envelope types.
const (
	TypeRecord   = "record"
	TypeSnapshot = "snapshot"
)

// Envelope is the unit carried by a transport: either one record or a full
// snapshot of a root's children, tagged with the root it belongs to.
type Envelope struct {
	Type     string
	Root     string
	ID       string // UUIDv7, for log correlation only
	Record   *Record
	Snapshot Snapshot
}

type wireEnvelope struct {
	Type     string          `json:"type"`
	Root     string          `json:"root"`
	ID       string          `json:"id,omitempty"`
	Record   *Record         `json:"record,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// MarshalJSON encodes the envelope.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{Type: e.Type, Root: e.Root, ID: e.ID, Record: e.Record}
	if e.Snapshot != nil {
		b, err := MarshalArg(e.Snapshot)
		if err != nil {
			return nil, err
		}
		w.Snapshot = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the envelope and checks that its payload matches
// its type.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Envelope{Type: w.Type, Root: w.Root, ID: w.ID, Record: w.Record}
	switch w.Type {
	case TypeRecord:
		if w.Record == nil {
			return fmt.Errorf("mutation: record envelope without record: %w", ErrMalformed)
		}
	case TypeSnapshot:
		s, err := UnmarshalSnapshot(w.Snapshot)
		if err != nil {
			return err
		}
		out.Snapshot = s
	default:
		return fmt.Errorf("mutation: envelope type %q: %w", w.Type, ErrMalformed)
	}
	*e = out
	return nil
}
