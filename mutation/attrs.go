package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute is one name/value pair of an attribute map.
type Attribute struct {
	Name  string
	Value string
}

// Attrs is an attribute map that keeps document order. It encodes as a
// JSON object whose keys appear in that order.
type Attrs []Attribute

// Get returns the value of name.
func (a Attrs) Get(name string) (string, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return "", false
}

func (a Attrs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, at := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(at.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(at.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object keys in order. A later duplicate key
// replaces the earlier value in place.
func (a *Attrs) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mutation: attributes must be an object: %w", ErrMalformed)
	}
	out := Attrs{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("mutation: attribute %q: %w", name, ErrMalformed)
		}
		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i].Value = value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, Attribute{Name: name, Value: value})
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}
