package dom

import (
	"fmt"
	"strings"
	"unicode"
)

// StringMap exposes the data-* attributes of an element under camel-cased
// keys: data-user-id is the key userId.
type StringMap struct {
	owner *Node
}

// Get returns the value stored under key.
func (m *StringMap) Get(key string) (string, bool) {
	return m.owner.GetAttribute(datasetAttr(key))
}

// Keys returns the keys in attribute order.
func (m *StringMap) Keys() []string {
	var keys []string
	for _, a := range m.owner.attrs {
		if a.attrNS == "" && strings.HasPrefix(a.name, "data-") {
			keys = append(keys, datasetKey(a.name))
		}
	}
	return keys
}

// Set stores value under key.
func (m *StringMap) Set(key, value string) error {
	defer m.owner.doc.trace(m.owner, nested("dataset", "set", OpMethod), key, value)()
	return m.set(key, value)
}

// Delete removes key.
func (m *StringMap) Delete(key string) error {
	defer m.owner.doc.trace(m.owner, nested("dataset", "delete", OpMethod), key)()
	m.delete(key)
	return nil
}

// AssignProp stores v under name, as in dataset.userId = "7".
func (m *StringMap) AssignProp(name string, v any) error {
	defer m.owner.doc.trace(m.owner, nested("dataset", name, OpAssign), v)()
	text := "undefined"
	switch x := v.(type) {
	case string:
		text = x
	case nil:
		text = "null"
	case Undefined:
	default:
		text = fmt.Sprint(x)
	}
	return m.set(name, text)
}

// DeleteProp removes name, as in delete dataset.userId.
func (m *StringMap) DeleteProp(name string) error {
	defer m.owner.doc.trace(m.owner, nested("dataset", name, OpDelete))()
	m.delete(name)
	return nil
}

func (m *StringMap) set(key, value string) error {
	if strings.ContainsRune(key, '-') {
		for i := 0; i+1 < len(key); i++ {
			if key[i] == '-' && key[i+1] >= 'a' && key[i+1] <= 'z' {
				return fmt.Errorf("dom: dataset key %q: %w", key, ErrSyntax)
			}
		}
	}
	name := datasetAttr(key)
	if !validName(name) {
		return fmt.Errorf("dom: dataset key %q: %w", key, ErrInvalidCharacter)
	}
	m.owner.setAttr("", name, value)
	return nil
}

func (m *StringMap) delete(key string) {
	if a := m.owner.findAttr(datasetAttr(key)); a != nil {
		m.owner.removeAttr(a)
	}
}

func datasetAttr(key string) string {
	var b strings.Builder
	b.WriteString("data-")
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func datasetKey(attr string) string {
	name := strings.TrimPrefix(attr, "data-")
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r = unicode.ToUpper(r)
		} else if upper {
			b.WriteByte('-')
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}
