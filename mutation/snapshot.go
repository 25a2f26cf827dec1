package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot is a fully inlined encoding of a node and its subtree.
type Snapshot interface {
	Arg
	snapshot()
}

// Snapshot heads for the non-element categories. Any other head is an
// element tag.
const (
	HeadText     = "Text"
	HeadComment  = "Comment"
	HeadFragment = "DocumentFragment"
	HeadShadow   = "ShadowRoot"
	HeadTemplate = "HTMLTemplateElement"
	HeadAttr     = "Attr"
)

// TextSnapshot encodes as ["Text", data].
type TextSnapshot struct{ Data string }

// CommentSnapshot encodes as ["Comment", data].
type CommentSnapshot struct{ Data string }

// FragmentSnapshot encodes as ["DocumentFragment", [children...]].
type FragmentSnapshot struct{ Children []Snapshot }

// ShadowRootSnapshot encodes as ["ShadowRoot", [children...]]. The options
// of the shadow root travel in the host's Special.
type ShadowRootSnapshot struct{ Children []Snapshot }

// TemplateSnapshot encodes as ["HTMLTemplateElement", content|null] with
// the template's own attributes appended when it has any.
type TemplateSnapshot struct {
	Content *FragmentSnapshot
	Attrs   Attrs
}

// AttrSnapshot encodes as ["Attr", name, value] with the namespace appended
// when it is not empty.
type AttrSnapshot struct {
	Name      string
	Value     string
	Namespace string
}

// ElementSnapshot encodes as [tag, {attrs}, [children...], {special}].
type ElementSnapshot struct {
	Tag      string
	Attrs    Attrs
	Children []Snapshot
	Special  Special
}

// ShadowInit holds the shadow root options that survive replication. The
// mode is not carried: replicated shadow roots are always open.
type ShadowInit struct {
	DelegatesFocus bool   `json:"delegatesFocus"`
	SlotAssignment string `json:"slotAssignment,omitempty"`
}

// Special carries the element state that is neither an attribute nor a
// child.
type Special struct {
	Namespace          string              `json:"namespace,omitempty"`
	ShadowRoot         *ShadowRootSnapshot `json:"shadowRoot,omitempty"`
	Init               *ShadowInit         `json:"init,omitempty"`
	AdoptedStyleSheets [][]string          `json:"adoptedStyleSheets,omitempty"`
}

func (TextSnapshot) arg()       {}
func (CommentSnapshot) arg()    {}
func (FragmentSnapshot) arg()   {}
func (ShadowRootSnapshot) arg() {}
func (TemplateSnapshot) arg()   {}
func (AttrSnapshot) arg()       {}
func (ElementSnapshot) arg()    {}

func (TextSnapshot) snapshot()       {}
func (CommentSnapshot) snapshot()    {}
func (FragmentSnapshot) snapshot()   {}
func (ShadowRootSnapshot) snapshot() {}
func (TemplateSnapshot) snapshot()   {}
func (AttrSnapshot) snapshot()       {}
func (ElementSnapshot) snapshot()    {}

func (s TextSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{HeadText, s.Data})
}

func (s CommentSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{HeadComment, s.Data})
}

func (s FragmentSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{HeadFragment, children(s.Children)})
}

func (s ShadowRootSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{HeadShadow, children(s.Children)})
}

func (s TemplateSnapshot) MarshalJSON() ([]byte, error) {
	var content any
	if s.Content != nil {
		content = *s.Content
	}
	if len(s.Attrs) == 0 {
		return json.Marshal([]any{HeadTemplate, content})
	}
	return json.Marshal([]any{HeadTemplate, content, s.Attrs})
}

func (s AttrSnapshot) MarshalJSON() ([]byte, error) {
	if s.Namespace == "" {
		return json.Marshal([]any{HeadAttr, s.Name, s.Value})
	}
	return json.Marshal([]any{HeadAttr, s.Name, s.Value, s.Namespace})
}

func (s ElementSnapshot) MarshalJSON() ([]byte, error) {
	if s.Tag == "" {
		return nil, fmt.Errorf("mutation: element without tag: %w", ErrMalformed)
	}
	attrs := s.Attrs
	if attrs == nil {
		attrs = Attrs{}
	}
	return json.Marshal([]any{s.Tag, attrs, children(s.Children), s.Special})
}

// UnmarshalJSON decodes a ShadowRoot snapshot.
func (s *ShadowRootSnapshot) UnmarshalJSON(b []byte) error {
	snap, err := UnmarshalSnapshot(b)
	if err != nil {
		return err
	}
	sr, ok := snap.(ShadowRootSnapshot)
	if !ok {
		return fmt.Errorf("mutation: expected ShadowRoot, got %T: %w", snap, ErrMalformed)
	}
	*s = sr
	return nil
}

// UnmarshalJSON decodes a DocumentFragment snapshot.
func (s *FragmentSnapshot) UnmarshalJSON(b []byte) error {
	snap, err := UnmarshalSnapshot(b)
	if err != nil {
		return err
	}
	f, ok := snap.(FragmentSnapshot)
	if !ok {
		return fmt.Errorf("mutation: expected DocumentFragment, got %T: %w", snap, ErrMalformed)
	}
	*s = f
	return nil
}

// UnmarshalSnapshot decodes wire data that must be a snapshot.
func UnmarshalSnapshot(raw []byte) (Snapshot, error) {
	a, err := UnmarshalArg(raw)
	if err != nil {
		return nil, err
	}
	s, ok := a.(Snapshot)
	if !ok {
		return nil, fmt.Errorf("mutation: %s is not a snapshot: %w", raw, ErrMalformed)
	}
	return s, nil
}

func children(c []Snapshot) []Snapshot {
	if c == nil {
		return []Snapshot{}
	}
	return c
}

func decodeChildren(raw json.RawMessage) ([]Snapshot, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("mutation: children: %w", err)
	}
	out := make([]Snapshot, 0, len(items))
	for i, it := range items {
		s, err := UnmarshalSnapshot(it)
		if err != nil {
			return nil, fmt.Errorf("mutation: child %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeString(raw json.RawMessage, what string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("mutation: %s: %w", what, ErrMalformed)
	}
	return s, nil
}

func decodeSnapshot(head string, items []json.RawMessage) (Snapshot, error) {
	switch head {
	case HeadText, HeadComment:
		if len(items) != 2 {
			return nil, fmt.Errorf("mutation: %s arity %d: %w", head, len(items), ErrMalformed)
		}
		data, err := decodeString(items[1], head+" data")
		if err != nil {
			return nil, err
		}
		if head == HeadText {
			return TextSnapshot{Data: data}, nil
		}
		return CommentSnapshot{Data: data}, nil

	case HeadFragment, HeadShadow:
		if len(items) != 2 {
			return nil, fmt.Errorf("mutation: %s arity %d: %w", head, len(items), ErrMalformed)
		}
		c, err := decodeChildren(items[1])
		if err != nil {
			return nil, err
		}
		if head == HeadFragment {
			return FragmentSnapshot{Children: c}, nil
		}
		return ShadowRootSnapshot{Children: c}, nil

	case HeadTemplate:
		if len(items) < 2 || len(items) > 3 {
			return nil, fmt.Errorf("mutation: template arity %d: %w", len(items), ErrMalformed)
		}
		var t TemplateSnapshot
		if !bytes.Equal(bytes.TrimSpace(items[1]), []byte("null")) {
			var f FragmentSnapshot
			if err := json.Unmarshal(items[1], &f); err != nil {
				return nil, err
			}
			t.Content = &f
		}
		if len(items) == 3 {
			if err := json.Unmarshal(items[2], &t.Attrs); err != nil {
				return nil, fmt.Errorf("mutation: template attributes: %w", err)
			}
		}
		return t, nil

	case HeadAttr:
		if len(items) < 3 || len(items) > 4 {
			return nil, fmt.Errorf("mutation: Attr arity %d: %w", len(items), ErrMalformed)
		}
		var a AttrSnapshot
		var err error
		if a.Name, err = decodeString(items[1], "attribute name"); err != nil {
			return nil, err
		}
		if a.Value, err = decodeString(items[2], "attribute value"); err != nil {
			return nil, err
		}
		if len(items) == 4 && !bytes.Equal(bytes.TrimSpace(items[3]), []byte("null")) {
			if a.Namespace, err = decodeString(items[3], "attribute namespace"); err != nil {
				return nil, err
			}
		}
		return a, nil
	}

	if head == "" || len(items) < 2 || len(items) > 4 {
		return nil, fmt.Errorf("mutation: element %q arity %d: %w", head, len(items), ErrMalformed)
	}
	el := ElementSnapshot{Tag: head}
	if err := json.Unmarshal(items[1], &el.Attrs); err != nil {
		return nil, fmt.Errorf("mutation: element %q attributes: %w", head, err)
	}
	if len(items) > 2 {
		c, err := decodeChildren(items[2])
		if err != nil {
			return nil, fmt.Errorf("mutation: element %q: %w", head, err)
		}
		el.Children = c
	}
	if len(items) > 3 {
		if err := json.Unmarshal(items[3], &el.Special); err != nil {
			return nil, fmt.Errorf("mutation: element %q special: %w", head, err)
		}
	}
	return el, nil
}
