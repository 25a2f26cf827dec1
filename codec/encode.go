// Package codec turns live operation arguments into wire arguments and
// back. Nodes already reachable from the root travel as addresses; nodes
// that are not travel as inline snapshots of their whole subtree.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
)

var (
	// ErrUnsupportedArg is returned for argument values with no wire form.
	ErrUnsupportedArg = errors.New("codec: unsupported argument")
	// ErrUnsupportedNode is returned for node categories that cannot be
	// snapshotted or rebuilt.
	ErrUnsupportedNode = errors.New("codec: unsupported node category")
	// ErrUnaddressable is returned for a node inside the root that has no
	// address.
	ErrUnaddressable = errors.New("codec: node has no address")
)

// EncodeArguments encodes every argument of one operation. The first
// failure aborts the whole list.
func EncodeArguments(args []any, root *dom.Node) ([]mutation.Arg, error) {
	out := make([]mutation.Arg, len(args))
	for i, a := range args {
		enc, err := EncodeArgument(a, root)
		if err != nil {
			return nil, fmt.Errorf("codec: argument %d: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

// EncodeArgument encodes one live argument relative to root.
func EncodeArgument(arg any, root *dom.Node) (mutation.Arg, error) {
	switch v := arg.(type) {
	case nil:
		return mutation.Null{}, nil
	case dom.Undefined:
		return mutation.Undefined{}, nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return mutation.Scalar{Value: v}, nil
	case float32:
		return encodeFloat(float64(v))
	case float64:
		return encodeFloat(v)
	case time.Time:
		return mutation.Date{Millis: v.UnixMilli()}, nil
	case *dom.File:
		if v == nil {
			return mutation.Null{}, nil
		}
		return mutation.File{Name: v.Name, Type: v.Type, LastModified: v.LastModified.UnixMilli()}, nil
	case *dom.Node:
		if v == nil {
			return mutation.Null{}, nil
		}
		if address.Contains(root, v) {
			addr := address.GetPath(v, root)
			if addr == nil {
				return nil, fmt.Errorf("%s node: %w", v.Category, ErrUnaddressable)
			}
			return addr, nil
		}
		return EncodeSnapshot(v)
	case dom.ShadowRootInit:
		return mutation.Data{
			"mode":           string(v.Mode),
			"delegatesFocus": v.DelegatesFocus,
			"slotAssignment": v.SlotAssignment,
		}, nil
	case []*dom.StyleSheet:
		sheets := make(mutation.StyleSheets, len(v))
		for i, s := range v {
			sheets[i] = s.Rules()
			if sheets[i] == nil {
				sheets[i] = []string{}
			}
		}
		return sheets, nil
	case map[string]any:
		d, err := copyData(v)
		if err != nil {
			return nil, err
		}
		return mutation.Data(d), nil
	}
	return nil, fmt.Errorf("%T: %w", arg, ErrUnsupportedArg)
}

func encodeFloat(f float64) (mutation.Arg, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number: %w", ErrUnsupportedArg)
	}
	return mutation.Scalar{Value: f}, nil
}

// copyData deep-copies a plain JSON object. Values must be nil, strings,
// booleans, finite numbers, slices of values or nested objects.
func copyData(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		c, err := copyValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func copyValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite number: %w", ErrUnsupportedArg)
		}
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := copyValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		return copyData(x)
	}
	return nil, fmt.Errorf("%T in data: %w", v, ErrUnsupportedArg)
}

// EncodeSnapshot encodes n and its subtree. Shadow roots are encoded in the
// special properties of their host.
func EncodeSnapshot(n *dom.Node) (mutation.Snapshot, error) {
	switch n.Category {
	case dom.CategoryText:
		return mutation.TextSnapshot{Data: n.Data()}, nil
	case dom.CategoryComment:
		return mutation.CommentSnapshot{Data: n.Data()}, nil
	case dom.CategoryFragment, dom.CategoryTemplateContent:
		c, err := encodeChildren(n.Children())
		if err != nil {
			return nil, err
		}
		return mutation.FragmentSnapshot{Children: c}, nil
	case dom.CategoryShadowRoot:
		c, err := encodeChildren(n.Children())
		if err != nil {
			return nil, err
		}
		return mutation.ShadowRootSnapshot{Children: c}, nil
	case dom.CategoryAttr:
		return mutation.AttrSnapshot{Name: n.Name(), Value: n.Value(), Namespace: n.AttrNamespace()}, nil
	case dom.CategoryElement:
		return encodeElement(n)
	}
	return nil, fmt.Errorf("%s: %w", n.Category, ErrUnsupportedNode)
}

func encodeElement(n *dom.Node) (mutation.Snapshot, error) {
	attrs := mutation.Attrs{}
	for _, a := range n.Attrs() {
		attrs = append(attrs, mutation.Attribute{Name: a.Name(), Value: a.Value()})
	}

	if n.Namespace() == dom.NamespaceHTML && n.Content() != nil {
		content, err := EncodeSnapshot(n.Content())
		if err != nil {
			return nil, err
		}
		frag := content.(mutation.FragmentSnapshot)
		t := mutation.TemplateSnapshot{Content: &frag}
		if len(attrs) > 0 {
			t.Attrs = attrs
		}
		return t, nil
	}

	children, err := encodeChildren(n.Children())
	if err != nil {
		return nil, err
	}
	el := mutation.ElementSnapshot{Tag: strings.ToLower(n.TagName()), Attrs: attrs, Children: children}
	if n.Namespace() != dom.NamespaceHTML {
		el.Tag = n.TagName()
		el.Special.Namespace = n.Namespace()
		if el.Special.Namespace == "" {
			return nil, fmt.Errorf("element %q without namespace: %w", n.TagName(), ErrUnsupportedNode)
		}
	}
	if sr := n.ShadowRoot(); sr != nil {
		snap, err := EncodeSnapshot(sr)
		if err != nil {
			return nil, err
		}
		shadow := snap.(mutation.ShadowRootSnapshot)
		init := sr.Init()
		el.Special.ShadowRoot = &shadow
		el.Special.Init = &mutation.ShadowInit{DelegatesFocus: init.DelegatesFocus, SlotAssignment: init.SlotAssignment}
		for _, s := range sr.AdoptedStyleSheets() {
			rules := s.Rules()
			if rules == nil {
				rules = []string{}
			}
			el.Special.AdoptedStyleSheets = append(el.Special.AdoptedStyleSheets, rules)
		}
	}
	return el, nil
}

func encodeChildren(nodes []*dom.Node) ([]mutation.Snapshot, error) {
	out := make([]mutation.Snapshot, 0, len(nodes))
	for _, c := range nodes {
		s, err := EncodeSnapshot(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// EncodeRoot encodes the payload of an initial synchronisation. A document
// root encodes as a fragment of its children, skipping a doctype. An
// element root encodes as itself, so the replica can rebuild a matching
// host element.
func EncodeRoot(root *dom.Node) (mutation.Snapshot, error) {
	switch root.Category {
	case dom.CategoryDocument:
		var nodes []*dom.Node
		for _, c := range root.Children() {
			if c.Category != dom.CategoryDoctype {
				nodes = append(nodes, c)
			}
		}
		c, err := encodeChildren(nodes)
		if err != nil {
			return nil, fmt.Errorf("codec: encode root: %w", err)
		}
		return mutation.FragmentSnapshot{Children: c}, nil
	case dom.CategoryElement:
		s, err := EncodeSnapshot(root)
		if err != nil {
			return nil, fmt.Errorf("codec: encode root: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("codec: encode root %s: %w", root.Category, ErrUnsupportedNode)
}
