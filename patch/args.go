package patch

import (
	"fmt"
	"math"

	"github.com/hazyhaar/dommirror/dom"
)

// args is the decoded argument list of one record. The accessors convert
// JSON-decoded values to the Go types the dom methods take.
type args []any

func (a args) has(i int) bool {
	if i >= len(a) {
		return false
	}
	_, undef := a[i].(dom.Undefined)
	return !undef
}

func (a args) need(i int) error {
	if i >= len(a) {
		return fmt.Errorf("patch: missing argument %d: %w", i, ErrBadArgument)
	}
	return nil
}

func (a args) node(i int) (*dom.Node, error) {
	if err := a.need(i); err != nil {
		return nil, err
	}
	switch v := a[i].(type) {
	case nil:
		return nil, nil
	case *dom.Node:
		return v, nil
	}
	return nil, fmt.Errorf("patch: argument %d: %T is not a node: %w", i, a[i], ErrBadArgument)
}

func (a args) nodes(from int) ([]*dom.Node, error) {
	var out []*dom.Node
	for i := from; i < len(a); i++ {
		n, err := a.node(i)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (a args) str(i int) (string, error) {
	if err := a.need(i); err != nil {
		return "", err
	}
	return stringify(a[i]), nil
}

func (a args) strings(from int) []string {
	var out []string
	for i := from; i < len(a); i++ {
		out = append(out, stringify(a[i]))
	}
	return out
}

// stringify converts a value the way a string-typed binding would.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case dom.Undefined:
		return "undefined"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e21 {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	}
	return fmt.Sprint(v)
}

func (a args) integer(i int) (int, error) {
	if err := a.need(i); err != nil {
		return 0, err
	}
	switch x := a[i].(type) {
	case float64:
		return int(x), nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("patch: argument %d: %T is not a number: %w", i, a[i], ErrBadArgument)
}

func (a args) boolean(i int) (bool, error) {
	if err := a.need(i); err != nil {
		return false, err
	}
	switch x := a[i].(type) {
	case bool:
		return x, nil
	case nil, dom.Undefined:
		return false, nil
	case string:
		return x != "", nil
	case float64:
		return x != 0 && !math.IsNaN(x), nil
	}
	return true, nil
}

func (a args) file(i int) (*dom.File, error) {
	if err := a.need(i); err != nil {
		return nil, err
	}
	f, ok := a[i].(*dom.File)
	if !ok {
		return nil, fmt.Errorf("patch: argument %d: %T is not a file: %w", i, a[i], ErrBadArgument)
	}
	return f, nil
}

func (a args) files(from int) ([]*dom.File, error) {
	var out []*dom.File
	for i := from; i < len(a); i++ {
		f, err := a.file(i)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (a args) shadowInit(i int) (dom.ShadowRootInit, error) {
	init := dom.ShadowRootInit{Mode: dom.ShadowOpen}
	if err := a.need(i); err != nil {
		return init, err
	}
	switch v := a[i].(type) {
	case dom.ShadowRootInit:
		return v, nil
	case map[string]any:
		if m, ok := v["mode"].(string); ok {
			init.Mode = dom.ShadowMode(m)
		}
		init.DelegatesFocus, _ = v["delegatesFocus"].(bool)
		init.SlotAssignment, _ = v["slotAssignment"].(string)
		return init, nil
	}
	return init, fmt.Errorf("patch: argument %d: %T is not a shadow root init: %w", i, a[i], ErrBadArgument)
}

func (a args) styleSheets(i int) ([]*dom.StyleSheet, error) {
	if err := a.need(i); err != nil {
		return nil, err
	}
	s, ok := a[i].([]*dom.StyleSheet)
	if !ok {
		return nil, fmt.Errorf("patch: argument %d: %T is not a stylesheet list: %w", i, a[i], ErrBadArgument)
	}
	return s, nil
}

// optStr reads a nullable string argument: null and undefined are "".
func (a args) optStr(i int) string {
	if !a.has(i) || a[i] == nil {
		return ""
	}
	return stringify(a[i])
}
