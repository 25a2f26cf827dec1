package patch

import (
	"fmt"

	"github.com/hazyhaar/dommirror/dom"
)

// composite describes a sub-object reached through a property of a node.
type composite struct {
	get     func(n *dom.Node) (any, bool)
	methods map[string]func(obj any, a args) error
	setters map[string]func(obj any, a args) error
}

func (c *composite) dispatch(obj any, name string, a args) error {
	if m, ok := c.methods[name]; ok {
		return m(obj, a)
	}
	if s, ok := c.setters[name]; ok {
		if err := a.need(0); err != nil {
			return err
		}
		return s(obj, a)
	}
	return assignOrDelete(obj, name, a)
}

// on adapts a typed sub-object operation to the composite table.
func on[T any](fn func(T, args) error) func(any, args) error {
	return func(obj any, a args) error {
		t, ok := obj.(T)
		if !ok {
			return fmt.Errorf("%T: %w", obj, ErrNotCallable)
		}
		return fn(t, a)
	}
}

// getter wraps a sub-object accessor that returns nil when the node has no
// such sub-object.
func getter[T comparable](fn func(*dom.Node) T) func(*dom.Node) (any, bool) {
	return func(n *dom.Node) (any, bool) {
		var zero T
		v := fn(n)
		if v == zero {
			return nil, false
		}
		return v, true
	}
}

var composites = map[string]*composite{
	"classList": {
		get: getter((*dom.Node).ClassList),
		methods: map[string]func(any, args) error{
			"add": on(func(l *dom.TokenList, a args) error { return l.Add(a.strings(0)...) }),
			"remove": on(func(l *dom.TokenList, a args) error {
				return l.Remove(a.strings(0)...)
			}),
			"toggle": on(func(l *dom.TokenList, a args) error {
				token, err := a.str(0)
				if err != nil {
					return err
				}
				var force []bool
				if a.has(1) {
					f, err := a.boolean(1)
					if err != nil {
						return err
					}
					force = append(force, f)
				}
				_, err = l.Toggle(token, force...)
				return err
			}),
			"replace": on(func(l *dom.TokenList, a args) error {
				old, err := a.str(0)
				if err != nil {
					return err
				}
				repl, err := a.str(1)
				if err != nil {
					return err
				}
				_, err = l.Replace(old, repl)
				return err
			}),
		},
		setters: map[string]func(any, args) error{
			"value": on(func(l *dom.TokenList, a args) error { return l.SetValue(a.optStr(0)) }),
		},
	},

	"style": {
		get: getter((*dom.Node).Style),
		methods: map[string]func(any, args) error{
			"setProperty": on(func(s *dom.StyleDeclaration, a args) error {
				name, err := a.str(0)
				if err != nil {
					return err
				}
				return s.SetProperty(name, a.optStr(1), a.optStr(2))
			}),
			"removeProperty": on(func(s *dom.StyleDeclaration, a args) error {
				name, err := a.str(0)
				if err != nil {
					return err
				}
				_, err = s.RemoveProperty(name)
				return err
			}),
		},
	},

	"dataset": {
		get: getter((*dom.Node).Dataset),
		methods: map[string]func(any, args) error{
			"set": on(func(m *dom.StringMap, a args) error {
				key, err := a.str(0)
				if err != nil {
					return err
				}
				value, err := a.str(1)
				if err != nil {
					return err
				}
				return m.Set(key, value)
			}),
			"delete": on(func(m *dom.StringMap, a args) error {
				key, err := a.str(0)
				if err != nil {
					return err
				}
				return m.Delete(key)
			}),
		},
	},

	"attributes": {
		get: getter((*dom.Node).Attributes),
		methods: map[string]func(any, args) error{
			"setNamedItem": on(func(m *dom.NamedNodeMap, a args) error {
				attr, err := a.node(0)
				if err != nil {
					return err
				}
				_, err = m.SetNamedItem(attr)
				return err
			}),
			"removeNamedItem": on(func(m *dom.NamedNodeMap, a args) error {
				name, err := a.str(0)
				if err != nil {
					return err
				}
				_, err = m.RemoveNamedItem(name)
				return err
			}),
		},
	},

	"sheet": {
		get: getter((*dom.Node).Sheet),
		methods: map[string]func(any, args) error{
			"insertRule": on(func(s *dom.StyleSheet, a args) error {
				rule, err := a.str(0)
				if err != nil {
					return err
				}
				index := 0
				if a.has(1) {
					if index, err = a.integer(1); err != nil {
						return err
					}
				}
				_, err = s.InsertRule(rule, index)
				return err
			}),
			"deleteRule": on(func(s *dom.StyleSheet, a args) error {
				index, err := a.integer(0)
				if err != nil {
					return err
				}
				return s.DeleteRule(index)
			}),
			"replaceSync": on(func(s *dom.StyleSheet, a args) error {
				text, err := a.str(0)
				if err != nil {
					return err
				}
				return s.ReplaceSync(text)
			}),
		},
	},

	"files": {
		get: getter((*dom.Node).Files),
		methods: map[string]func(any, args) error{
			"push": on(func(l *dom.FileList, a args) error {
				files, err := a.files(0)
				if err != nil {
					return err
				}
				_, err = l.Push(files...)
				return err
			}),
			"pop": on(func(l *dom.FileList, _ args) error {
				_, err := l.Pop()
				return err
			}),
			"splice": on(func(l *dom.FileList, a args) error {
				start, err := a.integer(0)
				if err != nil {
					return err
				}
				count, err := a.integer(1)
				if err != nil {
					return err
				}
				files, err := a.files(2)
				if err != nil {
					return err
				}
				_, err = l.Splice(start, count, files...)
				return err
			}),
		},
	},
}
