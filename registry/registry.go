// Package registry decides which operations on which node interfaces
// mutate the tree. The table is static: every interface level of the dom
// package is listed with its members, and a fixed allow-list removes the
// callables that only read.
package registry

import (
	"fmt"
	"slices"
	"sync"
)

// Kind is how an operation is invoked. The values match the String form of
// dom.OpKind.
type Kind string

const (
	KindMethod Kind = "method"
	KindSetter Kind = "setter"
	KindAssign Kind = "assign"
	KindDelete Kind = "delete"
)

// Op is a direct mutating operation of an interface.
type Op struct {
	Name string
	Kind Kind
}

// Classification is the mutating surface of one interface.
type Classification struct {
	// MutableOps are the operations on the node itself, most derived
	// level first.
	MutableOps []Op
	// NestedMutables maps a composite property to the mutating methods of
	// the sub-object it returns.
	NestedMutables map[string][]string
}

// Registry is the immutable operation table.
type Registry struct {
	byName  map[string]*level
	classes map[string]Classification
	order   []string
	walked  []string
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, built on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := build(levels)
		if err != nil {
			panic(err)
		}
		defaultReg = r
	})
	return defaultReg
}

func build(table []level) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*level, len(table)),
		classes: make(map[string]Classification),
	}
	for i := range table {
		l := &table[i]
		if _, dup := r.byName[l.name]; dup {
			return nil, fmt.Errorf("registry: duplicate level %q", l.name)
		}
		r.byName[l.name] = l
	}
	for _, l := range table {
		for _, p := range l.parents {
			if _, ok := r.byName[p]; !ok {
				return nil, fmt.Errorf("registry: level %q: unknown parent %q", l.name, p)
			}
		}
	}

	seen := make(map[string]bool)
	for _, l := range table {
		if l.stop {
			continue
		}
		c := Classification{NestedMutables: make(map[string][]string)}
		have := make(map[string]bool)
		for _, lv := range r.ancestry(l.name) {
			if !seen[lv.name] {
				seen[lv.name] = true
				r.walked = append(r.walked, lv.name)
			}
			for _, m := range lv.members {
				switch m.kind {
				case mMethod, mSetter:
					if have[m.name] || (m.kind == mMethod && nonMutating[m.name]) {
						continue
					}
					have[m.name] = true
					k := KindMethod
					if m.kind == mSetter {
						k = KindSetter
					}
					c.MutableOps = append(c.MutableOps, Op{Name: m.name, Kind: k})
				case mComposite:
					rule, ok := nested[m.name]
					if !ok {
						return nil, fmt.Errorf("registry: composite %q has no nested rule", m.name)
					}
					c.NestedMutables[m.name] = slices.Clone(rule.methods)
				}
			}
		}
		r.classes[l.name] = c
		r.order = append(r.order, l.name)
	}
	return r, nil
}

// ancestry returns name and its ancestor levels, breadth first, each level
// once. Stop levels end the walk.
func (r *Registry) ancestry(name string) []*level {
	var out []*level
	visited := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		l := r.byName[queue[0]]
		queue = queue[1:]
		if l.stop {
			continue
		}
		out = append(out, l)
		for _, p := range l.parents {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return out
}

// Classify returns the mutating surface of an interface, as named by
// dom.Node.Interface.
func (r *Registry) Classify(iface string) (Classification, bool) {
	c, ok := r.classes[iface]
	if !ok {
		return Classification{}, false
	}
	out := Classification{
		MutableOps:     slices.Clone(c.MutableOps),
		NestedMutables: make(map[string][]string, len(c.NestedMutables)),
	}
	for k, v := range c.NestedMutables {
		out.NestedMutables[k] = slices.Clone(v)
	}
	return out, true
}

// IsMutating reports whether invoking path with kind on a node of iface
// changes state. A one-segment path names a member of the node; a
// two-segment path names a member of a composite sub-object.
func (r *Registry) IsMutating(iface string, path []string, kind Kind) bool {
	c, ok := r.classes[iface]
	if !ok {
		return false
	}
	switch len(path) {
	case 1:
		for _, op := range c.MutableOps {
			if op.Name == path[0] {
				return op.Kind == kind || (op.Kind == KindSetter && kind == KindAssign)
			}
		}
		return false
	case 2:
		methods, ok := c.NestedMutables[path[0]]
		if !ok {
			return false
		}
		rule := nested[path[0]]
		switch kind {
		case KindMethod:
			return slices.Contains(methods, path[1])
		case KindAssign:
			return rule.anyAssign || slices.Contains(rule.assign, path[1])
		case KindDelete:
			return rule.anyAssign
		}
	}
	return false
}

// Interfaces returns every interface with a classification, in table order.
func (r *Registry) Interfaces() []string { return slices.Clone(r.order) }

// Walked returns the levels whose members are intercepted, each listed
// once, in the order the build first reached them. Stop levels never
// appear.
func (r *Registry) Walked() []string { return slices.Clone(r.walked) }
