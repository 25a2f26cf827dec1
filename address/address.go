// Package address maps nodes to addresses relative to a shared root and
// back. The same code runs on the primary and on the replica, so an address
// computed on one side resolves to the corresponding node on the other as
// long as both trees have the same shape.
package address

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
)

// ErrUnresolvable is returned when an address does not lead to a node. It
// means the replica has diverged from the primary.
var ErrUnresolvable = errors.New("address: unresolvable path")

// GetPath returns the address of n relative to root, or nil when n is not
// reachable from root. The root itself has the empty, non-nil address.
//
// Children of a document root are counted among element children only,
// which skips a leading doctype; every other child is counted among all
// child nodes.
func GetPath(n, root *dom.Node) mutation.Address {
	if n == nil || root == nil {
		return nil
	}
	var rev []mutation.Step
	for x := n; x != root; {
		switch {
		case x.Category == dom.CategoryLocation:
			rev = append(rev, mutation.EdgeStep(mutation.EdgeLocation))
			x = x.OwnerDocument().Node()

		case x.Parent() != nil:
			p := x.Parent()
			siblings := siblingsOf(p, root)
			i := indexOf(siblings, x)
			if i < 0 {
				return nil
			}
			rev = append(rev, mutation.Index(i))
			x = p

		case x.Category == dom.CategoryShadowRoot && x.Host() != nil:
			rev = append(rev, mutation.EdgeStep(mutation.EdgeShadowRoot))
			x = x.Host()

		case x.Category == dom.CategoryTemplateContent && x.TemplateOwner() != nil:
			rev = append(rev, mutation.EdgeStep(mutation.EdgeContent))
			x = x.TemplateOwner()

		default:
			return nil
		}
	}
	addr := make(mutation.Address, len(rev))
	for i, s := range rev {
		addr[len(rev)-1-i] = s
	}
	return addr
}

// GetNodeByPath resolves addr against root. It fails with ErrUnresolvable,
// naming the failing step, when any step has no matching node.
func GetNodeByPath(root *dom.Node, addr mutation.Address) (*dom.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("address: nil root: %w", ErrUnresolvable)
	}
	x := root
	for i, s := range addr {
		next, err := step(x, root, s)
		if err != nil {
			return nil, fmt.Errorf("address: step %d (%s) of %s: %w", i, s, addr, err)
		}
		x = next
	}
	return x, nil
}

func step(x, root *dom.Node, s mutation.Step) (*dom.Node, error) {
	switch s.Edge {
	case "":
		children := siblingsOf(x, root)
		if s.Index < 0 || s.Index >= len(children) {
			return nil, fmt.Errorf("no child %d among %d: %w", s.Index, len(children), ErrUnresolvable)
		}
		return children[s.Index], nil

	case mutation.EdgeShadowRoot:
		if x.Category != dom.CategoryElement {
			return nil, fmt.Errorf("%s has no shadow root: %w", x.Category, ErrUnresolvable)
		}
		if sr := x.ShadowRoot(); sr != nil {
			return sr, nil
		}
		return nil, fmt.Errorf("<%s> has no open shadow root: %w", x.LocalName(), ErrUnresolvable)

	case mutation.EdgeContent:
		if c := x.Content(); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("%s has no template content: %w", x.Category, ErrUnresolvable)

	case mutation.EdgeLocation:
		if x.Category != dom.CategoryDocument {
			return nil, fmt.Errorf("%s has no location: %w", x.Category, ErrUnresolvable)
		}
		return x.OwnerDocument().Location(), nil
	}
	return nil, fmt.Errorf("unknown edge %q: %w", s.Edge, ErrUnresolvable)
}

// siblingsOf returns the children of p that sibling indices count.
func siblingsOf(p, root *dom.Node) []*dom.Node {
	if p == root && p.Category == dom.CategoryDocument {
		return p.ElementChildren()
	}
	return p.Children()
}

func indexOf(nodes []*dom.Node, n *dom.Node) int {
	for i, c := range nodes {
		if c == n {
			return i
		}
	}
	return -1
}

// Contains reports whether n is root or lies below it, following child,
// shadow root, template content and location edges upward.
func Contains(root, n *dom.Node) bool {
	if root == nil {
		return false
	}
	for x := n; x != nil; x = up(x) {
		if x == root {
			return true
		}
	}
	return false
}

func up(x *dom.Node) *dom.Node {
	switch {
	case x.Category == dom.CategoryLocation:
		return x.OwnerDocument().Node()
	case x.Parent() != nil:
		return x.Parent()
	case x.Category == dom.CategoryShadowRoot:
		return x.Host()
	case x.Category == dom.CategoryTemplateContent:
		return x.TemplateOwner()
	}
	return nil
}
