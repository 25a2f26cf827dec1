package dom

import (
	"fmt"
	"net/url"
	"strings"
)

// Href returns the URL of a location node.
func (n *Node) Href() string { return n.data }

// Hash returns the fragment of a location node, with its leading '#', or "".
func (n *Node) Hash() string {
	if i := strings.IndexByte(n.data, '#'); i >= 0 && i < len(n.data)-1 {
		return n.data[i:]
	}
	return ""
}

// SetHref navigates the location to href, resolved against the current URL.
func (n *Node) SetHref(href string) error {
	defer n.doc.trace(n, setter("href"), href)()
	return n.navigate("href", href)
}

// SetHash replaces the fragment of the location.
func (n *Node) SetHash(hash string) error {
	defer n.doc.trace(n, setter("hash"), hash)()
	if n.Category != CategoryLocation {
		return fmt.Errorf("dom: hash on %s: %w", n.Category, ErrNotSupported)
	}
	base := n.data
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	n.data = base + "#" + strings.TrimPrefix(hash, "#")
	return nil
}

// Assign navigates the location to href.
func (n *Node) Assign(href string) error {
	defer n.doc.trace(n, method("assign"), href)()
	return n.navigate("assign", href)
}

// Replace navigates the location to href without a history entry. History
// is not modelled, so it behaves as Assign.
func (n *Node) Replace(href string) error {
	defer n.doc.trace(n, method("replace"), href)()
	return n.navigate("replace", href)
}

// Reload reloads the location. The tree is left untouched.
func (n *Node) Reload() error {
	defer n.doc.trace(n, method("reload"))()
	if n.Category != CategoryLocation {
		return fmt.Errorf("dom: reload on %s: %w", n.Category, ErrNotSupported)
	}
	return nil
}

func (n *Node) navigate(op, href string) error {
	if n.Category != CategoryLocation {
		return fmt.Errorf("dom: %s on %s: %w", op, n.Category, ErrNotSupported)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("dom: %s %q: %w", op, href, ErrSyntax)
	}
	if base, err := url.Parse(n.data); err == nil && base.Scheme != "" && base.Opaque == "" {
		ref = base.ResolveReference(ref)
	}
	n.data = ref.String()
	return nil
}
