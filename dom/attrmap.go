package dom

import "fmt"

// NamedNodeMap is the live attribute collection of an element.
type NamedNodeMap struct {
	owner *Node
}

// Len returns the number of attributes.
func (m *NamedNodeMap) Len() int { return len(m.owner.attrs) }

// Item returns the i-th attribute, or nil.
func (m *NamedNodeMap) Item(i int) *Node {
	if i < 0 || i >= len(m.owner.attrs) {
		return nil
	}
	return m.owner.attrs[i]
}

// GetNamedItem returns the attribute with the given qualified name.
func (m *NamedNodeMap) GetNamedItem(name string) *Node {
	return m.owner.GetAttributeNode(name)
}

// GetNamedItemNS returns the attribute with the given namespace and local
// name.
func (m *NamedNodeMap) GetNamedItemNS(ns, local string) *Node {
	return m.owner.findAttrNS(ns, local)
}

// SetNamedItem attaches attr, returning the attribute it replaced.
func (m *NamedNodeMap) SetNamedItem(attr *Node) (*Node, error) {
	defer m.owner.doc.trace(m.owner, nested("attributes", "setNamedItem", OpMethod), attr)()
	return m.owner.setAttrNode(attr)
}

// RemoveNamedItem detaches the named attribute and returns it.
func (m *NamedNodeMap) RemoveNamedItem(name string) (*Node, error) {
	defer m.owner.doc.trace(m.owner, nested("attributes", "removeNamedItem", OpMethod), name)()
	a := m.owner.findAttr(m.owner.attrName(name))
	if a == nil {
		return nil, fmt.Errorf("dom: removeNamedItem %q: %w", name, ErrNotFound)
	}
	m.owner.removeAttr(a)
	return a, nil
}
