package dom

import (
	"fmt"
	"slices"
	"strings"
)

// Category is the closed set of node kinds.
type Category int

const (
	CategoryDocument Category = iota + 1
	CategoryDoctype
	CategoryElement
	CategoryText
	CategoryComment
	CategoryFragment
	CategoryShadowRoot
	CategoryTemplateContent
	CategoryAttr
	CategoryLocation
)

func (c Category) String() string {
	switch c {
	case CategoryDocument:
		return "document"
	case CategoryDoctype:
		return "doctype"
	case CategoryElement:
		return "element"
	case CategoryText:
		return "text"
	case CategoryComment:
		return "comment"
	case CategoryFragment:
		return "document-fragment"
	case CategoryShadowRoot:
		return "shadow-root"
	case CategoryTemplateContent:
		return "template-content"
	case CategoryAttr:
		return "attribute"
	case CategoryLocation:
		return "location"
	default:
		return "unknown"
	}
}

// Node is a node of a Document. The zero value is not usable; nodes are
// created through the Document factories or by parsing markup.
type Node struct {
	Category Category

	doc      *Document
	parent   *Node
	children []*Node

	// Element.
	tag       string
	namespace string
	attrs     []*Node
	shadow    *Node
	content   *Node
	classList *TokenList
	style     *StyleDeclaration
	dataset   *StringMap
	attrMap   *NamedNodeMap
	sheet     *StyleSheet
	files     *FileList

	// Character data, doctype name, attribute value, location href.
	data string

	// Attr.
	name         string
	attrNS       string
	ownerElement *Node

	// ShadowRoot.
	host       *Node
	shadowInit ShadowRootInit
	adopted    []*StyleSheet

	// TemplateContent.
	templateOwner *Node

	props map[string]any
}

// OwnerDocument returns the document owning n.
func (n *Node) OwnerDocument() *Document { return n.doc }

// Parent returns the tree parent, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// ElementChildren returns the element children.
func (n *Node) ElementChildren() []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.Category == CategoryElement {
			out = append(out, c)
		}
	}
	return out
}

// ChildAt returns the i-th child, or nil.
func (n *Node) ChildAt(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// FirstChild returns the first child, or nil.
func (n *Node) FirstChild() *Node { return n.ChildAt(0) }

// LastChild returns the last child, or nil.
func (n *Node) LastChild() *Node { return n.ChildAt(len(n.children) - 1) }

// NextSibling returns the following sibling, or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil {
		return nil
	}
	return n.parent.ChildAt(n.parent.indexOf(n) + 1)
}

// PreviousSibling returns the preceding sibling, or nil.
func (n *Node) PreviousSibling() *Node {
	if n.parent == nil {
		return nil
	}
	i := n.parent.indexOf(n)
	if i <= 0 {
		return nil
	}
	return n.parent.children[i-1]
}

// Host returns the host element of a shadow root.
func (n *Node) Host() *Node { return n.host }

// TemplateOwner returns the template element owning a template content
// fragment.
func (n *Node) TemplateOwner() *Node { return n.templateOwner }

// OwnerElement returns the element an attribute belongs to.
func (n *Node) OwnerElement() *Node { return n.ownerElement }

// Interface returns the name of the most derived interface n implements.
func (n *Node) Interface() string {
	switch n.Category {
	case CategoryDocument:
		return "Document"
	case CategoryDoctype:
		return "DocumentType"
	case CategoryText:
		return "Text"
	case CategoryComment:
		return "Comment"
	case CategoryFragment, CategoryTemplateContent:
		return "DocumentFragment"
	case CategoryShadowRoot:
		return "ShadowRoot"
	case CategoryAttr:
		return "Attr"
	case CategoryLocation:
		return "Location"
	case CategoryElement:
		switch n.namespace {
		case NamespaceHTML:
			switch n.tag {
			case "script":
				return "HTMLScriptElement"
			case "template":
				return "HTMLTemplateElement"
			case "style":
				return "HTMLStyleElement"
			case "input":
				return "HTMLInputElement"
			}
			return "HTMLElement"
		case NamespaceSVG:
			return "SVGElement"
		}
		return "Element"
	}
	return ""
}

// NodeName returns the DOM nodeName.
func (n *Node) NodeName() string {
	switch n.Category {
	case CategoryElement:
		return n.TagName()
	case CategoryText:
		return "#text"
	case CategoryComment:
		return "#comment"
	case CategoryDocument:
		return "#document"
	case CategoryFragment, CategoryTemplateContent:
		return "#document-fragment"
	case CategoryShadowRoot:
		return "#shadow-root"
	case CategoryDoctype:
		return n.data
	case CategoryAttr:
		return n.name
	}
	return ""
}

// NodeValue returns the data of character data and attributes, and "" for
// everything else.
func (n *Node) NodeValue() string {
	switch n.Category {
	case CategoryText, CategoryComment, CategoryAttr:
		return n.data
	}
	return ""
}

// SetNodeValue sets the data of character data and attributes. It has no
// effect on other categories.
func (n *Node) SetNodeValue(v string) error {
	defer n.doc.trace(n, setter("nodeValue"), v)()
	switch n.Category {
	case CategoryText, CategoryComment:
		return n.SetData(v)
	case CategoryAttr:
		return n.SetValue(v)
	}
	return nil
}

// TextContent returns the concatenated text of n.
func (n *Node) TextContent() string {
	switch n.Category {
	case CategoryText, CategoryComment, CategoryAttr:
		return n.data
	case CategoryDocument, CategoryDoctype, CategoryLocation:
		return ""
	}
	var b strings.Builder
	n.collectText(&b)
	return b.String()
}

func (n *Node) collectText(b *strings.Builder) {
	for _, c := range n.children {
		switch c.Category {
		case CategoryText:
			b.WriteString(c.data)
		case CategoryElement:
			c.collectText(b)
		}
	}
}

// SetTextContent replaces the children of n with a single text node, or
// sets the data of character data and attributes.
func (n *Node) SetTextContent(text string) error {
	defer n.doc.trace(n, setter("textContent"), text)()
	switch n.Category {
	case CategoryText, CategoryComment:
		return n.SetData(text)
	case CategoryAttr:
		return n.SetValue(text)
	case CategoryDocument, CategoryDoctype, CategoryLocation:
		return nil
	}
	var nodes []*Node
	if text != "" {
		nodes = append(nodes, n.doc.CreateTextNode(text))
	}
	return n.ReplaceChildren(nodes...)
}

// Prop returns an expando property.
func (n *Node) Prop(name string) (any, bool) {
	v, ok := n.props[name]
	return v, ok
}

// AssignProp sets an expando property.
func (n *Node) AssignProp(name string, v any) error {
	if n.props == nil {
		n.props = make(map[string]any)
	}
	n.props[name] = v
	return nil
}

// DeleteProp removes an expando property.
func (n *Node) DeleteProp(name string) error {
	delete(n.props, name)
	return nil
}

func (n *Node) indexOf(c *Node) int {
	return slices.Index(n.children, c)
}

func (n *Node) canHaveChildren() bool {
	switch n.Category {
	case CategoryDocument, CategoryElement, CategoryFragment, CategoryShadowRoot, CategoryTemplateContent:
		return true
	}
	return false
}

func (n *Node) isFragmentLike() bool {
	return n.Category == CategoryFragment || n.Category == CategoryTemplateContent
}

// shadowIncludingParent returns the parent, or the host of a shadow root.
func (n *Node) shadowIncludingParent() *Node {
	if n.parent != nil {
		return n.parent
	}
	return n.host
}

// shadowIncludingAncestor reports whether n is an inclusive
// shadow-including ancestor of other.
func (n *Node) shadowIncludingAncestor(other *Node) bool {
	for x := other; x != nil; x = x.shadowIncludingParent() {
		if x == n {
			return true
		}
	}
	return false
}

// Contains reports whether other is an inclusive descendant of n in the
// light tree.
func (n *Node) Contains(other *Node) bool {
	for x := other; x != nil; x = x.parent {
		if x == n {
			return true
		}
	}
	return false
}

// GetRootNode returns the root of n's tree: a document, a detached subtree
// root, or a shadow root.
func (n *Node) GetRootNode() *Node {
	x := n
	for x.parent != nil {
		x = x.parent
	}
	return x
}

// IsConnected reports whether n is reachable from its document through
// parent and shadow host relations.
func (n *Node) IsConnected() bool {
	x := n
	for x.shadowIncludingParent() != nil {
		x = x.shadowIncludingParent()
	}
	return x.Category == CategoryDocument
}

// HasChildNodes reports whether n has children.
func (n *Node) HasChildNodes() bool { return len(n.children) > 0 }

// AppendChild appends child to n. A fragment is replaced by its children.
func (n *Node) AppendChild(child *Node) (*Node, error) {
	defer n.doc.trace(n, method("appendChild"), child)()
	if err := n.insert(child, nil); err != nil {
		return nil, fmt.Errorf("dom: appendChild: %w", err)
	}
	return child, nil
}

// InsertBefore inserts child before ref. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) (*Node, error) {
	defer n.doc.trace(n, method("insertBefore"), child, ref)()
	if err := n.insert(child, ref); err != nil {
		return nil, fmt.Errorf("dom: insertBefore: %w", err)
	}
	return child, nil
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) (*Node, error) {
	defer n.doc.trace(n, method("removeChild"), child)()
	if child == nil || child.parent != n {
		return nil, fmt.Errorf("dom: removeChild: %w", ErrNotFound)
	}
	child.detach()
	return child, nil
}

// ReplaceChild replaces old with child.
func (n *Node) ReplaceChild(child, old *Node) (*Node, error) {
	defer n.doc.trace(n, method("replaceChild"), child, old)()
	if old == nil || old.parent != n {
		return nil, fmt.Errorf("dom: replaceChild: %w", ErrNotFound)
	}
	if err := n.checkInsert(child); err != nil {
		return nil, fmt.Errorf("dom: replaceChild: %w", err)
	}
	if child == old {
		return old, nil
	}
	ref := old.NextSibling()
	if ref == child {
		ref = child.NextSibling()
	}
	old.detach()
	if err := n.insert(child, ref); err != nil {
		return nil, fmt.Errorf("dom: replaceChild: %w", err)
	}
	return old, nil
}

// Normalize merges adjacent text nodes and removes empty ones in the
// subtree of n.
func (n *Node) Normalize() error {
	defer n.doc.trace(n, method("normalize"))()
	for i := 0; i < len(n.children); i++ {
		c := n.children[i]
		switch c.Category {
		case CategoryText:
			for next := c.NextSibling(); next != nil && next.Category == CategoryText; next = c.NextSibling() {
				if err := c.AppendData(next.data); err != nil {
					return err
				}
				if _, err := n.RemoveChild(next); err != nil {
					return err
				}
			}
			if c.data == "" {
				if _, err := n.RemoveChild(c); err != nil {
					return err
				}
				i--
			}
		case CategoryElement:
			if err := c.Normalize(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Append inserts nodes after the last child of n.
func (n *Node) Append(nodes ...*Node) error {
	defer n.doc.trace(n, method("append"), nodeArgs(nodes)...)()
	for _, c := range nodes {
		if _, err := n.InsertBefore(c, nil); err != nil {
			return err
		}
	}
	return nil
}

// Prepend inserts nodes before the first child of n.
func (n *Node) Prepend(nodes ...*Node) error {
	defer n.doc.trace(n, method("prepend"), nodeArgs(nodes)...)()
	ref := n.FirstChild()
	for slices.Contains(nodes, ref) && ref != nil {
		ref = ref.NextSibling()
	}
	for _, c := range nodes {
		if _, err := n.InsertBefore(c, ref); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceChildren removes every child of n and appends nodes.
func (n *Node) ReplaceChildren(nodes ...*Node) error {
	defer n.doc.trace(n, method("replaceChildren"), nodeArgs(nodes)...)()
	for _, c := range nodes {
		if err := n.checkInsert(c); err != nil {
			return fmt.Errorf("dom: replaceChildren: %w", err)
		}
	}
	for len(n.children) > 0 {
		if _, err := n.RemoveChild(n.children[len(n.children)-1]); err != nil {
			return err
		}
	}
	for _, c := range nodes {
		if _, err := n.InsertBefore(c, nil); err != nil {
			return err
		}
	}
	return nil
}

// Before inserts nodes before n in its parent.
func (n *Node) Before(nodes ...*Node) error {
	defer n.doc.trace(n, method("before"), nodeArgs(nodes)...)()
	p := n.parent
	if p == nil {
		return nil
	}
	ref := n
	for slices.Contains(nodes, ref) && ref != nil {
		ref = ref.NextSibling()
	}
	for _, c := range nodes {
		if _, err := p.InsertBefore(c, ref); err != nil {
			return err
		}
	}
	return nil
}

// After inserts nodes after n in its parent.
func (n *Node) After(nodes ...*Node) error {
	defer n.doc.trace(n, method("after"), nodeArgs(nodes)...)()
	p := n.parent
	if p == nil {
		return nil
	}
	ref := n.NextSibling()
	for slices.Contains(nodes, ref) && ref != nil {
		ref = ref.NextSibling()
	}
	for _, c := range nodes {
		if _, err := p.InsertBefore(c, ref); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceWith replaces n with nodes in its parent.
func (n *Node) ReplaceWith(nodes ...*Node) error {
	defer n.doc.trace(n, method("replaceWith"), nodeArgs(nodes)...)()
	p := n.parent
	if p == nil {
		return nil
	}
	ref := n.NextSibling()
	for slices.Contains(nodes, ref) && ref != nil {
		ref = ref.NextSibling()
	}
	if n.parent == p && !slices.Contains(nodes, n) {
		if _, err := p.RemoveChild(n); err != nil {
			return err
		}
	}
	for _, c := range nodes {
		if _, err := p.InsertBefore(c, ref); err != nil {
			return err
		}
	}
	return nil
}

// Remove detaches n from its parent.
func (n *Node) Remove() error {
	defer n.doc.trace(n, method("remove"))()
	if n.parent == nil {
		return nil
	}
	_, err := n.parent.RemoveChild(n)
	return err
}

// CloneNode copies n, and its descendants when deep is true. Shadow roots
// are not cloned; template contents are.
func (n *Node) CloneNode(deep bool) *Node {
	c := &Node{
		Category:  n.Category,
		doc:       n.doc,
		tag:       n.tag,
		namespace: n.namespace,
		data:      n.data,
		name:      n.name,
		attrNS:    n.attrNS,
	}
	for _, a := range n.attrs {
		c.attrs = append(c.attrs, &Node{Category: CategoryAttr, doc: n.doc, name: a.name, attrNS: a.attrNS, data: a.data, ownerElement: c})
	}
	if n.content != nil {
		c.content = &Node{Category: CategoryTemplateContent, doc: n.doc, templateOwner: c}
		if deep {
			for _, x := range n.content.children {
				c.content.insertChildAt(x.CloneNode(true), len(c.content.children))
			}
		}
	}
	if deep {
		for _, x := range n.children {
			c.insertChildAt(x.CloneNode(true), len(c.children))
		}
	}
	return c
}

// IsEqualNode reports whether n and other have the same category, names,
// attributes, data and (recursively) children.
func (n *Node) IsEqualNode(other *Node) bool {
	if other == nil || n.Category != other.Category || n.tag != other.tag ||
		n.namespace != other.namespace || n.data != other.data || n.name != other.name ||
		len(n.attrs) != len(other.attrs) || len(n.children) != len(other.children) {
		return false
	}
	for _, a := range n.attrs {
		v, ok := other.GetAttributeNS(a.attrNS, a.name)
		if !ok || v != a.data {
			return false
		}
	}
	for i := range n.children {
		if !n.children[i].IsEqualNode(other.children[i]) {
			return false
		}
	}
	if (n.content == nil) != (other.content == nil) {
		return false
	}
	if n.content != nil && !n.content.IsEqualNode(other.content) {
		return false
	}
	return true
}

func (n *Node) checkInsert(child *Node) error {
	if child == nil {
		return ErrHierarchy
	}
	if !n.canHaveChildren() {
		return ErrHierarchy
	}
	switch child.Category {
	case CategoryElement, CategoryText, CategoryComment, CategoryFragment:
	case CategoryDoctype:
		if n.Category != CategoryDocument {
			return ErrHierarchy
		}
	default:
		return ErrHierarchy
	}
	if child.Category == CategoryText && n.Category == CategoryDocument {
		return ErrHierarchy
	}
	if child.shadowIncludingAncestor(n) {
		return ErrHierarchy
	}
	return nil
}

// insert places child (or the children of a fragment) before ref, which
// must be a child of n or nil.
func (n *Node) insert(child, ref *Node) error {
	if err := n.checkInsert(child); err != nil {
		return err
	}
	if ref != nil && ref.parent != n {
		return ErrNotFound
	}
	if ref == child {
		ref = child.NextSibling()
	}
	var nodes []*Node
	if child.isFragmentLike() {
		nodes = slices.Clone(child.children)
		for _, c := range nodes {
			c.detach()
		}
	} else {
		child.detach()
		nodes = []*Node{child}
	}
	at := len(n.children)
	if ref != nil {
		at = n.indexOf(ref)
	}
	for i, c := range nodes {
		if c.doc != n.doc {
			c.adopt(n.doc)
		}
		n.insertChildAt(c, at+i)
	}
	for _, c := range nodes {
		n.doc.connected(c)
	}
	return nil
}

func (n *Node) insertChildAt(c *Node, i int) {
	c.parent = n
	n.children = slices.Insert(n.children, i, c)
	n.textChanged()
}

// textChanged drops the parsed sheet of a style element whose text changed.
func (n *Node) textChanged() {
	if n.isHTML("style") {
		n.sheet = nil
	}
}

func (n *Node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	if i := p.indexOf(n); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	n.parent = nil
	p.textChanged()
}

func (n *Node) adopt(d *Document) {
	n.doc = d
	for _, a := range n.attrs {
		a.doc = d
	}
	for _, c := range n.children {
		c.adopt(d)
	}
	if n.content != nil {
		n.content.adopt(d)
	}
	if n.shadow != nil {
		n.shadow.adopt(d)
	}
}

// walkShadowIncluding visits n and its descendants in tree order, entering
// shadow roots right after their host.
func (n *Node) walkShadowIncluding(fn func(*Node)) {
	fn(n)
	if n.shadow != nil {
		n.shadow.walkShadowIncluding(fn)
	}
	for _, c := range slices.Clone(n.children) {
		c.walkShadowIncluding(fn)
	}
}

func nodeArgs(nodes []*Node) []any {
	args := make([]any, len(nodes))
	for i, c := range nodes {
		args[i] = c
	}
	return args
}
