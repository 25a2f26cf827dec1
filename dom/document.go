// Package dom is an in-memory document tree modelled on the browser DOM:
// elements, character data, fragments, shadow roots, template contents,
// attributes and the document location, together with the composite
// sub-objects hanging off elements (class tokens, inline style, dataset,
// attribute map, stylesheet, file list).
//
// Every mutating operation announces itself to the Tracers registered on
// its Document before it runs. Convenience operations are built on the
// lower-level ones, so a tracer sees nested calls at increasing depth.
package dom

import (
	"fmt"
	"strings"
)

// Namespaces understood by the element factory.
const (
	NamespaceHTML   = "http://www.w3.org/1999/xhtml"
	NamespaceSVG    = "http://www.w3.org/2000/svg"
	NamespaceMathML = "http://www.w3.org/1998/Math/MathML"
)

// OpKind tells how an operation was invoked.
type OpKind int

const (
	OpMethod OpKind = iota // a method call
	OpSetter               // a declared property setter
	OpAssign               // a plain property assignment on a composite sub-object
	OpDelete               // a property deletion on a composite sub-object
)

func (k OpKind) String() string {
	switch k {
	case OpMethod:
		return "method"
	case OpSetter:
		return "setter"
	case OpAssign:
		return "assign"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op names a traced operation. Path has one segment for operations on the
// node itself and two for operations on a composite sub-object, e.g.
// ["classList", "add"].
type Op struct {
	Path []string
	Kind OpKind
}

func (o Op) String() string { return strings.Join(o.Path, ".") }

// Name returns the final segment of the path.
func (o Op) Name() string {
	if len(o.Path) == 0 {
		return ""
	}
	return o.Path[len(o.Path)-1]
}

func method(name string) Op { return Op{Path: []string{name}, Kind: OpMethod} }
func setter(name string) Op { return Op{Path: []string{name}, Kind: OpSetter} }
func nested(prop, name string, k OpKind) Op {
	return Op{Path: []string{prop, name}, Kind: k}
}

// Tracer observes operations on a Document.
//
// Enter runs before the operation takes effect; the returned function runs
// when the operation returns, including when it panics. Lifecycle wraps the
// execution of a custom element connected hook. ShadowInit may rewrite the
// options of a shadow attachment before the shadow root is created.
type Tracer interface {
	Enter(target *Node, op Op, args []any) (exit func())
	Lifecycle(n *Node, hook func())
	ShadowInit(host *Node, init ShadowRootInit) ShadowRootInit
}

// ElementDefinition is a custom element definition.
type ElementDefinition struct {
	// Connected runs every time an element with the defined tag becomes
	// connected to its document.
	Connected func(n *Node)
}

// Undefined stands for an optional argument the caller left out.
type Undefined struct{}

// InertScriptType is the type stored on script elements of documents
// created with WithInertScripts.
const InertScriptType = "text/x-dommirror-inert"

// Option configures a Document.
type Option func(*Document)

// WithInertScripts neutralises every script element of the document: its
// type is rewritten to InertScriptType at creation and whenever an
// executable type is set afterwards.
func WithInertScripts() Option {
	return func(d *Document) { d.inertScripts = true }
}

// WithURL sets the initial location of the document.
func WithURL(href string) Option {
	return func(d *Document) { d.location.data = href }
}

// Document owns a tree of nodes.
type Document struct {
	node         *Node
	location     *Node
	tracers      []Tracer
	defs         map[string]ElementDefinition
	inertScripts bool
}

// NewDocument creates an empty document.
func NewDocument(opts ...Option) *Document {
	d := &Document{defs: make(map[string]ElementDefinition)}
	d.node = &Node{Category: CategoryDocument, doc: d}
	d.location = &Node{Category: CategoryLocation, doc: d, data: "about:blank"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// NewHTMLDocument creates a document with a doctype and empty html, head
// and body elements.
func NewHTMLDocument(opts ...Option) *Document {
	d := NewDocument(opts...)
	d.node.insertChildAt(&Node{Category: CategoryDoctype, doc: d, data: "html"}, 0)
	html := d.CreateElement("html")
	html.insertChildAt(d.CreateElement("head"), 0)
	html.insertChildAt(d.CreateElement("body"), 1)
	d.node.insertChildAt(html, 1)
	return d
}

// Node returns the document node.
func (d *Document) Node() *Node { return d.node }

// Location returns the document's location pseudo-node.
func (d *Document) Location() *Node { return d.location }

// InertScripts reports whether script elements of the document are
// neutralised.
func (d *Document) InertScripts() bool { return d.inertScripts }

// AddTracer registers t for every operation of the document.
func (d *Document) AddTracer(t Tracer) {
	d.tracers = append(d.tracers, t)
}

// RemoveTracer unregisters t.
func (d *Document) RemoveTracer(t Tracer) {
	for i, x := range d.tracers {
		if x == t {
			d.tracers = append(d.tracers[:i:i], d.tracers[i+1:]...)
			return
		}
	}
}

// Define registers a custom element definition for tag.
func (d *Document) Define(tag string, def ElementDefinition) error {
	tag = strings.ToLower(tag)
	if !strings.Contains(tag, "-") {
		return fmt.Errorf("dom: define %q: %w", tag, ErrSyntax)
	}
	if _, ok := d.defs[tag]; ok {
		return fmt.Errorf("dom: define %q: %w", tag, ErrNotSupported)
	}
	d.defs[tag] = def
	return nil
}

// DocumentElement returns the root element, or nil.
func (d *Document) DocumentElement() *Node {
	for _, c := range d.node.children {
		if c.Category == CategoryElement {
			return c
		}
	}
	return nil
}

// Head returns the head element, or nil.
func (d *Document) Head() *Node { return d.rootChild("head") }

// Body returns the body element, or nil.
func (d *Document) Body() *Node { return d.rootChild("body") }

func (d *Document) rootChild(tag string) *Node {
	html := d.DocumentElement()
	if html == nil {
		return nil
	}
	for _, c := range html.children {
		if c.Category == CategoryElement && c.tag == tag && c.namespace == NamespaceHTML {
			return c
		}
	}
	return nil
}

// Title returns the text of the first title element.
func (d *Document) Title() string {
	if t := d.node.QuerySelector("title"); t != nil {
		return strings.TrimSpace(t.TextContent())
	}
	return ""
}

// SetTitle replaces the text of the title element, creating it in the head
// when missing.
func (d *Document) SetTitle(title string) error {
	defer d.trace(d.node, setter("title"), title)()
	t := d.node.QuerySelector("title")
	if t == nil {
		head := d.Head()
		if head == nil {
			return nil
		}
		t = d.CreateElement("title")
		if _, err := head.AppendChild(t); err != nil {
			return err
		}
	}
	return t.SetTextContent(title)
}

// GetElementByID returns the first element in tree order with the given id.
func (d *Document) GetElementByID(id string) *Node {
	return d.node.GetElementByID(id)
}

// CreateElement creates an HTML element.
func (d *Document) CreateElement(tag string) *Node {
	return d.newElement(NamespaceHTML, tag)
}

// CreateElementNS creates an element in the given namespace. An empty
// namespace creates an element with no namespace.
func (d *Document) CreateElementNS(ns, qualifiedName string) *Node {
	return d.newElement(ns, qualifiedName)
}

// CreateTextNode creates a text node.
func (d *Document) CreateTextNode(data string) *Node {
	return &Node{Category: CategoryText, doc: d, data: data}
}

// CreateComment creates a comment node.
func (d *Document) CreateComment(data string) *Node {
	return &Node{Category: CategoryComment, doc: d, data: data}
}

// CreateDocumentType creates a detached doctype.
func (d *Document) CreateDocumentType(name string) *Node {
	return &Node{Category: CategoryDoctype, doc: d, data: name}
}

// CreateDocumentFragment creates an empty fragment.
func (d *Document) CreateDocumentFragment() *Node {
	return &Node{Category: CategoryFragment, doc: d}
}

// CreateAttribute creates a detached attribute with no namespace.
func (d *Document) CreateAttribute(name string) (*Node, error) {
	if !validName(name) {
		return nil, fmt.Errorf("dom: create attribute %q: %w", name, ErrInvalidCharacter)
	}
	return &Node{Category: CategoryAttr, doc: d, name: strings.ToLower(name)}, nil
}

// CreateAttributeNS creates a detached namespaced attribute.
func (d *Document) CreateAttributeNS(ns, qualifiedName string) (*Node, error) {
	if !validName(qualifiedName) {
		return nil, fmt.Errorf("dom: create attribute %q: %w", qualifiedName, ErrInvalidCharacter)
	}
	return &Node{Category: CategoryAttr, doc: d, name: qualifiedName, attrNS: ns}, nil
}

func (d *Document) newElement(ns, tag string) *Node {
	if ns == NamespaceHTML {
		tag = strings.ToLower(tag)
	}
	n := &Node{Category: CategoryElement, doc: d, tag: tag, namespace: ns}
	if n.isHTML("template") {
		n.content = &Node{Category: CategoryTemplateContent, doc: d, templateOwner: n}
	}
	if d.inertScripts && n.isHTML("script") {
		n.attrs = append(n.attrs, &Node{Category: CategoryAttr, doc: d, name: "type", data: InertScriptType, ownerElement: n})
	}
	return n
}

// trace announces an operation to every tracer and returns the function
// closing it. Use as `defer d.trace(...)()`.
func (d *Document) trace(target *Node, op Op, args ...any) func() {
	if len(d.tracers) == 0 {
		return func() {}
	}
	tracers := append([]Tracer(nil), d.tracers...)
	exits := make([]func(), 0, len(tracers))
	for _, t := range tracers {
		exits = append(exits, t.Enter(target, op, args))
	}
	return func() {
		for i := len(exits) - 1; i >= 0; i-- {
			exits[i]()
		}
	}
}

func (d *Document) runLifecycle(n *Node, hook func(*Node)) {
	run := func() { hook(n) }
	for _, t := range d.tracers {
		inner, t := run, t
		run = func() { t.Lifecycle(n, inner) }
	}
	run()
}

func (d *Document) adjustShadowInit(host *Node, init ShadowRootInit) ShadowRootInit {
	for _, t := range d.tracers {
		init = t.ShadowInit(host, init)
	}
	return init
}

// connected runs the connected hooks of n and its shadow-including
// descendants, in tree order.
func (d *Document) connected(n *Node) {
	if len(d.defs) == 0 || !n.IsConnected() {
		return
	}
	var targets []*Node
	n.walkShadowIncluding(func(x *Node) {
		if x.Category != CategoryElement {
			return
		}
		if def, ok := d.defs[x.tag]; ok && def.Connected != nil {
			targets = append(targets, x)
		}
	})
	for _, x := range targets {
		d.runLifecycle(x, d.defs[x.tag].Connected)
	}
}
