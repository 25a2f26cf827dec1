package dom

import (
	"fmt"
	"slices"
	"strings"
)

// ShadowMode is the encapsulation mode of a shadow root.
type ShadowMode string

const (
	ShadowOpen   ShadowMode = "open"
	ShadowClosed ShadowMode = "closed"
)

// ShadowRootInit holds the options of AttachShadow.
type ShadowRootInit struct {
	Mode           ShadowMode
	DelegatesFocus bool
	SlotAssignment string // "named" (default) or "manual"
}

// TagName returns the qualified name, upper-cased in the HTML namespace.
func (n *Node) TagName() string {
	if n.namespace == NamespaceHTML {
		return strings.ToUpper(n.tag)
	}
	return n.tag
}

// LocalName returns the element's local name.
func (n *Node) LocalName() string {
	if i := strings.IndexByte(n.tag, ':'); i >= 0 {
		return n.tag[i+1:]
	}
	return n.tag
}

// Namespace returns the element's namespace URI.
func (n *Node) Namespace() string { return n.namespace }

func (n *Node) isHTML(tag string) bool {
	return n.Category == CategoryElement && n.namespace == NamespaceHTML && n.tag == tag
}

// Attrs returns the attribute nodes of an element in order.
func (n *Node) Attrs() []*Node { return slices.Clone(n.attrs) }

// Name returns the qualified name of an attribute.
func (n *Node) Name() string { return n.name }

// AttrNamespace returns the namespace of an attribute.
func (n *Node) AttrNamespace() string { return n.attrNS }

// Value returns the value of an attribute, or the value of an input element.
func (n *Node) Value() string {
	if n.Category == CategoryAttr {
		return n.data
	}
	v, _ := n.GetAttribute("value")
	return v
}

// SetValue sets the value of an attribute or of an input element.
func (n *Node) SetValue(v string) error {
	defer n.doc.trace(n, setter("value"), v)()
	switch {
	case n.Category == CategoryAttr:
		if n.ownerElement != nil {
			v = n.ownerElement.filterAttr(n.attrNS, n.name, v)
		}
		n.data = v
		return nil
	case n.isHTML("input"):
		n.setAttr("", "value", v)
		return nil
	}
	return fmt.Errorf("dom: value on %s: %w", n.Interface(), ErrNotSupported)
}

// GetAttribute returns the value of the named attribute.
func (n *Node) GetAttribute(name string) (string, bool) {
	if a := n.findAttr(n.attrName(name)); a != nil {
		return a.data, true
	}
	return "", false
}

// GetAttributeNS returns the value of the attribute with the given
// namespace and local name.
func (n *Node) GetAttributeNS(ns, local string) (string, bool) {
	if a := n.findAttrNS(ns, local); a != nil {
		return a.data, true
	}
	return "", false
}

// HasAttribute reports whether the named attribute is present.
func (n *Node) HasAttribute(name string) bool {
	return n.findAttr(n.attrName(name)) != nil
}

// GetAttributeNames returns the qualified attribute names in order.
func (n *Node) GetAttributeNames() []string {
	names := make([]string, len(n.attrs))
	for i, a := range n.attrs {
		names[i] = a.name
	}
	return names
}

// GetAttributeNode returns the named attribute node, or nil.
func (n *Node) GetAttributeNode(name string) *Node {
	return n.findAttr(n.attrName(name))
}

// SetAttribute sets the named attribute.
func (n *Node) SetAttribute(name, value string) error {
	defer n.doc.trace(n, method("setAttribute"), name, value)()
	if n.Category != CategoryElement {
		return fmt.Errorf("dom: setAttribute on %s: %w", n.Category, ErrNotSupported)
	}
	if !validName(name) {
		return fmt.Errorf("dom: setAttribute %q: %w", name, ErrInvalidCharacter)
	}
	n.setAttr("", n.attrName(name), value)
	return nil
}

// SetAttributeNS sets a namespaced attribute.
func (n *Node) SetAttributeNS(ns, qualifiedName, value string) error {
	defer n.doc.trace(n, method("setAttributeNS"), ns, qualifiedName, value)()
	if n.Category != CategoryElement {
		return fmt.Errorf("dom: setAttributeNS on %s: %w", n.Category, ErrNotSupported)
	}
	if !validName(qualifiedName) {
		return fmt.Errorf("dom: setAttributeNS %q: %w", qualifiedName, ErrInvalidCharacter)
	}
	if a := n.findAttrNS(ns, localPart(qualifiedName)); a != nil {
		a.data = n.filterAttr(ns, a.name, value)
		return nil
	}
	n.setAttr(ns, qualifiedName, value)
	return nil
}

// RemoveAttribute removes the named attribute.
func (n *Node) RemoveAttribute(name string) error {
	defer n.doc.trace(n, method("removeAttribute"), name)()
	if a := n.findAttr(n.attrName(name)); a != nil {
		n.removeAttr(a)
	}
	return nil
}

// RemoveAttributeNS removes the attribute with the given namespace and
// local name.
func (n *Node) RemoveAttributeNS(ns, local string) error {
	defer n.doc.trace(n, method("removeAttributeNS"), ns, local)()
	if a := n.findAttrNS(ns, local); a != nil {
		n.removeAttr(a)
	}
	return nil
}

// ToggleAttribute toggles a boolean attribute. With force, the attribute
// is added when force[0] is true and removed otherwise. It reports whether
// the attribute is present afterwards.
func (n *Node) ToggleAttribute(name string, force ...bool) (bool, error) {
	var forceArg any = Undefined{}
	if len(force) > 0 {
		forceArg = force[0]
	}
	defer n.doc.trace(n, method("toggleAttribute"), name, forceArg)()
	if !validName(name) {
		return false, fmt.Errorf("dom: toggleAttribute %q: %w", name, ErrInvalidCharacter)
	}
	name = n.attrName(name)
	a := n.findAttr(name)
	switch {
	case a == nil && (len(force) == 0 || force[0]):
		n.setAttr("", name, "")
		return true, nil
	case a != nil && (len(force) == 0 || !force[0]):
		n.removeAttr(a)
		return false, nil
	}
	return a != nil, nil
}

// SetAttributeNode attaches attr to n, replacing an attribute of the same
// name. It returns the replaced attribute.
func (n *Node) SetAttributeNode(attr *Node) (*Node, error) {
	defer n.doc.trace(n, method("setAttributeNode"), attr)()
	return n.setAttrNode(attr)
}

// RemoveAttributeNode detaches attr from n.
func (n *Node) RemoveAttributeNode(attr *Node) (*Node, error) {
	defer n.doc.trace(n, method("removeAttributeNode"), attr)()
	if attr == nil || attr.ownerElement != n {
		return nil, fmt.Errorf("dom: removeAttributeNode: %w", ErrNotFound)
	}
	n.removeAttr(attr)
	return attr, nil
}

func (n *Node) setAttrNode(attr *Node) (*Node, error) {
	if attr == nil || attr.Category != CategoryAttr {
		return nil, fmt.Errorf("dom: setAttributeNode: %w", ErrHierarchy)
	}
	if attr.ownerElement == n {
		return attr, nil
	}
	if attr.ownerElement != nil {
		return nil, fmt.Errorf("dom: setAttributeNode: %w", ErrInUseAttribute)
	}
	attr.data = n.filterAttr(attr.attrNS, attr.name, attr.data)
	attr.doc = n.doc
	attr.ownerElement = n
	old := n.findAttrNS(attr.attrNS, localPart(attr.name))
	if old != nil {
		i := slices.Index(n.attrs, old)
		n.attrs[i] = attr
		old.ownerElement = nil
		return old, nil
	}
	n.attrs = append(n.attrs, attr)
	return nil, nil
}

// ID returns the id attribute.
func (n *Node) ID() string {
	v, _ := n.GetAttribute("id")
	return v
}

// SetID sets the id attribute.
func (n *Node) SetID(id string) error {
	defer n.doc.trace(n, setter("id"), id)()
	return n.reflect("id", id)
}

// ClassName returns the class attribute.
func (n *Node) ClassName() string {
	v, _ := n.GetAttribute("class")
	return v
}

// SetClassName sets the class attribute.
func (n *Node) SetClassName(v string) error {
	defer n.doc.trace(n, setter("className"), v)()
	return n.reflect("class", v)
}

// SetSlot sets the slot attribute.
func (n *Node) SetSlot(v string) error {
	defer n.doc.trace(n, setter("slot"), v)()
	return n.reflect("slot", v)
}

// SetTitle sets the title attribute of an HTML element.
func (n *Node) SetTitle(v string) error {
	defer n.doc.trace(n, setter("title"), v)()
	return n.reflect("title", v)
}

// SetLang sets the lang attribute.
func (n *Node) SetLang(v string) error {
	defer n.doc.trace(n, setter("lang"), v)()
	return n.reflect("lang", v)
}

// SetDir sets the dir attribute.
func (n *Node) SetDir(v string) error {
	defer n.doc.trace(n, setter("dir"), v)()
	return n.reflect("dir", v)
}

// Hidden reports whether the hidden attribute is present.
func (n *Node) Hidden() bool { return n.HasAttribute("hidden") }

// SetHidden adds or removes the hidden attribute.
func (n *Node) SetHidden(v bool) error {
	defer n.doc.trace(n, setter("hidden"), v)()
	return n.reflectBool("hidden", v)
}

// Checked reports whether the checked attribute is present.
func (n *Node) Checked() bool { return n.HasAttribute("checked") }

// SetChecked adds or removes the checked attribute of an input.
func (n *Node) SetChecked(v bool) error {
	defer n.doc.trace(n, setter("checked"), v)()
	return n.reflectBool("checked", v)
}

// Disabled reports whether the disabled attribute is present.
func (n *Node) Disabled() bool { return n.HasAttribute("disabled") }

// SetDisabled adds or removes the disabled attribute.
func (n *Node) SetDisabled(v bool) error {
	defer n.doc.trace(n, setter("disabled"), v)()
	return n.reflectBool("disabled", v)
}

// SetPlaceholder sets the placeholder attribute.
func (n *Node) SetPlaceholder(v string) error {
	defer n.doc.trace(n, setter("placeholder"), v)()
	return n.reflect("placeholder", v)
}

// CheckValidity reports whether a required input has a value.
func (n *Node) CheckValidity() bool {
	if !n.isHTML("input") || !n.HasAttribute("required") {
		return true
	}
	return n.Value() != ""
}

// Type returns the type attribute.
func (n *Node) Type() string {
	v, _ := n.GetAttribute("type")
	return v
}

// SetType sets the type attribute of a script element.
func (n *Node) SetType(v string) error {
	defer n.doc.trace(n, setter("type"), v)()
	return n.reflect("type", v)
}

// SetSrc sets the src attribute of a script element.
func (n *Node) SetSrc(v string) error {
	defer n.doc.trace(n, setter("src"), v)()
	return n.reflect("src", v)
}

// SetText replaces the text of a script element.
func (n *Node) SetText(v string) error {
	defer n.doc.trace(n, setter("text"), v)()
	return n.SetTextContent(v)
}

// SetInnerText replaces the children with text, turning line feeds into
// br elements.
func (n *Node) SetInnerText(v string) error {
	defer n.doc.trace(n, setter("innerText"), v)()
	if n.Category != CategoryElement {
		return fmt.Errorf("dom: innerText on %s: %w", n.Category, ErrNotSupported)
	}
	var nodes []*Node
	for i, line := range strings.Split(v, "\n") {
		if i > 0 {
			nodes = append(nodes, n.doc.CreateElement("br"))
		}
		if line != "" {
			nodes = append(nodes, n.doc.CreateTextNode(line))
		}
	}
	return n.ReplaceChildren(nodes...)
}

func (n *Node) reflect(name, v string) error {
	if n.Category != CategoryElement {
		return fmt.Errorf("dom: %s on %s: %w", name, n.Category, ErrNotSupported)
	}
	n.setAttr("", name, v)
	return nil
}

func (n *Node) reflectBool(name string, v bool) error {
	if n.Category != CategoryElement {
		return fmt.Errorf("dom: %s on %s: %w", name, n.Category, ErrNotSupported)
	}
	if !v {
		if a := n.findAttr(name); a != nil {
			n.removeAttr(a)
		}
		return nil
	}
	if n.findAttr(name) == nil {
		n.setAttr("", name, "")
	}
	return nil
}

// AttachShadow attaches a shadow root. Tracers may rewrite init first.
func (n *Node) AttachShadow(init ShadowRootInit) (*Node, error) {
	init = n.doc.adjustShadowInit(n, init)
	defer n.doc.trace(n, method("attachShadow"), init)()
	if n.Category != CategoryElement || n.namespace != NamespaceHTML {
		return nil, fmt.Errorf("dom: attachShadow on %s: %w", n.Interface(), ErrNotSupported)
	}
	if n.shadow != nil {
		return nil, fmt.Errorf("dom: attachShadow: %w", ErrNotSupported)
	}
	if init.Mode != ShadowOpen && init.Mode != ShadowClosed {
		return nil, fmt.Errorf("dom: attachShadow mode %q: %w", init.Mode, ErrSyntax)
	}
	if init.SlotAssignment == "" {
		init.SlotAssignment = "named"
	}
	n.shadow = &Node{Category: CategoryShadowRoot, doc: n.doc, host: n, shadowInit: init}
	return n.shadow, nil
}

// ShadowRoot returns the shadow root of an element when it is open.
func (n *Node) ShadowRoot() *Node {
	if n.shadow == nil || n.shadow.shadowInit.Mode != ShadowOpen {
		return nil
	}
	return n.shadow
}

// Init returns the options a shadow root was attached with.
func (n *Node) Init() ShadowRootInit { return n.shadowInit }

// AdoptedStyleSheets returns the stylesheets adopted by a shadow root.
func (n *Node) AdoptedStyleSheets() []*StyleSheet { return slices.Clone(n.adopted) }

// SetAdoptedStyleSheets replaces the stylesheets adopted by a shadow root.
func (n *Node) SetAdoptedStyleSheets(sheets []*StyleSheet) error {
	defer n.doc.trace(n, setter("adoptedStyleSheets"), sheets)()
	if n.Category != CategoryShadowRoot {
		return fmt.Errorf("dom: adoptedStyleSheets on %s: %w", n.Category, ErrNotSupported)
	}
	n.adopted = slices.Clone(sheets)
	return nil
}

// Content returns the content fragment of a template element.
func (n *Node) Content() *Node { return n.content }

// InsertAdjacentElement inserts el relative to n. where is one of
// beforebegin, afterbegin, beforeend, afterend.
func (n *Node) InsertAdjacentElement(where string, el *Node) (*Node, error) {
	defer n.doc.trace(n, method("insertAdjacentElement"), where, el)()
	if el == nil || el.Category != CategoryElement {
		return nil, fmt.Errorf("dom: insertAdjacentElement: %w", ErrHierarchy)
	}
	return n.insertAdjacent(where, el)
}

// InsertAdjacentText inserts a text node relative to n.
func (n *Node) InsertAdjacentText(where, data string) error {
	defer n.doc.trace(n, method("insertAdjacentText"), where, data)()
	_, err := n.insertAdjacent(where, n.doc.CreateTextNode(data))
	return err
}

// InsertAdjacentHTML parses markup and inserts the result relative to n.
func (n *Node) InsertAdjacentHTML(where, markup string) error {
	defer n.doc.trace(n, method("insertAdjacentHTML"), where, markup)()
	ctx := n
	switch strings.ToLower(where) {
	case "beforebegin", "afterend":
		ctx = n.parent
		if ctx == nil || ctx.Category == CategoryDocument {
			return fmt.Errorf("dom: insertAdjacentHTML: %w", ErrNoModification)
		}
	case "afterbegin", "beforeend":
	default:
		return fmt.Errorf("dom: insertAdjacentHTML %q: %w", where, ErrSyntax)
	}
	frag, err := n.doc.ParseFragment(markup, ctx)
	if err != nil {
		return err
	}
	_, err = n.insertAdjacent(where, frag)
	return err
}

func (n *Node) insertAdjacent(where string, node *Node) (*Node, error) {
	switch strings.ToLower(where) {
	case "beforebegin":
		if n.parent == nil {
			return nil, nil
		}
		return n.parent.InsertBefore(node, n)
	case "afterbegin":
		return n.InsertBefore(node, n.FirstChild())
	case "beforeend":
		return n.InsertBefore(node, nil)
	case "afterend":
		if n.parent == nil {
			return nil, nil
		}
		return n.parent.InsertBefore(node, n.NextSibling())
	}
	return nil, fmt.Errorf("dom: insert adjacent %q: %w", where, ErrSyntax)
}

// InnerHTML serialises the children of n.
func (n *Node) InnerHTML() string {
	if n.content != nil {
		return renderChildren(n.content)
	}
	return renderChildren(n)
}

// SetInnerHTML replaces the children of an element or shadow root with
// the parsed markup. Template elements receive it in their content.
func (n *Node) SetInnerHTML(markup string) error {
	defer n.doc.trace(n, setter("innerHTML"), markup)()
	var ctx, container *Node
	switch n.Category {
	case CategoryElement:
		ctx, container = n, n
		if n.content != nil {
			container = n.content
		}
	case CategoryShadowRoot:
		ctx, container = n.host, n
	default:
		return fmt.Errorf("dom: innerHTML on %s: %w", n.Category, ErrNotSupported)
	}
	frag, err := n.doc.ParseFragment(markup, ctx)
	if err != nil {
		return err
	}
	return container.ReplaceChildren(frag)
}

// OuterHTML serialises n.
func (n *Node) OuterHTML() string { return renderNode(n) }

// SetOuterHTML replaces n in its parent with the parsed markup.
func (n *Node) SetOuterHTML(markup string) error {
	defer n.doc.trace(n, setter("outerHTML"), markup)()
	p := n.parent
	if p == nil {
		return nil
	}
	if p.Category == CategoryDocument {
		return fmt.Errorf("dom: outerHTML: %w", ErrNoModification)
	}
	ctx := p
	if p.Category != CategoryElement {
		ctx = n.doc.CreateElement("body")
	}
	frag, err := n.doc.ParseFragment(markup, ctx)
	if err != nil {
		return err
	}
	_, err = p.ReplaceChild(frag, n)
	return err
}

// ClassList returns the class token list of an element.
func (n *Node) ClassList() *TokenList {
	if n.Category != CategoryElement {
		return nil
	}
	if n.classList == nil {
		n.classList = &TokenList{owner: n, attr: "class", prop: "classList"}
	}
	return n.classList
}

// Style returns the inline style declaration of an element.
func (n *Node) Style() *StyleDeclaration {
	if n.Category != CategoryElement {
		return nil
	}
	if n.style == nil {
		n.style = &StyleDeclaration{owner: n}
	}
	return n.style
}

// Dataset returns the data-* attribute map of an element.
func (n *Node) Dataset() *StringMap {
	if n.Category != CategoryElement {
		return nil
	}
	if n.dataset == nil {
		n.dataset = &StringMap{owner: n}
	}
	return n.dataset
}

// Attributes returns the attribute map of an element.
func (n *Node) Attributes() *NamedNodeMap {
	if n.Category != CategoryElement {
		return nil
	}
	if n.attrMap == nil {
		n.attrMap = &NamedNodeMap{owner: n}
	}
	return n.attrMap
}

// Sheet returns the stylesheet of a style element, parsed from its text on
// first access.
func (n *Node) Sheet() *StyleSheet {
	if !n.isHTML("style") {
		return nil
	}
	if n.sheet == nil {
		n.sheet = &StyleSheet{owner: n}
		n.sheet.rules = splitRules(n.TextContent())
	}
	return n.sheet
}

// Files returns the file list of an input element.
func (n *Node) Files() *FileList {
	if !n.isHTML("input") {
		return nil
	}
	if n.files == nil {
		n.files = &FileList{owner: n}
	}
	return n.files
}

func (n *Node) attrName(name string) string {
	if n.namespace == NamespaceHTML {
		return strings.ToLower(name)
	}
	return name
}

func (n *Node) findAttr(name string) *Node {
	for _, a := range n.attrs {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (n *Node) findAttrNS(ns, local string) *Node {
	for _, a := range n.attrs {
		if a.attrNS == ns && localPart(a.name) == local {
			return a
		}
	}
	return nil
}

// setAttr sets an attribute without tracing.
func (n *Node) setAttr(ns, name, value string) {
	value = n.filterAttr(ns, name, value)
	if a := n.findAttr(name); a != nil && a.attrNS == ns {
		a.data = value
		return
	}
	n.attrs = append(n.attrs, &Node{Category: CategoryAttr, doc: n.doc, name: name, attrNS: ns, data: value, ownerElement: n})
}

func (n *Node) removeAttr(a *Node) {
	if n.isInertScriptType(a.attrNS, a.name) {
		a.data = InertScriptType
		return
	}
	if i := slices.Index(n.attrs, a); i >= 0 {
		n.attrs = slices.Delete(n.attrs, i, i+1)
	}
	a.ownerElement = nil
}

// filterAttr applies the inert script rule to an attribute value about to
// be stored on n.
func (n *Node) filterAttr(ns, name, value string) string {
	if n.isInertScriptType(ns, name) && executableScriptType(value) {
		return InertScriptType
	}
	return value
}

func (n *Node) isInertScriptType(ns, name string) bool {
	return n.doc != nil && n.doc.inertScripts && n.isHTML("script") && ns == "" && name == "type"
}

// executableScriptType reports whether a script with this type attribute
// would run.
func executableScriptType(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	switch v {
	case "", "module", "importmap", "speculationrules",
		"text/javascript", "application/javascript", "text/ecmascript", "application/ecmascript",
		"application/x-javascript", "application/x-ecmascript", "text/x-javascript", "text/x-ecmascript",
		"text/jscript", "text/livescript", "text/javascript1.0", "text/javascript1.1",
		"text/javascript1.2", "text/javascript1.3", "text/javascript1.4", "text/javascript1.5":
		return true
	}
	return false
}

func localPart(qualified string) string {
	if i := strings.IndexByte(qualified, ':'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r <= 0x20, r == 0x7f:
			return false
		case strings.ContainsRune("\"'>/=", r):
			return false
		}
	}
	return true
}
