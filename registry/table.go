package registry

// memberKind is how a member of an interface level is exposed.
type memberKind int

const (
	mMethod    memberKind = iota // callable
	mSetter                      // accessor with a setter
	mGetter                      // read-only accessor
	mComposite                   // read-only accessor returning a nested mutable sub-object
)

type member struct {
	name string
	kind memberKind
}

type level struct {
	name    string
	parents []string
	stop    bool // foundational base: members are never intercepted
	members []member
}

func methods(names ...string) []member { return with(mMethod, names...) }
func setters(names ...string) []member { return with(mSetter, names...) }
func getters(names ...string) []member { return with(mGetter, names...) }
func composites(names ...string) []member {
	return with(mComposite, names...)
}

func with(k memberKind, names ...string) []member {
	out := make([]member, len(names))
	for i, n := range names {
		out[i] = member{name: n, kind: k}
	}
	return out
}

func join(groups ...[]member) []member {
	var out []member
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// levels is the interface surface of the dom package, one entry per
// interface or mixin, listing every member whether it mutates or not.
var levels = []level{
	{name: "EventTarget", stop: true, members: methods("addEventListener", "removeEventListener", "dispatchEvent")},
	{name: "URLUtils", stop: true, members: join(methods("toString", "toJSON"), getters("origin", "protocol", "host", "pathname", "search"))},

	{name: "Node", parents: []string{"EventTarget"}, members: join(
		methods("appendChild", "insertBefore", "removeChild", "replaceChild", "normalize",
			"cloneNode", "contains", "isEqualNode", "isSameNode", "hasChildNodes", "getRootNode",
			"compareDocumentPosition", "lookupNamespaceURI", "lookupPrefix", "isDefaultNamespace"),
		setters("textContent", "nodeValue"),
		getters("nodeName", "nodeType", "parentNode", "parentElement", "childNodes", "firstChild",
			"lastChild", "nextSibling", "previousSibling", "ownerDocument", "isConnected"),
	)},
	{name: "ParentNode", members: join(
		methods("append", "prepend", "replaceChildren", "querySelector", "querySelectorAll"),
		getters("children", "firstElementChild", "lastElementChild", "childElementCount"),
	)},
	{name: "ChildNode", members: methods("before", "after", "replaceWith", "remove")},

	{name: "CharacterData", parents: []string{"Node", "ChildNode"}, members: join(
		methods("appendData", "insertData", "deleteData", "replaceData", "substringData"),
		setters("data"),
		getters("length"),
	)},
	{name: "Text", parents: []string{"CharacterData"}, members: join(methods("splitText"), getters("wholeText"))},
	{name: "Comment", parents: []string{"CharacterData"}},

	{name: "Element", parents: []string{"Node", "ParentNode", "ChildNode"}, members: join(
		methods("setAttribute", "setAttributeNS", "removeAttribute", "removeAttributeNS",
			"toggleAttribute", "setAttributeNode", "removeAttributeNode", "attachShadow",
			"insertAdjacentElement", "insertAdjacentHTML", "insertAdjacentText",
			"getAttribute", "getAttributeNS", "hasAttribute", "hasAttributes", "getAttributeNames",
			"getAttributeNode", "getAttributeNodeNS", "matches", "closest",
			"getElementsByTagName", "getElementsByClassName",
			"getBoundingClientRect", "getClientRects", "scrollIntoView"),
		setters("id", "className", "innerHTML", "outerHTML", "slot"),
		getters("tagName", "localName", "namespaceURI", "shadowRoot"),
		composites("classList", "attributes"),
	)},
	{name: "HTMLElement", parents: []string{"Element"}, members: join(
		methods("click", "focus", "blur"),
		setters("hidden", "title", "lang", "dir", "innerText"),
		getters("offsetWidth", "offsetHeight", "offsetParent"),
		composites("style", "dataset"),
	)},
	{name: "HTMLScriptElement", parents: []string{"HTMLElement"}, members: setters("type", "src", "text")},
	{name: "HTMLInputElement", parents: []string{"HTMLElement"}, members: join(
		methods("checkValidity", "reportValidity", "setCustomValidity", "select"),
		setters("value", "checked", "disabled", "placeholder", "type"),
		getters("validity", "form"),
		composites("files"),
	)},
	{name: "HTMLTemplateElement", parents: []string{"HTMLElement"}, members: getters("content")},
	{name: "HTMLStyleElement", parents: []string{"HTMLElement"}, members: composites("sheet")},
	{name: "SVGElement", parents: []string{"Element"}, members: join(
		getters("ownerSVGElement"),
		composites("style", "dataset"),
	)},

	{name: "DocumentFragment", parents: []string{"Node", "ParentNode"}, members: methods("getElementById")},
	{name: "ShadowRoot", parents: []string{"DocumentFragment"}, members: join(
		setters("innerHTML", "adoptedStyleSheets"),
		getters("host", "mode", "delegatesFocus", "slotAssignment"),
	)},
	{name: "Document", parents: []string{"Node", "ParentNode"}, members: join(
		methods("createElement", "createElementNS", "createTextNode", "createComment",
			"createDocumentFragment", "createAttribute", "createAttributeNS",
			"getElementById", "getElementsByTagName", "getElementsByClassName"),
		setters("title"),
		getters("documentElement", "head", "body", "location"),
	)},
	{name: "DocumentType", parents: []string{"Node", "ChildNode"}, members: getters("name", "publicId", "systemId")},
	{name: "Attr", parents: []string{"Node"}, members: join(setters("value"), getters("name", "namespaceURI", "ownerElement"))},
	{name: "Location", parents: []string{"URLUtils"}, members: join(
		methods("assign", "replace", "reload"),
		setters("href", "hash"),
	)},
}

// nonMutating lists callables that read state or only touch state outside
// the tree (events, focus, scrolling, validity, detached node factories).
var nonMutating = map[string]bool{
	"querySelector": true, "querySelectorAll": true, "matches": true, "closest": true,
	"getElementById": true, "getElementsByTagName": true, "getElementsByClassName": true,
	"getBoundingClientRect": true, "getClientRects": true, "scrollIntoView": true,
	"compareDocumentPosition": true, "contains": true, "isEqualNode": true, "isSameNode": true,
	"hasChildNodes": true, "hasAttribute": true, "hasAttributes": true, "getRootNode": true,
	"lookupNamespaceURI": true, "lookupPrefix": true, "isDefaultNamespace": true,
	"cloneNode":        true,
	"addEventListener": true, "removeEventListener": true, "dispatchEvent": true,
	"click": true, "focus": true, "blur": true, "select": true,
	"checkValidity": true, "reportValidity": true, "setCustomValidity": true,
	"getAttribute": true, "getAttributeNS": true, "getAttributeNames": true,
	"getAttributeNode": true, "getAttributeNodeNS": true, "substringData": true,
	"toString": true, "toJSON": true,
	"createElement": true, "createElementNS": true, "createTextNode": true, "createComment": true,
	"createDocumentFragment": true, "createAttribute": true, "createAttributeNS": true,
}

// nestedRule describes the mutating surface of one composite sub-object.
type nestedRule struct {
	methods   []string
	assign    []string // property names accepted for assignment
	anyAssign bool     // any property may be assigned or deleted
}

var nested = map[string]nestedRule{
	"classList":  {methods: []string{"add", "remove", "toggle", "replace"}, assign: []string{"value"}},
	"style":      {methods: []string{"setProperty", "removeProperty"}, anyAssign: true},
	"dataset":    {methods: []string{"set", "delete"}, anyAssign: true},
	"attributes": {methods: []string{"setNamedItem", "removeNamedItem"}},
	"sheet":      {methods: []string{"insertRule", "deleteRule", "replaceSync"}},
	"files":      {methods: []string{"push", "pop", "splice"}},
}
