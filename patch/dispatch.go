package patch

import (
	"github.com/hazyhaar/dommirror/dom"
)

type nodeFunc func(n *dom.Node, a args) error

// nodeMethods are the mutating methods callable on a node.
var nodeMethods = map[string]nodeFunc{
	"appendChild": func(n *dom.Node, a args) error {
		c, err := a.node(0)
		if err != nil {
			return err
		}
		_, err = n.AppendChild(c)
		return err
	},
	"insertBefore": func(n *dom.Node, a args) error {
		c, err := a.node(0)
		if err != nil {
			return err
		}
		var ref *dom.Node
		if a.has(1) {
			if ref, err = a.node(1); err != nil {
				return err
			}
		}
		_, err = n.InsertBefore(c, ref)
		return err
	},
	"removeChild": func(n *dom.Node, a args) error {
		c, err := a.node(0)
		if err != nil {
			return err
		}
		_, err = n.RemoveChild(c)
		return err
	},
	"replaceChild": func(n *dom.Node, a args) error {
		c, err := a.node(0)
		if err != nil {
			return err
		}
		old, err := a.node(1)
		if err != nil {
			return err
		}
		_, err = n.ReplaceChild(c, old)
		return err
	},
	"normalize":       func(n *dom.Node, _ args) error { return n.Normalize() },
	"append":          withNodes((*dom.Node).Append),
	"prepend":         withNodes((*dom.Node).Prepend),
	"replaceChildren": withNodes((*dom.Node).ReplaceChildren),
	"before":          withNodes((*dom.Node).Before),
	"after":           withNodes((*dom.Node).After),
	"replaceWith":     withNodes((*dom.Node).ReplaceWith),
	"remove":          func(n *dom.Node, _ args) error { return n.Remove() },

	"appendData": withString((*dom.Node).AppendData),
	"insertData": func(n *dom.Node, a args) error {
		off, err := a.integer(0)
		if err != nil {
			return err
		}
		data, err := a.str(1)
		if err != nil {
			return err
		}
		return n.InsertData(off, data)
	},
	"deleteData": func(n *dom.Node, a args) error {
		off, err := a.integer(0)
		if err != nil {
			return err
		}
		count, err := a.integer(1)
		if err != nil {
			return err
		}
		return n.DeleteData(off, count)
	},
	"replaceData": func(n *dom.Node, a args) error {
		off, err := a.integer(0)
		if err != nil {
			return err
		}
		count, err := a.integer(1)
		if err != nil {
			return err
		}
		data, err := a.str(2)
		if err != nil {
			return err
		}
		return n.ReplaceData(off, count, data)
	},
	"splitText": func(n *dom.Node, a args) error {
		off, err := a.integer(0)
		if err != nil {
			return err
		}
		_, err = n.SplitText(off)
		return err
	},

	"setAttribute": func(n *dom.Node, a args) error {
		name, err := a.str(0)
		if err != nil {
			return err
		}
		value, err := a.str(1)
		if err != nil {
			return err
		}
		return n.SetAttribute(name, value)
	},
	"setAttributeNS": func(n *dom.Node, a args) error {
		name, err := a.str(1)
		if err != nil {
			return err
		}
		value, err := a.str(2)
		if err != nil {
			return err
		}
		return n.SetAttributeNS(a.optStr(0), name, value)
	},
	"removeAttribute": withString((*dom.Node).RemoveAttribute),
	"removeAttributeNS": func(n *dom.Node, a args) error {
		local, err := a.str(1)
		if err != nil {
			return err
		}
		return n.RemoveAttributeNS(a.optStr(0), local)
	},
	"toggleAttribute": func(n *dom.Node, a args) error {
		name, err := a.str(0)
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
		_, err = n.ToggleAttribute(name, force...)
		return err
	},
	"setAttributeNode": func(n *dom.Node, a args) error {
		attr, err := a.node(0)
		if err != nil {
			return err
		}
		_, err = n.SetAttributeNode(attr)
		return err
	},
	"removeAttributeNode": func(n *dom.Node, a args) error {
		attr, err := a.node(0)
		if err != nil {
			return err
		}
		_, err = n.RemoveAttributeNode(attr)
		return err
	},
	"attachShadow": func(n *dom.Node, a args) error {
		init, err := a.shadowInit(0)
		if err != nil {
			return err
		}
		_, err = n.AttachShadow(init)
		return err
	},
	"insertAdjacentElement": func(n *dom.Node, a args) error {
		where, err := a.str(0)
		if err != nil {
			return err
		}
		el, err := a.node(1)
		if err != nil {
			return err
		}
		_, err = n.InsertAdjacentElement(where, el)
		return err
	},
	"insertAdjacentHTML": withTwoStrings((*dom.Node).InsertAdjacentHTML),
	"insertAdjacentText": withTwoStrings((*dom.Node).InsertAdjacentText),

	"assign":  withString((*dom.Node).Assign),
	"replace": withString((*dom.Node).Replace),
	"reload":  func(n *dom.Node, _ args) error { return n.Reload() },
}

// nodeSetters are the declared property setters of a node. They receive
// the first argument.
var nodeSetters = map[string]nodeFunc{
	"textContent": func(n *dom.Node, a args) error { return n.SetTextContent(a.optStr(0)) },
	"nodeValue":   func(n *dom.Node, a args) error { return n.SetNodeValue(a.optStr(0)) },
	"data":        withString((*dom.Node).SetData),
	"id":          withString((*dom.Node).SetID),
	"className":   withString((*dom.Node).SetClassName),
	"innerHTML":   func(n *dom.Node, a args) error { return n.SetInnerHTML(a.optStr(0)) },
	"outerHTML":   func(n *dom.Node, a args) error { return n.SetOuterHTML(a.optStr(0)) },
	"slot":        withString((*dom.Node).SetSlot),
	"title": func(n *dom.Node, a args) error {
		v, err := a.str(0)
		if err != nil {
			return err
		}
		if n.Category == dom.CategoryDocument {
			return n.OwnerDocument().SetTitle(v)
		}
		return n.SetTitle(v)
	},
	"lang":        withString((*dom.Node).SetLang),
	"dir":         withString((*dom.Node).SetDir),
	"innerText":   withString((*dom.Node).SetInnerText),
	"type":        withString((*dom.Node).SetType),
	"src":         withString((*dom.Node).SetSrc),
	"text":        withString((*dom.Node).SetText),
	"value":       withString((*dom.Node).SetValue),
	"placeholder": withString((*dom.Node).SetPlaceholder),
	"hidden":      withBool((*dom.Node).SetHidden),
	"checked":     withBool((*dom.Node).SetChecked),
	"disabled":    withBool((*dom.Node).SetDisabled),
	"adoptedStyleSheets": func(n *dom.Node, a args) error {
		sheets, err := a.styleSheets(0)
		if err != nil {
			return err
		}
		return n.SetAdoptedStyleSheets(sheets)
	},
	"href": withString((*dom.Node).SetHref),
	"hash": withString((*dom.Node).SetHash),
}

func withNodes(fn func(*dom.Node, ...*dom.Node) error) nodeFunc {
	return func(n *dom.Node, a args) error {
		nodes, err := a.nodes(0)
		if err != nil {
			return err
		}
		return fn(n, nodes...)
	}
}

func withString(fn func(*dom.Node, string) error) nodeFunc {
	return func(n *dom.Node, a args) error {
		s, err := a.str(0)
		if err != nil {
			return err
		}
		return fn(n, s)
	}
}

func withTwoStrings(fn func(*dom.Node, string, string) error) nodeFunc {
	return func(n *dom.Node, a args) error {
		s0, err := a.str(0)
		if err != nil {
			return err
		}
		s1, err := a.str(1)
		if err != nil {
			return err
		}
		return fn(n, s0, s1)
	}
}

func withBool(fn func(*dom.Node, bool) error) nodeFunc {
	return func(n *dom.Node, a args) error {
		b, err := a.boolean(0)
		if err != nil {
			return err
		}
		return fn(n, b)
	}
}
