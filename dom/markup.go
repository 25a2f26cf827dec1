package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute namespaces produced by the HTML parser for foreign content.
const (
	NamespaceXLink = "http://www.w3.org/1999/xlink"
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
)

var parserNamespaces = map[string]string{
	"":      NamespaceHTML,
	"svg":   NamespaceSVG,
	"math":  NamespaceMathML,
	"xlink": NamespaceXLink,
	"xml":   NamespaceXML,
	"xmlns": NamespaceXMLNS,
}

func parserPrefix(ns string) string {
	for prefix, uri := range parserNamespaces {
		if uri == ns && prefix != "" {
			return prefix
		}
	}
	return ""
}

// Parse parses an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	d := NewDocument(opts...)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if x := d.fromHTML(c); x != nil {
			d.node.insertChildAt(x, len(d.node.children))
		}
	}
	return d, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(markup string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), opts...)
}

// ParseFragment parses markup as the children of ctx and returns them in a
// detached fragment. A nil or non-element ctx parses in a body context.
func (d *Document) ParseFragment(markup string, ctx *Node) (*Node, error) {
	hctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if ctx != nil && ctx.Category == CategoryElement {
		hctx = &html.Node{
			Type:      html.ElementNode,
			Data:      ctx.tag,
			Namespace: parserPrefix(ctx.namespace),
		}
		if ctx.namespace == NamespaceHTML {
			hctx.DataAtom = atom.Lookup([]byte(ctx.tag))
		}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), hctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	frag := d.CreateDocumentFragment()
	for _, hn := range nodes {
		if x := d.fromHTML(hn); x != nil {
			frag.insertChildAt(x, len(frag.children))
		}
	}
	return frag, nil
}

func (d *Document) fromHTML(hn *html.Node) *Node {
	switch hn.Type {
	case html.TextNode:
		return d.CreateTextNode(hn.Data)
	case html.CommentNode:
		return d.CreateComment(hn.Data)
	case html.DoctypeNode:
		return &Node{Category: CategoryDoctype, doc: d, data: hn.Data}
	case html.ElementNode:
	default:
		return nil
	}
	ns, ok := parserNamespaces[hn.Namespace]
	if !ok {
		ns = hn.Namespace
	}
	el := d.newElement(ns, hn.Data)
	for _, a := range hn.Attr {
		if a.Namespace == "" {
			el.setAttr("", el.attrName(a.Key), a.Val)
			continue
		}
		el.setAttr(parserNamespaces[a.Namespace], a.Namespace+":"+a.Key, a.Val)
	}
	container := el
	if el.content != nil {
		container = el.content
	}
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		if x := d.fromHTML(c); x != nil {
			container.insertChildAt(x, len(container.children))
		}
	}
	return el
}

func toHTML(n *Node) *html.Node {
	var hn *html.Node
	switch n.Category {
	case CategoryText:
		return &html.Node{Type: html.TextNode, Data: n.data}
	case CategoryComment:
		return &html.Node{Type: html.CommentNode, Data: n.data}
	case CategoryDoctype:
		return &html.Node{Type: html.DoctypeNode, Data: n.data}
	case CategoryDocument:
		hn = &html.Node{Type: html.DocumentNode}
	case CategoryElement:
		hn = &html.Node{Type: html.ElementNode, Data: n.tag, Namespace: parserPrefix(n.namespace)}
		if n.namespace == NamespaceHTML {
			hn.DataAtom = atom.Lookup([]byte(n.tag))
		}
		for _, a := range n.attrs {
			attr := html.Attribute{Key: a.name, Val: a.data}
			if a.attrNS != "" {
				attr.Namespace = parserPrefix(a.attrNS)
				attr.Key = localPart(a.name)
			}
			hn.Attr = append(hn.Attr, attr)
		}
	default:
		return nil
	}
	src := n
	if n.content != nil {
		src = n.content
	}
	for _, c := range src.children {
		if x := toHTML(c); x != nil {
			hn.AppendChild(x)
		}
	}
	return hn
}

func renderNode(n *Node) string {
	switch n.Category {
	case CategoryFragment, CategoryTemplateContent, CategoryShadowRoot:
		return renderChildren(n)
	}
	hn := toHTML(n)
	if hn == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, hn); err != nil {
		return ""
	}
	return b.String()
}

func renderChildren(n *Node) string {
	var b strings.Builder
	for _, c := range n.children {
		b.WriteString(renderNode(c))
	}
	return b.String()
}

// Render writes the markup of n to w.
func Render(w io.Writer, n *Node) error {
	_, err := io.WriteString(w, renderNode(n))
	return err
}
