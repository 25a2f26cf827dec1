package codec

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
)

// Decoder rebuilds live values on the replica side.
type Decoder struct {
	root   *dom.Node
	doc    *dom.Document
	logger *slog.Logger
}

// NewDecoder returns a Decoder resolving addresses against root and
// creating nodes in root's document.
func NewDecoder(root *dom.Node, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{root: root, doc: root.OwnerDocument(), logger: logger}
}

// DecodeArguments decodes the arguments of one record in order.
func (d *Decoder) DecodeArguments(args []mutation.Arg) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := d.DecodeArgument(a)
		if err != nil {
			return nil, fmt.Errorf("codec: argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// DecodeArgument turns a wire argument into the live value the replica
// operation expects.
func (d *Decoder) DecodeArgument(a mutation.Arg) (any, error) {
	switch v := a.(type) {
	case mutation.Scalar:
		return v.Value, nil
	case mutation.Null:
		return nil, nil
	case mutation.Undefined:
		return dom.Undefined{}, nil
	case mutation.Date:
		return time.UnixMilli(v.Millis).UTC(), nil
	case mutation.File:
		return &dom.File{Name: v.Name, Type: v.Type, LastModified: time.UnixMilli(v.LastModified).UTC()}, nil
	case mutation.Address:
		return address.GetNodeByPath(d.root, v)
	case mutation.Data:
		return copyData(v)
	case mutation.StyleSheets:
		return d.styleSheets(v), nil
	case mutation.Snapshot:
		return d.DecodeSnapshot(v)
	}
	return nil, fmt.Errorf("%T: %w", a, ErrUnsupportedArg)
}

// DecodeSnapshot builds a detached node from s, children first.
// Attributes the replica rejects and style rules it cannot parse are
// logged and skipped.
func (d *Decoder) DecodeSnapshot(s mutation.Snapshot) (*dom.Node, error) {
	switch v := s.(type) {
	case mutation.TextSnapshot:
		return d.doc.CreateTextNode(v.Data), nil
	case mutation.CommentSnapshot:
		return d.doc.CreateComment(v.Data), nil
	case mutation.FragmentSnapshot:
		frag := d.doc.CreateDocumentFragment()
		if err := d.appendChildren(frag, v.Children); err != nil {
			return nil, err
		}
		return frag, nil
	case mutation.TemplateSnapshot:
		t := d.doc.CreateElement("template")
		if v.Content != nil {
			if err := d.appendChildren(t.Content(), v.Content.Children); err != nil {
				return nil, err
			}
		}
		d.setAttributes(t, v.Attrs)
		return t, nil
	case mutation.AttrSnapshot:
		return d.attr(v)
	case mutation.ElementSnapshot:
		return d.element(v)
	}
	return nil, fmt.Errorf("%T: %w", s, ErrUnsupportedNode)
}

func (d *Decoder) element(v mutation.ElementSnapshot) (*dom.Node, error) {
	ns := v.Special.Namespace
	if ns == "" {
		ns = dom.NamespaceHTML
	}
	el := d.doc.CreateElementNS(ns, v.Tag)
	if err := d.appendChildren(el, v.Children); err != nil {
		return nil, err
	}
	d.setAttributes(el, v.Attrs)

	if v.Special.ShadowRoot == nil {
		return el, nil
	}
	init := dom.ShadowRootInit{Mode: dom.ShadowOpen}
	if v.Special.Init != nil {
		init.DelegatesFocus = v.Special.Init.DelegatesFocus
		init.SlotAssignment = v.Special.Init.SlotAssignment
	}
	sr, err := el.AttachShadow(init)
	if err != nil {
		return nil, fmt.Errorf("codec: <%s> shadow root: %w", v.Tag, err)
	}
	if err := d.appendChildren(sr, v.Special.ShadowRoot.Children); err != nil {
		return nil, err
	}
	if len(v.Special.AdoptedStyleSheets) > 0 {
		if err := sr.SetAdoptedStyleSheets(d.styleSheets(v.Special.AdoptedStyleSheets)); err != nil {
			return nil, fmt.Errorf("codec: <%s> adopted stylesheets: %w", v.Tag, err)
		}
	}
	return el, nil
}

func (d *Decoder) attr(v mutation.AttrSnapshot) (*dom.Node, error) {
	var a *dom.Node
	var err error
	if v.Namespace != "" {
		a, err = d.doc.CreateAttributeNS(v.Namespace, v.Name)
	} else {
		a, err = d.doc.CreateAttribute(v.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: attribute: %w", err)
	}
	if err := a.SetValue(v.Value); err != nil {
		return nil, fmt.Errorf("codec: attribute %q: %w", v.Name, err)
	}
	return a, nil
}

func (d *Decoder) appendChildren(parent *dom.Node, children []mutation.Snapshot) error {
	for _, c := range children {
		n, err := d.DecodeSnapshot(c)
		if err != nil {
			return err
		}
		if _, err := parent.AppendChild(n); err != nil {
			return fmt.Errorf("codec: append %s to %s: %w", n.Category, parent.Category, err)
		}
	}
	return nil
}

func (d *Decoder) setAttributes(el *dom.Node, attrs mutation.Attrs) {
	for _, a := range attrs {
		if err := el.SetAttribute(a.Name, a.Value); err != nil {
			d.logger.Warn("codec: attribute rejected",
				"tag", el.TagName(), "name", a.Name, "error", err)
		}
	}
}

// styleSheets builds constructed stylesheets rule by rule. A rule the
// replica rejects is dropped; the sheet keeps the others.
func (d *Decoder) styleSheets(sheets [][]string) []*dom.StyleSheet {
	out := make([]*dom.StyleSheet, 0, len(sheets))
	for i, rules := range sheets {
		s := dom.NewStyleSheet()
		for _, r := range rules {
			if _, err := s.InsertRule(r, s.Len()); err != nil {
				d.logger.Warn("codec: style rule rejected", "sheet", i, "rule", r, "error", err)
			}
		}
		out = append(out, s)
	}
	return out
}
