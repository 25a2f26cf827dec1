package dom

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aymerick/douceur/parser"
)

// StyleDeclaration is the inline style of an element, backed by its style
// attribute.
type StyleDeclaration struct {
	owner *Node
}

type declaration struct {
	property  string
	value     string
	important bool
}

func (s *StyleDeclaration) declarations() []declaration {
	text, _ := s.owner.GetAttribute("style")
	return parseDeclarations(text)
}

func parseDeclarations(text string) []declaration {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// The parser drops the value of a last declaration without ';'.
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		return nil
	}
	var out []declaration
	for _, d := range decls {
		out = setDeclaration(out, declaration{
			property:  strings.ToLower(strings.TrimSpace(d.Property)),
			value:     strings.TrimSpace(d.Value),
			important: d.Important,
		})
	}
	return out
}

func setDeclaration(decls []declaration, d declaration) []declaration {
	for i := range decls {
		if decls[i].property == d.property {
			decls[i] = d
			return decls
		}
	}
	return append(decls, d)
}

func serializeDeclarations(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		p := d.property + ": " + d.value
		if d.important {
			p += " !important"
		}
		parts = append(parts, p+";")
	}
	return strings.Join(parts, " ")
}

func (s *StyleDeclaration) store(decls []declaration) {
	if len(decls) == 0 && !s.owner.HasAttribute("style") {
		return
	}
	s.owner.setAttr("", "style", serializeDeclarations(decls))
}

// Len returns the number of declarations.
func (s *StyleDeclaration) Len() int { return len(s.declarations()) }

// Item returns the property name of the i-th declaration.
func (s *StyleDeclaration) Item(i int) string {
	decls := s.declarations()
	if i < 0 || i >= len(decls) {
		return ""
	}
	return decls[i].property
}

// GetPropertyValue returns the value of a property, or "".
func (s *StyleDeclaration) GetPropertyValue(name string) string {
	name = strings.ToLower(name)
	for _, d := range s.declarations() {
		if d.property == name {
			return d.value
		}
	}
	return ""
}

// GetPropertyPriority returns "important" for important declarations.
func (s *StyleDeclaration) GetPropertyPriority(name string) string {
	name = strings.ToLower(name)
	for _, d := range s.declarations() {
		if d.property == name && d.important {
			return "important"
		}
	}
	return ""
}

// CSSText returns the serialised declarations.
func (s *StyleDeclaration) CSSText() string {
	return serializeDeclarations(s.declarations())
}

// SetCSSText replaces every declaration.
func (s *StyleDeclaration) SetCSSText(text string) error {
	defer s.owner.doc.trace(s.owner, nested("style", "cssText", OpAssign), text)()
	s.owner.setAttr("", "style", serializeDeclarations(parseDeclarations(text)))
	return nil
}

// SetProperty sets a property. An empty value removes it; priority is ""
// or "important".
func (s *StyleDeclaration) SetProperty(name, value, priority string) error {
	defer s.owner.doc.trace(s.owner, nested("style", "setProperty", OpMethod), name, value, priority)()
	return s.setProperty(name, value, priority)
}

func (s *StyleDeclaration) setProperty(name, value, priority string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("dom: setProperty: %w", ErrSyntax)
	}
	if value == "" {
		s.removeProperty(name)
		return nil
	}
	switch strings.ToLower(priority) {
	case "", "important":
	default:
		return nil
	}
	decls := setDeclaration(s.declarations(), declaration{
		property:  name,
		value:     strings.TrimSpace(value),
		important: strings.EqualFold(priority, "important"),
	})
	s.store(decls)
	return nil
}

// RemoveProperty removes a property and returns its previous value.
func (s *StyleDeclaration) RemoveProperty(name string) (string, error) {
	defer s.owner.doc.trace(s.owner, nested("style", "removeProperty", OpMethod), name)()
	return s.removeProperty(strings.ToLower(name)), nil
}

func (s *StyleDeclaration) removeProperty(name string) string {
	decls := s.declarations()
	for i, d := range decls {
		if d.property == name {
			s.store(append(decls[:i], decls[i+1:]...))
			return d.value
		}
	}
	return ""
}

// AssignProp assigns a property by its camel-cased name, as in
// style.backgroundColor = "red". "cssText" replaces every declaration.
func (s *StyleDeclaration) AssignProp(name string, v any) error {
	defer s.owner.doc.trace(s.owner, nested("style", name, OpAssign), v)()
	text := ""
	if v != nil {
		text = fmt.Sprint(v)
	}
	if name == "cssText" {
		return s.SetCSSText(text)
	}
	return s.setProperty(cssPropertyName(name), text, "")
}

// DeleteProp removes a property by its camel-cased name.
func (s *StyleDeclaration) DeleteProp(name string) error {
	defer s.owner.doc.trace(s.owner, nested("style", name, OpDelete))()
	if name == "cssText" {
		s.owner.setAttr("", "style", "")
		return nil
	}
	s.removeProperty(cssPropertyName(name))
	return nil
}

// cssPropertyName converts backgroundColor to background-color. Names that
// already contain a dash, such as custom properties, are kept.
func cssPropertyName(name string) string {
	if strings.Contains(name, "-") {
		return strings.ToLower(name)
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
