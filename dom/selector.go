package dom

import (
	"fmt"
	"strings"
)

// Supported selector subset:
//   - tag: "article", "div"
//   - .class: ".content"
//   - #id: "#main"
//   - tag.class, tag#id
//   - tag[attr], tag[attr=val]
//   - "*"
//   - descendant combinator (space) and selector lists (comma)

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

type compoundSelector []simpleSelector

func parseSelector(sel string) ([]compoundSelector, error) {
	var list []compoundSelector
	for _, part := range strings.Split(sel, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return nil, fmt.Errorf("dom: selector %q: %w", sel, ErrSyntax)
		}
		var cs compoundSelector
		for _, f := range fields {
			s, err := parseSimpleSelector(f)
			if err != nil {
				return nil, fmt.Errorf("dom: selector %q: %w", sel, err)
			}
			cs = append(cs, s)
		}
		list = append(list, cs)
	}
	return list, nil
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) (simpleSelector, error) {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		if !strings.HasSuffix(sel, "]") {
			return s, ErrSyntax
		}
		attrPart := sel[idx+1 : len(sel)-1]
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = strings.ToLower(attrPart[:eqIdx])
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = strings.ToLower(attrPart)
		}
		if s.attrKey == "" {
			return s, ErrSyntax
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
		if i := strings.IndexByte(s.id, '.'); i >= 0 {
			sel += s.id[i:]
			s.id = s.id[:i]
		}
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.classes = strings.Split(sel[idx+1:], ".")
		sel = sel[:idx]
		for _, c := range s.classes {
			if c == "" {
				return s, ErrSyntax
			}
		}
	}

	if sel != "*" {
		s.tag = strings.ToLower(sel)
	}
	return s, nil
}

func (s simpleSelector) matches(n *Node) bool {
	if n.Category != CategoryElement {
		return false
	}
	if s.tag != "" && strings.ToLower(n.tag) != s.tag {
		return false
	}
	if s.id != "" && n.ID() != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(n.ClassName())
		for _, c := range s.classes {
			found := false
			for _, h := range have {
				if h == c {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if s.attrKey != "" {
		v, ok := n.GetAttribute(s.attrKey)
		if !ok || (s.hasVal && v != s.attrVal) {
			return false
		}
	}
	return true
}

// matches checks the compound selector right to left: n must match the
// last part and have ancestors matching the preceding parts in order.
func (cs compoundSelector) matches(n *Node) bool {
	if !cs[len(cs)-1].matches(n) {
		return false
	}
	i := len(cs) - 2
	for x := n.parent; x != nil && i >= 0; x = x.parent {
		if cs[i].matches(x) {
			i--
		}
	}
	return i < 0
}

func matchesAny(list []compoundSelector, n *Node) bool {
	for _, cs := range list {
		if cs.matches(n) {
			return true
		}
	}
	return false
}

// Matches reports whether the element matches the selector.
func (n *Node) Matches(selector string) (bool, error) {
	list, err := parseSelector(selector)
	if err != nil {
		return false, err
	}
	return matchesAny(list, n), nil
}

// Closest returns the nearest inclusive ancestor matching the selector.
func (n *Node) Closest(selector string) (*Node, error) {
	list, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	for x := n; x != nil; x = x.parent {
		if matchesAny(list, x) {
			return x, nil
		}
	}
	return nil, nil
}

// QuerySelectorAll returns the descendants of n matching the selector, in
// tree order. An invalid selector matches nothing.
func (n *Node) QuerySelectorAll(selector string) []*Node {
	list, err := parseSelector(selector)
	if err != nil {
		return nil
	}
	var results []*Node
	var walk func(*Node)
	walk = func(x *Node) {
		for _, c := range x.children {
			if matchesAny(list, c) {
				results = append(results, c)
			}
			walk(c)
		}
	}
	walk(n)
	return results
}

// QuerySelector returns the first descendant matching the selector.
func (n *Node) QuerySelector(selector string) *Node {
	if all := n.QuerySelectorAll(selector); len(all) > 0 {
		return all[0]
	}
	return nil
}

// GetElementsByTagName returns the descendant elements with the given tag.
func (n *Node) GetElementsByTagName(tag string) []*Node {
	if tag == "*" {
		return n.QuerySelectorAll("*")
	}
	tag = strings.ToLower(tag)
	var results []*Node
	var walk func(*Node)
	walk = func(x *Node) {
		for _, c := range x.children {
			if c.Category == CategoryElement && strings.ToLower(c.tag) == tag {
				results = append(results, c)
			}
			walk(c)
		}
	}
	walk(n)
	return results
}

// GetElementByID returns the first descendant element with the given id.
func (n *Node) GetElementByID(id string) *Node {
	var found *Node
	var walk func(*Node) bool
	walk = func(x *Node) bool {
		for _, c := range x.children {
			if c.Category == CategoryElement && c.ID() == id {
				found = c
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
	return found
}
