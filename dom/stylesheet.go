package dom

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aymerick/douceur/parser"
)

// StyleSheet is an ordered list of CSS rules. A sheet obtained from a style
// element traces its mutations through the element; a constructed sheet is
// untraced until it is adopted.
type StyleSheet struct {
	owner *Node
	rules []string
}

// NewStyleSheet creates an empty constructed stylesheet.
func NewStyleSheet() *StyleSheet { return &StyleSheet{} }

// Owner returns the style element the sheet belongs to, or nil.
func (s *StyleSheet) Owner() *Node { return s.owner }

// Rules returns the rule texts in order.
func (s *StyleSheet) Rules() []string { return slices.Clone(s.rules) }

// Len returns the number of rules.
func (s *StyleSheet) Len() int { return len(s.rules) }

func (s *StyleSheet) trace(name string, args ...any) func() {
	if s.owner == nil {
		return func() {}
	}
	return s.owner.doc.trace(s.owner, nested("sheet", name, OpMethod), args...)
}

// InsertRule validates rule and inserts it at index. It returns the index.
func (s *StyleSheet) InsertRule(rule string, index int) (int, error) {
	defer s.trace("insertRule", rule, index)()
	if index < 0 || index > len(s.rules) {
		return 0, fmt.Errorf("dom: insertRule at %d: %w", index, ErrIndexSize)
	}
	rule = strings.TrimSpace(rule)
	if err := validateRule(rule); err != nil {
		return 0, err
	}
	s.rules = slices.Insert(s.rules, index, rule)
	return index, nil
}

// DeleteRule removes the rule at index.
func (s *StyleSheet) DeleteRule(index int) error {
	defer s.trace("deleteRule", index)()
	if index < 0 || index >= len(s.rules) {
		return fmt.Errorf("dom: deleteRule at %d: %w", index, ErrIndexSize)
	}
	s.rules = slices.Delete(s.rules, index, index+1)
	return nil
}

// ReplaceSync replaces every rule with the rules parsed from text. Rules
// the parser rejects are dropped.
func (s *StyleSheet) ReplaceSync(text string) error {
	defer s.trace("replaceSync", text)()
	var rules []string
	for _, r := range splitRules(text) {
		if validateRule(r) == nil {
			rules = append(rules, r)
		}
	}
	s.rules = rules
	return nil
}

// validateRule accepts exactly one rule: a non-empty prelude followed by a
// single balanced block, or a block-less at-rule statement.
func validateRule(rule string) error {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return fmt.Errorf("dom: empty rule: %w", ErrSyntax)
	}
	open := indexUnquoted(rule, '{')
	if open < 0 {
		if !strings.HasPrefix(rule, "@") || strings.ContainsRune(rule, '}') {
			return fmt.Errorf("dom: rule %q: %w", rule, ErrSyntax)
		}
		return nil
	}
	if strings.TrimSpace(rule[:open]) == "" {
		return fmt.Errorf("dom: rule %q: missing selector: %w", rule, ErrSyntax)
	}
	end := matchingBrace(rule, open)
	if end < 0 || strings.TrimSpace(rule[end+1:]) != "" {
		return fmt.Errorf("dom: rule %q: %w", rule, ErrSyntax)
	}
	sheet, err := parser.Parse(rule)
	if err != nil {
		return fmt.Errorf("dom: rule %q: %v: %w", rule, err, ErrSyntax)
	}
	if len(sheet.Rules) != 1 {
		return fmt.Errorf("dom: rule %q: %w", rule, ErrSyntax)
	}
	return nil
}

// splitRules splits stylesheet text into top-level rule texts. Comments
// are dropped.
func splitRules(text string) []string {
	text = stripComments(text)
	var rules []string
	start, depth := 0, 0
	emit := func(end int) {
		if r := strings.TrimSpace(text[start:end]); r != "" {
			rules = append(rules, r)
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"', '\'':
			i = skipString(text, i)
		case '{':
			depth++
		case '}':
			depth--
			if depth <= 0 {
				depth = 0
				emit(i + 1)
			}
		case ';':
			if depth == 0 {
				emit(i + 1)
			}
		}
	}
	emit(len(text))
	return rules
}

func stripComments(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] == '"' || text[i] == '\'':
			j := skipString(text, i)
			b.WriteString(text[i : j+1])
			i = j
		case text[i] == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

func skipString(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return len(s) - 1
}

func indexUnquoted(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = skipString(s, i)
		case c:
			return i
		}
	}
	return -1
}

func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = skipString(s, i)
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
