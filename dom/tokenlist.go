package dom

import (
	"fmt"
	"slices"
	"strings"
)

// TokenList is the ordered set of tokens stored in a whitespace-separated
// attribute, such as an element's class list.
type TokenList struct {
	owner *Node
	attr  string
	prop  string
}

// Values returns the tokens in order, without duplicates.
func (l *TokenList) Values() []string {
	v, _ := l.owner.GetAttribute(l.attr)
	var out []string
	for _, t := range strings.Fields(v) {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of distinct tokens.
func (l *TokenList) Len() int { return len(l.Values()) }

// Contains reports whether token is present.
func (l *TokenList) Contains(token string) bool {
	return slices.Contains(l.Values(), token)
}

// Value returns the raw attribute value.
func (l *TokenList) Value() string {
	v, _ := l.owner.GetAttribute(l.attr)
	return v
}

// SetValue replaces the attribute value.
func (l *TokenList) SetValue(v string) error {
	defer l.owner.doc.trace(l.owner, nested(l.prop, "value", OpAssign), v)()
	l.owner.setAttr("", l.attr, v)
	return nil
}

// Add adds each token not already present.
func (l *TokenList) Add(tokens ...string) error {
	defer l.owner.doc.trace(l.owner, nested(l.prop, "add", OpMethod), stringArgs(tokens)...)()
	if err := checkTokens("add", tokens...); err != nil {
		return err
	}
	values := l.Values()
	for _, t := range tokens {
		if !slices.Contains(values, t) {
			values = append(values, t)
		}
	}
	l.store(values)
	return nil
}

// Remove removes each token.
func (l *TokenList) Remove(tokens ...string) error {
	defer l.owner.doc.trace(l.owner, nested(l.prop, "remove", OpMethod), stringArgs(tokens)...)()
	if err := checkTokens("remove", tokens...); err != nil {
		return err
	}
	if !l.owner.HasAttribute(l.attr) {
		return nil
	}
	values := slices.DeleteFunc(l.Values(), func(v string) bool {
		return slices.Contains(tokens, v)
	})
	l.store(values)
	return nil
}

// Toggle removes token when present and adds it otherwise. With force the
// token is added when force[0] is true and removed when false. It reports
// whether the token is present afterwards.
func (l *TokenList) Toggle(token string, force ...bool) (bool, error) {
	var forceArg any = Undefined{}
	if len(force) > 0 {
		forceArg = force[0]
	}
	defer l.owner.doc.trace(l.owner, nested(l.prop, "toggle", OpMethod), token, forceArg)()
	if err := checkTokens("toggle", token); err != nil {
		return false, err
	}
	values := l.Values()
	has := slices.Contains(values, token)
	switch {
	case has && (len(force) == 0 || !force[0]):
		l.store(slices.DeleteFunc(values, func(v string) bool { return v == token }))
		return false, nil
	case !has && (len(force) == 0 || force[0]):
		l.store(append(values, token))
		return true, nil
	}
	return has, nil
}

// Replace substitutes newToken for oldToken. It reports whether oldToken
// was present.
func (l *TokenList) Replace(oldToken, newToken string) (bool, error) {
	defer l.owner.doc.trace(l.owner, nested(l.prop, "replace", OpMethod), oldToken, newToken)()
	if err := checkTokens("replace", oldToken, newToken); err != nil {
		return false, err
	}
	values := l.Values()
	i := slices.Index(values, oldToken)
	if i < 0 {
		return false, nil
	}
	if slices.Contains(values, newToken) {
		values = slices.Delete(values, i, i+1)
	} else {
		values[i] = newToken
	}
	l.store(values)
	return true, nil
}

func (l *TokenList) store(values []string) {
	l.owner.setAttr("", l.attr, strings.Join(values, " "))
}

func checkTokens(op string, tokens ...string) error {
	for _, t := range tokens {
		if t == "" {
			return fmt.Errorf("dom: %s empty token: %w", op, ErrSyntax)
		}
		if strings.ContainsAny(t, " \t\n\f\r") {
			return fmt.Errorf("dom: %s token %q: %w", op, t, ErrInvalidCharacter)
		}
	}
	return nil
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
