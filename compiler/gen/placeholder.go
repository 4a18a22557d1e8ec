package gen

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder syntax:
//
//	{{option}}               value of option
//	{{option | pascal}}      value passed through a filter chain
//	\{{                      a literal "{{"
//
// Placeholders never execute logic; filters are a closed set.
const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Filters holds the placeholder filters.
var Filters = map[string]func(string) string{
	"pascal":   inflect.Camelize,
	"camel":    inflect.CamelizeDownFirst,
	"snake":    inflect.Underscore,
	"kebab":    inflect.Dasherize,
	"plural":   inflect.Pluralize,
	"singular": inflect.Singularize,
	"title":    title,
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
}

// title uses a fresh Caser per call; a Caser must not be shared between goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// lookupFunc resolves a placeholder name to a value.
type lookupFunc func(name string) (string, bool)

// placeholderError is returned by render and carries the failing placeholder.
type placeholderError struct {
	placeholder string
	msg         string
}

func (e *placeholderError) Error() string { return e.msg }

// render substitutes every placeholder in s.
func render(s string, lookup lookupFunc) (string, error) {
	if !strings.Contains(s, openDelim) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		i := strings.Index(s, openDelim)
		if i < 0 {
			b.WriteString(s)
			break
		}
		if i > 0 && s[i-1] == '\\' {
			b.WriteString(s[:i-1])
			b.WriteString(openDelim)
			s = s[i+len(openDelim):]
			continue
		}
		b.WriteString(s[:i])
		s = s[i+len(openDelim):]
		j := strings.Index(s, closeDelim)
		if j < 0 {
			return "", &placeholderError{placeholder: strings.TrimSpace(s), msg: "unterminated placeholder"}
		}
		v, err := evalPlaceholder(s[:j], lookup)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
		s = s[j+len(closeDelim):]
	}
	return b.String(), nil
}

func evalPlaceholder(expr string, lookup lookupFunc) (string, error) {
	parts := strings.Split(expr, "|")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", &placeholderError{placeholder: strings.TrimSpace(expr), msg: "empty placeholder"}
	}
	v, ok := lookup(name)
	if !ok {
		return "", &placeholderError{placeholder: name, msg: fmt.Sprintf("unknown option %q", name)}
	}
	for _, p := range parts[1:] {
		fname := strings.TrimSpace(p)
		f, ok := Filters[fname]
		if !ok {
			return "", &placeholderError{placeholder: strings.TrimSpace(expr), msg: fmt.Sprintf("unknown filter %q", fname)}
		}
		v = f(v)
	}
	return v, nil
}

// Placeholders returns the placeholder expressions of s in order of
// appearance, without delimiters. Escaped delimiters are skipped.
func Placeholders(s string) []string {
	var out []string
	for {
		i := strings.Index(s, openDelim)
		if i < 0 {
			return out
		}
		if i > 0 && s[i-1] == '\\' {
			s = s[i+len(openDelim):]
			continue
		}
		s = s[i+len(openDelim):]
		j := strings.Index(s, closeDelim)
		if j < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(s[:j]))
		s = s[j+len(closeDelim):]
	}
}
