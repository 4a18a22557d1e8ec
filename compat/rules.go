package compat

import (
	"slices"
	"strings"

	"github.com/syssam/stackgen/schema"
)

// Cond is a predicate over the value of a single option.
type Cond struct {
	Option string
	values []string
	negate bool
}

// Is matches when the option holds one of values.
func Is(option string, values ...string) Cond {
	return Cond{Option: option, values: values}
}

// IsNot matches when the option holds none of values.
func IsNot(option string, values ...string) Cond {
	return Cond{Option: option, values: values, negate: true}
}

// Match reports whether the condition holds for sel. An unset option never
// matches.
func (c Cond) Match(sel schema.Selection) bool {
	v, ok := sel[c.Option]
	if !ok {
		return false
	}
	return slices.Contains(c.values, v) != c.negate
}

// Func returns a rule evaluating eval once all options are set.
func Func(name string, options []string, eval func(schema.Selection) error) Rule {
	return Rule{Name: name, Options: options, Eval: eval}
}

// Requires returns a rule denying selections where when holds but then
// does not. The reason may reference option values as {option}.
//
//	compat.Requires("backend-requires-database",
//	    compat.IsNot("backend", "none"), compat.IsNot("database", "none"),
//	    "backend {backend} requires a database")
func Requires(name string, when, then Cond, reason string) Rule {
	return RequiresAny(name, when, []Cond{then}, reason)
}

// RequiresAny is like Requires but is satisfied when any of then holds.
func RequiresAny(name string, when Cond, then []Cond, reason string) Rule {
	options := []string{when.Option}
	for _, c := range then {
		options = append(options, c.Option)
	}
	return Rule{
		Name:    name,
		Options: options,
		Eval: func(sel schema.Selection) error {
			if !when.Match(sel) {
				return Skip
			}
			for _, c := range then {
				if c.Match(sel) {
					return Allow
				}
			}
			return Denyf("%s", expand(reason, sel))
		},
	}
}

// Forbids returns a rule denying selections where both a and b hold.
func Forbids(name string, a, b Cond, reason string) Rule {
	return Rule{
		Name:    name,
		Options: []string{a.Option, b.Option},
		Eval: func(sel schema.Selection) error {
			if a.Match(sel) && b.Match(sel) {
				return Denyf("%s", expand(reason, sel))
			}
			return Allow
		},
	}
}

// expand replaces {option} references in reason with selected values.
func expand(reason string, sel schema.Selection) string {
	if !strings.Contains(reason, "{") {
		return reason
	}
	pairs := make([]string, 0, 2*len(sel))
	for _, k := range sel.Keys() {
		pairs = append(pairs, "{"+k+"}", sel[k])
	}
	return strings.NewReplacer(pairs...).Replace(reason)
}
