package gen

import (
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/stackgen/compiler/resolve"
)

// Guard is a predicate value over a Project Configuration. A fragment is
// included in the plan iff its guard evaluates to true.
//
// Guards are plain data: they can be printed, compared and checked against
// a schema before any configuration exists.
type Guard interface {
	// Eval evaluates the guard against cfg.
	Eval(cfg *resolve.Config) bool
	// Options returns the options the guard reads, sorted and deduplicated.
	Options() []string
	// String returns a readable form, e.g. `auth == "enabled"`.
	String() string
}

// Always returns a guard that is always true.
func Always() Guard { return always{} }

// Eq returns a guard that holds when option equals value.
func Eq(option, value string) Guard { return in{option: option, values: []string{value}} }

// In returns a guard that holds when option equals one of values.
func In(option string, values ...string) Guard {
	return in{option: option, values: slices.Clone(values)}
}

// Not negates a guard.
func Not(g Guard) Guard { return not{g} }

// All returns the conjunction of guards. All() is true.
func All(gs ...Guard) Guard { return all(gs) }

// Any returns the disjunction of guards. Any() is false.
func Any(gs ...Guard) Guard { return anyOf(gs) }

type always struct{}

func (always) Eval(*resolve.Config) bool { return true }
func (always) Options() []string         { return nil }
func (always) String() string            { return "true" }

type in struct {
	option string
	values []string
}

func (g in) Eval(cfg *resolve.Config) bool { return cfg.Is(g.option, g.values...) }
func (g in) Options() []string             { return []string{g.option} }

func (g in) String() string {
	if len(g.values) == 1 {
		return g.option + " == " + strconv.Quote(g.values[0])
	}
	quoted := make([]string, len(g.values))
	for i, v := range g.values {
		quoted[i] = strconv.Quote(v)
	}
	return g.option + " in [" + strings.Join(quoted, ", ") + "]"
}

type not struct{ g Guard }

func (n not) Eval(cfg *resolve.Config) bool { return !n.g.Eval(cfg) }
func (n not) Options() []string             { return n.g.Options() }

func (n not) String() string {
	if g, ok := n.g.(in); ok && len(g.values) == 1 {
		return g.option + " != " + strconv.Quote(g.values[0])
	}
	return "!(" + n.g.String() + ")"
}

type all []Guard

func (a all) Eval(cfg *resolve.Config) bool {
	for _, g := range a {
		if !g.Eval(cfg) {
			return false
		}
	}
	return true
}

func (a all) Options() []string { return collectOptions(a) }
func (a all) String() string    { return join(a, " && ", "true") }

type anyOf []Guard

func (a anyOf) Eval(cfg *resolve.Config) bool {
	for _, g := range a {
		if g.Eval(cfg) {
			return true
		}
	}
	return false
}

func (a anyOf) Options() []string { return collectOptions(a) }
func (a anyOf) String() string    { return join(a, " || ", "false") }

func collectOptions(gs []Guard) []string {
	var opts []string
	for _, g := range gs {
		opts = append(opts, g.Options()...)
	}
	slices.Sort(opts)
	return slices.Compact(opts)
}

func join(gs []Guard, sep, empty string) string {
	switch len(gs) {
	case 0:
		return empty
	case 1:
		return gs[0].String()
	}
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = g.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
