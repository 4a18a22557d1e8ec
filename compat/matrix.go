package compat

import (
	"fmt"

	"github.com/syssam/stackgen/schema"
)

// Matrix is the conjunction of rules over one schema snapshot.
type Matrix struct {
	snapshot *schema.Snapshot
	rules    []Rule
}

// NewMatrix binds rules to a snapshot. Every option a rule constrains must
// exist in the snapshot.
func NewMatrix(snapshot *schema.Snapshot, rules ...Rule) (*Matrix, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("stackgen/compat: nil snapshot")
	}
	m := &Matrix{snapshot: snapshot, rules: make([]Rule, 0, len(rules))}
	names := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.Name == "" || r.Eval == nil {
			return nil, fmt.Errorf("stackgen/compat: rule must have a name and an Eval function")
		}
		if _, ok := names[r.Name]; ok {
			return nil, fmt.Errorf("stackgen/compat: duplicate rule %q", r.Name)
		}
		names[r.Name] = struct{}{}
		for _, o := range r.Options {
			if snapshot.Position(o) < 0 {
				return nil, fmt.Errorf("stackgen/compat: rule %q constrains unknown option %q", r.Name, o)
			}
		}
		r.Options = snapshot.SortByDeclaration(r.Options)
		m.rules = append(m.rules, r)
	}
	return m, nil
}

// MustNewMatrix is like NewMatrix but panics on error.
func MustNewMatrix(snapshot *schema.Snapshot, rules ...Rule) *Matrix {
	m, err := NewMatrix(snapshot, rules...)
	if err != nil {
		panic(err)
	}
	return m
}

// Snapshot returns the schema the matrix is bound to.
func (m *Matrix) Snapshot() *schema.Snapshot { return m.snapshot }

// Rules returns the rules in evaluation order.
func (m *Matrix) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Check evaluates the rules in order and returns the first denial, or nil
// if the selection is legal so far.
func (m *Matrix) Check(sel schema.Selection) *Denial {
	for _, r := range m.rules {
		if err := r.Evaluate(sel); !decide(err) {
			return newDenial(r, r.Options, err)
		}
	}
	return nil
}

// Denials returns every rule denying the selection, in rule order.
func (m *Matrix) Denials(sel schema.Selection) []*Denial {
	var ds []*Denial
	for _, r := range m.rules {
		if err := r.Evaluate(sel); !decide(err) {
			ds = append(ds, newDenial(r, r.Options, err))
		}
	}
	return ds
}

// Satisfiable reports whether sel can be completed into a selection that
// sets every option and passes every rule.
func (m *Matrix) Satisfiable(sel schema.Selection) bool {
	_, ok := m.Complete(sel)
	return ok
}

// Complete returns the first full selection extending sel, searching unset
// options in declaration order and values in declaration order.
func (m *Matrix) Complete(sel schema.Selection) (schema.Selection, bool) {
	cur := sel.Clone()
	if m.Check(cur) != nil {
		return nil, false
	}
	opts := m.snapshot.Options()
	var search func(i int) bool
	search = func(i int) bool {
		for i < len(opts) {
			if _, ok := cur[opts[i].Name]; !ok {
				break
			}
			i++
		}
		if i == len(opts) {
			return true
		}
		name := opts[i].Name
		for _, v := range opts[i].Values {
			cur[name] = v
			if m.Check(cur) == nil && search(i+1) {
				return true
			}
		}
		delete(cur, name)
		return false
	}
	if !search(0) {
		return nil, false
	}
	return cur, true
}

// Legal returns, for every option unset in sel, the values that keep the
// selection completable. Values keep declaration order. Options with no legal
// value map to an empty slice.
func (m *Matrix) Legal(sel schema.Selection) map[string][]string {
	legal := make(map[string][]string)
	for _, o := range m.snapshot.Options() {
		if _, ok := sel[o.Name]; ok {
			continue
		}
		values := []string{}
		for _, v := range o.Values {
			if m.Satisfiable(sel.With(o.Name, v)) {
				values = append(values, v)
			}
		}
		legal[o.Name] = values
	}
	return legal
}

// Blocking returns the rules that deny sel extended with option=value.
// The resolver uses it to name offending options when no value is legal.
func (m *Matrix) Blocking(sel schema.Selection, option, value string) []*Denial {
	return m.Denials(sel.With(option, value))
}

// Configurations returns every full selection passing every rule, in
// declaration order of options and values.
func (m *Matrix) Configurations() []schema.Selection {
	var (
		out  []schema.Selection
		opts = m.snapshot.Options()
		cur  = schema.Selection{}
	)
	var walk func(i int)
	walk = func(i int) {
		if i == len(opts) {
			out = append(out, cur.Clone())
			return
		}
		name := opts[i].Name
		for _, v := range opts[i].Values {
			cur[name] = v
			if m.Check(cur) == nil {
				walk(i + 1)
			}
		}
		delete(cur, name)
	}
	walk(0)
	return out
}
