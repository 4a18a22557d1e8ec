// Package compat implements the Compatibility Matrix: the conjunction of
// rules deciding which option combinations are legal.
//
// Rules are evaluated as a chain. Each rule returns one of the decision
// values below; a selection is legal iff no rule denies it. Rules must be
// evaluable on partial selections: a rule whose options are not all set
// abstains with Skip, which lets an external prompt ask for the remaining
// legal values at every step (see Matrix.Legal).
package compat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/stackgen/schema"
)

// Rule decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// evaluation should proceed. Use errors.Is() to check for these values:
//
//	if errors.Is(err, compat.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the selection is
	// acceptable as far as this rule is concerned.
	Allow = errors.New("stackgen/compat: allow rule")

	// Deny may be returned by rules to reject the selection.
	Deny = errors.New("stackgen/compat: deny rule")

	// Skip may be returned by rules to abstain, typically because an option
	// the rule constrains is still unset.
	Skip = errors.New("stackgen/compat: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision. The formatted text is
// the human-readable reason reported to the user.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule is a named predicate over a partial selection.
type Rule struct {
	// Name identifies the rule in logs and denials.
	Name string
	// Options lists the options the rule constrains. The rule is only
	// evaluated once all of them are set.
	Options []string
	// Eval returns Allow, Deny (usually via Denyf), Skip or nil.
	// Returning nil is equivalent to returning Allow.
	Eval func(schema.Selection) error
}

// Evaluate runs the rule against sel, abstaining when an option it
// constrains is unset.
func (r Rule) Evaluate(sel schema.Selection) error {
	if !sel.IsSet(r.Options...) {
		return Skip
	}
	return r.Eval(sel)
}

// Denial describes a rule rejecting a selection.
type Denial struct {
	Rule    string
	Options []string // Constrained options, in declaration order
	Reason  string
	Err     error
}

// Error returns the error string.
func (d *Denial) Error() string {
	return fmt.Sprintf("stackgen/compat: rule %s: %s", d.Rule, d.Reason)
}

// Unwrap returns the rule decision.
func (d *Denial) Unwrap() error {
	return d.Err
}

func newDenial(r Rule, options []string, err error) *Denial {
	return &Denial{Rule: r.Name, Options: options, Reason: reasonOf(r, err), Err: err}
}

// reasonOf strips the decision suffix added by Denyf.
func reasonOf(r Rule, err error) string {
	if err == Deny {
		return "rejected by rule " + r.Name
	}
	msg := err.Error()
	if reason, ok := strings.CutSuffix(msg, ": "+Deny.Error()); ok {
		return reason
	}
	return msg
}

// decide maps a rule result onto the chain semantics: nil, Allow and Skip
// continue the evaluation, anything else denies.
func decide(err error) bool {
	return err == nil || errors.Is(err, Allow) || errors.Is(err, Skip)
}
