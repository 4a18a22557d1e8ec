package stackgen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the generation failure classes.
var (
	// ErrConflict is returned when no legal configuration exists for a selection.
	ErrConflict = errors.New("stackgen: no legal configuration")

	// ErrComposition is returned when the fragment catalog cannot be composed
	// into a file plan.
	ErrComposition = errors.New("stackgen: composition failed")

	// ErrSync is returned when the contract graph is cyclic or inconsistent.
	ErrSync = errors.New("stackgen: contract synchronization failed")

	// ErrInvalidSelection is returned when a selection names an unknown option
	// or an out-of-enum value.
	ErrInvalidSelection = errors.New("stackgen: invalid selection")
)

// ConflictError reports that no legal configuration exists. It is user-facing
// and names the offending options.
type ConflictError struct {
	Options []string // Offending options, in declaration order
	Reason  string
}

// Error returns the error string.
func (e *ConflictError) Error() string {
	if len(e.Options) == 0 {
		return "stackgen: conflict: " + e.Reason
	}
	return fmt.Sprintf("stackgen: conflict on %s: %s", strings.Join(e.Options, ", "), e.Reason)
}

// Is reports whether the target error matches ConflictError.
// This allows errors.Is(conflictErr, ErrConflict) to return true.
func (e *ConflictError) Is(err error) bool {
	return err == ErrConflict
}

// NewConflictError returns a new ConflictError for the given options.
func NewConflictError(reason string, options ...string) *ConflictError {
	return &ConflictError{Options: options, Reason: reason}
}

// IsConflict returns true if the error is a ConflictError.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var e *ConflictError
	return errors.As(err, &e) || errors.Is(err, ErrConflict)
}

// CompositionKind classifies a CompositionError.
type CompositionKind int

// Composition error kinds.
const (
	DuplicatePath CompositionKind = iota + 1
	UnresolvedPlaceholder
	InvalidFragment
	FormatFailed
)

// String returns the kind name.
func (k CompositionKind) String() string {
	switch k {
	case DuplicatePath:
		return "duplicate path"
	case UnresolvedPlaceholder:
		return "unresolved placeholder"
	case InvalidFragment:
		return "invalid fragment"
	case FormatFailed:
		return "format failed"
	default:
		return "unknown"
	}
}

// CompositionError represents a fragment-authoring defect found while
// composing a file plan.
type CompositionError struct {
	Kind        CompositionKind
	Path        string   // Final path of the offending entry
	Fragments   []string // Contributing fragments
	Placeholder string   // Unresolved placeholder, if any
	Cause       error
}

// Error returns the error string.
func (e *CompositionError) Error() string {
	var b strings.Builder
	b.WriteString("stackgen: ")
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	switch {
	case e.Kind == DuplicatePath && len(e.Fragments) == 2:
		fmt.Fprintf(&b, " produced by fragments %q and %q", e.Fragments[0], e.Fragments[1])
	case len(e.Fragments) > 0:
		fmt.Fprintf(&b, " in fragment %q", e.Fragments[0])
	}
	if e.Placeholder != "" {
		fmt.Fprintf(&b, ": {{%s}}", e.Placeholder)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *CompositionError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for CompositionError.
func (e *CompositionError) Is(err error) bool {
	return err == ErrComposition
}

// NewDuplicatePathError returns a CompositionError naming both fragments
// that produced path.
func NewDuplicatePathError(path, first, second string) *CompositionError {
	return &CompositionError{Kind: DuplicatePath, Path: path, Fragments: []string{first, second}}
}

// NewPlaceholderError returns a CompositionError for a placeholder that could
// not be resolved against the configuration.
func NewPlaceholderError(fragment, path, placeholder string, cause error) *CompositionError {
	return &CompositionError{
		Kind:        UnresolvedPlaceholder,
		Path:        path,
		Fragments:   []string{fragment},
		Placeholder: placeholder,
		Cause:       cause,
	}
}

// IsComposition returns true if the error is a CompositionError.
func IsComposition(err error) bool {
	if err == nil {
		return false
	}
	var e *CompositionError
	return errors.As(err, &e) || errors.Is(err, ErrComposition)
}

// SyncError represents a cyclic or inconsistent contract graph.
type SyncError struct {
	Cycle    []string // Contract names forming a cycle, first name repeated last
	Contract string
	Message  string
	Cause    error
}

// Error returns the error string.
func (e *SyncError) Error() string {
	if len(e.Cycle) > 0 {
		return "stackgen: contract cycle: " + strings.Join(e.Cycle, " -> ")
	}
	msg := "stackgen: contract"
	if e.Contract != "" {
		msg += " " + e.Contract
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SyncError.
func (e *SyncError) Is(err error) bool {
	return err == ErrSync
}

// NewCycleError returns a SyncError for the given cycle.
func NewCycleError(cycle []string) *SyncError {
	return &SyncError{Cycle: cycle}
}

// NewSyncError returns a SyncError for the given contract.
func NewSyncError(contract, message string, cause error) *SyncError {
	return &SyncError{Contract: contract, Message: message, Cause: cause}
}

// IsSync returns true if the error is a SyncError.
func IsSync(err error) bool {
	if err == nil {
		return false
	}
	var e *SyncError
	return errors.As(err, &e) || errors.Is(err, ErrSync)
}

// InvalidSelectionError is returned for malformed selections before they
// reach the resolver.
type InvalidSelectionError struct {
	Option  string
	Value   string
	Allowed []string // Legal values; empty when the option itself is unknown
}

// Error returns the error string.
func (e *InvalidSelectionError) Error() string {
	if e.Allowed == nil {
		return fmt.Sprintf("stackgen: unknown option %q", e.Option)
	}
	return fmt.Sprintf("stackgen: invalid value %q for option %q (allowed: %s)",
		e.Value, e.Option, strings.Join(e.Allowed, ", "))
}

// Is reports whether the target matches the sentinel error for InvalidSelectionError.
func (e *InvalidSelectionError) Is(err error) bool {
	return err == ErrInvalidSelection
}

// IsInvalidSelection returns true if the error is an InvalidSelectionError.
func IsInvalidSelection(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidSelectionError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidSelection)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "stackgen: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("stackgen: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
