// Package resolve implements the Configuration Resolver. It turns a partial
// selection into a Project Configuration or reports a ConflictError.
//
// Resolution is a pure function of the selection and the matrix: unset
// options are filled in declaration order with their default when the
// default keeps the selection completable, otherwise with the lexically
// first value that does.
package resolve

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/schema"
)

// Resolver resolves selections against a compatibility matrix.
type Resolver struct {
	matrix *compat.Matrix
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger receiving debug records for every default
// substitution.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a resolver for the matrix.
func New(m *compat.Matrix, opts ...Option) *Resolver {
	r := &Resolver{
		matrix: m,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves sel against the builtin matrix.
func Resolve(sel schema.Selection) (*Config, error) {
	return New(compat.BuiltinMatrix()).Resolve(sel)
}

// Matrix returns the matrix the resolver checks against.
func (r *Resolver) Matrix() *compat.Matrix { return r.matrix }

// Resolve returns the Project Configuration for sel.
//
// Errors are *stackgen.InvalidSelectionError (possibly aggregated) for
// unknown options or out-of-enum values, and *stackgen.ConflictError when no
// legal configuration extends sel.
func (r *Resolver) Resolve(sel schema.Selection) (*Config, error) {
	snap := r.matrix.Snapshot()
	if err := snap.Validate(sel); err != nil {
		return nil, err
	}
	if d := r.matrix.Check(sel); d != nil {
		return nil, stackgen.NewConflictError(d.Reason, d.Options...)
	}
	if !r.matrix.Satisfiable(sel) {
		return nil, r.unsatisfiable(sel)
	}
	cur := sel.Clone()
	for _, o := range snap.Options() {
		if _, ok := cur[o.Name]; ok {
			continue
		}
		v, ok := r.pick(cur, o)
		if !ok {
			return nil, stackgen.NewConflictError(
				fmt.Sprintf("no legal value for option %s", o.Name), o.Name)
		}
		cur[o.Name] = v
	}
	c := &Config{snapshot: snap, values: make([]string, snap.Len())}
	for i, name := range snap.Names() {
		c.values[i] = cur[name]
	}
	return c, nil
}

// pick returns the default of o if it keeps cur completable, otherwise the
// lexically first value that does.
func (r *Resolver) pick(cur schema.Selection, o schema.Option) (string, bool) {
	if r.matrix.Satisfiable(cur.With(o.Name, o.Default)) {
		return o.Default, true
	}
	for _, v := range o.Alternatives() {
		if r.matrix.Satisfiable(cur.With(o.Name, v)) {
			r.logger.Debug("default substituted",
				slog.String("option", o.Name),
				slog.String("default", o.Default),
				slog.String("value", v),
			)
			return v, true
		}
	}
	return "", false
}

// unsatisfiable reduces the explicit options of sel to a minimal set that
// cannot be completed, and reports it as a conflict.
func (r *Resolver) unsatisfiable(sel schema.Selection) error {
	snap := r.matrix.Snapshot()
	core := sel.Clone()
	for _, name := range snap.SortByDeclaration(sel.Keys()) {
		v := core[name]
		delete(core, name)
		if r.matrix.Satisfiable(core) {
			core[name] = v
		}
	}
	names := snap.SortByDeclaration(core.Keys())
	if len(names) == 0 {
		return stackgen.NewConflictError("the compatibility rules admit no configuration")
	}
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + core[name]
	}
	return stackgen.NewConflictError(
		"no legal configuration with "+strings.Join(pairs, ", "), names...)
}
