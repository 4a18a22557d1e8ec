// Package verify checks the syntax of generated files before they are
// materialized. Go, JavaScript, TypeScript and TOML sources are parsed with
// tree-sitter; GraphQL schemas, JSON and YAML documents with their own
// parsers. Files of other kinds pass through unchecked.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compiler/gen"
)

// SyntaxError locates a syntax error in a generated file.
type SyntaxError struct {
	Path    string
	Line    uint32 // 0-indexed
	Column  uint32 // 0-indexed
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line+1, e.Column+1, e.Message)
}

// Checker reports the syntax errors of one file, in source order.
type Checker interface {
	Check(ctx context.Context, path string, src []byte) []SyntaxError
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc func(ctx context.Context, path string, src []byte) []SyntaxError

// Check returns f(ctx, path, src).
func (f CheckerFunc) Check(ctx context.Context, path string, src []byte) []SyntaxError {
	return f(ctx, path, src)
}

// Verifier checks every file of a plan in parallel.
type Verifier struct {
	checkers map[string]Checker
	workers  int
	logger   *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithWorkers bounds the number of files checked concurrently.
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithChecker registers c for files with extension ext (".proto"),
// replacing any builtin checker. A nil checker disables checking.
func WithChecker(ext string, c Checker) Option {
	return func(v *Verifier) {
		if c == nil {
			delete(v.checkers, ext)
			return
		}
		v.checkers[ext] = c
	}
}

// New returns a verifier with the builtin checkers.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		checkers: builtinCheckers(),
		workers:  runtime.GOMAXPROCS(0),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Supports reports whether files at path are checked.
func (v *Verifier) Supports(p string) bool {
	_, ok := v.checker(p)
	return ok
}

func (v *Verifier) checker(p string) (Checker, bool) {
	c, ok := v.checkers[strings.ToLower(path.Ext(p))]
	return c, ok
}

// Check returns the syntax errors of a single file.
func (v *Verifier) Check(ctx context.Context, p string, src []byte) []SyntaxError {
	c, ok := v.checker(p)
	if !ok {
		return nil
	}
	return c.Check(ctx, p, src)
}

// Verify checks every entry of plan. Each failing file contributes its first
// *SyntaxError, in plan order; several are joined in a
// *stackgen.AggregateError.
func (v *Verifier) Verify(ctx context.Context, plan *gen.Plan) error {
	found := make([]*SyntaxError, plan.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	checked := 0
	for i, e := range plan.Entries {
		c, ok := v.checker(e.Path)
		if !ok {
			continue
		}
		checked++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if errs := c.Check(ctx, e.Path, e.Content); len(errs) > 0 {
				first := errs[0]
				if len(errs) > 1 {
					first.Message = fmt.Sprintf("%s (and %d more)", first.Message, len(errs)-1)
				}
				found[i] = &first
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	var errs []error
	for _, e := range found {
		if e != nil {
			errs = append(errs, e)
		}
	}
	v.logger.Debug("verified plan", slog.Int("files", checked), slog.Int("failed", len(errs)))
	return stackgen.NewAggregateError(errs...)
}
