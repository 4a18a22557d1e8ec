package gen

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"strings"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compiler/resolve"
)

// Composer turns a Project Configuration and a fragment catalog into a plan.
// Composition is deterministic and never touches storage.
type Composer struct {
	vars      map[string]string
	formatter Formatter
	logger    *slog.Logger
}

// ComposeOption configures a Composer.
type ComposeOption func(*Composer)

// WithVars adds project variables (e.g. "project", "module") that
// placeholders may reference besides the options. Options take precedence.
func WithVars(vars map[string]string) ComposeOption {
	return func(c *Composer) {
		maps.Copy(c.vars, vars)
	}
}

// WithFormatter formats rendered Go files.
func WithFormatter(f Formatter) ComposeOption {
	return func(c *Composer) {
		c.formatter = f
	}
}

// WithComposeLogger sets the logger receiving per-fragment debug records.
func WithComposeLogger(l *slog.Logger) ComposeOption {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewComposer returns a composer configured by opts.
func NewComposer(opts ...ComposeOption) *Composer {
	c := &Composer{
		vars:   make(map[string]string),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose composes catalog for cfg with default settings.
func Compose(cfg *resolve.Config, catalog *Catalog) (*Plan, error) {
	return NewComposer().Compose(cfg, catalog)
}

// Select returns the fragments whose guard holds for cfg, sorted by name.
func (c *Composer) Select(cfg *resolve.Config, catalog *Catalog) []*Fragment {
	var included []*Fragment
	for _, f := range catalog.fragments {
		if f.guard().Eval(cfg) {
			included = append(included, f)
		}
	}
	return included
}

// Compose evaluates every guard, renders the included fragments and returns
// the plan sorted by path. Duplicate final paths and unresolved placeholders
// are CompositionErrors.
func (c *Composer) Compose(cfg *resolve.Config, catalog *Catalog) (*Plan, error) {
	plan := &Plan{}
	for _, f := range c.Select(cfg, catalog) {
		p, body, err := c.Render(cfg, f)
		if err != nil {
			return nil, err
		}
		if err := plan.Add(Entry{Path: p, Content: body, Mode: f.mode(), Fragment: f.Name}); err != nil {
			return nil, err
		}
		c.logger.Debug("fragment included",
			slog.String("fragment", f.Name),
			slog.String("path", p),
			slog.String("guard", f.guard().String()),
		)
	}
	return plan, nil
}

// Render renders the path and body of f for cfg, and formats the body when
// a formatter is configured.
func (c *Composer) Render(cfg *resolve.Config, f *Fragment) (string, []byte, error) {
	lookup := c.lookup(cfg)
	p, err := render(f.Path, lookup)
	if err != nil {
		return "", nil, placeholderFailure(f, f.Path, err)
	}
	p, err = cleanPath(p)
	if err != nil {
		return "", nil, &stackgen.CompositionError{Kind: stackgen.InvalidFragment, Path: p, Fragments: []string{f.Name}, Cause: err}
	}
	body := f.Body
	if !f.Verbatim {
		if body, err = render(f.Body, lookup); err != nil {
			return "", nil, placeholderFailure(f, p, err)
		}
	}
	content := []byte(body)
	if c.formatter != nil && strings.HasSuffix(p, ".go") {
		formatted, err := c.formatter.Format(p, content)
		if err != nil {
			return "", nil, &stackgen.CompositionError{Kind: stackgen.FormatFailed, Path: p, Fragments: []string{f.Name}, Cause: err}
		}
		content = formatted
	}
	return p, content, nil
}

func (c *Composer) lookup(cfg *resolve.Config) lookupFunc {
	return func(name string) (string, bool) {
		if v, ok := cfg.Lookup(name); ok {
			return v, true
		}
		v, ok := c.vars[name]
		return v, ok
	}
}

func placeholderFailure(f *Fragment, p string, err error) error {
	var perr *placeholderError
	if errors.As(err, &perr) {
		return stackgen.NewPlaceholderError(f.Name, p, perr.placeholder, errors.New(perr.msg))
	}
	return stackgen.NewPlaceholderError(f.Name, p, "", err)
}

// cleanPath normalizes a rendered path and rejects paths escaping the
// project root.
func cleanPath(p string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	switch {
	case path.IsAbs(cleaned):
		return cleaned, fmt.Errorf("absolute path")
	case cleaned == "." || cleaned == "":
		return cleaned, fmt.Errorf("empty path")
	case cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return cleaned, fmt.Errorf("path escapes the project root")
	}
	return cleaned, nil
}
