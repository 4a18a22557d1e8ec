package compiler

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/go-git/go-billy/v5"

	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/compiler/gen"
)

// Config holds the settings of a generation run.
type Config struct {
	// Target is the output directory. It is replaced as a whole on every
	// run.
	Target string

	// Project is the project name, exposed to templates as {{project}}.
	Project string

	// Module is the Go module path of the generated server, exposed to
	// templates as {{module}}. Defaults to "<project>/server".
	Module string

	// Vars are additional template variables.
	Vars map[string]string

	// Features enables optional features; Disabled turns off features that
	// are on by default.
	Features []Feature
	Disabled []Feature

	// Formatter names the Go formatter: goimports, gofumpt or none.
	Formatter string

	// Workers bounds the parallelism of verification and materialization.
	// Zero means GOMAXPROCS.
	Workers int

	// Overwrite allows replacing a non-empty Target.
	Overwrite bool

	// CatalogDirs are fragment catalogs merged over the builtin one.
	CatalogDirs []string

	// Catalog replaces the builtin catalog when set.
	Catalog *gen.Catalog

	// Matrix replaces the builtin compatibility matrix when set.
	Matrix *compat.Matrix

	// Filesystem receives the generated files. Defaults to the OS file
	// system rooted at the parent of Target.
	Filesystem billy.Filesystem

	Logger *slog.Logger
}

// Option configures code generation.
type Option func(*Config) error

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithProject sets the project name.
func WithProject(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return NewConfigError("Project", nil, "project name cannot be empty")
		}
		c.Project = name
		return nil
	}
}

// WithModule sets the Go module path of the generated server.
func WithModule(module string) Option {
	return func(c *Config) error {
		if module == "" {
			return NewConfigError("Module", nil, "module cannot be empty")
		}
		c.Module = module
		return nil
	}
}

// WithVars adds template variables. Option values take precedence over
// variables of the same name.
func WithVars(vars map[string]string) Option {
	return func(c *Config) error {
		if c.Vars == nil {
			c.Vars = make(map[string]string)
		}
		maps.Copy(c.Vars, vars)
		return nil
	}
}

// WithFeatures enables specific features.
func WithFeatures(features ...Feature) Option {
	return func(c *Config) error {
		c.Features = append(c.Features, features...)
		return nil
	}
}

// WithoutFeatures disables specific features.
func WithoutFeatures(features ...Feature) Option {
	return func(c *Config) error {
		c.Disabled = append(c.Disabled, features...)
		return nil
	}
}

// WithFormatter selects the Go formatter by name.
// Supported formatters: "goimports", "gofumpt", "none".
func WithFormatter(name string) Option {
	return func(c *Config) error {
		switch name {
		case gen.FormatGoimports, gen.FormatGofumpt, gen.FormatNone:
			c.Formatter = name
			return nil
		default:
			return NewConfigError("Formatter", name, "unsupported formatter; use goimports, gofumpt, or none")
		}
	}
}

// WithWorkers bounds parallel verification and file writes.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return NewConfigError("Workers", n, "workers cannot be negative")
		}
		c.Workers = n
		return nil
	}
}

// WithOverwrite allows replacing a non-empty target directory.
func WithOverwrite(overwrite bool) Option {
	return func(c *Config) error {
		c.Overwrite = overwrite
		return nil
	}
}

// WithCatalogDir merges the catalog files below dir over the builtin
// catalog. Fragment names must stay unique across catalogs.
func WithCatalogDir(dirs ...string) Option {
	return func(c *Config) error {
		for _, dir := range dirs {
			if dir == "" {
				return NewConfigError("CatalogDirs", nil, "catalog directory cannot be empty")
			}
		}
		c.CatalogDirs = append(c.CatalogDirs, dirs...)
		return nil
	}
}

// WithCatalog replaces the builtin catalog.
func WithCatalog(catalog *gen.Catalog) Option {
	return func(c *Config) error {
		if catalog == nil {
			return NewConfigError("Catalog", nil, "catalog cannot be nil")
		}
		c.Catalog = catalog
		return nil
	}
}

// WithMatrix replaces the builtin compatibility matrix.
func WithMatrix(m *compat.Matrix) Option {
	return func(c *Config) error {
		if m == nil {
			return NewConfigError("Matrix", nil, "matrix cannot be nil")
		}
		c.Matrix = m
		return nil
	}
}

// WithFilesystem writes generated files to fs. Target is interpreted
// within fs.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(c *Config) error {
		if fs == nil {
			return NewConfigError("Filesystem", nil, "filesystem cannot be nil")
		}
		c.Filesystem = fs
		return nil
	}
}

// WithLogger sets the logger passed to every stage.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FeatureEnabled reports whether f is on for this run: explicitly enabled,
// or on by default and not disabled, with every feature it builds on
// enabled as well.
func (c *Config) FeatureEnabled(f Feature) bool {
	named := func(fs []Feature) bool {
		return slices.ContainsFunc(fs, func(x Feature) bool { return x.Name == f.Name })
	}
	if named(c.Disabled) || !(f.Default || named(c.Features)) {
		return false
	}
	for _, name := range f.requires {
		dep, ok := FeatureByName(name)
		if !ok || !c.FeatureEnabled(dep) {
			return false
		}
	}
	return true
}

// vars returns the template variables of the run.
func (c *Config) vars() map[string]string {
	vars := maps.Clone(c.Vars)
	if vars == nil {
		vars = make(map[string]string)
	}
	if c.Project != "" {
		vars["project"] = c.Project
	}
	if m := c.module(); m != "" {
		vars["module"] = m
	}
	return vars
}

func (c *Config) module() string {
	if c.Module != "" || c.Project == "" {
		return c.Module
	}
	return c.Project + "/server"
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Formatter: gen.FormatGoimports}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
