// Package config provides layered configuration for the stackgen command.
//
// A configuration is built from the defaults, the user file at
// ~/.config/stackgen/config.yaml and the project file stackgen.yaml, each
// layer overriding the non-zero settings of the previous one. The project
// file is the one the generator itself emits, so a generated project can be
// regenerated in place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen/compiler"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/dialect"
	"github.com/syssam/stackgen/schema"
)

// Config is the stackgen configuration.
type Config struct {
	// Project is the project name.
	Project string `yaml:"project,omitempty"`
	// Module is the Go module path of the generated server.
	Module string `yaml:"module,omitempty"`
	// Selection holds the chosen option values.
	Selection schema.Selection `yaml:"selection,omitempty"`
	// Generate configures the generator.
	Generate GenerateConfig `yaml:"generate,omitempty"`
	// Bridge configures the identity bridge used by "stackgen auth".
	Bridge BridgeConfig `yaml:"bridge,omitempty"`

	// Path is the project file the configuration was loaded from, if any.
	Path string `yaml:"-"`
}

// GenerateConfig configures generation.
type GenerateConfig struct {
	Output    string   `yaml:"output,omitempty"`
	Catalogs  []string `yaml:"catalogs,omitempty"`
	Formatter string   `yaml:"formatter,omitempty"`
	Features  []string `yaml:"features,omitempty"`
	Disabled  []string `yaml:"disabled,omitempty"`
	Workers   int      `yaml:"workers,omitempty"`
	Overwrite bool     `yaml:"overwrite,omitempty"`
}

// BridgeConfig configures the identity bridge.
type BridgeConfig struct {
	Store   StoreConfig    `yaml:"store,omitempty"`
	Issuers []IssuerConfig `yaml:"issuers,omitempty"`
	Cache   CacheConfig    `yaml:"cache,omitempty"`
}

// StoreConfig selects the principal store. An empty driver keeps principals
// in memory.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
	// SlowQuery is the threshold above which statements are logged.
	SlowQuery time.Duration `yaml:"slow_query,omitempty"`
}

// IssuerConfig describes one trusted token issuer.
type IssuerConfig struct {
	// Name of the provider; for "local" issuers it is also the token issuer.
	Name string `yaml:"name"`
	// Kind is "jwt" (default) or "local".
	Kind      string        `yaml:"kind,omitempty"`
	Issuer    string        `yaml:"issuer,omitempty"`
	Audience  string        `yaml:"audience,omitempty"`
	Algorithm string        `yaml:"algorithm,omitempty"`
	SecretEnv string        `yaml:"secret_env,omitempty"`
	KeyFile   string        `yaml:"key_file,omitempty"`
	Leeway    time.Duration `yaml:"leeway,omitempty"`
}

// CacheConfig configures the principal cache.
type CacheConfig struct {
	Size   int           `yaml:"size,omitempty"`
	MaxTTL time.Duration `yaml:"max_ttl,omitempty"`
}

// Issuer kinds.
const (
	KindJWT   = "jwt"
	KindLocal = "local"
)

// Signing algorithms of jwt issuers.
const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
	AlgEdDSA = "EdDSA"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Selection: schema.Selection{},
		Generate: GenerateConfig{
			Output:    ".",
			Formatter: gen.FormatGoimports,
		},
		Bridge: BridgeConfig{
			Cache: CacheConfig{
				Size:   1024,
				MaxTTL: time.Minute,
			},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Generate.Formatter {
	case "", gen.FormatGoimports, gen.FormatGofumpt, gen.FormatNone:
	default:
		return fmt.Errorf("generate.formatter: unknown formatter %q", c.Generate.Formatter)
	}
	if c.Generate.Workers < 0 {
		return fmt.Errorf("generate.workers must not be negative")
	}
	if _, err := compiler.ParseFeatures(c.Generate.Features...); err != nil {
		return fmt.Errorf("generate.features: %w", err)
	}
	if _, err := compiler.ParseFeatures(c.Generate.Disabled...); err != nil {
		return fmt.Errorf("generate.disabled: %w", err)
	}
	switch c.Bridge.Store.Driver {
	case "":
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
		if c.Bridge.Store.DSN == "" {
			return fmt.Errorf("bridge.store.dsn is required for driver %q", c.Bridge.Store.Driver)
		}
	default:
		return fmt.Errorf("bridge.store.driver: unsupported driver %q", c.Bridge.Store.Driver)
	}
	seen := make(map[string]bool, len(c.Bridge.Issuers))
	for i, iss := range c.Bridge.Issuers {
		if iss.Name == "" {
			return fmt.Errorf("bridge.issuers[%d].name is required", i)
		}
		if seen[iss.Name] {
			return fmt.Errorf("bridge.issuers[%d]: duplicate issuer %q", i, iss.Name)
		}
		seen[iss.Name] = true
		if err := iss.validate(); err != nil {
			return fmt.Errorf("bridge.issuers[%d]: %w", i, err)
		}
	}
	if c.Bridge.Cache.Size < 0 {
		return fmt.Errorf("bridge.cache.size must not be negative")
	}
	return nil
}

func (i IssuerConfig) validate() error {
	switch i.Kind {
	case "", KindJWT:
	case KindLocal:
		if i.SecretEnv == "" {
			return fmt.Errorf("local issuer %q requires secret_env", i.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", i.Kind)
	}
	switch i.Algorithm {
	case AlgHS256:
		if i.SecretEnv == "" {
			return fmt.Errorf("issuer %q: %s requires secret_env", i.Name, i.Algorithm)
		}
	case AlgRS256, AlgEdDSA:
		if i.KeyFile == "" {
			return fmt.Errorf("issuer %q: %s requires key_file", i.Name, i.Algorithm)
		}
	default:
		return fmt.Errorf("issuer %q: unknown algorithm %q", i.Name, i.Algorithm)
	}
	return nil
}

// Merge overlays the non-zero values of other onto c. Selection entries are
// merged per option and issuers of other replace those of c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Project != "" {
		c.Project = other.Project
	}
	if other.Module != "" {
		c.Module = other.Module
	}
	if len(other.Selection) > 0 {
		if c.Selection == nil {
			c.Selection = schema.Selection{}
		}
		for k, v := range other.Selection {
			c.Selection[k] = v
		}
	}

	g := other.Generate
	if g.Output != "" {
		c.Generate.Output = g.Output
	}
	if len(g.Catalogs) > 0 {
		c.Generate.Catalogs = slices.Clone(g.Catalogs)
	}
	if g.Formatter != "" {
		c.Generate.Formatter = g.Formatter
	}
	if len(g.Features) > 0 {
		c.Generate.Features = slices.Clone(g.Features)
	}
	if len(g.Disabled) > 0 {
		c.Generate.Disabled = slices.Clone(g.Disabled)
	}
	if g.Workers != 0 {
		c.Generate.Workers = g.Workers
	}
	if g.Overwrite {
		c.Generate.Overwrite = true
	}

	b := other.Bridge
	if b.Store.Driver != "" {
		c.Bridge.Store = b.Store
	}
	if len(b.Issuers) > 0 {
		c.Bridge.Issuers = slices.Clone(b.Issuers)
	}
	if b.Cache.Size != 0 {
		c.Bridge.Cache.Size = b.Cache.Size
	}
	if b.Cache.MaxTTL != 0 {
		c.Bridge.Cache.MaxTTL = b.Cache.MaxTTL
	}
}

// Options returns the generator options for the configuration.
func (c *Config) Options() ([]compiler.Option, error) {
	var opts []compiler.Option
	if c.Generate.Output != "" {
		opts = append(opts, compiler.WithTarget(c.Generate.Output))
	}
	if c.Project != "" {
		opts = append(opts, compiler.WithProject(c.Project))
	}
	if c.Module != "" {
		opts = append(opts, compiler.WithModule(c.Module))
	}
	if c.Generate.Formatter != "" {
		opts = append(opts, compiler.WithFormatter(c.Generate.Formatter))
	}
	if len(c.Generate.Catalogs) > 0 {
		opts = append(opts, compiler.WithCatalogDir(c.Generate.Catalogs...))
	}
	enabled, err := compiler.ParseFeatures(c.Generate.Features...)
	if err != nil {
		return nil, err
	}
	disabled, err := compiler.ParseFeatures(c.Generate.Disabled...)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		compiler.WithFeatures(enabled...),
		compiler.WithoutFeatures(disabled...),
		compiler.WithWorkers(c.Generate.Workers),
		compiler.WithOverwrite(c.Generate.Overwrite),
	)
	return opts, nil
}

// resolvePaths makes the relative paths of c relative to dir.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Generate.Output = abs(c.Generate.Output)
	for i, p := range c.Generate.Catalogs {
		c.Generate.Catalogs[i] = abs(p)
	}
	for i := range c.Bridge.Issuers {
		c.Bridge.Issuers[i].KeyFile = abs(c.Bridge.Issuers[i].KeyFile)
	}
}

// LoadFromFile loads a configuration file on top of no defaults. Relative
// paths in the file are taken relative to the file's directory.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(dir)
	return &cfg, nil
}

// SaveToFile writes the configuration to path.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
