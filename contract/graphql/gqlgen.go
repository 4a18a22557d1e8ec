package graphql

import (
	"bytes"
	"fmt"
	"path"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen/contract"
)

// GQLGenConfig represents the subset of gqlgen.yml the generated server
// needs.
type GQLGenConfig struct {
	// SchemaFilename is the path(s) to the GraphQL schema file(s).
	SchemaFilename StringList `yaml:"schema,omitempty"`

	// Exec configures the generated executor.
	Exec PackageConfig `yaml:"exec,omitempty"`

	// Model configures the generated models.
	Model PackageConfig `yaml:"model,omitempty"`

	// Resolver configures the resolver generation.
	Resolver ResolverConfig `yaml:"resolver,omitempty"`

	// Autobind is a list of packages to autobind types from.
	Autobind []string `yaml:"autobind,omitempty"`

	// Models is a map of GraphQL type name to model configuration.
	Models map[string]TypeMapEntry `yaml:"models,omitempty"`
}

// PackageConfig names a generated file and its package.
type PackageConfig struct {
	Filename string `yaml:"filename,omitempty"`
	Package  string `yaml:"package,omitempty"`
}

// ResolverConfig configures the resolver generation.
type ResolverConfig struct {
	Layout  string `yaml:"layout,omitempty"`
	DirName string `yaml:"dir,omitempty"`
	Package string `yaml:"package,omitempty"`
}

// TypeMapEntry is the configuration for a single GraphQL type.
type TypeMapEntry struct {
	// Model is the Go model(s) to bind to this GraphQL type.
	Model StringList `yaml:"model,omitempty"`
}

// StringList is a YAML type that can be either a string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler for StringList.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// AddSchemaPath adds a schema path to the configuration if not already present.
func (c *GQLGenConfig) AddSchemaPath(p string) {
	if !slices.Contains(c.SchemaFilename, p) {
		c.SchemaFilename = append(c.SchemaFilename, p)
	}
}

// AddAutobind adds a package to the autobind list if not already present.
func (c *GQLGenConfig) AddAutobind(pkg string) {
	if !slices.Contains(c.Autobind, pkg) {
		c.Autobind = append(c.Autobind, pkg)
	}
}

// SetModel sets the model binding for a GraphQL type.
func (c *GQLGenConfig) SetModel(typeName string, modelPath string) {
	if c.Models == nil {
		c.Models = make(map[string]TypeMapEntry)
	}
	entry := c.Models[typeName]
	if !slices.Contains(entry.Model, modelPath) {
		entry.Model = append(entry.Model, modelPath)
	}
	c.Models[typeName] = entry
}

// Config returns the gqlgen configuration of the server. Contract
// types bind through autobind; the ID, Time and JSON scalars bind to gqlgen's
// runtime types.
func (r *Renderer) Config() *GQLGenConfig {
	schemaDir, ok := cutDir(path.Dir(r.path), path.Dir(ConfigPath))
	if !ok {
		schemaDir = path.Dir(r.path)
	}
	c := &GQLGenConfig{
		Exec:     PackageConfig{Filename: "graph/generated.go", Package: "graph"},
		Model:    PackageConfig{Filename: "graph/model/models_gen.go", Package: "model"},
		Resolver: ResolverConfig{Layout: "follow-schema", DirName: "graph", Package: "graph"},
	}
	c.AddSchemaPath(path.Join(schemaDir, "*.graphqls"))
	c.AddAutobind(r.module + "/internal/contract")
	c.SetModel("ID", "github.com/99designs/gqlgen/graphql.UUID")
	c.SetModel("Time", "github.com/99designs/gqlgen/graphql.Time")
	c.SetModel("JSON", "github.com/99designs/gqlgen/graphql.Map")
	return c
}

// Companions implements contract.Companion.
func (r *Renderer) Companions(*contract.Set) (map[string][]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r.Config()); err != nil {
		return nil, fmt.Errorf("marshal gqlgen config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return map[string][]byte{ConfigPath: buf.Bytes()}, nil
}

func cutDir(p, dir string) (string, bool) {
	if len(p) > len(dir) && p[:len(dir)] == dir && p[len(dir)] == '/' {
		return p[len(dir)+1:], true
	}
	return "", false
}
