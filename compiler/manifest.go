package compiler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/compiler/resolve"
)

// ManifestPath is the project-relative path of the generation manifest.
const ManifestPath = ".stackgen/manifest.yaml"

// Manifest records what a generation produced, so that a later run can tell
// whether the project is up to date.
type Manifest struct {
	Generator  string            `yaml:"generator"`
	Schema     string            `yaml:"schema"`
	Project    string            `yaml:"project,omitempty"`
	Module     string            `yaml:"module,omitempty"`
	Selection  map[string]string `yaml:"selection"`
	ConfigHash string            `yaml:"config_hash"`
	Digest     string            `yaml:"digest"`
	Files      []ManifestFile    `yaml:"files"`
}

// ManifestFile describes one generated file.
type ManifestFile struct {
	Path     string `yaml:"path"`
	Mode     string `yaml:"mode"`
	SHA256   string `yaml:"sha256"`
	Fragment string `yaml:"fragment"`
}

// NewManifest describes plan, generated for cfg with settings c.
func NewManifest(c *Config, cfg *resolve.Config, plan *gen.Plan) *Manifest {
	m := &Manifest{
		Generator:  "stackgen " + stackgen.Version,
		Schema:     cfg.Snapshot().Version(),
		Project:    c.Project,
		Module:     c.module(),
		Selection:  cfg.AsSelection(),
		ConfigHash: cfg.Hash(),
		Digest:     plan.Digest(),
		Files:      make([]ManifestFile, 0, plan.Len()),
	}
	for _, e := range plan.Entries {
		sum := sha256.Sum256(e.Content)
		m.Files = append(m.Files, ManifestFile{
			Path:     e.Path,
			Mode:     "0o" + strconv.FormatUint(uint64(e.Mode.Perm()), 8),
			SHA256:   hex.EncodeToString(sum[:]),
			Fragment: e.Fragment,
		})
	}
	return m
}

// Paths returns the paths of the generated files.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = f.Path
	}
	return paths
}

// Encode returns the YAML form of m.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses a manifest written by Encode.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Digest == "" {
		return nil, fmt.Errorf("decode manifest: missing digest")
	}
	return &m, nil
}
