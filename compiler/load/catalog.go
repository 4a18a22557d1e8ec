// Package load loads fragment catalogs from YAML files.
package load

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen/compiler/gen"
)

// DefaultPattern matches catalog files below a catalog root.
const DefaultPattern = "**/*.yaml"

//go:embed all:catalog
var builtin embed.FS

// File is the YAML form of a catalog file:
//
//	fragments:
//	  - name: server-main-chi
//	    path: server/cmd/api/main.go
//	    when: {backend: chi}
//	    unless: {database: none}
//	    body: |
//	      package main
//
// when and unless map options to one value or a list of values. A fragment
// is included when every when entry holds and no unless entry does. A
// fragment may read its body from a file next to the catalog file with
// file instead of body.
type File struct {
	Fragments []FragmentSpec `yaml:"fragments"`
}

// FragmentSpec is the YAML form of a fragment.
type FragmentSpec struct {
	Name     string     `yaml:"name"`
	Path     string     `yaml:"path"`
	When     Conditions `yaml:"when"`
	Unless   Conditions `yaml:"unless"`
	Body     string     `yaml:"body"`
	File     string     `yaml:"file"`
	Contract bool       `yaml:"contract"`
	Verbatim bool       `yaml:"verbatim"`
	Mode     string     `yaml:"mode"`
}

// Conditions maps options to accepted values.
type Conditions map[string]Values

// Values is one value or a list of values.
type Values []string

// UnmarshalYAML implements yaml.Unmarshaler for Values.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = Values{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*v = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a value or a list of values", node.Line)
	}
}

// guards returns one In guard per option, sorted by option name.
func (c Conditions) guards() []gen.Guard {
	opts := make([]string, 0, len(c))
	for o := range c {
		opts = append(opts, o)
	}
	slices.Sort(opts)
	gs := make([]gen.Guard, len(opts))
	for i, o := range opts {
		gs[i] = gen.In(o, c[o]...)
	}
	return gs
}

// Guard returns the guard described by when and unless.
func (s *FragmentSpec) Guard() gen.Guard {
	gs := s.When.guards()
	switch unless := s.Unless.guards(); len(unless) {
	case 0:
	case 1:
		gs = append(gs, gen.Not(unless[0]))
	default:
		gs = append(gs, gen.Not(gen.Any(unless...)))
	}
	switch len(gs) {
	case 0:
		return gen.Always()
	case 1:
		return gs[0]
	}
	return gen.All(gs...)
}

// Loader reads catalog files from a file system.
type Loader struct {
	fsys     fs.FS
	patterns []string
}

// NewLoader returns a loader reading files matching patterns from fsys.
// No patterns means DefaultPattern.
func NewLoader(fsys fs.FS, patterns ...string) *Loader {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	return &Loader{fsys: fsys, patterns: patterns}
}

// Load reads every matching file, in lexical path order, into one catalog.
func (l *Loader) Load() (*gen.Catalog, error) {
	var files []string
	for _, p := range l.patterns {
		matches, err := doublestar.Glob(l.fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	files = slices.Compact(files)

	var fragments []*gen.Fragment
	for _, name := range files {
		frags, err := l.loadFile(name)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frags...)
	}
	return gen.NewCatalog(fragments...)
}

func (l *Loader) loadFile(name string) ([]*gen.Fragment, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load catalog %s: %w", name, err)
	}
	fragments := make([]*gen.Fragment, 0, len(f.Fragments))
	for _, spec := range f.Fragments {
		frag, err := l.fragment(name, spec)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: fragment %q: %w", name, spec.Name, err)
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

func (l *Loader) fragment(source string, spec FragmentSpec) (*gen.Fragment, error) {
	body := spec.Body
	if spec.File != "" {
		if spec.Body != "" {
			return nil, fmt.Errorf("body and file are mutually exclusive")
		}
		data, err := fs.ReadFile(l.fsys, path.Join(path.Dir(source), spec.File))
		if err != nil {
			return nil, err
		}
		body = string(data)
	}
	var mode os.FileMode
	if spec.Mode != "" {
		m, err := strconv.ParseUint(strings.TrimPrefix(spec.Mode, "0o"), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid mode %q", spec.Mode)
		}
		mode = os.FileMode(m)
	}
	return &gen.Fragment{
		Name:     spec.Name,
		Path:     spec.Path,
		Body:     body,
		Guard:    spec.Guard(),
		Contract: spec.Contract,
		Verbatim: spec.Verbatim,
		Mode:     mode,
		Source:   source,
	}, nil
}

// Dir loads the catalog files below dir.
func Dir(dir string, patterns ...string) (*gen.Catalog, error) {
	return NewLoader(os.DirFS(dir), patterns...).Load()
}

// Builtin loads the catalog shipped with stackgen. It covers every value of
// the builtin option schema.
func Builtin() (*gen.Catalog, error) {
	sub, err := fs.Sub(builtin, "catalog")
	if err != nil {
		return nil, err
	}
	return NewLoader(sub).Load()
}
