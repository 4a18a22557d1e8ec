package compiler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/compiler"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/compiler/verify"
	"github.com/syssam/stackgen/contract/goserver"
	"github.com/syssam/stackgen/contract/graphql"
	"github.com/syssam/stackgen/contract/tsclient"
	"github.com/syssam/stackgen/schema"
)

var authGraphQL = schema.Selection{"api": "graphql", "auth": "enabled", "auth_provider": "local"}

func newGenerator(t *testing.T, opts ...compiler.Option) *compiler.Generator {
	t.Helper()
	g, err := compiler.New(append([]compiler.Option{compiler.WithProject("acme")}, opts...)...)
	require.NoError(t, err)
	return g
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(body), 0o644))
	return dir
}

func TestGenerate(t *testing.T) {
	fs := memfs.New()
	g := newGenerator(t,
		compiler.WithTarget("acme"),
		compiler.WithFilesystem(fs),
		compiler.WithFeatures(compiler.FeatureManifest),
	)
	res, err := g.Generate(context.Background(), authGraphQL)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, "local", res.Config.Get("auth_provider"))
	require.NotNil(t, res.Contracts)
	assert.Equal(t, []string{"AuthResponse", "Health", "LoginRequest", "User"}, res.Contracts.Names())

	for _, p := range []string{
		goserver.DefaultPath,
		tsclient.DefaultPath,
		graphql.DefaultPath,
		graphql.ConfigPath,
		"server/internal/auth/auth.go",
		"stackgen.yaml",
		compiler.ManifestPath,
	} {
		_, err := fs.Stat(filepath.Join("acme", p))
		assert.NoError(t, err, p)
	}

	data, err := util.ReadFile(fs, filepath.Join("acme", compiler.ManifestPath))
	require.NoError(t, err)
	m, err := compiler.DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "acme", m.Project)
	assert.Equal(t, "acme/server", m.Module)
	assert.Equal(t, res.Config.Hash(), m.ConfigHash)
	assert.Equal(t, "graphql", m.Selection["api"])
	assert.Len(t, m.Files, res.Plan.Len()-1)
	assert.Equal(t, "stackgen "+stackgen.Version, m.Generator)

	contract, err := util.ReadFile(fs, filepath.Join("acme", tsclient.DefaultPath))
	require.NoError(t, err)
	entry, ok := res.Plan.Lookup(tsclient.DefaultPath)
	require.True(t, ok)
	assert.Equal(t, entry.Content, contract)
	assert.Equal(t, "contract/typescript", entry.Fragment)
}

func TestGenerateUnchanged(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	opts := []compiler.Option{
		compiler.WithTarget("acme"),
		compiler.WithFilesystem(fs),
		compiler.WithFeatures(compiler.FeatureManifest),
	}
	g := newGenerator(t, opts...)
	_, err := g.Generate(ctx, nil)
	require.NoError(t, err)

	res, err := g.Generate(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	_, err = g.Generate(ctx, schema.Selection{"backend": "echo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gen.ErrDestinationNotEmpty)
	var gerr *compiler.GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, compiler.PhaseWrite, gerr.Phase)

	g = newGenerator(t, append(opts, compiler.WithOverwrite(true))...)
	res, err = g.Generate(ctx, schema.Selection{"backend": "echo"})
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	main, err := util.ReadFile(fs, "acme/server/cmd/api/main.go")
	require.NoError(t, err)
	assert.Contains(t, string(main), "echo")
}

func TestGenerateInPlace(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "acme")
	files := map[string]string{
		".git/HEAD":     "ref: refs/heads/main\n",
		"principals.db": "sqlite",
		"stackgen.yaml": "project: acme\nbridge:\n  store:\n    driver: sqlite\n    dsn: principals.db\n",
	}
	for p, content := range files {
		path := filepath.Join(target, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	g := newGenerator(t,
		compiler.WithTarget(target),
		compiler.WithOverwrite(true),
		compiler.WithFeatures(compiler.FeatureManifest),
	)

	_, err := g.Generate(ctx, authGraphQL)
	require.NoError(t, err)
	for _, p := range []string{".git/HEAD", "principals.db"} {
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(p)))
		require.NoError(t, err, p)
		assert.Equal(t, files[p], string(got), p)
	}
	assert.FileExists(t, filepath.Join(target, "server", "internal", "auth", "auth.go"))

	project, err := os.ReadFile(filepath.Join(target, compiler.ProjectConfigPath))
	require.NoError(t, err)
	var cfg struct {
		Project   string            `yaml:"project"`
		Selection map[string]string `yaml:"selection"`
		Bridge    struct {
			Store struct {
				Driver string `yaml:"driver"`
			} `yaml:"store"`
		} `yaml:"bridge"`
	}
	require.NoError(t, yaml.Unmarshal(project, &cfg))
	assert.Equal(t, "acme", cfg.Project)
	assert.Equal(t, "sqlite", cfg.Bridge.Store.Driver, "sections generation does not own are kept")
	assert.Equal(t, "graphql", cfg.Selection["api"])

	t.Run("unchanged", func(t *testing.T) {
		res, err := g.Generate(ctx, authGraphQL)
		require.NoError(t, err)
		assert.True(t, res.Unchanged)
	})

	t.Run("stale_files_removed", func(t *testing.T) {
		res, err := g.Generate(ctx, nil)
		require.NoError(t, err)
		assert.False(t, res.Unchanged)
		assert.NoFileExists(t, filepath.Join(target, "server", "internal", "auth", "auth.go"))
		assert.FileExists(t, filepath.Join(target, ".git", "HEAD"))
		assert.FileExists(t, filepath.Join(target, "principals.db"))
		project, err := os.ReadFile(filepath.Join(target, compiler.ProjectConfigPath))
		require.NoError(t, err)
		assert.Contains(t, string(project), "driver: sqlite")
		assert.Contains(t, string(project), "auth: disabled")
	})
}

func TestGenerateOS(t *testing.T) {
	target := filepath.Join(t.TempDir(), "acme")
	res, err := compiler.Generate(context.Background(), schema.Selection{"frontend": "svelte"},
		compiler.WithTarget(target),
		compiler.WithProject("acme"),
		compiler.WithWorkers(2),
	)
	require.NoError(t, err)
	for _, p := range res.Plan.Paths() {
		_, err := os.Stat(filepath.Join(target, filepath.FromSlash(p)))
		assert.NoError(t, err, p)
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging directory is left behind")
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		opts     []compiler.Option
		sel      schema.Selection
		phase    string
		sentinel error
	}{
		{
			name:     "conflict",
			sel:      schema.Selection{"backend": "none", "database": "postgres"},
			phase:    compiler.PhaseResolve,
			sentinel: stackgen.ErrConflict,
		},
		{
			name:     "invalid_selection",
			sel:      schema.Selection{"cache": "redis"},
			phase:    compiler.PhaseResolve,
			sentinel: stackgen.ErrInvalidSelection,
		},
		{
			name: "duplicate_path",
			opts: []compiler.Option{compiler.WithCatalogDir(writeCatalog(t, `
fragments:
  - name: extra-readme
    path: README.md
    body: hello
`))},
			phase:    compiler.PhaseCompose,
			sentinel: stackgen.ErrComposition,
		},
		{
			name: "unresolved_placeholder",
			opts: []compiler.Option{compiler.WithCatalogDir(writeCatalog(t, `
fragments:
  - name: extra-notes
    path: NOTES.md
    body: "{{region}}"
`))},
			phase:    compiler.PhaseCompose,
			sentinel: stackgen.ErrComposition,
		},
		{
			name: "contract_collision",
			opts: []compiler.Option{compiler.WithCatalogDir(writeCatalog(t, `
fragments:
  - name: extra-contract
    path: server/internal/contract/contract.go
    verbatim: true
    body: |
      package contract
`))},
			phase:    compiler.PhaseContracts,
			sentinel: stackgen.ErrComposition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, tt.opts...)
			_, err := g.Build(ctx, tt.sel)
			require.Error(t, err)
			assert.ErrorIs(t, err, compiler.ErrGenerationFailed)
			assert.ErrorIs(t, err, tt.sentinel)
			var gerr *compiler.GenerationError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.phase, gerr.Phase)
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := compiler.New(compiler.WithCatalogDir(writeCatalog(t, `
fragments:
  - name: project-readme
    path: OTHER.md
    body: clash
`)))
	require.Error(t, err)
	var gerr *compiler.GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, compiler.PhaseCatalog, gerr.Phase)

	_, err = compiler.New(compiler.WithCatalogDir(writeCatalog(t, `
fragments:
  - name: extra-cache
    path: cache.yaml
    when: {cache: redis}
    body: "x: 1"
`)))
	require.Error(t, err)
	assert.ErrorIs(t, err, stackgen.ErrComposition)

	_, err = compiler.New(compiler.WithCatalogDir(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)

	g := newGenerator(t)
	_, err = g.Generate(context.Background(), nil)
	assert.True(t, compiler.IsConfigError(err), "generate requires a target")
}

func TestBuildCatalogDir(t *testing.T) {
	dir := writeCatalog(t, `
fragments:
  - name: extra-notes
    path: docs/{{backend}}.md
    unless: {backend: none}
    body: "# {{project | title}} on {{backend}}"
`)
	g := newGenerator(t, compiler.WithCatalogDir(dir))
	res, err := g.Build(context.Background(), schema.Selection{"backend": "gin"})
	require.NoError(t, err)
	e, ok := res.Plan.Lookup("docs/gin.md")
	require.True(t, ok)
	assert.Equal(t, "# Acme on gin", string(e.Content))
	assert.Equal(t, "extra-notes", e.Fragment)
}

func TestBuildVerify(t *testing.T) {
	dir := writeCatalog(t, `
fragments:
  - name: extra-broken
    path: server/internal/broken/broken.go
    unless: {backend: none}
    body: |
      package broken

      func {
`)
	g := newGenerator(t, compiler.WithCatalogDir(dir), compiler.WithFormatter("none"))
	_, err := g.Build(context.Background(), nil)
	require.Error(t, err)
	var serr *verify.SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "server/internal/broken/broken.go", serr.Path)
	var gerr *compiler.GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, compiler.PhaseVerify, gerr.Phase)

	g = newGenerator(t, compiler.WithCatalogDir(dir), compiler.WithFormatter("none"), compiler.WithoutFeatures(compiler.FeatureVerify))
	_, err = g.Build(context.Background(), nil)
	require.NoError(t, err)
}

func TestBuildFeatures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    []compiler.Option
		present []string
		absent  []string
	}{
		{
			name:    "defaults",
			present: []string{goserver.DefaultPath, tsclient.DefaultPath, graphql.DefaultPath, graphql.ConfigPath},
			absent:  []string{compiler.ManifestPath},
		},
		{
			name:    "without_sdl",
			opts:    []compiler.Option{compiler.WithoutFeatures(compiler.FeatureGraphQLSDL)},
			present: []string{goserver.DefaultPath, tsclient.DefaultPath},
			absent:  []string{graphql.DefaultPath, graphql.ConfigPath},
		},
		{
			name:   "without_contracts",
			opts:   []compiler.Option{compiler.WithoutFeatures(compiler.FeatureContracts)},
			absent: []string{goserver.DefaultPath, tsclient.DefaultPath, graphql.DefaultPath},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newGenerator(t, tt.opts...).Build(ctx, authGraphQL)
			require.NoError(t, err)
			paths := res.Plan.Paths()
			for _, p := range tt.present {
				assert.Contains(t, paths, p)
			}
			for _, p := range tt.absent {
				assert.NotContains(t, paths, p)
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := newGenerator(t, compiler.WithFeatures(compiler.FeatureManifest)).Build(ctx, authGraphQL)
	require.NoError(t, err)
	b, err := newGenerator(t, compiler.WithFeatures(compiler.FeatureManifest)).Build(ctx, authGraphQL)
	require.NoError(t, err)
	assert.Equal(t, a.Plan.Digest(), b.Plan.Digest())
}

// Every legal builtin configuration composes, synchronizes its contracts
// with equivalent renderings and produces files that parse.
func TestBuildBuiltinConfigurations(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t)
	for i, sel := range compat.BuiltinMatrix().Configurations() {
		if testing.Short() && i%25 != 0 {
			continue
		}
		res, err := g.Build(ctx, sel)
		require.NoError(t, err, "build %s", sel)
		if res.Contracts.Len() == 0 {
			continue
		}
		paths := res.Plan.Paths()
		if res.Config.Is(schema.OptBackend, schema.None) {
			assert.NotContains(t, paths, goserver.DefaultPath)
		} else {
			assert.Contains(t, paths, goserver.DefaultPath, res.Config.String())
		}
		if !res.Config.Is(schema.OptFrontend, schema.None) {
			assert.Contains(t, paths, tsclient.DefaultPath, res.Config.String())
		}
	}
}
