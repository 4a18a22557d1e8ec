package load_test

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/compiler/load"
	"github.com/syssam/stackgen/compiler/resolve"
	"github.com/syssam/stackgen/schema"
)

func resolveT(t *testing.T, sel schema.Selection) *resolve.Config {
	t.Helper()
	cfg, err := resolve.Resolve(sel)
	require.NoError(t, err)
	return cfg
}

func TestDir(t *testing.T) {
	catalog, err := load.Dir("testdata/catalog")
	require.NoError(t, err)
	require.Equal(t, 4, catalog.Len())

	main, ok := catalog.Lookup("main-chi")
	require.True(t, ok)
	assert.Equal(t, "package main\n\nfunc main() { println(\"{{backend}}\") }\n", main.Body)
	assert.Equal(t, "base.yaml", main.Source)
	assert.Equal(t, `backend == "chi"`, main.Guard.String())

	run, ok := catalog.Lookup("run-script")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0o755), run.Mode)
	assert.Equal(t, `backend != "none"`, run.Guard.String())

	web, ok := catalog.Lookup("web-index")
	require.True(t, ok)
	assert.Equal(t, "nested/web.yaml", web.Source)
	assert.Equal(t, []string{"backend", "database", "frontend"}, web.Guard.Options())

	readme, ok := catalog.Lookup("readme")
	require.True(t, ok)
	assert.Equal(t, "true", readme.Guard.String())
}

func TestDirCompose(t *testing.T) {
	catalog, err := load.Dir("testdata/catalog")
	require.NoError(t, err)
	composer := gen.NewComposer(gen.WithVars(map[string]string{"project": "acme"}))

	tests := []struct {
		name  string
		sel   schema.Selection
		paths []string
	}{
		{
			name:  "defaults",
			paths: []string{"README.md", "cmd/main.go", "run.sh", "web/index.html"},
		},
		{
			name:  "echo_vue",
			sel:   schema.Selection{"backend": "echo", "frontend": "vue"},
			paths: []string{"README.md", "run.sh", "web/index.html"},
		},
		{
			name:  "svelte_excluded_by_when",
			sel:   schema.Selection{"frontend": "svelte"},
			paths: []string{"README.md", "cmd/main.go", "run.sh"},
		},
		{
			name:  "no_database_excluded_by_unless",
			sel:   schema.Selection{"database": "none", "orm": "none"},
			paths: []string{"README.md", "cmd/main.go", "run.sh"},
		},
		{
			name:  "static_site",
			sel:   schema.Selection{"backend": "none"},
			paths: []string{"README.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := composer.Compose(resolveT(t, tt.sel), catalog)
			require.NoError(t, err)
			assert.Equal(t, tt.paths, plan.Paths())
		})
	}

	plan, err := composer.Compose(resolveT(t, nil), catalog)
	require.NoError(t, err)
	readme, ok := plan.Lookup("README.md")
	require.True(t, ok)
	assert.Equal(t, "# acme\n", string(readme.Content))
	run, ok := plan.Lookup("run.sh")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0o755), run.Mode)
	index, ok := plan.Lookup("web/index.html")
	require.True(t, ok)
	assert.Equal(t, "<html>react</html>", string(index.Content))
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
		msg   string
	}{
		{
			name:  "unknown_key",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - name: a\n    path: a\n    colour: red\n")}},
			msg:   "colour",
		},
		{
			name:  "body_and_file",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - name: a\n    path: a\n    body: x\n    file: b.tmpl\n")}},
			msg:   "mutually exclusive",
		},
		{
			name:  "missing_file",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - name: a\n    path: a\n    file: b.tmpl\n")}},
			msg:   `fragment "a"`,
		},
		{
			name:  "invalid_mode",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - name: a\n    path: a\n    mode: \"0999\"\n")}},
			msg:   `invalid mode "0999"`,
		},
		{
			name:  "mapping_condition",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - name: a\n    path: a\n    when: {backend: {a: b}}\n")}},
			msg:   "expected a value or a list of values",
		},
		{
			name: "duplicate_name_across_files",
			files: fstest.MapFS{
				"a.yaml": {Data: []byte("fragments:\n  - {name: a, path: a}\n")},
				"b.yaml": {Data: []byte("fragments:\n  - {name: a, path: b}\n")},
			},
			msg: "declared twice",
		},
		{
			name:  "missing_path",
			files: fstest.MapFS{"a.yaml": {Data: []byte("fragments:\n  - {name: a}\n")}},
			msg:   "missing path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load.NewLoader(tt.files).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoaderPatterns(t *testing.T) {
	files := fstest.MapFS{
		"empty.yaml":      {Data: nil},
		"web/web.yaml":    {Data: []byte("fragments:\n  - {name: web, path: web/index.html, when: {frontend: react}}\n")},
		"web/notes.txt":   {Data: []byte("not a catalog")},
		"server/api.yaml": {Data: []byte("fragments:\n  - {name: api, path: server/api.go, mode: 0o600}\n")},
	}

	all, err := load.NewLoader(files).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())
	api, ok := all.Lookup("api")
	require.True(t, ok)
	assert.Equal(t, os.FileMode(0o600), api.Mode)

	web, err := load.NewLoader(files, "web/*.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 1, web.Len())
	_, ok = web.Lookup("web")
	assert.True(t, ok)
}

func TestBuiltin(t *testing.T) {
	catalog, err := load.Builtin()
	require.NoError(t, err)
	snap := schema.Builtin()
	require.NoError(t, catalog.Validate(snap))

	read := make(map[string]bool)
	for _, f := range catalog.Fragments() {
		for _, o := range f.Guard.Options() {
			read[o] = true
		}
	}
	for _, o := range snap.Names() {
		assert.True(t, read[o], "no fragment reads option %q", o)
	}

	composer := gen.NewComposer(
		gen.WithVars(map[string]string{"project": "acme", "module": "example.com/acme/server"}),
		gen.WithFormatter(gen.Goimports),
	)
	configs := compat.BuiltinMatrix().Configurations()
	for i, sel := range configs {
		if testing.Short() && i%25 != 0 {
			continue
		}
		cfg := resolveT(t, sel)
		plan, err := composer.Compose(cfg, catalog)
		require.NoError(t, err, "compose %s", cfg)
		paths := plan.Paths()
		assert.Contains(t, paths, "README.md")
		assert.Contains(t, paths, "stackgen.yaml")
		if cfg.Is(schema.OptBackend, schema.None) {
			assert.NotContains(t, paths, "server/go.mod")
		} else {
			assert.Contains(t, paths, "server/cmd/api/main.go", cfg.String())
			assert.Contains(t, paths, "server/internal/api/api.go", cfg.String())
		}
		if !cfg.Is(schema.OptFrontend, schema.None) {
			assert.Contains(t, paths, "web/src/lib/api.ts", cfg.String())
			assert.Contains(t, paths, "web/src/lib/session.ts", cfg.String())
		}
		if cfg.Is(schema.OptAuth, schema.AuthEnabled) {
			assert.Contains(t, paths, "server/internal/auth/auth.go", cfg.String())
		}
		if db := cfg.Get(schema.OptDatabase); db != schema.None {
			assert.Contains(t, paths, "server/migrations/"+db+"/0001_init.sql", cfg.String())
		}
	}
}

func TestBuiltinVueEscapes(t *testing.T) {
	catalog, err := load.Builtin()
	require.NoError(t, err)
	composer := gen.NewComposer(gen.WithVars(map[string]string{"project": "acme", "module": "example.com/acme/server"}))
	plan, err := composer.Compose(resolveT(t, schema.Selection{"frontend": "vue"}), catalog)
	require.NoError(t, err)
	app, ok := plan.Lookup("web/src/App.vue")
	require.True(t, ok)
	assert.Contains(t, string(app.Content), "<h1>Acme</h1>")
	assert.Contains(t, string(app.Content), "{{ status }}")
}

func TestBuiltinRequiresVars(t *testing.T) {
	catalog, err := load.Builtin()
	require.NoError(t, err)
	_, err = gen.Compose(resolveT(t, nil), catalog)
	require.Error(t, err)
	assert.True(t, stackgen.IsComposition(err))
}
