package resolve_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/compiler/resolve"
	"github.com/syssam/stackgen/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConflictScenario(t *testing.T) {
	snap := schema.MustNew("test",
		schema.Option{Name: "backend", Values: []string{"a", "b"}, Default: "a"},
		schema.Option{Name: "database", Values: []string{"none", "pg"}, Default: "pg"},
	)
	m := compat.MustNewMatrix(snap,
		compat.Requires("backend-a-requires-database",
			compat.Is("backend", "a"), compat.IsNot("database", "none"),
			"backend a requires a database"),
	)

	_, err := resolve.New(m).Resolve(schema.Selection{"backend": "a", "database": "none"})
	require.Error(t, err)
	var conflict *stackgen.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"backend", "database"}, conflict.Options)
	assert.Equal(t, "backend a requires a database", conflict.Reason)
}

func TestResolveDefaults(t *testing.T) {
	tests := []struct {
		name string
		sel  schema.Selection
		want map[string]string
	}{
		{
			name: "empty_selection_takes_defaults",
			sel:  nil,
			want: map[string]string{
				schema.OptBackend: "chi", schema.OptFrontend: "react", schema.OptAPI: "rest",
				schema.OptDatabase: "sqlite", schema.OptORM: "velox", schema.OptAuth: "disabled",
				schema.OptAuthProvider: "none", schema.OptDeploy: "docker",
			},
		},
		{
			name: "invalidated_defaults_fall_back_lexically",
			sel:  schema.Selection{schema.OptBackend: schema.None},
			want: map[string]string{
				schema.OptBackend: "none", schema.OptFrontend: "react", schema.OptAPI: "rest",
				schema.OptDatabase: "none", schema.OptORM: "none", schema.OptAuth: "disabled",
				schema.OptAuthProvider: "none", schema.OptDeploy: "docker",
			},
		},
		{
			name: "auth_enabled_picks_first_provider",
			sel:  schema.Selection{schema.OptAuth: schema.AuthEnabled},
			want: map[string]string{
				schema.OptBackend: "chi", schema.OptFrontend: "react", schema.OptAPI: "rest",
				schema.OptDatabase: "sqlite", schema.OptORM: "velox", schema.OptAuth: "enabled",
				schema.OptAuthProvider: "clerk", schema.OptDeploy: "docker",
			},
		},
		{
			name: "later_choice_constrains_earlier_default",
			sel:  schema.Selection{schema.OptAuthProvider: schema.ProviderLocal},
			want: map[string]string{
				schema.OptBackend: "chi", schema.OptFrontend: "react", schema.OptAPI: "rest",
				schema.OptDatabase: "sqlite", schema.OptORM: "velox", schema.OptAuth: "enabled",
				schema.OptAuthProvider: "local", schema.OptDeploy: "docker",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolve.Resolve(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, schema.Selection(tt.want), cfg.AsSelection())
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	snap := schema.Builtin()
	for _, o := range snap.Options() {
		for _, v := range o.Values {
			sel := schema.Selection{o.Name: v}
			cfg, err := resolve.Resolve(sel)
			if err != nil {
				assert.True(t, stackgen.IsConflict(err), "%s: %v", sel, err)
				continue
			}
			again, err := resolve.Resolve(cfg.AsSelection())
			require.NoError(t, err)
			assert.True(t, cfg.Equal(again), "%s: %s != %s", sel, cfg, again)
			assert.Equal(t, cfg.Hash(), again.Hash())
		}
	}
}

// TestResolveExhaustive checks every full selection of the builtin schema:
// legal selections resolve to themselves, rejected ones report a conflict
// naming the options of a real rule.
func TestResolveExhaustive(t *testing.T) {
	m := compat.BuiltinMatrix()
	r := resolve.New(m)
	opts := m.Snapshot().Options()

	var walk func(i int, sel schema.Selection)
	walk = func(i int, sel schema.Selection) {
		if i == len(opts) {
			cfg, err := r.Resolve(sel)
			if m.Check(sel) == nil {
				require.NoError(t, err, sel.String())
				assert.Equal(t, sel, cfg.AsSelection())
				assert.Len(t, cfg.Options(), len(opts))
				return
			}
			var conflict *stackgen.ConflictError
			require.True(t, errors.As(err, &conflict), sel.String())
			assert.GreaterOrEqual(t, len(conflict.Options), 2, sel.String())
			return
		}
		for _, v := range opts[i].Values {
			walk(i+1, sel.With(opts[i].Name, v))
		}
	}
	walk(0, schema.Selection{})
}

func TestResolveUnsatisfiable(t *testing.T) {
	_, err := resolve.Resolve(schema.Selection{
		schema.OptBackend:      schema.None,
		schema.OptFrontend:     schema.FrontendVue,
		schema.OptAuthProvider: schema.ProviderClerk,
	})
	require.Error(t, err)
	var conflict *stackgen.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{schema.OptBackend, schema.OptAuthProvider}, conflict.Options)
	assert.Equal(t, "no legal configuration with backend=none, auth_provider=clerk", conflict.Reason)
}

func TestResolveInvalidSelection(t *testing.T) {
	_, err := resolve.Resolve(schema.Selection{schema.OptDatabase: "oracle"})
	require.Error(t, err)
	assert.True(t, stackgen.IsInvalidSelection(err))
	assert.False(t, stackgen.IsConflict(err))
}

func TestResolveLogsSubstitutions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := resolve.New(compat.BuiltinMatrix(), resolve.WithLogger(logger))

	_, err := r.Resolve(schema.Selection{schema.OptAuth: schema.AuthEnabled})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "default substituted")
	assert.Contains(t, buf.String(), "option=auth_provider")
	assert.Contains(t, buf.String(), "value=clerk")
}

func TestConfigAccessors(t *testing.T) {
	cfg, err := resolve.Resolve(schema.Selection{schema.OptBackend: schema.BackendGin})
	require.NoError(t, err)

	assert.Equal(t, "gin", cfg.Get(schema.OptBackend))
	assert.Equal(t, "", cfg.Get("colour"))
	_, ok := cfg.Lookup("colour")
	assert.False(t, ok)
	assert.True(t, cfg.Is(schema.OptBackend, schema.BackendChi, schema.BackendGin))
	assert.False(t, cfg.Is(schema.OptBackend, schema.BackendChi))
	assert.False(t, cfg.Is("colour", "red"))
	assert.Equal(t, schema.BuiltinVersion, cfg.Snapshot().Version())
	assert.Equal(t,
		"backend=gin frontend=react api=rest database=sqlite orm=velox auth=disabled auth_provider=none deploy=docker",
		cfg.String())

	other, err := resolve.Resolve(nil)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Hash(), other.Hash())
	assert.False(t, cfg.Equal(other))
	assert.Len(t, cfg.Hash(), 64)
}
