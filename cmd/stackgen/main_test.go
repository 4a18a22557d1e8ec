package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compiler"
	"github.com/syssam/stackgen/contract/tsclient"
)

// sandbox isolates a test from the user and project config files.
func sandbox(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := rootCmd(&logs)
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "stackgen version "+stackgen.Version+"\n", out)
}

func TestResolve(t *testing.T) {
	sandbox(t)
	out, err := execute(t, "", "resolve", "--set", "backend=gin", "--set", "api=graphql")
	require.NoError(t, err)
	assert.Contains(t, out, "backend=gin\n")
	assert.Contains(t, out, "api=graphql\n")
	assert.Contains(t, out, "frontend=react (resolved)\n")
	assert.Contains(t, out, "hash: ")

	_, err = execute(t, "", "resolve", "--set", "backend=none", "--set", "database=postgres")
	require.Error(t, err)
	assert.ErrorIs(t, err, stackgen.ErrConflict)

	_, err = execute(t, "", "resolve", "--set", "backend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected option=value")
}

func TestOptions(t *testing.T) {
	sandbox(t)
	out, err := execute(t, "", "options", "--set", "backend=none")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "OPTION"))
	assert.Regexp(t, `^backend\s+none\s+-\s+chi`, lines[1])
	assert.Contains(t, out, "auth_provider")
}

func TestGenerateCommand(t *testing.T) {
	dir := sandbox(t)
	out, err := execute(t, "", "generate", "-o", "acme", "--feature", "manifest",
		"--set", "api=graphql", "--set", "auth=enabled", "--set", "auth_provider=local")
	require.NoError(t, err)
	assert.Contains(t, out, "generated ")
	assert.Contains(t, out, "4 contracts")

	target := filepath.Join(dir, "acme")
	for _, p := range []string{"stackgen.yaml", compiler.ManifestPath, tsclient.DefaultPath} {
		_, err := os.Stat(filepath.Join(target, filepath.FromSlash(p)))
		assert.NoError(t, err, p)
	}
	data, err := os.ReadFile(filepath.Join(target, "stackgen.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "module: acme/server")

	t.Run("regenerate_from_project_config", func(t *testing.T) {
		t.Chdir(target)
		out, err := execute(t, "", "generate", "--feature", "manifest")
		require.NoError(t, err)
		assert.Contains(t, out, "is up to date")
	})

	t.Run("non_empty_target", func(t *testing.T) {
		_, err := execute(t, "", "generate", "-o", "acme", "--set", "backend=echo")
		require.Error(t, err)
		assert.True(t, compiler.IsGenerationError(err))
	})

	t.Run("dry_run", func(t *testing.T) {
		out, err := execute(t, "", "generate", "-o", "preview", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "stackgen.yaml\n")
		_, err = os.Stat(filepath.Join(dir, "preview"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown_feature", func(t *testing.T) {
		_, err := execute(t, "", "generate", "-o", "x", "--feature", "privacy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown feature")
	})
}

func TestContracts(t *testing.T) {
	sandbox(t)
	out, err := execute(t, "", "contracts", "--set", "api=graphql", "--set", "auth=enabled", "--set", "auth_provider=local")
	require.NoError(t, err)
	assert.Contains(t, out, "Health {")
	assert.Contains(t, out, "LoginRequest {")
	assert.Contains(t, out, "-> "+tsclient.DefaultPath+"\n")

	_, err = execute(t, "", "contracts", "--without", "contracts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestAuth(t *testing.T) {
	dir := sandbox(t)
	t.Setenv("STACKGEN_LOCAL_SECRET", "0123456789abcdef0123456789abcdef")
	cfg := `project: acme
bridge:
  store:
    driver: sqlite
    dsn: ` + filepath.Join(dir, "principals.db") + `
  issuers:
    - name: local
      kind: local
      secret_env: STACKGEN_LOCAL_SECRET
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stackgen.yaml"), []byte(cfg), 0o644))

	out, err := execute(t, "", "auth", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "principal store ready (sqlite)\n", out)

	token, err := execute(t, "", "auth", "issue", "--subject", "u1", "--email", "u1@example.com")
	require.NoError(t, err)
	token = strings.TrimSpace(token)
	require.NotEmpty(t, token)

	t.Run("verify_argument", func(t *testing.T) {
		out, err := execute(t, "", "auth", "verify", token)
		require.NoError(t, err)
		assert.Contains(t, out, "-> Authenticated")
		assert.Contains(t, out, "subject: u1\n")
		assert.Contains(t, out, "principal: ")
	})

	t.Run("verify_stdin", func(t *testing.T) {
		out, err := execute(t, token+"\n", "auth", "verify")
		require.NoError(t, err)
		assert.Contains(t, out, "issuer: local")
	})

	t.Run("verify_forged", func(t *testing.T) {
		_, err := execute(t, "", "auth", "verify", token+"x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token rejected")
	})

	t.Run("issue_unknown_issuer", func(t *testing.T) {
		_, err := execute(t, "", "auth", "issue", "--subject", "u1", "--issuer", "partner")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no local issuer "partner"`)
	})
}
