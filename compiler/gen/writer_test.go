package gen_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen/compiler/gen"
)

// failingFS fails to open any file whose name contains fail.
type failingFS struct {
	billy.Filesystem
	fail string
}

func (f failingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if strings.Contains(name, f.fail) {
		return nil, errors.New("disk full")
	}
	return f.Filesystem.OpenFile(name, flag, perm)
}

// renameFS fails to rename anything onto a name containing fail.
type renameFS struct {
	billy.Filesystem
	fail string
}

func (f renameFS) Rename(from, to string) error {
	if strings.Contains(to, f.fail) && !strings.Contains(to, ".stackgen-") {
		return errors.New("device busy")
	}
	return f.Filesystem.Rename(from, to)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testPlan(t *testing.T) *gen.Plan {
	t.Helper()
	plan := &gen.Plan{}
	require.NoError(t, plan.Add(
		gen.Entry{Path: "README.md", Content: []byte("# app\n"), Fragment: "readme"},
		gen.Entry{Path: "server/cmd/api/main.go", Content: []byte("package main\n"), Fragment: "server"},
		gen.Entry{Path: "server/run.sh", Content: []byte("#!/bin/sh\n"), Mode: 0o755, Fragment: "run"},
		gen.Entry{Path: "web/src/App.tsx", Content: []byte("export {}\n"), Fragment: "web"},
	))
	return plan
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(des))
	for i, de := range des {
		names[i] = de.Name()
	}
	return names
}

func TestWriterWrite(t *testing.T) {
	root := t.TempDir()
	w := gen.NewWriter(osfs.New(root)).WithWorkers(2)
	plan := testPlan(t)

	require.NoError(t, w.Write(context.Background(), plan, "app"))
	assert.Equal(t, []string{"app"}, entries(t, root), "staging directory must not remain")

	for _, e := range plan.Entries {
		got, err := os.ReadFile(filepath.Join(root, "app", filepath.FromSlash(e.Path)))
		require.NoError(t, err)
		assert.Equal(t, e.Content, got)
	}
	fi, err := os.Stat(filepath.Join(root, "app", "server", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	m := w.Metrics()
	assert.Equal(t, 4, m.FilesWritten)
	assert.Equal(t, int64(len("# app\n")+len("package main\n")+len("#!/bin/sh\n")+len("export {}\n")), m.TotalBytes)
}

func TestWriterEmptyDestination(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "app"), 0o755))
	require.NoError(t, gen.NewWriter(osfs.New(root)).Write(context.Background(), testPlan(t), "app"))
	assert.FileExists(t, filepath.Join(root, "app", "README.md"))
}

func TestWriterNonEmptyDestination(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "app", "old.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("keep"), 0o644))

	t.Run("refused", func(t *testing.T) {
		err := gen.NewWriter(osfs.New(root)).Write(context.Background(), testPlan(t), "app")
		require.ErrorIs(t, err, gen.ErrDestinationNotEmpty)
		assert.FileExists(t, old)
		assert.Equal(t, []string{"app"}, entries(t, root))
	})

	t.Run("overwrite", func(t *testing.T) {
		err := gen.NewWriter(osfs.New(root)).WithOverwrite(true).Write(context.Background(), testPlan(t), "app")
		require.NoError(t, err)
		assert.FileExists(t, old, "files outside the plan are kept")
		assert.FileExists(t, filepath.Join(root, "app", "web", "src", "App.tsx"))
		assert.Equal(t, []string{"app"}, entries(t, root), "backup directory must not remain")
	})
}

func TestWriterReplace(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	write(t, filepath.Join(app, ".git", "HEAD"), "ref: refs/heads/main\n")
	write(t, filepath.Join(app, "README.md"), "# edited\n")
	write(t, filepath.Join(app, "server", "legacy", "old.go"), "package legacy\n")
	write(t, filepath.Join(app, "server", "keep.go"), "package server\n")

	w := gen.NewWriter(osfs.New(root)).WithOverwrite(true).
		WithPrevious("README.md", "server/legacy/old.go", "../outside.txt", "server")
	require.NoError(t, w.Write(context.Background(), testPlan(t), "app"))

	assert.Equal(t, "ref: refs/heads/main\n", read(t, filepath.Join(app, ".git", "HEAD")))
	assert.Equal(t, "# app\n", read(t, filepath.Join(app, "README.md")))
	assert.Equal(t, "package server\n", read(t, filepath.Join(app, "server", "keep.go")))
	assert.NoFileExists(t, filepath.Join(app, "server", "legacy", "old.go"))
	assert.NoDirExists(t, filepath.Join(app, "server", "legacy"), "emptied directories are pruned")
	assert.Equal(t, 1, w.Metrics().FilesRemoved)
	assert.Equal(t, []string{"app"}, entries(t, root))
}

func TestWriterReplaceFailure(t *testing.T) {
	setup := func(t *testing.T) (string, string) {
		root := t.TempDir()
		app := filepath.Join(root, "app")
		write(t, filepath.Join(app, "README.md"), "# edited\n")
		write(t, filepath.Join(app, "old.txt"), "stale")
		return root, app
	}

	t.Run("rename_fails", func(t *testing.T) {
		root, app := setup(t)
		fs := renameFS{Filesystem: osfs.New(root), fail: "App.tsx"}
		err := gen.NewWriter(fs).WithOverwrite(true).WithPrevious("old.txt").
			Write(context.Background(), testPlan(t), "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device busy")
		assert.Equal(t, "# edited\n", read(t, filepath.Join(app, "README.md")))
		assert.Equal(t, "stale", read(t, filepath.Join(app, "old.txt")))
		assert.ElementsMatch(t, []string{"README.md", "old.txt"}, entries(t, app), "new files and directories are rolled back")
		assert.Equal(t, []string{"app"}, entries(t, root))
	})

	t.Run("directory_at_plan_path", func(t *testing.T) {
		root, app := setup(t)
		require.NoError(t, os.MkdirAll(filepath.Join(app, "server", "run.sh"), 0o755))
		err := gen.NewWriter(osfs.New(root)).WithOverwrite(true).Write(context.Background(), testPlan(t), "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory")
		assert.Equal(t, "# edited\n", read(t, filepath.Join(app, "README.md")))
		assert.DirExists(t, filepath.Join(app, "server", "run.sh"))
		assert.NoDirExists(t, filepath.Join(app, "web"))
		assert.Equal(t, []string{"app"}, entries(t, root))
	})
}

func TestWriterFailure(t *testing.T) {
	t.Run("new_destination", func(t *testing.T) {
		root := t.TempDir()
		fs := failingFS{Filesystem: osfs.New(root), fail: "App.tsx"}
		err := gen.NewWriter(fs).Write(context.Background(), testPlan(t), "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Empty(t, entries(t, root), "no partial project may remain")
	})

	t.Run("existing_destination", func(t *testing.T) {
		root := t.TempDir()
		old := filepath.Join(root, "app", "old.txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
		require.NoError(t, os.WriteFile(old, []byte("keep"), 0o644))

		fs := failingFS{Filesystem: osfs.New(root), fail: "main.go"}
		err := gen.NewWriter(fs).WithOverwrite(true).Write(context.Background(), testPlan(t), "app")
		require.Error(t, err)
		got, err := os.ReadFile(old)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(got))
		assert.Equal(t, []string{"app"}, entries(t, root))
	})

	t.Run("canceled", func(t *testing.T) {
		root := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := gen.NewWriter(osfs.New(root)).WithWorkers(1).Write(ctx, testPlan(t), "app")
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, entries(t, root))
	})
}

func TestWriterInvalidDestination(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), nil, 0o644))
	w := gen.NewWriter(osfs.New(root))
	for _, dest := range []string{".", "file"} {
		t.Run(dest, func(t *testing.T) {
			require.Error(t, w.Write(context.Background(), testPlan(t), dest))
		})
	}
}

func TestWriterMemFS(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, gen.NewWriter(fs).WithWorkers(1).Write(context.Background(), testPlan(t), "out/app"))
	got, err := util.ReadFile(fs, "out/app/server/cmd/api/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(got))
	infos, err := fs.ReadDir("out")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "app", infos[0].Name())
}
