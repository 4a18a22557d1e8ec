package gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrDestinationNotEmpty is returned when materializing into a non-empty
// directory without overwrite enabled.
var ErrDestinationNotEmpty = errors.New("gen: destination directory is not empty")

// Writer materializes plans with parallel file writes. Files are written to
// a sibling staging directory first. A new destination is then renamed into
// place as a whole; in an existing one only the paths the plan owns are
// replaced, and everything else is left alone. Any failure removes the
// staging directory and leaves the destination as it was.
type Writer struct {
	fs        billy.Filesystem
	workers   int
	overwrite bool
	previous  []string
	logger    *slog.Logger

	mu      sync.Mutex
	metrics *WriterMetrics
}

// WriterMetrics tracks materialization performance.
type WriterMetrics struct {
	FilesWritten int
	FilesRemoved int
	TotalBytes   int64
	WriteTime    time.Duration
}

// NewWriter creates a writer on fs.
func NewWriter(fs billy.Filesystem) *Writer {
	return &Writer{
		fs:      fs,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.New(slog.DiscardHandler),
		metrics: &WriterMetrics{},
	}
}

// WithWorkers sets the number of parallel workers.
func (w *Writer) WithWorkers(n int) *Writer {
	if n > 0 {
		w.workers = n
	}
	return w
}

// WithOverwrite allows writing into a non-empty destination. Files at plan
// paths are replaced; other files are kept.
func (w *Writer) WithOverwrite(overwrite bool) *Writer {
	w.overwrite = overwrite
	return w
}

// WithPrevious names the files an earlier generation wrote at the
// destination. Those the plan no longer contains are removed.
func (w *Writer) WithPrevious(paths ...string) *Writer {
	w.previous = paths
	return w
}

// WithLogger sets the logger.
func (w *Writer) WithLogger(l *slog.Logger) *Writer {
	if l != nil {
		w.logger = l
	}
	return w
}

// Metrics returns a copy of the accumulated metrics.
func (w *Writer) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.metrics
}

// Write materializes plan at dest.
func (w *Writer) Write(ctx context.Context, plan *Plan, dest string) (err error) {
	start := time.Now()
	dest = filepath.Clean(dest)
	if dest == "." || dest == string(filepath.Separator) {
		return fmt.Errorf("gen: invalid destination %q", dest)
	}
	exists, empty, err := w.inspect(dest)
	if err != nil {
		return err
	}
	if exists && !empty && !w.overwrite {
		return fmt.Errorf("%w: %s", ErrDestinationNotEmpty, dest)
	}

	id := uuid.NewString()[:8]
	parent, base := filepath.Dir(dest), filepath.Base(dest)
	staging := w.fs.Join(parent, "."+base+".stackgen-"+id)
	if err := w.fs.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err != nil || exists {
			if rerr := util.RemoveAll(w.fs, staging); rerr != nil {
				err = errors.Join(err, fmt.Errorf("remove staging directory: %w", rerr))
			}
		}
	}()

	if err := w.mkdirs(staging, plan); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, e := range plan.Entries {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(staging, e)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if !exists {
		if err := w.fs.Rename(staging, dest); err != nil {
			return fmt.Errorf("move staging into place: %w", err)
		}
	} else if err := w.replace(staging, dest, plan, id); err != nil {
		return err
	}

	w.mu.Lock()
	w.metrics.WriteTime += time.Since(start)
	w.mu.Unlock()
	w.logger.Info("plan materialized",
		slog.String("dest", dest),
		slog.Int("files", plan.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// inspect reports whether dest exists and whether it is an empty directory.
func (w *Writer) inspect(dest string) (exists, empty bool, err error) {
	fi, err := w.fs.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return false, true, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("stat destination: %w", err)
	}
	if !fi.IsDir() {
		return true, false, fmt.Errorf("gen: destination %s is not a directory", dest)
	}
	infos, err := w.fs.ReadDir(dest)
	if err != nil {
		return true, false, fmt.Errorf("read destination: %w", err)
	}
	return true, len(infos) == 0, nil
}

// mkdirs creates every parent directory of the plan sequentially, so that
// the parallel phase only creates files.
func (w *Writer) mkdirs(root string, plan *Plan) error {
	var dirs []string
	for _, e := range plan.Entries {
		if i := strings.LastIndexByte(e.Path, '/'); i > 0 {
			dirs = append(dirs, e.Path[:i])
		}
	}
	slices.Sort(dirs)
	for _, d := range slices.Compact(dirs) {
		if err := w.fs.MkdirAll(w.join(root, d), 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// writeFile writes a single entry below root.
func (w *Writer) writeFile(root string, e Entry) error {
	mode := e.Mode
	if mode == 0 {
		mode = DefaultMode
	}
	f, err := w.fs.OpenFile(w.join(root, e.Path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Path, err)
	}
	_, werr := f.Write(e.Content)
	if err := errors.Join(werr, f.Close()); err != nil {
		return fmt.Errorf("write %s: %w", e.Path, err)
	}

	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(e.Content))
	w.mu.Unlock()
	return nil
}

// move is one rename applied to the destination, undone in reverse order
// on failure.
type move struct{ from, to string }

// swap is the state of one replace: the renames applied so far and the
// directories created in the destination.
type swap struct {
	fs      billy.Filesystem
	moves   []move
	created []string
}

func (s *swap) rename(from, to string) error {
	if err := s.mkdirAll(filepath.Dir(to)); err != nil {
		return err
	}
	if err := s.fs.Rename(from, to); err != nil {
		return err
	}
	s.moves = append(s.moves, move{from: from, to: to})
	return nil
}

// mkdirAll creates dir and records the directories that did not exist.
func (s *swap) mkdirAll(dir string) error {
	var missing []string
	for d := dir; d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
		if _, err := s.fs.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
	}
	if len(missing) == 0 {
		return nil
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.created = append(s.created, missing...)
	return nil
}

// undo reverts the applied renames and removes the created directories.
func (s *swap) undo() error {
	var errs []error
	for i := len(s.moves) - 1; i >= 0; i-- {
		m := s.moves[i]
		if err := s.fs.Rename(m.to, m.from); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", m.from, err))
		}
	}
	slices.SortFunc(s.created, func(a, b string) int { return len(b) - len(a) })
	for _, d := range s.created {
		_ = s.fs.Remove(d)
	}
	return errors.Join(errs...)
}

// replace moves the staged plan into the existing destination. Files at
// plan paths and stale files of the previous generation are moved to a
// backup directory, which is removed once every staged file is in place.
func (w *Writer) replace(staging, dest string, plan *Plan, id string) (err error) {
	backup := w.fs.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".stackgen-"+id+".old")
	s := &swap{fs: w.fs}
	defer func() {
		if err != nil {
			if uerr := s.undo(); uerr != nil {
				err = errors.Join(err, uerr)
			}
		}
		if rerr := util.RemoveAll(w.fs, backup); rerr != nil {
			w.logger.Warn("failed to remove backup directory",
				slog.String("path", backup),
				slog.String("error", rerr.Error()),
			)
		}
	}()

	aside := func(rel string) error {
		fi, err := w.fs.Lstat(w.join(dest, rel))
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil
		case err != nil:
			return fmt.Errorf("stat %s: %w", rel, err)
		case fi.IsDir():
			return fmt.Errorf("gen: %s is a directory in %s", rel, dest)
		}
		if err := s.rename(w.join(dest, rel), w.join(backup, rel)); err != nil {
			return fmt.Errorf("move %s aside: %w", rel, err)
		}
		return nil
	}
	owned := make(map[string]bool, plan.Len())
	for _, e := range plan.Entries {
		owned[e.Path] = true
		if err := aside(e.Path); err != nil {
			return err
		}
		if err := s.rename(w.join(staging, e.Path), w.join(dest, e.Path)); err != nil {
			return fmt.Errorf("move %s into place: %w", e.Path, err)
		}
	}
	var stale []string
	for _, p := range w.previous {
		if owned[p] || !local(p) {
			continue
		}
		if fi, err := w.fs.Lstat(w.join(dest, p)); err != nil || fi.IsDir() {
			continue
		}
		if err := aside(p); err != nil {
			return err
		}
		stale = append(stale, p)
	}
	w.prune(dest, stale)
	w.mu.Lock()
	w.metrics.FilesRemoved += len(stale)
	w.mu.Unlock()
	return nil
}

// prune removes the directories of removed files that became empty.
func (w *Writer) prune(dest string, removed []string) {
	var dirs []string
	for _, p := range removed {
		for d := path.Dir(p); d != "."; d = path.Dir(d) {
			dirs = append(dirs, d)
		}
	}
	slices.SortFunc(dirs, func(a, b string) int {
		if n := strings.Count(b, "/") - strings.Count(a, "/"); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	for _, d := range slices.Compact(dirs) {
		if infos, err := w.fs.ReadDir(w.join(dest, d)); err == nil && len(infos) == 0 {
			_ = w.fs.Remove(w.join(dest, d))
		}
	}
}

// local reports whether p is a relative slash path inside the destination.
func local(p string) bool {
	return p != "" && filepath.IsLocal(filepath.FromSlash(p))
}

func (w *Writer) join(root, slashPath string) string {
	return w.fs.Join(append([]string{root}, strings.Split(slashPath, "/")...)...)
}
