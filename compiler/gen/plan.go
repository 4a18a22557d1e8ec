package gen

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"slices"
	"strconv"

	"github.com/syssam/stackgen"
)

// Entry is one file of a plan.
type Entry struct {
	Path     string // slash-separated, relative to the project root
	Content  []byte
	Mode     os.FileMode
	Fragment string // producing fragment, or the producing stage for derived files
}

// Plan is the ordered, materialization-ready output of composition. Entries
// are sorted by path and every path appears at most once.
type Plan struct {
	Entries []Entry
}

// Len returns the number of entries.
func (p *Plan) Len() int { return len(p.Entries) }

// Paths returns the entry paths in plan order.
func (p *Plan) Paths() []string {
	paths := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Lookup returns the entry at path.
func (p *Plan) Lookup(path string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(p.Entries, path, func(e Entry, path string) int {
		return cmp.Compare(e.Path, path)
	})
	if !ok {
		return Entry{}, false
	}
	return p.Entries[i], true
}

// Replace sets the content of the entry at path. It reports whether the
// entry exists.
func (p *Plan) Replace(path string, content []byte) bool {
	i, ok := slices.BinarySearchFunc(p.Entries, path, func(e Entry, path string) int {
		return cmp.Compare(e.Path, path)
	})
	if ok {
		p.Entries[i].Content = content
	}
	return ok
}

// Add inserts entries, keeping the plan sorted. A path already present is a
// CompositionError naming both producers.
func (p *Plan) Add(entries ...Entry) error {
	for _, e := range entries {
		i, found := slices.BinarySearchFunc(p.Entries, e.Path, func(x Entry, path string) int {
			return cmp.Compare(x.Path, path)
		})
		if found {
			return stackgen.NewDuplicatePathError(e.Path, p.Entries[i].Fragment, e.Fragment)
		}
		if e.Mode == 0 {
			e.Mode = DefaultMode
		}
		p.Entries = slices.Insert(p.Entries, i, e)
	}
	return nil
}

// Digest returns a stable digest of paths, modes and contents.
func (p *Plan) Digest() string {
	h := sha256.New()
	for _, e := range p.Entries {
		h.Write([]byte(e.Path))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatUint(uint64(e.Mode.Perm()), 8)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(len(e.Content))))
		h.Write([]byte{0})
		h.Write(e.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
