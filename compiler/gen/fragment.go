package gen

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/schema"
)

// DefaultMode is the file mode of entries whose fragment does not set one.
const DefaultMode os.FileMode = 0o644

// Fragment is a guarded, path-producing unit of generated content.
type Fragment struct {
	// Name uniquely identifies the fragment within a catalog.
	Name string
	// Path is the destination path pattern, relative to the project root.
	// It may contain placeholders, e.g. "server/migrations/{{database}}/0001_init.sql".
	Path string
	// Body is the content with embedded placeholders.
	Body string
	// Guard decides inclusion. A nil guard is Always().
	Guard Guard
	// Contract marks the body as a contract definition consumed by the
	// contract synchronization pipeline.
	Contract bool
	// Verbatim disables placeholder rendering of the body. Useful for files
	// that legitimately contain "{{", such as frontend templates.
	Verbatim bool
	// Mode is the file mode of the generated file.
	Mode os.FileMode
	// Source names the catalog file the fragment was loaded from.
	Source string
}

func (f *Fragment) guard() Guard {
	if f.Guard == nil {
		return Always()
	}
	return f.Guard
}

func (f *Fragment) mode() os.FileMode {
	if f.Mode == 0 {
		return DefaultMode
	}
	return f.Mode
}

// Catalog is a set of fragments with unique names.
type Catalog struct {
	fragments []*Fragment // sorted by name
}

// NewCatalog builds a catalog from fragments.
func NewCatalog(fragments ...*Fragment) (*Catalog, error) {
	c := &Catalog{}
	if err := c.add(fragments...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewCatalog is like NewCatalog but panics on error.
func MustNewCatalog(fragments ...*Fragment) *Catalog {
	c, err := NewCatalog(fragments...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) add(fragments ...*Fragment) error {
	for _, f := range fragments {
		if f == nil || f.Name == "" {
			return &stackgen.CompositionError{Kind: stackgen.InvalidFragment, Cause: fmt.Errorf("fragment without a name")}
		}
		if f.Path == "" {
			return &stackgen.CompositionError{Kind: stackgen.InvalidFragment, Fragments: []string{f.Name}, Cause: fmt.Errorf("missing path")}
		}
		if _, ok := c.Lookup(f.Name); ok {
			return &stackgen.CompositionError{Kind: stackgen.InvalidFragment, Fragments: []string{f.Name}, Cause: fmt.Errorf("fragment declared twice")}
		}
		c.fragments = append(c.fragments, f)
		slices.SortFunc(c.fragments, func(a, b *Fragment) int { return cmp.Compare(a.Name, b.Name) })
	}
	return nil
}

// Merge returns a new catalog holding the fragments of c and other.
// Fragment names must not collide.
func (c *Catalog) Merge(other *Catalog) (*Catalog, error) {
	merged := &Catalog{fragments: slices.Clone(c.fragments)}
	if err := merged.add(other.fragments...); err != nil {
		return nil, err
	}
	return merged, nil
}

// Len returns the number of fragments.
func (c *Catalog) Len() int { return len(c.fragments) }

// Fragments returns the fragments sorted by name.
func (c *Catalog) Fragments() []*Fragment { return slices.Clone(c.fragments) }

// Lookup returns the fragment with the given name.
func (c *Catalog) Lookup(name string) (*Fragment, bool) {
	i, ok := slices.BinarySearchFunc(c.fragments, name, func(f *Fragment, name string) int {
		return cmp.Compare(f.Name, name)
	})
	if !ok {
		return nil, false
	}
	return c.fragments[i], true
}

// Contracts returns the contract-bearing fragments sorted by name.
func (c *Catalog) Contracts() []*Fragment {
	var fs []*Fragment
	for _, f := range c.fragments {
		if f.Contract {
			fs = append(fs, f)
		}
	}
	return fs
}

// Validate checks that every guard only reads options of the snapshot.
func (c *Catalog) Validate(snap *schema.Snapshot) error {
	var errs []error
	for _, f := range c.fragments {
		for _, o := range f.guard().Options() {
			if snap.Position(o) < 0 {
				errs = append(errs, &stackgen.CompositionError{
					Kind:      stackgen.InvalidFragment,
					Fragments: []string{f.Name},
					Cause:     fmt.Errorf("guard %s reads unknown option %q", f.guard(), o),
				})
			}
		}
	}
	return stackgen.NewAggregateError(errs...)
}
