package contract

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/compiler/resolve"
)

// Renderer materializes a Contract Set in one type system and can parse its
// own output back into a Shape.
type Renderer interface {
	// Name identifies the renderer in plan entries and errors.
	Name() string
	// Guard decides whether the renderer applies to a configuration.
	Guard() gen.Guard
	// Path is the project-relative path of the rendering.
	Path() string
	// Render renders set. Output must be a pure function of set.
	Render(set *Set) ([]byte, error)
	// Parse extracts the shape of a rendering.
	Parse(src []byte) (Shape, error)
}

// Companion is implemented by renderers that emit additional files next to
// their rendering, such as tool configuration bound to the rendered types.
type Companion interface {
	Companions(set *Set) (map[string][]byte, error)
}

// Rendering is one rendered file.
type Rendering struct {
	Renderer string
	Path     string
	Content  []byte
}

// Result is the output of a synchronization.
type Result struct {
	Set        *Set
	Renderings []Rendering // sorted by path
}

// Entries returns the renderings as plan entries.
func (r *Result) Entries() []gen.Entry {
	entries := make([]gen.Entry, len(r.Renderings))
	for i, rr := range r.Renderings {
		entries[i] = gen.Entry{
			Path:     rr.Path,
			Content:  rr.Content,
			Mode:     gen.DefaultMode,
			Fragment: "contract/" + rr.Renderer,
		}
	}
	return entries
}

// Lookup returns the rendering at path.
func (r *Result) Lookup(path string) (Rendering, bool) {
	for _, rr := range r.Renderings {
		if rr.Path == path {
			return rr, true
		}
	}
	return Rendering{}, false
}

// Pipeline derives the Contract Set of a configuration from the
// contract-bearing fragments of a catalog and renders it.
type Pipeline struct {
	Catalog   *gen.Catalog
	Renderers []Renderer
	// Composer renders placeholders in contract bodies. Nil means a
	// default composer.
	Composer *gen.Composer
	Logger   *slog.Logger
}

// Synchronize builds the Contract Set for cfg, renders it with every
// applicable renderer and checks that all renderings are structurally
// equivalent to the set. Errors are *stackgen.SyncError values.
func (p *Pipeline) Synchronize(cfg *resolve.Config) (*Result, error) {
	set, err := p.Contracts(cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Set: set}
	if set.Len() == 0 {
		return res, nil
	}
	for _, r := range p.Renderers {
		if !r.Guard().Eval(cfg) {
			continue
		}
		content, err := r.Render(set)
		if err != nil {
			return nil, stackgen.NewSyncError("", fmt.Sprintf("render %s", r.Name()), err)
		}
		res.Renderings = append(res.Renderings, Rendering{Renderer: r.Name(), Path: r.Path(), Content: content})
		if c, ok := r.(Companion); ok {
			files, err := c.Companions(set)
			if err != nil {
				return nil, stackgen.NewSyncError("", fmt.Sprintf("render %s companions", r.Name()), err)
			}
			for path, content := range files {
				res.Renderings = append(res.Renderings, Rendering{Renderer: r.Name(), Path: path, Content: content})
			}
		}
	}
	slices.SortFunc(res.Renderings, func(a, b Rendering) int { return cmp.Compare(a.Path, b.Path) })
	if err := p.Verify(res); err != nil {
		return nil, err
	}
	p.logger().Debug("contracts synchronized",
		slog.Int("contracts", set.Len()),
		slog.Int("renderings", len(res.Renderings)),
	)
	return res, nil
}

// Contracts builds the Contract Set of cfg without rendering it.
func (p *Pipeline) Contracts(cfg *resolve.Config) (*Set, error) {
	composer := p.Composer
	if composer == nil {
		composer = gen.NewComposer()
	}
	var contracts []*Contract
	for _, f := range composer.Select(cfg, p.Catalog) {
		if !f.Contract {
			continue
		}
		_, body, err := composer.Render(cfg, f)
		if err != nil {
			return nil, stackgen.NewSyncError("", fmt.Sprintf("render fragment %q", f.Name), err)
		}
		cs, err := Decode(f.Name, body)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, cs...)
	}
	return NewSet(contracts...)
}

// Verify parses every primary rendering of res back into a shape and
// compares it with the shape of the set.
func (p *Pipeline) Verify(res *Result) error {
	want := res.Set.Shape()
	var errs []error
	for _, r := range p.Renderers {
		rr, ok := res.Lookup(r.Path())
		if !ok || rr.Renderer != r.Name() {
			continue
		}
		got, err := r.Parse(rr.Content)
		if err != nil {
			errs = append(errs, stackgen.NewSyncError("", fmt.Sprintf("parse %s rendering", r.Name()), err))
			continue
		}
		if err := Compare(want, got); err != nil {
			errs = append(errs, fmt.Errorf("%s rendering: %w", r.Name(), err))
		}
	}
	return stackgen.NewAggregateError(errs...)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
