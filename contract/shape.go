package contract

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/syssam/stackgen"
)

// Shape is the structural view of a Contract Set or of one of its
// renderings: contracts sorted by name, fields in declaration order and no
// documentation. Two renderings are equivalent iff their shapes are equal.
type Shape []ShapeContract

// ShapeContract is one contract of a Shape.
type ShapeContract struct {
	Name   string
	Fields []Field
}

// Sort orders the contracts by name.
func (s Shape) Sort() {
	slices.SortFunc(s, func(a, b ShapeContract) int { return cmp.Compare(a.Name, b.Name) })
}

// Compare reports the first structural difference between want and got as
// a *stackgen.SyncError, or nil when they are equal.
func Compare(want, got Shape) error {
	index := make(map[string]ShapeContract, len(got))
	for _, c := range got {
		index[c.Name] = c
	}
	for _, w := range want {
		g, ok := index[w.Name]
		if !ok {
			return stackgen.NewSyncError(w.Name, "missing from rendering", nil)
		}
		delete(index, w.Name)
		for i, wf := range w.Fields {
			if i >= len(g.Fields) {
				return stackgen.NewSyncError(w.Name, fmt.Sprintf("field %q missing from rendering", wf.Name), nil)
			}
			if gf := g.Fields[i]; gf.structural() != wf.structural() {
				return stackgen.NewSyncError(w.Name, fmt.Sprintf("field %d: want %q, rendered %q", i, wf, gf), nil)
			}
		}
		if extra := g.Fields[min(len(w.Fields), len(g.Fields)):]; len(extra) > 0 {
			return stackgen.NewSyncError(w.Name, fmt.Sprintf("unexpected field %q in rendering", extra[0].Name), nil)
		}
	}
	if len(index) > 0 {
		names := make([]string, 0, len(index))
		for name := range index {
			names = append(names, name)
		}
		slices.Sort(names)
		return stackgen.NewSyncError(names[0], "unexpected contract in rendering", nil)
	}
	return nil
}
