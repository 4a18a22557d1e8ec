package contract

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/syssam/stackgen"
)

// Type is a semantic field type, independent of any rendering.
type Type string

// Semantic types.
const (
	String Type = "string"
	Int    Type = "int"
	Float  Type = "float"
	Bool   Type = "bool"
	Time   Type = "time"
	ID     Type = "id"
	JSON   Type = "json"
	Ref    Type = "ref"
)

// Types lists the scalar semantic types.
var Types = []Type{String, Int, Float, Bool, Time, ID, JSON}

// Valid reports whether t is a known semantic type.
func (t Type) Valid() bool {
	return t == Ref || slices.Contains(Types, t)
}

var (
	contractName = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	fieldName    = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)
)

// Reserved lists names that renderings use for scalar types and root
// operations, and that contracts therefore cannot take.
var Reserved = []string{
	"Boolean", "DateTime", "Float", "ID", "Int", "JSON", "JSONValue",
	"Mutation", "Query", "String", "Subscription", "Time",
}

// Field is one field of a contract.
type Field struct {
	Name        string
	Type        Type
	Ref         string // referenced contract when Type is Ref
	List        bool
	Optional    bool
	Description string
}

// TypeName returns the referenced contract for refs, and the semantic type
// otherwise.
func (f Field) TypeName() string {
	if f.Type == Ref {
		return f.Ref
	}
	return string(f.Type)
}

// String returns the field in "name: []type?" notation.
func (f Field) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(": ")
	if f.List {
		b.WriteString("[]")
	}
	b.WriteString(f.TypeName())
	if f.Optional {
		b.WriteByte('?')
	}
	return b.String()
}

// structural returns f without documentation.
func (f Field) structural() Field {
	f.Description = ""
	return f
}

// Contract is a named shape: an ordered sequence of fields.
type Contract struct {
	Name        string
	Description string
	Fields      []Field
	// Fragment names the fragment that declared the contract.
	Fragment string
}

// Refs returns the contracts referenced by c in field order, without
// duplicates.
func (c *Contract) Refs() []string {
	var refs []string
	for _, f := range c.Fields {
		if f.Type == Ref && !slices.Contains(refs, f.Ref) {
			refs = append(refs, f.Ref)
		}
	}
	return refs
}

// Field returns the field with the given name.
func (c *Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (c *Contract) validate() error {
	if !contractName.MatchString(c.Name) {
		return stackgen.NewSyncError(c.Name, "contract names must be PascalCase identifiers", nil)
	}
	if slices.Contains(Reserved, c.Name) {
		return stackgen.NewSyncError(c.Name, "contract name is reserved", nil)
	}
	if len(c.Fields) == 0 {
		return stackgen.NewSyncError(c.Name, "contract has no fields", nil)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if !fieldName.MatchString(f.Name) {
			return stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q: field names must be lowerCamel identifiers", f.Name), nil)
		}
		if _, ok := seen[f.Name]; ok {
			return stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q declared twice", f.Name), nil)
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Valid() {
			return stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type), nil)
		}
		if (f.Type == Ref) != (f.Ref != "") {
			return stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q: a reference needs exactly one contract name", f.Name), nil)
		}
	}
	return nil
}

// Set is a validated Contract Set: names are unique, every reference
// resolves and the reference graph is acyclic.
type Set struct {
	contracts []*Contract // sorted by name
}

// NewSet validates contracts and builds a set. Errors are *stackgen.SyncError
// values; a reference cycle carries the cycle path.
func NewSet(contracts ...*Contract) (*Set, error) {
	s := &Set{contracts: slices.Clone(contracts)}
	slices.SortStableFunc(s.contracts, func(a, b *Contract) int { return cmp.Compare(a.Name, b.Name) })
	for i, c := range s.contracts {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if i > 0 && s.contracts[i-1].Name == c.Name {
			return nil, stackgen.NewSyncError(c.Name, fmt.Sprintf("declared by fragments %q and %q", s.contracts[i-1].Fragment, c.Fragment), nil)
		}
	}
	for _, c := range s.contracts {
		for _, f := range c.Fields {
			if f.Type == Ref {
				if _, ok := s.Lookup(f.Ref); !ok {
					return nil, stackgen.NewSyncError(c.Name, fmt.Sprintf("field %q references unknown contract %q", f.Name, f.Ref), nil)
				}
			}
		}
	}
	if cycle := s.findCycle(); cycle != nil {
		return nil, stackgen.NewCycleError(cycle)
	}
	return s, nil
}

// Len returns the number of contracts.
func (s *Set) Len() int { return len(s.contracts) }

// Contracts returns the contracts sorted by name.
func (s *Set) Contracts() []*Contract { return slices.Clone(s.contracts) }

// Names returns the contract names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, len(s.contracts))
	for i, c := range s.contracts {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the contract with the given name.
func (s *Set) Lookup(name string) (*Contract, bool) {
	i, ok := slices.BinarySearchFunc(s.contracts, name, func(c *Contract, name string) int {
		return cmp.Compare(c.Name, name)
	})
	if !ok {
		return nil, false
	}
	return s.contracts[i], true
}

// Uses reports whether any field of the set has type t.
func (s *Set) Uses(t Type) bool {
	for _, c := range s.contracts {
		for _, f := range c.Fields {
			if f.Type == t {
				return true
			}
		}
	}
	return false
}

// Shape returns the structural view of the set.
func (s *Set) Shape() Shape {
	shape := make(Shape, 0, len(s.contracts))
	for _, c := range s.contracts {
		fields := make([]Field, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.structural()
		}
		shape = append(shape, ShapeContract{Name: c.Name, Fields: fields})
	}
	return shape
}

// findCycle runs a depth-first traversal with a visiting set, starting from
// contracts in name order and following references in field order. It
// returns the first cycle found as a closed path, e.g. [A B A].
func (s *Set) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(s.contracts))
	var path []string
	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case visiting:
			start := slices.Index(path, name)
			return append(slices.Clone(path[start:]), name)
		case done:
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		c, _ := s.Lookup(name)
		for _, ref := range c.Refs() {
			if cycle := visit(ref); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}
	for _, c := range s.contracts {
		if cycle := visit(c.Name); cycle != nil {
			return cycle
		}
	}
	return nil
}
