package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/syssam/stackgen"
)

// Option is one selectable configuration axis.
type Option struct {
	// Name identifies the option (e.g. "backend").
	Name string
	// Values holds the legal values in declaration order.
	Values []string
	// Default is the value used when the selection leaves the option unset.
	Default string
	// Description is shown by the CLI.
	Description string
}

// Has reports whether value is legal for the option.
func (o Option) Has(value string) bool {
	return slices.Contains(o.Values, value)
}

// Alternatives returns the legal values other than the default, in lexical order.
func (o Option) Alternatives() []string {
	alts := make([]string, 0, len(o.Values))
	for _, v := range o.Values {
		if v != o.Default {
			alts = append(alts, v)
		}
	}
	sort.Strings(alts)
	return alts
}

func (o Option) clone() Option {
	o.Values = slices.Clone(o.Values)
	return o
}

// Snapshot is an immutable, versioned set of options.
type Snapshot struct {
	version string
	options []Option
	index   map[string]int
}

// New builds a snapshot from options in declaration order.
func New(version string, options ...Option) (*Snapshot, error) {
	if version == "" {
		return nil, fmt.Errorf("schema: missing snapshot version")
	}
	s := &Snapshot{
		version: version,
		options: make([]Option, 0, len(options)),
		index:   make(map[string]int, len(options)),
	}
	for _, o := range options {
		if o.Name == "" {
			return nil, fmt.Errorf("schema: option without a name")
		}
		if _, ok := s.index[o.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate option %q", o.Name)
		}
		if len(o.Values) == 0 {
			return nil, fmt.Errorf("schema: option %q has no values", o.Name)
		}
		seen := make(map[string]struct{}, len(o.Values))
		for _, v := range o.Values {
			if v == "" {
				return nil, fmt.Errorf("schema: option %q has an empty value", o.Name)
			}
			if _, ok := seen[v]; ok {
				return nil, fmt.Errorf("schema: option %q declares value %q twice", o.Name, v)
			}
			seen[v] = struct{}{}
		}
		if !o.Has(o.Default) {
			return nil, fmt.Errorf("schema: default %q of option %q is not a legal value", o.Default, o.Name)
		}
		s.index[o.Name] = len(s.options)
		s.options = append(s.options, o.clone())
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(version string, options ...Option) *Snapshot {
	s, err := New(version, options...)
	if err != nil {
		panic(err)
	}
	return s
}

// Version returns the snapshot version.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of options.
func (s *Snapshot) Len() int { return len(s.options) }

// Options returns a copy of the options in declaration order.
func (s *Snapshot) Options() []Option {
	opts := make([]Option, len(s.options))
	for i, o := range s.options {
		opts[i] = o.clone()
	}
	return opts
}

// Names returns the option names in declaration order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.options))
	for i, o := range s.options {
		names[i] = o.Name
	}
	return names
}

// Lookup returns the option with the given name.
func (s *Snapshot) Lookup(name string) (Option, bool) {
	i, ok := s.index[name]
	if !ok {
		return Option{}, false
	}
	return s.options[i].clone(), true
}

// Position returns the declaration index of the option, or -1.
func (s *Snapshot) Position(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// SortByDeclaration sorts option names in declaration order. Unknown names
// sort last, lexically.
func (s *Snapshot) SortByDeclaration(names []string) []string {
	sorted := slices.Clone(names)
	slices.SortStableFunc(sorted, func(a, b string) int {
		pa, pb := s.Position(a), s.Position(b)
		switch {
		case pa >= 0 && pb >= 0:
			return pa - pb
		case pa >= 0:
			return -1
		case pb >= 0:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return slices.Compact(sorted)
}

// Validate rejects selections naming unknown options or out-of-enum values.
// All violations are reported.
func (s *Snapshot) Validate(sel Selection) error {
	var errs []error
	for _, name := range sel.Keys() {
		o, ok := s.Lookup(name)
		if !ok {
			errs = append(errs, &stackgen.InvalidSelectionError{Option: name})
			continue
		}
		if v := sel[name]; !o.Has(v) {
			errs = append(errs, &stackgen.InvalidSelectionError{Option: name, Value: v, Allowed: o.Values})
		}
	}
	return stackgen.NewAggregateError(errs...)
}

// Defaults returns a selection holding every option's default.
func (s *Snapshot) Defaults() Selection {
	sel := make(Selection, len(s.options))
	for _, o := range s.options {
		sel[o.Name] = o.Default
	}
	return sel
}
