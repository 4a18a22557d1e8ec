package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Selection is a partial mapping from option name to chosen value.
// Options absent from the map are unset.
type Selection map[string]string

// Get returns the value of the option and whether it is set.
func (s Selection) Get(option string) (string, bool) {
	v, ok := s[option]
	return v, ok
}

// IsSet reports whether every given option is set.
func (s Selection) IsSet(options ...string) bool {
	for _, o := range options {
		if _, ok := s[o]; !ok {
			return false
		}
	}
	return true
}

// Keys returns the set option names in lexical order.
func (s Selection) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a copy of the selection.
func (s Selection) Clone() Selection {
	if s == nil {
		return Selection{}
	}
	return maps.Clone(s)
}

// With returns a copy of the selection with option set to value.
func (s Selection) With(option, value string) Selection {
	c := s.Clone()
	c[option] = value
	return c
}

// String returns the selection as sorted key=value pairs.
func (s Selection) String() string {
	pairs := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		pairs = append(pairs, k+"="+s[k])
	}
	return "{" + strings.Join(pairs, " ") + "}"
}

// ParseSelection parses "option=value" pairs, as given on the command line.
func ParseSelection(pairs []string) (Selection, error) {
	sel := make(Selection, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("schema: malformed selection %q, expected option=value", p)
		}
		if prev, dup := sel[k]; dup && prev != v {
			return nil, fmt.Errorf("schema: option %q selected twice (%q, %q)", k, prev, v)
		}
		sel[k] = v
	}
	return sel, nil
}

// DecodeSelection decodes a YAML mapping of option to value.
func DecodeSelection(data []byte) (Selection, error) {
	var sel Selection
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("schema: decode selection: %w", err)
	}
	if sel == nil {
		sel = Selection{}
	}
	return sel, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Boolean values are accepted
// for on/off options, so that "auth: true" reads as "auth: enabled".
func (s *Selection) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	sel := make(Selection, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			sel[k] = v
		case bool:
			if v {
				sel[k] = "enabled"
			} else {
				sel[k] = "disabled"
			}
		default:
			return fmt.Errorf("option %q must be a string, got %T", k, v)
		}
	}
	*s = sel
	return nil
}
