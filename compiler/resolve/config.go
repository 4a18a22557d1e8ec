package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/syssam/stackgen/schema"
)

// Config is a Project Configuration: one legal value for every option of
// the snapshot, with zero rule denials. It is immutable and only built by
// the Resolver.
type Config struct {
	snapshot *schema.Snapshot
	values   []string // indexed by declaration position
}

// Snapshot returns the schema the configuration was resolved against.
func (c *Config) Snapshot() *schema.Snapshot { return c.snapshot }

// Lookup returns the value of option and whether the option exists.
func (c *Config) Lookup(option string) (string, bool) {
	i := c.snapshot.Position(option)
	if i < 0 {
		return "", false
	}
	return c.values[i], true
}

// Get returns the value of option, or the empty string for unknown options.
func (c *Config) Get(option string) string {
	v, _ := c.Lookup(option)
	return v
}

// Is reports whether option holds one of values.
func (c *Config) Is(option string, values ...string) bool {
	v, ok := c.Lookup(option)
	if !ok {
		return false
	}
	for _, want := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Options returns the option names in declaration order.
func (c *Config) Options() []string { return c.snapshot.Names() }

// AsSelection returns the configuration as a full selection.
func (c *Config) AsSelection() schema.Selection {
	sel := make(schema.Selection, len(c.values))
	for i, name := range c.snapshot.Names() {
		sel[name] = c.values[i]
	}
	return sel
}

// Equal reports whether both configurations hold the same values for the
// same snapshot version.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.snapshot.Version() != other.snapshot.Version() || len(c.values) != len(other.values) {
		return false
	}
	names, otherNames := c.snapshot.Names(), other.snapshot.Names()
	for i := range c.values {
		if names[i] != otherNames[i] || c.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// String returns option=value pairs in declaration order.
func (c *Config) String() string {
	var b strings.Builder
	for i, name := range c.snapshot.Names() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.values[i])
	}
	return b.String()
}

// Hash returns a stable digest of the configuration, used to detect
// whether a regeneration is needed.
func (c *Config) Hash() string {
	h := sha256.New()
	h.Write([]byte(c.snapshot.Version()))
	h.Write([]byte{'\n'})
	for i, name := range c.snapshot.Names() {
		h.Write([]byte(name + "=" + c.values[i] + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
