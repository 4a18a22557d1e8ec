// Package schema defines the Option Schema: the typed enumeration of every
// selectable option and its legal values.
//
// A schema is consumed as an immutable, versioned [Snapshot]. Upgrading the
// option set means building a new snapshot with [New]; there is no API to
// mutate one in place.
//
//	snap := schema.MustNew("2026.10",
//	    schema.Option{Name: "backend", Values: []string{"chi", "none"}, Default: "chi"},
//	    schema.Option{Name: "database", Values: []string{"sqlite", "none"}, Default: "sqlite"},
//	)
//
//	sel := schema.Selection{"backend": "chi"}
//	if err := snap.Validate(sel); err != nil {
//	    // unknown option or out-of-enum value
//	}
//
// # Builtin
//
// [Builtin] returns the snapshot shipped with stackgen. Its option names and
// values are exported as constants (OptBackend, BackendChi, ...) so that
// rules and guards can refer to them without string literals.
package schema
