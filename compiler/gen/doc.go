// Package gen implements the Template Composition Engine.
//
// A [Catalog] is a set of [Fragment] values. Each fragment carries a path
// pattern, a body and a [Guard]: a predicate value over the resolved
// configuration, built from Eq, In, Not, All and Any. Composition evaluates
// every guard eagerly and renders the included fragments into a [Plan]:
//
//	catalog := gen.MustNewCatalog(
//	    &gen.Fragment{
//	        Name:  "auth-middleware",
//	        Path:  "server/internal/auth/{{auth_provider}}.go",
//	        Body:  "package auth\n\nconst Provider = \"{{auth_provider | title}}\"\n",
//	        Guard: gen.Eq("auth", "enabled"),
//	    },
//	)
//	plan, err := gen.Compose(cfg, catalog)
//
// # Placeholders
//
// Paths and bodies reference option values as {{option}}, optionally piped
// through filters ({{backend | pascal}}). Placeholders are substituted
// before duplicate path detection. A placeholder naming neither an option
// nor a project variable fails composition; nothing is ever left blank.
// Write \{{ for a literal "{{", or mark the fragment Verbatim.
//
// # Errors
//
// Composition failures are *stackgen.CompositionError values: two fragments
// producing the same final path (both are named), unresolved placeholders,
// malformed fragments and Go formatting failures.
//
// # Materialization
//
// [Writer] writes a plan through a billy.Filesystem. Files are written in
// parallel into a staging directory that replaces the destination once every
// file is written, so a failed run leaves no partial project behind.
package gen
