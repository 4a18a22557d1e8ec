// Package stackgen generates full-stack projects from a selection of
// mutually constrained options.
//
// A generation run resolves the selection into a Project Configuration
// (see compiler/resolve), composes a File Plan from a fragment catalog
// (compiler/gen), derives the shared Contract Set and renders it for the
// server and the client (contract), and materializes the merged plan to
// disk all-or-nothing (compiler). The identity package implements the
// request-time Identity Bridge used by generated applications.
//
// This package holds the error taxonomy and the Cache interface shared by
// the subpackages.
package stackgen

// Version is the stackgen release version.
const Version = "0.4.0"
