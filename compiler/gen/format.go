package gen

import (
	"fmt"

	"golang.org/x/tools/imports"
	gofumpt "mvdan.cc/gofumpt/format"
)

// Formatter formats the rendered content of a Go file.
type Formatter interface {
	Format(path string, src []byte) ([]byte, error)
}

// FormatterFunc is an adapter to allow the use of ordinary functions as
// formatters.
type FormatterFunc func(path string, src []byte) ([]byte, error)

// Format returns f(path, src).
func (f FormatterFunc) Format(path string, src []byte) ([]byte, error) {
	return f(path, src)
}

// Formatter names accepted by FormatterFor.
const (
	FormatGoimports = "goimports"
	FormatGofumpt   = "gofumpt"
	FormatNone      = "none"
)

// Goimports formats with gofmt rules and sorts imports. It never adds or
// removes imports, so output does not depend on the local module cache.
var Goimports = FormatterFunc(func(path string, src []byte) ([]byte, error) {
	return imports.Process(path, src, &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
})

// Gofumpt returns a formatter applying the stricter gofumpt rules.
func Gofumpt(modulePath string) Formatter {
	return FormatterFunc(func(_ string, src []byte) ([]byte, error) {
		return gofumpt.Source(src, gofumpt.Options{ModulePath: modulePath})
	})
}

// FormatterFor returns the formatter registered under name. FormatNone
// yields a nil formatter.
func FormatterFor(name, modulePath string) (Formatter, error) {
	switch name {
	case FormatGoimports, "":
		return Goimports, nil
	case FormatGofumpt:
		return Gofumpt(modulePath), nil
	case FormatNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("gen: unknown formatter %q; use goimports, gofumpt or none", name)
	}
}
