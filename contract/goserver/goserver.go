// Package goserver renders Contract Sets as Go structs for the generated
// backend.
package goserver

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/contract"
	"github.com/syssam/stackgen/schema"
)

// DefaultPath is where the server rendering is written.
const DefaultPath = "server/internal/contract/contract.go"

// Header is the first line of every rendering.
const Header = "Code generated by stackgen. DO NOT EDIT."

// qualified Go types of the non-builtin semantic types.
var qualified = map[contract.Type][2]string{
	contract.Time: {"time", "Time"},
	contract.ID:   {"github.com/google/uuid", "UUID"},
	contract.JSON: {"encoding/json", "RawMessage"},
}

// builtin Go types of the remaining scalar semantic types.
var builtin = map[contract.Type]string{
	contract.String: "string",
	contract.Int:    "int64",
	contract.Float:  "float64",
	contract.Bool:   "bool",
}

// Renderer renders the server form.
type Renderer struct {
	pkg  string
	path string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPackage sets the Go package name of the rendering.
func WithPackage(name string) Option {
	return func(r *Renderer) {
		if name != "" {
			r.pkg = name
		}
	}
}

// WithPath sets the path of the rendering.
func WithPath(p string) Option {
	return func(r *Renderer) {
		if p != "" {
			r.path = p
		}
	}
}

// New returns a Go renderer. The package name defaults to the base name of
// the directory of the rendering.
func New(opts ...Option) *Renderer {
	r := &Renderer{path: DefaultPath}
	for _, opt := range opts {
		opt(r)
	}
	if r.pkg == "" {
		r.pkg = path.Base(path.Dir(r.path))
	}
	return r
}

// Name implements contract.Renderer.
func (*Renderer) Name() string { return "go" }

// Guard implements contract.Renderer. The server form exists whenever the
// project has a backend.
func (*Renderer) Guard() gen.Guard { return gen.Not(gen.Eq(schema.OptBackend, schema.None)) }

// Path implements contract.Renderer.
func (r *Renderer) Path() string { return r.path }

// Package returns the Go package name of the rendering.
func (r *Renderer) Package() string { return r.pkg }

// Render implements contract.Renderer.
func (r *Renderer) Render(set *contract.Set) ([]byte, error) {
	f := jen.NewFile(r.pkg)
	f.HeaderComment(Header)
	for _, c := range set.Contracts() {
		seen := make(map[string]string, len(c.Fields))
		for _, fd := range c.Fields {
			name := FieldName(fd.Name)
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("%s: fields %q and %q both render as %s", c.Name, prev, fd.Name, name)
			}
			seen[name] = fd.Name
		}
		if c.Description != "" {
			f.Commentf("%s is the %s contract. %s", c.Name, c.Name, c.Description)
		} else {
			f.Commentf("%s is the %s contract.", c.Name, c.Name)
		}
		f.Type().Id(c.Name).StructFunc(func(group *jen.Group) {
			for _, fd := range c.Fields {
				group.Id(FieldName(fd.Name)).Add(goType(fd)).Tag(map[string]string{"json": jsonTag(fd)})
			}
		})
		renderMarshal(f, c)
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderMarshal emits a MarshalJSON method for contracts with required
// lists, so that a nil slice is sent as [] rather than null.
func renderMarshal(f *jen.File, c *contract.Contract) {
	var lists []contract.Field
	for _, fd := range c.Fields {
		if fd.List && !fd.Optional {
			lists = append(lists, fd)
		}
	}
	if len(lists) == 0 {
		return
	}
	f.Comment("MarshalJSON encodes nil lists as empty arrays.")
	f.Func().Params(jen.Id("v").Id(c.Name)).Id("MarshalJSON").Params().Params(jen.Index().Byte(), jen.Error()).BlockFunc(func(g *jen.Group) {
		g.Type().Id("plain").Id(c.Name)
		for _, fd := range lists {
			field := jen.Id("v").Dot(FieldName(fd.Name))
			g.If(field.Clone().Op("==").Nil()).Block(
				field.Clone().Op("=").Add(goType(fd)).Values(),
			)
		}
		g.Return(jen.Qual("encoding/json", "Marshal").Call(jen.Id("plain").Call(jen.Id("v"))))
	})
}

func goType(fd contract.Field) *jen.Statement {
	var t *jen.Statement
	if q, ok := qualified[fd.Type]; ok {
		t = jen.Qual(q[0], q[1])
	} else if b, ok := builtin[fd.Type]; ok {
		t = jen.Id(b)
	} else {
		t = jen.Id(fd.Ref)
	}
	switch {
	case fd.List:
		return jen.Index().Add(t)
	case fd.Optional:
		return jen.Op("*").Add(t)
	}
	return t
}

func jsonTag(fd contract.Field) string {
	if fd.Optional {
		return fd.Name + ",omitempty"
	}
	return fd.Name
}

// Parse implements contract.Renderer. Struct types become contracts; JSON
// tags carry the canonical field names and optionality.
func (r *Renderer) Parse(src []byte) (contract.Shape, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, r.path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	imports := make(map[string]string)
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, err
		}
		name := path.Base(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		imports[name] = p
	}
	var shape contract.Shape
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			c := contract.ShapeContract{Name: ts.Name.Name}
			for _, field := range st.Fields.List {
				fd, err := parseField(field, imports)
				if err != nil {
					return nil, fmt.Errorf("%s: %s: %w", fset.Position(field.Pos()), c.Name, err)
				}
				c.Fields = append(c.Fields, fd)
			}
			shape = append(shape, c)
		}
	}
	shape.Sort()
	return shape, nil
}

func parseField(field *ast.Field, imports map[string]string) (contract.Field, error) {
	if len(field.Names) != 1 || field.Tag == nil {
		return contract.Field{}, fmt.Errorf("expected one named field with a json tag")
	}
	tag, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return contract.Field{}, err
	}
	name, opts, _ := strings.Cut(reflect.StructTag(tag).Get("json"), ",")
	if name == "" {
		return contract.Field{}, fmt.Errorf("field %s has no json name", field.Names[0].Name)
	}
	fd := contract.Field{Name: name, Optional: opts == "omitempty"}
	expr := field.Type
	pointer := false
	if star, ok := expr.(*ast.StarExpr); ok {
		pointer, expr = true, star.X
	}
	if arr, ok := expr.(*ast.ArrayType); ok && arr.Len == nil {
		fd.List, expr = true, arr.Elt
	}
	if pointer != (fd.Optional && !fd.List) {
		return contract.Field{}, fmt.Errorf("field %s: pointer and omitempty disagree", field.Names[0].Name)
	}
	switch x := expr.(type) {
	case *ast.Ident:
		fd.Type = contract.Ref
		for t, b := range builtin {
			if b == x.Name {
				fd.Type = t
			}
		}
		if fd.Type == contract.Ref {
			fd.Ref = x.Name
		}
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if !ok {
			return contract.Field{}, fmt.Errorf("field %s: unsupported type", field.Names[0].Name)
		}
		for t, q := range qualified {
			if q[0] == imports[pkg.Name] && q[1] == x.Sel.Name {
				fd.Type = t
			}
		}
		if fd.Type == "" {
			return contract.Field{}, fmt.Errorf("field %s: unsupported type %s.%s", field.Names[0].Name, pkg.Name, x.Sel.Name)
		}
	default:
		return contract.Field{}, fmt.Errorf("field %s: unsupported type", field.Names[0].Name)
	}
	return fd, nil
}
