// Package graphql renders Contract Sets as GraphQL SDL for projects using
// the GraphQL API style, together with the gqlgen configuration binding the
// SDL types to the Go contract package.
package graphql

import (
	"bytes"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/contract"
	"github.com/syssam/stackgen/schema"
)

// DefaultPath is where the SDL rendering is written.
const DefaultPath = "server/graph/contract.graphqls"

// ConfigPath is where the gqlgen configuration is written.
const ConfigPath = "server/gqlgen.yml"

// scalars maps semantic types to GraphQL named types. Time and JSON are
// custom scalars declared by the rendering.
var scalars = map[contract.Type]string{
	contract.String: "String",
	contract.Int:    "Int",
	contract.Float:  "Float",
	contract.Bool:   "Boolean",
	contract.Time:   "Time",
	contract.ID:     "ID",
	contract.JSON:   "JSON",
}

// Renderer renders the GraphQL form.
type Renderer struct {
	module string // Go module of the generated server
	path   string
}

// New returns a GraphQL renderer for a server whose Go module is module.
func New(module string) *Renderer {
	return &Renderer{module: module, path: DefaultPath}
}

// Name implements contract.Renderer.
func (*Renderer) Name() string { return "graphql" }

// Guard implements contract.Renderer.
func (*Renderer) Guard() gen.Guard { return gen.Eq(schema.OptAPI, schema.APIGraphQL) }

// Path implements contract.Renderer.
func (r *Renderer) Path() string { return r.path }

// Render implements contract.Renderer.
func (r *Renderer) Render(set *contract.Set) ([]byte, error) {
	doc := &ast.SchemaDocument{}
	for _, name := range []string{"Time", "JSON"} {
		doc.Definitions = append(doc.Definitions, &ast.Definition{Kind: ast.Scalar, Name: name})
	}
	for _, c := range set.Contracts() {
		def := &ast.Definition{Kind: ast.Object, Name: c.Name, Description: c.Description}
		for _, f := range c.Fields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name,
				Description: f.Description,
				Type:        sdlType(f),
			})
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	var buf bytes.Buffer
	buf.WriteString("# Code generated by stackgen. DO NOT EDIT.\n\n")
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.Bytes(), nil
}

func sdlType(f contract.Field) *ast.Type {
	name, ok := scalars[f.Type]
	if !ok {
		name = f.Ref
	}
	t := ast.NamedType(name, nil)
	if f.List {
		t.NonNull = true
		t = ast.ListType(t, nil)
	}
	t.NonNull = !f.Optional
	return t
}

// Parse implements contract.Renderer. Object types become contracts.
func (r *Renderer) Parse(src []byte) (contract.Shape, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: r.path, Input: string(src)})
	if err != nil {
		return nil, err
	}
	var shape contract.Shape
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		c := contract.ShapeContract{Name: def.Name}
		for _, fd := range def.Fields {
			f, err := parseField(fd)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			c.Fields = append(c.Fields, f)
		}
		shape = append(shape, c)
	}
	shape.Sort()
	return shape, nil
}

func parseField(fd *ast.FieldDefinition) (contract.Field, error) {
	f := contract.Field{Name: fd.Name, Optional: !fd.Type.NonNull}
	t := fd.Type
	if t.Elem != nil {
		if !t.Elem.NonNull {
			return contract.Field{}, fmt.Errorf("list elements must be non-null")
		}
		f.List, t = true, t.Elem
	}
	f.Type, f.Ref = contract.Ref, t.NamedType
	for st, name := range scalars {
		if name == t.NamedType {
			f.Type, f.Ref = st, ""
		}
	}
	return f, nil
}
