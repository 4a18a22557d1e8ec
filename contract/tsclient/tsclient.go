// Package tsclient renders Contract Sets as TypeScript interfaces for the
// generated frontend.
package tsclient

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/contract"
	"github.com/syssam/stackgen/schema"
)

// DefaultPath is where the client rendering is written.
const DefaultPath = "web/src/lib/contract.ts"

// aliases name every scalar semantic type, so that the rendering keeps
// int apart from float and id apart from string.
var aliases = []struct {
	Type  contract.Type
	Name  string
	Alias string // empty for TypeScript primitives
}{
	{contract.String, "string", ""},
	{contract.Int, "Int", "number"},
	{contract.Float, "Float", "number"},
	{contract.Bool, "boolean", ""},
	{contract.Time, "DateTime", "string"},
	{contract.ID, "ID", "string"},
	{contract.JSON, "JSONValue", "unknown"},
}

// Renderer renders the client form.
type Renderer struct {
	path string
}

// New returns a TypeScript renderer writing to p, or DefaultPath when p is
// empty.
func New(p ...string) *Renderer {
	r := &Renderer{path: DefaultPath}
	if len(p) > 0 && p[0] != "" {
		r.path = p[0]
	}
	return r
}

// Name implements contract.Renderer.
func (*Renderer) Name() string { return "typescript" }

// Guard implements contract.Renderer.
func (*Renderer) Guard() gen.Guard { return gen.Not(gen.Eq(schema.OptFrontend, schema.None)) }

// Path implements contract.Renderer.
func (r *Renderer) Path() string { return r.path }

// Render implements contract.Renderer.
func (r *Renderer) Render(set *contract.Set) ([]byte, error) {
	var b strings.Builder
	b.WriteString("// Code generated by stackgen. DO NOT EDIT.\n\n")
	for _, a := range aliases {
		if a.Alias != "" {
			fmt.Fprintf(&b, "export type %s = %s;\n", a.Name, a.Alias)
		}
	}
	for _, c := range set.Contracts() {
		b.WriteString("\n")
		if c.Description != "" {
			fmt.Fprintf(&b, "/** %s */\n", c.Description)
		}
		fmt.Fprintf(&b, "export interface %s {\n", c.Name)
		for _, f := range c.Fields {
			if f.Description != "" {
				fmt.Fprintf(&b, "  /** %s */\n", f.Description)
			}
			typ := tsType(f)
			if f.Optional {
				fmt.Fprintf(&b, "  %s?: %s | null;\n", f.Name, typ)
			} else {
				fmt.Fprintf(&b, "  %s: %s;\n", f.Name, typ)
			}
		}
		b.WriteString("}\n")
	}
	return []byte(b.String()), nil
}

func tsType(f contract.Field) string {
	name := f.Ref
	for _, a := range aliases {
		if a.Type == f.Type {
			name = a.Name
		}
	}
	if f.List {
		return name + "[]"
	}
	return name
}

// Parse implements contract.Renderer. Interfaces become contracts; type
// aliases are skipped.
func (r *Renderer) Parse(src []byte) (contract.Shape, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s: syntax error", r.path)
	}
	var shape contract.Shape
	var walk func(n *sitter.Node) error
	walk = func(n *sitter.Node) error {
		if n.Type() == "interface_declaration" {
			c, err := parseInterface(n, src)
			if err != nil {
				return err
			}
			shape = append(shape, c)
			return nil
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if err := walk(n.NamedChild(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	shape.Sort()
	return shape, nil
}

func parseInterface(n *sitter.Node, src []byte) (contract.ShapeContract, error) {
	nameNode, body := n.ChildByFieldName("name"), n.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return contract.ShapeContract{}, fmt.Errorf("line %d: incomplete interface", n.StartPoint().Row+1)
	}
	c := contract.ShapeContract{Name: nameNode.Content(src)}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		prop := body.NamedChild(i)
		if prop.Type() != "property_signature" {
			continue
		}
		f, err := parseProperty(prop, src)
		if err != nil {
			return contract.ShapeContract{}, fmt.Errorf("%s: %w", c.Name, err)
		}
		c.Fields = append(c.Fields, f)
	}
	return c, nil
}

func parseProperty(prop *sitter.Node, src []byte) (contract.Field, error) {
	nameNode, typeNode := prop.ChildByFieldName("name"), prop.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return contract.Field{}, fmt.Errorf("line %d: untyped property", prop.StartPoint().Row+1)
	}
	f := contract.Field{Name: nameNode.Content(src)}
	for i := 0; i < int(prop.ChildCount()); i++ {
		if prop.Child(i).Type() == "?" {
			f.Optional = true
		}
	}
	typ := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(typeNode.Content(src)), ":"))
	nullable := strings.HasSuffix(typ, "| null")
	if nullable != f.Optional {
		return contract.Field{}, fmt.Errorf("property %s: optional marker and null union disagree", f.Name)
	}
	typ = strings.TrimSpace(strings.TrimSuffix(typ, "| null"))
	if base, ok := strings.CutSuffix(typ, "[]"); ok {
		f.List, typ = true, base
	}
	f.Type, f.Ref = contract.Ref, typ
	for _, a := range aliases {
		if a.Name == typ {
			f.Type, f.Ref = a.Type, ""
		}
	}
	return f, nil
}
