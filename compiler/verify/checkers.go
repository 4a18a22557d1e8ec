package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"gopkg.in/yaml.v3"
)

func builtinCheckers() map[string]Checker {
	return map[string]Checker{
		".go":       TreeSitter(golang.GetLanguage()),
		".js":       TreeSitter(javascript.GetLanguage()),
		".mjs":      TreeSitter(javascript.GetLanguage()),
		".ts":       TreeSitter(typescript.GetLanguage()),
		".tsx":      TreeSitter(tsx.GetLanguage()),
		".toml":     TreeSitter(toml.GetLanguage()),
		".graphql":  CheckerFunc(checkGraphQL),
		".graphqls": CheckerFunc(checkGraphQL),
		".json":     CheckerFunc(checkJSON),
		".yaml":     CheckerFunc(checkYAML),
		".yml":      CheckerFunc(checkYAML),
	}
}

// TreeSitter returns a checker parsing files with lang and reporting every
// ERROR and MISSING node.
func TreeSitter(lang *sitter.Language) Checker {
	return CheckerFunc(func(ctx context.Context, path string, src []byte) []SyntaxError {
		p := sitter.NewParser()
		defer p.Close()
		p.SetLanguage(lang)
		tree, err := p.ParseCtx(ctx, nil, src)
		if err != nil {
			return []SyntaxError{{Path: path, Message: "parse: " + err.Error()}}
		}
		defer tree.Close()
		root := tree.RootNode()
		if root == nil || !root.HasError() {
			return nil
		}
		var errs []SyntaxError
		collectErrors(root, path, src, &errs)
		if len(errs) == 0 {
			errs = append(errs, SyntaxError{Path: path, Message: "AST contains errors"})
		}
		return errs
	})
}

// collectErrors gathers ERROR and MISSING nodes without descending into them.
func collectErrors(node *sitter.Node, path string, src []byte, errs *[]SyntaxError) {
	if node.IsError() || node.IsMissing() {
		*errs = append(*errs, SyntaxError{
			Path:    path,
			Line:    node.StartPoint().Row,
			Column:  node.StartPoint().Column,
			Message: describe(node, src),
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, path, src, errs)
		}
	}
}

func describe(node *sitter.Node, src []byte) string {
	if node.IsMissing() {
		return "missing " + node.Type()
	}
	text := node.Content(src)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	return "syntax error near " + strconv.Quote(text)
}

func checkGraphQL(_ context.Context, path string, src []byte) []SyntaxError {
	_, err := parser.ParseSchema(&ast.Source{Name: path, Input: string(src)})
	if err == nil {
		return nil
	}
	serr := SyntaxError{Path: path, Message: err.Error()}
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		serr.Message = gerr.Message
		if len(gerr.Locations) > 0 {
			serr.Line = uint32(max(gerr.Locations[0].Line-1, 0))
			serr.Column = uint32(max(gerr.Locations[0].Column-1, 0))
		}
	}
	return []SyntaxError{serr}
}

func checkJSON(_ context.Context, path string, src []byte) []SyntaxError {
	var v any
	err := json.Unmarshal(src, &v)
	if err == nil {
		return nil
	}
	serr := SyntaxError{Path: path, Message: err.Error()}
	var jerr *json.SyntaxError
	if errors.As(err, &jerr) {
		serr.Line, serr.Column = position(src, jerr.Offset)
	}
	return []SyntaxError{serr}
}

// position converts a byte offset into a 0-indexed line and column.
func position(src []byte, offset int64) (line, col uint32) {
	offset = min(offset, int64(len(src)))
	before := src[:offset]
	line = uint32(bytes.Count(before, []byte{'\n'}))
	col = uint32(len(before) - bytes.LastIndexByte(before, '\n') - 1)
	return line, col
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func checkYAML(_ context.Context, path string, src []byte) []SyntaxError {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			serr := SyntaxError{Path: path, Message: err.Error()}
			if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
				if n, perr := strconv.Atoi(m[1]); perr == nil && n > 0 {
					serr.Line = uint32(n - 1)
				}
			}
			return []SyntaxError{serr}
		}
	}
}
