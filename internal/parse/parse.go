// Package parse extracts documented definitions from Lua sources using
// tree-sitter.
package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/lang"
)

// DefKind is the syntactic kind of a definition.
type DefKind string

const (
	Function DefKind = "function"
	Table    DefKind = "table"
	Data     DefKind = "data"
)

// Definition is a top-level assignment or function declaration.
type Definition struct {
	// Path is the dotted name as written, with a method colon replaced by
	// a dot.
	Path    string
	Kind    DefKind
	Local   bool
	Method  bool
	Params  []string
	Literal string
	Line    int
	// Doc holds the preceding `---` comment lines without the marker.
	Doc []string
}

// Chunk is everything extracted from one file.
type Chunk struct {
	File        string
	Definitions []Definition
	// Returns is the identifier returned at the end of the chunk, if any.
	Returns string
	// Doc is the leading `---` comment block not attached to a definition.
	Doc []string
}

// SyntaxError is a Lua syntax error found by Preflight.
type SyntaxError struct {
	File string
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error near %q", e.File, e.Line, e.Text)
}

// Preflight parses source and reports its first syntax error.
func Preflight(parser *sitter.Parser, source []byte, file string) error {
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return errors.Errorf("parsing %s: %w", file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	text := lang.CollapseWhitespace(lang.NodeText(bad, source))
	if len(text) > 40 {
		text = text[:40]
	}
	return &SyntaxError{File: file, Line: int(bad.StartPoint().Row) + 1, Text: text}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

// ExtractDefinitions parses a Lua file and returns its top-level
// definitions. The parser must be created for Lua.
func ExtractDefinitions(parser *sitter.Parser, source []byte, file string) (*Chunk, error) {
	chunk := &Chunk{File: file}
	if len(source) == 0 {
		return chunk, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, errors.Errorf("parsing %s: %w", file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var doc []string
	docEnd := -1
	seen := false
	// A block not attached to a definition documents the file when it
	// precedes every statement.
	detach := func() {
		if !seen && chunk.Doc == nil {
			chunk.Doc = doc
		}
		doc, docEnd = nil, -1
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		row := int(node.StartPoint().Row)
		contiguous := docEnd >= 0 && row == docEnd+1

		if node.Type() == "comment" {
			line, ok := docLine(lang.NodeText(node, source))
			if !ok || !contiguous {
				detach()
			}
			if ok {
				doc = append(doc, line)
				docEnd = int(node.EndPoint().Row)
			}
			continue
		}

		var attached []string
		if contiguous {
			attached = doc
			doc, docEnd = nil, -1
		} else {
			detach()
		}
		seen = true

		switch node.Type() {
		case "function_declaration":
			if def, ok := functionDeclaration(node, source); ok {
				def.Doc = attached
				chunk.Definitions = append(chunk.Definitions, def)
			}
		case "variable_declaration":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				if child := node.NamedChild(j); child.Type() == "assignment_statement" {
					if def, ok := assignment(child, source); ok {
						def.Local = true
						def.Doc = attached
						chunk.Definitions = append(chunk.Definitions, def)
					}
				}
			}
		case "assignment_statement":
			if def, ok := assignment(node, source); ok {
				def.Doc = attached
				chunk.Definitions = append(chunk.Definitions, def)
			}
		case "return_statement":
			chunk.Returns = returned(node, source)
		}
	}
	detach()
	return chunk, nil
}

// docLine strips the `---` marker of a documentation comment.
func docLine(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "---")
	if !ok || strings.HasPrefix(rest, "-") {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}

func functionDeclaration(node *sitter.Node, source []byte) (Definition, bool) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return Definition{}, false
	}
	def := Definition{
		Kind:   Function,
		Line:   int(node.StartPoint().Row) + 1,
		Params: parameters(node.ChildByFieldName("parameters"), source),
		Local:  node.Child(0) != nil && node.Child(0).Type() == "local",
	}
	path := lang.NodeText(name, source)
	if name.Type() == "method_index_expression" {
		def.Method = true
		path = strings.Replace(path, ":", ".", 1)
	}
	def.Path = strings.Join(strings.Fields(path), "")
	return def, true
}

func assignment(node *sitter.Node, source []byte) (Definition, bool) {
	var names, values *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		switch child := node.NamedChild(i); child.Type() {
		case "variable_list":
			names = child
		case "expression_list":
			values = child
		}
	}
	if names == nil || names.NamedChildCount() == 0 {
		return Definition{}, false
	}
	target := names.NamedChild(0)
	switch target.Type() {
	case "identifier", "dot_index_expression":
	default:
		return Definition{}, false
	}

	def := Definition{
		Path: strings.Join(strings.Fields(lang.NodeText(target, source)), ""),
		Kind: Data,
		Line: int(node.StartPoint().Row) + 1,
	}
	if values == nil || values.NamedChildCount() == 0 {
		return def, true
	}
	value := values.NamedChild(0)
	switch value.Type() {
	case "function_definition":
		def.Kind = Function
		def.Params = parameters(value.ChildByFieldName("parameters"), source)
	case "table_constructor":
		def.Kind = Table
	case "number", "string", "true", "false", "nil":
		def.Literal = lang.NodeText(value, source)
	}
	return def, true
}

func parameters(node *sitter.Node, source []byte) []string {
	if node == nil {
		return nil
	}
	var params []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			params = append(params, lang.NodeText(child, source))
		case "vararg_expression":
			params = append(params, "...")
		}
	}
	return params
}

func returned(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "expression_list" && child.NamedChildCount() > 0 {
			child = child.NamedChild(0)
		}
		if child.Type() == "identifier" {
			return lang.NodeText(child, source)
		}
	}
	return ""
}
