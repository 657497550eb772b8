// Package model defines the documented-symbol tree for luadoc.
package model

import (
	"fmt"
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Kind is the documentation kind of a symbol.
type Kind string

const (
	KindModule   Kind = "module"
	KindTable    Kind = "table"
	KindData     Kind = "data"
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindAlias    Kind = "alias"
	KindEnum     Kind = "enum"
)

// Rank returns the position of the kind in groupwise member order.
func (k Kind) Rank() int {
	switch k {
	case KindTable, KindData:
		return 1
	case KindFunction:
		return 2
	case KindClass:
		return 3
	case KindAlias:
		return 4
	case KindEnum:
		return 5
	case KindModule:
		return 6
	}
	return 7
}

// Visibility of a symbol. The zero value means the tool did not report one.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
	Package   Visibility = "package"
)

// ErrIncompatibleDoctype is returned by Object.Kind when a !doctype override
// cannot be applied to the symbol's structural shape.
var ErrIncompatibleDoctype = errors.Base("incompatible doctype")

// DoctypeError reports a !doctype override that does not fit the symbol.
type DoctypeError struct {
	Doctype string
	Shape   Shape
}

func (e *DoctypeError) Error() string {
	return fmt.Sprintf("doctype %q is incompatible with %s", e.Doctype, e.Shape)
}

func (e *DoctypeError) Unwrap() error {
	return ErrIncompatibleDoctype
}

// Doc is the parsed form of a raw docstring.
type Doc struct {
	// Text is the cleaned docstring; empty for undocumented symbols.
	Text string
	// Options holds `!doc name: arg` annotations.
	Options map[string]string
	// Doctype holds the `!doctype` override.
	Doctype string
}

// HasOption reports whether a `!doc` option with the given name was set.
func (d Doc) HasOption(name string) bool {
	_, ok := d.Options[name]
	return ok
}

// Param is a function parameter, return value or generic parameter.
// Name and Type are empty when the tool did not report them.
type Param struct {
	Name      string
	Type      string
	Docstring string
	Doc       Doc
}

func (p *Param) String() string {
	name, typ := p.Name, p.Type
	if name == "" {
		name = "_"
	}
	if typ == "" {
		typ = "unknown"
	}
	return name + ": " + typ
}

// Object is one documented symbol at one dotted path.
type Object struct {
	// Docstring is the raw docstring as reported by the tool.
	Docstring string
	// Doc is filled in by the tree builder once all definitions are merged.
	Doc Doc

	// InferredOptions and InferredDoctype carry annotations the tool reported
	// structurally rather than inside the docstring text.
	InferredOptions map[string]string
	InferredDoctype string

	Deprecated        bool
	DeprecationReason string
	Nodiscard         bool
	NodiscardReason   string
	Async             bool
	Visibility        Visibility

	See   []string
	Using []string

	// Files holds absolute paths of every file this symbol was defined in.
	Files         map[string]struct{}
	DocstringFile string
	// Foreign is set for symbols defined outside of the project directory.
	Foreign bool
	// Line is the 1-based line of the primary definition, 0 if unknown.
	Line int

	RequireType      string
	RequireFunction  string
	RequireSeparator string

	// Toplevel is set for symbols added directly under the tree root.
	Toplevel bool

	Children Children
	Body     Body
}

// New returns an empty object with the given body. A nil body makes a
// generic container (module or namespace).
func New(body Body) *Object {
	return &Object{
		Files:           make(map[string]struct{}),
		InferredOptions: make(map[string]string),
		Body:            body,
	}
}

// AddFile records a file the symbol was defined in.
func (o *Object) AddFile(path string) {
	if o.Files == nil {
		o.Files = make(map[string]struct{})
	}
	o.Files[path] = struct{}{}
}

// FileList returns the object's files in sorted order.
func (o *Object) FileList() []string {
	files := make([]string, 0, len(o.Files))
	for f := range o.Files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Shape returns the structural variant of the object.
func (o *Object) Shape() Shape {
	if o.Body == nil {
		return ShapeObject
	}
	return o.Body.shape()
}

// Priority decides which of two colliding definitions becomes the merge base.
func (o *Object) Priority() int {
	switch o.Shape() {
	case ShapeClass, ShapeFunction, ShapeAlias, ShapeEnum:
		return 2
	case ShapeData, ShapeTable:
		return 1
	}
	return 0
}

// Kind determines the documentation kind from the object's shape and its
// !doctype override.
func (o *Object) Kind() (Kind, error) {
	doctype := o.Doc.Doctype
	shape := o.Shape()

	switch shape {
	case ShapeObject:
		switch doctype {
		case "", "module":
			return KindModule, nil
		}
	case ShapeData:
		switch doctype {
		case "", "data", "const", "attribute":
			return KindData, nil
		}
	case ShapeTable:
		switch doctype {
		case "", "table":
			return KindTable, nil
		}
	case ShapeFunction:
		switch doctype {
		case "", "function", "method", "classmethod", "staticmethod":
			return KindFunction, nil
		}
		return "", &DoctypeError{Doctype: doctype, Shape: shape}
	case ShapeClass:
		if doctype == "" || doctype == "class" {
			return KindClass, nil
		}
	case ShapeAlias:
		if doctype == "" || doctype == "alias" {
			return KindAlias, nil
		}
	case ShapeEnum:
		if doctype == "" || doctype == "enum" {
			return KindEnum, nil
		}
	}

	// Everything but functions may be documented as data, a table or a module.
	switch doctype {
	case "data", "const", "attribute":
		return KindData, nil
	case "table":
		return KindTable, nil
	case "module":
		return KindModule, nil
	}
	return "", &DoctypeError{Doctype: doctype, Shape: shape}
}

// KindOrShape returns the resolved kind, falling back to the kind implied by
// the structural shape when the doctype override is incompatible.
func (o *Object) KindOrShape() Kind {
	if k, err := o.Kind(); err == nil {
		return k
	}
	return o.Shape().Kind()
}

// Function returns the function payload, or nil.
func (o *Object) Function() *Function {
	f, _ := o.Body.(*Function)
	return f
}

// Class returns the class payload, or nil.
func (o *Object) Class() *Class {
	c, _ := o.Body.(*Class)
	return c
}

// Find looks up a dotted path relative to this object.
func (o *Object) Find(path string) (*Object, bool) {
	root := o
	for _, name := range strings.Split(path, ".") {
		child, ok := root.Children.Get(name)
		if !ok {
			return nil, false
		}
		root = child
	}
	return root, true
}

func (o *Object) String() string {
	var b strings.Builder

	b.WriteString(o.head())
	if o.Deprecated {
		b.WriteString(" (deprecated)")
	}
	if o.Async {
		b.WriteString(" (async)")
	}
	if o.Nodiscard {
		b.WriteString(" (nodiscard)")
	}

	for name, ch := range o.Children.All() {
		lines := strings.Split(ch.String(), "\n")
		fmt.Fprintf(&b, "\n  %s %s", name, lines[0])
		for _, l := range lines[1:] {
			b.WriteString("\n  " + l)
		}
	}

	if o.Shape() == ShapeObject || o.Shape() == ShapeTable {
		if o.Children.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("}")
	}
	return b.String()
}

func (o *Object) head() string {
	switch body := o.Body.(type) {
	case nil:
		return "{"
	case *Table:
		return "= table {"
	case *Data:
		if body.Literal != "" {
			return ": " + body.Type + " = " + body.Literal
		}
		return ": " + body.Type
	case *Function:
		s := "= function" + generics(body.Generics) + "(" + joinParams(body.Params) + ")"
		if len(body.Returns) > 0 {
			s += " -> " + joinParams(body.Returns)
		}
		return s
	case *Class:
		return "= class" + generics(body.Generics) + "(" + strings.Join(body.Bases, ", ") + ")"
	case *Alias:
		return "= alias" + generics(body.Generics) + "(" + body.Type + ")"
	case *Enum:
		return "= enum" + generics(body.Generics) + "(" + body.Type + ")"
	}
	return "?"
}

func joinParams(params []*Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func generics(params []*Param) string {
	if len(params) == 0 {
		return ""
	}
	return "<" + joinParams(params) + ">"
}
