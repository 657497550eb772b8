// Package objtree builds the merged symbol tree from language-server
// documentation dumps.
package objtree

import (
	"slices"
	"strings"

	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/model"
)

// Tree is the root of all documented symbols plus every file that
// contributed to them.
type Tree struct {
	Root  *model.Object
	Files map[string]struct{}
	// Cleaner is applied to every docstring by Finalize.
	Cleaner docstring.Cleaner
	// RuntimeVersion is the Lua version reported by the tool, if any.
	RuntimeVersion string
}

// New returns an empty tree.
func New(c docstring.Cleaner) *Tree {
	return &Tree{
		Root:    model.New(nil),
		Files:   make(map[string]struct{}),
		Cleaner: c,
	}
}

// Add inserts o at a dotted path, creating empty containers for missing
// intermediate components and merging with an existing symbol.
func (t *Tree) Add(path string, o *model.Object) {
	components := strings.Split(path, ".")
	name := components[len(components)-1]
	components = components[:len(components)-1]
	if len(components) == 0 {
		o.Toplevel = true
	}

	root := t.Root
	for _, c := range components {
		child, ok := root.Children.Get(c)
		if !ok {
			child = model.New(nil)
			root.Children.Set(c, child)
		}
		root = child
	}
	AddChild(root, name, o)
}

// AddChild sets a child of parent, merging on collision.
func AddChild(parent *model.Object, name string, child *model.Object) {
	if existing, ok := parent.Children.Get(name); ok {
		parent.Children.Set(name, Merge(existing, child))
		return
	}
	parent.Children.Set(name, child)
}

// Merge combines two definitions of the same symbol. The non-foreign,
// higher-priority, earlier definition wins; the other contributes its
// children and any data the winner lacks. The winner is modified in place
// and returned.
func Merge(a, b *model.Object) *model.Object {
	if mergeLess(b, a) {
		a, b = b, a
	}

	for name, child := range b.Children.All() {
		AddChild(a, name, child)
	}

	a.Deprecated = a.Deprecated || b.Deprecated
	a.DeprecationReason = first(a.DeprecationReason, b.DeprecationReason)
	a.Nodiscard = a.Nodiscard || b.Nodiscard
	a.NodiscardReason = first(a.NodiscardReason, b.NodiscardReason)
	a.Async = a.Async || b.Async
	a.Visibility = first(a.Visibility, b.Visibility)
	a.See = union(a.See, b.See)
	a.Using = union(a.Using, b.Using)
	for f := range b.Files {
		a.AddFile(f)
	}
	a.DocstringFile = first(a.DocstringFile, b.DocstringFile)
	a.Foreign = a.Foreign && b.Foreign
	if a.Line == 0 {
		a.Line = b.Line
	}
	if a.InferredOptions == nil {
		a.InferredOptions = make(map[string]string, len(b.InferredOptions))
	}
	for k, v := range b.InferredOptions {
		if _, ok := a.InferredOptions[k]; !ok {
			a.InferredOptions[k] = v
		}
	}
	a.InferredDoctype = first(a.InferredDoctype, b.InferredDoctype)
	a.RequireType = first(a.RequireType, b.RequireType)
	a.RequireFunction = first(a.RequireFunction, b.RequireFunction)
	a.RequireSeparator = first(a.RequireSeparator, b.RequireSeparator)
	a.Toplevel = a.Toplevel || b.Toplevel

	if ac, bc := a.Class(), b.Class(); ac != nil && bc != nil && ac.Constructor == nil {
		ac.Constructor, ac.ConstructorName = bc.Constructor, bc.ConstructorName
	}

	// Longer docstrings more often carry the complete set of annotations, but
	// this is a heuristic only.
	switch {
	case a.Docstring == "":
		a.Docstring = b.Docstring
		a.DocstringFile = first(b.DocstringFile, a.DocstringFile)
	case b.Docstring != "" && len(a.Docstring) < len(b.Docstring) && !b.Foreign:
		a.Docstring = b.Docstring
		a.DocstringFile = first(b.DocstringFile, a.DocstringFile)
	}
	return a
}

// mergeLess orders merge candidates: non-foreign first, then higher
// priority, then earlier line with unknown lines last.
func mergeLess(x, y *model.Object) bool {
	if x.Foreign != y.Foreign {
		return !x.Foreign
	}
	if px, py := x.Priority(), y.Priority(); px != py {
		return px > py
	}
	switch {
	case x.Line == y.Line:
		return false
	case x.Line == 0:
		return false
	case y.Line == 0:
		return true
	}
	return x.Line < y.Line
}

func first[T comparable](a, b T) T {
	var zero T
	if a != zero {
		return a
	}
	return b
}

func union(a, b []string) []string {
	for _, s := range b {
		if !slices.Contains(a, s) {
			a = append(a, s)
		}
	}
	return a
}

// Find looks up a dotted path.
func (t *Tree) Find(path string) (*model.Object, bool) {
	return t.Root.Find(path)
}

// Location is a symbol found by FindPath together with the split of its
// path into module, class and name parts.
type Location struct {
	Object *model.Object
	Module string
	Class  string
	Name   string
}

// FindPath looks up a dotted path and splits it: leading components that
// resolve to modules form the module part; from the first non-module
// component on, everything belongs to the class part. The last component
// is the name.
func (t *Tree) FindPath(path string) (Location, bool) {
	root := t.Root
	inClass := false
	var modname, classname []string

	for _, name := range strings.Split(path, ".") {
		child, ok := root.Children.Get(name)
		if !ok {
			return Location{}, false
		}
		root = child

		if k, err := root.Kind(); inClass || err != nil || k != model.KindModule {
			inClass = true
			classname = append(classname, name)
		} else {
			modname = append(modname, name)
		}
	}

	var name string
	switch {
	case len(classname) > 0:
		name = classname[len(classname)-1]
		classname = classname[:len(classname)-1]
	case len(modname) > 0:
		name = modname[len(modname)-1]
		modname = modname[:len(modname)-1]
	}
	return Location{
		Object: root,
		Module: strings.Join(modname, "."),
		Class:  strings.Join(classname, "."),
		Name:   name,
	}, true
}

// Walk visits every symbol depth-first in child order. Returning false from
// fn skips the symbol's children.
func (t *Tree) Walk(fn func(path string, o *model.Object) bool) {
	walk(t.Root, "", fn)
}

func walk(o *model.Object, prefix string, fn func(string, *model.Object) bool) {
	for name, child := range o.Children.All() {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if fn(path, child) {
			walk(child, path, fn)
		}
	}
}

// Finalize parses the docstring of every symbol and parameter. The tree
// must not be modified afterwards.
func (t *Tree) Finalize() {
	finalize(t.Root, t.Cleaner)
}

func finalize(o *model.Object, c docstring.Cleaner) {
	o.Doc = docstring.Parse(o.Docstring, c, o.InferredOptions, o.InferredDoctype)

	var params [][]*model.Param
	switch body := o.Body.(type) {
	case *model.Function:
		params = append(params, body.Params, body.Returns, body.Generics)
	case *model.Class:
		params = append(params, body.Generics)
		if body.Constructor != nil {
			finalize(body.Constructor, c)
		}
	case *model.Alias:
		params = append(params, body.Generics)
	case *model.Enum:
		params = append(params, body.Generics)
	}
	for _, list := range params {
		for _, p := range list {
			p.Doc = docstring.Parse(p.Docstring, c, nil, "")
		}
	}

	for _, child := range o.Children.All() {
		finalize(child, c)
	}
}
