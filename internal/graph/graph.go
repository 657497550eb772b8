// Package graph resolves class inheritance over the symbol tree.
package graph

import (
	"strings"
	"sync"

	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
)

// Base is a resolved base class.
type Base struct {
	Name   string
	Object *model.Object
}

// Inherited lists the members a class gets from one base without
// overriding them.
type Inherited struct {
	Base  string
	Names []string
}

// Resolver answers inheritance queries for one tree. Results are cached;
// it is safe for concurrent use as long as the tree is not modified.
type Resolver struct {
	tree *objtree.Tree

	mu    sync.Mutex
	cache map[*model.Object][]Base
}

// New returns a resolver for tree.
func New(tree *objtree.Tree) *Resolver {
	return &Resolver{tree: tree, cache: make(map[*model.Object][]Base)}
}

// FindAllBases returns every base of o, including transitive ones, in
// depth-first order. Each base name is visited once, so cycles terminate,
// and o itself is never returned.
func (r *Resolver) FindAllBases(o *model.Object) []Base {
	cls := o.Class()
	if cls == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bases, ok := r.cache[o]; ok {
		return bases
	}

	var res []Base
	seen := make(map[string]struct{})
	stack := append([]string(nil), cls.Bases...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		base, ok := r.lookup(name)
		if !ok || base == o {
			continue
		}
		res = append(res, Base{Name: name, Object: base})
		if bc := base.Class(); bc != nil {
			stack = append(stack, bc.Bases...)
		}
	}
	r.cache[o] = res
	return res
}

// lookup finds a base by name, falling back to the name without generic
// arguments: `List<T>` resolves to `List`.
func (r *Resolver) lookup(name string) (*model.Object, bool) {
	if o, ok := r.tree.Find(name); ok {
		return o, true
	}
	if i := strings.IndexByte(name, '<'); i > 0 {
		return r.tree.Find(name[:i])
	}
	return nil, false
}

// InheritedFrom maps every member name of the bases of o to the first base,
// in FindAllBases order, that provides it.
func (r *Resolver) InheritedFrom(o *model.Object) map[string]string {
	names := make(map[string]string)
	for _, base := range r.FindAllBases(o) {
		for _, name := range base.Object.Children.Names() {
			if _, ok := names[name]; !ok {
				names[name] = base.Name
			}
		}
	}
	return names
}

// Origins groups inherited members by the base that provides them. Members
// o overrides are left out; a name provided by several bases is attributed
// to the first one in FindAllBases order.
func (r *Resolver) Origins(o *model.Object) []Inherited {
	taken := make(map[string]struct{})
	for _, name := range o.Children.Names() {
		taken[name] = struct{}{}
	}

	var res []Inherited
	for _, base := range r.FindAllBases(o) {
		var names []string
		for _, name := range base.Object.Children.Names() {
			if _, ok := taken[name]; ok {
				continue
			}
			taken[name] = struct{}{}
			names = append(names, name)
		}
		if len(names) > 0 {
			res = append(res, Inherited{Base: base.Name, Names: names})
		}
	}
	return res
}
