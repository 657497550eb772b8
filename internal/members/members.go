// Package members decides which children of a symbol are documented and
// in what order.
package members

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/phobologic/luadoc/internal/graph"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/options"
)

// Member is one selected child.
type Member struct {
	Name   string
	Object *model.Object
	// Global is set for top-level symbols spliced into a module because
	// they are defined in the module's files.
	Global bool
	// InheritedFrom names the base that also defines this member, if any.
	InheritedFrom string
}

// Selector selects members over one finalized tree. It only reads the
// tree, so one selector may serve concurrent renders.
type Selector struct {
	Tree  *objtree.Tree
	Bases *graph.Resolver
}

// NewSelector returns a selector for tree.
func NewSelector(tree *objtree.Tree) *Selector {
	return &Selector{Tree: tree, Bases: graph.New(tree)}
}

// gates says which kinds of members are included wholesale.
type gates struct {
	normal, undoc, private, protected, pkg, special, inherited bool
}

// Select returns the members of o to document under opts. Parent is the
// class the members are rendered in, if any; names o shares with that
// class's bases count as inherited.
func (s *Selector) Select(o, parent *model.Object, opts options.Set) []Member {
	candidates := s.candidates(o, opts)
	sortMembers(candidates, opts.Order())

	var inherited map[string]string
	if parent != nil && parent.Class() != nil {
		if k, err := parent.Kind(); err == nil && k == model.KindClass {
			inherited = s.Bases.InheritedFrom(parent)
		}
	}

	var g gates
	include := make(map[string]struct{})
	for _, opt := range options.MemberOptions {
		list, ok := opts.Members(opt)
		if !ok {
			continue
		}
		if !list.All {
			for _, name := range list.Names {
				include[name] = struct{}{}
			}
			continue
		}
		switch opt {
		case "members":
			g.normal = true
		case "undoc-members":
			g.undoc = true
		case "private-members":
			g.private = true
		case "protected-members":
			g.protected = true
		case "package-members":
			g.pkg = true
		case "special-members":
			g.special = true
		case "inherited-members":
			g.inherited = true
		}
	}
	exclude, _ := opts.Members("exclude-members")

	var res []Member
	for _, m := range candidates {
		if exclude.Contains(m.Name) {
			continue
		}
		from, isInherited := inherited[m.Name]
		if _, ok := include[m.Name]; !ok && !g.admits(m, isInherited) {
			continue
		}
		if isInherited {
			m.InheritedFrom = from
		}
		res = append(res, m)
	}
	return res
}

func (g gates) admits(m Member, isInherited bool) bool {
	o := m.Object
	undoc := strings.TrimSpace(o.Doc.Text) == ""
	private := o.Visibility == model.Private || o.Doc.HasOption("private")
	protected := o.Visibility == model.Protected || o.Doc.HasOption("protected")
	pkg := o.Visibility == model.Package || o.Doc.HasOption("package")
	special := strings.HasPrefix(m.Name, "__")

	switch {
	case undoc && !g.undoc,
		private && !g.private,
		protected && !g.protected,
		pkg && !g.pkg,
		special && !g.special,
		isInherited && !g.inherited:
		return false
	}
	if !undoc && !private && !protected && !pkg && !special && !isInherited {
		return g.normal
	}
	return true
}

// candidates lists the children of o plus, for modules with the globals
// option, top-level symbols defined in the same files.
func (s *Selector) candidates(o *model.Object, opts options.Set) []Member {
	var res []Member
	for name, child := range o.Children.All() {
		res = append(res, Member{Name: name, Object: child})
	}

	globals, ok := opts.Members("globals")
	if !ok || s.Tree == nil {
		return res
	}
	if k, err := o.Kind(); err != nil || k != model.KindModule {
		return res
	}
	for name, g := range s.Tree.Root.Children.All() {
		if g == o || !overlaps(o.Files, g.Files) {
			continue
		}
		if !globals.All && !globals.Contains(name) {
			continue
		}
		if existing, ok := o.Children.Get(name); ok && existing == g {
			continue
		}
		res = append(res, Member{Name: name, Object: g, Global: true})
	}
	return res
}

func overlaps(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for f := range a {
		if _, ok := b[f]; ok {
			return true
		}
	}
	return false
}

func sortMembers(ms []Member, order string) {
	switch order {
	case "alphabetical":
		slices.SortStableFunc(ms, func(a, b Member) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case "groupwise":
		slices.SortStableFunc(ms, func(a, b Member) int {
			return cmp.Or(
				cmp.Compare(boolKey(!a.Object.Toplevel), boolKey(!b.Object.Toplevel)),
				cmp.Compare(a.Object.KindOrShape().Rank(), b.Object.KindOrShape().Rank()),
				strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			)
		})
	default:
		slices.SortStableFunc(ms, func(a, b Member) int {
			return cmp.Or(
				strings.Compare(sourceFile(a.Object), sourceFile(b.Object)),
				cmp.Compare(sourceLine(a.Object), sourceLine(b.Object)),
				strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			)
		})
	}
}

func boolKey(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sourceFile(o *model.Object) string {
	if o.DocstringFile == "" {
		return "@"
	}
	return o.DocstringFile
}

// sourceLine sorts unknown lines last.
func sourceLine(o *model.Object) int {
	if o.Line == 0 {
		return math.MaxInt
	}
	return o.Line
}
