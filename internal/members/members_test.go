package members

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/options"
)

func doc(o *model.Object, text string) *model.Object {
	o.Docstring = text
	return o
}

func at(o *model.Object, file string, line int) *model.Object {
	o.AddFile(file)
	o.DocstringFile = file
	o.Line = line
	return o
}

func selected(ms []Member) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

// fixture builds:
//
//	mod            module in /p/mod.lua
//	  zeta         documented function, line 3
//	  Alpha        documented class, line 1
//	  beta         undocumented data, line 2
//	  _hidden      private function
//	  __call       documented special function
//	Base           class with member shared
//	mod.Sub        class extending Base, overrides shared
//	GLOBAL         top-level data in /p/mod.lua
//	OTHER          top-level data elsewhere
func fixture(t *testing.T) *objtree.Tree {
	t.Helper()
	tree := objtree.New(docstring.Plain)

	mod := at(doc(model.New(nil), "Module."), "/p/mod.lua", 0)
	tree.Add("mod", mod)
	tree.Add("mod.zeta", at(doc(model.New(&model.Function{}), "Zeta."), "/p/mod.lua", 3))
	tree.Add("mod.Alpha", at(doc(model.New(&model.Class{}), "Alpha."), "/p/mod.lua", 1))
	tree.Add("mod.beta", at(model.New(&model.Data{}), "/p/mod.lua", 2))
	hidden := at(doc(model.New(&model.Function{}), "Hidden."), "/p/mod.lua", 4)
	hidden.Visibility = model.Private
	tree.Add("mod._hidden", hidden)
	tree.Add("mod.__call", at(doc(model.New(&model.Function{}), "Call."), "/p/mod.lua", 5))

	base := doc(model.New(&model.Class{}), "Base.")
	objtree.AddChild(base, "shared", doc(model.New(&model.Function{}), "Shared."))
	tree.Add("Base", base)
	sub := doc(model.New(&model.Class{Bases: []string{"Base"}}), "Sub.")
	objtree.AddChild(sub, "shared", doc(model.New(&model.Function{}), "Override."))
	objtree.AddChild(sub, "own", doc(model.New(&model.Function{}), "Own."))
	tree.Add("mod.Sub", sub)

	tree.Add("GLOBAL", at(doc(model.New(&model.Data{}), "Global."), "/p/mod.lua", 10))
	tree.Add("OTHER", at(doc(model.New(&model.Data{}), "Other."), "/p/other.lua", 1))

	tree.Finalize()
	return tree
}

func find(t *testing.T, tree *objtree.Tree, path string) *model.Object {
	t.Helper()
	o, ok := tree.Find(path)
	require.True(t, ok, path)
	return o
}

func TestSelectGates(t *testing.T) {
	t.Parallel()
	tree := fixture(t)
	s := NewSelector(tree)
	mod := find(t, tree, "mod")

	tests := []struct {
		name string
		opts options.Set
		want []string
	}{
		{"nothing", options.Set{}, nil},
		{"members", options.Set{"members": ""}, []string{"Alpha", "zeta", "Sub"}},
		{"undoc", options.Set{"members": "", "undoc-members": ""}, []string{"Alpha", "beta", "zeta", "Sub"}},
		{"private", options.Set{"members": "", "private-members": ""}, []string{"Alpha", "zeta", "_hidden", "Sub"}},
		{"special", options.Set{"members": "", "special-members": ""}, []string{"Alpha", "zeta", "__call", "Sub"}},
		{"explicit names bypass gates", options.Set{"members": "beta _hidden"}, []string{"beta", "_hidden"}},
		{"exclude wins", options.Set{"members": "", "undoc-members": "", "exclude-members": "beta zeta"}, []string{"Alpha", "Sub"}},
		{"exclude all is no-op", options.Set{"members": "", "exclude-members": ""}, []string{"Alpha", "zeta", "Sub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, selected(s.Select(mod, nil, tt.opts)))
		})
	}
}

func TestSelectOrders(t *testing.T) {
	t.Parallel()
	tree := fixture(t)
	s := NewSelector(tree)
	mod := find(t, tree, "mod")
	all := options.Set{"members": "", "undoc-members": "", "private-members": "", "special-members": ""}

	bysource := selected(s.Select(mod, nil, all))
	// Sub has no file and sorts after every located member.
	assert.Equal(t, []string{"Alpha", "beta", "zeta", "_hidden", "__call", "Sub"}, bysource)

	alpha := all.Merge(options.Set{"member-order": "alphabetical"})
	assert.Equal(t, []string{"__call", "_hidden", "Alpha", "beta", "Sub", "zeta"}, selected(s.Select(mod, nil, alpha)))

	group := all.Merge(options.Set{"member-order": "groupwise"})
	assert.Equal(t, []string{"beta", "__call", "_hidden", "zeta", "Alpha", "Sub"}, selected(s.Select(mod, nil, group)))
}

func TestSelectInherited(t *testing.T) {
	t.Parallel()
	tree := fixture(t)
	s := NewSelector(tree)
	sub := find(t, tree, "mod.Sub")

	got := s.Select(sub, sub, options.Set{"members": ""})
	assert.Equal(t, []string{"own"}, selected(got))

	got = s.Select(sub, sub, options.Set{"members": "", "inherited-members": ""})
	require.Equal(t, []string{"own", "shared"}, selected(got))
	assert.Empty(t, got[0].InheritedFrom)
	assert.Equal(t, "Base", got[1].InheritedFrom)

	// Without a class parent nothing counts as inherited.
	assert.Equal(t, []string{"own", "shared"}, selected(s.Select(sub, nil, options.Set{"members": ""})))
}

func TestSelectInheritedFirstBaseWins(t *testing.T) {
	t.Parallel()
	tree := objtree.New(docstring.Plain)

	a := doc(model.New(&model.Class{}), "A.")
	objtree.AddChild(a, "m", doc(model.New(&model.Function{}), "From A."))
	tree.Add("A", a)
	b := doc(model.New(&model.Class{}), "B.")
	objtree.AddChild(b, "m", doc(model.New(&model.Function{}), "From B."))
	objtree.AddChild(b, "n", doc(model.New(&model.Function{}), "Only B."))
	tree.Add("B", b)
	c := doc(model.New(&model.Class{Bases: []string{"A", "B"}}), "C.")
	objtree.AddChild(c, "m", doc(model.New(&model.Function{}), "C's m."))
	objtree.AddChild(c, "n", doc(model.New(&model.Function{}), "C's n."))
	tree.Add("C", c)
	tree.Finalize()

	s := NewSelector(tree)
	c = find(t, tree, "C")
	got := s.Select(c, c, options.Set{"members": "", "inherited-members": ""})
	require.Equal(t, []string{"m", "n"}, selected(got))
	assert.Equal(t, "A", got[0].InheritedFrom)
	assert.Equal(t, "B", got[1].InheritedFrom)
}

func TestSelectGlobals(t *testing.T) {
	t.Parallel()
	tree := fixture(t)
	s := NewSelector(tree)
	mod := find(t, tree, "mod")

	got := s.Select(mod, nil, options.Set{"members": "", "globals": ""})
	assert.Equal(t, []string{"Alpha", "zeta", "GLOBAL", "Sub"}, selected(got))
	for _, m := range got {
		assert.Equal(t, m.Name == "GLOBAL", m.Global, m.Name)
	}

	got = s.Select(mod, nil, options.Set{"members": "", "globals": "OTHER"})
	assert.Equal(t, []string{"Alpha", "zeta", "Sub"}, selected(got))

	got = s.Select(mod, nil, options.Set{"members": "", "globals": "", "exclude-members": "GLOBAL"})
	assert.NotContains(t, selected(got), "GLOBAL")

	// Only modules splice globals.
	sub := find(t, tree, "mod.Sub")
	assert.NotContains(t, selected(s.Select(sub, nil, options.Set{"members": "", "globals": ""})), "GLOBAL")
}

func TestSelectDeterministicConcurrent(t *testing.T) {
	t.Parallel()
	tree := fixture(t)
	s := NewSelector(tree)
	mod := find(t, tree, "mod")
	opts := options.Set{"members": "", "undoc-members": "", "globals": "", "member-order": "groupwise"}
	want := selected(s.Select(mod, nil, opts))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, selected(s.Select(mod, nil, opts)))
		}()
	}
	wg.Wait()
}
