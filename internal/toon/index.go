package toon

import (
	"path/filepath"
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/autodoc"
	"github.com/phobologic/luadoc/internal/members"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/options"
	"github.com/phobologic/luadoc/internal/sig"
)

// Index lists the members of one module grouped by kind.
type Index struct {
	Module  string
	Runtime string
	Groups  []Group
}

// Group is one table of the index.
type Group struct {
	Kind    string
	Entries []Entry
}

// Entry is one indexed member.
type Entry struct {
	Name      string
	Signature string
	Synopsis  string
	File      string
	Line      int
}

// groupKinds maps kinds to the table they are listed in.
var groupKinds = map[model.Kind]string{
	model.KindModule:   "module",
	model.KindTable:    "data",
	model.KindData:     "data",
	model.KindFunction: "function",
	model.KindClass:    "class",
	model.KindAlias:    "alias",
	model.KindEnum:     "enum",
}

var groupOrder = []string{"global", "module", "data", "function", "class", "alias", "enum"}

// Build indexes the members of module selected under opts. Files are shown
// relative to dir.
func Build(sel *members.Selector, module string, opts options.Set, dir string) (*Index, error) {
	o, ok := sel.Tree.Find(module)
	if !ok {
		return nil, errors.Errorf("unknown lua object %s", module)
	}
	if k := o.KindOrShape(); k != model.KindModule {
		return nil, errors.Errorf("%s is a %s, not a module", module, k)
	}

	groups := make(map[string][]Entry)
	for _, m := range sel.Select(o, nil, opts) {
		kind := groupKinds[m.Object.KindOrShape()]
		if m.Global {
			kind = "global"
		}
		groups[kind] = append(groups[kind], entry(m, dir))
	}

	idx := &Index{Module: module, Runtime: sel.Tree.RuntimeVersion}
	for _, kind := range groupOrder {
		entries := groups[kind]
		if len(entries) == 0 {
			continue
		}
		slices.SortStableFunc(entries, func(a, b Entry) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		idx.Groups = append(idx.Groups, Group{Kind: kind, Entries: entries})
	}
	return idx, nil
}

func entry(m members.Member, dir string) Entry {
	o := m.Object
	e := Entry{
		Name:     m.Name,
		Synopsis: autodoc.Synopsis(o.Doc.Text),
		Line:     o.Line,
		File:     o.DocstringFile,
	}
	if v, ok := o.Doc.Options["synopsis"]; ok {
		e.Synopsis = v
	}
	if e.File != "" && dir != "" {
		if rel, err := filepath.Rel(dir, e.File); err == nil && !strings.HasPrefix(rel, "..") {
			e.File = filepath.ToSlash(rel)
		}
	}

	switch body := o.Body.(type) {
	case *model.Function:
		e.Signature = autodoc.FunctionSignature(m.Name, body)
	case *model.Data:
		e.Signature = sig.NormalizeType(body.Type)
	case *model.Alias:
		e.Signature = sig.NormalizeType(body.Type)
	case *model.Class:
		e.Signature = strings.Join(body.Bases, ", ")
	}
	return e
}
