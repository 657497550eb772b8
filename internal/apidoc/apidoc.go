// Package apidoc writes one documentation page per module of a module
// hierarchy.
package apidoc

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/options"
)

var funcs = template.FuncMap{
	"underline": func(s, c string) string { return strings.Repeat(c, len(s)) },
}

var templates = map[string]*template.Template{
	"rst": template.Must(template.New("rst").Funcs(funcs).Parse(`{{ .Title }}
{{ underline .Title "=" }}

{{ if .Children }}.. toctree::
   :hidden:

{{ range .Children }}   {{ . }}
{{ end }}
{{ end }}.. lua:autoobject:: {{ .Fullname }}
{{ range .Options }}   :{{ .Name }}:{{ if .Value }} {{ .Value }}{{ end }}
{{ end }}`)),
	"md": template.Must(template.New("md").Funcs(funcs).Parse("# {{ .Title }}\n\n" +
		"{{ if .Children }}```{toctree}\n:hidden:\n\n" +
		"{{ range .Children }}{{ . }}\n{{ end }}```\n\n{{ end }}" +
		"```{lua:autoobject} {{ .Fullname }}\n" +
		"{{ range .Options }}:{{ .Name }}:{{ if .Value }} {{ .Value }}{{ end }}\n{{ end }}```\n")),
}

type option struct {
	Name, Value string
}

type page struct {
	Title    string
	Fullname string
	Children []string
	Options  []option
}

// generator holds the state of one Generate call.
type generator struct {
	tree  *objtree.Tree
	root  config.ApidocRoot
	ext   string
	files map[string]struct{}
}

// Generate writes pages for root.Module and its submodules into root.Path.
// Pages that did not change are left alone; pages of modules that are gone
// are removed.
func Generate(ctx context.Context, tree *objtree.Tree, root config.ApidocRoot) error {
	format := root.Format
	if format == "" {
		format = "rst"
	}
	if _, ok := templates[format]; !ok {
		return errors.Errorf("unknown apidoc format %q", format)
	}
	for _, pattern := range root.IgnoredModules {
		if !doublestar.ValidatePattern(slashed(pattern)) {
			return errors.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	if err := os.MkdirAll(root.Path, 0o755); err != nil {
		return errors.Errorf("creating %s: %w", root.Path, err)
	}
	if err := os.WriteFile(filepath.Join(root.Path, ".gitignore"), []byte("*\n"), 0o644); err != nil {
		return errors.Errorf("writing .gitignore: %w", err)
	}

	g := &generator{tree: tree, root: root, ext: "." + format, files: make(map[string]struct{})}
	if err := g.module(ctx, root.Module, "", root.MaxDepth); err != nil {
		return err
	}

	existing, err := filepath.Glob(filepath.Join(root.Path, "*"+g.ext))
	if err != nil {
		return errors.Errorf("listing %s: %w", root.Path, err)
	}
	for _, path := range existing {
		if _, ok := g.files[path]; ok {
			continue
		}
		slogctx.Debug(ctx, "removing stale page", "path", path)
		if err := os.Remove(path); err != nil {
			return errors.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// module writes the page of one module and recurses into submodules while
// depth allows.
func (g *generator) module(ctx context.Context, fullname, filename string, depth int) error {
	loc, ok := g.tree.FindPath(fullname)
	if !ok {
		return errors.Errorf("can't find module %s", fullname)
	}
	obj := loc.Object
	if k, err := obj.Kind(); err != nil || k != model.KindModule || loc.Class != "" {
		return errors.Errorf("%s is not a module, apidoc only works with modules", fullname)
	}

	opts := g.root.Options.Clone()
	if opts == nil {
		opts = make(options.Set)
	}
	for _, name := range []string{"members", "recursive", "index-table"} {
		if !opts.Has(name) {
			opts[name] = ""
		}
	}

	exclude := make(map[string]struct{})
	if list, ok := opts.Members("exclude-members"); ok {
		for _, name := range list.Names {
			exclude[name] = struct{}{}
		}
	}

	type child struct{ fullname, filename string }
	var submodules, separate []child
	for name, o := range obj.Children.All() {
		if _, ok := exclude[name]; ok || g.hidden(o, opts) {
			continue
		}
		childFull := fullname + "." + name
		childFile := name
		if filename != "" {
			childFile = filename + "." + name
		}
		switch {
		case g.ignored(childFull):
			exclude[name] = struct{}{}
		case depth > 0 && o.KindOrShape() == model.KindModule:
			submodules = append(submodules, child{childFull, childFile})
			exclude[name] = struct{}{}
		case g.root.SeparateMembers && o.KindOrShape() == model.KindClass:
			separate = append(separate, child{childFull, childFile})
			exclude[name] = struct{}{}
		}
	}
	if len(exclude) > 0 {
		opts["exclude-members"] = strings.Join(slices.Sorted(maps.Keys(exclude)), ", ")
	}

	p := page{Title: "Module " + g.literal(fullname), Fullname: fullname, Options: sortedOptions(opts)}
	for _, c := range append(slices.Clone(submodules), separate...) {
		p.Children = append(p.Children, c.filename+g.ext)
	}
	if err := g.write(ctx, or(filename, "index"), p); err != nil {
		return err
	}

	for _, c := range separate {
		classOpts := g.root.Options.Clone()
		if classOpts == nil {
			classOpts = make(options.Set)
		}
		if !classOpts.Has("members") {
			classOpts["members"] = ""
		}
		p := page{Title: "Class " + g.literal(c.fullname), Fullname: c.fullname, Options: sortedOptions(classOpts)}
		if err := g.write(ctx, c.filename, p); err != nil {
			return err
		}
	}
	for _, c := range submodules {
		if err := g.module(ctx, c.fullname, c.filename, depth-1); err != nil {
			return err
		}
	}
	return nil
}

// hidden reports whether a child is left out because of its visibility.
func (g *generator) hidden(o *model.Object, opts options.Set) bool {
	switch {
	case o.Visibility == model.Private || o.Doc.HasOption("private"):
		return !opts.Has("private-members")
	case o.Visibility == model.Protected || o.Doc.HasOption("protected"):
		return !opts.Has("protected-members")
	case o.Visibility == model.Package || o.Doc.HasOption("package"):
		return !opts.Has("package-members")
	}
	return false
}

// ignored matches a dotted module name against the ignore globs. Dots act
// as path separators, so `*` matches one component and `**` any number.
func (g *generator) ignored(fullname string) bool {
	name := slashed(fullname)
	for _, pattern := range g.root.IgnoredModules {
		if ok, _ := doublestar.Match(slashed(pattern), name); ok {
			return true
		}
	}
	return false
}

func (g *generator) literal(s string) string {
	if g.ext == ".md" {
		return "`" + s + "`"
	}
	return "``" + s + "``"
}

func (g *generator) write(ctx context.Context, filename string, p page) error {
	var buf bytes.Buffer
	if err := templates[strings.TrimPrefix(g.ext, ".")].Execute(&buf, p); err != nil {
		return errors.Errorf("rendering page for %s: %w", p.Fullname, err)
	}

	path := filepath.Join(g.root.Path, filename+g.ext)
	g.files[path] = struct{}{}
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, buf.Bytes()) {
		return nil
	}
	slogctx.Debug(ctx, "writing page", "path", path)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func sortedOptions(opts options.Set) []option {
	res := make([]option, 0, len(opts))
	for _, name := range slices.Sorted(maps.Keys(opts)) {
		res = append(res, option{name, opts[name]})
	}
	return res
}

func slashed(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
