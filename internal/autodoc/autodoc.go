// Package autodoc renders symbols of the tree as reStructuredText
// directives of the Sphinx `lua` domain.
package autodoc

import (
	"context"
	"fmt"
	"strings"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/members"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/options"
	"github.com/phobologic/luadoc/internal/sig"
)

const indentStep = 3

// directiveFlags are options passed through to rendered directives, in
// output order.
var directiveFlags = []string{
	"no-index", "private", "protected", "package", "abstract",
	"async", "global", "deprecated", "virtual",
}

var builtinTypes = map[string]struct{}{
	"any": {}, "boolean": {}, "false": {}, "function": {}, "integer": {},
	"lightuserdata": {}, "nil": {}, "number": {}, "self": {}, "string": {},
	"table": {}, "thread": {}, "true": {}, "unknown": {}, "userdata": {},
}

// Renderer renders symbols of one finalized tree.
type Renderer struct {
	Tree     *objtree.Tree
	Selector *members.Selector
	// Defaults fill in options the caller did not set.
	Defaults options.Set
	// MaxSignatureLength wraps longer function signatures one parameter
	// per line. Zero disables wrapping.
	MaxSignatureLength int
}

// New returns a renderer for tree.
func New(tree *objtree.Tree, defaults options.Set) *Renderer {
	return &Renderer{
		Tree:     tree,
		Selector: members.NewSelector(tree),
		Defaults: defaults,
	}
}

// scope is the module and class a symbol is rendered in.
type scope struct {
	module string
	class  string
	// parent is the enclosing class, if any.
	parent *model.Object
}

// Render documents the symbol called name. The name is looked up inside
// the `module` option first, then as an absolute path.
func (r *Renderer) Render(ctx context.Context, name string, opts options.Set) (string, error) {
	name = sig.NormalizeName(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("empty object name")
	}
	opts = opts.Merge(r.Defaults)

	var loc objtree.Location
	found := false
	for _, candidate := range []string{join(opts["module"], name), name} {
		if loc, found = r.Tree.FindPath(candidate); found {
			break
		}
	}
	if !found {
		return "", errors.Errorf("unknown lua object %s", name)
	}

	top := opts.Clone()
	delete(top, "module")

	sc := scope{module: loc.Module, class: loc.Class}
	if loc.Class != "" {
		sc.parent, _ = r.Tree.Find(join(loc.Module, loc.Class))
	}

	w := &writer{}
	objName := join(loc.Class, loc.Name)
	if k, err := loc.Object.Kind(); err == nil && k == model.KindModule && loc.Class == "" {
		objName = join(loc.Module, loc.Name)
	} else if loc.Module != "" {
		w.line(0, ".. lua:currentmodule:: "+loc.Module)
		w.blank()
	}
	r.render(ctx, w, loc.Object, objName, sc, top, true, 0)
	return w.String(), nil
}

// render writes one symbol. Failures are logged and replaced by a comment
// so that the rest of the output survives.
func (r *Renderer) render(ctx context.Context, w *writer, o *model.Object, name string, sc scope, opts options.Set, top bool, indent int) {
	kind, err := o.Kind()
	if err == nil {
		opts, err = options.ForObject(opts, o)
	}
	if err != nil {
		slogctx.Error(ctx, "cannot document symbol", "object", join(sc.module, sc.class, name), "file", o.DocstringFile, "line", o.Line, "error", err)
		w.line(indent, fmt.Sprintf(".. %s: %s", name, err))
		w.blank()
		return
	}

	switch doctype := o.Doc.Doctype; {
	case doctype == "data" || doctype == "const" || doctype == "attribute",
		kind == model.KindModule && (sc.class != "" || !top):
		if doctype == "" {
			doctype = "data"
		}
		r.renderData(ctx, w, o, name, doctype, sc, opts, indent)
	case kind == model.KindModule:
		r.renderModule(ctx, w, o, name, opts, indent)
	case kind == model.KindFunction:
		r.renderFunction(ctx, w, o, name, sc, opts, indent)
	case kind == model.KindClass:
		r.renderClass(ctx, w, o, name, sc, opts, indent)
	case kind == model.KindAlias:
		r.renderObject(ctx, w, o, "alias", typed(name, aliasType(o)), sc, opts, indent)
	case kind == model.KindTable:
		r.renderObject(ctx, w, o, "table", name, sc, opts, indent)
	default:
		r.renderData(ctx, w, o, name, "data", sc, opts, indent)
	}
}

func (r *Renderer) renderModule(ctx context.Context, w *writer, o *model.Object, name string, opts options.Set, indent int) {
	w.line(indent, ".. lua:module:: "+name)
	writeOptions(w, indent+indentStep, opts, o.Doc.Text)
	w.blank()

	if o.Doc.Text != "" {
		w.text(indent, o.Doc.Text)
		w.blank()
	}

	if opts.Has("index-table") || opts.Has("index-title") {
		w.section(indent, or(opts["index-title"], "Index"))
		if opts.Has("index-table") {
			w.line(indent, ".. lua:autoindex:: "+name)
			w.blank()
		}
	}
	if opts.Has("index-table") || opts.Has("title") {
		w.section(indent, or(opts["title"], "Api reference"))
	}

	sc := scope{module: name}
	nested := opts.Nested()
	for _, m := range r.Selector.Select(o, nil, opts) {
		r.render(ctx, w, m.Object, m.Name, sc, memberOptions(nested, m), false, indent)
	}
}

// memberOptions marks globals spliced into a module so the directive
// documents them outside of the module namespace.
func memberOptions(nested options.Set, m members.Member) options.Set {
	if !m.Global {
		return nested
	}
	out := nested.Clone()
	out["global"] = ""
	return out
}

func (r *Renderer) renderData(ctx context.Context, w *writer, o *model.Object, name, objtype string, sc scope, opts options.Set, indent int) {
	var typ string
	switch body := o.Body.(type) {
	case *model.Data:
		typ = body.Type
	case *model.Enum:
		typ = body.Type
	}
	r.renderObject(ctx, w, o, objtype, typed(name, typ), sc, opts, indent)
}

func (r *Renderer) renderClass(ctx context.Context, w *writer, o *model.Object, name string, sc scope, opts options.Set, indent int) {
	signature := name
	if bases := o.Class().Bases; len(bases) > 0 {
		signature += ": " + strings.Join(bases, ", ")
	}
	if _, err := sig.ParseClass(signature); err != nil {
		r.warnSignature(ctx, o, name, signature, err)
	}
	objtype := or(o.Doc.Doctype, "class")

	body := indent + indentStep
	r.header(w, o, objtype, signature, opts, indent)
	r.inheritedParagraph(w, o, opts, body)
	r.children(ctx, w, o, scope{module: sc.module, class: join(sc.class, name), parent: o}, opts, body)
}

func (r *Renderer) renderObject(ctx context.Context, w *writer, o *model.Object, objtype, signature string, sc scope, opts options.Set, indent int) {
	var err error
	if objtype == "table" {
		_, err = sig.ParseTable(signature)
	} else {
		_, err = sig.ParseData(signature)
	}
	if err != nil {
		r.warnSignature(ctx, o, signature, signature, err)
	}
	r.header(w, o, objtype, signature, opts, indent)
	r.children(ctx, w, o, sc, opts, indent+indentStep)
}

func (r *Renderer) renderFunction(ctx context.Context, w *writer, o *model.Object, name string, sc scope, opts options.Set, indent int) {
	fn := o.Function()
	objtype := o.Doc.Doctype
	switch {
	case objtype != "":
	case sc.parent != nil && sc.parent.KindOrShape() == model.KindClass:
		objtype = "staticmethod"
		if len(fn.Params) > 0 && fn.Params[0].Name == "self" {
			objtype = "method"
		}
	default:
		objtype = "function"
	}

	signature := r.functionSignature(name, fn, indent)
	if _, err := sig.ParseFunction(strings.ReplaceAll(signature, "\\\n", "")); err != nil {
		r.warnSignature(ctx, o, name, signature, err)
	}

	r.header(w, o, objtype, signature, opts, indent)
	body := indent + indentStep
	wrote := false
	for i, p := range fn.Params {
		if i == 0 && p.Name == "self" {
			continue
		}
		wrote = r.paramFields(w, p, "param", "type", fmt.Sprintf("_%d", i+1), body) || wrote
	}
	for i, p := range fn.Returns {
		wrote = r.paramFields(w, p, "return", "rtype", fmt.Sprintf("_%d", i+1), body) || wrote
	}
	if wrote {
		w.blank()
	}
}

// FunctionSignature formats `name(params) -> returns` on one line.
func FunctionSignature(name string, fn *model.Function) string {
	params, tail := signatureParts(fn)
	return name + "(" + strings.Join(params, ", ") + tail
}

// functionSignature is FunctionSignature with the parameter list wrapped
// when the line is too long.
func (r *Renderer) functionSignature(name string, fn *model.Function, indent int) string {
	signature := FunctionSignature(name, fn)
	params, tail := signatureParts(fn)
	if r.MaxSignatureLength <= 0 || len(signature) <= r.MaxSignatureLength || len(params) < 2 {
		return signature
	}
	pad := strings.Repeat(" ", indent+indentStep)
	return name + "(" + strings.Join(params, ", \\\n"+pad) + tail
}

func signatureParts(fn *model.Function) (params []string, tail string) {
	params = make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = displayParam(p)
	}
	returns := make([]string, len(fn.Returns))
	for i, p := range fn.Returns {
		returns[i] = displayParam(p)
	}
	tail = ")"
	if len(returns) > 0 {
		tail += " -> " + strings.Join(returns, ", ")
	}
	return params, tail
}

func displayParam(p *model.Param) string {
	name, typ := sig.DisplayParam(p.Name, sig.NormalizeType(p.Type))
	switch {
	case name == "":
		return typ
	case typ == "":
		return name
	}
	return name + ": " + typ
}

// paramFields writes the `:param:` and `:type:` fields of one parameter.
// A description copied from the parameter's type is left out.
func (r *Renderer) paramFields(w *writer, p *model.Param, docField, typeField, fallback string, indent int) bool {
	name := or(p.Name, fallback)
	wrote := false
	if doc := p.Doc.Text; doc != "" && !r.inheritsDoc(p) {
		lines := strings.Split(strings.TrimSpace(doc), "\n")
		w.line(indent, fmt.Sprintf(":%s %s: %s", docField, name, lines[0]))
		for _, l := range lines[1:] {
			w.line(indent+indentStep, l)
		}
		wrote = true
	}
	if p.Type != "" {
		w.line(indent, fmt.Sprintf(":%s %s: %s", typeField, name, sig.Markup(p.Type, xref)))
		wrote = true
	}
	return wrote
}

func (r *Renderer) inheritsDoc(p *model.Param) bool {
	if p.Type == "" {
		return false
	}
	o, ok := r.Tree.Find(p.Type)
	return ok && o.Docstring == p.Docstring
}

func xref(name string) string {
	if _, ok := builtinTypes[name]; ok {
		return name
	}
	return ":lua:obj:`" + name + "`"
}

// header writes the directive line, its options and the docstring.
func (r *Renderer) header(w *writer, o *model.Object, objtype, signature string, opts options.Set, indent int) {
	w.line(indent, fmt.Sprintf(".. lua:%s:: %s", objtype, signature))
	body := indent + indentStep
	writeOptions(w, body, opts, o.Doc.Text)
	w.blank()

	if o.Doc.Text != "" {
		w.text(body, o.Doc.Text)
		w.blank()
	}
	if len(o.See) > 0 {
		refs := make([]string, len(o.See))
		for i, s := range o.See {
			refs[i] = xref(s)
		}
		w.line(body, ".. seealso:: "+strings.Join(refs, ", "))
		w.blank()
	}
}

// inheritedParagraph lists members a class gets from its bases without
// overriding them.
func (r *Renderer) inheritedParagraph(w *writer, o *model.Object, opts options.Set, indent int) {
	list, ok := opts.Members("inherited-members")
	if !ok {
		return
	}
	for _, origin := range r.Selector.Bases.Origins(o) {
		var refs []string
		for _, name := range origin.Names {
			if list.All || list.Contains(name) {
				refs = append(refs, fmt.Sprintf(":lua:obj:`%s <%s.%s>`", name, origin.Base, name))
			}
		}
		if len(refs) == 0 {
			continue
		}
		w.line(indent, fmt.Sprintf("Inherited from :lua:obj:`%s`: %s", origin.Base, strings.Join(refs, ", ")))
		w.blank()
	}
}

func (r *Renderer) children(ctx context.Context, w *writer, o *model.Object, sc scope, opts options.Set, indent int) {
	nested := opts.Nested()
	for _, m := range r.Selector.Select(o, sc.parent, opts) {
		r.render(ctx, w, m.Object, m.Name, sc, memberOptions(nested, m), false, indent)
	}
}

func (r *Renderer) warnSignature(ctx context.Context, o *model.Object, name, signature string, err error) {
	slogctx.Warn(ctx, "malformed signature", "object", name, "signature", signature, "file", o.DocstringFile, "line", o.Line, "error", err)
}

func writeOptions(w *writer, indent int, opts options.Set, doc string) {
	for _, name := range directiveFlags {
		if opts.Has(name) {
			w.line(indent, ":"+name+":")
		}
	}
	if v := opts["annotation"]; v != "" {
		w.line(indent, ":annotation: "+v)
	}
	synopsis := opts["synopsis"]
	if !opts.Has("synopsis") {
		synopsis = Synopsis(doc)
	}
	if synopsis != "" {
		w.line(indent, ":synopsis: "+synopsis)
	}
}

// Synopsis returns the first paragraph of doc on one line, or nothing when
// the docstring does not start with a paragraph.
func Synopsis(doc string) string {
	var words []string
	for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		words = append(words, line)
	}
	if len(words) == 0 {
		return ""
	}
	switch first := words[0]; {
	case strings.HasPrefix(first, ".."), strings.HasPrefix(first, ":"),
		strings.HasPrefix(first, "- "), strings.HasPrefix(first, "* "):
		return ""
	}
	return strings.Join(words, " ")
}

func typed(name, typ string) string {
	if typ == "" {
		return name
	}
	return name + ": " + sig.NormalizeType(typ)
}

func aliasType(o *model.Object) string {
	if a, ok := o.Body.(*model.Alias); ok {
		return a.Type
	}
	return ""
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
