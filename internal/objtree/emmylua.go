package objtree

import (
	"context"
	"encoding/json"
	"strings"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/model"
)

// EmmyLuaParser reads the JSON dump of emmylua_doc_cli.
type EmmyLuaParser struct {
	builder

	// Set from the dump's configuration.
	RequireFunction  string
	RequireSeparator string
}

// NewEmmyLua returns a parser for emmylua_doc_cli dumps. The constructor
// configuration of the dump itself takes precedence over ctor.
func NewEmmyLua(ctor ConstructorConfig) *EmmyLuaParser {
	return &EmmyLuaParser{builder: builder{tree: New(docstring.Plain), ctor: ctor}}
}

var runtimeVersions = map[string]string{
	"Lua5.1":    "5.1",
	"Lua5.2":    "5.2",
	"Lua5.3":    "5.3",
	"Lua5.4":    "5.4",
	"Lua5.5":    "5.5",
	"LuaJIT":    "jit",
	"LuaLatest": "5.4",
}

var visibilities = map[string]model.Visibility{
	"public":    model.Public,
	"protected": model.Protected,
	"private":   model.Private,
	"internal":  model.Private,
	"package":   model.Package,
}

type emDump struct {
	Config struct {
		Runtime struct {
			ClassDefaultCall struct {
				FunctionName    string `json:"functionName"`
				ForceNonColon   bool   `json:"forceNonColon"`
				ForceReturnSelf bool   `json:"forceReturnSelf"`
			} `json:"classDefaultCall"`
			Version string `json:"version"`
		} `json:"runtime"`
		Completion struct {
			AutoRequireFunction  string `json:"autoRequireFunction"`
			AutoRequireSeparator string `json:"autoRequireSeparator"`
		} `json:"completion"`
	} `json:"config"`
	Modules []emItem `json:"modules"`
	Types   []emItem `json:"types"`
	Globals []emItem `json:"globals"`
}

// emItem covers modules, types, globals and members; each kind uses a
// subset of the fields.
type emItem struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	File        string          `json:"file"`
	Loc         json.RawMessage `json:"loc"`
	Description string          `json:"description"`
	Visibility  string          `json:"visibility"`
	TagContent  []struct {
		TagName string `json:"tag_name"`
		Content string `json:"content"`
	} `json:"tag_content"`
	IsAsync           bool        `json:"is_async"`
	Deprecated        bool        `json:"deprecated"`
	DeprecationReason string      `json:"deprecation_reason"`
	IsNodiscard       bool        `json:"is_nodiscard"`
	NodiscardMessage  string      `json:"nodiscard_message"`
	Members           []emItem    `json:"members"`
	Using             []string    `json:"using"`
	Typ               string      `json:"typ"`
	Literal           string      `json:"literal"`
	Bases             []string    `json:"bases"`
	Generics          []emGeneric `json:"generics"`
	Params            []emParam   `json:"params"`
	Returns           []emParam   `json:"returns"`
	Overloads         []string    `json:"overloads"`
	IsMeth            bool        `json:"is_meth"`
}

type emGeneric struct {
	Name string `json:"name"`
	Base string `json:"base"`
}

type emParam struct {
	Name string `json:"name"`
	Typ  string `json:"typ"`
	Desc string `json:"desc"`
}

type emLoc struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Parse adds an emmylua_doc_cli dump.
func (p *EmmyLuaParser) Parse(ctx context.Context, data []byte, dir string) error {
	if err := p.setDir(dir); err != nil {
		return errors.Errorf("resolving %s: %w", dir, err)
	}

	var dump emDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return errors.Errorf("decoding emmylua dump: %w", err)
	}

	if call := dump.Config.Runtime.ClassDefaultCall; call.FunctionName != "" {
		p.ctor = ConstructorConfig{
			FunctionName:    call.FunctionName,
			ForceNonColon:   call.ForceNonColon,
			ForceReturnSelf: call.ForceReturnSelf,
		}
	}
	if v, ok := runtimeVersions[dump.Config.Runtime.Version]; ok {
		p.tree.RuntimeVersion = v
	}
	p.RequireFunction = dump.Config.Completion.AutoRequireFunction
	p.RequireSeparator = dump.Config.Completion.AutoRequireSeparator

	for _, m := range dump.Modules {
		p.parseModule(ctx, m)
	}
	for _, t := range dump.Types {
		switch t.Type {
		case "class":
			p.parseClass(ctx, t)
		case "enum":
			p.parseTyped(ctx, t, &model.Enum{Type: orUnknown(t.Typ)})
		case "alias":
			p.parseTyped(ctx, t, &model.Alias{Type: orUnknown(t.Typ)})
		default:
			slogctx.Debug(ctx, "skipping unknown type kind", "name", t.Name, "type", t.Type)
		}
	}
	for _, g := range dump.Globals {
		switch g.Type {
		case "table":
			res := model.New(&model.Table{})
			p.setCommon(res, g)
			p.setLoc(res, g.Loc)
			p.parseMembers(ctx, res, g.Members)
			p.tree.Add(g.Name, res)
		case "field":
			res := model.New(&model.Data{Type: g.Typ, Literal: g.Literal})
			p.setCommon(res, g)
			p.setLoc(res, g.Loc)
			p.tree.Add(g.Name, res)
		}
	}
	return nil
}

func (p *EmmyLuaParser) parseModule(ctx context.Context, m emItem) {
	res := model.New(nil)
	p.setCommon(res, m)
	if m.File != "" {
		p.setFile(res, m.File)
	}
	p.parseMembers(ctx, res, m.Members)
	res.Using = m.Using
	res.RequireType = m.Typ
	res.RequireFunction = p.RequireFunction
	res.RequireSeparator = p.RequireSeparator
	p.tree.Add(m.Name, res)
}

func (p *EmmyLuaParser) parseClass(ctx context.Context, t emItem) {
	cls := &model.Class{Bases: t.Bases, Generics: generics(t.Generics)}
	res := model.New(cls)
	p.setCommon(res, t)
	p.setLoc(res, t.Loc)
	p.parseMembers(ctx, res, t.Members)
	p.detectConstructor(t.Name, res)
	p.tree.Add(t.Name, res)
}

func (p *EmmyLuaParser) parseTyped(ctx context.Context, t emItem, body model.Body) {
	switch b := body.(type) {
	case *model.Enum:
		b.Generics = generics(t.Generics)
	case *model.Alias:
		b.Generics = generics(t.Generics)
	}
	res := model.New(body)
	p.setCommon(res, t)
	p.setLoc(res, t.Loc)
	p.parseMembers(ctx, res, t.Members)
	p.tree.Add(t.Name, res)
}

func (p *EmmyLuaParser) parseMembers(ctx context.Context, parent *model.Object, members []emItem) {
	for _, m := range members {
		switch m.Type {
		case "fn":
			AddChild(parent, m.Name, p.parseFn(m))
		case "field":
			res := model.New(&model.Data{Type: m.Typ, Literal: m.Literal})
			p.setCommon(res, m)
			p.setLoc(res, m.Loc)
			AddChild(parent, m.Name, res)
		default:
			slogctx.Debug(ctx, "skipping unknown member kind", "name", m.Name, "type", m.Type)
		}
	}
}

func (p *EmmyLuaParser) parseFn(m emItem) *model.Object {
	fn := &model.Function{
		Generics:     generics(m.Generics),
		Overloads:    m.Overloads,
		ImplicitSelf: m.IsMeth,
	}
	for _, param := range m.Params {
		fn.Params = append(fn.Params, &model.Param{Name: param.Name, Type: param.Typ, Docstring: param.Desc})
	}
	for _, param := range m.Returns {
		fn.Returns = append(fn.Returns, &model.Param{Name: param.Name, Type: param.Typ, Docstring: param.Desc})
	}
	if fn.ImplicitSelf && (len(fn.Params) == 0 || fn.Params[0].Name != "self") {
		fn.Params = append([]*model.Param{{Name: "self"}}, fn.Params...)
	}

	res := model.New(fn)
	p.setCommon(res, m)
	p.setLoc(res, m.Loc)
	return res
}

func (p *EmmyLuaParser) setCommon(o *model.Object, it emItem) {
	o.Docstring = it.Description
	o.Visibility = visibilities[it.Visibility]
	for _, tag := range it.TagContent {
		content := strings.TrimSpace(tag.Content)
		switch tag.TagName {
		case "see":
			o.See = append(o.See, content)
		case "doc":
			if content == "" {
				continue
			}
			name, arg := content, ""
			if i := strings.IndexAny(content, " \t\n"); i >= 0 {
				name, arg = content[:i], strings.TrimLeft(content[i:], " \t\n")
			}
			o.InferredOptions[name] = arg
		case "doctype":
			o.InferredDoctype = content
		}
	}
	o.Async = it.IsAsync
	o.Deprecated = it.Deprecated
	o.DeprecationReason = it.DeprecationReason
	o.Nodiscard = it.IsNodiscard
	o.NodiscardReason = it.NodiscardMessage
}

// setLoc applies a location, which is an object for members and globals
// and a list for types. Lines in the dump are 1-based.
func (p *EmmyLuaParser) setLoc(o *model.Object, raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var locs []emLoc
	if json.Unmarshal(raw, &locs) != nil {
		var one emLoc
		if json.Unmarshal(raw, &one) != nil {
			return
		}
		locs = []emLoc{one}
	}
	if len(locs) == 0 {
		return
	}
	files := make([]string, len(locs))
	for i, l := range locs {
		files[i] = l.File
	}
	p.setFiles(o, files)
	o.Line = locs[0].Line
}

func generics(gs []emGeneric) []*model.Param {
	var out []*model.Param
	for _, g := range gs {
		out = append(out, &model.Param{Name: g.Name, Type: g.Base})
	}
	return out
}
