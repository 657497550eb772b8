package objtree

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/model"
)

// LuaLSParser reads the `--doc` JSON dump of lua-language-server.
type LuaLSParser struct {
	builder
}

// NewLuaLS returns a parser for lua-language-server dumps.
func NewLuaLS(ctor ConstructorConfig) *LuaLSParser {
	return &LuaLSParser{builder{tree: New(docstring.LuaLS), ctor: ctor}}
}

type lsNamespace struct {
	Name    string            `json:"name"`
	Defines []json.RawMessage `json:"defines"`
	Fields  []json.RawMessage `json:"fields"`
}

type lsDefine struct {
	Type       string          `json:"type"`
	Name       *string         `json:"name"`
	Desc       string          `json:"desc"`
	View       string          `json:"view"`
	File       string          `json:"file"`
	Start      json.RawMessage `json:"start"`
	Deprecated bool            `json:"deprecated"`
	Async      bool            `json:"async"`
	Visible    string          `json:"visible"`
	Extends    json.RawMessage `json:"extends"`
}

type lsExtends struct {
	Type    string    `json:"type"`
	View    string    `json:"view"`
	Args    []lsParam `json:"args"`
	Returns []lsParam `json:"returns"`
}

type lsParam struct {
	Name any    `json:"name"`
	Type string `json:"type"`
	View string `json:"view"`
	Desc string `json:"desc"`
}

var (
	foreignMarker = regexp.MustCompile(`(?i)^\s*\[FOREIGN\]\s*`)
	uriScheme     = regexp.MustCompile(`^.*?://`)
	optionalParen = regexp.MustCompile(`^\([\w.-]+\)\?$`)
)

// Parse adds a lua-language-server dump. Malformed entries are skipped.
func (p *LuaLSParser) Parse(ctx context.Context, data []byte, dir string) error {
	if err := p.setDir(dir); err != nil {
		return errors.Errorf("resolving %s: %w", dir, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		var v any
		if json.Unmarshal(data, &v) == nil {
			slogctx.Debug(ctx, "lua-language-server dump is not a list, ignoring")
			return nil
		}
		return errors.Errorf("decoding lua-language-server dump: %w", err)
	}

	for _, raw := range entries {
		var ns lsNamespace
		if err := json.Unmarshal(raw, &ns); err != nil {
			slogctx.Debug(ctx, "skipping malformed namespace", "error", err)
			continue
		}
		p.parseNamespace(ctx, ns)
	}
	return nil
}

func (p *LuaLSParser) parseNamespace(ctx context.Context, ns lsNamespace) {
	o := p.parseDefinitions(ctx, ns.Defines)

	for _, raw := range ns.Fields {
		var f lsDefine
		if err := json.Unmarshal(raw, &f); err != nil || f.Name == nil {
			continue
		}
		AddChild(o, *f.Name, p.parseField(f))
	}

	p.detectConstructor(ns.Name, o)
	p.tree.Add(ns.Name, o)
}

func (p *LuaLSParser) parseDefinitions(ctx context.Context, defs []json.RawMessage) *model.Object {
	var res *model.Object
	for _, raw := range defs {
		var d lsDefine
		var o *model.Object
		if err := json.Unmarshal(raw, &d); err != nil {
			slogctx.Debug(ctx, "skipping malformed definition", "error", err)
			o = model.New(nil)
		} else {
			o = p.parseDefinition(d)
		}
		if res == nil {
			res = o
		} else {
			res = Merge(res, o)
		}
	}
	if res == nil {
		return model.New(nil)
	}
	return res
}

func (p *LuaLSParser) parseDefinition(d lsDefine) *model.Object {
	var res *model.Object
	switch d.Type {
	case "doc.class":
		cls := &model.Class{}
		var bases []struct {
			View *string `json:"view"`
		}
		_ = json.Unmarshal(d.Extends, &bases)
		for _, b := range bases {
			if b.View != nil {
				cls.Bases = append(cls.Bases, normalizeType(orUnknown(*b.View)))
			}
		}
		res = model.New(cls)
		res.Docstring = d.Desc
	case "doc.alias":
		res = model.New(&model.Alias{Type: normalizeType(orUnknown(d.View))})
		res.Docstring = aliasDoc(d.Desc)
	default:
		return p.parseField(d)
	}
	p.setCommon(res, d)
	return res
}

func (p *LuaLSParser) parseField(d lsDefine) *model.Object {
	var ext lsExtends
	if len(d.Extends) == 0 || json.Unmarshal(d.Extends, &ext) != nil {
		return model.New(nil)
	}

	var res *model.Object
	if ext.Type == "function" {
		fn := &model.Function{ImplicitSelf: d.Type == "setmethod"}
		fn.Params = lsParams(ext.Args)
		fn.Returns = lsParams(ext.Returns)
		res = model.New(fn)
	} else {
		res = model.New(&model.Data{Type: normalizeType(orUnknown(d.View))})
	}
	p.setCommon(res, d)
	res.Docstring = d.Desc
	return res
}

func (p *LuaLSParser) setCommon(o *model.Object, d lsDefine) {
	o.Deprecated = d.Deprecated
	o.Async = d.Async
	switch v := model.Visibility(d.Visible); v {
	case model.Public, model.Protected, model.Private, model.Package:
		o.Visibility = v
	}
	if d.File != "" {
		file := foreignMarker.ReplaceAllString(d.File, "")
		file = uriScheme.ReplaceAllString(file, "")
		p.setFile(o, file)
	}
	o.Line = startLine(d.Start)
}

func lsParams(params []lsParam) []*model.Param {
	var out []*model.Param
	for _, param := range params {
		name, _ := param.Name.(string)
		if param.Type == "..." {
			name = "..."
		}
		out = append(out, &model.Param{
			Name:      name,
			Type:      normalizeType(orUnknown(param.View)),
			Docstring: param.Desc,
		})
	}
	return out
}

// startLine converts a zero-based `start` position to a 1-based line.
// Positions are either [line, column] or line*10000+column.
func startLine(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var pair []int
	if json.Unmarshal(raw, &pair) == nil && len(pair) > 0 {
		return pair[0] + 1
	}
	var packed int
	if json.Unmarshal(raw, &packed) == nil {
		return packed/10000 + 1
	}
	return 0
}

// normalizeType rewrites `(T)?` as `T?`.
func normalizeType(typ string) string {
	if optionalParen.MatchString(typ) {
		return typ[1:len(typ)-2] + "?"
	}
	return typ
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// aliasDoc extracts documentation from an alias description rendered as a
// Lua code block, where comment lines carry the text.
func aliasDoc(doc string) string {
	if !strings.HasPrefix(doc, "```lua\n") || !strings.HasSuffix(doc, "\n```") || len(doc) < 11 {
		return doc
	}
	var lines []string
	for _, line := range strings.Split(doc[7:len(doc)-4], "\n") {
		if rest, ok := strings.CutPrefix(line, "--"); ok {
			lines = append(lines, rest)
		}
	}
	return strings.Join(lines, "\n")
}
