package objtree

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/lang"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/parse"
)

// SourceParser builds the tree straight from Lua sources without running a
// language server. Only `---` comments and the most common annotations are
// understood.
type SourceParser struct {
	builder
}

// NewSource returns a parser for Lua sources.
func NewSource(ctor ConstructorConfig) *SourceParser {
	return &SourceParser{builder{tree: New(docstring.Plain), ctor: ctor}}
}

// Parse reads the Lua files listed in data, one path relative to dir per
// line. Unreadable files are skipped with a warning.
func (p *SourceParser) Parse(ctx context.Context, data []byte, dir string) error {
	if err := p.setDir(dir); err != nil {
		return errors.Errorf("resolving %s: %w", dir, err)
	}

	parser := lang.Lua.NewParser()
	defer parser.Close()

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		rel := strings.TrimSpace(sc.Text())
		if rel == "" {
			continue
		}
		source, err := os.ReadFile(filepath.Join(p.dir, rel))
		if err != nil {
			slogctx.Warn(ctx, "skipping unreadable file", "file", rel, "error", err)
			continue
		}
		if err := parse.Preflight(parser, source, rel); err != nil {
			// Definitions before the error are usually still usable.
			slogctx.Warn(ctx, "syntax error in lua file", "file", rel, "error", err)
		}
		chunk, err := parse.ExtractDefinitions(parser, source, rel)
		if err != nil {
			slogctx.Warn(ctx, "skipping unparsable file", "file", rel, "error", err)
			continue
		}
		p.addChunk(chunk, ModuleName(rel))
	}
	if err := sc.Err(); err != nil {
		return errors.Errorf("reading file list: %w", err)
	}

	p.tree.Walk(func(path string, o *model.Object) bool {
		p.detectConstructor(path, o)
		return true
	})
	return nil
}

// ModuleName derives a `require` name from a path relative to the project
// directory: `lua/a/b/init.lua` becomes `a.b`.
func ModuleName(rel string) string {
	rel = filepath.ToSlash(strings.TrimSuffix(rel, ".lua"))
	rel = strings.TrimPrefix(rel, "lua/")
	rel = strings.TrimSuffix(rel, "/init")
	return strings.ReplaceAll(rel, "/", ".")
}

func (p *SourceParser) addChunk(chunk *parse.Chunk, module string) {
	mod := model.New(nil)
	p.setFile(mod, chunk.File)
	mod.Docstring, _ = annotate(mod, chunk.Doc)
	p.tree.Add(module, mod)

	for _, def := range chunk.Definitions {
		path := def.Path
		head, rest, _ := strings.Cut(path, ".")
		switch {
		case chunk.Returns != "" && head == chunk.Returns:
			path = module
			if rest != "" {
				path += "." + rest
			}
		case def.Local:
			continue
		}

		o := p.definition(def)
		p.setFile(o, chunk.File)
		o.Line = def.Line
		if path == module {
			// The returned table is the module itself; keep the module
			// shape and only take its documentation.
			mod.Docstring = first(mod.Docstring, o.Docstring)
			mod.Line = def.Line
			continue
		}
		p.tree.Add(path, o)
	}
}

func (p *SourceParser) definition(def parse.Definition) *model.Object {
	var body model.Body
	switch def.Kind {
	case parse.Function:
		fn := &model.Function{ImplicitSelf: def.Method}
		if def.Method {
			fn.Params = append(fn.Params, &model.Param{Name: "self"})
		}
		for _, name := range def.Params {
			fn.Params = append(fn.Params, &model.Param{Name: name})
		}
		body = fn
	case parse.Table:
		body = &model.Table{}
	default:
		body = &model.Data{Type: literalType(def.Literal), Literal: def.Literal}
	}

	o := model.New(body)
	text, ann := annotate(o, def.Doc)
	o.Docstring = text
	ann.apply(o)
	return o
}

// annotations collects the typed parts of a doc comment.
type annotations struct {
	params  map[string]*model.Param
	returns []*model.Param
	class   *model.Class
	typ     string
}

// annotate splits doc comment lines into text and `@` annotations. Flags
// and references are applied to o directly.
func annotate(o *model.Object, lines []string) (string, *annotations) {
	ann := &annotations{params: make(map[string]*model.Param)}
	var text []string
	for _, line := range lines {
		tag, ok := strings.CutPrefix(strings.TrimSpace(line), "@")
		if !ok {
			text = append(text, line)
			continue
		}
		name, arg, _ := strings.Cut(tag, " ")
		arg = strings.TrimSpace(arg)
		fields := strings.Fields(arg)
		switch name {
		case "param":
			if len(fields) == 0 {
				continue
			}
			param := &model.Param{Name: fields[0]}
			if len(fields) > 1 {
				param.Type = fields[1]
			}
			if len(fields) > 2 {
				param.Docstring = strings.Join(fields[2:], " ")
			}
			ann.params[param.Name] = param
		case "return":
			if len(fields) == 0 {
				continue
			}
			ret := &model.Param{Type: fields[0]}
			if len(fields) > 1 {
				ret.Name = fields[1]
			}
			if len(fields) > 2 {
				ret.Docstring = strings.Join(fields[2:], " ")
			}
			ann.returns = append(ann.returns, ret)
		case "class":
			ann.class = &model.Class{}
			if _, bases, ok := strings.Cut(arg, ":"); ok {
				for _, b := range strings.Split(bases, ",") {
					if b = strings.TrimSpace(b); b != "" {
						ann.class.Bases = append(ann.class.Bases, b)
					}
				}
			}
		case "type":
			ann.typ = arg
		case "deprecated":
			o.Deprecated = true
			o.DeprecationReason = arg
		case "async":
			o.Async = true
		case "nodiscard":
			o.Nodiscard = true
			o.NodiscardReason = arg
		case "public", "protected", "private", "package":
			o.Visibility = model.Visibility(name)
		case "see":
			o.See = append(o.See, arg)
		}
	}
	return strings.TrimSpace(strings.Join(text, "\n")), ann
}

func (a *annotations) apply(o *model.Object) {
	switch body := o.Body.(type) {
	case *model.Function:
		for i, param := range body.Params {
			if doc, ok := a.params[param.Name]; ok {
				body.Params[i] = doc
			}
		}
		body.Returns = a.returns
	case *model.Table:
		if a.class != nil {
			o.Body = a.class
		}
	case *model.Data:
		if a.typ != "" {
			body.Type = a.typ
		}
		if a.class != nil {
			o.Body = a.class
		}
	}
}

func literalType(lit string) string {
	switch {
	case lit == "":
		return "unknown"
	case lit == "true" || lit == "false":
		return "boolean"
	case lit == "nil":
		return "nil"
	case strings.HasPrefix(lit, `"`), strings.HasPrefix(lit, "'"), strings.HasPrefix(lit, "["):
		return "string"
	case strings.ContainsAny(lit, ".eE") && !strings.HasPrefix(lit, "0x"):
		return "number"
	}
	return "integer"
}
