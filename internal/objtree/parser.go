package objtree

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/luadoc/internal/model"
)

// Parser ingests one tool dump into a tree.
type Parser interface {
	// Parse adds the symbols of one dump produced for project directory dir.
	Parse(ctx context.Context, data []byte, dir string) error
	// Tree returns the tree built so far.
	Tree() *Tree
}

// ConstructorConfig says how classes are called. When FunctionName is set,
// a class method with that name becomes the class constructor.
type ConstructorConfig struct {
	FunctionName    string
	ForceNonColon   bool
	ForceReturnSelf bool
}

// builder holds state shared by all parsers.
type builder struct {
	tree *Tree
	dir  string
	ctor ConstructorConfig
}

func (b *builder) Tree() *Tree {
	return b.tree
}

// setDir resolves the project directory the way files will be resolved.
func (b *builder) setDir(dir string) error {
	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	b.dir = abs
	return nil
}

// resolve returns the absolute path of a file reported relative to the
// project directory, and whether it lies outside of it.
func (b *builder) resolve(file string) (path string, foreign bool) {
	path = file
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.dir, path)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path, !within(b.dir, path)
}

// setFile records the defining file of o.
func (b *builder) setFile(o *model.Object, file string) {
	path, foreign := b.resolve(file)
	o.Files = map[string]struct{}{path: {}}
	o.DocstringFile = path
	o.Foreign = foreign
	b.tree.Files[path] = struct{}{}
}

// setFiles records several defining files; the first one holds the
// docstring. The symbol is foreign only if every file is.
func (b *builder) setFiles(o *model.Object, files []string) {
	if len(files) == 0 {
		return
	}
	o.Files = make(map[string]struct{}, len(files))
	o.Foreign = true
	for i, f := range files {
		path, foreign := b.resolve(f)
		o.AddFile(path)
		o.Foreign = o.Foreign && foreign
		b.tree.Files[path] = struct{}{}
		if i == 0 {
			o.DocstringFile = path
		}
	}
}

// detectConstructor moves the configured constructor method out of the
// members of class name.
func (b *builder) detectConstructor(name string, o *model.Object) {
	cls := o.Class()
	fname := b.ctor.FunctionName
	if cls == nil || fname == "" {
		return
	}
	child, ok := o.Children.Get(fname)
	if !ok || child.Function() == nil {
		return
	}
	o.Children.Delete(fname)
	cls.ConstructorName = fname
	cls.Constructor = child
	fn := child.Function()
	if b.ctor.ForceNonColon {
		fn.ImplicitSelf = false
		if len(fn.Params) > 0 && fn.Params[0].Name == "self" {
			fn.Params = fn.Params[1:]
		}
	}
	if b.ctor.ForceReturnSelf {
		fn.Returns = []*model.Param{{Type: name}}
	}
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
