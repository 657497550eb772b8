// Package project holds the build context: the symbol tree of a project
// and the file snapshot used to decide when it must be rebuilt.
package project

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/discover"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/runner"
)

// Snapshot maps absolute file paths to their modification time in
// nanoseconds.
type Snapshot map[string]int64

// Take stats every file. Missing files are left out.
func Take(files []string) Snapshot {
	s := make(Snapshot, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			s[f] = info.ModTime().UnixNano()
		}
	}
	return s
}

// Fresh reports whether a tree built from s over prevRoots is still valid
// for roots, given the current state of the files. It is stale when the
// roots changed, a file vanished or was modified, or a new file appeared.
func (s Snapshot) Fresh(roots, prevRoots []string, current Snapshot) bool {
	if s == nil || !slices.Equal(sorted(roots), sorted(prevRoots)) {
		return false
	}
	for path, mtime := range s {
		now, ok := current[path]
		if !ok || now > mtime {
			return false
		}
	}
	for path := range current {
		if _, ok := s[path]; !ok {
			return false
		}
	}
	return true
}

func sorted(s []string) []string {
	return slices.Sorted(slices.Values(s))
}

// Project builds and caches the tree of a configured project.
type Project struct {
	cfg *config.Config

	mu       sync.Mutex
	tool     *runner.Tool
	tree     *objtree.Tree
	roots    []string
	snapshot Snapshot
}

// New returns a project for cfg. Nothing is run until Tree is called.
func New(cfg *config.Config) *Project {
	return &Project{cfg: cfg}
}

// Roots returns the project directories the tool is run in.
func (p *Project) Roots() []string {
	if len(p.cfg.ProjectDirectories) > 0 {
		return sorted(p.cfg.ProjectDirectories)
	}
	return []string{p.cfg.ProjectRoot}
}

// Tree returns the symbol tree, rebuilding it when sources changed since
// the last build. Tool failures are returned as is.
func (p *Project) Tree(ctx context.Context) (*objtree.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roots := p.Roots()
	if p.tree != nil {
		current, err := p.observe(ctx, roots, slices.Collect(maps.Keys(p.snapshot)))
		if err != nil {
			return nil, err
		}
		if p.snapshot.Fresh(roots, p.roots, current) {
			slogctx.Debug(ctx, "tree is up to date", "files", len(current))
			return p.tree, nil
		}
	}

	tree, err := p.build(ctx, roots)
	if err != nil {
		return nil, err
	}
	files := slices.Collect(maps.Keys(tree.Files))
	snapshot, err := p.observe(ctx, roots, files)
	if err != nil {
		return nil, err
	}
	p.tree, p.roots, p.snapshot = tree, roots, snapshot
	return tree, nil
}

// Invalidate forces the next call to Tree to rebuild.
func (p *Project) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tree = nil
}

// observe snapshots known files plus every Lua file under roots.
func (p *Project) observe(ctx context.Context, roots, known []string) (Snapshot, error) {
	files := slices.Clone(known)
	for _, root := range roots {
		rel, err := discover.LuaFiles(ctx, root)
		if err != nil {
			return nil, errors.Errorf("listing %s: %w", root, err)
		}
		for _, r := range rel {
			files = append(files, filepath.Join(root, r))
		}
	}
	return Take(files), nil
}

func (p *Project) resolveTool(ctx context.Context) (*runner.Tool, error) {
	if p.tool != nil {
		return p.tool, nil
	}
	tool, err := runner.Resolve(ctx, p.cfg.Backend, p.cfg.MinVersion, p.cfg.SkipVersions)
	if err != nil {
		return nil, err
	}
	p.tool = tool
	return tool, nil
}

func (p *Project) parser() objtree.Parser {
	ctor := objtree.ConstructorConfig{
		FunctionName:    p.cfg.ClassDefaultFunctionName,
		ForceNonColon:   p.cfg.ClassDefaultForceNonColon,
		ForceReturnSelf: p.cfg.ClassDefaultForceReturnSelf,
	}
	switch p.cfg.Backend {
	case config.BackendLuaLS:
		return objtree.NewLuaLS(ctor)
	case config.BackendSource:
		return objtree.NewSource(ctor)
	default:
		return objtree.NewEmmyLua(ctor)
	}
}

// build runs the tool in every root concurrently and parses the dumps in
// root order.
func (p *Project) build(ctx context.Context, roots []string) (*objtree.Tree, error) {
	tool, err := p.resolveTool(ctx)
	if err != nil {
		return nil, err
	}

	var configs []string
	rc := filepath.Join(p.cfg.ProjectRoot, ".emmyrc.json")
	if _, err := os.Stat(rc); err == nil {
		configs = append(configs, rc)
	}

	dumps := make([][]byte, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			slogctx.Info(gctx, "running documentation tool", "backend", tool.Backend, "dir", root)
			data, err := tool.Run(gctx, root, configs)
			if err != nil {
				return err
			}
			dumps[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parser := p.parser()
	for i, root := range roots {
		slogctx.Debug(ctx, "parsing dump", "dir", root, "size", humanize.Bytes(uint64(len(dumps[i]))))
		if err := parser.Parse(ctx, dumps[i], root); err != nil {
			return nil, errors.Errorf("parsing output for %s: %w", root, err)
		}
	}

	tree := parser.Tree()
	if p.cfg.LuaVersion != "" {
		tree.RuntimeVersion = p.cfg.LuaVersion
	}
	tree.Finalize()
	slogctx.Info(ctx, "built symbol tree", "files", len(tree.Files), "symbols", humanize.Comma(int64(count(tree))))
	return tree, nil
}

func count(tree *objtree.Tree) int {
	n := 0
	tree.Walk(func(string, *model.Object) bool {
		n++
		return true
	})
	return n
}
