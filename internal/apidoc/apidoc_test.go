package apidoc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/docstring"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
)

func buildTree() *objtree.Tree {
	tree := objtree.New(docstring.Plain)
	tree.Add("pkg", model.New(nil))
	tree.Add("pkg.util", model.New(nil))
	tree.Add("pkg.util.helper", model.New(&model.Function{}))
	tree.Add("pkg.internal", model.New(nil))
	tree.Add("pkg.Thing", model.New(&model.Class{}))
	secret := model.New(&model.Function{})
	secret.Visibility = model.Private
	tree.Add("pkg.secret", secret)
	tree.Add("pkg.f", model.New(&model.Function{}))
	tree.Finalize()
	return tree
}

func root(dir string) config.ApidocRoot {
	return config.ApidocRoot{
		Module: "pkg",
		Path:   dir,
		ApidocDefaults: config.ApidocDefaults{
			MaxDepth:       4,
			IgnoredModules: []string{"pkg.internal"},
			Format:         "rst",
		},
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, Generate(context.Background(), buildTree(), root(dir)))

	assert.Equal(t, "Module ``pkg``\n"+
		"==============\n\n"+
		".. toctree::\n"+
		"   :hidden:\n\n"+
		"   util.rst\n\n"+
		".. lua:autoobject:: pkg\n"+
		"   :exclude-members: internal, util\n"+
		"   :index-table:\n"+
		"   :members:\n"+
		"   :recursive:\n", read(t, filepath.Join(dir, "index.rst")))

	assert.Equal(t, "Module ``pkg.util``\n"+
		"===================\n\n"+
		".. lua:autoobject:: pkg.util\n"+
		"   :index-table:\n"+
		"   :members:\n"+
		"   :recursive:\n", read(t, filepath.Join(dir, "util.rst")))

	assert.Equal(t, "*\n", read(t, filepath.Join(dir, ".gitignore")))
	assert.NoFileExists(t, filepath.Join(dir, "internal.rst"))
}

func TestGenerateDepth(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := root(dir)
	r.MaxDepth = 0
	require.NoError(t, Generate(context.Background(), buildTree(), r))

	assert.Contains(t, read(t, filepath.Join(dir, "index.rst")), "   :exclude-members: internal\n")
	assert.NoFileExists(t, filepath.Join(dir, "util.rst"))
}

func TestGenerateSeparateMembers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := root(dir)
	r.SeparateMembers = true
	require.NoError(t, Generate(context.Background(), buildTree(), r))

	index := read(t, filepath.Join(dir, "index.rst"))
	assert.Contains(t, index, "   util.rst\n   Thing.rst\n")
	assert.Contains(t, index, "   :exclude-members: Thing, internal, util\n")
	assert.Equal(t, "Class ``pkg.Thing``\n"+
		"===================\n\n"+
		".. lua:autoobject:: pkg.Thing\n"+
		"   :members:\n", read(t, filepath.Join(dir, "Thing.rst")))
}

func TestGenerateMarkdown(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := root(dir)
	r.Format = "md"
	require.NoError(t, Generate(context.Background(), buildTree(), r))

	assert.Equal(t, "# Module `pkg.util`\n\n"+
		"```{lua:autoobject} pkg.util\n"+
		":index-table:\n"+
		":members:\n"+
		":recursive:\n"+
		"```\n", read(t, filepath.Join(dir, "util.md")))
	assert.Contains(t, read(t, filepath.Join(dir, "index.md")), "```{toctree}\n:hidden:\n\nutil.md\n```\n\n")
}

func TestGenerateRemovesStalePages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	stale := filepath.Join(dir, "gone.rst")
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(keep, []byte("mine"), 0o644))

	require.NoError(t, Generate(context.Background(), buildTree(), root(dir)))
	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
}

func TestGenerateKeepsUnchangedPages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	require.NoError(t, Generate(ctx, buildTree(), root(dir)))

	index := filepath.Join(dir, "index.rst")
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(index, past, past))

	require.NoError(t, Generate(ctx, buildTree(), root(dir)))
	info, err := os.Stat(index)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()
	tree := buildTree()

	r := root(t.TempDir())
	r.Module = "pkg.f"
	assert.ErrorContains(t, Generate(context.Background(), tree, r), "not a module")

	r.Module = "nope"
	assert.ErrorContains(t, Generate(context.Background(), tree, r), "can't find module nope")

	r = root(t.TempDir())
	r.IgnoredModules = []string{"pkg.[bad"}
	assert.Error(t, Generate(context.Background(), tree, r))
}

func TestIgnored(t *testing.T) {
	t.Parallel()
	g := &generator{root: config.ApidocRoot{ApidocDefaults: config.ApidocDefaults{
		IgnoredModules: []string{"pkg.*.test", "vendor.**"},
	}}}
	assert.True(t, g.ignored("pkg.util.test"))
	assert.False(t, g.ignored("pkg.util.deep.test"))
	assert.True(t, g.ignored("vendor.a.b"))
	assert.False(t, g.ignored("pkg.util"))
}
