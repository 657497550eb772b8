package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/luadoc/internal/config"
)

func TestFresh(t *testing.T) {
	t.Parallel()
	prev := Snapshot{"/p/a.lua": 100, "/p/b.lua": 200}
	roots := []string{"/p"}

	tests := []struct {
		name      string
		snapshot  Snapshot
		roots     []string
		prevRoots []string
		current   Snapshot
		want      bool
	}{
		{"unchanged", prev, roots, roots, Snapshot{"/p/a.lua": 100, "/p/b.lua": 200}, true},
		{"older mtime", prev, roots, roots, Snapshot{"/p/a.lua": 50, "/p/b.lua": 200}, true},
		{"modified", prev, roots, roots, Snapshot{"/p/a.lua": 101, "/p/b.lua": 200}, false},
		{"deleted", prev, roots, roots, Snapshot{"/p/a.lua": 100}, false},
		{"new file", prev, roots, roots, Snapshot{"/p/a.lua": 100, "/p/b.lua": 200, "/p/c.lua": 1}, false},
		{"roots changed", prev, []string{"/p", "/q"}, roots, Snapshot{"/p/a.lua": 100, "/p/b.lua": 200}, false},
		{"roots reordered", prev, []string{"/q", "/p"}, []string{"/p", "/q"}, Snapshot{"/p/a.lua": 100, "/p/b.lua": 200}, true},
		{"never built", nil, roots, roots, Snapshot{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.snapshot.Fresh(tt.roots, tt.prevRoots, tt.current))
		})
	}
}

func TestTake(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.lua")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	s := Take([]string{file, filepath.Join(dir, "missing.lua")})
	assert.Len(t, s, 1)
	assert.Contains(t, s, file)
}

func writeLua(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTreeRebuildsWhenStale(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeLua(t, filepath.Join(dir, "lua", "geo.lua"), "local M = {}\n\n--- Area of a square.\nfunction M.area(side) end\n\nreturn M\n")

	p := New(&config.Config{ProjectRoot: dir, Backend: config.BackendSource})
	ctx := context.Background()

	tree, err := p.Tree(ctx)
	require.NoError(t, err)
	area, ok := tree.Find("geo.area")
	require.True(t, ok)
	assert.Equal(t, "Area of a square.", strings.TrimSpace(area.Doc.Text))

	again, err := p.Tree(ctx)
	require.NoError(t, err)
	assert.Same(t, tree, again)

	writeLua(t, filepath.Join(dir, "lua", "extra.lua"), "local M = {}\nreturn M\n")
	rebuilt, err := p.Tree(ctx)
	require.NoError(t, err)
	assert.NotSame(t, tree, rebuilt)
	_, ok = rebuilt.Find("extra")
	assert.True(t, ok)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "lua", "geo.lua"), future, future))
	touched, err := p.Tree(ctx)
	require.NoError(t, err)
	assert.NotSame(t, rebuilt, touched)

	p.Invalidate()
	forced, err := p.Tree(ctx)
	require.NoError(t, err)
	assert.NotSame(t, touched, forced)
}

func TestRoots(t *testing.T) {
	t.Parallel()
	p := New(&config.Config{ProjectRoot: "/r"})
	assert.Equal(t, []string{"/r"}, p.Roots())

	p = New(&config.Config{ProjectRoot: "/r", ProjectDirectories: []string{"/r/b", "/r/a"}})
	assert.Equal(t, []string{"/r/a", "/r/b"}, p.Roots())
}
