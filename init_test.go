package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/luadoc/internal/config"
)

func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody\n" + sentinelEnd
	assert.Equal(t, section+"\n", applySection("", section))
}

// Top-level keys must stay ahead of any table header already in the file.
func TestApplySectionPrepends(t *testing.T) {
	t.Parallel()
	existing := "[default_options]\nmembers = \"\"\n"
	section := sentinelStart + "\nbackend = 'source'\n" + sentinelEnd
	got := applySection(existing, section)

	assert.True(t, strings.HasPrefix(got, section), got)
	assert.True(t, strings.HasSuffix(got, "\n\n"+existing), got)
}

func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "# project docs\n"
	after := "\n\n[default_options]\nmembers = \"\"\n"
	old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(old, section)

	assert.Equal(t, before+section+after, got)
}

func TestGenerateSection(t *testing.T) {
	t.Parallel()
	section, err := generateSection(initConfig{
		Backend:     config.BackendLuaLS,
		LuaVersion:  "5.4",
		ApidocRoots: map[string]string{"geo": "api/geo"},
	})
	require.NoError(t, err)

	lines := strings.Split(section, "\n")
	assert.Equal(t, sentinelStart, lines[0])
	assert.Equal(t, sentinelEnd, lines[len(lines)-1])
	assert.Contains(t, section, "backend = 'luals'")
	assert.Contains(t, section, "lua_version = '5.4'")
	assert.Contains(t, section, "apidoc_roots = {")
	assert.Contains(t, section, "geo = 'api/geo'")
}

func TestGenerateSectionOmitsEmpty(t *testing.T) {
	t.Parallel()
	section, err := generateSection(initConfig{Backend: config.BackendSource})
	require.NoError(t, err)
	assert.Equal(t, sentinelStart+"\nbackend = 'source'\n"+sentinelEnd, section)
}

func createInitProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "lua/geo.lua", geoSource)
	writeTestFile(t, dir, "lua/geo/shapes.lua", "return {}\n")
	writeTestFile(t, dir, "lua/util/init.lua", "return {}\n")
	writeTestFile(t, dir, "spec/geo_spec.lua", "describe('geo', function() end)\n")
	return dir
}

func TestTopModules(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)

	modules, err := topModules(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"geo", "util"}, modules)
}

func TestInitCreatesLoadableConfig(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)

	_, stderr, err := runIn(t, dir, "init", "--backend", "source")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "wrote luadoc section")

	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "luadoc.toml"), cfg.File)
	assert.Equal(t, config.BackendSource, cfg.Backend)
	require.Len(t, cfg.ApidocRoots, 2)
	assert.Equal(t, "geo", cfg.ApidocRoots[0].Module)
	assert.Equal(t, filepath.Join(dir, "api", "geo"), cfg.ApidocRoots[0].Path)
	assert.Equal(t, "util", cfg.ApidocRoots[1].Module)

	// The generated configuration drives a full build.
	_, stderr, err = runIn(t, dir, "build")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(dir, "api", "geo", "index.rst"))
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)
	path := filepath.Join(dir, "docs.toml")

	out, _, err := runIn(t, dir, "init", "--dry-run", "--backend", "emmylua", path)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	assert.True(t, strings.HasPrefix(out, sentinelStart+"\n"), out)
	assert.Contains(t, out, "backend = 'emmylua'")
}

func TestInitDryRunNoPath(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)

	out, _, err := runIn(t, dir, "init", "--dry-run", "--backend", "source")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, sentinelStart), out)
	assert.True(t, strings.HasSuffix(out, sentinelEnd+"\n"), out)
	assert.NoFileExists(t, filepath.Join(dir, "luadoc.toml"))
}

func TestInitDryRunShowsFullFile(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)
	path := filepath.Join(dir, "luadoc.toml")
	existing := "[default_options]\nmembers = \"\"\n"
	writeTestFile(t, dir, "luadoc.toml", existing)

	out, _, err := runIn(t, dir, "init", "--dry-run", "--backend", "source", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[default_options]")
	assert.Contains(t, out, sentinelStart)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)
	path := filepath.Join(dir, "luadoc.toml")

	_, _, err := runIn(t, dir, "init", "--backend", "source")
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, _, err = runIn(t, dir, "init", "--backend", "source")
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestInitUpdatesInPlace(t *testing.T) {
	t.Parallel()
	dir := createInitProject(t)
	path := filepath.Join(dir, "luadoc.toml")

	_, _, err := runIn(t, dir, "init", "--backend", "source")
	require.NoError(t, err)
	extra := "\n[default_options]\nmembers = \"\"\n"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(extra)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, _, err = runIn(t, dir, "init", "--backend", "luals", "--lua-version", "5.1")
	require.NoError(t, err)

	cfg, err := config.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, config.BackendLuaLS, cfg.Backend)
	assert.Equal(t, "5.1", cfg.LuaVersion)
	assert.True(t, cfg.DefaultOptions.Has("members"))
}
