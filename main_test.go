package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const geoSource = `--- Geometry helpers.

local M = {}

--- Area of a square.
--- @param side number
--- @return number
function M.area(side)
  return side * side
end

--- The circle constant.
M.pi = 3.14

--- Not documented anywhere else.
local function helper() end

return M
`

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "luadoc.toml", `backend = "source"

[apidoc_roots]
geo = "api/geo"
`)
	writeTestFile(t, dir, "lua/geo.lua", geoSource)
	return dir
}

func runIn(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"-C", dir}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunDumpText(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "dump")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "geo")
	assert.Contains(t, out, "area")
	assert.NotContains(t, out, "helper")
}

func TestRunDumpJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "dump", "--format", "json", "geo")
	require.NoError(t, err, stderr)

	var n node
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	assert.Equal(t, "geo", n.Name)
	assert.Equal(t, "module", n.Kind)
	assert.Equal(t, "Geometry helpers.", n.Doc)

	var area *node
	for i := range n.Children {
		if n.Children[i].Name == "area" {
			area = &n.Children[i]
		}
	}
	require.NotNil(t, area, out)
	assert.Equal(t, "function", area.Kind)
	assert.Equal(t, "Area of a square.", area.Doc)
	assert.Equal(t, "area(side: number) -> number", area.Signature)
	assert.Equal(t, 8, area.Line)
}

func TestRunDumpYAML(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "dump", "-f", "yaml", "geo.pi")
	require.NoError(t, err, stderr)

	var n node
	require.NoError(t, yaml.Unmarshal([]byte(out), &n))
	assert.Equal(t, "geo.pi", n.Name)
	assert.Equal(t, "data", n.Kind)
	assert.Equal(t, "The circle constant.", n.Doc)
}

func TestRunDumpErrors(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runIn(t, dir, "dump", "-f", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)

	_, _, err = runIn(t, dir, "dump", "geo.nope")
	assert.ErrorContains(t, err, "unknown lua object geo.nope")
}

func TestRunShow(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "show", "geo", "-o", "members")
	require.NoError(t, err, stderr)
	assert.True(t, strings.HasPrefix(out, ".. lua:module:: geo\n"), out)
	assert.Contains(t, out, "Geometry helpers.")
	assert.Contains(t, out, "lua:function:: area(side: number) -> number")
	assert.Contains(t, out, "lua:data:: pi")
}

func TestRunShowModuleFlag(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "show", "area", "--module", "geo")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, ".. lua:currentmodule:: geo\n")
	assert.Contains(t, out, "Area of a square.")
}

func TestRunShowBadOption(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runIn(t, dir, "show", "geo", "-o", "colour=red")
	assert.ErrorContains(t, err, "colour")

	_, _, err = runIn(t, dir, "show", "geo", "-o", "=x")
	assert.ErrorContains(t, err, "invalid option")
}

func TestRunIndex(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "index", "geo")
	require.NoError(t, err, stderr)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 5, out)
	assert.Equal(t, "module: geo", lines[0])
	assert.Contains(t, out, "data[1]{name,signature,synopsis,file,line}:\n")
	assert.Contains(t, out, "function[1]{name,signature,synopsis,file,line}:\n")
	assert.Contains(t, out, `  area,"area(side: number) -> number",Area of a square.,lua/geo.lua,8`)
}

func TestRunIndexNotAModule(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runIn(t, dir, "index", "geo.area")
	assert.ErrorContains(t, err, "not a module")
}

func TestRunBuild(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "build")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "1 apidoc roots")

	page, err := os.ReadFile(filepath.Join(dir, "api", "geo", "index.rst"))
	require.NoError(t, err)
	assert.Contains(t, string(page), ".. lua:autoobject:: geo\n")
}

func TestRunApidoc(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, stderr, err := runIn(t, dir, "apidoc", "geo")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(dir, "api", "geo", "index.rst"))
	assert.FileExists(t, filepath.Join(dir, "api", "geo", ".gitignore"))

	_, _, err = runIn(t, dir, "apidoc", "other")
	assert.ErrorContains(t, err, "no apidoc root for module other")
}

func TestRunApidocNoRoots(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "luadoc.toml", "backend = \"source\"\n")

	_, _, err := runIn(t, dir, "apidoc")
	assert.ErrorContains(t, err, "no apidoc roots configured")
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "luadoc.toml", "backend = \"ctags\"\ncolour = 1\n")

	_, _, err := runIn(t, dir, "dump")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend: should be one of")
	assert.Contains(t, err.Error(), "colour: unknown key")
}

func TestRunExplicitConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	cfg := filepath.Join(t.TempDir(), "missing.toml")

	_, _, err := runIn(t, dir, "--config", cfg, "dump")
	assert.ErrorContains(t, err, "reading config")
}

func TestRunVersion(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runIn(t, dir, "version")
	require.NoError(t, err, stderr)
	assert.Equal(t, "luadoc dev\nbackend: source (no external tool)\n", out)

	out, _, err = runIn(t, dir, "--version")
	require.NoError(t, err)
	assert.Equal(t, "luadoc dev\n", out)
}

func TestRunVerboseLogs(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, stderr, err := runIn(t, dir, "-v", "dump")
	require.NoError(t, err)
	assert.Contains(t, stderr, "loaded configuration")

	_, stderr, err = runIn(t, dir, "dump")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "loaded configuration")
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()
	_, _, err := runIn(t, t.TempDir(), "frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}
