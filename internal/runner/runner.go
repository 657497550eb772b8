// Package runner finds and runs the external documentation tools.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/mod/semver"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/discover"
)

var (
	ErrNotInstalled = errors.Base("tool is not installed")
	ErrOutdated     = errors.Base("tool is outdated")
	ErrSkipped      = errors.Base("tool version is skipped")
)

// Binaries maps backends to the executable they run.
var Binaries = map[string]string{
	config.BackendLuaLS:   "lua-language-server",
	config.BackendEmmyLua: "emmylua_doc_cli",
}

// DefaultMinVersions is used when no minimal version is configured.
var DefaultMinVersions = map[string]string{
	config.BackendLuaLS:   "3.0.0",
	config.BackendEmmyLua: "0.8.0",
}

var versionRe = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// Tool is a resolved documentation backend.
type Tool struct {
	Backend string
	// Path and Version are empty for the source backend.
	Path    string
	Version string
}

// RunError is a failed tool run.
type RunError struct {
	Tool   string
	Code   int
	Signal string
	Stdout []byte
	Stderr []byte
}

func (e *RunError) Error() string {
	status := fmt.Sprintf("code %d", e.Code)
	if e.Signal != "" {
		status = "signal " + e.Signal
	}
	msg := fmt.Sprintf("%s run failed with %s", e.Tool, status)
	if len(e.Stderr) > 0 {
		msg += "\n\nStderr:\n" + string(e.Stderr)
	}
	if len(e.Stdout) > 0 {
		msg += "\n\nStdout:\n" + string(e.Stdout)
	}
	return msg
}

// Resolve finds the executable of backend on PATH and checks that its
// version is at least minVersion and not listed in skips.
func Resolve(ctx context.Context, backend, minVersion string, skips []string) (*Tool, error) {
	if backend == config.BackendSource {
		return &Tool{Backend: backend}, nil
	}
	bin, ok := Binaries[backend]
	if !ok {
		return nil, errors.Errorf("unknown backend %q", backend)
	}
	if minVersion == "" {
		minVersion = DefaultMinVersions[backend]
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, errors.Errorf("%w: %s: install it and make sure it is on PATH", ErrNotInstalled, bin)
	}

	version, err := toolVersion(ctx, path)
	if err != nil {
		return nil, err
	}
	slogctx.Debug(ctx, "found tool", "path", path, "version", version)

	if semver.Compare("v"+version, "v"+canonical(minVersion)) < 0 {
		return nil, errors.Errorf("%w: %s %s found, %s or newer is required", ErrOutdated, bin, version, minVersion)
	}
	if ShouldSkip(version, skips) {
		return nil, errors.Errorf("%w: %s %s is known to produce broken output", ErrSkipped, bin, version)
	}
	return &Tool{Backend: backend, Path: path, Version: version}, nil
}

func toolVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", errors.Errorf("%s failed to print its version: %w", path, err)
	}
	m := versionRe.FindString(string(out))
	if m == "" {
		return "", errors.Errorf("%s printed invalid version %q", path, strings.TrimSpace(string(out)))
	}
	return m, nil
}

// canonical pads a dotted version to three components.
func canonical(v string) string {
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ".")
}

// ShouldSkip reports whether version matches one of skips. A skip entry
// matches every version it is a prefix of, with missing components
// treated as zero: `1.0` skips `1.0.5`, and `1.0.0` skips `1.0`.
func ShouldSkip(version string, skips []string) bool {
	v := components(version)
	for _, skip := range skips {
		s := components(skip)
		match := true
		for i := range s {
			c := 0
			if i < len(v) {
				c = v[i]
			}
			if c != s[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func components(v string) []int {
	var out []int
	for _, p := range strings.Split(v, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out
		}
		out = append(out, n)
	}
	return out
}

// Run documents dir and returns the raw dump. For the source backend the
// dump is the list of Lua files, one per line. Configs are passed to
// emmylua_doc_cli only.
func (t *Tool) Run(ctx context.Context, dir string, configs []string) ([]byte, error) {
	if t.Backend == config.BackendSource {
		files, err := discover.LuaFiles(ctx, dir)
		if err != nil {
			return nil, errors.Errorf("listing %s: %w", dir, err)
		}
		return []byte(strings.Join(files, "\n")), nil
	}

	out, err := os.MkdirTemp("", "luadoc-")
	if err != nil {
		return nil, errors.Errorf("creating output directory: %w", err)
	}
	defer os.RemoveAll(out)

	var args []string
	switch t.Backend {
	case config.BackendEmmyLua:
		args = []string{"-f", "json", "-o", out}
		if len(configs) > 0 {
			args = append(args, "-c")
			args = append(args, configs...)
		}
		args = append(args, dir)
	default:
		args = []string{"--doc", dir, "--doc_out_path", out}
	}

	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slogctx.Debug(ctx, "running tool", "path", t.Path, "args", args)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Errorf("running %s: %w", t.Path, err)
		}
		runErr := &RunError{
			Tool:   filepath.Base(t.Path),
			Code:   exitErr.ExitCode(),
			Stdout: stdout.Bytes(),
			Stderr: stderr.Bytes(),
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			runErr.Signal = ws.Signal().String()
		}
		return nil, runErr
	}

	data, err := os.ReadFile(filepath.Join(out, "doc.json"))
	if err != nil {
		return nil, errors.Errorf("reading tool output: %w", err)
	}
	return data, nil
}
