package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/discover"
	"github.com/phobologic/luadoc/internal/objtree"
	"github.com/phobologic/luadoc/internal/runner"
)

const (
	sentinelStart = "# luadoc:start"
	sentinelEnd   = "# luadoc:end"
)

// Top-level directories that hold tests rather than modules.
var testDirs = []string{"spec", "test", "tests"}

// initConfig is the part of luadoc.toml that init manages.
type initConfig struct {
	Backend     string            `toml:"backend"`
	LuaVersion  string            `toml:"lua_version,omitempty"`
	ApidocRoots map[string]string `toml:"apidoc_roots,inline,omitempty"`
}

func newInitCmd(a *app) *cobra.Command {
	var (
		dryRun     bool
		backend    string
		luaVersion string
	)
	cmd := &cobra.Command{
		Use:   "init [path-to-luadoc.toml]",
		Short: "Write a starter luadoc.toml",
		Long: `Write a luadoc configuration section to a luadoc.toml file. The section is
wrapped in sentinel comments so it can be updated in place on subsequent runs
without touching surrounding content. Creates the file if it does not exist.

The backend defaults to the first documentation tool found on PATH, and one
apidoc root is added for every top-level module of the project.

path-to-luadoc.toml defaults to luadoc.toml in --dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			if backend == "" {
				backend = detectBackend()
			}
			modules, err := topModules(ctx, a.dir)
			if err != nil {
				return err
			}
			section, err := generateSection(initConfig{
				Backend:     backend,
				LuaVersion:  luaVersion,
				ApidocRoots: apidocRoots(modules),
			})
			if err != nil {
				return err
			}

			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(a.stdout, section)
				return nil
			}

			path := filepath.Join(a.dir, config.FileName+".toml")
			if len(args) > 0 {
				path = args[0]
			}

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(a.stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return errors.Errorf("writing %s: %w", path, err)
			}
			slogctx.Info(ctx, "wrote luadoc section", "file", path, "backend", backend, "modules", len(modules))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().StringVar(&backend, "backend", "", "backend to configure (default: detected from PATH)")
	cmd.Flags().StringVar(&luaVersion, "lua-version", "", "Lua runtime version of the project")
	return cmd
}

// detectBackend returns the first backend whose tool is on PATH.
func detectBackend() string {
	for _, backend := range []string{config.BackendEmmyLua, config.BackendLuaLS} {
		if _, err := exec.LookPath(runner.Binaries[backend]); err == nil {
			return backend
		}
	}
	return config.BackendSource
}

// topModules lists the top-level modules defined under dir.
func topModules(ctx context.Context, dir string) ([]string, error) {
	files, err := discover.LuaFiles(ctx, dir)
	if err != nil {
		return nil, errors.Errorf("listing sources: %w", err)
	}
	var modules []string
	for _, f := range files {
		top, _, _ := strings.Cut(objtree.ModuleName(f), ".")
		if top == "" || slices.Contains(testDirs, top) || slices.Contains(modules, top) {
			continue
		}
		modules = append(modules, top)
	}
	slices.Sort(modules)
	return modules, nil
}

func apidocRoots(modules []string) map[string]string {
	if len(modules) == 0 {
		return nil
	}
	roots := make(map[string]string, len(modules))
	for _, m := range modules {
		roots[m] = "api/" + m
	}
	return roots
}

// generateSection returns the sentinel-wrapped configuration block.
func generateSection(c initConfig) (string, error) {
	body, err := toml.Marshal(c)
	if err != nil {
		return "", errors.Errorf("encoding config: %w", err)
	}
	return sentinelStart + "\n" + strings.TrimRight(string(body), "\n") + "\n" + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present. Otherwise the section goes first, since top-level TOML
// keys cannot follow a table header.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	return section + "\n\n" + content
}
