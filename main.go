// luadoc documents Lua projects for the Sphinx `lua` domain.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"golang.org/x/term"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/project"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// app holds the global flags shared by all subcommands.
type app struct {
	stdout, stderr io.Writer

	configPath string
	dir        string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "luadoc",
		Short: "Generate Sphinx documentation for Lua projects",
		Long: `luadoc runs a Lua language server documentation dump (lua-language-server or
emmylua_doc_cli), builds the merged symbol tree and renders it as directives of
the Sphinx lua domain.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("luadoc {{ .Version }}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default: luadoc.toml in --dir)")
	flags.StringVarP(&a.dir, "dir", "C", ".", "directory to look for the configuration in")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug messages")

	root.AddCommand(
		newBuildCmd(a),
		newApidocCmd(a),
		newDumpCmd(a),
		newShowCmd(a),
		newIndexCmd(a),
		newInitCmd(a),
		newVersionCmd(a),
	)
	return root
}

// context returns the command context carrying a logger that writes to
// stderr.
func (a *app) context(cmd *cobra.Command) context.Context {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(a.stderr),
	})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return slogctx.NewCtx(ctx, slog.New(handler))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// load reads the configuration and prepares the project it describes.
func (a *app) load(ctx context.Context) (*config.Config, *project.Project, error) {
	cfg, err := config.Load(a.configPath, a.dir)
	if err != nil {
		return nil, nil, err
	}
	slogctx.Debug(ctx, "loaded configuration", "file", cfg.File, "backend", cfg.Backend, "root", cfg.ProjectRoot)
	return cfg, project.New(cfg), nil
}
