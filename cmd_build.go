package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/apidoc"
	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
)

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the symbol tree and generate every configured apidoc root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd)
			cfg, p, err := a.load(ctx)
			if err != nil {
				return err
			}
			tree, err := p.Tree(ctx)
			if err != nil {
				return err
			}
			if err := generate(ctx, tree, cfg.ApidocRoots); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "%s symbols from %s files, %d apidoc roots\n",
				humanize.Comma(int64(countSymbols(tree))), humanize.Comma(int64(len(tree.Files))), len(cfg.ApidocRoots))
			return nil
		},
	}
}

func newApidocCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apidoc [module...]",
		Short: "Generate pages for the configured apidoc roots",
		Long: `Generate one page per module for each apidoc root configured in luadoc.toml.
With arguments, only the roots of the named modules are generated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			cfg, p, err := a.load(ctx)
			if err != nil {
				return err
			}

			roots := cfg.ApidocRoots
			if len(args) > 0 {
				roots = nil
				for _, name := range args {
					i := slices.IndexFunc(cfg.ApidocRoots, func(r config.ApidocRoot) bool { return r.Module == name })
					if i < 0 {
						return errors.Errorf("no apidoc root for module %s", name)
					}
					roots = append(roots, cfg.ApidocRoots[i])
				}
			}
			if len(roots) == 0 {
				return errors.New("no apidoc roots configured")
			}

			tree, err := p.Tree(ctx)
			if err != nil {
				return err
			}
			return generate(ctx, tree, roots)
		},
	}
}

func generate(ctx context.Context, tree *objtree.Tree, roots []config.ApidocRoot) error {
	for _, root := range roots {
		slogctx.Info(ctx, "generating apidoc", "module", root.Module, "path", root.Path)
		if err := apidoc.Generate(ctx, tree, root); err != nil {
			return errors.Errorf("apidoc for %s: %w", root.Module, err)
		}
	}
	return nil
}

func countSymbols(tree *objtree.Tree) int {
	n := 0
	tree.Walk(func(string, *model.Object) bool {
		n++
		return true
	})
	return n
}
