package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/luadoc/internal/members"
	"github.com/phobologic/luadoc/internal/options"
	"github.com/phobologic/luadoc/internal/toon"
)

func newIndexCmd(a *app) *cobra.Command {
	var globals, undoc bool
	cmd := &cobra.Command{
		Use:   "index MODULE",
		Short: "Print a compact index of a module's members",
		Long: `Print the members of a module grouped by kind as TOON tables, with their
signature, synopsis and location.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			cfg, p, err := a.load(ctx)
			if err != nil {
				return err
			}
			tree, err := p.Tree(ctx)
			if err != nil {
				return err
			}

			opts := options.Set{"members": ""}
			if globals {
				opts["globals"] = ""
			}
			if undoc {
				opts["undoc-members"] = ""
			}
			idx, err := toon.Build(members.NewSelector(tree), args[0], opts.Merge(cfg.DefaultOptions), cfg.ProjectRoot)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.stdout, toon.Encode(idx))
			return nil
		},
	}
	cmd.Flags().BoolVar(&globals, "globals", false, "include globals defined by the module")
	cmd.Flags().BoolVar(&undoc, "undoc", false, "include undocumented members")
	return cmd
}
