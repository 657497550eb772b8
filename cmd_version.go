package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/luadoc/internal/config"
	"github.com/phobologic/luadoc/internal/runner"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the luadoc version and the documentation tool it would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(a.stdout, "luadoc %s\n", version)

			ctx := a.context(cmd)
			cfg, err := config.Load(a.configPath, a.dir)
			if err != nil {
				return err
			}
			if cfg.Backend == config.BackendSource {
				_, _ = fmt.Fprintln(a.stdout, "backend: source (no external tool)")
				return nil
			}
			tool, err := runner.Resolve(ctx, cfg.Backend, cfg.MinVersion, cfg.SkipVersions)
			if err != nil {
				_, _ = fmt.Fprintf(a.stdout, "backend: %s (%v)\n", cfg.Backend, err)
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "backend: %s %s (%s)\n", tool.Backend, tool.Version, tool.Path)
			return nil
		},
	}
}
