package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/autodoc"
	"github.com/phobologic/luadoc/internal/options"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		module string
		raw    []string
	)
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Render the directives for one object",
		Long: `Render the lua domain directives for one object, as the autodoc directive
would. Directive options are passed as -o name=value, or -o name for flags.`,
		Example: `  luadoc show geo.Shape -o members -o undoc-members
  luadoc show area --module geo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptionFlags(raw)
			if err != nil {
				return err
			}
			if module != "" {
				if err := opts.Add("module", module); err != nil {
					return err
				}
			}

			ctx := a.context(cmd)
			cfg, p, err := a.load(ctx)
			if err != nil {
				return err
			}
			tree, err := p.Tree(ctx)
			if err != nil {
				return err
			}

			r := autodoc.New(tree, cfg.DefaultOptions)
			r.MaxSignatureLength = cfg.MaximumSignatureLineLength
			out, err := r.Render(ctx, args[0], opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(a.stdout, out)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&raw, "option", "o", nil, "directive option as name=value (repeatable)")
	cmd.Flags().StringVarP(&module, "module", "m", "", "module to resolve NAME in")
	return cmd
}

// parseOptionFlags turns repeated name=value flags into a validated set.
func parseOptionFlags(raw []string) (options.Set, error) {
	m := make(map[string]string, len(raw))
	for _, kv := range raw {
		name, value, _ := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Errorf("invalid option %q", kv)
		}
		m[name] = value
	}
	return options.New(m)
}
