package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/luadoc/internal/autodoc"
	"github.com/phobologic/luadoc/internal/model"
	"github.com/phobologic/luadoc/internal/objtree"
)

var dumpFormats = []string{"text", "json", "yaml"}

func newDumpCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump [path]",
		Short: "Print the symbol tree, or the subtree at a dotted path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(dumpFormats, format) {
				return errors.Errorf("unknown format %q, should be one of %s", format, strings.Join(dumpFormats, ", "))
			}
			ctx := a.context(cmd)
			_, p, err := a.load(ctx)
			if err != nil {
				return err
			}
			tree, err := p.Tree(ctx)
			if err != nil {
				return err
			}

			name, o := "", tree.Root
			if len(args) > 0 {
				var ok bool
				if o, ok = tree.Find(args[0]); !ok {
					return errors.Errorf("unknown lua object %s", args[0])
				}
				name = args[0]
			}
			return dump(a.stdout, format, name, o, tree)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}

// node is the serialized form of a symbol.
type node struct {
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Kind        string   `json:"kind" yaml:"kind"`
	Doctype     string   `json:"doctype,omitempty" yaml:"doctype,omitempty"`
	Doc         string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Signature   string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	Bases       []string `json:"bases,omitempty" yaml:"bases,omitempty"`
	Visibility  string   `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Async       bool     `json:"async,omitempty" yaml:"async,omitempty"`
	Foreign     bool     `json:"foreign,omitempty" yaml:"foreign,omitempty"`
	File        string   `json:"file,omitempty" yaml:"file,omitempty"`
	Line        int      `json:"line,omitempty" yaml:"line,omitempty"`
	Constructor string   `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	Children    []node   `json:"children,omitempty" yaml:"children,omitempty"`
}

func toNode(name string, o *model.Object) node {
	n := node{
		Name:       name,
		Kind:       string(o.KindOrShape()),
		Doctype:    o.Doc.Doctype,
		Doc:        strings.TrimSpace(o.Doc.Text),
		Visibility: string(o.Visibility),
		Deprecated: o.Deprecated,
		Async:      o.Async,
		Foreign:    o.Foreign,
		File:       o.DocstringFile,
		Line:       o.Line,
	}
	switch body := o.Body.(type) {
	case *model.Data:
		n.Type = body.Type
	case *model.Alias:
		n.Type = body.Type
	case *model.Enum:
		n.Type = body.Type
	case *model.Function:
		n.Signature = autodoc.FunctionSignature(name, body)
	case *model.Class:
		n.Bases = body.Bases
		if body.Constructor != nil {
			if fn := body.Constructor.Function(); fn != nil {
				n.Constructor = autodoc.FunctionSignature(body.ConstructorName, fn)
			}
		}
	}
	for childName, child := range o.Children.All() {
		n.Children = append(n.Children, toNode(childName, child))
	}
	return n
}

func dump(w io.Writer, format, name string, o *model.Object, tree *objtree.Tree) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toNode(name, o)); err != nil {
			return errors.Errorf("encoding json: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toNode(name, o)); err != nil {
			return errors.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return errors.Errorf("encoding yaml: %w", err)
		}
	default:
		if tree.RuntimeVersion != "" && name == "" {
			_, _ = fmt.Fprintf(w, "-- runtime: Lua %s\n", tree.RuntimeVersion)
		}
		if name != "" {
			_, _ = fmt.Fprintf(w, "%s ", name)
		}
		_, _ = fmt.Fprintln(w, o.String())
	}
	return nil
}
