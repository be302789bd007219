package main

import (
	"github.com/spf13/cobra"

	"github.com/glimte/protoreg/internal/generator"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		transport    string
		port         int
		templateFile string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "generate <protocol>",
		Short: "Generate a schema document for a new protocol",
		Long: `Render a schema document skeleton for a protocol and write it to
<out>/<protocol>.json. The built-in template can be replaced with --template;
templates see .Protocol, .Transport, .Port and .Ref.`,
		Example: `  protoreg generate http --transport TCP --port 80
  protoreg generate dns --transport UDP --port 53 --out schemas`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []generator.Option{generator.WithLogger(a.logger)}

			var (
				gen *generator.Generator
				err error
			)
			if templateFile != "" {
				gen, err = generator.NewFromFile(templateFile, opts...)
			} else {
				gen, err = generator.New(opts...)
			}
			if err != nil {
				return err
			}

			path, err := gen.WriteFile(outDir, args[0], transport, port)
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "✓ wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "transport protocol (TCP or UDP)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "default port (0-65535)")
	cmd.Flags().StringVar(&templateFile, "template", "", "template file replacing the built-in one")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("transport")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}
