package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !long {
				for name := range reg.List() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROTOCOL\tTRANSPORT\tPORT")
			for name := range reg.List() {
				def, err := reg.Describe(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", def.Name, def.Transport, def.DefaultPort)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show transport and default port")
	return cmd
}

func newDescribeCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe <protocol>",
		Short: "Show the transport and default port of a protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			def, err := reg.Describe(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(def)
			}
			labelColor.Fprint(out, "Protocol: ")
			fmt.Fprintln(out, def.Name)
			labelColor.Fprint(out, "Transport: ")
			fmt.Fprintln(out, def.Transport)
			labelColor.Fprint(out, "Default port: ")
			fmt.Fprintln(out, def.DefaultPort)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the definition as JSON")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export <protocol>",
		Short: "Export a protocol as a JSON Schema document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			doc, err := reg.ExportJSONSchema(args[0])
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, doc, "", "  "); err != nil {
				return fmt.Errorf("failed to format schema: %w", err)
			}
			buf.WriteByte('\n')

			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outFile, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			successColor.Fprintf(cmd.OutOrStdout(), "✓ wrote %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write to a file instead of stdout")
	return cmd
}
