package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/glimte/protoreg/schema"
	"github.com/glimte/protoreg/serialization"
)

func newValidateCommand(a *app) *cobra.Command {
	var normalize bool

	cmd := &cobra.Command{
		Use:   "validate <protocol> <document>",
		Short: "Validate a document against a protocol",
		Long: `Validate a JSON, YAML or TOML document against a registered protocol.
Use "-" to read a JSON document from stdin. Every error is reported; the
command exits non-zero when the document is invalid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			protocol, path := args[0], args[1]
			if _, err := reg.Describe(protocol); err != nil {
				return err
			}

			document, err := readDocument(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var result *schema.ValidationResult
			if normalize {
				var normalized map[string]any
				normalized, result, err = reg.NormalizeFor(protocol, document)
				if err != nil {
					return err
				}
				if result.Valid {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(normalized)
				}
			} else {
				result, err = reg.ValidateFor(protocol, document)
				if err != nil {
					return err
				}
			}

			return printResult(out, path, result)
		},
	}

	cmd.Flags().BoolVarP(&normalize, "normalize", "n", false, "print the document with defaults filled in")
	return cmd
}

func readDocument(stdin io.Reader, path string) (any, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return schema.DecodeJSON(data)
	}
	obj, err := serialization.DecodeFile(serialization.GetGlobalRegistry(), path)
	if err != nil {
		return nil, err
	}
	return obj.Plain(), nil
}

func printResult(out io.Writer, path string, result *schema.ValidationResult) error {
	if result.Valid {
		successColor.Fprintf(out, "✓ %s is valid\n", path)
		return nil
	}

	errorColor.Fprintf(out, "✗ %s has %d errors\n", path, len(result.Errors))
	for _, ve := range result.Errors {
		field := ve.Field()
		if field == "" {
			field = "(root)"
		}
		fmt.Fprintf(out, "  %s: %s [%s]\n", field, ve.Message, ve.Kind)
	}
	return errInvalidDocument
}
