package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfredact/observability"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		typeName string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "process <input.pdf>",
		Short: "Redact a single PDF",
		Long: `Redact one PDF as the given document type.

Without --output the result is written next to the input, named after it
with the type's suffix (for example oficio_testado.pdf).

	Examples:
	  testado process --type residuos oficio.pdf
	  testado process --type impacto -o limpio.pdf resolutivo.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, tc, err := a.docType(typeName)
			if err != nil {
				return err
			}
			input := args[0]
			data, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			res, err := a.pipeline().Run(cmd.Context(), t, data)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			if output == "" {
				output = outputPath(input, tc.OutputSuffix)
			}
			if err := os.WriteFile(output, res.Output, 0o644); err != nil {
				return err
			}
			a.log.Info("written",
				observability.String(observability.KeyDocument, output),
				observability.Stringer("classification", res.Classification))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "document type: residuos, impacto or atmosfera (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

// outputPath places the result beside input with suffix before the extension.
func outputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ".pdf"
}
