package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfredact/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		typeName string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir|file>...",
		Short: "Redact many PDFs into one zip archive",
		Long: `Redact every PDF given, or found directly inside the given directories,
and write the results to a zip archive. Documents that fail are reported and
left out of the archive.

	Examples:
	  testado batch --type residuos ./entrada
	  testado batch --type atmosfera --out lote.zip a.pdf b.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := a.docType(typeName)
			if err != nil {
				return err
			}
			inputs, err := batch.Collect(args)
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			report, err := batch.Run(cmd.Context(), a.pipeline(), t, inputs, f, batch.Options{
				Workers: a.cfg.Workers,
				Logger:  a.log,
			})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}
			out := cmd.OutOrStdout()
			for _, fail := range report.Failed {
				fmt.Fprintf(out, "failed %s: %v\n", fail.Path, fail.Err)
			}
			fmt.Fprintf(out, "%s: %d processed, %d failed\n", output, len(report.Processed), len(report.Failed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "document type: residuos, impacto or atmosfera (required)")
	cmd.Flags().StringVarP(&output, "out", "o", batch.ArchiveName, "zip archive to write")
	return cmd
}
