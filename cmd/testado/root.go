package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfredact/document"
	"github.com/wudi/pdfredact/internal/config"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/redact"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath  string
	catalogPath string
	compress    bool

	cfg     config.Config
	log     observability.Logger
	catalog *redact.Catalog
}

func newRootCmd() *cobra.Command {
	a := &app{}
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "testado",
		Short: "Redact personal data from environmental permit PDFs",
		Long: `testado removes personal data from SEMARNAT permit documents.

Each document type (residuos, impacto, atmosfera) has its own catalog of
patterns, fixed regions and watermark texts. Text under a redaction is
deleted from the content stream, not just covered.

Settings come from --config, then TESTADO_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (YAML or TOML)")
	pf.StringVar(&a.catalogPath, "catalog", "", "pattern catalog to use instead of the built-in one")
	pf.BoolVar(&a.compress, "compress", false, "flate-compress unfiltered streams in the output")
	pf.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
	pf.String("log-format", def.LogFormat, "log format: text, json or logfmt")
	pf.Int("workers", def.Workers, "documents processed at once in batch mode")
	pf.Int64("max-decompressed-size", def.MaxDecompressedSize, "limit for each decoded stream, in bytes")

	cmd.AddCommand(newProcessCmd(a), newBatchCmd(a), newTypesCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: a.configPath, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = observability.NewCharmLogger(observability.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
		Prefix: "testado",
	})
	if a.catalogPath == "" {
		a.catalog = redact.Default()
		return nil
	}
	data, err := os.ReadFile(a.catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if a.catalog, err = redact.Load(data); err != nil {
		return fmt.Errorf("catalog %s: %w", a.catalogPath, err)
	}
	return nil
}

func (a *app) pipeline() *redact.Pipeline {
	return redact.NewPipeline(a.catalog, document.Options{
		Limits:   a.cfg.Limits(),
		Compress: a.compress,
		Logger:   a.log,
	})
}

// docType resolves the --type flag against the active catalog.
func (a *app) docType(name string) (redact.DocumentType, *redact.TypeCatalog, error) {
	if name == "" {
		return 0, nil, fmt.Errorf("--type is required")
	}
	t, err := redact.ParseDocumentType(name)
	if err != nil {
		return 0, nil, err
	}
	tc, err := a.catalog.Lookup(t)
	if err != nil {
		return 0, nil, err
	}
	return t, tc, nil
}
