// Package batch redacts many PDFs of one document type and packs the results
// into a single zip archive.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/redact"
)

// ArchiveName is the archive the CLI writes when no name is given.
const ArchiveName = "procesados.zip"

// EntrySuffix is appended to each input's base name inside the archive.
const EntrySuffix = "_testado"

var ErrNoInputs = errors.New("batch: no PDF inputs")

type Options struct {
	// Workers bounds concurrent documents; values below 1 mean 1.
	Workers int
	Logger  observability.Logger
}

// Failure records an input that could not be redacted.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a batch run.
type Report struct {
	RunID string
	// Processed maps archive entries back to their inputs, in input order.
	Processed []Entry
	Failed    []Failure
	Elapsed   time.Duration
}

type Entry struct {
	Path string
	Name string
}

// Collect expands dirs into their *.pdf files (not recursive) and keeps
// plain file arguments as given. Directory listings are sorted by name.
func Collect(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(arg, n))
		}
	}
	return out, nil
}

// EntryName is the archive name for input path.
func EntryName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + EntrySuffix + ".pdf"
}

type outcome struct {
	data []byte
	err  error
}

// Run redacts every input with p and writes the successful outputs to w as
// a zip archive. A failed document is logged and left out; Run itself only
// fails when the archive cannot be written or ctx is cancelled.
func Run(ctx context.Context, p *redact.Pipeline, t redact.DocumentType, inputs []string, w io.Writer, opts Options) (*Report, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	report := &Report{RunID: uuid.NewString()}
	log := observability.OrNop(opts.Logger).With(
		observability.String(observability.KeyBatchID, report.RunID),
		observability.Stringer(observability.KeyDocType, t),
	)
	start := time.Now()

	results := make([]outcome, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err == nil {
				data, err = p.Process(gctx, t, data)
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			results[i] = outcome{data: data, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zw := zip.NewWriter(w)
	used := make(map[string]int)
	for i, path := range inputs {
		r := results[i]
		if r.err != nil {
			log.Warn("document skipped", observability.String(observability.KeyDocument, path), observability.Error("error", r.err))
			report.Failed = append(report.Failed, Failure{Path: path, Err: r.err})
			continue
		}
		name := uniqueName(used, EntryName(path))
		f, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := f.Write(r.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		report.Processed = append(report.Processed, Entry{Path: path, Name: name})
		log.Debug("document archived", observability.String(observability.KeyDocument, path), observability.String("entry", name))
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	report.Elapsed = time.Since(start)
	log.Info("batch finished",
		observability.Int("processed", len(report.Processed)),
		observability.Int("failed", len(report.Failed)),
		observability.Duration("elapsed", report.Elapsed))
	return report, nil
}

// uniqueName suffixes repeated entry names with a counter.
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
