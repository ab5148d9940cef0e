// Package document is the page-level view of a PDF used by the redaction
// engine: text and image geometry in top-left page space, pending
// redactions, overlays, and full or incremental saving.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/parser"
	"github.com/wudi/pdfredact/recovery"
	"github.com/wudi/pdfredact/writer"
)

var (
	// ErrEncrypted is returned by Open for files with an /Encrypt dictionary.
	ErrEncrypted = parser.ErrEncrypted
	// ErrNotPDF is returned by Open when the input has no PDF header.
	ErrNotPDF = parser.ErrNotPDF
	// ErrNoPages is returned by Open when the page tree is empty.
	ErrNoPages = errors.New("document has no pages")
)

type Options struct {
	// Recovery decides how parse errors are handled; nil repairs what it
	// can and logs the rest.
	Recovery recovery.Strategy
	// Limits bounds stream decoding; the zero value uses
	// filters.DefaultLimits.
	Limits filters.Limits
	// Compress flate-encodes unfiltered streams on save.
	Compress bool
	Logger   observability.Logger
}

type Document struct {
	raw     *raw.Document
	pages   []*Page
	opts    Options
	log     observability.Logger
	filters *filters.Pipeline
	fonts   *fonts.Cache
}

// Open parses data. The returned document owns data; callers must not
// modify it afterwards.
func Open(ctx context.Context, data []byte, opts Options) (*Document, error) {
	opts.Logger = observability.OrNop(opts.Logger)
	if opts.Recovery == nil {
		opts.Recovery = recovery.NewLenientStrategy(opts.Logger)
	}
	if opts.Limits == (filters.Limits{}) {
		opts.Limits = filters.DefaultLimits
	}
	rd, err := parser.NewDocumentParser(parser.Config{
		Recovery: opts.Recovery,
		Limits:   opts.Limits,
		Logger:   opts.Logger,
	}).Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	d := &Document{
		raw:     rd,
		opts:    opts,
		log:     opts.Logger,
		filters: filters.NewDefaultPipeline(opts.Limits),
	}
	d.fonts = fonts.NewCache(rd, d.decodeStream)
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	if len(d.pages) == 0 {
		return nil, ErrNoPages
	}
	return d, nil
}

func (d *Document) decodeStream(st *raw.StreamObj) ([]byte, error) {
	return d.filters.DecodeStream(context.Background(), st, d.raw.Resolve)
}

// Options returns the options the document was opened with.
func (d *Document) Options() Options { return d.opts }

// Raw exposes the underlying object table.
func (d *Document) Raw() *raw.Document { return d.raw }

func (d *Document) PageCount() int { return len(d.pages) }

// Page returns page i, or nil when i is out of range.
func (d *Document) Page(i int) *Page {
	if i < 0 || i >= len(d.pages) {
		return nil
	}
	return d.pages[i]
}

func (d *Document) Pages() []*Page { return d.pages }

// Save rewrites the whole file. Object and xref streams are expanded into
// plain objects and a classic cross-reference table.
func (d *Document) Save(ctx context.Context) ([]byte, error) {
	if err := d.flush(ctx); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := writer.New(writer.Config{Compress: d.opts.Compress, Logger: d.log})
	if err := w.Write(ctx, d.raw, &buf); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveIncremental appends the modified objects to the original bytes.
func (d *Document) SaveIncremental(ctx context.Context) ([]byte, error) {
	if err := d.flush(ctx); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := writer.New(writer.Config{Compress: d.opts.Compress, Logger: d.log})
	if err := w.WriteIncremental(ctx, d.raw, &buf); err != nil {
		return nil, fmt.Errorf("incremental save: %w", err)
	}
	return buf.Bytes(), nil
}

// flush writes edited page content back into the object table.
func (d *Document) flush(ctx context.Context) error {
	for _, p := range d.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.flush(); err != nil {
			return fmt.Errorf("page %d: %w", p.Index, err)
		}
	}
	return nil
}
