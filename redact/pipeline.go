package redact

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/document"
	"github.com/wudi/pdfredact/observability"
)

// Pipeline runs the catalog's steps for a document type over one PDF.
// A Pipeline holds no per-document state and may be shared.
type Pipeline struct {
	catalog *Catalog
	opts    document.Options
	log     observability.Logger
}

// NewPipeline uses the embedded catalog when catalog is nil.
func NewPipeline(catalog *Catalog, opts document.Options) *Pipeline {
	if catalog == nil {
		catalog = Default()
	}
	opts.Logger = observability.OrNop(opts.Logger)
	return &Pipeline{catalog: catalog, opts: opts, log: opts.Logger}
}

// Result describes a processed document.
type Result struct {
	Output         []byte
	Classification Classification
	// Region is the coordinate pass rectangle, if one ran.
	Region         coords.Rect
	RegionRedacted bool
	Reports        []MatchReport
	// Secondary lists the pages that received the secondary watermark.
	Secondary []int
	// Stripped holds the injected image boxes painted over.
	Stripped []coords.Rect
}

// Process redacts input as a document of type t and returns the new file.
// Page count and order are preserved.
func (p *Pipeline) Process(ctx context.Context, t DocumentType, input []byte) ([]byte, error) {
	res, err := p.Run(ctx, t, input)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Run is Process with the details of what was done.
func (p *Pipeline) Run(ctx context.Context, t DocumentType, input []byte) (*Result, error) {
	tc, err := p.catalog.Lookup(t)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := p.log.With(observability.String(observability.KeyDocType, tc.ID))

	doc, err := document.Open(ctx, input, p.opts)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	class, err := Classify(ctx, doc, tc.Phrase)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	log.Debug("classified", observability.Stringer("classification", class), observability.Int("pages", doc.PageCount()))

	run := &run{doc: doc, tc: tc, variant: tc.Variant(class), log: log, res: &Result{Classification: class}}
	for _, step := range tc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := run.step(ctx, step); err != nil {
			return nil, fmt.Errorf("%s: %w", step, err)
		}
	}

	res := run.res
	if tc.Has(StepStripImage) && tc.InjectedImage != nil {
		h, err := FinalizeRedaction(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("finalize: %w", err)
		}
		if res.Output, err = AppendOverlay(ctx, h, *tc.InjectedImage); err != nil {
			return nil, fmt.Errorf("append overlay: %w", err)
		}
	} else if res.Output, err = doc.Save(ctx); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	log.Info("document redacted",
		observability.Stringer("classification", class),
		observability.Int("regions", regionCount(res)),
		observability.Int("secondary", len(res.Secondary)),
		observability.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func regionCount(res *Result) int {
	n := 0
	if res.RegionRedacted {
		n++
	}
	for _, r := range res.Reports {
		n += r.Regions()
	}
	return n + len(res.Stripped)
}

// run is the state of one Run.
type run struct {
	doc     *document.Document
	tc      *TypeCatalog
	variant *Variant
	log     observability.Logger
	res     *Result
}

func (r *run) step(ctx context.Context, step Step) error {
	log := r.log.With(observability.String(observability.KeyStep, string(step)))
	switch step {
	case StepCoordinate:
		if r.variant.Region == nil {
			return nil
		}
		rect, ok, err := RedactRegion(ctx, r.doc, 0, *r.variant.Region)
		if err != nil {
			return err
		}
		r.res.Region, r.res.RegionRedacted = rect, ok
		log.Debug("region checked", observability.Int(observability.KeyPage, 0), observability.Bool("redacted", ok))

	case StepRegex:
		seen := NewSeen(r.tc.Search.Dedup)
		for _, page := range r.doc.Pages() {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := FindAndRedact(ctx, page, r.variant, r.tc.Search, seen)
			if err != nil {
				return fmt.Errorf("page %d: %w", page.Index, err)
			}
			for _, m := range report.Matches {
				log.Debug("pattern matched",
					observability.Int(observability.KeyPage, page.Index),
					observability.String(observability.KeyPattern, m.Pattern),
					observability.Int("rects", len(m.Rects)),
				)
			}
			r.res.Reports = append(r.res.Reports, report)
		}

	case StepPrimary:
		if _, err := StampPrimary(ctx, r.doc, r.variant.Primary); err != nil {
			return err
		}

	case StepSecondary:
		for _, report := range r.res.Reports {
			if !report.Fired {
				continue
			}
			added, err := StampSecondary(ctx, r.doc.Page(report.Page), r.tc.Secondary)
			if err != nil {
				return fmt.Errorf("page %d: %w", report.Page, err)
			}
			if added {
				r.res.Secondary = append(r.res.Secondary, report.Page)
			}
		}

	case StepStripImage:
		stripped, err := StripInjectedImage(ctx, r.doc)
		if err != nil {
			return err
		}
		r.res.Stripped = stripped
		log.Debug("injected images painted over", observability.Int("images", len(stripped)))

	default:
		return fmt.Errorf("unknown step %q", step)
	}
	return nil
}
