package document

import (
	"context"
	"fmt"

	"github.com/wudi/pdfredact/builder"
	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/extractor"
	"github.com/wudi/pdfredact/ir/raw"
)

// Page is one page of a Document. Coordinates are in page space: origin
// at the top-left corner of the visible box, y growing downward, in points.
type Page struct {
	Index int

	doc       *Document
	ref       raw.ObjectRef
	dict      *raw.DictObj
	resources *raw.DictObj
	ownRes    bool
	// box is the visible area (CropBox within MediaBox) in user space.
	box coords.Rect

	ops     []contentstream.Operation
	loaded  bool
	dirty   bool
	wrapped bool
	trace   *contentstream.Trace
	layout  *extractor.Layout
	pending []Region
}

// ImageRef is an image XObject placement. Rect is the image's bounding box
// in page space.
type ImageRef struct {
	Name string
	Rect coords.Rect
}

func (p *Page) Width() float64  { return p.box.Width() }
func (p *Page) Height() float64 { return p.box.Height() }

// Rect is the page rectangle in page space.
func (p *Page) Rect() coords.Rect { return coords.Rect{X1: p.Width(), Y1: p.Height()} }

// toPage maps default user space to page space.
func (p *Page) toPage() coords.Matrix {
	return coords.Matrix{1, 0, 0, -1, -p.box.X0, p.box.Y1}
}

// toUser maps page space back to default user space.
func (p *Page) toUser() coords.Matrix {
	return coords.Matrix{1, 0, 0, -1, p.box.X0, p.box.Y1}
}

func (p *Page) load(ctx context.Context) error {
	if p.loaded {
		return nil
	}
	var data []byte
	for _, st := range p.contentStreams() {
		chunk, err := p.doc.filters.DecodeStream(ctx, st, p.doc.raw.Resolve)
		if err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
		data = append(data, chunk...)
		data = append(data, '\n')
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	p.ops = ops
	p.loaded = true
	return nil
}

func (p *Page) contentStreams() []*raw.StreamObj {
	doc := p.doc.raw
	entry := p.dict.KV["Contents"]
	if arr, ok := doc.ResolveArray(entry); ok {
		out := make([]*raw.StreamObj, 0, len(arr.Items))
		for _, item := range arr.Items {
			if st, ok := doc.ResolveStream(item); ok {
				out = append(out, st)
			}
		}
		return out
	}
	if st, ok := doc.ResolveStream(entry); ok {
		return []*raw.StreamObj{st}
	}
	return nil
}

// analyze traces the current content once per edit.
func (p *Page) analyze(ctx context.Context) error {
	if p.trace != nil {
		return nil
	}
	if err := p.load(ctx); err != nil {
		return err
	}
	d := p.doc
	tr := contentstream.NewTracer(d.raw, d.fonts, d.decodeStream)
	tr.SkipText = isOverlay
	trace, err := tr.Trace(ctx, p.ops, p.resources, p.toPage())
	if err != nil {
		return fmt.Errorf("trace content: %w", err)
	}
	p.trace = trace
	p.layout = extractor.New(trace.Glyphs)
	return nil
}

// isOverlay reports forms added by AddOverlay; their text is drawn by us
// and is neither extracted nor redacted.
func isOverlay(st *raw.StreamObj) bool {
	_, ok := builder.OverlayKind(st)
	return ok
}

func (p *Page) invalidate() {
	p.trace = nil
	p.layout = nil
}

// Text returns the page text, one line per output line.
func (p *Page) Text(ctx context.Context) (string, error) {
	if err := p.analyze(ctx); err != nil {
		return "", err
	}
	return p.layout.Text(), nil
}

// Lines returns the laid out text lines with their boxes.
func (p *Page) Lines(ctx context.Context) ([]extractor.Line, error) {
	if err := p.analyze(ctx); err != nil {
		return nil, err
	}
	return p.layout.Lines, nil
}

// TextInRect returns the text whose glyph centers fall inside clip.
func (p *Page) TextInRect(ctx context.Context, clip coords.Rect) (string, error) {
	if err := p.analyze(ctx); err != nil {
		return "", err
	}
	return p.layout.TextInRect(clip), nil
}

// SearchFor returns one rectangle per line of every occurrence of needle,
// ignoring case and whitespace differences.
func (p *Page) SearchFor(ctx context.Context, needle string) ([]coords.Rect, error) {
	if err := p.analyze(ctx); err != nil {
		return nil, err
	}
	return p.layout.SearchFor(needle), nil
}

// Images lists image XObject placements, including those drawn through
// form XObjects. Inline images are not reported.
func (p *Page) Images(ctx context.Context) ([]ImageRef, error) {
	if err := p.analyze(ctx); err != nil {
		return nil, err
	}
	var out []ImageRef
	for _, im := range p.trace.Images {
		if im.Inline {
			continue
		}
		out = append(out, ImageRef{Name: im.Name, Rect: im.Box.Normalize()})
	}
	return out, nil
}
