package redact

import (
	"context"
	"fmt"
	"sort"

	"github.com/wudi/pdfredact/builder"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/document"
)

var injectedPaint = builder.Paint{Fill: builder.Black, Stroke: builder.Black, LineWidth: 2}

// StripInjectedImage paints over the images placed only on the last page.
// Images are identified by their bounding box rounded to whole points; a
// box seen on any earlier page is left alone. It returns the painted boxes.
func StripInjectedImage(ctx context.Context, doc *document.Document) ([]coords.Rect, error) {
	pages := doc.Pages()
	last := pages[len(pages)-1]

	earlier := make(map[coords.Rect]bool)
	for _, p := range pages[:len(pages)-1] {
		images, err := p.Images(ctx)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index, err)
		}
		for _, im := range images {
			earlier[im.Rect.Round()] = true
		}
	}

	images, err := last.Images(ctx)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", last.Index, err)
	}
	unique := make(map[coords.Rect]bool)
	var strip []coords.Rect
	for _, im := range images {
		r := im.Rect.Round()
		if earlier[r] || unique[r] {
			continue
		}
		unique[r] = true
		strip = append(strip, r)
	}
	if len(strip) == 0 {
		return nil, nil
	}
	sort.Slice(strip, func(i, j int) bool {
		if strip[i].Y0 != strip[j].Y0 {
			return strip[i].Y0 < strip[j].Y0
		}
		return strip[i].X0 < strip[j].X0
	})
	if err := last.DrawRects(ctx, strip, injectedPaint); err != nil {
		return nil, err
	}
	return strip, nil
}

// Handle is a finalized document: its redactions are committed in a full
// save that later overlays only append to.
type Handle struct {
	data []byte
	opts document.Options
}

func (h Handle) Bytes() []byte { return h.data }

// FinalizeRedaction writes doc out in full.
func FinalizeRedaction(ctx context.Context, doc *document.Document) (Handle, error) {
	data, err := doc.Save(ctx)
	if err != nil {
		return Handle{}, err
	}
	return Handle{data: data, opts: doc.Options()}, nil
}

// AppendOverlay stamps spec on the last page of a finalized document and
// returns the file with the change appended as an incremental update.
func AppendOverlay(ctx context.Context, h Handle, spec WatermarkSpec) ([]byte, error) {
	doc, err := document.Open(ctx, h.data, h.opts)
	if err != nil {
		return nil, fmt.Errorf("reopen: %w", err)
	}
	last := doc.Page(doc.PageCount() - 1)
	if _, err := last.AddOverlay(ctx, KindQR, spec.Stamp()); err != nil {
		return nil, err
	}
	return doc.SaveIncremental(ctx)
}
