package redact

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/document"
)

// Adjust applies every firing rule to base. Each rule moves both vertical
// bounds by its delta; rules are evaluated against text independently and
// their deltas add up.
func Adjust(base coords.Rect, text string, rules []AdjustmentRule) coords.Rect {
	dy := 0.0
	for _, r := range rules {
		if r.fires(text) {
			dy += r.Delta
		}
	}
	return coords.Rect{X0: base.X0, Y0: base.Y0 + dy, X1: base.X1, Y1: base.Y1 + dy}
}

// RedactRegion blacks out the fixed region of the given page after
// adjusting it to the text it clips. It applies every pending redaction on
// the page and returns the adjusted rectangle and whether it held text.
func RedactRegion(ctx context.Context, doc *document.Document, pageIndex int, spec RegionSpec) (coords.Rect, bool, error) {
	page := doc.Page(pageIndex)
	if page == nil {
		return coords.Rect{}, false, fmt.Errorf("page %d out of range", pageIndex)
	}
	base := spec.Rect.Rect().Normalize()
	clipped, err := page.TextInRect(ctx, base)
	if err != nil {
		return base, false, err
	}
	rect := Adjust(base, strings.TrimSpace(clipped), spec.Rules)

	text, err := page.TextInRect(ctx, rect)
	if err != nil {
		return rect, false, err
	}
	redacted := strings.TrimSpace(text) != "" && page.AddRedaction(rect, string(StepCoordinate))
	if _, err := page.ApplyRedactions(ctx); err != nil {
		return rect, redacted, err
	}
	return rect, redacted, nil
}
