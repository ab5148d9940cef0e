package redact

import (
	"context"

	"github.com/wudi/pdfredact/document"
)

// Overlay kinds. A page carries at most one overlay of each.
const (
	KindPrimary   = "primary"
	KindSecondary = "secondary"
	KindQR        = "qr"
)

// StampPrimary layers the classification's legal citation over page 0. It
// reports false when the page already carries it.
func StampPrimary(ctx context.Context, doc *document.Document, spec WatermarkSpec) (bool, error) {
	return doc.Page(0).AddOverlay(ctx, KindPrimary, spec.Stamp())
}

// StampSecondary marks a page that had redacted matches. Stamping a page
// twice leaves a single overlay.
func StampSecondary(ctx context.Context, page *document.Page, spec WatermarkSpec) (bool, error) {
	return page.AddOverlay(ctx, KindSecondary, spec.Stamp())
}
