package redact

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfredact/document"
)

// Classify scans pages in order and returns Individual as soon as a page's
// text contains phrase, Corporate when none does. Accents are ignored, case
// is not.
func Classify(ctx context.Context, doc *document.Document, phrase string) (Classification, error) {
	needle := foldAccents(phrase)
	if needle == "" {
		return Corporate, nil
	}
	for _, p := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return Corporate, err
		}
		text, err := p.Text(ctx)
		if err != nil {
			return Corporate, fmt.Errorf("page %d: %w", p.Index, err)
		}
		if strings.Contains(foldAccents(text), needle) {
			return Individual, nil
		}
	}
	return Corporate, nil
}

// foldAccents strips combining marks, so "representación" reads as
// "representacion".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
