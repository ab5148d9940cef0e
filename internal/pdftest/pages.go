package pdftest

import (
	"fmt"
	"strings"
)

// Page describes one page of a generated document. Zero sizes default to
// US Letter. Every page carries /F1 (Helvetica, WinAnsiEncoding) and, when
// Image is set, a 1x1 gray image named /Im0. Form, when set, is the
// content of a form XObject named /Fm0 with its own /F1; pages with the same
// Form share one form object. Extra is inserted verbatim into the page
// dictionary.
type Page struct {
	Width, Height float64
	Content       string
	Image         bool
	Form          string
	Extra         string
}

// NewDocument lays out a catalog and page tree and returns the builder
// with the catalog's object number.
func NewDocument(pages ...Page) (*Builder, int) {
	b := New()
	catalog := b.Reserve()
	tree := b.Reserve()
	font := b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	image := b.Add(Stream("<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", []byte{0x80}))

	forms := make(map[string]int)
	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		w, h := p.Width, p.Height
		if w == 0 {
			w = 612
		}
		if h == 0 {
			h = 792
		}
		content := b.Add(Stream("", []byte(p.Content)))
		var entries []string
		if p.Image {
			entries = append(entries, fmt.Sprintf("/Im0 %d 0 R", image))
		}
		if p.Form != "" {
			form, ok := forms[p.Form]
			if !ok {
				form = b.Add(Stream(fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 %g %g] /Resources << /Font << /F1 %d 0 R >> >> >>", w, h, font), []byte(p.Form)))
				forms[p.Form] = form
			}
			entries = append(entries, fmt.Sprintf("/Fm0 %d 0 R", form))
		}
		xobj := ""
		if len(entries) > 0 {
			xobj = fmt.Sprintf(" /XObject << %s >>", strings.Join(entries, " "))
		}
		page := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 %d 0 R >>%s >> /Contents %d 0 R%s >>",
			tree, w, h, font, xobj, content, p.Extra))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	b.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree))
	return b, catalog
}

// Document returns the serialized file for pages.
func Document(pages ...Page) []byte {
	b, root := NewDocument(pages...)
	return b.Bytes(root, "")
}

// TextLine returns content that shows s with /F1 at size 12, baseline (x, y)
// in PDF user space.
func TextLine(x, y float64, s string) string {
	return fmt.Sprintf("BT /F1 12 Tf %g %g Td (%s) Tj ET\n", x, y, Escape(s))
}

// Escape encodes s as the body of a literal string in WinAnsi.
func Escape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < 0x80:
			sb.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&sb, "\\%03o", r)
		default:
			sb.WriteByte('?')
		}
	}
	return sb.String()
}
