package builder

import (
	"strings"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/writer"
)

// Paint selects how PaintRects draws. A nil color skips that half.
type Paint struct {
	Fill      []float64
	Stroke    []float64
	LineWidth float64
}

// PaintRects returns content drawing rects in user space, wrapped in q/Q.
func PaintRects(rects []coords.Rect, p Paint) []byte {
	if len(rects) == 0 || (p.Fill == nil && p.Stroke == nil) {
		return nil
	}
	b := []byte("q\n")
	if p.Fill != nil {
		b = writeColor(b, p.Fill, false)
	}
	if p.Stroke != nil {
		b = writeColor(b, p.Stroke, true)
		if p.LineWidth > 0 {
			b = appendNumbers(b, p.LineWidth)
			b = append(b, "w\n"...)
		}
	}
	op := "f"
	switch {
	case p.Fill != nil && p.Stroke != nil:
		op = "B"
	case p.Stroke != nil:
		op = "S"
	}
	for _, r := range rects {
		r = r.Normalize()
		b = appendNumbers(b, r.X0, r.Y0, r.Width(), r.Height())
		b = append(b, "re "...)
		b = append(b, op...)
		b = append(b, '\n')
	}
	return append(b, "Q\n"...)
}

// writeColor sets a gray, RGB or CMYK color for filling or stroking.
func writeColor(b []byte, color []float64, stroke bool) []byte {
	var op string
	switch len(color) {
	case 1:
		op = "g"
	case 3:
		op = "rg"
	case 4:
		op = "k"
	default:
		return b
	}
	if stroke {
		op = strings.ToUpper(op)
	}
	b = appendNumbers(b, color...)
	b = append(b, op...)
	return append(b, '\n')
}

// appendNumbers writes each value followed by a space.
func appendNumbers(b []byte, vals ...float64) []byte {
	for _, v := range vals {
		b = writer.AppendNumber(b, v)
		b = append(b, ' ')
	}
	return b
}
