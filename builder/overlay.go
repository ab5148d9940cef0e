// Package builder generates the content streams and form XObjects that
// are layered onto pages: watermark overlays and painted rectangles.
package builder

import (
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/writer"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Canvas is the letter-size space overlay stamps are laid out in, origin
// at the bottom left.
var Canvas = coords.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

// MarkerKey is set on every overlay form; its value names the overlay kind.
const MarkerKey = "RedactOverlay"

const fontResource = "Helv"

var (
	Black = []float64{0, 0, 0}
	Red   = []float64{1, 0, 0}
)

// Stamp is a filled rectangle with lines of text, in canvas space. The
// first baseline sits 5 points in from the left edge and 15 below the top.
type Stamp struct {
	Rect      coords.Rect
	Fill      []float64
	TextColor []float64
	FontSize  float64
	// LineGap is the baseline distance; zero means 1.2 times the font size.
	LineGap float64
	Lines   []string
}

func (s Stamp) Leading() float64 {
	if s.LineGap > 0 {
		return s.LineGap
	}
	return 1.2 * s.fontSize()
}

func (s Stamp) fontSize() float64 {
	if s.FontSize <= 0 {
		return 9
	}
	return s.FontSize
}

// StampContent draws stamps in canvas space using the Helvetica resource
// that NewOverlayForm declares.
func StampContent(stamps ...Stamp) []byte {
	var b []byte
	for _, s := range stamps {
		r := s.Rect.Normalize()
		fill := s.Fill
		if fill == nil {
			fill = Black
		}
		b = append(b, "q\n"...)
		b = writeColor(b, fill, false)
		b = appendNumbers(b, r.X0, r.Y0, r.Width(), r.Height())
		b = append(b, "re f\n"...)
		if len(s.Lines) > 0 {
			text := s.TextColor
			if text == nil {
				text = Red
			}
			b = writeColor(b, text, false)
			b = append(b, "BT\n"...)
			b = writer.AppendName(b, fontResource)
			b = append(b, ' ')
			b = appendNumbers(b, s.fontSize())
			b = append(b, "Tf\n"...)
			b = appendNumbers(b, s.Leading())
			b = append(b, "TL\n"...)
			b = appendNumbers(b, r.X0+5, r.Y1-15)
			b = append(b, "Td\n"...)
			for i, line := range s.Lines {
				if i > 0 {
					b = append(b, "T*\n"...)
				}
				b = writer.AppendLiteralString(b, encodeWinAnsi(line))
				b = append(b, " Tj\n"...)
			}
			b = append(b, "ET\n"...)
		}
		b = append(b, "Q\n"...)
	}
	return b
}

// NewOverlayForm returns a form XObject spanning Canvas that draws stamps
// and carries kind under MarkerKey.
func NewOverlayForm(kind string, stamps ...Stamp) *raw.StreamObj {
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	font.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	fontsDict := raw.Dict()
	fontsDict.Set(fontResource, font)
	res := raw.Dict()
	res.Set("Font", fontsDict)

	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Form"))
	d.Set("BBox", raw.NumberArray(Canvas.X0, Canvas.Y0, Canvas.X1, Canvas.Y1))
	d.Set("Resources", res)
	d.Set(MarkerKey, raw.NameLiteral(kind))
	return raw.NewStream(d, StampContent(stamps...))
}

// OverlayKind returns the MarkerKey value of a form made by NewOverlayForm.
func OverlayKind(form *raw.StreamObj) (string, bool) {
	if form == nil || form.Dict == nil {
		return "", false
	}
	v, ok := form.Dict.Get(MarkerKey)
	if !ok {
		return "", false
	}
	return raw.AsName(v)
}

// Placement maps Canvas onto page, a rectangle in default user space,
// scaling uniformly to fit and centering.
func Placement(page coords.Rect) coords.Matrix {
	page = page.Normalize()
	s := min(page.Width()/Canvas.Width(), page.Height()/Canvas.Height())
	tx := page.X0 + (page.Width()-Canvas.Width()*s)/2
	ty := page.Y0 + (page.Height()-Canvas.Height()*s)/2
	return coords.Matrix{s, 0, 0, s, tx, ty}
}

// DrawForm returns content that paints the named form under m.
func DrawForm(name string, m coords.Matrix) []byte {
	b := []byte("q\n")
	b = appendNumbers(b, m[:]...)
	b = append(b, "cm\n"...)
	b = writer.AppendName(b, name)
	return append(b, " Do\nQ\n"...)
}

// encodeWinAnsi maps s to WinAnsi codes; runes outside it become '?'.
func encodeWinAnsi(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
