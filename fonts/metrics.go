package fonts

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// metrics holds advance widths (1/1000 em) of a standard 14 font for the
// printable ASCII range, plus its vertical extent.
type metrics struct {
	ascii    [95]float64
	extra    map[rune]float64
	fallback float64
	ascent   float64
	descent  float64
}

var helveticaExtra = map[rune]float64{
	'¡': 333, '¿': 611, '«': 556, '»': 556, '°': 400, '·': 278, 'ª': 370, 'º': 365,
	'‘': 222, '’': 222, '“': 333, '”': 333, '–': 556, '—': 1000, '•': 350, '…': 1000,
	'€': 556, '§': 556, '©': 737, '®': 737, '\u00a0': 278, 'ß': 611, '×': 584,
}

var (
	helveticaMetrics = &metrics{ascii: [95]float64{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	}, extra: helveticaExtra, fallback: 556, ascent: 718, descent: -207}

	helveticaBoldMetrics = &metrics{ascii: [95]float64{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
	975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
	333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	}, extra: helveticaExtra, fallback: 556, ascent: 718, descent: -207}

	timesMetrics = &metrics{ascii: [95]float64{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
	}, fallback: 500, ascent: 683, descent: -217}

	courierMetrics = &metrics{fallback: 600, ascent: 629, descent: -157}
)

// standardMetrics picks the built-in metrics for a BaseFont name, or nil
// when the font is not one of the standard 14 families. Subset prefixes
// ("ABCDEF+") and style suffixes are tolerated.
func standardMetrics(baseFont string) *metrics {
	name := baseFont
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:]
	}
	lower := strings.ToLower(name)
	bold := strings.Contains(lower, "bold")
	switch {
	case strings.HasPrefix(lower, "helvetica"), strings.HasPrefix(lower, "arial"):
		if bold {
			return helveticaBoldMetrics
		}
		return helveticaMetrics
	case strings.HasPrefix(lower, "times"):
		return timesMetrics
	case strings.HasPrefix(lower, "courier"):
		return courierMetrics
	}
	return nil
}

// width returns the advance of r. Accented letters take the width of their
// base letter.
func (m *metrics) width(r rune) float64 {
	if m.ascii == ([95]float64{}) {
		return m.fallback
	}
	if r >= 32 && r < 127 {
		return m.ascii[r-32]
	}
	if w, ok := m.extra[r]; ok {
		return w
	}
	if base := []rune(norm.NFD.String(string(r))); len(base) > 1 && base[0] >= 32 && base[0] < 127 {
		return m.ascii[base[0]-32]
	}
	return m.fallback
}
