package extractor

import (
	"strings"
	"testing"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"pgregory.net/rapid"
)

// place appends one 6x10 glyph per rune of s starting at (x, y) and
// returns the x after the last glyph.
func place(glyphs []contentstream.Glyph, s string, x, y float64) ([]contentstream.Glyph, float64) {
	for _, r := range s {
		glyphs = append(glyphs, contentstream.Glyph{
			Text: string(r),
			Box:  coords.Rect{X0: x, Y0: y, X1: x + 6, Y1: y + 10},
		})
		x += 6
	}
	return glyphs, x
}

func sample() *Layout {
	var g []contentstream.Glyph
	g, _ = place(g, "Hola", 10, 100)
	g, _ = place(g, "mundo", 40, 100)
	g, _ = place(g, "Segunda", 10, 114)
	return New(g)
}

func TestLayoutText(t *testing.T) {
	l := sample()
	if got := l.Text(); got != "Hola mundo\nSegunda\n" {
		t.Fatalf("text = %q", got)
	}
	if len(l.Lines) != 2 || l.Lines[0].Chars[4].Glyph != -1 {
		t.Fatalf("lines = %+v", l.Lines)
	}
	if l.Lines[0].Box != (coords.Rect{X0: 10, Y0: 100, X1: 70, Y1: 110}) {
		t.Fatalf("line box = %+v", l.Lines[0].Box)
	}
}

func TestLayoutBackwardJumpStartsLine(t *testing.T) {
	var g []contentstream.Glyph
	g, _ = place(g, "right", 300, 100)
	g, _ = place(g, "left", 10, 100)
	if got := New(g).Text(); got != "right\nleft\n" {
		t.Fatalf("text = %q", got)
	}
}

func TestTextInRect(t *testing.T) {
	l := sample()
	if got := l.TextInRect(coords.Rect{X0: 0, Y0: 95, X1: 36, Y1: 112}); got != "Hola" {
		t.Fatalf("clip = %q", got)
	}
	if got := l.TextInRect(coords.Rect{X0: 0, Y0: 95, X1: 100, Y1: 130}); got != "Hola mundo\nSegunda" {
		t.Fatalf("clip = %q", got)
	}
	if got := l.TextInRect(coords.Rect{X0: 500, Y0: 500, X1: 600, Y1: 600}); got != "" {
		t.Fatalf("empty clip = %q", got)
	}
}

func TestSearchFor(t *testing.T) {
	l := sample()
	got := l.SearchFor("MUNDO \n segunda")
	want := []coords.Rect{
		{X0: 40, Y0: 100, X1: 70, Y1: 110},
		{X0: 10, Y0: 114, X1: 52, Y1: 124},
	}
	if len(got) != len(want) {
		t.Fatalf("rects = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rect %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got := l.SearchFor("o"); len(got) != 2 {
		t.Fatalf("'o' hits = %+v", got)
	}
	if got := l.SearchFor("xyz"); got != nil {
		t.Fatalf("unexpected hit %+v", got)
	}
	if got := l.SearchFor("  "); got != nil {
		t.Fatalf("blank needle hit %+v", got)
	}
}

func TestSearchFindsEveryPlacedWord(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 6).Draw(t, "words")
		var g []contentstream.Glyph
		x := 0.0
		for _, w := range words {
			g, x = place(g, w, x, 50)
			x += 6
		}
		l := New(g)
		if got, want := l.Text(), strings.Join(words, " ")+"\n"; got != want {
			t.Fatalf("text = %q, want %q", got, want)
		}
		for _, w := range words {
			if len(l.SearchFor(strings.ToUpper(w))) == 0 {
				t.Fatalf("%q not found", w)
			}
		}
	})
}
