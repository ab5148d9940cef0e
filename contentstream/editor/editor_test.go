package editor

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
)

type fixture struct {
	doc *raw.Document
	res *raw.DictObj
}

func newFixture() *fixture {
	doc := raw.NewDocument()
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	font.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	ref := doc.Add(font)
	fontsDict := raw.Dict()
	fontsDict.Set("F1", raw.Ref(ref.Num, ref.Gen))
	res := raw.Dict()
	res.Set("Font", fontsDict)
	return &fixture{doc: doc, res: res}
}

func (f *fixture) trace(t *testing.T, ops []contentstream.Operation) []contentstream.Glyph {
	t.Helper()
	decode := func(st *raw.StreamObj) ([]byte, error) { return st.Data, nil }
	tr := contentstream.NewTracer(f.doc, fonts.NewCache(f.doc, decode), decode)
	out, err := tr.Trace(context.Background(), ops, f.res, coords.Identity())
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	return out.Glyphs
}

func parse(t *testing.T, src string) []contentstream.Operation {
	t.Helper()
	ops, err := contentstream.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return ops
}

func text(glyphs []contentstream.Glyph) string {
	var sb strings.Builder
	for _, g := range glyphs {
		sb.WriteString(g.Text)
	}
	return sb.String()
}

// position returns the left edge of the first glyph showing s.
func position(t *testing.T, glyphs []contentstream.Glyph, s string) float64 {
	t.Helper()
	for _, g := range glyphs {
		if g.Text == s {
			return g.Box.X0
		}
	}
	t.Fatalf("glyph %q not found in %q", s, text(glyphs))
	return 0
}

func TestRedactKeepsPositions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		cut     []int
		want    string
		anchor  string
	}{
		{"tj", "BT /F1 12 Tf 72 700 Td (ABCD) Tj ET", []int{1, 2}, "AD", "D"},
		{"tj with spacing", "BT /F1 12 Tf 2 Tc 4 Tw 150 Tz 72 700 Td (x y z) Tj ET", []int{1, 2}, "x z", "z"},
		{"tj array", "BT /F1 12 Tf 72 700 Td [(AB) -500 (CD)] TJ ET", []int{1, 2}, "AD", "D"},
		{"quote", "BT /F1 10 Tf 14 TL 0 100 Td (first) Tj (abc) ' ET", []int{6}, "firstac", "c"},
		{"double quote", "BT /F1 10 Tf 14 TL 0 100 Td 3 1 (a b c) \" ET", []int{2}, "a  c", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ops := parse(t, tt.content)
			before := f.trace(t, ops)

			var regions []coords.Rect
			for _, i := range tt.cut {
				box := before[i].Box
				regions = append(regions, coords.Rect{X0: box.X0 + 0.5, Y0: box.Y0, X1: box.X1 - 0.5, Y1: box.Y1})
			}

			out, n := Redact(ops, before, regions)
			if n != len(tt.cut) {
				t.Fatalf("removed %d glyphs, want %d", n, len(tt.cut))
			}
			// serialize and parse again so the check covers the written form
			after := f.trace(t, parse(t, string(contentstream.Serialize(out))))
			if got := text(after); got != tt.want {
				t.Fatalf("text after redaction = %q, want %q", got, tt.want)
			}
			x0, x1 := position(t, before, tt.anchor), position(t, after, tt.anchor)
			if math.Abs(x0-x1) > 1e-3 {
				t.Fatalf("%q moved from %v to %v", tt.anchor, x0, x1)
			}
		})
	}
}

func TestRedactNoHit(t *testing.T) {
	f := newFixture()
	ops := parse(t, "BT /F1 12 Tf 72 700 Td (Hola) Tj ET")
	glyphs := f.trace(t, ops)
	out, n := Redact(ops, glyphs, []coords.Rect{{X0: 300, Y0: 300, X1: 400, Y1: 400}})
	if n != 0 || len(out) != len(ops) || out[3].Operator != "Tj" {
		t.Fatalf("unexpected rewrite: %d removed, %+v", n, out)
	}
}

func TestRedactWholeString(t *testing.T) {
	f := newFixture()
	ops := parse(t, "BT /F1 12 Tf 72 700 Td (Hola) Tj (!) Tj ET")
	glyphs := f.trace(t, ops)
	region := coords.Rect{X0: 0, Y0: 690, X1: 96, Y1: 720}
	out, n := Redact(ops, glyphs, []coords.Rect{region})
	if n != 4 {
		t.Fatalf("removed %d glyphs, want 4", n)
	}
	after := f.trace(t, out)
	if got := text(after); got != "!" {
		t.Fatalf("text = %q", got)
	}
	arr := out[3].Operands[0].(*raw.ArrayObj)
	if len(arr.Items) != 1 {
		t.Fatalf("expected a single kerning number, got %+v", arr.Items)
	}
	if math.Abs(position(t, after, "!")-position(t, glyphs, "!")) > 1e-3 {
		t.Fatalf("trailing text moved")
	}
}

func TestCovers(t *testing.T) {
	box := coords.Rect{X0: 10, Y0: 10, X1: 20, Y1: 22}
	tests := []struct {
		name   string
		region coords.Rect
		want   bool
	}{
		{"inside", coords.Rect{X0: 0, Y0: 0, X1: 30, Y1: 30}, true},
		{"shrunk", coords.Rect{X0: 12, Y0: 12, X1: 18, Y1: 20}, true},
		{"touching edge", coords.Rect{X0: 20, Y0: 0, X1: 30, Y1: 30}, false},
		{"misses center", coords.Rect{X0: 0, Y0: 0, X1: 30, Y1: 14}, false},
		{"left overlap", coords.Rect{X0: 0, Y0: 0, X1: 11, Y1: 30}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Covers(tt.region, box); got != tt.want {
				t.Fatalf("Covers(%v) = %v, want %v", tt.region, got, tt.want)
			}
		})
	}
}

func TestQuadTreeQuery(t *testing.T) {
	qt := NewQuadTree(coords.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}, 2)
	for i := 0; i < 40; i++ {
		x := float64(i%10) * 10
		y := float64(i/10) * 10
		qt.Insert(coords.Rect{X0: x, Y0: y, X1: x + 5, Y1: y + 5}, i)
	}
	// identical points must not recurse forever
	for i := 0; i < 20; i++ {
		qt.Insert(coords.Rect{X0: 50, Y0: 50, X1: 50, Y1: 50}, 100+i)
	}
	got := qt.Query(coords.Rect{X0: 12, Y0: 12, X1: 28, Y1: 18})
	if len(got) != 2 {
		t.Fatalf("query = %v", got)
	}
	if got := qt.Query(coords.Rect{X0: 49, Y0: 49, X1: 51, Y1: 51}); len(got) != 20 {
		t.Fatalf("point query found %d", len(got))
	}
}
