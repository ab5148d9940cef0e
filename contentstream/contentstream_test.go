package contentstream

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
)

func TestParseAndSerialize(t *testing.T) {
	src := "q 1 0 0 1 10 20 cm BT /F1 12 Tf [(Hola) -250 (mundo)] TJ ET Q\n" +
		"BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff EI\n" +
		"/P <</MCID 3>> BDC EMC"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	if got := strings.Join(names, " "); got != "q cm BT Tf TJ ET Q BI BDC EMC" {
		t.Fatalf("operators = %s", got)
	}
	if string(ops[7].Inline) != "\x00\xff" {
		t.Fatalf("inline data = %q", ops[7].Inline)
	}

	again, err := Parse(Serialize(ops))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != len(ops) {
		t.Fatalf("reparse gave %d ops, want %d", len(again), len(ops))
	}
	tj := again[4].Operands[0].(*raw.ArrayObj)
	if s := tj.Items[2].(raw.StringObj); string(s.Bytes) != "mundo" {
		t.Fatalf("TJ string = %q", s.Bytes)
	}
	if string(again[7].Inline) != "\x00\xff" {
		t.Fatalf("inline data after round trip = %q", again[7].Inline)
	}
}

func traceFixture(t *testing.T, content string) *Trace {
	t.Helper()
	return traceFixtureSkipping(t, content, nil)
}

// traceFixtureSkipping traces content against resources holding /F1, an
// image /Im0, a form /Fm0 placing the image, a text form /Fm1 and a form
// /Fm2 that draws /Fm1 and carries /Skip.
func traceFixtureSkipping(t *testing.T, content string, skip func(*raw.StreamObj) bool) *Trace {
	t.Helper()
	doc := raw.NewDocument()
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	font.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	fontRef := doc.Add(font)

	img := raw.Dict()
	img.Set("Subtype", raw.NameLiteral("Image"))
	imgRef := doc.Add(raw.NewStream(img, []byte{0}))

	form := raw.Dict()
	form.Set("Subtype", raw.NameLiteral("Form"))
	form.Set("Matrix", raw.NumberArray(2, 0, 0, 2, 0, 0))
	formRef := doc.Add(raw.NewStream(form, []byte("q 10 0 0 10 5 5 cm /Im0 Do Q")))

	textForm := raw.Dict()
	textForm.Set("Subtype", raw.NameLiteral("Form"))
	textRef := doc.Add(raw.NewStream(textForm, []byte("BT /F1 10 Tf 0 0 Td (Hi) Tj ET")))
	wrapper := raw.Dict()
	wrapper.Set("Subtype", raw.NameLiteral("Form"))
	wrapper.Set("Skip", raw.Bool(true))
	wrapperRef := doc.Add(raw.NewStream(wrapper, []byte("/Fm1 Do")))

	fontsDict := raw.Dict()
	fontsDict.Set("F1", raw.Ref(fontRef.Num, fontRef.Gen))
	xobjects := raw.Dict()
	xobjects.Set("Im0", raw.Ref(imgRef.Num, imgRef.Gen))
	xobjects.Set("Fm0", raw.Ref(formRef.Num, formRef.Gen))
	xobjects.Set("Fm1", raw.Ref(textRef.Num, textRef.Gen))
	xobjects.Set("Fm2", raw.Ref(wrapperRef.Num, wrapperRef.Gen))
	res := raw.Dict()
	res.Set("Font", fontsDict)
	res.Set("XObject", xobjects)

	ops, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	decode := func(st *raw.StreamObj) ([]byte, error) { return st.Data, nil }
	tr := NewTracer(doc, fonts.NewCache(doc, decode), decode)
	tr.SkipText = skip
	out, err := tr.Trace(context.Background(), ops, res, coords.Identity())
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestTracerGlyphBoxes(t *testing.T) {
	out := traceFixture(t, "BT /F1 12 Tf 72 700 Td (AB) Tj [(C) -1000 (D)] TJ ET")
	if len(out.Glyphs) != 4 {
		t.Fatalf("glyphs = %d", len(out.Glyphs))
	}
	a, b, c, d := out.Glyphs[0], out.Glyphs[1], out.Glyphs[2], out.Glyphs[3]
	if a.Text != "A" || !near(a.Box.X0, 72) || !near(a.Box.X1, 72+8.004) {
		t.Fatalf("A = %+v", a)
	}
	if !near(a.Box.Y0, 700-2.484) || !near(a.Box.Y1, 700+8.616) {
		t.Fatalf("A vertical extent = %v..%v", a.Box.Y0, a.Box.Y1)
	}
	if !near(b.Box.X0, 80.004) || b.Start != 1 || b.End != 2 || b.Code != 1 {
		t.Fatalf("B = %+v", b)
	}
	// C follows B (667 + 667), D follows a 12pt kern after C (722)
	if !near(c.Box.X0, 72+16.008) || c.Op != 4 || c.Item != 0 {
		t.Fatalf("C = %+v", c)
	}
	if !near(d.Box.X0, 72+16.008+8.664+12) || d.Item != 2 {
		t.Fatalf("D = %+v", d)
	}
}

func TestTracerWordSpacingAndLeading(t *testing.T) {
	out := traceFixture(t, "BT /F1 10 Tf 14 TL 5 Tw 0 100 Td (a b) Tj T* (c) Tj ET")
	if len(out.Glyphs) != 4 {
		t.Fatalf("glyphs = %d", len(out.Glyphs))
	}
	// a: 5.56, space: 2.78 + 5 word spacing
	if !out.Glyphs[1].Space || !near(out.Glyphs[2].Box.X0, 5.56+2.78+5) {
		t.Fatalf("b at %v", out.Glyphs[2].Box.X0)
	}
	if c := out.Glyphs[3]; !near(c.Box.X0, 0) || !near(c.Box.Y0, 86-2.07) {
		t.Fatalf("c box = %+v", c.Box)
	}
}

func TestTracerImages(t *testing.T) {
	out := traceFixture(t, "q 100 0 0 50 10 20 cm /Im0 Do Q /Fm0 Do BI /W 1 /H 1 ID \x80 EI")
	if len(out.Images) != 3 {
		t.Fatalf("images = %d", len(out.Images))
	}
	if got := out.Images[0]; got.Name != "Im0" || got.Box != (coords.Rect{X0: 10, Y0: 20, X1: 110, Y1: 70}) || got.Op != 2 {
		t.Fatalf("direct image = %+v", got)
	}
	// form matrix scales by 2 around the inner 10x10 placement at (5,5)
	if got := out.Images[1]; got.Box != (coords.Rect{X0: 10, Y0: 10, X1: 30, Y1: 30}) || got.Op != 4 {
		t.Fatalf("form image = %+v", got)
	}
	if got := out.Images[2]; !got.Inline || got.Box != (coords.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}) {
		t.Fatalf("inline image = %+v", got)
	}
}

func TestGraphicsStateRestore(t *testing.T) {
	gs := newGraphicsState(coords.Identity())
	gs.Save()
	gs.CTM = coords.Translate(5, 5)
	gs.Text.FontSize = 30
	if err := gs.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if gs.CTM != coords.Identity() || gs.Text.FontSize != 0 {
		t.Fatalf("state not restored: %+v", gs)
	}
	if err := gs.Restore(); err == nil {
		t.Fatalf("restore on empty stack succeeded")
	}
}

func TestTracerFormText(t *testing.T) {
	out := traceFixture(t, "/Fm1 Do /Fm2 Do")
	if len(out.Forms) != 3 || len(out.Glyphs) != 4 {
		t.Fatalf("forms = %d, glyphs = %d", len(out.Forms), len(out.Glyphs))
	}
	direct, wrapper, nested := out.Forms[0], out.Forms[1], out.Forms[2]
	if direct.Name != "Fm1" || direct.Parent != 0 || direct.Op != 0 || len(direct.Ops) != 5 {
		t.Fatalf("direct call = %+v", direct)
	}
	if wrapper.Name != "Fm2" || wrapper.Parent != 0 || wrapper.Op != 1 {
		t.Fatalf("wrapper call = %+v", wrapper)
	}
	if nested.Name != "Fm1" || nested.Parent != 2 || nested.Op != 0 {
		t.Fatalf("nested call = %+v", nested)
	}
	h := out.Glyphs[0]
	if h.Text != "H" || h.Source != 1 || h.Op != 3 || !near(h.Box.X0, 0) || !near(h.Box.X1, 7.22) {
		t.Fatalf("H = %+v", h)
	}
	if g := out.Glyphs[3]; g.Text != "i" || g.Source != 3 {
		t.Fatalf("nested glyph = %+v", g)
	}
}

func TestTracerSkipsFormText(t *testing.T) {
	skip := func(st *raw.StreamObj) bool {
		_, ok := st.Dict.Get("Skip")
		return ok
	}
	out := traceFixtureSkipping(t, "/Fm1 Do /Fm2 Do", skip)
	if len(out.Forms) != 1 || out.Forms[0].Name != "Fm1" {
		t.Fatalf("forms = %+v", out.Forms)
	}
	if len(out.Glyphs) != 2 {
		t.Fatalf("glyphs = %d, text under a skipped form was traced", len(out.Glyphs))
	}
}
