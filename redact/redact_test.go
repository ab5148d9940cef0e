package redact

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/document"
	"github.com/wudi/pdfredact/internal/pdftest"
)

func open(t *testing.T, pages ...pdftest.Page) *document.Document {
	t.Helper()
	doc, err := document.Open(context.Background(), pdftest.Document(pages...), document.Options{})
	require.NoError(t, err)
	return doc
}

func pageText(t *testing.T, p *document.Page) string {
	t.Helper()
	s, err := p.Text(context.Background())
	require.NoError(t, err)
	return s
}

func lookup(t *testing.T, typ DocumentType) *TypeCatalog {
	t.Helper()
	tc, err := Default().Lookup(typ)
	require.NoError(t, err)
	return tc
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		pages  []pdftest.Page
		phrase string
		want   Classification
	}{
		{"first page", []pdftest.Page{{Content: pdftest.TextLine(72, 700, "Persona física con actividad empresarial")}}, "Persona física", Individual},
		{"later page", []pdftest.Page{{Content: pdftest.TextLine(72, 700, "Solicitud")}, {Content: pdftest.TextLine(72, 700, "Persona física")}}, "Persona física", Individual},
		{"accents folded", []pdftest.Page{{Content: pdftest.TextLine(72, 700, "C. Ana, en representación de")}}, "en representacion", Individual},
		{"case kept", []pdftest.Page{{Content: pdftest.TextLine(72, 700, "persona física")}}, "Persona física", Corporate},
		{"absent", []pdftest.Page{{Content: pdftest.TextLine(72, 700, "Empresa S.A. de C.V.")}}, "Persona física", Corporate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(ctx, open(t, tc.pages...), tc.phrase)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAdjust(t *testing.T) {
	base := coords.Rect{X0: 55, Y0: 180, X1: 300, Y1: 265}
	a := AdjustmentRule{Markers: []string{"PPPP"}, Delta: -5}
	b := AdjustmentRule{Markers: []string{"C.V."}, Delta: 5}
	absent := AdjustmentRule{Markers: []string{"alcaldía", "municipio"}, Absent: true, Fold: true, Delta: 3}

	assert.Equal(t, base, Adjust(base, "nada", []AdjustmentRule{a, b}))
	assert.Equal(t, coords.Rect{X0: 55, Y0: 175, X1: 300, Y1: 260}, Adjust(base, "PPPP", []AdjustmentRule{a, b}))
	assert.Equal(t, base, Adjust(base, "PPPP S.A. de C.V.", []AdjustmentRule{a, b}))
	assert.Equal(t, 183.0, Adjust(base, "Calle 5", []AdjustmentRule{absent}).Y0)
	assert.Equal(t, base, Adjust(base, "MUNICIPIO de Toluca", []AdjustmentRule{absent}))
}

func TestAdjustAddsFiringDeltas(t *testing.T) {
	markers := []string{"PPPP", "C.V.", "Calle", "estado"}
	rapid.Check(t, func(t *rapid.T) {
		rules := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) AdjustmentRule {
			return AdjustmentRule{
				Markers: []string{rapid.SampledFrom(markers).Draw(t, "marker")},
				Delta:   float64(rapid.IntRange(-10, 10).Draw(t, "delta")),
				Absent:  rapid.Bool().Draw(t, "absent"),
			}
		}), 0, 6).Draw(t, "rules")
		present := rapid.SliceOfDistinct(rapid.SampledFrom(markers), func(s string) string { return s }).Draw(t, "present")
		text := strings.Join(present, " ")

		want := 0.0
		for _, r := range rules {
			if strings.Contains(text, r.Markers[0]) != r.Absent {
				want += r.Delta
			}
		}
		base := coords.Rect{X0: 10, Y0: 100, X1: 200, Y1: 150}
		got := Adjust(base, text, rules)
		if got.Y0-base.Y0 != want || got.Y1-base.Y1 != want || got.X0 != base.X0 || got.X1 != base.X1 {
			t.Fatalf("Adjust(%q) = %+v, want shift %v", text, got, want)
		}
	})
}

func TestRedactRegion(t *testing.T) {
	ctx := context.Background()
	// page y 92 and 232
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "Oficio 123") + pdftest.TextLine(80, 560, "PPPP Juan Perez")})
	rules := lookup(t, AtmosphericEmissions).Individual.Region.Rules

	rect, ok, err := RedactRegion(ctx, doc, 0, RegionSpec{Rect: Box{55, 180, 300, 265}, Rules: rules})
	require.NoError(t, err)
	assert.True(t, ok)
	// PPPP -5, no place name +5, no street -5
	assert.Equal(t, coords.Rect{X0: 55, Y0: 175, X1: 300, Y1: 260}, rect)
	assert.Equal(t, "Oficio 123\n", pageText(t, doc.Page(0)))

	rect, ok, err = RedactRegion(ctx, doc, 0, RegionSpec{Rect: Box{55, 300, 300, 400}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, coords.Rect{X0: 55, Y0: 300, X1: 300, Y1: 400}, rect)

	_, _, err = RedactRegion(ctx, doc, 3, RegionSpec{})
	assert.Error(t, err)
}

func TestFindAndRedactPhone(t *testing.T) {
	ctx := context.Background()
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "Teléfono: 555-1234") + pdftest.TextLine(72, 400, "Sin datos")})
	hw := lookup(t, HazardousWaste)
	page := doc.Page(0)

	report, err := FindAndRedact(ctx, page, &hw.Corporate, hw.Search, NewSeen(hw.Search.Dedup))
	require.NoError(t, err)
	assert.True(t, report.Fired)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "PhoneNumber", report.Matches[0].Pattern)
	assert.Equal(t, "Teléfono: 555-1234", report.Matches[0].Text)
	assert.Equal(t, 1, report.Regions())

	assert.Equal(t, "Sin datos\n", pageText(t, page))
	for _, m := range report.Matches {
		rects, err := page.SearchFor(ctx, m.Text)
		require.NoError(t, err)
		assert.Empty(t, rects, m.Text)
	}
	assert.Empty(t, page.Pending())
}

func TestFindAndRedactMatchWithoutRegion(t *testing.T) {
	ctx := context.Background()
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "Teléfono: 555-1234")})
	hw := lookup(t, HazardousWaste)
	opts := hw.Search
	// a margin this negative collapses every hit rectangle
	opts.Margin = -20

	report, err := FindAndRedact(ctx, doc.Page(0), &hw.Corporate, opts, NewSeen(opts.Dedup))
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.Empty(t, report.Matches[0].Rects)
	assert.Zero(t, report.Regions())
	assert.False(t, report.Fired)
	assert.Equal(t, "Teléfono: 555-1234\n", pageText(t, doc.Page(0)))
}

func TestFindAndRedactNoMatch(t *testing.T) {
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "Sin datos personales")})
	hw := lookup(t, HazardousWaste)
	report, err := FindAndRedact(context.Background(), doc.Page(0), &hw.Individual, hw.Search, nil)
	require.NoError(t, err)
	assert.False(t, report.Fired)
	assert.Empty(t, report.Matches)
	assert.Equal(t, "Sin datos personales\n", pageText(t, doc.Page(0)))
}

func TestFindAndRedactAddressTopThird(t *testing.T) {
	ctx := context.Background()
	const line = "Empresa S.A. de C.V. Calle Uno 5, Centro, Toluca, Estado de Mexico."
	doc := open(t,
		pdftest.Page{Content: pdftest.TextLine(40, 700, line) + pdftest.TextLine(40, 100, line)},
		pdftest.Page{Content: pdftest.TextLine(40, 700, line)},
	)
	hw := lookup(t, HazardousWaste)
	seen := NewSeen(hw.Search.Dedup)

	first, err := FindAndRedact(ctx, doc.Page(0), &hw.Corporate, hw.Search, seen)
	require.NoError(t, err)
	require.Len(t, first.Matches, 1)
	assert.Equal(t, "Addresses", first.Matches[0].Pattern)
	assert.Equal(t, "Calle Uno 5, Centro, Toluca, Estado de Mexico.", first.Matches[0].Text)
	// the copy near the bottom of the page is outside the header band
	require.Len(t, first.Matches[0].Rects, 1)
	assert.Less(t, first.Matches[0].Rects[0].Y1, doc.Page(0).Height()/3)
	assert.Equal(t, "Empresa S.A. de C.V.\n"+line+"\n", pageText(t, doc.Page(0)))

	second, err := FindAndRedact(ctx, doc.Page(1), &hw.Corporate, hw.Search, seen)
	require.NoError(t, err)
	assert.False(t, second.Fired)
	assert.Equal(t, line+"\n", pageText(t, doc.Page(1)))
}

func TestFindAndRedactGroupAndLengthPartition(t *testing.T) {
	ctx := context.Background()
	cat, err := Load([]byte(`
types:
  - id: impacto
    search:
      partition: length
      group: 1
    corporate:
      patterns:
        - name: head
          positional: true
          regex: 'folio (\d+)'
        - name: tail
          regex: 'clave'
`))
	require.NoError(t, err)
	tc, err := cat.Lookup(EnvironmentalImpact)
	require.NoError(t, err)

	// 17 + 35 runes: the first third is exactly the first line
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "folio 42 y clave") + pdftest.TextLine(72, 680, strings.Repeat("x", 34))})
	report, err := FindAndRedact(ctx, doc.Page(0), &tc.Corporate, tc.Search, nil)
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "head", report.Matches[0].Pattern)
	assert.Equal(t, "42", report.Matches[0].Text)
	assert.Len(t, report.Matches[0].Rects, 1)
	// the spaces around the removed number stay
	assert.Equal(t, "folio  y clave\n"+strings.Repeat("x", 34)+"\n", pageText(t, doc.Page(0)))
}

func TestSeen(t *testing.T) {
	var none *Seen
	assert.True(t, none.visit(0, "a"))
	assert.True(t, none.visit(0, "a"))

	page := NewSeen(DedupPage)
	assert.True(t, page.visit(0, "a"))
	assert.False(t, page.visit(0, "a"))
	assert.True(t, page.visit(1, "a"))

	whole := NewSeen(DedupDocument)
	assert.True(t, whole.visit(0, "a"))
	assert.False(t, whole.visit(1, "a"))
	assert.True(t, whole.visit(1, "b"))
}

func TestStampSecondaryOnce(t *testing.T) {
	ctx := context.Background()
	doc := open(t, pdftest.Page{Content: pdftest.TextLine(72, 700, "Hola")})
	spec := lookup(t, HazardousWaste).Secondary

	added, err := StampSecondary(ctx, doc.Page(0), spec)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = StampSecondary(ctx, doc.Page(0), spec)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = StampPrimary(ctx, doc, lookup(t, HazardousWaste).Corporate.Primary)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{KindPrimary, KindSecondary}, doc.Page(0).Overlays())
	assert.Equal(t, "Hola\n", pageText(t, doc.Page(0)))
}

const (
	sharedImage   = "q 50 0 0 40 100 600 cm /Im0 Do Q\n"
	injectedImage = "q 80 0 0 80 400 100 cm /Im0 Do Q\n"
)

func TestStripInjectedImage(t *testing.T) {
	ctx := context.Background()
	doc := open(t,
		pdftest.Page{Image: true, Content: sharedImage},
		pdftest.Page{Image: true, Content: sharedImage},
		pdftest.Page{Image: true, Content: sharedImage + injectedImage},
	)
	stripped, err := StripInjectedImage(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []coords.Rect{{X0: 400, Y0: 612, X1: 480, Y1: 692}}, stripped)

	h, err := FinalizeRedaction(ctx, doc)
	require.NoError(t, err)
	out, err := AppendOverlay(ctx, h, *lookup(t, AtmosphericEmissions).InjectedImage)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), string(h.Bytes())))

	again, err := document.Open(ctx, out, document.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{KindQR}, again.Page(2).Overlays())
	assert.Empty(t, again.Page(0).Overlays())
	// painted over, not removed
	images, err := again.Page(2).Images(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestStripInjectedImageRepeated(t *testing.T) {
	doc := open(t,
		pdftest.Page{Image: true, Content: sharedImage + injectedImage},
		pdftest.Page{Image: true, Content: sharedImage + injectedImage},
	)
	stripped, err := StripInjectedImage(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, stripped)
}

func TestStripInjectedImageSinglePage(t *testing.T) {
	doc := open(t, pdftest.Page{Image: true, Content: sharedImage + injectedImage})
	stripped, err := StripInjectedImage(context.Background(), doc)
	require.NoError(t, err)
	assert.Len(t, stripped, 2)
}
