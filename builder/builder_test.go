package builder

import (
	"strings"
	"testing"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/raw"
)

func TestStampContent(t *testing.T) {
	got := string(StampContent(Stamp{Rect: coords.XYWH(70, 100, 250, 75), Lines: []string{"QR art. 113"}}))
	want := "q\n0 0 0 rg\n70 100 250 75 re f\n1 0 0 rg\nBT\n/Helv 9 Tf\n10.8 TL\n75 160 Td\n(QR art. 113) Tj\nET\nQ\n"
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestStampContentEncodesWinAnsi(t *testing.T) {
	got := StampContent(Stamp{
		Rect:  coords.XYWH(0, 0, 10, 10),
		Lines: []string{"Artículo 113", "Fracción I"},
	})
	ops, err := contentstream.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var shown []string
	for _, op := range ops {
		if op.Operator == "Tj" {
			shown = append(shown, string(op.Operands[0].(raw.StringObj).Bytes))
		}
	}
	if len(shown) != 2 || shown[0] != "Art\xedculo 113" || shown[1] != "Fracci\xf3n I" {
		t.Fatalf("shown = %q", shown)
	}
	if !strings.Contains(string(got), "T*\n") {
		t.Fatalf("second line not advanced:\n%s", got)
	}
}

func TestOverlayForm(t *testing.T) {
	form := NewOverlayForm("secondary", Stamp{Rect: coords.XYWH(0, 200, 70, 150)})
	if kind, ok := OverlayKind(form); !ok || kind != "secondary" {
		t.Fatalf("kind = %q, %v", kind, ok)
	}
	bbox, _ := form.Dict.Get("BBox")
	if arr := bbox.(*raw.ArrayObj); len(arr.Items) != 4 {
		t.Fatalf("bbox = %+v", arr)
	}
	if _, ok := OverlayKind(raw.NewStream(raw.Dict(), nil)); ok {
		t.Fatalf("plain stream reported as overlay")
	}
}

func TestPlacement(t *testing.T) {
	tests := []struct {
		name string
		page coords.Rect
		want coords.Matrix
	}{
		{"letter", coords.Rect{X1: 612, Y1: 792}, coords.Identity()},
		{"offset letter", coords.Rect{X0: 10, Y0: 20, X1: 622, Y1: 812}, coords.Translate(10, 20)},
		{"narrow", coords.Rect{X1: 306, Y1: 792}, coords.Matrix{0.5, 0, 0, 0.5, 0, 198}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Placement(tt.page); got != tt.want {
				t.Fatalf("Placement = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDrawForm(t *testing.T) {
	got := string(DrawForm("RO0", coords.Matrix{0.5, 0, 0, 0.5, 0, 198}))
	if got != "q\n0.5 0 0 0.5 0 198 cm\n/RO0 Do\nQ\n" {
		t.Fatalf("got %q", got)
	}
}

func TestPaintRects(t *testing.T) {
	got := string(PaintRects([]coords.Rect{coords.XYWH(10, 20, 30, 40)}, Paint{Fill: Black, Stroke: Black, LineWidth: 2}))
	if got != "q\n0 0 0 rg\n0 0 0 RG\n2 w\n10 20 30 40 re B\nQ\n" {
		t.Fatalf("got %q", got)
	}
	got = string(PaintRects([]coords.Rect{coords.XYWH(1, 2, 3, 4)}, Paint{Fill: []float64{0}}))
	if got != "q\n0 g\n1 2 3 4 re f\nQ\n" {
		t.Fatalf("got %q", got)
	}
	if PaintRects(nil, Paint{Fill: Black}) != nil {
		t.Fatalf("empty rect list painted")
	}
}
