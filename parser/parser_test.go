package parser

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/wudi/pdfredact/internal/pdftest"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/recovery"
)

func parse(t *testing.T, data []byte, strategy recovery.Strategy) (*raw.Document, error) {
	t.Helper()
	return NewDocumentParser(Config{Recovery: strategy}).Parse(context.Background(), data)
}

func pageCount(t *testing.T, doc *raw.Document) int64 {
	t.Helper()
	root, ok := doc.ResolveDict(doc.Trailer.KV["Root"])
	if !ok {
		t.Fatalf("catalog missing")
	}
	pages, ok := doc.ResolveDict(root.KV["Pages"])
	if !ok {
		t.Fatalf("page tree missing")
	}
	n, _ := raw.AsInt(pages.KV["Count"])
	return n
}

func TestParseClassicXRef(t *testing.T) {
	data := pdftest.Document(
		pdftest.Page{Content: pdftest.TextLine(72, 700, "Hola")},
		pdftest.Page{Content: pdftest.TextLine(72, 700, "Mundo")},
	)
	doc, err := parse(t, data, recovery.NewStrictStrategy())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Version != "1.7" {
		t.Fatalf("version = %q", doc.Version)
	}
	if got := pageCount(t, doc); got != 2 {
		t.Fatalf("page count = %d", got)
	}
	if doc.StartXRef == 0 {
		t.Fatalf("startxref not recorded")
	}
	var streams int
	for _, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok {
			streams++
			if len(st.Data) == 0 {
				t.Fatalf("empty stream data")
			}
		}
	}
	// two content streams plus the image
	if streams != 3 {
		t.Fatalf("streams = %d", streams)
	}
}

func TestParseXRefStreamAndObjectStream(t *testing.T) {
	b, root := pdftest.NewDocument(pdftest.Page{Content: pdftest.TextLine(72, 700, "Comprimido")})
	data, err := b.CompressedBytes(root)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	doc, err := parse(t, data, recovery.NewStrictStrategy())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := pageCount(t, doc); got != 1 {
		t.Fatalf("page count = %d", got)
	}
	font, ok := doc.ResolveDict(raw.Ref(3, 0))
	if !ok {
		t.Fatalf("font from object stream not loaded")
	}
	if name, _ := raw.AsName(font.KV["BaseFont"]); name != "Helvetica" {
		t.Fatalf("BaseFont = %q", name)
	}
}

func TestParseRepairsBrokenXRef(t *testing.T) {
	data := pdftest.Document(pdftest.Page{Content: pdftest.TextLine(72, 700, "Roto")})
	idx := bytes.LastIndex(data, []byte("startxref"))
	broken := append(append([]byte(nil), data[:idx]...), []byte("startxref\n99999999\n%%EOF\n")...)

	if _, err := parse(t, broken, recovery.NewStrictStrategy()); err == nil {
		t.Fatalf("strict parse of broken xref succeeded")
	}
	doc, err := parse(t, broken, recovery.NewLenientStrategy(nil))
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if got := pageCount(t, doc); got != 1 {
		t.Fatalf("page count = %d", got)
	}
}

func TestParseMissingRootFindsCatalog(t *testing.T) {
	data := pdftest.Document(pdftest.Page{})
	data = bytes.Replace(data, []byte("/Root 1 0 R"), []byte("          "), 1)
	doc, err := parse(t, data, recovery.NewLenientStrategy(nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pageCount(t, doc) != 1 {
		t.Fatalf("catalog not recovered")
	}
}

func TestParseRejectsEncrypted(t *testing.T) {
	b, root := pdftest.NewDocument(pdftest.Page{})
	enc := b.Add("<< /Filter /Standard /V 1 /R 2 /O (x) /U (y) /P -4 >>")
	data := b.Bytes(root, "/Encrypt "+strconv.Itoa(enc)+" 0 R ")
	_, err := parse(t, data, recovery.NewLenientStrategy(nil))
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
}

func TestParseRejectsNonPDF(t *testing.T) {
	_, err := parse(t, []byte("PK\x03\x04 not a pdf"), nil)
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestHeaderVersion(t *testing.T) {
	tests := map[string]string{
		"%PDF-1.4\n":         "1.4",
		"junk\n%PDF-2.0\r\n": "2.0",
		"%PDF-\n":            "1.4",
	}
	for in, want := range tests {
		got, err := headerVersion([]byte(in))
		if err != nil || got != want {
			t.Fatalf("headerVersion(%q) = %q, %v", in, got, err)
		}
	}
}
