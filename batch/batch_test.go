package batch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfredact/document"
	"github.com/wudi/pdfredact/internal/pdftest"
	"github.com/wudi/pdfredact/redact"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func phonePDF() []byte {
	return pdftest.Document(pdftest.Page{Content: pdftest.TextLine(72, 700, "Teléfono: 555-1234")})
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", nil)
	writeFile(t, dir, "a.PDF", nil)
	writeFile(t, dir, "notes.txt", nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))
	extra := writeFile(t, t.TempDir(), "z.pdf", nil)

	got, err := Collect([]string{dir, extra})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf"), extra}, got)

	_, err = Collect([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "oficio_testado.pdf", EntryName("/in/oficio.pdf"))
	assert.Equal(t, "scan.v2_testado.pdf", EntryName("scan.v2.PDF"))

	used := map[string]int{}
	assert.Equal(t, "a_testado.pdf", uniqueName(used, "a_testado.pdf"))
	assert.Equal(t, "a_testado_2.pdf", uniqueName(used, "a_testado.pdf"))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "uno.pdf", phonePDF())
	bad := writeFile(t, dir, "roto.pdf", []byte("not a pdf"))
	other := writeFile(t, t.TempDir(), "uno.pdf", phonePDF())

	var buf bytes.Buffer
	p := redact.NewPipeline(nil, document.Options{})
	report, err := Run(context.Background(), p, redact.HazardousWaste, []string{good, bad, other}, &buf, Options{Workers: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, bad, report.Failed[0].Path)
	assert.ErrorIs(t, report.Failed[0].Err, document.ErrNotPDF)
	assert.Equal(t, []Entry{{Path: good, Name: "uno_testado.pdf"}, {Path: other, Name: "uno_testado_2.pdf"}}, report.Processed)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for i, f := range zr.File {
		assert.Equal(t, report.Processed[i].Name, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		doc, err := document.Open(context.Background(), data, document.Options{})
		require.NoError(t, err)
		rects, err := doc.Page(0).SearchFor(context.Background(), "555-1234")
		require.NoError(t, err)
		assert.Empty(t, rects, f.Name)
	}
}

func TestRunErrors(t *testing.T) {
	p := redact.NewPipeline(nil, document.Options{})
	_, err := Run(context.Background(), p, redact.HazardousWaste, nil, io.Discard, Options{})
	assert.ErrorIs(t, err, ErrNoInputs)

	path := writeFile(t, t.TempDir(), "uno.pdf", phonePDF())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, p, redact.HazardousWaste, []string{path}, io.Discard, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
