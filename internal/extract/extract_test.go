package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF writes a minimal PDF with one line of Helvetica text per page.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func stubPDF(t *testing.T, res Result, err error) {
	t.Helper()
	orig := readPDF
	readPDF = func([]byte) (Result, error) { return res, err }
	t.Cleanup(func() { readPDF = orig })
}

func TestExtract_DOCXParagraphs(t *testing.T) {
	data := buildDOCX(t, "First paragraph of the agreement.", "Second   paragraph.")
	res, err := New(true).Extract(data, MimeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph of the agreement.\n\nSecond paragraph.", res.Text)
	assert.False(t, res.Synthetic)
}

func TestExtract_EmptyDOCXFallsBackToSample(t *testing.T) {
	data := buildDOCX(t)
	res, err := New(true).Extract(data, MimeDOCX)
	require.NoError(t, err)
	assert.True(t, res.Synthetic)
	assert.Equal(t, samplePagesDOC, res.Pages)
	assert.Equal(t, SampleText(samplePagesDOC), res.Text)
}

func TestExtract_EmptyWithoutFallbackFails(t *testing.T) {
	_, err := New(false).Extract(buildDOCX(t), MimeDOCX)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_CorruptDOCX(t *testing.T) {
	_, err := New(true).Extract([]byte("not a zip"), MimeDOCX)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtract_UnsupportedType(t *testing.T) {
	_, err := New(true).Extract([]byte("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtract_DOCRecoversPrintableRuns(t *testing.T) {
	var data []byte
	data = append(data, 0xD0, 0xCF, 0x11, 0xE0, 0x01, 0x02)
	for _, r := range "The Client shall pay all invoices within thirty days.\r" {
		data = append(data, byte(r), 0x00)
	}
	data = append(data, 0xFF, 0xFE, 'x', 'y', 0x03)
	data = append(data, []byte("Either party may terminate this agreement on notice.\r")...)

	res, err := New(true).Extract(data, MimeDOC)
	require.NoError(t, err)
	assert.Equal(t, "The Client shall pay all invoices within thirty days.\n\nEither party may terminate this agreement on notice.", res.Text)
}

func TestExtract_PDFUsesTextLayer(t *testing.T) {
	stubPDF(t, Result{Text: "  Page one text.\n\nPage two text.  ", Pages: 2}, nil)
	res, err := New(true).Extract([]byte("%PDF-1.4"), MimePDF)
	require.NoError(t, err)
	assert.Equal(t, "Page one text.\n\nPage two text.", res.Text)
	assert.Equal(t, 2, res.Pages)
}

func TestExtract_PDFReadsEveryPage(t *testing.T) {
	data := buildPDF(t,
		"The Client shall pay all invoices within thirty days.",
		"Either party may terminate this agreement on notice.",
	)
	res, err := New(false).Extract(data, MimePDF)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.False(t, res.Synthetic)

	parts := strings.Split(res.Text, "\n\n")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "The Client shall pay all invoices within thirty days.")
	assert.Contains(t, parts[1], "Either party may terminate this agreement on notice.")

	require.Len(t, res.PageStarts, 2)
	assert.Equal(t, PageStart{Page: 1, Offset: 0}, res.PageStarts[0])
	assert.Equal(t, PageStart{Page: 2, Offset: len(parts[0]) + 2}, res.PageStarts[1])
	assert.Equal(t, 1, res.PageAt(len(parts[0])))
	assert.Equal(t, 2, res.PageAt(len(parts[0])+2))
}

func TestResult_PageAt(t *testing.T) {
	res := Result{PageStarts: []PageStart{{Page: 1, Offset: 0}, {Page: 3, Offset: 40}}}
	assert.Equal(t, 1, res.PageAt(39))
	assert.Equal(t, 3, res.PageAt(40))
	assert.Equal(t, 0, Result{}.PageAt(10))
}

func TestExtract_PDFWithoutTextUsesPageCount(t *testing.T) {
	stubPDF(t, Result{Pages: 4}, nil)
	res, err := New(true).Extract([]byte("%PDF-1.4"), "application/pdf; charset=binary")
	require.NoError(t, err)
	assert.True(t, res.Synthetic)
	assert.Equal(t, 4, res.Pages)
	assert.Len(t, strings.Split(res.Text, "\n\n"), 12)
}

func TestExtract_PDFErrorIsWrapped(t *testing.T) {
	stubPDF(t, Result{}, errors.New("bad xref"))
	_, err := New(true).Extract([]byte("%PDF-1.4"), MimePDF)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Contains(t, err.Error(), "bad xref")
}

func TestExtract_InvalidPDFBytes(t *testing.T) {
	_, err := New(true).Extract([]byte("definitely not a pdf"), MimePDF)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, MimePDF, DetectMimeType("x.bin", "application/pdf"))
	assert.Equal(t, MimeDOCX, DetectMimeType("contract.DOCX", "application/octet-stream"))
	assert.Equal(t, MimeDOC, DetectMimeType("old.doc", ""))
	assert.Equal(t, "text/plain", DetectMimeType("notes.txt", "text/plain"))
}

func TestSampleText(t *testing.T) {
	one := strings.Split(SampleText(1), "\n\n")
	assert.Len(t, one, len(sampleClauses))
	for _, c := range one {
		assert.Greater(t, len(c), 50)
	}
	assert.Len(t, strings.Split(SampleText(5), "\n\n"), 15)
}
