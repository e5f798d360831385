// Package extract turns uploaded contract files into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// ErrExtraction wraps every failure to get text out of a document.
	ErrExtraction = errors.New("failed to extract text")
	// ErrUnsupportedType is returned for mimetypes other than PDF, DOC and DOCX.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrNoText is returned when a document carries no text and the sample fallback is off.
	ErrNoText = errors.New("document contains no text")
)

// samplePagesDOC is the page count assumed for Word files that yield no text.
const samplePagesDOC = 5

// Result is the text of one document.
type Result struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
	// Synthetic marks text produced by the sample generator instead of the file.
	Synthetic bool `json:"synthetic"`
	// PageStarts is set for PDFs, in page order.
	PageStarts []PageStart `json:"-"`
}

// PageStart is the byte offset in Result.Text where a page's text begins.
type PageStart struct {
	Page   int
	Offset int
}

// PageAt returns the page holding the byte at offset, or 0 when the text
// carries no page index.
func (r Result) PageAt(offset int) int {
	page := 0
	for _, p := range r.PageStarts {
		if p.Offset > offset {
			break
		}
		page = p.Page
	}
	return page
}

// Extractor converts PDF, DOC and DOCX buffers into plain text. Paragraphs in
// the output are separated by blank lines.
type Extractor struct {
	sampleFallback bool
}

func New(sampleFallback bool) *Extractor {
	return &Extractor{sampleFallback: sampleFallback}
}

// Supported reports whether the mimetype can be extracted.
func Supported(mimeType string) bool {
	switch normalizeMime(mimeType) {
	case MimePDF, MimeDOC, MimeDOCX:
		return true
	}
	return false
}

// DetectMimeType returns the declared mimetype when it is supported and
// otherwise guesses from the file extension.
func DetectMimeType(filename, declared string) string {
	if m := normalizeMime(declared); Supported(m) {
		return m
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".doc":
		return MimeDOC
	case ".docx":
		return MimeDOCX
	}
	return normalizeMime(declared)
}

func (e *Extractor) Extract(data []byte, mimeType string) (Result, error) {
	mimeType = normalizeMime(mimeType)
	if !Supported(mimeType) {
		return Result{}, fmt.Errorf("%w: %w: %s", ErrExtraction, ErrUnsupportedType, mimeType)
	}

	var (
		res Result
		err error
	)
	switch mimeType {
	case MimePDF:
		res, err = readPDF(data)
	case MimeDOCX:
		res, err = readDOCX(data)
	case MimeDOC:
		res, err = readDOC(data)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text != "" {
		return res, nil
	}
	if !e.sampleFallback {
		return Result{}, fmt.Errorf("%w: %w", ErrExtraction, ErrNoText)
	}

	pages := res.Pages
	if mimeType != MimePDF || pages <= 0 {
		pages = samplePagesDOC
	}
	return Result{Text: SampleText(pages), Pages: pages, Synthetic: true}, nil
}

func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}
