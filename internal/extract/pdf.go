package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF is swapped out in tests.
var readPDF = extractPDF

// extractPDF reads the text layer page by page. Pages are joined by a blank
// line so a page break also ends a paragraph.
func extractPDF(data []byte) (res Result, err error) {
	// The parser panics on some malformed cross reference tables.
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("pdf reader: %w", err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	var starts []PageStart
	offset := 0
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("pdf page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			if len(pages) > 0 {
				offset += len("\n\n")
			}
			starts = append(starts, PageStart{Page: i, Offset: offset})
			pages = append(pages, text)
			offset += len(text)
		}
	}
	return Result{Text: strings.Join(pages, "\n\n"), Pages: n, PageStarts: starts}, nil
}
