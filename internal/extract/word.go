package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// readDOCX gathers the <w:t> runs of word/document.xml, one paragraph per <w:p>.
func readDOCX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("docx archive: %w", err)
	}
	f := findZipFile(zr, "word/document.xml")
	if f == nil {
		return Result{}, errors.New("docx archive has no word/document.xml")
	}
	rc, err := f.Open()
	if err != nil {
		return Result{}, fmt.Errorf("docx open: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: strings.Join(paragraphs, "\n\n")}, nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := collapseWhitespace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var v string
				if err := dec.DecodeElement(&v, &t); err != nil {
					return nil, fmt.Errorf("docx xml: %w", err)
				}
				cur.WriteString(v)
			case "tab", "br":
				cur.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				flush()
			}
		}
	}
	flush()
	return out, nil
}

// minDOCRun is the shortest printable run kept from a legacy .doc stream.
const minDOCRun = 20

// readDOC recovers text from the binary Word format by collecting printable
// runs. Word stores text either as 8-bit or UTF-16LE, so NUL bytes are skipped,
// and a carriage return marks a paragraph end.
func readDOC(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, errors.New("empty document")
	}
	var (
		paragraphs []string
		run        strings.Builder
	)
	flush := func() {
		s := collapseWhitespace(run.String())
		run.Reset()
		if len(s) >= minDOCRun && strings.ContainsRune(s, ' ') && letterShare(s) >= 0.6 {
			paragraphs = append(paragraphs, s)
		}
	}
	for _, b := range data {
		switch {
		case b == 0:
			continue
		case b == '\r' || b == '\n':
			flush()
		case b == '\t' || (b >= 0x20 && b < 0x7f):
			run.WriteByte(b)
		default:
			flush()
		}
	}
	flush()
	return Result{Text: strings.Join(paragraphs, "\n\n")}, nil
}

func letterShare(s string) float64 {
	var letters, total int
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || r == ' ' {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
