// Package ingest turns an uploaded document into retrieval segments.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText reports a document with no extractable text. An upload that hits
// this is terminal: no index is built and the caller must retry with another
// file.
var ErrNoText = errors.New("document contains no extractable text")

// Segment is a bounded slice of document text used as a unit of retrieval.
// Ordinal is the segment's position in the source document.
type Segment struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// ExtractText pulls plain text out of a PDF, page by page. Pages without a
// text layer are skipped; if the whole document yields nothing, ErrNoText is
// returned.
func ExtractText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the upload.
			continue
		}
		text.WriteString(content)
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", ErrNoText
	}
	return text.String(), nil
}
