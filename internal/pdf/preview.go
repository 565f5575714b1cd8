// Package pdf derives preview documents from full report PDFs.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PreviewPages is how many pages of the full report a free-tier caller
// may see.
const PreviewPages = 2

var pdfHeader = []byte("%PDF")

// FirstPages returns a new PDF containing the first min(n, pageCount)
// pages of src. A source shorter than n pages is returned whole, so
// single-page documents are fine.
func FirstPages(src []byte, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("page count must be positive, got %d", n)
	}
	if !bytes.HasPrefix(src, pdfHeader) {
		return nil, fmt.Errorf("source is not a PDF document")
	}

	rs := bytes.NewReader(src)
	total, err := api.PageCount(rs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if total < 1 {
		return nil, fmt.Errorf("source PDF has no pages")
	}

	keep := ClampPages(n, total)
	if keep == total {
		// Nothing to trim; the preview is the whole document.
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	if _, err := rs.Seek(0, 0); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	selection := []string{fmt.Sprintf("1-%d", keep)}
	if err := api.Trim(rs, &buf, selection, nil); err != nil {
		return nil, fmt.Errorf("failed to trim PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// ClampPages returns min(want, total), never below 1 for a non-empty
// document.
func ClampPages(want, total int) int {
	if want > total {
		return total
	}
	return want
}
