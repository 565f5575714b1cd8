package pdf

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/api/internal/pdf/pdftest"
)

func TestClampPages(t *testing.T) {
	tests := []struct {
		name  string
		want  int
		total int
		keep  int
	}{
		{"long document", 2, 10, 2},
		{"exactly two pages", 2, 2, 2},
		{"single page clamps", 2, 1, 1},
		{"larger request", 5, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.keep, ClampPages(tt.want, tt.total))
		})
	}
}

func TestFirstPages_RejectsNonPDF(t *testing.T) {
	_, err := FirstPages([]byte("<html>not a pdf</html>"), PreviewPages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")
}

func TestFirstPages_RejectsNonPositiveCount(t *testing.T) {
	_, err := FirstPages(pdftest.MinimalPDF(3), 0)
	require.Error(t, err)
}

func TestFirstPages_SinglePageReturnedWhole(t *testing.T) {
	src := pdftest.MinimalPDF(1)

	out, err := FirstPages(src, PreviewPages)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestFirstPages_TrimsToPreviewLength(t *testing.T) {
	src := pdftest.MinimalPDF(5)

	out, err := FirstPages(src, PreviewPages)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	total, err := api.PageCount(bytes.NewReader(out), nil)
	require.NoError(t, err)
	assert.Equal(t, PreviewPages, total)
}

func TestFirstPages_SourceUnmodified(t *testing.T) {
	src := pdftest.MinimalPDF(4)
	orig := make([]byte, len(src))
	copy(orig, src)

	_, err := FirstPages(src, PreviewPages)
	require.NoError(t, err)
	assert.Equal(t, orig, src)
}
