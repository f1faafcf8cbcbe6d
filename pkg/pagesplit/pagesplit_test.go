package pagesplit

import (
	"bytes"
	"fmt"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePDF(t *testing.T, pages int) []byte {
	t.Helper()

	pdf := fpdf.New("P", "pt", "", "")
	for i := 0; i < pages; i++ {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(72, 72, fmt.Sprintf("Page %d", i+1))
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

// pngHeader is the 8-byte PNG signature plus a little padding.
var pngHeader = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		filename string
		want     DocType
	}{
		{"pdf magic", []byte("%PDF-1.7\n..."), "scan.bin", TypePDF},
		{"png magic", pngHeader, "upload", TypePNG},
		{"jpeg magic", []byte("\xff\xd8\xff\xe0rest"), "photo", TypeJPEG},
		{"webp magic", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "x", TypeWebP},
		{"heic magic", []byte("\x00\x00\x00\x18ftypheic"), "x", TypeHEIC},
		{"pdf extension", []byte("garbled"), "intake.PDF", TypePDF},
		{"jpeg extension", []byte("garbled"), "photo.jpeg", TypeJPEG},
		{"unknown", []byte("garbled"), "notes.txt", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.content, tt.filename))
		})
	}
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", TypePDF.MimeType())
	assert.Equal(t, "image/png", TypePNG.MimeType())
	assert.Equal(t, "application/octet-stream", TypeUnknown.MimeType())
}

func TestPaginatePDF(t *testing.T) {
	pages, err := Paginate(samplePDF(t, 3), "intake.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, p := range pages {
		assert.Equal(t, TypePDF, p.Type)
		assert.Equal(t, i+1, p.Number)
		assert.True(t, bytes.HasPrefix(p.Content, []byte("%PDF-")))

		n, err := PageCount(p.Content, "page.pdf")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestPaginateImage(t *testing.T) {
	pages, err := Paginate(pngHeader, "scan.png")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, TypePNG, pages[0].Type)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, pngHeader, pages[0].Content)
}

func TestPaginateUnknown(t *testing.T) {
	_, err := Paginate([]byte("hello"), "notes.txt")
	require.Error(t, err)

	var ce *ConversionError
	assert.ErrorAs(t, err, &ce)
}

func TestPaginateEmpty(t *testing.T) {
	_, err := Paginate(nil, "empty.pdf")
	assert.Error(t, err)
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(samplePDF(t, 4), "intake.pdf")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = PageCount(pngHeader, "scan.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSplitChunks(t *testing.T) {
	chunks, err := SplitChunks(samplePDF(t, 10), 4)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].StartPage)
	assert.Equal(t, 4, chunks[0].PageCount)
	assert.Equal(t, 5, chunks[1].StartPage)
	assert.Equal(t, 4, chunks[1].PageCount)
	assert.Equal(t, 9, chunks[2].StartPage)
	assert.Equal(t, 2, chunks[2].PageCount)

	for _, c := range chunks {
		n, err := PageCount(c.Content, "chunk.pdf")
		require.NoError(t, err)
		assert.Equal(t, c.PageCount, n)
	}
}

func TestSplitChunksSingle(t *testing.T) {
	in := samplePDF(t, 3)

	chunks, err := SplitChunks(in, 8)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, in, chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartPage)
	assert.Equal(t, 3, chunks[0].PageCount)
}

func TestSplitChunksInvalidSize(t *testing.T) {
	_, err := SplitChunks(samplePDF(t, 2), 0)
	assert.Error(t, err)
}
