// Package pagesplit turns an uploaded document into the page-sized units
// the extraction providers consume. PDFs are split into single-page PDFs;
// images already are a single page and pass through unchanged.
package pagesplit

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ConversionError reports an input document that cannot be prepared for
// extraction.
type ConversionError struct {
	Msg string
	Err error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// DocType identifies the container format of an uploaded document.
type DocType string

const (
	TypePDF     DocType = "pdf"
	TypePNG     DocType = "png"
	TypeJPEG    DocType = "jpeg"
	TypeWebP    DocType = "webp"
	TypeHEIC    DocType = "heic"
	TypeUnknown DocType = "unknown"
)

// MimeType returns the MIME type for the document type, or
// application/octet-stream when unknown.
func (t DocType) MimeType() string {
	switch t {
	case TypePDF:
		return "application/pdf"
	case TypePNG:
		return "image/png"
	case TypeJPEG:
		return "image/jpeg"
	case TypeWebP:
		return "image/webp"
	case TypeHEIC:
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// Page is one extraction unit: a single-page PDF or a whole image.
type Page struct {
	Content []byte
	Type    DocType
	Number  int // 1-based position in the source document
}

// Detect identifies the document type from magic bytes, falling back to the
// filename extension for formats without a leading signature.
func Detect(content []byte, filename string) DocType {
	switch {
	case bytes.HasPrefix(content, []byte("%PDF-")):
		return TypePDF
	case bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")):
		return TypePNG
	case bytes.HasPrefix(content, []byte("\xff\xd8\xff")):
		return TypeJPEG
	case len(content) >= 12 && bytes.Equal(content[0:4], []byte("RIFF")) && bytes.Equal(content[8:12], []byte("WEBP")):
		return TypeWebP
	case len(content) >= 12 && bytes.Equal(content[4:8], []byte("ftyp")):
		return TypeHEIC
	}

	switch strings.ToLower(ext(filename)) {
	case ".pdf":
		return TypePDF
	case ".png":
		return TypePNG
	case ".jpg", ".jpeg":
		return TypeJPEG
	case ".webp":
		return TypeWebP
	case ".heic", ".heif":
		return TypeHEIC
	}
	return TypeUnknown
}

func ext(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}

// IsPDF reports whether the content is a PDF document.
func IsPDF(content []byte, filename string) bool {
	return Detect(content, filename) == TypePDF
}

// Paginate splits the document into per-page extraction units. A PDF yields
// one single-page PDF per page; an image yields itself as page 1. Unknown
// formats produce a ConversionError.
func Paginate(content []byte, filename string) ([]Page, error) {
	if len(content) == 0 {
		return nil, &ConversionError{Msg: "empty document content"}
	}

	docType := Detect(content, filename)
	switch docType {
	case TypeUnknown:
		return nil, &ConversionError{Msg: fmt.Sprintf("unsupported document format: %s", filename)}
	case TypePDF:
		return splitPDF(content)
	default:
		return []Page{{Content: content, Type: docType, Number: 1}}, nil
	}
}

// PageCount returns the number of pages of a PDF, or 1 for images.
func PageCount(content []byte, filename string) (int, error) {
	if !IsPDF(content, filename) {
		return 1, nil
	}
	ctx, err := readContext(content)
	if err != nil {
		return 0, &ConversionError{Msg: "failed to read PDF", Err: err}
	}
	return ctx.PageCount, nil
}

// Chunk is a contiguous page range extracted as its own PDF.
type Chunk struct {
	Content   []byte
	StartPage int // 1-based number of the chunk's first page in the source
	PageCount int
}

// SplitChunks cuts a PDF into chunks of at most maxPages consecutive pages.
// A document that already fits in one chunk is returned as-is.
func SplitChunks(content []byte, maxPages int) ([]Chunk, error) {
	if maxPages < 1 {
		return nil, &ConversionError{Msg: fmt.Sprintf("invalid chunk size %d", maxPages)}
	}
	total, err := PageCount(content, "document.pdf")
	if err != nil {
		return nil, err
	}
	if total <= maxPages {
		return []Chunk{{Content: content, StartPage: 1, PageCount: total}}, nil
	}

	var chunks []Chunk
	for start := 1; start <= total; start += maxPages {
		end := start + maxPages - 1
		if end > total {
			end = total
		}
		sel := fmt.Sprintf("%d-%d", start, end)
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(content), &buf, []string{sel}, trimConf()); err != nil {
			return nil, &ConversionError{Msg: fmt.Sprintf("failed to extract pages %s", sel), Err: err}
		}
		chunks = append(chunks, Chunk{Content: buf.Bytes(), StartPage: start, PageCount: end - start + 1})
	}
	return chunks, nil
}

func splitPDF(content []byte) ([]Page, error) {
	ctx, err := readContext(content)
	if err != nil {
		return nil, &ConversionError{Msg: "failed to read PDF", Err: err}
	}

	pages := make([]Page, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		var buf bytes.Buffer
		sel := []string{strconv.Itoa(pageNr)}
		if err := api.Trim(bytes.NewReader(content), &buf, sel, trimConf()); err != nil {
			return nil, &ConversionError{Msg: fmt.Sprintf("failed to extract page %d", pageNr), Err: err}
		}
		pages = append(pages, Page{Content: buf.Bytes(), Type: TypePDF, Number: pageNr})
	}
	return pages, nil
}

func readContext(content []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

func trimConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
