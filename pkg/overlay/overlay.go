// Package overlay stamps text at fixed coordinates onto the pages of an
// existing PDF. It is the fallback fill strategy for forms without
// interactive fields: the original pages are imported as templates and the
// values are drawn on top of them.
package overlay

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// TextOverlayError reports a failure to overlay text onto a PDF.
type TextOverlayError struct {
	Msg string
	Err error
}

func (e *TextOverlayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TextOverlayError) Unwrap() error { return e.Err }

// FontConfig contains font settings for overlay text rendering.
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Default font size
	AscentRatio float64 // Vertical positioning ratio
}

// DefaultFont is Helvetica, which renders reliably across viewers.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        DefaultFontSize,
	AscentRatio: 0.718,
}

// Engine overlays positioned text onto PDF pages.
type Engine struct {
	log  *slog.Logger
	font FontConfig
}

// NewEngine creates an overlay engine. A nil logger falls back to
// slog.Default().
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log, font: DefaultFont}
}

// Overlay draws the positioned fields onto the PDF and returns a new PDF
// byte stream. Every page of the input is preserved; fields addressing a
// page outside the document are logged and skipped. An empty field set
// returns the input unchanged.
func (e *Engine) Overlay(pdfContent []byte, fields []FieldPosition) ([]byte, error) {
	if len(pdfContent) == 0 {
		return nil, &TextOverlayError{Msg: "empty PDF content"}
	}
	if len(fields) == 0 {
		return pdfContent, nil
	}

	sizes, err := PageSizes(pdfContent)
	if err != nil {
		return nil, &TextOverlayError{Msg: "failed to read PDF pages", Err: err}
	}

	byPage := make(map[int][]FieldPosition)
	for _, f := range fields {
		if f.Page < 0 || f.Page >= len(sizes) {
			e.log.Warn("field addresses page outside document, skipping",
				"field", f.Name, "page", f.Page, "pages", len(sizes))
			continue
		}
		byPage[f.Page] = append(byPage[f.Page], f)
	}

	pdf := fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(pdfContent))

	encodingErrors := 0
	for pageIdx, size := range sizes {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})

		tpl := importer.ImportPageFromStream(pdf, &rs, pageIdx+1, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, size.Width, 0)

		pageFields := byPage[pageIdx]
		sort.SliceStable(pageFields, func(i, j int) bool {
			return pageFields[i].Y < pageFields[j].Y
		})
		for _, f := range pageFields {
			e.drawField(pdf, f, &encodingErrors)
		}
	}
	if encodingErrors > 0 {
		e.log.Warn("some field values lost characters in Latin-1 conversion",
			"fields", encodingErrors)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &TextOverlayError{Msg: "failed to generate PDF", Err: err}
	}
	return buf.Bytes(), nil
}

// drawField renders one value. Short values without an explicit width are
// drawn as a single line; longer ones go into a wrapped text box.
func (e *Engine) drawField(pdf *fpdf.Fpdf, f FieldPosition, encodingErrors *int) {
	fontSize := f.FontSize
	if fontSize <= 0 {
		fontSize = e.font.Size
	}
	pdf.SetFont(e.font.Name, e.font.Style, fontSize)
	pdf.SetTextColor(0, 0, 0)

	// Convert text to ISO-8859-1 to avoid PDF encoding issues
	latin1, err := charmap.ISO8859_1.NewEncoder().String(f.Value)
	if err != nil {
		*encodingErrors++
		latin1 = f.Value
	}

	if f.Width == 0 || len(f.Value) < 50 {
		pdf.Text(f.X, f.Y+fontSize*e.font.AscentRatio, latin1)
		return
	}

	width, height := f.Width, f.Height
	if width <= 0 {
		width = 200
	}
	if height <= 0 {
		height = 50
	}

	// Wrap into the box, dropping lines that would overflow its height.
	lineHeight := fontSize * 1.2
	lines := pdf.SplitText(latin1, width)
	maxLines := int(height / lineHeight)
	if maxLines < 1 {
		maxLines = 1
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	y := f.Y + fontSize*e.font.AscentRatio
	for _, line := range lines {
		pdf.Text(f.X, y, line)
		y += lineHeight
	}
}

// PageSizes reads the MediaBox of every page, falling back to Letter for
// pages whose dictionary cannot be resolved. Callers mapping percentage
// positions onto a specific PDF use it to scale against the actual page
// geometry.
func PageSizes(pdfContent []byte) ([]PageSize, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(pdfContent), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	sizes := make([]PageSize, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		sizes[pageNr-1] = Letter

		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		boxObj, found := pageDict.Find("MediaBox")
		if !found {
			continue
		}
		box, err := ctx.DereferenceArray(boxObj)
		if err != nil || len(box) != 4 {
			continue
		}
		coords := make([]float64, 4)
		ok := true
		for i, c := range box {
			v, err := ctx.DereferenceNumber(c)
			if err != nil {
				ok = false
				break
			}
			coords[i] = v
		}
		if !ok {
			continue
		}
		w, h := coords[2]-coords[0], coords[3]-coords[1]
		if w > 0 && h > 0 {
			sizes[pageNr-1] = PageSize{Width: w, Height: h}
		}
	}
	return sizes, nil
}
