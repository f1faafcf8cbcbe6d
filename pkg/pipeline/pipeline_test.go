package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medintake/formpipe/pkg/overlay"
	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

// fakeOCR returns fixed text for any input pages.
type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Name() string { return "fake-ocr" }

func (f *fakeOCR) ExtractText(ctx context.Context, pages []pagesplit.Page) (*provider.OCRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.OCRResult{Text: f.text, Confidence: 0.8, Pages: len(pages), Model: "fake-ocr-1"}, nil
}

// fakeParser returns fixed fields for any input text.
type fakeParser struct {
	fields map[string]any
	err    error
}

func (f *fakeParser) Name() string { return "fake-llm" }

func (f *fakeParser) ParseToJSON(ctx context.Context, text string, hints []string) (*provider.ParseResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ParseResult{
		Fields:      f.fields,
		Confidences: map[string]float64{"patient_name": 0.9},
		Confidence:  0.85,
		Model:       "fake-llm-1",
	}, nil
}

// fakePositions returns one positioned field per page.
type fakePositions struct {
	fields []provider.PositionedField
	err    error
}

func (f *fakePositions) Name() string { return "fake-vision" }

func (f *fakePositions) ExtractWithPositions(ctx context.Context, content []byte, mimeType string) (*provider.PositionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.PositionResult{Fields: f.fields, Model: "fake-vision-1"}, nil
}

// fakeDocOCR records each call's content for chunk assertions.
type fakeDocOCR struct {
	calls   int
	results []*provider.DocumentResult
	err     error
}

func (f *fakeDocOCR) Name() string { return "fake-doc-ocr" }

func (f *fakeDocOCR) ProcessDocument(ctx context.Context, content []byte, mimeType string) (*provider.DocumentResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result, nil
}

func plainPDF(t *testing.T, pages int) []byte {
	t.Helper()

	pdf := fpdf.New("P", "pt", "", "")
	for i := 0; i < pages; i++ {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(72, 72, fmt.Sprintf("Intake form page %d", i+1))
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

// formPDF carries a single text field named patient_name.
func formPDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (patient_name) /Rect [100 700 300 720] >>",
	}
	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

var pngContent = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

func baseRequest(t *testing.T) Request {
	return Request{
		Content:  plainPDF(t, 1),
		Filename: "intake.pdf",
		OCR:      &fakeOCR{text: "Name: Jane Roe"},
		Parser:   &fakeParser{fields: map[string]any{"patient_name": "Jane Roe"}},
	}
}

func TestProcessTemplateAcroForm(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Template = formPDF(t)

	result, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Jane Roe", result.ExtractedData["patient_name"])
	assert.NotEmpty(t, result.FilledPDF)
	assert.Equal(t, true, result.Metadata["pdf_filled"])
	assert.Equal(t, "acroform", result.Metadata["pdf_fill_method"])
	assert.Equal(t, "template_acroform", result.Metadata["pdf_fill_type"])
	assert.Equal(t, "fake-ocr-1", result.Metadata["ocr_model"])
	assert.Equal(t, "fake-llm-1", result.Metadata["llm_model"])
	assert.Equal(t, 1, result.Metadata["page_count"])
}

func TestProcessSourceOverlayFallback(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Positions = &fakePositions{fields: []provider.PositionedField{
		{Name: "patient_name", Value: "Jane Roe", XPercent: 10, YPercent: 20, WidthPercent: 20, HeightPercent: 3},
	}}

	result, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FilledPDF)
	assert.Equal(t, true, result.Metadata["pdf_filled"])
	assert.Equal(t, "overlay", result.Metadata["pdf_fill_method"])
	assert.Equal(t, "source_overlay", result.Metadata["pdf_fill_type"])
	assert.Equal(t, 1, result.Metadata["overlay_field_count"])
}

func TestProcessOverlayNoPositions(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Positions = &fakePositions{fields: nil}

	result, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, result.FilledPDF)
	assert.Equal(t, false, result.Metadata["pdf_filled"])
	assert.Equal(t, "No field positions detected", result.Metadata["pdf_fill_error"])
}

func TestProcessImageNoTemplate(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Content = pngContent
	req.Filename = "scan.png"

	result, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, result.FilledPDF)
	assert.Equal(t, false, result.Metadata["pdf_filled"])
}

func TestProcessOCRFailure(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.OCR = &fakeOCR{err: errors.New("service unavailable")}

	_, err := p.Process(context.Background(), req)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageOCR, perr.Stage)
	assert.Contains(t, perr.Details, "processing_time_ms")
}

func TestProcessParsingFailure(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Parser = &fakeParser{err: errors.New("bad output")}

	_, err := p.Process(context.Background(), req)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageParsing, perr.Stage)
}

func TestProcessConversionFailure(t *testing.T) {
	p := NewProcessor(nil)

	req := baseRequest(t)
	req.Content = []byte("not a known format")
	req.Filename = "notes.txt"

	_, err := p.Process(context.Background(), req)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageConversion, perr.Stage)
}

func TestTargetPageSize(t *testing.T) {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 595.28, Ht: 841.89})
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	size := targetPageSize(buf.Bytes())
	assert.InDelta(t, 595.28, size.Width, 0.5)
	assert.InDelta(t, 841.89, size.Height, 0.5)

	// Unreadable targets fall back to Letter.
	size = targetPageSize([]byte("not a pdf"))
	assert.Equal(t, overlay.Letter, size)
}

func TestOverallConfidence(t *testing.T) {
	r := &Result{OCRConfidence: 0.8, LLMConfidence: 0.85}
	assert.InDelta(t, 0.8*0.6+0.85*0.4, r.OverallConfidence(), 0.0001)
}

func TestResultLowConfidenceFields(t *testing.T) {
	r := &Result{FieldConfidences: map[string]float64{
		"patient_name":  0.9,
		"visit_date":    0.4,
		"date_of_birth": 0.6,
	}}
	assert.Equal(t, []string{"date_of_birth", "visit_date"}, r.LowConfidenceFields(0.7))
	assert.Empty(t, r.LowConfidenceFields(0.1))
}

func TestClassifyStage(t *testing.T) {
	assert.Equal(t, StageConversion, classifyStage(&pagesplit.ConversionError{Msg: "x"}))
	assert.Equal(t, StageOCR, classifyStage(errors.New("ocr service down")))
	assert.Equal(t, StageParsing, classifyStage(errors.New("llm refused")))
	assert.Equal(t, StagePDFFilling, classifyStage(errors.New("pdf is encrypted")))
	assert.Equal(t, StageUnknown, classifyStage(errors.New("something else")))
}

func TestProcessFast(t *testing.T) {
	p := NewProcessor(nil)

	docOCR := &fakeDocOCR{results: []*provider.DocumentResult{{
		Text:   "Name: Jane Roe",
		Fields: map[string]any{"patient_name": "Jane Roe"},
		Positioned: []provider.PositionedField{
			{Name: "patient_name", Value: "Jane Roe", XPercent: 10, YPercent: 20, WidthPercent: 20, HeightPercent: 3},
		},
		Confidence: 0.9,
		PageCount:  1,
		Model:      "fake-doc-model",
	}}}

	result, err := p.ProcessFast(context.Background(), FastRequest{
		Content:  plainPDF(t, 1),
		Filename: "intake.pdf",
		OCR:      docOCR,
		Template: plainPDF(t, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, docOCR.calls)
	assert.NotEmpty(t, result.FilledPDF)
	assert.Equal(t, "Jane Roe", result.ExtractedData["patient_name"])
	assert.Equal(t, 1, result.FieldCount)
	assert.Equal(t, true, result.Metadata["pdf_filled"])
	assert.Equal(t, "simplified", result.Metadata["pipeline"])
	assert.Equal(t, "fake-doc-model", result.Metadata["ocr_model"])
	assert.NotContains(t, result.Metadata, "chunked")
}

func TestProcessFastNoTemplate(t *testing.T) {
	p := NewProcessor(nil)

	docOCR := &fakeDocOCR{results: []*provider.DocumentResult{{
		Text: "text", Fields: map[string]any{}, Confidence: 0.9, PageCount: 1,
	}}}

	result, err := p.ProcessFast(context.Background(), FastRequest{
		Content:  pngContent,
		Filename: "scan.png",
		OCR:      docOCR,
	})
	require.NoError(t, err)
	assert.Nil(t, result.FilledPDF)
	assert.Equal(t, false, result.Metadata["pdf_filled"])
}

func TestProcessFastChunked(t *testing.T) {
	p := NewProcessor(nil)

	// 10 pages -> two chunks of 8 and 2; each chunk reports a field on its
	// first page, which must be renumbered to the document page index.
	docOCR := &fakeDocOCR{results: []*provider.DocumentResult{
		{
			Text:   "chunk one",
			Fields: map[string]any{"patient_name": "Jane Roe"},
			Positioned: []provider.PositionedField{
				{Name: "patient_name", Value: "Jane Roe", Page: 0},
			},
			Confidence: 0.9,
			PageCount:  8,
			Model:      "fake-doc-model",
		},
		{
			Text:   "chunk two",
			Fields: map[string]any{"visit_date": "2024-05-01"},
			Positioned: []provider.PositionedField{
				{Name: "visit_date", Value: "2024-05-01", Page: 1},
			},
			Confidence: 0.9,
			PageCount:  2,
		},
	}}

	result, err := p.ProcessFast(context.Background(), FastRequest{
		Content:  plainPDF(t, 10),
		Filename: "intake.pdf",
		OCR:      docOCR,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, docOCR.calls)
	assert.Equal(t, true, result.Metadata["chunked"])
	assert.Equal(t, 10, result.PageCount)
	assert.Equal(t, "chunk one\n\n--- Page Break ---\n\nchunk two", result.RawText)
	assert.Equal(t, "Jane Roe", result.ExtractedData["patient_name"])
	assert.Equal(t, "2024-05-01", result.ExtractedData["visit_date"])
	assert.Equal(t, 2, result.FieldCount)
}

func TestProcessChunkedPageRenumbering(t *testing.T) {
	p := NewProcessor(nil)

	// 10 pages -> chunks of 8 and 2. A field on chunk 2's second page
	// (in-chunk index 1) lands on document page index 9.
	docOCR := &fakeDocOCR{results: []*provider.DocumentResult{
		{
			Positioned: []provider.PositionedField{
				{Name: "patient_name", Value: "Jane Roe", Page: 0},
			},
			PageCount: 8,
		},
		{
			Positioned: []provider.PositionedField{
				{Name: "visit_date", Value: "2024-05-01", Page: 1},
			},
			PageCount: 2,
		},
	}}

	merged, err := p.processChunked(context.Background(), FastRequest{
		Content:  plainPDF(t, 10),
		Filename: "intake.pdf",
		OCR:      docOCR,
	}, 10, map[string]any{})
	require.NoError(t, err)

	require.Len(t, merged.Positioned, 2)
	assert.Equal(t, 0, merged.Positioned[0].Page)
	assert.Equal(t, 9, merged.Positioned[1].Page)
}

func TestProcessFastChunkFailureDropped(t *testing.T) {
	p := NewProcessor(nil)

	// Every call fails; the document still completes with empty results.
	docOCR := &fakeDocOCR{err: errors.New("rate limited")}

	result, err := p.ProcessFast(context.Background(), FastRequest{
		Content:  plainPDF(t, 10),
		Filename: "intake.pdf",
		OCR:      docOCR,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, docOCR.calls)
	assert.Empty(t, result.ExtractedData)
	assert.Equal(t, 0, result.FieldCount)
}
