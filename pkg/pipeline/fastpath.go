package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medintake/formpipe/pkg/overlay"
	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

// maxChunkPages bounds how many pages go into one document OCR call.
const maxChunkPages = 8

// FastRequest carries one document through the single-call pipeline.
type FastRequest struct {
	Content  []byte
	Filename string

	OCR provider.DocumentOCR

	Template []byte // optional blank PDF to overlay extracted values onto
}

// ProcessFast runs the single-call pipeline: one document OCR request
// yields text, fields and positions together. Large PDFs are processed in
// chunks; a failed chunk is dropped rather than failing the document.
func (p *Processor) ProcessFast(ctx context.Context, req FastRequest) (*FastResult, error) {
	start := time.Now()

	p.log.Info("starting fast pipeline",
		"filename", req.Filename,
		"file_size", len(req.Content),
		"has_template", req.Template != nil)

	metadata := map[string]any{
		"filename": req.Filename,
		"pipeline": "simplified",
	}
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	docResult, err := p.processDocument(ctx, req, metadata)
	if err != nil {
		return nil, stageError(classifyStage(err), err, metadata, elapsed())
	}

	metadata["ocr_model"] = docResult.Model
	metadata["page_count"] = docResult.PageCount
	metadata["field_count"] = len(docResult.Positioned)

	// Overlay onto the template when one was provided.
	var filledPDF []byte
	switch {
	case req.Template != nil && len(docResult.Positioned) > 0:
		overlayFields := overlay.ToPoints(docResult.Positioned, overlay.Letter)
		if len(overlayFields) == 0 {
			metadata["pdf_filled"] = false
			p.log.Warn("no fields with values to overlay")
			break
		}
		filledPDF, err = p.engine.Overlay(req.Template, overlayFields)
		if err != nil {
			metadata["pdf_filled"] = false
			metadata["pdf_fill_error"] = err.Error()
			p.log.Warn("could not overlay template", "error", err)
			break
		}
		metadata["pdf_filled"] = true
		metadata["overlay_field_count"] = len(overlayFields)
	case req.Template != nil:
		metadata["pdf_filled"] = false
		p.log.Warn("no field positions extracted, cannot fill template")
	default:
		metadata["pdf_filled"] = false
		p.log.Info("no template provided, skipping PDF filling")
	}

	return &FastResult{
		ExtractedData:    docResult.Fields,
		FilledPDF:        filledPDF,
		RawText:          docResult.Text,
		Confidence:       docResult.Confidence,
		ProcessingTimeMS: elapsed(),
		PageCount:        docResult.PageCount,
		FieldCount:       len(docResult.Positioned),
		Metadata:         metadata,
	}, nil
}

// processDocument runs the provider over the whole document, splitting
// large PDFs into chunks first.
func (p *Processor) processDocument(ctx context.Context, req FastRequest, metadata map[string]any) (*provider.DocumentResult, error) {
	mimeType := pagesplit.Detect(req.Content, req.Filename).MimeType()

	if pagesplit.IsPDF(req.Content, req.Filename) {
		total, err := pagesplit.PageCount(req.Content, req.Filename)
		if err != nil {
			return nil, err
		}
		if total > maxChunkPages {
			p.log.Info("processing large PDF in chunks",
				"pages", total, "chunk_size", maxChunkPages)
			return p.processChunked(ctx, req, total, metadata)
		}
	}

	return req.OCR.ProcessDocument(ctx, req.Content, mimeType)
}

// processChunked processes a large PDF chunk by chunk and merges the
// results, renumbering positioned fields back to document page indices.
func (p *Processor) processChunked(ctx context.Context, req FastRequest, total int, metadata map[string]any) (*provider.DocumentResult, error) {
	chunks, err := pagesplit.SplitChunks(req.Content, maxChunkPages)
	if err != nil {
		return nil, err
	}

	merged := &provider.DocumentResult{
		Fields:     make(map[string]any),
		Confidence: 0.9,
		PageCount:  total,
	}
	var texts []string

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := req.OCR.ProcessDocument(ctx, chunk.Content, "application/pdf")
		if err != nil {
			p.log.Warn("chunk failed",
				"pages", fmt.Sprintf("%d-%d", chunk.StartPage, chunk.StartPage+chunk.PageCount-1),
				"error", err)
			continue
		}

		for _, f := range result.Positioned {
			f.Page += chunk.StartPage - 1
			merged.Positioned = append(merged.Positioned, f)
		}
		for name, value := range result.Fields {
			merged.Fields[name] = value
		}
		if result.Text != "" {
			texts = append(texts, result.Text)
		}
		if merged.Model == "" {
			merged.Model = result.Model
		}
	}

	merged.Text = strings.Join(texts, provider.PageBreak)
	metadata["chunked"] = true

	p.log.Info("chunked processing complete",
		"total_pages", total, "field_count", len(merged.Positioned))

	return merged, nil
}
