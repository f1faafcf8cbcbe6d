// Package pipeline orchestrates intake form digitization: page splitting,
// OCR, structured parsing and PDF filling. The full pipeline composes
// separate OCR and parsing providers; the fast path delegates everything to
// a single document OCR call.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medintake/formpipe/pkg/acroform"
	"github.com/medintake/formpipe/pkg/overlay"
	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

// Processor runs documents through the pipeline.
type Processor struct {
	filler *acroform.Filler
	engine *overlay.Engine
	log    *slog.Logger
}

// NewProcessor creates a Processor. A nil logger falls back to
// slog.Default().
func NewProcessor(log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		filler: acroform.NewFiller(log),
		engine: overlay.NewEngine(log),
		log:    log,
	}
}

// Request carries one document through the full pipeline.
type Request struct {
	Content  []byte
	Filename string

	OCR       provider.OCR
	Parser    provider.Parser
	Positions provider.PositionExtractor // optional, enables the overlay fallback

	FieldHints []string
	Template   []byte // optional blank PDF to fill instead of the source
}

// Process runs the full pipeline: split into pages, extract text, parse
// into fields, then fill a PDF. Filling is best-effort: a fill failure is
// recorded in the metadata, not returned as an error.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	p.log.Info("starting pipeline",
		"filename", req.Filename,
		"ocr_provider", req.OCR.Name(),
		"llm_provider", req.Parser.Name(),
		"file_size", len(req.Content),
		"has_template", req.Template != nil)

	metadata := map[string]any{
		"ocr_provider":  req.OCR.Name(),
		"llm_provider":  req.Parser.Name(),
		"filename":      req.Filename,
		"template_mode": req.Template != nil,
	}
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	// Stage 1: split into page units.
	pages, err := pagesplit.Paginate(req.Content, req.Filename)
	if err != nil {
		return nil, stageError(StageConversion, err, metadata, elapsed())
	}
	metadata["page_count"] = len(pages)

	// Stage 2: OCR.
	ocrResult, err := req.OCR.ExtractText(ctx, pages)
	if err != nil {
		return nil, stageError(StageOCR, err, metadata, elapsed())
	}
	metadata["ocr_model"] = ocrResult.Model
	p.log.Info("ocr complete", "confidence", fmt.Sprintf("%.2f", ocrResult.Confidence))

	// Stage 3: parse into fields.
	parseResult, err := req.Parser.ParseToJSON(ctx, ocrResult.Text, req.FieldHints)
	if err != nil {
		return nil, stageError(StageParsing, err, metadata, elapsed())
	}
	metadata["llm_model"] = parseResult.Model
	p.log.Info("parsing complete",
		"field_count", len(parseResult.Fields),
		"confidence", fmt.Sprintf("%.2f", parseResult.Confidence))

	// Stage 4: fill a PDF, preferring the template over the source.
	filledPDF := p.fillPDF(ctx, req, pages, parseResult.Fields, metadata)

	return &Result{
		ExtractedData:    parseResult.Fields,
		FilledPDF:        filledPDF,
		RawText:          ocrResult.Text,
		OCRConfidence:    ocrResult.Confidence,
		LLMConfidence:    parseResult.Confidence,
		FieldConfidences: parseResult.Confidences,
		ProcessingTimeMS: elapsed(),
		Metadata:         metadata,
	}, nil
}

// fillPDF decides which PDF to fill and how. AcroForm filling is used when
// the target has interactive fields; otherwise field positions are
// extracted and the values overlaid as text. All failures are soft.
func (p *Processor) fillPDF(ctx context.Context, req Request, pages []pagesplit.Page, values map[string]any, metadata map[string]any) []byte {
	target, fillType := p.fillTarget(req)
	if target == nil {
		metadata["pdf_filled"] = false
		p.log.Info("skipping PDF filling, no template provided and input is not a PDF")
		return nil
	}

	fields, err := acroform.Fields(target)
	if err != nil {
		p.log.Warn("could not inspect PDF form", "error", err)
		metadata["pdf_filled"] = false
		metadata["pdf_fill_error"] = err.Error()
		return nil
	}

	if len(fields) > 0 {
		p.log.Info("filling PDF via AcroForm", "form_fields", len(fields), "fill_type", fillType)
		filled, err := p.filler.Fill(target, values, false)
		if err != nil {
			p.log.Warn("could not fill PDF form", "error", err)
			metadata["pdf_filled"] = false
			metadata["pdf_fill_error"] = err.Error()
			return nil
		}
		metadata["pdf_filled"] = true
		metadata["pdf_fill_method"] = "acroform"
		metadata["pdf_fill_type"] = fillType + "_acroform"
		return filled
	}

	// No interactive fields: fall back to a text overlay.
	metadata["pdf_fill_method"] = "overlay"
	if req.Positions == nil {
		metadata["pdf_filled"] = false
		metadata["pdf_fill_error"] = "no position extractor configured"
		return nil
	}

	positioned := p.extractPositions(ctx, req.Positions, pages)
	if len(positioned) == 0 {
		p.log.Warn("no field positions extracted, cannot overlay")
		metadata["pdf_filled"] = false
		metadata["pdf_fill_error"] = "No field positions detected"
		return nil
	}

	overlayFields := overlay.ToPoints(positioned, targetPageSize(target))
	filled, err := p.engine.Overlay(target, overlayFields)
	if err != nil {
		p.log.Warn("could not overlay PDF", "error", err)
		metadata["pdf_filled"] = false
		metadata["pdf_fill_error"] = err.Error()
		return nil
	}
	metadata["pdf_filled"] = true
	metadata["pdf_fill_type"] = fillType + "_overlay"
	metadata["overlay_field_count"] = len(overlayFields)
	p.log.Info("PDF filled via text overlay", "overlay_fields", len(overlayFields))
	return filled
}

// fillTarget picks the PDF to fill: the template when provided, the source
// when it is itself a PDF, otherwise nothing.
func (p *Processor) fillTarget(req Request) ([]byte, string) {
	if req.Template != nil {
		return req.Template, "template"
	}
	if strings.HasSuffix(strings.ToLower(req.Filename), ".pdf") || pagesplit.IsPDF(req.Content, req.Filename) {
		return req.Content, "source"
	}
	return nil, ""
}

// targetPageSize reads the fill target's first-page geometry so percentage
// positions scale against the actual page, falling back to US Letter when
// the target cannot be read.
func targetPageSize(target []byte) overlay.PageSize {
	sizes, err := overlay.PageSizes(target)
	if err != nil || len(sizes) == 0 {
		return overlay.Letter
	}
	return sizes[0]
}

// extractPositions runs position extraction over every page, tagging each
// field with its page index. Page failures are logged and skipped.
func (p *Processor) extractPositions(ctx context.Context, extractor provider.PositionExtractor, pages []pagesplit.Page) []provider.PositionedField {
	var positioned []provider.PositionedField
	for i, page := range pages {
		result, err := extractor.ExtractWithPositions(ctx, page.Content, page.Type.MimeType())
		if err != nil {
			p.log.Warn("position extraction failed", "page", i+1, "error", err)
			continue
		}
		for _, f := range result.Fields {
			f.Page = i
			positioned = append(positioned, f)
		}
	}
	return positioned
}
