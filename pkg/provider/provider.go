// Package provider defines the contracts between the intake pipeline and
// the external extraction services. Each capability is its own small
// interface so a single backend can implement any subset: plain text OCR,
// structured parsing, position-aware field extraction, and whole-document
// processing in one call.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/medintake/formpipe/pkg/pagesplit"
)

// Provider identifiers as they appear in configuration and result metadata.
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderDocAI   = "google_docai"
	ProviderOpenAI  = "openai"
)

// PageBreak separates per-page texts in a combined document text.
const PageBreak = "\n\n--- Page Break ---\n\n"

// Error reports a failure inside a specific extraction provider.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// OCRResult is the outcome of plain text extraction over a document.
type OCRResult struct {
	Text       string  // combined text, pages separated by PageBreak
	Confidence float64 // 0..1
	Pages      int
	Model      string
}

// ParseResult is the outcome of structuring raw text into named fields.
type ParseResult struct {
	Fields      map[string]any
	Confidences map[string]float64 // per-field, 0..1
	Confidence  float64            // overall, 0..1
	Model       string
}

// LowConfidenceFields returns the names of fields whose per-field
// confidence falls below the threshold, sorted for stable output.
func (r *ParseResult) LowConfidenceFields(threshold float64) []string {
	var names []string
	for name, conf := range r.Confidences {
		if conf < threshold {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PositionedField is a field value located on a page. Coordinates are
// percentages of the page dimensions, measured from the top-left corner.
// Page is a 0-based page index.
type PositionedField struct {
	Name          string
	Value         string
	XPercent      float64
	YPercent      float64
	WidthPercent  float64
	HeightPercent float64
	Confidence    float64
	Page          int
}

// PositionResult is the outcome of position-aware field extraction.
type PositionResult struct {
	Fields []PositionedField
	Model  string
}

// PageDimension is a page's size in PDF points.
type PageDimension struct {
	Width  float64
	Height float64
}

// DocumentResult is the outcome of whole-document processing: text, fields
// and positions obtained from a single provider call.
type DocumentResult struct {
	Text       string
	Fields     map[string]any
	Positioned []PositionedField
	Confidence float64
	PageCount  int
	Dimensions []PageDimension
	Model      string
}

// OCR extracts plain text from document pages.
type OCR interface {
	Name() string
	ExtractText(ctx context.Context, pages []pagesplit.Page) (*OCRResult, error)
}

// Parser structures raw document text into named fields.
type Parser interface {
	Name() string
	ParseToJSON(ctx context.Context, text string, hints []string) (*ParseResult, error)
}

// PositionExtractor locates field values on a page image or PDF.
type PositionExtractor interface {
	Name() string
	ExtractWithPositions(ctx context.Context, content []byte, mimeType string) (*PositionResult, error)
}

// DocumentOCR processes a whole document in one call, returning text,
// structured fields and positions together.
type DocumentOCR interface {
	Name() string
	ProcessDocument(ctx context.Context, content []byte, mimeType string) (*DocumentResult, error)
}
