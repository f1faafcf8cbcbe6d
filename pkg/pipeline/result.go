package pipeline

import "github.com/medintake/formpipe/pkg/provider"

// Result is the outcome of the full OCR, parse and fill pipeline.
type Result struct {
	ExtractedData    map[string]any
	FilledPDF        []byte // nil when no PDF was filled
	RawText          string
	OCRConfidence    float64
	LLMConfidence    float64
	FieldConfidences map[string]float64
	ProcessingTimeMS int64
	Metadata         map[string]any
}

// OverallConfidence blends the stage confidences, weighting OCR higher as
// it is the foundation the parse builds on.
func (r *Result) OverallConfidence() float64 {
	return r.OCRConfidence*0.6 + r.LLMConfidence*0.4
}

// LowConfidenceFields lists the parsed fields whose confidence falls below
// the threshold, sorted for stable output.
func (r *Result) LowConfidenceFields(threshold float64) []string {
	pr := provider.ParseResult{Confidences: r.FieldConfidences}
	return pr.LowConfidenceFields(threshold)
}

// FastResult is the outcome of the single-call document pipeline.
type FastResult struct {
	ExtractedData    map[string]any
	FilledPDF        []byte
	RawText          string
	Confidence       float64
	ProcessingTimeMS int64
	PageCount        int
	FieldCount       int
	Metadata         map[string]any
}
