package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/medintake/formpipe/pkg/acroform"
	"github.com/medintake/formpipe/pkg/overlay"
	"github.com/medintake/formpipe/pkg/pagesplit"
)

// Pipeline stages, as reported in Error.Stage.
const (
	StageConversion = "conversion"
	StageOCR        = "ocr"
	StageParsing    = "parsing"
	StagePDFFilling = "pdf_filling"
	StageUnknown    = "unknown"
)

// Error reports a pipeline failure together with the stage it happened in
// and the metadata accumulated up to that point.
type Error struct {
	Stage   string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// stageError wraps err as a pipeline Error for the given stage, copying the
// accumulated metadata into the details.
func stageError(stage string, err error, metadata map[string]any, elapsedMS int64) *Error {
	details := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		details[k] = v
	}
	details["processing_time_ms"] = elapsedMS

	return &Error{
		Stage:   stage,
		Message: err.Error(),
		Details: details,
		Err:     err,
	}
}

// classifyStage assigns a stage to an error that was not tagged at its
// raise site: first by error type, then by message substrings.
func classifyStage(err error) string {
	var convErr *pagesplit.ConversionError
	if errors.As(err, &convErr) {
		return StageConversion
	}
	var fillErr *acroform.FormFillingError
	if errors.As(err, &fillErr) {
		return StagePDFFilling
	}
	var overlayErr *overlay.TextOverlayError
	if errors.As(err, &overlayErr) {
		return StagePDFFilling
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "convert"):
		return StageConversion
	case strings.Contains(msg, "ocr"):
		return StageOCR
	case strings.Contains(msg, "parse"), strings.Contains(msg, "llm"):
		return StageParsing
	case strings.Contains(msg, "fill"), strings.Contains(msg, "pdf"):
		return StagePDFFilling
	default:
		return StageUnknown
	}
}
