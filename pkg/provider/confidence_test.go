package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTextConfidence(t *testing.T) {
	// Too short to mean anything.
	assert.Equal(t, 0.2, EstimateTextConfidence("short", 0.7))
	assert.Equal(t, 0.2, EstimateTextConfidence("", 0.9))

	// Base only: enough characters, no markers, under 100 chars.
	assert.InDelta(t, 0.7, EstimateTextConfidence("some ocr text result here", 0.7), 0.001)

	// Long text earns a bonus.
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	assert.InDelta(t, 0.8, EstimateTextConfidence(string(long), 0.7), 0.001)

	// Form markers earn a bonus, once.
	withMarkers := "Name: Jane Roe\nDate: 2024-01-01\nPhone: 555-1234"
	assert.InDelta(t, 0.8, EstimateTextConfidence(withMarkers, 0.7), 0.001)

	// Capped at 0.95.
	longForm := withMarkers + string(long)
	assert.InDelta(t, 0.95, EstimateTextConfidence(longForm, 0.8), 0.001)
}

func TestEstimateDataConfidence(t *testing.T) {
	assert.Equal(t, 0.0, EstimateDataConfidence(nil))
	assert.Equal(t, 0.0, EstimateDataConfidence(map[string]any{}))

	// All filled: 0.5 + 1.0*0.4
	full := map[string]any{"a": "x", "b": true, "c": 1.0}
	assert.InDelta(t, 0.9, EstimateDataConfidence(full), 0.001)

	// Half filled: 0.5 + 0.5*0.4
	half := map[string]any{"a": "x", "b": nil, "c": "y", "d": "  "}
	assert.InDelta(t, 0.7, EstimateDataConfidence(half), 0.001)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.5))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
}

func TestPopFieldConfidences(t *testing.T) {
	fields := map[string]any{
		"patient_name": "Jane Roe",
		"_field_confidences": map[string]any{
			"patient_name": 0.85,
			"too_high":     1.5,
			"bogus":        "high",
		},
	}

	confs := PopFieldConfidences(fields)

	assert.NotContains(t, fields, "_field_confidences")
	assert.InDelta(t, 0.85, confs["patient_name"], 0.001)
	assert.Equal(t, 1.0, confs["too_high"])
	assert.NotContains(t, confs, "bogus")
}

func TestPopFieldConfidencesMissing(t *testing.T) {
	fields := map[string]any{"patient_name": "Jane Roe"}
	assert.Empty(t, PopFieldConfidences(fields))
	assert.Contains(t, fields, "patient_name")
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, CleanJSON("  {\"a\":1}  "))
}

func TestLowConfidenceFields(t *testing.T) {
	r := &ParseResult{Confidences: map[string]float64{
		"solid":  0.9,
		"shaky":  0.4,
		"barely": 0.69,
	}}

	assert.Equal(t, []string{"barely", "shaky"}, r.LowConfidenceFields(0.7))
	assert.Empty(t, r.LowConfidenceFields(0.1))
}
