package provider

import "strings"

// contentMarkers are substrings whose presence suggests the OCR text really
// is an intake form rather than noise.
var contentMarkers = []string{"name:", "date:", "address:", "phone:"}

// EstimateTextConfidence scores extracted text by simple content heuristics,
// starting from the provider's base confidence.
func EstimateTextConfidence(text string, base float64) float64 {
	if len(text) < 10 {
		return 0.2
	}
	conf := base
	if len(text) > 100 {
		conf += 0.1
	}
	lower := strings.ToLower(text)
	for _, marker := range contentMarkers {
		if strings.Contains(lower, marker) {
			conf += 0.1
			break
		}
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// EstimateDataConfidence scores a parsed field set by completeness: the
// fraction of fields carrying a non-empty value. Used when the model did
// not report per-field confidences.
func EstimateDataConfidence(fields map[string]any) float64 {
	if len(fields) == 0 {
		return 0.0
	}
	filled := 0
	for _, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) != "" {
				filled++
			}
		default:
			filled++
		}
	}
	completeness := float64(filled) / float64(len(fields))
	conf := 0.5 + completeness*0.4
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// ClampConfidence bounds a reported confidence to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// fieldConfidencesKey is the reserved key models use to report per-field
// confidences alongside the extracted fields.
const fieldConfidencesKey = "_field_confidences"

// PopFieldConfidences removes the reserved per-field confidence entry from
// a parsed field set and returns it as a clamped map. Missing or malformed
// entries yield an empty map.
func PopFieldConfidences(fields map[string]any) map[string]float64 {
	confidences := make(map[string]float64)
	raw, ok := fields[fieldConfidencesKey]
	if !ok {
		return confidences
	}
	delete(fields, fieldConfidencesKey)

	rawMap, ok := raw.(map[string]any)
	if !ok {
		return confidences
	}
	for name, v := range rawMap {
		if f, ok := v.(float64); ok {
			confidences[name] = ClampConfidence(f)
		}
	}
	return confidences
}

// CleanJSON strips Markdown code fences that chat models wrap around JSON
// output.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
