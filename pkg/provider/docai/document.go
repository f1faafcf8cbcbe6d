package docai

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/medintake/formpipe/pkg/provider"
)

// textFromLayout extracts text from a layout's text anchor segments.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	runes := []rune(fullText)
	result := strings.Builder{}
	totalRunes := len(runes)

	for _, seg := range layout.TextAnchor.TextSegments {
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > totalRunes {
			end = totalRunes
		}
		if start > end {
			start = end
		}
		result.WriteString(string(runes[start:end]))
	}
	return result.String()
}

// FormFields combines form fields from all pages into a single map.
// Duplicate keys collapse into arrays of values.
func FormFields(doc *documentaipb.Document) map[string]any {
	fields := make(map[string]any)

	for _, page := range doc.GetPages() {
		for _, field := range page.GetFormFields() {
			key := strings.TrimSpace(textFromLayout(field.FieldName, doc.GetText()))
			key = strings.TrimSuffix(key, ":")
			value := strings.TrimSpace(textFromLayout(field.FieldValue, doc.GetText()))

			if key == "" {
				continue
			}

			if existing, exists := fields[key]; exists {
				switch v := existing.(type) {
				case string:
					if v != value {
						fields[key] = []string{v, value}
					}
				case []string:
					fields[key] = append(v, value)
				}
			} else {
				fields[key] = value
			}
		}
	}

	return fields
}

// positionedFields converts the form fields of every page to percent-based
// positions, taking the box of the field value rather than its label.
func positionedFields(doc *documentaipb.Document) []provider.PositionedField {
	var fields []provider.PositionedField

	for pageIdx, page := range doc.GetPages() {
		for _, field := range page.GetFormFields() {
			name := strings.TrimSpace(textFromLayout(field.FieldName, doc.GetText()))
			name = strings.TrimSuffix(name, ":")
			value := strings.TrimSpace(textFromLayout(field.FieldValue, doc.GetText()))
			if name == "" {
				continue
			}

			pf := provider.PositionedField{
				Name:          name,
				Value:         value,
				WidthPercent:  20,
				HeightPercent: 3,
				Confidence:    provider.ClampConfidence(float64(field.GetFieldValue().GetConfidence())),
				Page:          pageIdx,
			}

			if box := boundingBox(field.GetFieldValue()); box != nil {
				pf.XPercent = box[0] * 100
				pf.YPercent = box[1] * 100
				if w := (box[2] - box[0]) * 100; w > 0 {
					pf.WidthPercent = w
				}
				if h := (box[3] - box[1]) * 100; h > 0 {
					pf.HeightPercent = h
				}
			}

			fields = append(fields, pf)
		}
	}

	return fields
}

// boundingBox returns [minX, minY, maxX, maxY] in normalized 0..1
// coordinates, or nil when the layout carries no vertices.
func boundingBox(layout *documentaipb.Document_Page_Layout) []float64 {
	vertices := layout.GetBoundingPoly().GetNormalizedVertices()
	if len(vertices) == 0 {
		return nil
	}

	minX, minY := float64(vertices[0].GetX()), float64(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	return []float64{minX, minY, maxX, maxY}
}

// ToJSON renders a value as JSON, using protojson for proto messages.
// Used for raw API response dumps when debugging.
func ToJSON(data any) (string, error) {
	switch v := data.(type) {
	case proto.Message:
		jsonData, err := protojson.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(jsonData), nil

	default:
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonData), nil
	}
}
