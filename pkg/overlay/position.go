package overlay

import "github.com/medintake/formpipe/pkg/provider"

// PageSize is a page's dimensions in PDF points.
type PageSize struct {
	Width  float64
	Height float64
}

// Letter is the fallback page size when a page's MediaBox cannot be read.
var Letter = PageSize{Width: 612, Height: 792}

// DefaultFontSize is used for overlay text when a field does not set one.
const DefaultFontSize = 10.0

// FieldPosition places one value on a page, in PDF points with a top-left
// origin. Page is 0-based. A zero Width marks the value as single-line;
// a positive Width requests a wrapped text box.
type FieldPosition struct {
	Name     string
	Value    string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Page     int
	FontSize float64
}

// ToPoints converts percent-based positioned fields to point coordinates on
// the given page size. Fields with an empty value are dropped; coordinates
// are scaled linearly and deliberately not clamped to the page.
func ToPoints(fields []provider.PositionedField, size PageSize) []FieldPosition {
	positions := make([]FieldPosition, 0, len(fields))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		positions = append(positions, FieldPosition{
			Name:   f.Name,
			Value:  f.Value,
			X:      f.XPercent / 100 * size.Width,
			Y:      f.YPercent / 100 * size.Height,
			Width:  f.WidthPercent / 100 * size.Width,
			Height: f.HeightPercent / 100 * size.Height,
			Page:   f.Page,
		})
	}
	return positions
}
