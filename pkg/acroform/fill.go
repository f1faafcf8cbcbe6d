package acroform

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/medintake/formpipe/pkg/fieldmap"
)

// Filler writes extracted values into the interactive fields of a PDF.
type Filler struct {
	log *slog.Logger
}

// NewFiller creates a Filler. A nil logger falls back to slog.Default().
func NewFiller(log *slog.Logger) *Filler {
	if log == nil {
		log = slog.Default()
	}
	return &Filler{log: log}
}

// Fill matches the keys of values against the PDF's field names and writes
// the matched values, returning a new PDF byte stream. The input is never
// modified.
//
// Empty values, a PDF with no interactive fields, and a values set that
// matches none of them all return the input unchanged. Null values are
// skipped, preserving whatever the field already holds. A field that
// cannot be written is logged and skipped; only a PDF that cannot be read
// or rewritten produces a FormFillingError.
//
// With flatten set, every annotation is removed from the output so the
// written values become part of the static page content.
func (f *Filler) Fill(pdfContent []byte, values map[string]any, flatten bool) ([]byte, error) {
	if len(pdfContent) == 0 {
		return nil, &FormFillingError{Msg: "empty PDF content"}
	}
	if len(values) == 0 {
		return pdfContent, nil
	}

	ctx, err := readContext(pdfContent)
	if err != nil {
		return nil, &FormFillingError{Msg: "failed to read PDF form", Err: err}
	}
	entries, err := fieldEntries(ctx)
	if err != nil {
		return nil, &FormFillingError{Msg: "failed to read PDF form", Err: err}
	}
	if len(entries) == 0 {
		f.log.Info("PDF has no interactive form fields, returning unchanged")
		return pdfContent, nil
	}

	pdfNames := make([]string, 0, len(entries))
	for _, e := range entries {
		pdfNames = append(pdfNames, e.name)
	}
	dataNames := make([]string, 0, len(values))
	for name := range values {
		dataNames = append(dataNames, name)
	}
	mapping := fieldmap.Build(pdfNames, dataNames)
	if len(mapping) == 0 {
		f.log.Info("no form fields matched the extracted data, returning unchanged",
			"pdf_fields", len(pdfNames), "data_fields", len(dataNames))
		return pdfContent, nil
	}

	filled := 0
	for i := range entries {
		entry := &entries[i]
		dataName, ok := mapping[entry.name]
		if !ok {
			continue
		}
		// A null extraction means the value was unreadable; leave the
		// field's current value alone.
		if values[dataName] == nil {
			continue
		}
		if err := writeFieldValue(entry, values[dataName]); err != nil {
			f.log.Warn("skipping form field", "field", entry.name, "error", err)
			continue
		}
		filled++
	}
	f.log.Info("filled form fields", "filled", filled, "total", len(entries))

	if err := setNeedAppearances(ctx); err != nil {
		return nil, &FormFillingError{Msg: "failed to update AcroForm dictionary", Err: err}
	}
	if flatten {
		f.flattenAnnotations(ctx)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, &FormFillingError{Msg: "failed to write filled PDF", Err: err}
	}
	return buf.Bytes(), nil
}

// writeFieldValue sets the field's V entry according to its type and drops
// any stale appearance stream so viewers regenerate it.
func writeFieldValue(entry *fieldEntry, value any) error {
	switch entry.typ {
	case FieldSignature:
		return fmt.Errorf("signature fields cannot be filled")
	case FieldCheckbox:
		state := types.Name("Off")
		if isAffirmative(value) {
			state = types.Name("Yes")
		}
		entry.dict["V"] = state
		entry.dict["AS"] = state
	case FieldRadio:
		entry.dict["V"] = types.Name(fieldmap.FormatValue(value))
	default:
		entry.dict["V"] = types.StringLiteral(escapeLiteral(fieldmap.FormatValue(value)))
	}
	delete(entry.dict, "AP")
	return nil
}

// isAffirmative interprets an extracted value as a checkbox on-state.
func isAffirmative(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch v {
		case "Yes", "yes", "true", "True", "on", "On", "checked", "1":
			return true
		}
	}
	return false
}

// escapeLiteral escapes the characters with special meaning inside a PDF
// string literal.
func escapeLiteral(s string) string {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// setNeedAppearances asks viewers to regenerate field appearance streams,
// since the fields were rewritten without new ones.
func setNeedAppearances(ctx *model.Context) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict != nil {
		acroFormDict["NeedAppearances"] = types.Boolean(true)
	}
	return nil
}

// flattenAnnotations removes the Annots entry from every page, turning the
// filled values into static content. Pages that cannot be resolved are
// logged and left as they are.
func (f *Filler) flattenAnnotations(ctx *model.Context) {
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			f.log.Warn("cannot flatten page", "page", pageNr, "error", err)
			continue
		}
		delete(pageDict, "Annots")
	}
}
