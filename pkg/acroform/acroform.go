// Package acroform reads and fills the interactive (AcroForm) fields of a
// PDF document.
//
// Field descriptors are read by walking the document catalog's AcroForm
// dictionary. Filling produces a new PDF byte stream; the input bytes are
// never modified. A PDF without interactive fields is not an error: both
// Fields and Fill treat it as "nothing to do", which callers use to decide
// whether to fall back to a coordinate overlay instead.
package acroform

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// FieldType classifies an interactive form field.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldCheckbox  FieldType = "checkbox"
	FieldRadio     FieldType = "radio"
	FieldChoice    FieldType = "choice"
	FieldSignature FieldType = "signature"
	FieldUnknown   FieldType = "unknown"
)

// Field describes one interactive form field of a PDF.
type Field struct {
	Name    string
	Type    FieldType
	Value   any
	Options []string
}

// FormFillingError reports a malformed target PDF or an unrecoverable fill
// failure. Individual field write failures are not FormFillingErrors; they
// are logged and skipped.
type FormFillingError struct {
	Msg string
	Err error
}

func (e *FormFillingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FormFillingError) Unwrap() error { return e.Err }

// Fields extracts descriptors for every interactive field of the PDF.
// A PDF without an AcroForm dictionary yields an empty slice, not an error.
func Fields(pdfContent []byte) ([]Field, error) {
	if len(pdfContent) == 0 {
		return nil, &FormFillingError{Msg: "empty PDF content"}
	}
	ctx, err := readContext(pdfContent)
	if err != nil {
		return nil, &FormFillingError{Msg: "failed to read PDF form", Err: err}
	}
	entries, err := fieldEntries(ctx)
	if err != nil {
		return nil, &FormFillingError{Msg: "failed to read PDF form", Err: err}
	}
	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, e.descriptor(ctx))
	}
	return fields, nil
}

func readContext(pdfContent []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(pdfContent), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// fieldEntry pairs a field's resolved metadata with its live dictionary so
// the fill path can write values back through it.
type fieldEntry struct {
	name string
	typ  FieldType
	dict types.Dict
}

func (e *fieldEntry) descriptor(ctx *model.Context) Field {
	f := Field{Name: e.name, Type: e.typ}
	if valueObj, found := e.dict.Find("V"); found {
		f.Value = fieldValue(ctx, valueObj, e.typ)
	}
	if e.typ == FieldChoice || e.typ == FieldRadio {
		f.Options = fieldOptions(ctx, e.dict)
	}
	return f
}

// fieldEntries walks catalog -> AcroForm -> Fields and resolves each entry.
func fieldEntries(ctx *model.Context) ([]fieldEntry, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	var entries []fieldEntry
	for i, fieldRef := range fieldsArray {
		fieldDict, err := ctx.DereferenceDict(fieldRef)
		if err != nil || fieldDict == nil {
			continue
		}
		entry := fieldEntry{dict: fieldDict}

		if nameObj, found := fieldDict.Find("T"); found {
			if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
				entry.name = name
			}
		}
		if entry.name == "" {
			entry.name = fmt.Sprintf("field_%d", i)
		}
		entry.typ = fieldType(ctx, fieldDict)

		entries = append(entries, entry)
	}
	return entries, nil
}

// fieldType maps the FT entry (with button flags) to a FieldType,
// consulting the parent for inherited FT entries.
func fieldType(ctx *model.Context, fieldDict types.Dict) FieldType {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldType(ctx, parentDict)
			}
		}
		return FieldUnknown
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FieldUnknown
	}

	switch ftName {
	case "Btn":
		if flagsObj, found := fieldDict.Find("Ff"); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if (*flags & (1 << 15)) != 0 { // bit 16: radio
					return FieldRadio
				}
			}
		}
		return FieldCheckbox
	case "Tx":
		return FieldText
	case "Ch":
		return FieldChoice
	case "Sig":
		return FieldSignature
	default:
		return FieldUnknown
	}
}

func fieldValue(ctx *model.Context, valueObj types.Object, typ FieldType) any {
	switch typ {
	case FieldCheckbox:
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			return name == "Yes" || name == "On"
		}
	case FieldRadio:
		if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			return name
		}
	default:
		if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return val
		}
	}
	return nil
}

func fieldOptions(ctx *model.Context, fieldDict types.Dict) []string {
	optObj, found := fieldDict.Find("Opt")
	if !found {
		return nil
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			// [export_value, display_value] pairs; keep the display value.
			if display, err := ctx.DereferenceStringOrHexLiteral(arr[1], model.V10, nil); err == nil {
				options = append(options, display)
			}
		}
	}
	return options
}
