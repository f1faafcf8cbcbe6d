package acroform

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal one-page PDF from numbered object bodies,
// computing the xref table offsets so the result parses strictly.
func buildPDF(t *testing.T, objects []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)
	return buf.Bytes()
}

// formPDF returns a one-page PDF with two text fields and a checkbox.
func formPDF(t *testing.T) []byte {
	t.Helper()
	return buildPDF(t, []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R 6 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R 5 0 R 6 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (patient_name) /Rect [100 700 300 720] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (date_of_birth) /Rect [100 650 300 670] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Btn /T (has_allergies) /Rect [100 600 120 620] >>",
	})
}

// plainPDF returns a one-page PDF without an AcroForm dictionary.
func plainPDF(t *testing.T) []byte {
	t.Helper()
	return buildPDF(t, []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	})
}

func TestFields(t *testing.T) {
	fields, err := Fields(formPDF(t))
	require.NoError(t, err)
	require.Len(t, fields, 3)

	names := make(map[string]FieldType, len(fields))
	for _, f := range fields {
		names[f.Name] = f.Type
	}
	assert.Equal(t, FieldText, names["patient_name"])
	assert.Equal(t, FieldText, names["date_of_birth"])
	assert.Equal(t, FieldCheckbox, names["has_allergies"])
}

func TestFieldsNoForm(t *testing.T) {
	fields, err := Fields(plainPDF(t))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFieldsEmptyContent(t *testing.T) {
	_, err := Fields(nil)
	require.Error(t, err)

	var ffe *FormFillingError
	assert.ErrorAs(t, err, &ffe)
}

func TestFieldsInvalidContent(t *testing.T) {
	_, err := Fields([]byte("not a pdf at all"))
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	filler := NewFiller(slog.Default())

	values := map[string]any{
		"patient_name":  "Jane Roe",
		"date_of_birth": "1980-01-01",
		"has_allergies": true,
	}
	out, err := filler.Fill(formPDF(t), values, false)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.NotEqual(t, formPDF(t), out)

	// The rewritten form carries the values.
	fields, err := Fields(out)
	require.NoError(t, err)
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "Jane Roe", byName["patient_name"].Value)
	assert.Equal(t, "1980-01-01", byName["date_of_birth"].Value)
	assert.Equal(t, true, byName["has_allergies"].Value)
}

func TestFillPartialMatch(t *testing.T) {
	filler := NewFiller(nil)

	values := map[string]any{
		"PatientName":   "John Q Public", // matches via normalization
		"no_such_field": "ignored",
		"has_allergies": false,
	}
	out, err := filler.Fill(formPDF(t), values, false)
	require.NoError(t, err)

	fields, err := Fields(out)
	require.NoError(t, err)
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "John Q Public", byName["patient_name"].Value)
	assert.Nil(t, byName["date_of_birth"].Value)
}

func TestFillNilValuePreservesExisting(t *testing.T) {
	filler := NewFiller(nil)

	in := buildPDF(t, []string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R 5 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R 5 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (patient_name) /V (Jane Prior) /Rect [100 700 300 720] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (date_of_birth) /Rect [100 650 300 670] >>",
	})

	// A null extraction must not clear the field's prior value.
	values := map[string]any{
		"patient_name":  nil,
		"date_of_birth": "1980-01-01",
	}
	out, err := filler.Fill(in, values, false)
	require.NoError(t, err)

	fields, err := Fields(out)
	require.NoError(t, err)
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "Jane Prior", byName["patient_name"].Value)
	assert.Equal(t, "1980-01-01", byName["date_of_birth"].Value)
}

func TestFillNoValues(t *testing.T) {
	filler := NewFiller(nil)
	in := formPDF(t)

	out, err := filler.Fill(in, nil, false)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFillNoFormFields(t *testing.T) {
	filler := NewFiller(nil)
	in := plainPDF(t)

	out, err := filler.Fill(in, map[string]any{"patient_name": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFillNoMatches(t *testing.T) {
	filler := NewFiller(nil)
	in := formPDF(t)

	out, err := filler.Fill(in, map[string]any{"unrelated": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFillEmptyContent(t *testing.T) {
	filler := NewFiller(nil)
	_, err := filler.Fill(nil, map[string]any{"a": "b"}, false)
	assert.Error(t, err)
}

func TestFillFlatten(t *testing.T) {
	filler := NewFiller(nil)

	out, err := filler.Fill(formPDF(t), map[string]any{"patient_name": "Jane Roe"}, true)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.NotContains(t, string(out), "/Annots")
}

func TestEscapeLiteral(t *testing.T) {
	assert.Equal(t, `a\(b\)c`, escapeLiteral("a(b)c"))
	assert.Equal(t, `a\\b`, escapeLiteral(`a\b`))
	assert.Equal(t, `line1\nline2`, escapeLiteral("line1\nline2"))
	assert.Equal(t, "plain", escapeLiteral("plain"))
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, isAffirmative(true))
	assert.True(t, isAffirmative("Yes"))
	assert.True(t, isAffirmative("checked"))
	assert.False(t, isAffirmative(false))
	assert.False(t, isAffirmative("No"))
	assert.False(t, isAffirmative(nil))
	assert.False(t, isAffirmative(42))
}
