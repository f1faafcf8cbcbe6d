package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExactMatch(t *testing.T) {
	pdfFields := []string{"patient_name", "date_of_birth"}
	dataFields := []string{"patient_name", "date_of_birth"}

	mapping := Build(pdfFields, dataFields)

	assert.Equal(t, "patient_name", mapping["patient_name"])
	assert.Equal(t, "date_of_birth", mapping["date_of_birth"])
}

func TestBuildCaseInsensitive(t *testing.T) {
	pdfFields := []string{"PatientName", "DateOfBirth"}
	dataFields := []string{"patient_name", "date_of_birth"}

	mapping := Build(pdfFields, dataFields)

	assert.Equal(t, "patient_name", mapping["PatientName"])
	assert.Equal(t, "date_of_birth", mapping["DateOfBirth"])
}

func TestBuildPrefixStripping(t *testing.T) {
	pdfFields := []string{"txtPatientName", "chkHasDiabetes"}
	dataFields := []string{"patient_name", "has_diabetes"}

	mapping := Build(pdfFields, dataFields)

	assert.Equal(t, "patient_name", mapping["txtPatientName"])
	assert.Equal(t, "has_diabetes", mapping["chkHasDiabetes"])
}

func TestBuildNormalizedAgainstStrippedData(t *testing.T) {
	// The data side carries the noise prefix, the PDF side does not.
	mapping := Build([]string{"patient_name"}, []string{"txt_patient_name"})

	assert.Equal(t, "txt_patient_name", mapping["patient_name"])
}

func TestBuildNoMatch(t *testing.T) {
	mapping := Build([]string{"field_a"}, []string{"completely_different"})

	assert.NotContains(t, mapping, "field_a")
	assert.Empty(t, mapping)
}

func TestBuildEmptyInputs(t *testing.T) {
	assert.Empty(t, Build(nil, nil))
	assert.Empty(t, Build([]string{"a"}, nil))
	assert.Empty(t, Build(nil, []string{"a"}))
}

func TestBuildDeterministicTieBreak(t *testing.T) {
	// Both data names normalize to the same key; the lexicographically
	// last one must win, regardless of input order.
	first := Build([]string{"patientname"}, []string{"patient_name", "patient-name"})
	second := Build([]string{"patientname"}, []string{"patient-name", "patient_name"})

	assert.Equal(t, first["patientname"], second["patientname"])
	assert.Equal(t, "patient_name", first["patientname"])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "patientname", Normalize("Patient_Name"))
	assert.Equal(t, "patientname", Normalize("patient name"))
	assert.Equal(t, "patientname", Normalize("patient-name"))
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "patientname", StripPrefix("txtPatientName"))
	assert.Equal(t, "hasdiabetes", StripPrefix("chkHasDiabetes"))
	assert.Equal(t, "name", StripPrefix("frm_name"))
	// Only the front of the name is stripped, and only once.
	assert.Equal(t, "nametxt", StripPrefix("name_txt"))
}
