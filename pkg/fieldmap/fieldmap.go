// Package fieldmap reconciles two sets of field names that share no schema:
// the names a PDF form declares for its interactive fields, and the names an
// extraction stage produced for the same logical data.
//
// Matching is deliberately simple and deterministic. Names are reduced to a
// pure lowercase alphanumeric comparison key, a fixed set of form-designer
// noise prefixes (txt, chk, ...) can be stripped from the front, and each PDF
// field binds to at most one data field via a fixed priority order of match
// kinds. Unmatched names are simply absent from the result; building a
// mapping never fails.
package fieldmap

import (
	"sort"
	"strings"
)

// noisePrefixes are widget-naming conventions commonly found in authored
// PDF forms. They are stripped from the front of a normalized name only.
var noisePrefixes = []string{"txt", "chk", "rad", "cmb", "field", "frm"}

// Mapping is a partial function from PDF field name to data field name.
type Mapping map[string]string

// Normalize reduces a field name to its comparison key: lowercase with
// underscores, spaces and hyphens removed.
func Normalize(name string) string {
	name = strings.ToLower(name)
	replacer := strings.NewReplacer("_", "", " ", "", "-", "")
	return replacer.Replace(name)
}

// StripPrefix normalizes a name and removes the first matching noise prefix
// from the front, if any.
func StripPrefix(name string) string {
	normalized := Normalize(name)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return normalized[len(prefix):]
		}
	}
	return normalized
}

// Build creates a mapping from PDF field names to data field names.
//
// For each PDF field, match kinds are tried in priority order:
//
//  1. normalized PDF name == normalized data name
//  2. prefix-stripped PDF name == prefix-stripped data name
//  3. normalized PDF name == prefix-stripped data name
//
// When several data fields collapse to the same comparison key within one
// tier, the lexicographically last data name wins. That tie-break is an
// accepted ambiguity of the normalization scheme, kept deterministic by
// building the lookup tables in sorted order.
func Build(pdfFields, dataFields []string) Mapping {
	sorted := make([]string, len(dataFields))
	copy(sorted, dataFields)
	sort.Strings(sorted)

	lookup := make(map[string]string, len(sorted))
	lookupStripped := make(map[string]string, len(sorted))
	for _, f := range sorted {
		lookup[Normalize(f)] = f
		lookupStripped[StripPrefix(f)] = f
	}

	mapping := make(Mapping)
	for _, pdfField := range pdfFields {
		normalized := Normalize(pdfField)
		stripped := StripPrefix(pdfField)

		if data, ok := lookup[normalized]; ok {
			mapping[pdfField] = data
		} else if data, ok := lookupStripped[stripped]; ok {
			mapping[pdfField] = data
		} else if data, ok := lookupStripped[normalized]; ok {
			mapping[pdfField] = data
		}
	}
	return mapping
}
