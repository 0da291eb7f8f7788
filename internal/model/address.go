package model

import "strings"

// Field names a canonical address attribute extracted from a result page.
type Field string

const (
	FieldCode         Field = "code"
	FieldStreet       Field = "street"
	FieldNeighborhood Field = "neighborhood"
	FieldCity         Field = "city"
	FieldRegion       Field = "region"
)

// ParseField converts a config string into a Field.
func ParseField(s string) (Field, bool) {
	switch Field(s) {
	case FieldCode, FieldStreet, FieldNeighborhood, FieldCity, FieldRegion:
		return Field(s), true
	default:
		return "", false
	}
}

// RawFields holds the untrimmed text found on a page, keyed by canonical field.
type RawFields map[Field]string

// Has reports whether f is present with non-blank text.
func (r RawFields) Has(f Field) bool {
	return strings.TrimSpace(r[f]) != ""
}

// Complete reports whether the row carries the minimum required to be ingested.
func (r RawFields) Complete() bool {
	return r.Has(FieldStreet) && r.Has(FieldCity)
}

// AddressRecord is one entry of the canonical dataset. The JSON field names
// are the contract with the lookup service.
type AddressRecord struct {
	Code         string `json:"cep"`
	Street       string `json:"logradouro"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	Region       string `json:"estado"`
	Locality     string `json:"localidade,omitempty"`
}

// Filled returns the number of non-empty attributes, used to compare the
// completeness of two records sharing a code.
func (a AddressRecord) Filled() int {
	n := 0
	for _, v := range []string{a.Code, a.Street, a.Neighborhood, a.City, a.Region} {
		if v != "" {
			n++
		}
	}
	return n
}
