package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryKey_Code(t *testing.T) {
	k := CodeKey("38400-000")
	assert.Equal(t, KeyCode, k.Kind())
	assert.Equal(t, "38400-000", k.Code())
	assert.Equal(t, "38400-000", k.String())
	assert.Empty(t, k.Region())
}

func TestQueryKey_Locality(t *testing.T) {
	k := LocalityKey(" Uberlândia ", " mg", "A")
	assert.Equal(t, KeyLocality, k.Kind())
	assert.Equal(t, "Uberlândia", k.City())
	assert.Equal(t, "MG", k.Region())
	assert.Equal(t, "A", k.Letter())
	assert.Equal(t, "Uberlândia/MG#A", k.String())

	assert.Equal(t, "Uberlândia/MG", LocalityKey("Uberlândia", "MG", "").String())
	assert.Equal(t, "<invalid>", QueryKey{}.String())
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("street")
	assert.True(t, ok)
	assert.Equal(t, FieldStreet, f)

	_, ok = ParseField("zip")
	assert.False(t, ok)
}

func TestRawFields_Complete(t *testing.T) {
	assert.True(t, RawFields{FieldStreet: "Rua A", FieldCity: "Uberlândia"}.Complete())
	assert.False(t, RawFields{FieldStreet: "Rua A", FieldCity: "  "}.Complete())
	assert.False(t, RawFields{FieldCity: "Uberlândia"}.Complete())
	assert.False(t, RawFields(nil).Complete())
}

func TestAddressRecord_JSON(t *testing.T) {
	rec := AddressRecord{Code: "01310-100", Street: "Avenida Paulista", City: "São Paulo", Region: "SP"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"","cidade":"São Paulo","estado":"SP"}`, string(data))

	rec.Locality = "São Paulo/SP"
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"localidade":"São Paulo/SP"`)
}

func TestAddressRecord_Filled(t *testing.T) {
	assert.Equal(t, 4, AddressRecord{Code: "1", Street: "x", City: "y", Region: "SP"}.Filled())
	assert.Equal(t, 5, AddressRecord{Code: "1", Street: "x", Neighborhood: "n", City: "y", Region: "SP"}.Filled())
}

func TestExtractionResult_Constructors(t *testing.T) {
	f := Found(RawFields{FieldStreet: "Rua A"})
	assert.Equal(t, OutcomeFound, f.Outcome)
	assert.Len(t, f.Rows, 1)

	assert.Equal(t, OutcomeNotFound, NotFound().Outcome)

	failed := Failed(ReasonSelectorTimeout, "#endereco")
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	assert.Equal(t, ReasonSelectorTimeout, failed.Reason)
	assert.Equal(t, "#endereco", failed.Detail)
}
