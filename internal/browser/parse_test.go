package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cepsync/internal/model"
)

const headerTablePage = `<html><body>
<table id="resultado-DNEC">
  <thead>
    <tr><th>Logradouro/Nome</th><th>Bairro/Distrito</th><th>Localidade/UF</th><th>CEP</th></tr>
  </thead>
  <tbody>
    <tr><td>Avenida Paulista - de 1047 a 1865 - lado ímpar</td><td>Bela Vista</td><td>São Paulo/SP</td><td>01310-100</td></tr>
    <tr><td>Rua Augusta</td><td>Consolação</td><td>São Paulo/SP</td><td>01305-000</td></tr>
  </tbody>
</table>
</body></html>`

const keyValuePage = `<html><body>
<table class="layout"><tr><td>
  <table class="dados">
    <tr><td>Logradouro:</td><td> Praça Tubal Vilela </td></tr>
    <tr><td>Bairro:</td><td>Centro</td></tr>
    <tr><td>Localidade:</td><td>Uberlândia/MG</td></tr>
    <tr><td>CEP:</td><td>38400-186</td></tr>
    <tr><td>Observação</td><td>-</td></tr>
  </table>
</td></tr></table>
</body></html>`

func TestParsePage_HeaderTable(t *testing.T) {
	rows, err := ParsePage(headerTablePage, DefaultLabels())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Avenida Paulista - de 1047 a 1865 - lado ímpar", rows[0][model.FieldStreet])
	assert.Equal(t, "Bela Vista", rows[0][model.FieldNeighborhood])
	assert.Equal(t, "São Paulo/SP", rows[0][model.FieldCity])
	assert.Equal(t, "01310-100", rows[0][model.FieldCode])
	assert.Equal(t, "Rua Augusta", rows[1][model.FieldStreet])
}

func TestParsePage_KeyValueTable(t *testing.T) {
	rows, err := ParsePage(keyValuePage, DefaultLabels())
	require.NoError(t, err)
	require.Len(t, rows, 1, "nested layout table must not duplicate rows")

	row := rows[0]
	assert.Equal(t, "Praça Tubal Vilela", row[model.FieldStreet])
	assert.Equal(t, "Centro", row[model.FieldNeighborhood])
	assert.Equal(t, "Uberlândia/MG", row[model.FieldCity])
	assert.Equal(t, "38400-186", row[model.FieldCode])
}

func TestParsePage_DefinitionList(t *testing.T) {
	page := `<html><body><dl>
<dt>Logradouro</dt><dd>Rua da Bahia</dd>
<dt>Localidade</dt><dd>Belo Horizonte/MG</dd>
<dt>CEP</dt><dd>30160-011</dd>
</dl></body></html>`

	rows, err := ParsePage(page, DefaultLabels())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rua da Bahia", rows[0][model.FieldStreet])
	assert.Equal(t, "30160-011", rows[0][model.FieldCode])
}

func TestParsePage_ValueContainingLabelFragment(t *testing.T) {
	// "Receptor" contains "cep"; a key/value row must not be taken as a header.
	page := `<html><body><table>
<tr><th>Logradouro</th><td>Rua do Receptor</td></tr>
<tr><th>Localidade</th><td>Recife/PE</td></tr>
<tr><th>CEP</th><td>50000-000</td></tr>
</table></body></html>`

	rows, err := ParsePage(page, DefaultLabels())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rua do Receptor", rows[0][model.FieldStreet])
	assert.Equal(t, "Recife/PE", rows[0][model.FieldCity])
}

func TestParsePage_CustomLabels(t *testing.T) {
	labels := Labels{
		{Match: "endereço", Field: model.FieldStreet},
		{Match: "cidade", Field: model.FieldCity},
		{Match: "uf", Field: model.FieldRegion},
	}
	page := `<table><tr><th>Endereço</th><th>Cidade</th><th>UF</th></tr>
<tr><td>Rua A</td><td>Natal</td><td>RN</td></tr></table>`

	rows, err := ParsePage(page, labels)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RN", rows[0][model.FieldRegion])
}

func TestParsePage_NoTables(t *testing.T) {
	rows, err := ParsePage(`<html><body><p>Dados não encontrado</p></body></html>`, DefaultLabels())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClassify(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		res := Classify(headerTablePage, DefaultLabels())
		assert.Equal(t, model.OutcomeFound, res.Outcome)
		assert.Len(t, res.Rows, 2)
	})

	t.Run("incomplete rows are not found", func(t *testing.T) {
		page := `<table><tr><td>Bairro</td><td>Centro</td></tr><tr><td>CEP</td><td>38400-000</td></tr></table>`
		res := Classify(page, DefaultLabels())
		assert.Equal(t, model.OutcomeNotFound, res.Outcome)
		assert.Empty(t, res.Rows)
	})

	t.Run("drops incomplete rows of a table", func(t *testing.T) {
		page := strings.Replace(headerTablePage, "<td>Rua Augusta</td>", "<td></td>", 1)
		res := Classify(page, DefaultLabels())
		require.Equal(t, model.OutcomeFound, res.Outcome)
		assert.Len(t, res.Rows, 1)
	})

	t.Run("captcha page", func(t *testing.T) {
		res := Classify(`<html><body><div class="g-recaptcha"></div></body></html>`, DefaultLabels())
		assert.Equal(t, model.OutcomeFailed, res.Outcome)
		assert.Equal(t, model.ReasonUnexpectedPage, res.Reason)
		assert.Contains(t, res.Detail, "captcha")
	})

	t.Run("captcha on search form is not found", func(t *testing.T) {
		page := `<html><body><form><input id="endereco"><div class="g-recaptcha"></div></form>` +
			`<p>Dados não encontrado</p></body></html>`
		res := Classify(page, DefaultLabels(), "#endereco")
		assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	})

	t.Run("empty page", func(t *testing.T) {
		res := Classify(`<html><body><h1>Busca CEP</h1><p>Dados não encontrado</p>`+strings.Repeat("<p>.</p>", 500)+`</body></html>`, DefaultLabels())
		assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	})
}
