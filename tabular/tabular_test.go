package tabular_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/agenda/tabular"
)

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]tabular.Format{
		"historico.csv":  tabular.FormatCSV,
		"export.JSON":    tabular.FormatJSON,
		"agenda.yml":     tabular.FormatYAML,
		"empleados.xlsx": tabular.FormatXLSX,
	}
	for name, want := range cases {
		got, err := tabular.FormatFromFilename(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := tabular.FormatFromFilename("notes.txt")
	assert.ErrorIs(t, err, tabular.ErrUnsupportedFormat)
	_, err = tabular.FormatFromFilename("noext")
	assert.ErrorIs(t, err, tabular.ErrUnsupportedFormat)
}

func TestDecodeCSV(t *testing.T) {
	in := "\ufeffNumero,Nombre,Equipo\n007, Ana ,Ops\n,,\n8,Luis\n"

	f, err := tabular.Decode(strings.NewReader(in), tabular.FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Numero", "Nombre", "Equipo"}, f.Header)
	require.Equal(t, 2, f.Len(), "blank row dropped")
	assert.Equal(t, "007", f.Cell(f.Rows[0], 0))
	assert.Equal(t, "Ana", f.Cell(f.Rows[0], 1))
	assert.Equal(t, "", f.Cell(f.Rows[1], 2), "short row reads as empty")
	assert.Equal(t, "", f.Cell(f.Rows[1], -1))
}

func TestDecodeJSON_ListAndWrapper(t *testing.T) {
	list := `[{"numero": 100, "fecha": "2025-06-10", "tipo": "Vacaciones"}, {"numero": "007", "extra": null}]`
	wrapped := `{"agenda": ` + list + `}`

	for _, in := range []string{list, wrapped} {
		f, err := tabular.Decode(strings.NewReader(in), tabular.FormatJSON)
		require.NoError(t, err)

		assert.Equal(t, []string{"fecha", "numero", "tipo", "extra"}, f.Header)
		require.Equal(t, 2, f.Len())
		assert.Equal(t, "100", f.Rows[0][1])
		assert.Equal(t, "007", f.Rows[1][1])
		assert.Equal(t, "", f.Rows[1][3])
	}
}

func TestDecodeJSON_Rejects(t *testing.T) {
	for _, in := range []string{`{"rows": []}`, `"text"`, `[1, 2]`, `{`} {
		_, err := tabular.Decode(strings.NewReader(in), tabular.FormatJSON)
		assert.Error(t, err, in)
	}
}

func TestDecodeYAML_KeepsScalarText(t *testing.T) {
	in := `
agenda:
  - numero: 007
    nombre: Ana
    fecha: 2025-06-10
  - numero: "12"
    nombre: ~
`
	f, err := tabular.Decode(strings.NewReader(in), tabular.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"numero", "nombre", "fecha"}, f.Header)
	require.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"007", "Ana", "2025-06-10"}, f.Rows[0])
	assert.Equal(t, []string{"12", "", ""}, f.Rows[1])
}

func TestXLSX_RoundTrip(t *testing.T) {
	// GIVEN: A two-sheet workbook
	sheets := []tabular.Sheet{
		{
			Name:   "Resumen_Equipos",
			Header: []string{"equipo", "Total"},
			Rows:   [][]any{{"Ops", 3}, {"Sales", 1}},
		},
		{
			Name:   "Conteo_por_Dia",
			Header: []string{"dia", "registros"},
			Rows:   [][]any{{"2025-06-10", 3}},
		},
	}

	// WHEN: Writing and reading it back
	var buf bytes.Buffer
	require.NoError(t, tabular.WriteXLSX(&buf, sheets))
	f, err := tabular.Decode(&buf, tabular.FormatXLSX)

	// THEN: The first sheet comes back as a frame
	require.NoError(t, err)
	assert.Equal(t, []string{"equipo", "Total"}, f.Header)
	assert.Equal(t, [][]string{{"Ops", "3"}, {"Sales", "1"}}, f.Rows)
}

func TestWriteXLSX_NoSheets(t *testing.T) {
	assert.Error(t, tabular.WriteXLSX(&bytes.Buffer{}, nil))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := tabular.WriteCSV(&buf, tabular.Sheet{
		Header: []string{"equipo", "Total"},
		Rows:   [][]any{{"Ops", 3}, {"Sales, North", 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "equipo,Total\nOps,3\n\"Sales, North\",1\n", buf.String())
}
