package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRecordDatoMacroeconomico(t *testing.T) {
	row, err := FromRecord("dato_macroeconomico", map[string]interface{}{
		"indicador_nombre": "IPC",
		"fecha_dato":       "2024-03-31",
		"valor_numerico":   4.2,
		"id_unidad_medida": float64(3),
		"id_frecuencia":    "mensual",
		"fuente_dato":      "BCP",
		"notas":            nil,
	})
	require.NoError(t, err)

	dato, ok := row.(*DatoMacroeconomico)
	require.True(t, ok)
	assert.Equal(t, "Dato_Macroeconomico", dato.TableName())
	assert.Equal(t, "3", dato.IDUnidadMedida)
	require.NotNil(t, dato.ValorNumerico)
	assert.Equal(t, 4.2, *dato.ValorNumerico)
	assert.Equal(t, "2024-03-31", time.Time(dato.FechaDato).Format("2006-01-02"))
	assert.Empty(t, dato.Notas)
}

func TestFromRecordJSONAndOptionalFields(t *testing.T) {
	row, err := FromRecord("Resumen_Informe_Financiero", map[string]interface{}{
		"id_informe":           "12",
		"fecha_corte_informe":  "2023-12-31",
		"activos_totales":      1000.0,
		"pasivos_totales":      "400",
		"patrimonio_neto":      600,
		"moneda_informe":       "PYG",
		"otras_metricas_jsonb": map[string]interface{}{"roe": 0.12},
	})
	require.NoError(t, err)

	res := row.(*ResumenInformeFinanciero)
	assert.Equal(t, 400.0, res.PasivosTotales)
	assert.Equal(t, 600.0, res.PatrimonioNeto)
	assert.Nil(t, res.ResultadoNeto)
	assert.JSONEq(t, `{"roe":0.12}`, string(res.OtrasMetricas))
}

func TestFromRecordRejectsBadTypes(t *testing.T) {
	_, err := FromRecord("Noticia_Relevante", map[string]interface{}{
		"titulo_noticia":    "x",
		"fecha_publicacion": "31/02/2024",
		"fuente_noticia":    "y",
		"categoria":         "market",
	})
	assert.Error(t, err)

	_, err = FromRecord("Emisores", map[string]interface{}{"estado_activo": "quizas"})
	assert.Error(t, err)
}

func TestFromRecordUnknownTable(t *testing.T) {
	_, err := FromRecord("Otra_Tabla", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestAllModelsHaveTableNames(t *testing.T) {
	for _, m := range All() {
		row, ok := m.(Row)
		require.True(t, ok)
		assert.NotEmpty(t, row.TableName())
	}
}
