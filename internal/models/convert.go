package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ErrUnknownTable 没有对应模型的表名
var ErrUnknownTable = errors.New("no model for table")

// fieldReader 从记录中按类型读取字段，记录第一个转换错误
type fieldReader struct {
	rec map[string]interface{}
	err error
}

func (r *fieldReader) fail(field string, v interface{}, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: cannot convert %v (%T) to %s", field, v, v, want)
	}
}

func (r *fieldReader) raw(field string) (interface{}, bool) {
	v, ok := r.rec[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(field string) string {
	v, ok := r.raw(field)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// 外键等数字标识按整数形式存储
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func (r *fieldReader) optNum(field string) *float64 {
	v, ok := r.raw(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		f, err := t.Float64()
		if err == nil {
			return &f
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return &f
		}
	}
	r.fail(field, v, "number")
	return nil
}

func (r *fieldReader) num(field string) float64 {
	if f := r.optNum(field); f != nil {
		return *f
	}
	return 0
}

func (r *fieldReader) optDate(field string) *datatypes.Date {
	v, ok := r.raw(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		d := datatypes.Date(t)
		return &d
	case string:
		if parsed, err := time.Parse("2006-01-02", strings.TrimSpace(t)); err == nil {
			d := datatypes.Date(parsed)
			return &d
		}
	}
	r.fail(field, v, "date")
	return nil
}

func (r *fieldReader) date(field string) datatypes.Date {
	if d := r.optDate(field); d != nil {
		return *d
	}
	return datatypes.Date{}
}

func (r *fieldReader) optBool(field string) *bool {
	v, ok := r.raw(field)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return &b
		}
	}
	r.fail(field, v, "bool")
	return nil
}

func (r *fieldReader) jsonValue(field string) datatypes.JSON {
	v, ok := r.raw(field)
	if !ok {
		return nil
	}
	if s, isStr := v.(string); isStr && json.Valid([]byte(s)) {
		return datatypes.JSON(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.fail(field, v, "json")
		return nil
	}
	return datatypes.JSON(data)
}

// FromRecord 将结构化记录转换为表模型
// 记录应已通过必填校验；类型无法转换时返回错误
func FromRecord(table string, rec map[string]interface{}) (Row, error) {
	r := &fieldReader{rec: rec}
	var row Row

	switch strings.ToLower(table) {
	case "resumen_informe_financiero":
		row = &ResumenInformeFinanciero{
			IDInforme:             r.str("id_informe"),
			FechaCorteInforme:     r.date("fecha_corte_informe"),
			ActivosTotales:        r.num("activos_totales"),
			PasivosTotales:        r.num("pasivos_totales"),
			PatrimonioNeto:        r.num("patrimonio_neto"),
			IngresosOperacionales: r.optNum("ingresos_operacionales"),
			GastosOperacionales:   r.optNum("gastos_operacionales"),
			ResultadoNeto:         r.optNum("resultado_neto"),
			MonedaInforme:         r.str("moneda_informe"),
			CalificacionRiesgo:    r.str("calificacion_riesgo"),
			OtrasMetricas:         r.jsonValue("otras_metricas_jsonb"),
		}
	case "informe_general":
		row = &InformeGeneral{
			TituloInforme:    r.str("titulo_informe"),
			ResumenInforme:   r.str("resumen_informe"),
			FechaPublicacion: r.date("fecha_publicacion"),
			IDEmisor:         r.str("id_emisor"),
			IDTipoInforme:    r.str("id_tipo_informe"),
			IDFrecuencia:     r.str("id_frecuencia"),
			IDPeriodo:        r.str("id_periodo"),
			URLFuente:        r.str("url_fuente"),
			ArchivoAdjunto:   r.str("archivo_adjunto"),
		}
	case "movimiento_diario_bolsa":
		row = &MovimientoDiarioBolsa{
			FechaOperacion:    r.date("fecha_operacion"),
			CantidadOperacion: r.num("cantidad_operacion"),
			PrecioOperacion:   r.num("precio_operacion"),
			MontoTotal:        r.optNum("monto_total"),
			IDInstrumento:     r.str("id_instrumento"),
			IDEmisor:          r.str("id_emisor"),
			IDMoneda:          r.str("id_moneda"),
			TipoOperacion:     r.str("tipo_operacion"),
			VolumenNegociado:  r.optNum("volumen_negociado"),
		}
	case "dato_macroeconomico":
		row = &DatoMacroeconomico{
			IndicadorNombre: r.str("indicador_nombre"),
			FechaDato:       r.date("fecha_dato"),
			ValorNumerico:   r.optNum("valor_numerico"),
			ValorTexto:      r.str("valor_texto"),
			IDUnidadMedida:  r.str("id_unidad_medida"),
			IDFrecuencia:    r.str("id_frecuencia"),
			IDMoneda:        r.str("id_moneda"),
			IDEmisor:        r.str("id_emisor"),
			FuenteDato:      r.str("fuente_dato"),
			URLFuente:       r.str("url_fuente"),
			Notas:           r.str("notas"),
		}
	case "licitacion_contrato":
		row = &LicitacionContrato{
			Titulo:             r.str("titulo"),
			Descripcion:        r.str("descripcion"),
			MontoAdjudicado:    r.num("monto_adjudicado"),
			FechaAdjudicacion:  r.date("fecha_adjudicacion"),
			FechaInicio:        r.optDate("fecha_inicio"),
			FechaFin:           r.optDate("fecha_fin"),
			IDEmisorAdjudicado: r.str("id_emisor_adjudicado"),
			IDMoneda:           r.str("id_moneda"),
			EstadoLicitacion:   r.str("estado_licitacion"),
			URLFuente:          r.str("url_fuente"),
		}
	case "emisores":
		row = &Emisor{
			NombreEmisor:    r.str("nombre_emisor"),
			TipoEmisor:      r.str("tipo_emisor"),
			SectorEconomico: r.str("sector_economico"),
			PaisOrigen:      r.str("pais_origen"),
			FechaRegistro:   r.optDate("fecha_registro"),
			EstadoActivo:    r.optBool("estado_activo"),
			URLEmisor:       r.str("url_emisor"),
		}
	case "noticia_relevante":
		row = &NoticiaRelevante{
			TituloNoticia:    r.str("titulo_noticia"),
			FechaPublicacion: r.date("fecha_publicacion"),
			FuenteNoticia:    r.str("fuente_noticia"),
			Categoria:        r.str("categoria"),
			Resumen:          r.str("resumen"),
			URLFuente:        r.str("url_fuente"),
			Relevancia:       r.optNum("relevancia"),
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if r.err != nil {
		return nil, r.err
	}
	return row, nil
}
