package models

import (
	"time"

	"gorm.io/datatypes"
)

// Row 可以写入关系表的行
type Row interface {
	TableName() string
}

// ResumenInformeFinanciero 财务报告摘要
type ResumenInformeFinanciero struct {
	ID                    uint           `gorm:"column:id;primaryKey;autoIncrement"`
	IDInforme             string         `gorm:"column:id_informe;not null;index"`
	FechaCorteInforme     datatypes.Date `gorm:"column:fecha_corte_informe;not null"`
	ActivosTotales        float64        `gorm:"column:activos_totales;not null"`
	PasivosTotales        float64        `gorm:"column:pasivos_totales;not null"`
	PatrimonioNeto        float64        `gorm:"column:patrimonio_neto;not null"`
	IngresosOperacionales *float64       `gorm:"column:ingresos_operacionales"`
	GastosOperacionales   *float64       `gorm:"column:gastos_operacionales"`
	ResultadoNeto         *float64       `gorm:"column:resultado_neto"`
	MonedaInforme         string         `gorm:"column:moneda_informe;not null"`
	CalificacionRiesgo    string         `gorm:"column:calificacion_riesgo"`
	OtrasMetricas         datatypes.JSON `gorm:"column:otras_metricas_jsonb;type:json"`
	FechaCreacion         time.Time      `gorm:"column:fecha_creacion;autoCreateTime"`
	FechaActualizacion    time.Time      `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

func (ResumenInformeFinanciero) TableName() string { return "Resumen_Informe_Financiero" }

// InformeGeneral 一般报告
type InformeGeneral struct {
	ID                 uint           `gorm:"column:id;primaryKey;autoIncrement"`
	TituloInforme      string         `gorm:"column:titulo_informe;not null"`
	ResumenInforme     string         `gorm:"column:resumen_informe;type:text"`
	FechaPublicacion   datatypes.Date `gorm:"column:fecha_publicacion;not null;index"`
	IDEmisor           string         `gorm:"column:id_emisor;not null;index"`
	IDTipoInforme      string         `gorm:"column:id_tipo_informe;not null"`
	IDFrecuencia       string         `gorm:"column:id_frecuencia"`
	IDPeriodo          string         `gorm:"column:id_periodo"`
	URLFuente          string         `gorm:"column:url_fuente;not null"`
	ArchivoAdjunto     string         `gorm:"column:archivo_adjunto"`
	FechaCreacion      time.Time      `gorm:"column:fecha_creacion;autoCreateTime"`
	FechaActualizacion time.Time      `gorm:"column:fecha_actualizacion;autoUpdateTime"`
}

func (InformeGeneral) TableName() string { return "Informe_General" }

// MovimientoDiarioBolsa 每日交易所成交记录
type MovimientoDiarioBolsa struct {
	ID                uint           `gorm:"column:id;primaryKey;autoIncrement"`
	FechaOperacion    datatypes.Date `gorm:"column:fecha_operacion;not null;index"`
	CantidadOperacion float64        `gorm:"column:cantidad_operacion;not null"`
	PrecioOperacion   float64        `gorm:"column:precio_operacion;not null"`
	MontoTotal        *float64       `gorm:"column:monto_total"`
	IDInstrumento     string         `gorm:"column:id_instrumento;not null"`
	IDEmisor          string         `gorm:"column:id_emisor;not null;index"`
	IDMoneda          string         `gorm:"column:id_moneda;not null"`
	TipoOperacion     string         `gorm:"column:tipo_operacion"`
	VolumenNegociado  *float64       `gorm:"column:volumen_negociado"`
	FechaCreacion     time.Time      `gorm:"column:fecha_creacion;autoCreateTime"`
}

func (MovimientoDiarioBolsa) TableName() string { return "Movimiento_Diario_Bolsa" }

// DatoMacroeconomico 宏观经济指标
type DatoMacroeconomico struct {
	ID              uint           `gorm:"column:id;primaryKey;autoIncrement"`
	IndicadorNombre string         `gorm:"column:indicador_nombre;not null;index"`
	FechaDato       datatypes.Date `gorm:"column:fecha_dato;not null"`
	ValorNumerico   *float64       `gorm:"column:valor_numerico"`
	ValorTexto      string         `gorm:"column:valor_texto"`
	IDUnidadMedida  string         `gorm:"column:id_unidad_medida;not null"`
	IDFrecuencia    string         `gorm:"column:id_frecuencia;not null"`
	IDMoneda        string         `gorm:"column:id_moneda"`
	IDEmisor        string         `gorm:"column:id_emisor"`
	FuenteDato      string         `gorm:"column:fuente_dato;not null"`
	URLFuente       string         `gorm:"column:url_fuente"`
	Notas           string         `gorm:"column:notas;type:text"`
	FechaCreacion   time.Time      `gorm:"column:fecha_creacion;autoCreateTime"`
}

func (DatoMacroeconomico) TableName() string { return "Dato_Macroeconomico" }

// LicitacionContrato 公共招标和合同
type LicitacionContrato struct {
	ID                 uint            `gorm:"column:id;primaryKey;autoIncrement"`
	Titulo             string          `gorm:"column:titulo;not null"`
	Descripcion        string          `gorm:"column:descripcion;type:text"`
	MontoAdjudicado    float64         `gorm:"column:monto_adjudicado;not null"`
	FechaAdjudicacion  datatypes.Date  `gorm:"column:fecha_adjudicacion;not null"`
	FechaInicio        *datatypes.Date `gorm:"column:fecha_inicio"`
	FechaFin           *datatypes.Date `gorm:"column:fecha_fin"`
	IDEmisorAdjudicado string          `gorm:"column:id_emisor_adjudicado;not null"`
	IDMoneda           string          `gorm:"column:id_moneda;not null"`
	EstadoLicitacion   string          `gorm:"column:estado_licitacion"`
	URLFuente          string          `gorm:"column:url_fuente"`
	FechaCreacion      time.Time       `gorm:"column:fecha_creacion;autoCreateTime"`
}

func (LicitacionContrato) TableName() string { return "Licitacion_Contrato" }

// Emisor 发行人
type Emisor struct {
	ID              uint            `gorm:"column:id;primaryKey;autoIncrement"`
	NombreEmisor    string          `gorm:"column:nombre_emisor;not null;index"`
	TipoEmisor      string          `gorm:"column:tipo_emisor;not null"`
	SectorEconomico string          `gorm:"column:sector_economico;not null"`
	PaisOrigen      string          `gorm:"column:pais_origen;not null"`
	FechaRegistro   *datatypes.Date `gorm:"column:fecha_registro"`
	EstadoActivo    *bool           `gorm:"column:estado_activo"`
	URLEmisor       string          `gorm:"column:url_emisor"`
	FechaCreacion   time.Time       `gorm:"column:fecha_creacion;autoCreateTime"`
}

func (Emisor) TableName() string { return "Emisores" }

// NoticiaRelevante 相关新闻
type NoticiaRelevante struct {
	ID               uint           `gorm:"column:id;primaryKey;autoIncrement"`
	TituloNoticia    string         `gorm:"column:titulo_noticia;not null"`
	FechaPublicacion datatypes.Date `gorm:"column:fecha_publicacion;not null;index"`
	FuenteNoticia    string         `gorm:"column:fuente_noticia;not null"`
	Categoria        string         `gorm:"column:categoria;not null"`
	Resumen          string         `gorm:"column:resumen;type:text"`
	URLFuente        string         `gorm:"column:url_fuente"`
	Relevancia       *float64       `gorm:"column:relevancia"`
	FechaCreacion    time.Time      `gorm:"column:fecha_creacion;autoCreateTime"`
}

func (NoticiaRelevante) TableName() string { return "Noticia_Relevante" }

// All 返回需要迁移的所有模型
func All() []interface{} {
	return []interface{}{
		&ResumenInformeFinanciero{},
		&InformeGeneral{},
		&MovimientoDiarioBolsa{},
		&DatoMacroeconomico{},
		&LicitacionContrato{},
		&Emisor{},
		&NoticiaRelevante{},
	}
}
