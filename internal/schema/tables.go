package schema

// 关系表名称
const (
	TableResumenInformeFinanciero = "Resumen_Informe_Financiero"
	TableInformeGeneral           = "Informe_General"
	TableMovimientoDiarioBolsa    = "Movimiento_Diario_Bolsa"
	TableDatoMacroeconomico       = "Dato_Macroeconomico"
	TableLicitacionContrato       = "Licitacion_Contrato"
	TableEmisores                 = "Emisores"
	TableNoticiaRelevante         = "Noticia_Relevante"
)

func opt(name, desc string, t FieldType) Field {
	return Field{Name: name, Description: desc, Type: t}
}

func req(name, desc string, t FieldType) Field {
	return Field{Name: name, Description: desc, Type: t, Required: true}
}

func primaryKey() Field {
	return Field{Name: "id", Description: "Primary key (auto-generated)", Type: TypeInteger, AutoGenerated: true}
}

func createdAt() Field {
	return opt("fecha_creacion", "Creation timestamp", TypeTimestamp)
}

func updatedAt() Field {
	return opt("fecha_actualizacion", "Last update timestamp", TypeTimestamp)
}

func tableDefinitions() []Definition {
	return []Definition{
		{
			Name:        TableResumenInformeFinanciero,
			Description: "Financial report summaries with key metrics and data",
			Fields: []Field{
				primaryKey(),
				req("id_informe", "Foreign key to Informe_General", TypeRef),
				req("fecha_corte_informe", "Report cutoff date (YYYY-MM-DD)", TypeDate),
				req("activos_totales", "Total assets (numeric)", TypeNumber),
				req("pasivos_totales", "Total liabilities (numeric)", TypeNumber),
				req("patrimonio_neto", "Net equity (numeric)", TypeNumber),
				opt("ingresos_operacionales", "Operational income (numeric)", TypeNumber),
				opt("gastos_operacionales", "Operational expenses (numeric)", TypeNumber),
				opt("resultado_neto", "Net result (numeric)", TypeNumber),
				req("moneda_informe", "Currency ID (foreign key)", TypeRef),
				opt("calificacion_riesgo", "Risk rating (string)", TypeString),
				opt("otras_metricas_jsonb", "Additional metrics in JSON format", TypeJSON),
				createdAt(),
				updatedAt(),
			},
		},
		{
			Name:        TableInformeGeneral,
			Description: "General report information and metadata",
			Fields: []Field{
				primaryKey(),
				req("titulo_informe", "Report title (string)", TypeString),
				opt("resumen_informe", "Report summary (text)", TypeText),
				req("fecha_publicacion", "Publication date (YYYY-MM-DD)", TypeDate),
				req("id_emisor", "Issuer ID (foreign key)", TypeRef),
				req("id_tipo_informe", "Report type ID (foreign key)", TypeRef),
				opt("id_frecuencia", "Frequency ID (foreign key)", TypeRef),
				opt("id_periodo", "Period ID (foreign key)", TypeRef),
				req("url_fuente", "Source URL (string)", TypeString),
				opt("archivo_adjunto", "Attached file path (string)", TypeString),
				createdAt(),
				updatedAt(),
			},
		},
		{
			Name:        TableMovimientoDiarioBolsa,
			Description: "Daily stock market movements and transactions",
			Fields: []Field{
				primaryKey(),
				req("fecha_operacion", "Operation date (YYYY-MM-DD)", TypeDate),
				req("cantidad_operacion", "Operation quantity (numeric)", TypeNumber),
				req("precio_operacion", "Operation price (numeric)", TypeNumber),
				opt("monto_total", "Total amount (numeric)", TypeNumber),
				req("id_instrumento", "Instrument ID (foreign key)", TypeRef),
				req("id_emisor", "Issuer ID (foreign key)", TypeRef),
				req("id_moneda", "Currency ID (foreign key)", TypeRef),
				opt("tipo_operacion", "Operation type (string)", TypeString),
				opt("volumen_negociado", "Traded volume (numeric)", TypeNumber),
				createdAt(),
			},
		},
		{
			Name:        TableDatoMacroeconomico,
			Description: "Macroeconomic indicators and statistics",
			Fields: []Field{
				primaryKey(),
				req("indicador_nombre", "Indicator name (string)", TypeString),
				req("fecha_dato", "Data date (YYYY-MM-DD)", TypeDate),
				opt("valor_numerico", "Numeric value (numeric)", TypeNumber),
				opt("valor_texto", "Text value (string)", TypeString),
				req("id_unidad_medida", "Unit of measure ID (foreign key)", TypeRef),
				req("id_frecuencia", "Frequency ID (foreign key)", TypeRef),
				opt("id_moneda", "Currency ID (foreign key)", TypeRef),
				opt("id_emisor", "Issuer ID (foreign key)", TypeRef),
				req("fuente_dato", "Data source (string)", TypeString),
				opt("url_fuente", "Source URL (string)", TypeString),
				opt("notas", "Additional notes (text)", TypeText),
				createdAt(),
			},
		},
		{
			Name:        TableLicitacionContrato,
			Description: "Public tenders and contracts information",
			Fields: []Field{
				primaryKey(),
				req("titulo", "Title (string)", TypeString),
				opt("descripcion", "Description (text)", TypeText),
				req("monto_adjudicado", "Awarded amount (numeric)", TypeNumber),
				req("fecha_adjudicacion", "Award date (YYYY-MM-DD)", TypeDate),
				opt("fecha_inicio", "Start date (YYYY-MM-DD)", TypeDate),
				opt("fecha_fin", "End date (YYYY-MM-DD)", TypeDate),
				req("id_emisor_adjudicado", "Awarded issuer ID (foreign key)", TypeRef),
				req("id_moneda", "Currency ID (foreign key)", TypeRef),
				opt("estado_licitacion", "Tender status (string)", TypeString),
				opt("url_fuente", "Source URL (string)", TypeString),
				createdAt(),
			},
		},
		{
			Name:        TableEmisores,
			Description: "Issuers and entities information",
			Fields: []Field{
				primaryKey(),
				req("nombre_emisor", "Issuer name (string)", TypeString),
				req("tipo_emisor", "Issuer type (string)", TypeString),
				req("sector_economico", "Economic sector (string)", TypeString),
				req("pais_origen", "Country of origin (string)", TypeString),
				opt("fecha_registro", "Registration date (YYYY-MM-DD)", TypeDate),
				opt("estado_activo", "Active status (boolean)", TypeBool),
				opt("url_emisor", "Issuer URL (string)", TypeString),
				createdAt(),
			},
		},
		{
			Name:        TableNoticiaRelevante,
			Description: "Relevant news and market information",
			Fields: []Field{
				primaryKey(),
				req("titulo_noticia", "News title (string)", TypeString),
				req("fecha_publicacion", "Publication date (YYYY-MM-DD)", TypeDate),
				req("fuente_noticia", "News source (string)", TypeString),
				req("categoria", "News category: 'market', 'economic', 'financial', 'political' (string)", TypeString),
				opt("resumen", "News summary (text)", TypeText),
				opt("url_fuente", "Source URL (string)", TypeString),
				opt("relevancia", "Relevance score (numeric)", TypeNumber),
				createdAt(),
			},
		},
	}
}
