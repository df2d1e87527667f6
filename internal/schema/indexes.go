package schema

// 向量索引名称
const (
	IndexDocumentosInformes = "documentos-informes-vector"
	IndexNoticiaRelevante   = "noticia-relevante-vector"
	IndexDatoMacroeconomico = "dato-macroeconomico-vector"
	IndexLicitacionContrato = "licitacion-contrato-vector"
)

// DefaultEmbeddingDimension all-MiniLM-L6-v2的向量维度
const DefaultEmbeddingDimension = 384

// 每个分块都携带的元数据字段
const (
	MetaChunkText = "chunk_text"
	MetaChunkID   = "chunk_id"
)

func chunkFields() []Field {
	return []Field{
		req(MetaChunkText, "The actual text chunk (string)", TypeText),
		req(MetaChunkID, "Sequential chunk identifier (integer)", TypeInteger),
	}
}

func indexDefinitions() []Definition {
	return []Definition{
		{
			Name:        IndexDocumentosInformes,
			Description: "Vector index for financial reports and general documents",
			Dimension:   DefaultEmbeddingDimension,
			Fields: append([]Field{
				req("id_informe", "Foreign key to Informe_General table (integer)", TypeRef),
				req("fecha_publicacion", "Publication date (YYYY-MM-DD)", TypeDate),
				req("titulo_informe", "Report title (string)", TypeString),
				opt("id_emisor", "Issuer ID (integer)", TypeRef),
				req("tipo_contenido", "Content type: 'financial_report', 'annual_report', 'general_document' (string)", TypeString),
				opt("source_url", "Source URL of the document (string)", TypeString),
				opt("archivo_adjunto", "Attached file path if applicable (string)", TypeString),
			}, chunkFields()...),
		},
		{
			Name:        IndexNoticiaRelevante,
			Description: "Vector index for relevant news and market information",
			Dimension:   DefaultEmbeddingDimension,
			Fields: append([]Field{
				req("id_noticia", "News identifier (integer)", TypeRef),
				req("fecha_publicacion", "Publication date (YYYY-MM-DD)", TypeDate),
				req("titulo_noticia", "News title (string)", TypeString),
				req("fuente_noticia", "News source (string)", TypeString),
				req("categoria", "News category: 'market', 'economic', 'financial', 'political' (string)", TypeString),
				opt("url_fuente", "Source URL (string)", TypeString),
				opt("relevancia", "Relevance score (float)", TypeNumber),
			}, chunkFields()...),
		},
		{
			Name:        IndexDatoMacroeconomico,
			Description: "Vector index for macroeconomic indicators and statistics",
			Dimension:   DefaultEmbeddingDimension,
			Fields: append([]Field{
				req("id_dato", "Data point identifier (integer)", TypeRef),
				req("indicador_nombre", "Indicator name (string)", TypeString),
				req("fecha_dato", "Data date (YYYY-MM-DD)", TypeDate),
				opt("valor_numerico", "Numeric value (float)", TypeNumber),
				opt("unidad_medida", "Unit of measure (string)", TypeString),
				req("fuente_dato", "Data source (string)", TypeString),
				opt("url_fuente", "Source URL (string)", TypeString),
				opt("frecuencia", "Data frequency: 'daily', 'monthly', 'quarterly', 'annual' (string)", TypeString),
			}, chunkFields()...),
		},
		{
			Name:        IndexLicitacionContrato,
			Description: "Vector index for public tenders and contracts",
			Dimension:   DefaultEmbeddingDimension,
			Fields: append([]Field{
				req("id_licitacion", "Tender identifier (integer)", TypeRef),
				req("titulo", "Tender title (string)", TypeString),
				req("fecha_adjudicacion", "Award date (YYYY-MM-DD)", TypeDate),
				opt("monto_adjudicado", "Awarded amount (float)", TypeNumber),
				opt("moneda", "Currency (string)", TypeString),
				req("estado_licitacion", "Tender status (string)", TypeString),
				opt("url_fuente", "Source URL (string)", TypeString),
				opt("entidad_contratante", "Contracting entity (string)", TypeString),
			}, chunkFields()...),
		},
	}
}
