package schema

import "sort"

// Route 类别到目标表和索引的映射
// Index为空表示该类别只写关系表
type Route struct {
	Category    string `json:"category"`
	Table       string `json:"table"`
	Index       string `json:"index,omitempty"`
	ContentType string `json:"content_type"` // 写入向量元数据的tipo_contenido
}

// 路由类别
const (
	CategoryFinancial     = "financial"
	CategoryMacroeconomic = "macroeconomic"
	CategoryContracts     = "contracts"
	CategoryNews          = "news"
	CategoryReports       = "reports"
	CategoryMarket        = "market"
	CategoryIssuers       = "issuers"
)

var routes = map[string]Route{
	CategoryFinancial:     {Category: CategoryFinancial, Table: TableResumenInformeFinanciero, Index: IndexDocumentosInformes, ContentType: "financial_report"},
	CategoryMacroeconomic: {Category: CategoryMacroeconomic, Table: TableDatoMacroeconomico, Index: IndexDatoMacroeconomico, ContentType: "macroeconomic_data"},
	CategoryContracts:     {Category: CategoryContracts, Table: TableLicitacionContrato, Index: IndexLicitacionContrato, ContentType: "public_contract"},
	CategoryNews:          {Category: CategoryNews, Table: TableNoticiaRelevante, Index: IndexNoticiaRelevante, ContentType: "news"},
	CategoryReports:       {Category: CategoryReports, Table: TableInformeGeneral, Index: IndexDocumentosInformes, ContentType: "general_document"},
	CategoryMarket:        {Category: CategoryMarket, Table: TableMovimientoDiarioBolsa, ContentType: "market_movement"},
	CategoryIssuers:       {Category: CategoryIssuers, Table: TableEmisores, ContentType: "issuer"},
}

// LookupRoute 查找类别路由
func LookupRoute(category string) (Route, bool) {
	r, ok := routes[key(category)]
	return r, ok
}

// Categories 返回所有已知类别
func Categories() []string {
	out := make([]string, 0, len(routes))
	for c := range routes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
