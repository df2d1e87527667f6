package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSources 默认的正式数据源
func DefaultSources() []Source {
	return []Source{
		{
			Name:         "bva-emisores",
			Category:     "Balances de Empresas",
			URL:          "https://www.bolsadevalores.com.py/listado-de-emisores/",
			ContentTypes: []string{"EXCEL", "PDF", "TEXT"},
			Description:  "Listado de emisores de la BVA con balances, prospectos, análisis de riesgo y hechos relevantes.",
			Route:        "financial",
		},
		{
			Name:         "bva-diarios",
			Category:     "Movimientos Diarios",
			URL:          "https://www.bolsadevalores.com.py/informes-diarios/",
			ContentTypes: []string{"JSON"},
			Description:  "Informes diarios de la BVA con movimientos del mercado.",
			Route:        "market",
		},
		{
			Name:         "bva-mensuales",
			Category:     "Volumen Mensual",
			URL:          "https://www.bolsadevalores.com.py/informes-mensuales/",
			ContentTypes: []string{"TEXT", "PDF", "JSON"},
			Description:  "Informes mensuales de la BVA, incluyendo PDFs y datos estructurados.",
			Route:        "reports",
		},
		{
			Name:         "bva-anuales",
			Category:     "Resumen Anual",
			URL:          "https://www.bolsadevalores.com.py/informes-anuales/",
			ContentTypes: []string{"TEXT", "PDF"},
			Description:  "Informes anuales de la BVA en formato PDF.",
			Route:        "reports",
		},
		{
			Name:         "bcp",
			Category:     "Contexto Macroeconómico",
			URL:          "https://www.bcp.gov.py/",
			ContentTypes: []string{"TEXT", "PDF", "EXCEL", "PPT"},
			Description:  "Banco Central del Paraguay (BCP), datos macroeconómicos.",
			Route:        "macroeconomic",
		},
		{
			Name:         "ine",
			Category:     "Estadísticas Sociales",
			URL:          "https://www.ine.gov.py/vt/publicacion.php/",
			ContentTypes: []string{"PDF", "EXCEL", "PPT", "TEXT"},
			Description:  "Instituto Nacional de Estadística (INE), publicaciones y datos sociales.",
			Route:        "macroeconomic",
		},
		{
			Name:         "dncp",
			Category:     "Contratos Públicos",
			URL:          "https://www.contrataciones.gov.py/",
			ContentTypes: []string{"TEXT"},
			Description:  "Dirección Nacional de Contrataciones Públicas (DNCP), licitaciones y contratos.",
			Route:        "contracts",
		},
		{
			Name:         "dnit-inversion",
			Category:     "Datos de Inversión",
			URL:          "https://www.dnit.gov.py/web/portal-institucional/invertir-en-py",
			ContentTypes: []string{"TEXT", "PNG", "PDF"},
			Description:  "Portal del DNIT con información para invertir en Paraguay.",
			Route:        "reports",
		},
		{
			Name:         "dnit-financieros",
			Category:     "Informes Financieros (DNIT)",
			URL:          "https://www.dnit.gov.py/web/portal-institucional/informes-financieros",
			ContentTypes: []string{"TEXT", "PDF"},
			Description:  "Portal del DNIT con informes financieros.",
			Route:        "financial",
		},
	}
}

// TestSources 测试模式使用的数据源
func TestSources() []Source {
	return []Source{
		{
			Name:         "test-pdf",
			Category:     "Test Page",
			URL:          "https://www.africau.edu/images/default/sample.pdf",
			ContentTypes: []string{"PDF"},
			Description:  "Página de prueba con un PDF simple.",
			Route:        "reports",
		},
		{
			Name:         "test-text",
			Category:     "Test Page with Text",
			URL:          "https://www.w3schools.com/html/html_paragraphs.asp",
			ContentTypes: []string{"TEXT"},
			Description:  "Página de prueba con contenido de texto simple.",
			Route:        "reports",
		},
	}
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSourcesFile 从YAML文件读取数据源列表
// 文件可以是顶层列表，也可以是带sources键的对象
func LoadSourcesFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources []Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		var wrapped sourcesFile
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse sources file: %w", err)
		}
		sources = wrapped.Sources
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("sources file %s contains no sources", path)
	}
	for i, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid source #%d (%s): %w", i, s.Name, err)
		}
	}
	return sources, nil
}

// sourceMaps 转换为viper默认值可接受的形式
func sourceMaps(sources []Source) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(sources))
	for _, s := range sources {
		out = append(out, map[string]interface{}{
			"name":          s.Name,
			"category":      s.Category,
			"url":           s.URL,
			"content_types": s.ContentTypes,
			"description":   s.Description,
			"route":         s.Route,
		})
	}
	return out
}
