package structuring

import (
	"strings"

	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// BuildPrompt 构造抽取提示词
// 自动生成的主键不出现在字段列表中
func BuildPrompt(def schema.Definition, content string) string {
	var b strings.Builder

	b.WriteString("\nYou are an expert data extraction AI. Your task is to extract structured data from the provided content based on the given schema description.\n\n")
	b.WriteString("Target Schema Name: " + def.Name + "\n")
	b.WriteString("Target Schema Description: " + def.Description + "\n\n")
	b.WriteString("Schema Fields:\n")

	for _, f := range def.PromptFields() {
		b.WriteString("- " + f.Name + ": " + f.Description)
		if f.Required {
			b.WriteString(" (REQUIRED)")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRequired Fields: " + strings.Join(def.RequiredFields(), ", ") + "\n\n")
	b.WriteString("Content to Extract From:\n---\n")
	b.WriteString(content)
	b.WriteString("\n---\n\n")
	b.WriteString(`Extract the data strictly following the schema. Pay attention to data types:
- Dates should be in YYYY-MM-DD format
- Numbers should be numeric values (not strings)
- Text fields should be strings
- JSONB fields should be structured as JSON objects

If a field is not found in the content, set it to null or a suitable default.
For required fields, make your best estimate if the information is not explicitly available.

`)
	if allowsList(def.Name) {
		b.WriteString("Return the extracted data as a valid JSON array of objects, one object per record.\n")
	} else {
		b.WriteString("Return the extracted data as a valid JSON object.\n")
	}
	b.WriteString("Only return the JSON output, nothing else.\n")
	return b.String()
}

// allowsList 每日行情一次可能包含多条记录
func allowsList(table string) bool {
	return strings.EqualFold(table, schema.TableMovimientoDiarioBolsa)
}

// truncate 按rune截断
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
