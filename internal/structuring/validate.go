package structuring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// ValidationResult 必填字段校验结果
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields"`
	Issues        []string `json:"issues"`
}

// Validate 检查记录是否包含模式的全部必填字段，值为null视为缺失
func Validate(record Record, schemaName string) ValidationResult {
	def, ok := schema.Tables.Get(schemaName)
	if !ok {
		return ValidationResult{
			IsValid: false,
			Issues:  []string{"Unknown schema: " + schemaName},
		}
	}

	result := ValidationResult{IsValid: true}
	for _, name := range def.RequiredFields() {
		if v, present := record[name]; !present || v == nil {
			result.MissingFields = append(result.MissingFields, name)
		}
	}
	if len(result.MissingFields) > 0 {
		result.IsValid = false
		result.Issues = append(result.Issues,
			"Missing required fields: "+strings.Join(result.MissingFields, ", "))
	}
	return result
}

// 常见日期格式，优先日在前（巴拉圭习惯）
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"January 2, 2006",
	"2 January 2006",
}

// Coerce 按模式字段类型重新检查取值，返回新记录
// 无法转换的值被丢弃并记入问题列表；主键和时间戳由存储层生成，直接去掉
func Coerce(record Record, schemaName string) (Record, []string) {
	def, ok := schema.Tables.Get(schemaName)
	if !ok {
		return record, []string{"Unknown schema: " + schemaName}
	}

	out := make(Record, len(record))
	var issues []string
	for name, value := range record {
		field, known := def.Field(name)
		if !known {
			out[name] = value
			continue
		}
		if field.AutoGenerated || field.Type == schema.TypeTimestamp {
			continue
		}
		if value == nil {
			out[name] = nil
			continue
		}

		converted, err := coerceValue(field.Type, value)
		if err != nil {
			issues = append(issues, fmt.Sprintf("field %s: %v", name, err))
			continue
		}
		out[name] = converted
	}
	sort.Strings(issues)
	return out, issues
}

func coerceValue(t schema.FieldType, v interface{}) (interface{}, error) {
	switch t {
	case schema.TypeNumber:
		return toNumber(v)
	case schema.TypeInteger:
		f, err := toNumber(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return int64(f), nil
	case schema.TypeDate:
		return toDate(v)
	case schema.TypeBool:
		return toBool(v)
	case schema.TypeString, schema.TypeText, schema.TypeRef:
		return toText(v), nil
	default:
		return v, nil
	}
}

func toNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return ParseNumber(n)
	}
	return 0, fmt.Errorf("cannot convert %T to number", v)
}

// 数字只接受以下三种完整写法，其他文本一律视为非数字
var (
	// 点分千位，可选逗号小数：1.500.000,25
	dotGrouped = regexp.MustCompile(`^[+-]?[1-9]\d{0,2}(\.\d{3})+(,\d+)?$`)
	// 逗号分千位，可选点小数：1,500,000.25
	commaGrouped = regexp.MustCompile(`^[+-]?[1-9]\d{0,2}(,\d{3})+(\.\d+)?$`)
	// 无千分位：1500、3,8、1.5e3
	plainNumber = regexp.MustCompile(`^[+-]?\d+([.,]\d+)?([eE][+-]?\d+)?$`)
)

// 货币和百分号标记，只在首尾去掉
var numberAffixes = []string{"gs.", "gs", "₲", "us$", "usd", "pyg", "$", "%"}

// ParseNumber 严格解析数字
// 支持"1.234,5"和"1,234.5"两种千分位写法。
// 单个分隔符后恰好三位数字且整数部分非0时按千分位处理（巴拉圭写法），
// 因此"1.500"和"1,500"都是1500，"0.500"和"1,5"按小数处理。
func ParseNumber(s string) (float64, error) {
	clean := stripAffixes(strings.TrimSpace(s))

	switch {
	case dotGrouped.MatchString(clean):
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case commaGrouped.MatchString(clean):
		clean = strings.ReplaceAll(clean, ",", "")
	case plainNumber.MatchString(clean):
		clean = strings.Replace(clean, ",", ".", 1)
	default:
		return 0, fmt.Errorf("%q is not a number", s)
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}

func stripAffixes(s string) string {
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, a := range numberAffixes {
			if strings.HasPrefix(lower, a) {
				s = strings.TrimSpace(s[len(a):])
				changed = true
				break
			}
			if strings.HasSuffix(lower, a) {
				s = strings.TrimSpace(s[:len(s)-len(a)])
				changed = true
				break
			}
		}
	}
	return s
}

func toDate(v interface{}) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02"), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format("2006-01-02"), nil
			}
		}
		return "", fmt.Errorf("%q is not a date", d)
	}
	return "", fmt.Errorf("cannot convert %T to date", v)
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "si", "sí", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	case float64:
		return b != 0, nil
	case json.Number:
		return b.String() != "0", nil
	}
	return false, fmt.Errorf("cannot convert %v to bool", v)
}

func toText(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case int, int32, int64:
		return fmt.Sprint(s)
	}
	return v
}
