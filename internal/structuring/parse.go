package structuring

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	errNoJSON     = errors.New("no JSON value found in response")
	errUnbalanced = errors.New("unterminated JSON value in response")
)

// ParseResponse 从模型输出中取出记录
// 去掉代码块标记，取第一个完整的对象或数组，解析失败时做一次轻量修复再试
func ParseResponse(text string) ([]Record, error) {
	raw, err := extractJSON(stripFences(text))
	if err != nil {
		return nil, err
	}

	value, err := decode(raw)
	if err != nil {
		value, err = decode(repairJSON(raw))
		if err != nil {
			return nil, err
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		return []Record{v}, nil
	case []interface{}:
		var out []Record
		for _, elem := range v {
			if obj, ok := elem.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
		if len(out) == 0 {
			return nil, errors.New("JSON array contains no objects")
		}
		return out, nil
	default:
		return nil, errNoJSON
	}
}

func decode(raw string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// stripFences 去掉```json ... ```包裹
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// extractJSON 返回第一个括号配平的对象或数组
func extractJSON(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", errNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errUnbalanced
}

// repairJSON 修复模型常见的格式问题：
// 弯引号、尾随逗号、未加引号的键、Python风格的None/True/False
func repairJSON(raw string) string {
	raw = strings.NewReplacer("“", `"`, "”", `"`).Replace(raw)

	var b bytes.Buffer
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == ',':
			// 尾随逗号
			if next := nextNonSpace(raw, i+1); next == '}' || next == ']' {
				continue
			}
			b.WriteByte(c)
		case isIdentStart(c):
			j := i
			for j < len(raw) && isIdentChar(raw[j]) {
				j++
			}
			word := raw[i:j]
			if nextNonSpace(raw, j) == ':' {
				b.WriteString(`"` + word + `"`)
			} else {
				b.WriteString(literal(word))
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func literal(word string) string {
	switch word {
	case "None", "NULL", "Null":
		return "null"
	case "True", "TRUE":
		return "true"
	case "False", "FALSE":
		return "false"
	}
	return word
}

func nextNonSpace(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return s[i]
	}
	return 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
