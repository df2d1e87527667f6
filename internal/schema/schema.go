// Package schema 关系表和向量索引的静态模式注册表
package schema

import (
	"sort"
	"strings"
)

// FieldType 字段类型
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeNumber    FieldType = "number"
	TypeInteger   FieldType = "integer"
	TypeDate      FieldType = "date"      // YYYY-MM-DD
	TypeTimestamp FieldType = "timestamp" // 由存储层生成
	TypeBool      FieldType = "bool"
	TypeJSON      FieldType = "json"
	TypeRef       FieldType = "ref" // 外键标识
)

// Field 字段定义
type Field struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Type          FieldType `json:"type"`
	Required      bool      `json:"required"`
	AutoGenerated bool      `json:"auto_generated,omitempty"` // 主键，不出现在提示词中
}

// Definition 表和索引共有的模式结构
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
	Dimension   int     `json:"dimension,omitempty"` // 仅向量索引使用
}

// RequiredFields 返回必填字段名，保持声明顺序
func (d Definition) RequiredFields() []string {
	var out []string
	for _, f := range d.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Field 按名称查找字段
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PromptFields 返回需要模型填写的字段
func (d Definition) PromptFields() []Field {
	out := make([]Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.AutoGenerated {
			out = append(out, f)
		}
	}
	return out
}

// Registry 只读模式注册表
// 名称查找不区分大小写，返回规范名称下的定义
type Registry struct {
	kind string
	defs map[string]Definition
}

func newRegistry(kind string, defs ...Definition) *Registry {
	r := &Registry{kind: kind, defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[key(d.Name)] = d
	}
	return r
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Kind 注册表类型：table 或 index
func (r *Registry) Kind() string {
	return r.kind
}

// Get 查找模式，不存在时返回false
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[key(name)]
	return d, ok
}

// RequiredFields 返回必填字段，未知名称返回nil
func (r *Registry) RequiredFields(name string) []string {
	d, ok := r.Get(name)
	if !ok {
		return nil
	}
	return d.RequiredFields()
}

// Exists 判断名称是否已注册
func (r *Registry) Exists(name string) bool {
	_, ok := r.defs[key(name)]
	return ok
}

// Names 返回所有规范名称，按字母排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// All 返回所有定义，按名称排序
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, n := range r.Names() {
		out = append(out, r.defs[key(n)])
	}
	return out
}

var (
	// Tables 关系表模式注册表
	Tables = newRegistry("table", tableDefinitions()...)
	// Indexes 向量索引模式注册表
	Indexes = newRegistry("index", indexDefinitions()...)
)
