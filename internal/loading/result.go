package loading

import (
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

// Status 分类加载的总体状态
type Status string

const (
	StatusSuccess Status = "success" // 所有尝试的写入都成功
	StatusPartial Status = "partial" // 两个写入中只有一个成功，需要人工核对
	StatusFailed  Status = "failed"  // 所有尝试的写入都失败，或发生意外错误
	StatusError   Status = "error"   // 运行被取消，未完成加载
)

// WriteResult 单个存储的写入结果
type WriteResult struct {
	Target    string `json:"target"`
	Success   bool   `json:"success"`
	Count     int    `json:"count"`
	Simulated bool   `json:"simulated,omitempty"`
	Message   string `json:"message,omitempty"`
	Err       error  `json:"-"`
}

func failure(target string, err error) WriteResult {
	return WriteResult{Target: target, Message: err.Error(), Err: err}
}

// LoadResult 分类加载结果，未尝试的写入为nil
type LoadResult struct {
	Status     Status       `json:"status"`
	Category   string       `json:"category"`
	Relational *WriteResult `json:"relational,omitempty"`
	Vector     *WriteResult `json:"vector,omitempty"`
	Message    string       `json:"message,omitempty"`
	Err        error        `json:"-"`
}

// ConnectionStatus 存储连通性
type ConnectionStatus struct {
	Relational   bool              `json:"relational"`
	Vector       bool              `json:"vector"`
	AllConnected bool              `json:"all_connected"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// Stats 加载统计
type Stats struct {
	Connections ConnectionStatus               `json:"connections"`
	Tables      map[string]int64               `json:"tables"`
	Indexes     map[string]vectordb.IndexStats `json:"indexes"`
}
