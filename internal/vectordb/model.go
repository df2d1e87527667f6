package vectordb

import (
	"context"
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrRecordNotFound   = errors.New("vector record not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid vector record ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	ErrUnknownIndex     = errors.New("unknown vector index")
)

// Record 向量记录
// ID由来源和分块位置确定，重复写入同一ID会覆盖旧记录
type Record struct {
	ID        string                 `json:"id"`       // 唯一标识符
	Values    []float32              `json:"values"`   // 向量表示
	Metadata  map[string]interface{} `json:"metadata"` // 附加元数据
	CreatedAt time.Time              `json:"created_at"`
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Record   Record  `json:"record"`
	Score    float32 `json:"score"`    // 相似度得分
	Distance float32 `json:"distance"` // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	Metadata   map[string]interface{} // 按元数据精确匹配
	MinScore   float32                // 最小相似度分数
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 单个向量索引的存储接口
type Repository interface {
	// Upsert 写入记录，ID已存在时覆盖
	Upsert(ctx context.Context, records []Record) error

	// Get 获取单条记录
	Get(ctx context.Context, id string) (Record, error)

	// Delete 删除单条记录
	Delete(ctx context.Context, id string) error

	// Search 相似度搜索
	Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取记录总数
	Count(ctx context.Context) (int, error)

	// Ping 检查存储是否可用
	Ping(ctx context.Context) error

	// Dimension 返回向量维数
	Dimension() int

	// Close 关闭连接或落盘
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string        // 数据库类型，如 "memory", "faiss", "qdrant"
	Path              string        // faiss索引文件路径或qdrant服务地址
	Collection        string        // 索引名称（qdrant集合名）
	APIKey            string        // qdrant API密钥
	Dimension         int           // 向量维度
	DistanceType      DistanceType  // 距离计算类型
	CreateIfNotExists bool          // 如果不存在是否创建
	Timeout           time.Duration // 网络请求超时
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}
	return factory(config)
}
