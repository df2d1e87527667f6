// Package cache 缓存模型响应，避免对相同提示词重复调用模型
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/fin-data-pipeline/config"
)

// Cache 缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear 只清除本缓存前缀下的键
	Clear(ctx context.Context) error
	Close() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例，未知类型返回错误
func NewCache(config Config) (Cache, error) {
	name := strings.ToLower(config.Type)
	if name == "" {
		name = "memory"
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	Type            string        // memory 或 redis
	RedisAddr       string        // Redis连接地址
	RedisPassword   string        // Redis密码
	RedisDB         int           // Redis数据库编号
	Prefix          string        // 键前缀
	DefaultTTL      time.Duration // 默认缓存过期时间
	CleanupInterval time.Duration // 自动清理间隔时间 (仅内存缓存使用)
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		Prefix:          "finpipe",
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// GenerateCacheKey 以冒号拼接键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// ResponseKey 模型响应的缓存键：llm:{模式}:{模型}:{sha256(提示词)}
func ResponseKey(schema, model, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return GenerateCacheKey("llm", strings.ToLower(schema), model, hex.EncodeToString(sum[:]))
}

// GetJSON 读取并解码JSON值
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) (bool, error) {
	raw, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// 损坏的条目直接丢弃
		_ = c.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON 编码后写入
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

// FromAppConfig 从应用配置转换，TTL单位为秒
func FromAppConfig(c config.CacheConfig) Config {
	cfg := DefaultConfig()
	if c.Type != "" {
		cfg.Type = c.Type
	}
	cfg.RedisAddr = c.Address
	cfg.RedisPassword = c.Password
	cfg.RedisDB = c.DB
	if c.TTL > 0 {
		cfg.DefaultTTL = time.Duration(c.TTL) * time.Second
	}
	return cfg
}
