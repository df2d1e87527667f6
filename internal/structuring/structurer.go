// Package structuring 调用大模型把原始内容抽取为符合表模式的记录
package structuring

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/cache"
	"github.com/fyerfyer/fin-data-pipeline/internal/document"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/llm"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/usage"
)

// Record 结构化记录，键为表字段名
type Record = map[string]interface{}

// Config 结构化配置
type Config struct {
	MaxContentChars int           // 提示词中内容的最大rune数
	MaxTokens       int           // 单次生成的最大token数
	Temperature     float32       // 采样温度
	CacheTTL        time.Duration // 响应缓存时间，0使用缓存默认值
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxContentChars: 5000,
		MaxTokens:       1000,
		Temperature:     0.3,
	}
}

// FromAppConfig 从应用配置转换
func FromAppConfig(p config.PipelineConfig, l config.LLMConfig) Config {
	cfg := DefaultConfig()
	if p.MaxContentChars > 0 {
		cfg.MaxContentChars = p.MaxContentChars
	}
	if l.MaxTokens > 0 {
		cfg.MaxTokens = l.MaxTokens
	}
	if l.Temperature > 0 {
		cfg.Temperature = l.Temperature
	}
	return cfg
}

// Structurer 结构化器
type Structurer struct {
	client llm.Client
	cache  cache.Cache
	cfg    Config
	log    logrus.FieldLogger
}

// Option 结构化器选项
type Option func(*Structurer)

// WithCache 启用响应缓存
func WithCache(c cache.Cache) Option {
	return func(s *Structurer) {
		s.cache = c
	}
}

// NewStructurer 创建结构化器
func NewStructurer(client llm.Client, cfg Config, log logrus.FieldLogger, opts ...Option) *Structurer {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultConfig().MaxContentChars
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Structurer{
		client: client,
		cfg:    cfg,
		log:    log.WithField("component", "structuring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Structure 抽取单条记录
// 模型返回数组时取第一条
func (s *Structurer) Structure(ctx context.Context, content interface{}, schemaName string, u *usage.Usage) (Record, error) {
	records, err := s.StructureAll(ctx, content, schemaName, u)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// StructureAll 抽取记录，每日行情允许一次返回多条
// 未知模式在调用模型之前返回
func (s *Structurer) StructureAll(ctx context.Context, content interface{}, schemaName string, u *usage.Usage) ([]Record, error) {
	def, ok := schema.Tables.Get(schemaName)
	if !ok {
		return nil, errs.New(errs.KindUnknownSchema, "unknown schema: %s", schemaName)
	}
	log := s.log.WithField("schema", def.Name)

	text, err := ContentText(content)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.New(errs.KindEmptyContent, "no content to structure for %s", def.Name)
	}
	text = truncate(text, s.cfg.MaxContentChars)

	prompt := BuildPrompt(def, text)
	key := cache.ResponseKey(def.Name, s.client.Name(), prompt)

	if cached, ok := s.cached(ctx, key); ok {
		u.AddCacheHit()
		log.Debug("Using cached model response")
		return cached, nil
	}

	raw, err := s.generate(ctx, def.Name, prompt, u)
	if err != nil {
		return nil, err
	}

	records, err := ParseResponse(raw)
	if err != nil {
		log.WithField("response", clip(raw, 500)).WithError(err).Error("Failed to parse model response")
		return nil, errs.Wrap(errs.KindParseFailure, err, "parse model response for %s", def.Name)
	}
	if !allowsList(def.Name) && len(records) > 1 {
		records = records[:1]
	}

	s.store(ctx, key, records)
	log.WithField("records", len(records)).Info("Structured content")
	return records, nil
}

func (s *Structurer) generate(ctx context.Context, table, prompt string, u *usage.Usage) (string, error) {
	opts := []llm.GenerateOption{
		llm.WithGenerateMaxTokens(s.cfg.MaxTokens),
		llm.WithGenerateTemperature(s.cfg.Temperature),
	}
	// json_object模式只允许顶层对象
	if !allowsList(table) {
		opts = append(opts, llm.WithJSONMode())
	}

	resp, err := s.client.Generate(ctx, prompt, opts...)
	if err != nil {
		u.AddLLMFailure()
		if llm.Unreachable(err) {
			s.log.WithError(err).WithField("model", s.client.Name()).Warn("Model service unreachable")
		}
		return "", errs.Wrap(errs.KindModelCallFailed, err, "model call for %s", table)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		u.AddLLMFailure()
		return "", errs.New(errs.KindModelCallFailed, "empty model response for %s", table)
	}
	u.AddLLMCall(resp.TokenCount)
	return resp.Text, nil
}

func (s *Structurer) cached(ctx context.Context, key string) ([]Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	var records []Record
	found, err := cache.GetJSON(ctx, s.cache, key, &records)
	if err != nil {
		s.log.WithError(err).Warn("Response cache read failed")
		return nil, false
	}
	return records, found && len(records) > 0
}

func (s *Structurer) store(ctx context.Context, key string, records []Record) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, records, s.cfg.CacheTTL); err != nil {
		s.log.WithError(err).Warn("Response cache write failed")
	}
}

// FileContent 下载到本地的文件路径
// 只有这种类型的内容会从磁盘读取
type FileContent string

// ContentText 把条目内容转为文本
// FileContent按文件解析，字符串原样使用，结构化值转为缩进JSON
func ContentText(content interface{}) (string, error) {
	switch v := content.(type) {
	case nil:
		return "", nil
	case FileContent:
		return FileText(string(v))
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", errs.Wrap(errs.KindParseFailure, err, "encode content as JSON")
		}
		return string(data), nil
	}
}

// FileText 解析下载文件的文本
func FileText(path string) (string, error) {
	if !document.IsFile(path) {
		return "", errs.New(errs.KindParseFailure, "file not found: %s", path)
	}
	text, err := document.ParseFile(path)
	if errors.Is(err, document.ErrBinaryContent) || errors.Is(err, document.ErrEmptyDocument) {
		return "", errs.Wrap(errs.KindEmptyContent, err, "no text in %s", path)
	}
	if err != nil {
		return "", errs.Wrap(errs.KindParseFailure, err, "read %s", path)
	}
	return text, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
