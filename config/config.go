package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	VectorDB    VectorDBConfig    `mapstructure:"vectordb"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Embed       EmbedConfig       `mapstructure:"embed"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Extraction  ExtractionConfig  `mapstructure:"extraction"`
	Sources     []Source          `mapstructure:"sources"`      // 正式数据源
	TestSources []Source          `mapstructure:"test_sources"` // 测试模式数据源
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
	Mode string `mapstructure:"mode"` // gin运行模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空则只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
}

// StorageConfig 下载文件的存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地下载目录
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type"`     // 向量数据库类型：memory, faiss 或 qdrant
	Path     string `mapstructure:"path"`     // faiss索引目录或qdrant服务地址
	APIKey   string `mapstructure:"api_key"`  // qdrant API密钥
	Distance string `mapstructure:"distance"` // 距离度量方式：cosine, l2, dot
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`    // 提供商：remote, openai, tongyi
	Model       string        `mapstructure:"model"`       // 模型名称
	APIKey      string        `mapstructure:"api_key"`     // API密钥
	Endpoint    string        `mapstructure:"endpoint"`    // API端点
	MaxTokens   int           `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32       `mapstructure:"temperature"` // 采样温度
	Timeout     time.Duration `mapstructure:"timeout"`     // 单次调用超时
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider"`   // 提供商：remote, openai, tongyi
	Model      string        `mapstructure:"model"`      // 模型名称
	APIKey     string        `mapstructure:"api_key"`    // API密钥（如果需要）
	Endpoint   string        `mapstructure:"endpoint"`   // API端点
	BatchSize  int           `mapstructure:"batch_size"` // 批处理大小
	Dimensions int           `mapstructure:"dimensions"` // 向量维度
	Timeout    time.Duration `mapstructure:"timeout"`    // 单次调用超时
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	Type          string `mapstructure:"type"`           // 队列类型
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 关系数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	ChunkSize        int    `mapstructure:"chunk_size"`         // 分块大小（字符）
	ChunkOverlap     int    `mapstructure:"chunk_overlap"`      // 分块重叠大小
	ChunkStrategy    string `mapstructure:"chunk_strategy"`     // 分块策略：fixed 或 paragraph
	MaxContentChars  int    `mapstructure:"max_content_chars"`  // 提示词中内容的最大长度
	BatchSize        int    `mapstructure:"batch_size"`         // 向量写入批大小
	Workers          int    `mapstructure:"workers"`            // 并发处理数，1为顺序执行
	MaxRetryAttempts int    `mapstructure:"max_retry_attempts"` // 外部服务最大重试次数
	Simulation       bool   `mapstructure:"simulation"`         // 模拟模式，不写入数据库
}

// ExtractionConfig 数据抓取配置
type ExtractionConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`              // 单次请求超时
	RateLimitRPM      int           `mapstructure:"rate_limit_rpm"`       // 每分钟请求数上限
	UserAgent         string        `mapstructure:"user_agent"`           // 请求头User-Agent
	MaxFilesPerSource int           `mapstructure:"max_files_per_source"` // 每个数据源最多下载的文件数，0为不限
}

// Source 数据源描述
type Source struct {
	Name         string   `mapstructure:"name" yaml:"name" json:"name" validate:"required"`
	Category     string   `mapstructure:"category" yaml:"category" json:"category" validate:"required"`
	URL          string   `mapstructure:"url" yaml:"url" json:"url" validate:"required,http_url"`
	ContentTypes []string `mapstructure:"content_types" yaml:"content_types" json:"content_types" validate:"required,min=1,dive,oneof=JSON TEXT PDF EXCEL PPT PNG"`
	Description  string   `mapstructure:"description" yaml:"description" json:"description"`
	Route        string   `mapstructure:"route" yaml:"route" json:"route" validate:"required"`
}

var validate = validator.New()

// Validate 校验数据源描述
func (s Source) Validate() error {
	return validate.Struct(s)
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	resConfig := processEnvironmentVariables(&config)
	if err := resConfig.Validate(); err != nil {
		return nil, err
	}
	return resConfig, nil
}

// Validate 检查配置中相互约束的字段
func (c *Config) Validate() error {
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("pipeline.chunk_overlap must be in [0, %d), got %d", c.Pipeline.ChunkSize, c.Pipeline.ChunkOverlap)
	}
	for i, src := range append(append([]Source{}, c.Sources...), c.TestSources...) {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("invalid source #%d (%s): %w", i, src.Name, err)
		}
	}
	return nil
}

// SelectSources 根据运行参数挑选数据源
// names为空表示全部；testMode时使用测试数据源
func (c *Config) SelectSources(names []string, testMode bool) []Source {
	pool := c.Sources
	if testMode {
		pool = c.TestSources
	}
	if len(names) == 0 {
		return append([]Source(nil), pool...)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []Source
	for _, s := range pool {
		if wanted[strings.ToLower(s.Name)] || wanted[strings.ToLower(s.Category)] {
			out = append(out, s)
		}
	}
	return out
}

// processEnvironmentVariables 处理配置项中的${VAR}形式的环境变量引用
func processEnvironmentVariables(cfg *Config) *Config {
	for _, field := range []*string{
		&cfg.Embed.APIKey,
		&cfg.LLM.APIKey,
		&cfg.LLM.Endpoint,
		&cfg.Embed.Endpoint,
		&cfg.VectorDB.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		*field = expandEnv(*field)
	}
	return cfg
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./downloads")
	v.SetDefault("storage.bucket", "finpipe")
	v.SetDefault("storage.use_ssl", false)

	// 向量数据库默认配置
	v.SetDefault("vectordb.type", "memory")
	v.SetDefault("vectordb.path", "./vectordb")
	v.SetDefault("vectordb.distance", "cosine")

	// LLM默认配置
	v.SetDefault("llm.provider", "remote")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.endpoint", "http://localhost:8000")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "60s")

	// Embedding默认配置
	v.SetDefault("embed.provider", "remote")
	v.SetDefault("embed.model", "")
	v.SetDefault("embed.endpoint", "http://localhost:8001")
	v.SetDefault("embed.batch_size", 32)
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.timeout", "60s")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/finpipe.db")

	// 流水线默认配置
	v.SetDefault("pipeline.chunk_size", 500)
	v.SetDefault("pipeline.chunk_overlap", 50)
	v.SetDefault("pipeline.chunk_strategy", "fixed")
	v.SetDefault("pipeline.max_content_chars", 5000)
	v.SetDefault("pipeline.batch_size", 100)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.max_retry_attempts", 3)
	v.SetDefault("pipeline.simulation", false)

	// 抓取默认配置
	v.SetDefault("extraction.timeout", "30s")
	v.SetDefault("extraction.rate_limit_rpm", 60)
	v.SetDefault("extraction.user_agent", "Mozilla/5.0 (compatible; finpipe/1.0)")
	v.SetDefault("extraction.max_files_per_source", 10)

	// 数据源默认配置
	v.SetDefault("sources", sourceMaps(DefaultSources()))
	v.SetDefault("test_sources", sourceMaps(TestSources()))
}
