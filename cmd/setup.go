package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/cache"
	"github.com/fyerfyer/fin-data-pipeline/internal/chunker"
	"github.com/fyerfyer/fin-data-pipeline/internal/database"
	"github.com/fyerfyer/fin-data-pipeline/internal/embedding"
	"github.com/fyerfyer/fin-data-pipeline/internal/extraction"
	"github.com/fyerfyer/fin-data-pipeline/internal/llm"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/logging"
	"github.com/fyerfyer/fin-data-pipeline/internal/pipeline"
	"github.com/fyerfyer/fin-data-pipeline/internal/repository"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/structuring"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectorize"
	"github.com/fyerfyer/fin-data-pipeline/pkg/storage"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

// app 一次命令执行所需的全部组件
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       *gorm.DB
	vectors  *vectordb.IndexSet
	embedder *embedding.BatchProcessor
	loader   *loading.Loader
	runner   *pipeline.Runner
	closers  []func() error
}

// setupLogger 初始化日志
func setupLogger(cfg *config.Config, verbose bool) *logrus.Logger {
	return logging.New(cfg.Log, verbose)
}

// setupStores 初始化关系库和向量库
// 模拟模式下不连接任何存储
func (a *app) setupStores() error {
	if a.cfg.Pipeline.Simulation {
		a.log.Info("Simulation mode, stores are not opened")
		return nil
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Type = a.cfg.Database.Type
	if a.cfg.Database.DSN != "" {
		dbCfg.DSN = a.cfg.Database.DSN
	}
	if err := database.Setup(dbCfg, a.log); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database.MustDB()
	a.closers = append(a.closers, database.Close)

	set, err := vectordb.NewIndexSet(vectordb.Config{
		Type:              a.cfg.VectorDB.Type,
		Path:              a.cfg.VectorDB.Path,
		APIKey:            a.cfg.VectorDB.APIKey,
		DistanceType:      vectordb.ParseDistance(a.cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	}, schema.Indexes.All())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	a.vectors = set
	a.closers = append(a.closers, set.Close)
	return nil
}

// setupLoader 创建加载器，未打开的存储传入nil
func (a *app) setupLoader() {
	var records repository.RecordRepository
	if a.db != nil {
		records = repository.NewRecordRepository()
	}
	var vectors loading.VectorStore
	if a.vectors != nil {
		vectors = a.vectors
	}
	a.loader = loading.NewLoader(records, vectors, loading.FromAppConfig(a.cfg.Pipeline), a.log)
}

// setupEmbedder 创建嵌入客户端和批处理器
func (a *app) setupEmbedder() error {
	c := a.cfg.Embed
	client, err := embedding.NewClient(c.Provider,
		embedding.WithAPIKey(c.APIKey),
		embedding.WithBaseURL(c.Endpoint),
		embedding.WithModel(c.Model),
		embedding.WithTimeout(c.Timeout),
		embedding.WithMaxRetries(a.cfg.Pipeline.MaxRetryAttempts),
		embedding.WithDimensions(c.Dimensions),
		embedding.WithBatchSize(c.BatchSize),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}

	batch, err := embedding.NewBatchProcessor(client, c.BatchSize, a.cfg.Pipeline.Workers)
	if err != nil {
		return fmt.Errorf("failed to create embedding batch processor: %w", err)
	}
	a.embedder = batch
	a.closers = append(a.closers, func() error {
		batch.Release()
		return nil
	})
	return nil
}

// setupStructurer 创建LLM客户端和结构化器
func (a *app) setupStructurer() (*structuring.Structurer, error) {
	c := a.cfg.LLM
	client, err := llm.NewClient(c.Provider,
		llm.WithAPIKey(c.APIKey),
		llm.WithBaseURL(c.Endpoint),
		llm.WithModel(c.Model),
		llm.WithTimeout(c.Timeout),
		llm.WithMaxRetries(a.cfg.Pipeline.MaxRetryAttempts),
		llm.WithMaxTokens(c.MaxTokens),
		llm.WithTemperature(c.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	var opts []structuring.Option
	if a.cfg.Cache.Enable {
		ch, err := cache.NewCache(cache.FromAppConfig(a.cfg.Cache))
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		a.closers = append(a.closers, ch.Close)
		opts = append(opts, structuring.WithCache(ch))
	}

	return structuring.NewStructurer(client, structuring.FromAppConfig(a.cfg.Pipeline, a.cfg.LLM), a.log, opts...), nil
}

// setupRunner 组装四阶段流水线
func (a *app) setupRunner(ctx context.Context) error {
	store, err := storage.New(ctx, storage.Config{
		Type: a.cfg.Storage.Type,
		Path: a.cfg.Storage.Path,
		Minio: storage.MinioConfig{
			Endpoint:  a.cfg.Storage.Endpoint,
			AccessKey: a.cfg.Storage.AccessKey,
			SecretKey: a.cfg.Storage.SecretKey,
			UseSSL:    a.cfg.Storage.UseSSL,
			Bucket:    a.cfg.Storage.Bucket,
		},
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	structurer, err := a.setupStructurer()
	if err != nil {
		return err
	}
	if err := a.setupEmbedder(); err != nil {
		return err
	}

	strategy, err := chunker.New(chunker.Config{
		Strategy:     chunker.StrategyType(a.cfg.Pipeline.ChunkStrategy),
		ChunkSize:    a.cfg.Pipeline.ChunkSize,
		ChunkOverlap: a.cfg.Pipeline.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}

	a.runner = pipeline.New(pipeline.Deps{
		Extractor:  extraction.NewExtractor(extraction.FromAppConfig(a.cfg.Extraction), store, a.log),
		Structurer: structurer,
		Vectorizer: vectorize.NewVectorizer(strategy, a.embedder, a.log),
		Loader:     a.loader,
	}, pipeline.Options{
		Workers:    a.cfg.Pipeline.Workers,
		Simulation: a.cfg.Pipeline.Simulation,
	}, a.log)
	return nil
}

// newApp 按需初始化组件
// withRunner为false时只打开存储，用于stats和health
func newApp(ctx context.Context, cfg *config.Config, verbose, withRunner bool) (*app, error) {
	a := &app{cfg: cfg, log: setupLogger(cfg, verbose)}

	if err := a.setupStores(); err != nil {
		a.Close()
		return nil, err
	}
	a.setupLoader()

	if withRunner {
		if err := a.setupRunner(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// setupQueue 创建任务队列，未启用时返回nil
func (a *app) setupQueue(required bool) (*taskqueue.RedisQueue, error) {
	if !a.cfg.Queue.Enable {
		if required {
			return nil, fmt.Errorf("task queue is not enabled in config")
		}
		return nil, nil
	}

	q, err := taskqueue.NewRedisQueue(taskqueue.FromAppConfig(a.cfg.Queue), a.log)
	if err != nil {
		if required {
			return nil, err
		}
		a.log.WithError(err).Warn("Task queue unavailable, async runs disabled")
		return nil, nil
	}
	a.closers = append(a.closers, q.Close)
	return q, nil
}

// Close 按创建的逆序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Failed to release resource")
		}
	}
	a.closers = nil
}
