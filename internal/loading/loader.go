// Package loading 把校验后的记录写入关系库和向量库
package loading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/models"
	"github.com/fyerfyer/fin-data-pipeline/internal/repository"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/structuring"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

// VectorStore 按索引名写入的向量存储，*vectordb.IndexSet实现了该接口
type VectorStore interface {
	Upsert(ctx context.Context, index string, records []vectordb.Record) error
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]vectordb.IndexStats, error)
}

// Config 加载配置
type Config struct {
	BatchSize  int  // 向量写入批大小
	Simulation bool // 只校验不写入
}

// FromAppConfig 从应用配置转换
func FromAppConfig(p config.PipelineConfig) Config {
	return Config{BatchSize: p.BatchSize, Simulation: p.Simulation}
}

// Loader 加载器，任一存储可以为nil，对应写入会失败
type Loader struct {
	records repository.RecordRepository
	vectors VectorStore
	cfg     Config
	log     logrus.FieldLogger
}

// NewLoader 创建加载器
func NewLoader(records repository.RecordRepository, vectors VectorStore, cfg Config, log logrus.FieldLogger) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{
		records: records,
		vectors: vectors,
		cfg:     cfg,
		log:     log.WithField("component", "loading"),
	}
}

// Simulation 是否处于模拟模式
func (l *Loader) Simulation() bool {
	return l.cfg.Simulation
}

// LoadStructured 校验并写入结构化记录
// 先做类型转换再校验必填字段，任何一条无效则整批不写入
func (l *Loader) LoadStructured(ctx context.Context, table string, records ...structuring.Record) WriteResult {
	def, ok := schema.Tables.Get(table)
	if !ok {
		return failure(table, errs.New(errs.KindUnknownSchema, "unknown table: %s", table))
	}
	if len(records) == 0 {
		return failure(def.Name, errs.New(errs.KindValidationFailed, "no records for %s", def.Name))
	}

	prepared := make([]map[string]interface{}, 0, len(records))
	var issues []string
	for i, rec := range records {
		coerced, coerceIssues := structuring.Coerce(rec, def.Name)
		for _, issue := range coerceIssues {
			issues = append(issues, fmt.Sprintf("record %d: %s", i, issue))
		}
		if v := structuring.Validate(coerced, def.Name); !v.IsValid {
			for _, issue := range v.Issues {
				issues = append(issues, fmt.Sprintf("record %d: %s", i, issue))
			}
			continue
		}
		prepared = append(prepared, coerced)
	}
	if len(prepared) < len(records) {
		err := errs.New(errs.KindValidationFailed, "%d of %d records for %s are invalid",
			len(records)-len(prepared), len(records), def.Name).
			WithDetail("issues", issues)
		l.log.WithFields(logrus.Fields{"table": def.Name, "issues": issues}).Warn("Rejected structured records")
		return failure(def.Name, err)
	}
	if len(issues) > 0 {
		l.log.WithFields(logrus.Fields{"table": def.Name, "issues": issues}).Debug("Dropped unconvertible values")
	}

	if l.cfg.Simulation {
		l.log.WithFields(logrus.Fields{"table": def.Name, "records": len(prepared)}).Info("Simulated structured load")
		return WriteResult{Target: def.Name, Success: true, Count: len(prepared), Simulated: true}
	}
	if l.records == nil {
		return failure(def.Name, errs.New(errs.KindConnectionFailure, "relational store is not configured"))
	}

	n, err := l.records.Insert(ctx, def.Name, prepared)
	if err != nil {
		kind := errs.KindConnectionFailure
		if errors.Is(err, models.ErrUnknownTable) {
			kind = errs.KindUnknownSchema
		}
		return failure(def.Name, errs.Wrap(kind, err, "insert into %s", def.Name))
	}

	l.log.WithFields(logrus.Fields{"table": def.Name, "records": n}).Info("Loaded structured records")
	return WriteResult{Target: def.Name, Success: true, Count: n}
}

// LoadVector 检查向量形状后按批写入
// 校验在任何存储调用之前完成
func (l *Loader) LoadVector(ctx context.Context, index string, vectors []vectordb.Record) WriteResult {
	def, ok := schema.Indexes.Get(index)
	if !ok {
		return failure(index, errs.New(errs.KindUnknownSchema, "unknown vector index: %s", index))
	}
	if len(vectors) == 0 {
		return failure(def.Name, errs.New(errs.KindValidationFailed, "no vectors for %s", def.Name))
	}
	for i, rec := range vectors {
		if err := vectordb.ValidateRecord(rec, def.Dimension); err != nil {
			return failure(def.Name, errs.Wrap(errs.KindValidationFailed, err, "vector %d for %s", i, def.Name).
				WithDetail("index", def.Name))
		}
	}

	if l.cfg.Simulation {
		l.log.WithFields(logrus.Fields{"index": def.Name, "vectors": len(vectors)}).Info("Simulated vector load")
		return WriteResult{Target: def.Name, Success: true, Count: len(vectors), Simulated: true}
	}
	if l.vectors == nil {
		return failure(def.Name, errs.New(errs.KindConnectionFailure, "vector store is not configured"))
	}

	written := 0
	for start := 0; start < len(vectors); start += l.cfg.BatchSize {
		end := start + l.cfg.BatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := l.vectors.Upsert(ctx, def.Name, vectors[start:end]); err != nil {
			res := failure(def.Name, errs.Wrap(errs.KindConnectionFailure, err, "upsert into %s", def.Name).
				WithDetail("written", written))
			res.Count = written
			return res
		}
		written = end
	}

	l.log.WithFields(logrus.Fields{"index": def.Name, "vectors": written}).Info("Loaded vectors")
	return WriteResult{Target: def.Name, Success: true, Count: written}
}

// LoadByCategory 按类别路由写入两个存储并汇总状态
// 不做回滚：一个成功一个失败时返回partial
func (l *Loader) LoadByCategory(ctx context.Context, category string, structured []structuring.Record, vectors []vectordb.Record) (result LoadResult) {
	result.Category = category
	defer func() {
		if r := recover(); r != nil {
			l.log.WithFields(logrus.Fields{"category": category, "panic": r}).Error("Load panicked")
			result.Status = StatusFailed
			result.Message = fmt.Sprintf("unexpected error: %v", r)
			result.Err = fmt.Errorf("load %s: %v", category, r)
		}
	}()

	route, ok := schema.LookupRoute(category)
	if !ok {
		result.Status = StatusFailed
		result.Err = errs.New(errs.KindUnknownSchema, "unknown category: %s", category)
		result.Message = result.Err.Error()
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Status = StatusError
		result.Err = err
		result.Message = err.Error()
		return result
	}

	var attempted, succeeded int
	if len(structured) > 0 {
		res := l.LoadStructured(ctx, route.Table, structured...)
		result.Relational = &res
		attempted++
		if res.Success {
			succeeded++
		}
	}
	if len(vectors) > 0 {
		var res WriteResult
		if route.Index == "" {
			res = failure("", errs.New(errs.KindUnknownSchema, "category %s has no vector index", route.Category))
		} else {
			res = l.LoadVector(ctx, route.Index, vectors)
		}
		result.Vector = &res
		attempted++
		if res.Success {
			succeeded++
		}
	}

	switch {
	case attempted == 0:
		result.Status = StatusFailed
		result.Message = "nothing to load"
	case succeeded == attempted:
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("loaded %s", route.Category)
	case succeeded == 0:
		result.Status = StatusFailed
		result.Message = joinMessages(result)
		result.Err = firstErr(result)
	default:
		result.Status = StatusPartial
		result.Message = joinMessages(result)
		result.Err = errs.Wrap(errs.KindPartialWrite, firstErr(result), "partial load for %s", route.Category)
	}

	l.log.WithFields(logrus.Fields{
		"category": route.Category,
		"status":   result.Status,
	}).Info("Category load finished")
	return result
}

func joinMessages(r LoadResult) string {
	var parts []string
	for _, w := range []*WriteResult{r.Relational, r.Vector} {
		if w != nil && !w.Success {
			parts = append(parts, w.Message)
		}
	}
	return strings.Join(parts, "; ")
}

func firstErr(r LoadResult) error {
	for _, w := range []*WriteResult{r.Relational, r.Vector} {
		if w != nil && w.Err != nil {
			return w.Err
		}
	}
	return nil
}

// TestConnections 独立探测两个存储，加载前不需要调用
func (l *Loader) TestConnections(ctx context.Context) ConnectionStatus {
	status := ConnectionStatus{Errors: make(map[string]string)}

	if l.records == nil {
		status.Errors["relational"] = "not configured"
	} else if err := l.records.Ping(ctx); err != nil {
		status.Errors["relational"] = err.Error()
	} else {
		status.Relational = true
	}

	if l.vectors == nil {
		status.Errors["vector"] = "not configured"
	} else if err := l.vectors.Ping(ctx); err != nil {
		status.Errors["vector"] = err.Error()
	} else {
		status.Vector = true
	}

	status.AllConnected = status.Relational && status.Vector
	return status
}

// Statistics 各表记录数和各索引向量数
func (l *Loader) Statistics(ctx context.Context) Stats {
	stats := Stats{
		Connections: l.TestConnections(ctx),
		Tables:      make(map[string]int64),
		Indexes:     make(map[string]vectordb.IndexStats),
	}

	if stats.Connections.Relational {
		for _, name := range schema.Tables.Names() {
			count, err := l.records.Count(ctx, name)
			if err != nil {
				l.log.WithField("table", name).WithError(err).Warn("Failed to count table")
				continue
			}
			stats.Tables[name] = count
		}
	}
	if stats.Connections.Vector {
		idx, err := l.vectors.Stats(ctx)
		if err != nil {
			l.log.WithError(err).Warn("Failed to read index statistics")
		}
		for name, s := range idx {
			stats.Indexes[name] = s
		}
	}
	return stats
}
