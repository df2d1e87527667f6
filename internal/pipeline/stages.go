package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/extraction"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/structuring"
	"github.com/fyerfyer/fin-data-pipeline/internal/usage"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectorize"
)

// Stage 流水线阶段
// 单个条目的失败记录在Work中，只有整个阶段无法继续时才返回错误
type Stage interface {
	Name() string
	Run(ctx context.Context, state *RunState) error
}

// Extractor 抽取阶段依赖
type Extractor interface {
	ExtractSource(ctx context.Context, src config.Source) ([]extraction.Item, error)
}

// Structurer 结构化阶段依赖
type Structurer interface {
	StructureAll(ctx context.Context, content interface{}, schemaName string, u *usage.Usage) ([]structuring.Record, error)
}

// Vectorizer 向量化阶段依赖
type Vectorizer interface {
	Vectorize(ctx context.Context, text, indexName string, src vectorize.SourceMeta, u *usage.Usage) ([]vectordb.Record, error)
}

// Loader 加载阶段依赖
type Loader interface {
	LoadByCategory(ctx context.Context, category string, structured []structuring.Record, vectors []vectordb.Record) loading.LoadResult
}

// itemContent 只有下载的文件从磁盘读取，其余内容按原值使用
func itemContent(it extraction.Item) interface{} {
	if it.IsFile() {
		return structuring.FileContent(it.FilePath)
	}
	return it.RawContent
}

func panicError(r interface{}) error {
	return fmt.Errorf("panic: %v", r)
}

// ExtractStage 抓取所有数据源
type ExtractStage struct {
	extractor Extractor
	log       logrus.FieldLogger
}

// NewExtractStage 创建抽取阶段
func NewExtractStage(e Extractor, log logrus.FieldLogger) *ExtractStage {
	return &ExtractStage{extractor: e, log: log}
}

func (s *ExtractStage) Name() string { return "extract" }

func (s *ExtractStage) Run(ctx context.Context, state *RunState) error {
	return state.ForEach(ctx, len(state.Sources), func(i int) {
		src := state.Sources[i]
		items, err := s.extractor.ExtractSource(ctx, src)
		if err != nil {
			s.log.WithField("source", src.Name).WithError(err).Error("Source extraction failed")
			state.SourceFailed(src.Name, err)
			return
		}
		state.AddItems(items...)
	}, func(i int, r interface{}) {
		state.SourceFailed(state.Sources[i].Name, panicError(r))
	})
}

// StructureStage 按类别路由把条目抽取为表记录，并做类型转换和必填校验
type StructureStage struct {
	structurer Structurer
	log        logrus.FieldLogger
}

// NewStructureStage 创建结构化阶段
func NewStructureStage(st Structurer, log logrus.FieldLogger) *StructureStage {
	return &StructureStage{structurer: st, log: log}
}

func (s *StructureStage) Name() string { return "structure" }

func (s *StructureStage) Run(ctx context.Context, state *RunState) error {
	work := state.WorkItems()
	return state.ForEach(ctx, len(work), func(i int) {
		w := work[i]
		route, ok := schema.LookupRoute(w.Item.Route)
		if !ok {
			w.fail(s.Name(), errs.New(errs.KindUnknownSchema, "unknown category route: %q", w.Item.Route))
			return
		}
		w.Route = route

		records, err := s.structurer.StructureAll(ctx, itemContent(w.Item), route.Table, state.Usage)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"source":       w.Item.SourceName,
				"content_type": w.Item.ContentType,
				"table":        route.Table,
			}).WithError(err).Warn("Structuring failed")
			w.fail(s.Name(), err)
			return
		}

		for _, rec := range records {
			coerced, _ := structuring.Coerce(rec, route.Table)
			if v := structuring.Validate(coerced, route.Table); !v.IsValid {
				w.Invalid++
				s.log.WithFields(logrus.Fields{
					"source": w.Item.SourceName,
					"table":  route.Table,
					"issues": v.Issues,
				}).Warn("Structured record failed validation")
				continue
			}
			w.Records = append(w.Records, coerced)
		}
	}, func(i int, r interface{}) {
		work[i].fail(s.Name(), panicError(r))
	})
}

// VectorizeStage 对有向量索引的条目切块嵌入
type VectorizeStage struct {
	vectorizer Vectorizer
	log        logrus.FieldLogger
}

// NewVectorizeStage 创建向量化阶段
func NewVectorizeStage(v Vectorizer, log logrus.FieldLogger) *VectorizeStage {
	return &VectorizeStage{vectorizer: v, log: log}
}

func (s *VectorizeStage) Name() string { return "vectorize" }

func (s *VectorizeStage) Run(ctx context.Context, state *RunState) error {
	work := state.WorkItems()
	return state.ForEach(ctx, len(work), func(i int) {
		w := work[i]
		if w.Route.Index == "" {
			return
		}

		text, err := structuring.ContentText(itemContent(w.Item))
		if err != nil {
			w.fail(s.Name(), err)
			return
		}

		meta := vectorize.SourceMeta{
			SourceID:    vectorize.SourceID(w.Item.SourceURL, w.Item.ContentType, w.Item.FilePath),
			SourceURL:   w.Item.SourceURL,
			ContentType: w.Route.ContentType,
			Title:       w.Item.Title,
		}
		if len(w.Records) > 0 {
			meta.Fields = w.Records[0]
		}

		vectors, err := s.vectorizer.Vectorize(ctx, text, w.Route.Index, meta, state.Usage)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"source": w.Item.SourceName,
				"index":  w.Route.Index,
			}).WithError(err).Warn("Vectorization failed")
			w.fail(s.Name(), err)
			return
		}
		w.Vectors = vectors
	}, func(i int, r interface{}) {
		work[i].fail(s.Name(), panicError(r))
	})
}

// LoadStage 按类别写入两个存储
type LoadStage struct {
	loader Loader
	log    logrus.FieldLogger
}

// NewLoadStage 创建加载阶段
func NewLoadStage(l Loader, log logrus.FieldLogger) *LoadStage {
	return &LoadStage{loader: l, log: log}
}

func (s *LoadStage) Name() string { return "load" }

func (s *LoadStage) Run(ctx context.Context, state *RunState) error {
	work := state.WorkItems()
	return state.ForEach(ctx, len(work), func(i int) {
		w := work[i]
		if w.Route.Category == "" || (len(w.Records) == 0 && len(w.Vectors) == 0) {
			return
		}
		res := s.loader.LoadByCategory(ctx, w.Route.Category, w.Records, w.Vectors)
		w.Load = &res
		if res.Status != loading.StatusSuccess {
			w.fail(s.Name(), fmt.Errorf("%s: %s", res.Status, res.Message))
		}
	}, func(i int, r interface{}) {
		work[i].fail(s.Name(), panicError(r))
	})
}
