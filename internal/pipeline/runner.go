// Package pipeline 按固定顺序驱动抽取、结构化、向量化和加载四个阶段
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/usage"
)

// Report 一次运行的汇总
type Report struct {
	RunID         string                 `json:"run_id"`
	Sources       int                    `json:"sources"`
	FailedSources map[string]string      `json:"failed_sources,omitempty"`
	Extracted     int                    `json:"extracted"`
	Files         int                    `json:"files"` // 下载的文件条目数
	ItemsByType   map[string]int         `json:"items_by_type"`
	ItemsBySource map[string]int         `json:"items_by_source"`
	Structured    int                    `json:"structured"` // 通过校验的记录数
	Invalid       int                    `json:"invalid"`    // 未通过校验的记录数
	Vectors       int                    `json:"vectors"`
	Loads         map[loading.Status]int `json:"loads"`
	Skipped       int                    `json:"skipped"` // 没有可加载内容的条目
	Errors        []string               `json:"errors,omitempty"`
	Usage         usage.Summary          `json:"usage"`
	Duration      time.Duration          `json:"duration"`
	Simulation    bool                   `json:"simulation"`
}

// Runner 固定顺序的阶段驱动器
type Runner struct {
	stages     []Stage
	workers    int
	simulation bool
	log        logrus.FieldLogger
}

// Deps 标准四阶段所需的组件
type Deps struct {
	Extractor  Extractor
	Structurer Structurer
	Vectorizer Vectorizer
	Loader     Loader
}

// Options 运行选项
type Options struct {
	Workers    int  // 阶段内并发数，1为顺序执行
	Simulation bool // 只在报告中标记，写入是否跳过由Loader决定
}

// New 创建标准四阶段流水线
func New(d Deps, opts Options, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "pipeline")
	return NewRunner(opts, log,
		NewExtractStage(d.Extractor, log),
		NewStructureStage(d.Structurer, log),
		NewVectorizeStage(d.Vectorizer, log),
		NewLoadStage(d.Loader, log),
	)
}

// NewRunner 使用给定阶段创建驱动器
func NewRunner(opts Options, log logrus.FieldLogger, stages ...Stage) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{stages: stages, workers: opts.Workers, simulation: opts.Simulation, log: log}
}

// Run 依次执行各阶段，每个阶段处理完整批条目后才进入下一阶段
// 阶段返回错误（通常是ctx取消）时停止并返回已有的报告
func (r *Runner) Run(ctx context.Context, sources []config.Source) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.log.WithField("run_id", runID)

	var pool *ants.Pool
	if r.workers > 1 {
		p, err := ants.NewPool(r.workers)
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		defer p.Release()
		pool = p
	}

	state := newRunState(sources, pool)
	log.WithFields(logrus.Fields{
		"sources":    len(sources),
		"workers":    r.workers,
		"simulation": r.simulation,
	}).Info("Pipeline started")

	var runErr error
	for _, stage := range r.stages {
		stageStart := time.Now()
		if err := stage.Run(ctx, state); err != nil {
			runErr = fmt.Errorf("stage %s: %w", stage.Name(), err)
			log.WithField("stage", stage.Name()).WithError(err).Error("Pipeline stage aborted")
			break
		}
		log.WithFields(logrus.Fields{
			"stage":    stage.Name(),
			"items":    len(state.WorkItems()),
			"duration": time.Since(stageStart).String(),
		}).Info("Stage finished")
	}

	report := r.report(state)
	report.RunID = runID
	report.Duration = time.Since(start)

	log.WithFields(logrus.Fields{
		"extracted":  report.Extracted,
		"files":      report.Files,
		"structured": report.Structured,
		"invalid":    report.Invalid,
		"vectors":    report.Vectors,
		"loads":      report.Loads,
		"llm_calls":  report.Usage.LLMCalls,
		"duration":   report.Duration.String(),
	}).Info("Pipeline finished")
	return report, runErr
}

func (r *Runner) report(state *RunState) *Report {
	state.mu.Lock()
	failed := make(map[string]string, len(state.failedSources))
	for k, v := range state.failedSources {
		failed[k] = v
	}
	state.mu.Unlock()

	rep := &Report{
		Sources:       len(state.Sources),
		FailedSources: failed,
		ItemsByType:   make(map[string]int),
		ItemsBySource: make(map[string]int),
		Loads:         make(map[loading.Status]int),
		Simulation:    r.simulation,
		Usage:         state.Usage.Snapshot(),
	}
	for _, w := range state.WorkItems() {
		rep.Extracted++
		rep.ItemsByType[w.Item.ContentType]++
		rep.ItemsBySource[w.Item.SourceName]++
		if w.Item.IsFile() {
			rep.Files++
		}
		rep.Structured += len(w.Records)
		rep.Invalid += w.Invalid
		rep.Vectors += len(w.Vectors)
		if w.Load != nil {
			rep.Loads[w.Load.Status]++
		} else {
			rep.Skipped++
		}
		for _, e := range w.Errors {
			rep.Errors = append(rep.Errors, w.Item.SourceName+": "+e)
		}
	}
	sort.Strings(rep.Errors)
	return rep
}
