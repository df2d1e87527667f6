// Package handler 实现HTTP API的请求处理
package handler

import (
	"context"

	"github.com/fyerfyer/fin-data-pipeline/config"
	"github.com/fyerfyer/fin-data-pipeline/internal/loading"
	"github.com/fyerfyer/fin-data-pipeline/internal/pipeline"
)

// Runner 同步执行流水线
type Runner interface {
	Run(ctx context.Context, sources []config.Source) (*pipeline.Report, error)
}

// StoreInspector 查询存储连接状态和统计
type StoreInspector interface {
	TestConnections(ctx context.Context) loading.ConnectionStatus
	Statistics(ctx context.Context) loading.Stats
}

// SourceSelector 按名称或类别挑选数据源
type SourceSelector interface {
	SelectSources(names []string, testMode bool) []config.Source
}
