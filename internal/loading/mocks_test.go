package loading

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

type mockRecordRepo struct {
	mock.Mock
}

func (m *mockRecordRepo) Insert(ctx context.Context, table string, records []map[string]interface{}) (int, error) {
	args := m.Called(ctx, table, records)
	return args.Int(0), args.Error(1)
}

func (m *mockRecordRepo) Count(ctx context.Context, table string) (int64, error) {
	args := m.Called(ctx, table)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecordRepo) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockVectorStore struct {
	mock.Mock
}

func (m *mockVectorStore) Upsert(ctx context.Context, index string, records []vectordb.Record) error {
	return m.Called(ctx, index, records).Error(0)
}

func (m *mockVectorStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockVectorStore) Stats(ctx context.Context) (map[string]vectordb.IndexStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(map[string]vectordb.IndexStats)
	return stats, args.Error(1)
}
