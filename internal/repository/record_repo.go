package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fyerfyer/fin-data-pipeline/internal/database"
	"github.com/fyerfyer/fin-data-pipeline/internal/models"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

// recordRepo 记录仓储实现
type recordRepo struct {
	db *gorm.DB
}

// NewRecordRepository 使用全局数据库连接创建记录仓储
func NewRecordRepository() RecordRepository {
	return &recordRepo{db: database.MustDB()}
}

// NewRecordRepositoryWithDB 使用指定的数据库连接创建记录仓储
func NewRecordRepositoryWithDB(db *gorm.DB) RecordRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &recordRepo{db: db}
}

// Insert 转换并写入记录，任何一条失败则整批回滚
func (r *recordRepo) Insert(ctx context.Context, table string, records []map[string]interface{}) (int, error) {
	def, ok := schema.Tables.Get(table)
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]models.Row, 0, len(records))
	for i, rec := range records {
		row, err := models.FromRecord(def.Name, rec)
		if err != nil {
			return 0, fmt.Errorf("record %d for %s: %w", i, def.Name, err)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to insert record %d into %s: %w", i, def.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Count 统计表中记录数
func (r *recordRepo) Count(ctx context.Context, table string) (int64, error) {
	def, ok := schema.Tables.Get(table)
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	var count int64
	if err := r.db.WithContext(ctx).Table(def.Name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", def.Name, err)
	}
	return count, nil
}

// Ping 检查数据库连接
func (r *recordRepo) Ping(ctx context.Context) error {
	return database.Ping(ctx, r.db)
}
