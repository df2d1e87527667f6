package repository

import "context"

// RecordRepository 结构化记录仓储接口
// 负责把经过校验的记录写入对应关系表
type RecordRepository interface {
	// Insert 在一个事务中写入记录，返回写入条数
	Insert(ctx context.Context, table string, records []map[string]interface{}) (int, error)

	// Count 统计表中记录数
	Count(ctx context.Context, table string) (int64, error)

	// Ping 检查数据库连接
	Ping(ctx context.Context) error
}
