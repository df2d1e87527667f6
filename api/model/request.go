package model

// RunRequest 触发流水线运行
type RunRequest struct {
	Sources  []string `json:"sources" binding:"omitempty,dive,required"` // 数据源名称或类别，为空表示全部
	TestMode bool     `json:"test_mode"`                                 // 使用测试数据源
	Async    bool     `json:"async"`                                     // 以队列任务方式执行
}

// TaskRequest 任务查询请求
type TaskRequest struct {
	ID string `uri:"id" binding:"required,uuid"` // 任务ID
}

// SchemaRequest 结构定义查询请求
type SchemaRequest struct {
	Name string `uri:"name" binding:"required"` // 表名或索引名，不区分大小写
}
