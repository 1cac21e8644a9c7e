package batchdb

import "sort"

// Row 一行数据，key 为列名，value 为列值
type Row = map[string]any

// IDRange 一个分块插入后分配到的自增 ID 区间（闭区间）
type IDRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Operation 批量操作类型
type Operation string

const (
	OpInsert      Operation = "insert"
	OpInsertFetch Operation = "insert_fetch"
	OpUpsert      Operation = "upsert"
)

// String returns the string representation of Operation
func (op Operation) String() string {
	return string(op)
}

// ChunkProgress 单个分块执行完成后的进度
type ChunkProgress struct {
	Op       Operation
	Table    string
	Chunk    int // 当前分块下标（从 0 开始）
	Chunks   int // 总分块数
	Rows     int // 当前分块行数
	RowsDone int // 累计已完成行数
}

// ProgressFunc 分块进度回调
type ProgressFunc func(p ChunkProgress)

// SortedColumns 返回行的列名（升序）
func SortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
