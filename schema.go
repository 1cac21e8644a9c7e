package batchdb

import (
	"context"
	"sync"
)

// StaticSchema 内存中的表结构，适用于测试或结构固定的场景
type StaticSchema struct {
	mu     sync.RWMutex
	tables map[string][]string
}

var _ SchemaInspector = (*StaticSchema)(nil)

// NewStaticSchema 创建空的 StaticSchema
func NewStaticSchema() *StaticSchema {
	return &StaticSchema{tables: make(map[string][]string)}
}

// WithTable 设置表的列（链式调用）
func (s *StaticSchema) WithTable(table string, columns ...string) *StaticSchema {
	cols := make([]string, len(columns))
	copy(cols, columns)
	s.mu.Lock()
	s.tables[table] = cols
	s.mu.Unlock()
	return s
}

// ColumnsOf 返回列名拷贝；未知表返回空切片
func (s *StaticSchema) ColumnsOf(_ context.Context, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cols := s.tables[table]
	out := make([]string, len(cols))
	copy(out, cols)
	return out, nil
}
