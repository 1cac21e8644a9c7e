package batchdb

import (
	"context"
	"fmt"
	"sync"
)

// MockExecutor 模拟执行器（用于测试），记录所有调用
type MockExecutor struct {
	mu sync.RWMutex

	Inserts    []MockInsert
	Statements []MockStatement
	Queries    []MockStatement

	// FailInsertOn / FailExecOn: 第 n 次（从 1 开始）调用返回对应错误
	FailInsertOn map[int]error
	FailExecOn   map[int]error
	// LastIDs 依次作为 LastInsertedID 的返回值；用尽后返回 NextID 自动递增的结果
	LastIDs []int64
	NextID  int64
	// QueryResult 作为 Query 的返回值；QueryResults 非空时按调用顺序逐次返回
	QueryResult  []Row
	QueryResults [][]Row
	QueryErr    error
	LastIDErr   error

	lastIDCalls int
	lastInsert  int64
}

var _ Executor = (*MockExecutor)(nil)

// MockInsert 一次 Insert 调用
type MockInsert struct {
	Table string
	Rows  []Row
}

// MockStatement 一次 Exec / Query 调用
type MockStatement struct {
	SQL  string
	Args []any
}

// NewMockExecutor 创建模拟执行器
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		FailInsertOn: make(map[int]error),
		FailExecOn:   make(map[int]error),
		NextID:       1,
	}
}

// Insert 记录插入的分块
func (e *MockExecutor) Insert(ctx context.Context, table string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call := len(e.Inserts) + 1
	if err, ok := e.FailInsertOn[call]; ok {
		return err
	}
	copied := make([]Row, len(rows))
	copy(copied, rows)
	e.Inserts = append(e.Inserts, MockInsert{Table: table, Rows: copied})

	e.lastInsert = e.NextID
	e.NextID += int64(len(rows))
	return nil
}

// Exec 记录语句与参数
func (e *MockExecutor) Exec(ctx context.Context, query string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call := len(e.Statements) + 1
	if err, ok := e.FailExecOn[call]; ok {
		return err
	}
	e.Statements = append(e.Statements, MockStatement{SQL: query, Args: args})
	return nil
}

// LastInsertedID 返回预设 ID 或最近一次 Insert 的首个 ID
func (e *MockExecutor) LastInsertedID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.LastIDErr != nil {
		return 0, e.LastIDErr
	}
	call := e.lastIDCalls
	e.lastIDCalls++
	if call < len(e.LastIDs) {
		return e.LastIDs[call], nil
	}
	return e.lastInsert, nil
}

// Query 记录查询并返回预设结果
func (e *MockExecutor) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call := len(e.Queries)
	e.Queries = append(e.Queries, MockStatement{SQL: query, Args: args})
	if e.QueryErr != nil {
		return nil, e.QueryErr
	}
	if call < len(e.QueryResults) {
		return e.QueryResults[call], nil
	}
	return e.QueryResult, nil
}

// Calls 返回各类调用的次数，用于断言
func (e *MockExecutor) Calls() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]int{
		"insert":  len(e.Inserts),
		"exec":    len(e.Statements),
		"last_id": e.lastIDCalls,
		"query":   len(e.Queries),
	}
}

// String 字符串表示
func (e *MockExecutor) String() string {
	calls := e.Calls()
	return fmt.Sprintf("MockExecutor{insert=%d, exec=%d, last_id=%d, query=%d}",
		calls["insert"], calls["exec"], calls["last_id"], calls["query"])
}
