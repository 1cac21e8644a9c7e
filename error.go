package batchdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration 配置错误：占位符预算非法、表不存在或列数为 0
	ErrConfiguration = errors.New("batchdb: configuration error")

	// ErrEmptyTable 表名为空
	ErrEmptyTable = errors.New("batchdb: table name cannot be empty")

	// ErrAlignment 行的列与表结构不一致，继续执行会导致参数错位
	ErrAlignment = errors.New("batchdb: row does not align with table schema")

	// ErrFetchCountMismatch 回查的行数与插入的行数不一致
	ErrFetchCountMismatch = errors.New("batchdb: fetched row count does not match inserted row count")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ExecutionError 执行器在某个分块上返回的错误。
// Err 为执行器返回的原始错误，可通过 errors.As 取得驱动错误类型。
type ExecutionError struct {
	Op     string // insert / insert_fetch / upsert
	Table  string
	Chunk  int // 失败的分块下标，-1 表示分块之外的步骤（如最终回查）
	Chunks int // 总分块数
	Done   int // 失败前已完成的分块数
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("batchdb: %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("batchdb: %s %s: chunk %d/%d failed (%d done): %v",
		e.Op, e.Table, e.Chunk+1, e.Chunks, e.Done, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AlignmentError 描述单行与表结构的不一致
type AlignmentError struct {
	Table   string
	Row     int      // 行在输入中的下标
	Missing []string // 表中存在但行未提供的列
	Unknown []string // 行提供但表中不存在的列
	Extra   []string // 表中存在但第一行未提供的列；多行 INSERT 只有一个列子句
}

func (e *AlignmentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batchdb: row %d of %s does not align with table schema", e.Row, e.Table)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ", missing columns [%s]", strings.Join(e.Missing, ","))
	}
	if len(e.Unknown) > 0 {
		fmt.Fprintf(&b, ", unknown columns [%s]", strings.Join(e.Unknown, ","))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, ", extra columns not in row 0 [%s]", strings.Join(e.Extra, ","))
	}
	return b.String()
}

func (e *AlignmentError) Is(target error) bool {
	return target == ErrAlignment
}

// FetchMismatchError InsertAndFetch 回查行数与输入行数不一致。
// 可恢复：返回该错误时同时返回已回查到的行。
type FetchMismatchError struct {
	Table    string
	Expected int
	Got      int
}

func (e *FetchMismatchError) Error() string {
	return fmt.Sprintf("batchdb: insert_fetch %s: expected %d rows, fetched %d", e.Table, e.Expected, e.Got)
}

func (e *FetchMismatchError) Is(target error) bool {
	return target == ErrFetchCountMismatch
}
