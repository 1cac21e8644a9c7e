package drivers

import (
	"context"
	"database/sql"

	"github.com/rushairer/batchdb"
)

// Conn *sql.DB、*sql.Conn、*sql.Tx 的公共子集
//
// LAST_INSERT_ID() 是会话级的：InsertAndFetch 需要 *sql.Conn 或 *sql.Tx，
// 使用 *sql.DB 时插入与读取 ID 可能落在不同连接上。
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Conn = (*sql.DB)(nil)
	_ Conn = (*sql.Conn)(nil)
	_ Conn = (*sql.Tx)(nil)
)

// SQLDriver 数据库特定的SQL生成器接口
type SQLDriver interface {
	// Name 驱动名称，如 "mysql"、"sqlite"
	Name() string

	// GenerateInsertSQL 生成一个分块的多行 INSERT
	GenerateInsertSQL(ctx context.Context, table string, rows []batchdb.Row) (sql string, args []any, err error)

	// LastInsertIDQuery 读取最近一次 INSERT 首个自增 ID 的查询，结果为单行单列
	LastInsertIDQuery() string
}
