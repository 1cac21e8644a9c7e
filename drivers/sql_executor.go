package drivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rushairer/batchdb"
)

var _ batchdb.Executor = (*SQLExecutor)(nil)

// SQLExecutor 基于 database/sql 的执行器
// 架构：BatchWriter -> SQLExecutor -> SQLDriver -> Conn
type SQLExecutor struct {
	conn   Conn      // 数据库连接（调用方管理生命周期）
	driver SQLDriver // SQL生成器（数据库特定）
}

// NewSQLExecutor 创建SQL执行器
func NewSQLExecutor(conn Conn, driver SQLDriver) *SQLExecutor {
	return &SQLExecutor{
		conn:   conn,
		driver: driver,
	}
}

// Driver 返回使用的 SQL 生成器
func (e *SQLExecutor) Driver() SQLDriver {
	return e.driver
}

// Insert 执行一个分块的多行 INSERT
func (e *SQLExecutor) Insert(ctx context.Context, table string, rows []batchdb.Row) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := e.driver.GenerateInsertSQL(ctx, table, rows)
	if err != nil {
		return err
	}
	_, err = e.conn.ExecContext(ctx, query, args...)
	return err
}

// Exec 执行原始参数化 SQL
func (e *SQLExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.conn.ExecContext(ctx, query, args...)
	return err
}

// LastInsertedID 读取最近一次 INSERT 的首个自增 ID
func (e *SQLExecutor) LastInsertedID(ctx context.Context) (int64, error) {
	var id int64
	if err := e.conn.QueryRowContext(ctx, e.driver.LastInsertIDQuery()).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: read last insert id: %w", e.driver.Name(), err)
	}
	return id, nil
}

// Query 执行查询，每行经 sqlx.MapScan 扫描为 列名 -> 值；[]byte 转为 string
func (e *SQLExecutor) Query(ctx context.Context, query string, args ...any) (out []batchdb.Row, err error) {
	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	for rows.Next() {
		row := make(batchdb.Row)
		if err := sqlx.MapScan(rows, row); err != nil {
			return nil, err
		}
		for col, v := range row {
			if b, ok := v.([]byte); ok {
				row[col] = string(b)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
