package mysql

import (
	"context"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers"
)

// LastInsertIDQuery MySQL 读取最近一次 INSERT 首个自增 ID 的查询。
// 多行 INSERT 后 LAST_INSERT_ID() 返回该语句生成的第一个值。
const LastInsertIDQuery = "SELECT LAST_INSERT_ID() AS last_inserted_id"

var _ drivers.SQLDriver = (*Driver)(nil)

// Driver MySQL数据库SQL生成器
type Driver struct {
	builder drivers.InsertBuilder
}

// NewDriver 创建MySQL驱动（用于自定义需求）
func NewDriver() *Driver {
	return &Driver{}
}

// DefaultDriver 全局默认MySQL驱动实例
var DefaultDriver = NewDriver()

func (d *Driver) Name() string {
	return "mysql"
}

// GenerateInsertSQL 生成MySQL批量插入SQL
func (d *Driver) GenerateInsertSQL(ctx context.Context, table string, rows []batchdb.Row) (string, []any, error) {
	return d.builder.Build(ctx, table, rows)
}

func (d *Driver) LastInsertIDQuery() string {
	return LastInsertIDQuery
}

// NewExecutor 创建MySQL执行器（使用默认Driver）
// InsertAndFetch 请传入 *sql.Conn 或 *sql.Tx
func NewExecutor(conn drivers.Conn) *drivers.SQLExecutor {
	return drivers.NewSQLExecutor(conn, DefaultDriver)
}

// NewExecutorWithDriver 创建MySQL执行器（使用自定义Driver）
// 适用于需要特殊SQL优化或支持MySQL变种（如TiDB）的场景
func NewExecutorWithDriver(conn drivers.Conn, driver drivers.SQLDriver) *drivers.SQLExecutor {
	return drivers.NewSQLExecutor(conn, driver)
}
