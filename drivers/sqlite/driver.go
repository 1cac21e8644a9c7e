package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers"
)

// LastInsertIDQuery 多行 INSERT 后 last_insert_rowid() 指向最后一行，
// 减去 changes() 再加 1 得到该语句的首个 rowid，与 MySQL LAST_INSERT_ID() 语义一致
const LastInsertIDQuery = "SELECT last_insert_rowid() - changes() + 1 AS last_inserted_id"

const columnsQuery = "SELECT name FROM pragma_table_info(?) ORDER BY cid"

var _ drivers.SQLDriver = (*Driver)(nil)

// Driver SQLite数据库SQL生成器
type Driver struct {
	builder drivers.InsertBuilder
}

// NewDriver 创建SQLite驱动
func NewDriver() *Driver {
	return &Driver{}
}

// DefaultDriver 全局默认SQLite驱动实例
var DefaultDriver = NewDriver()

func (d *Driver) Name() string {
	return "sqlite"
}

// GenerateInsertSQL 生成SQLite批量插入SQL
func (d *Driver) GenerateInsertSQL(ctx context.Context, table string, rows []batchdb.Row) (string, []any, error) {
	return d.builder.Build(ctx, table, rows)
}

func (d *Driver) LastInsertIDQuery() string {
	return LastInsertIDQuery
}

// NewExecutor 创建SQLite执行器（使用默认Driver）
func NewExecutor(conn drivers.Conn) *drivers.SQLExecutor {
	return drivers.NewSQLExecutor(conn, DefaultDriver)
}

// Open 打开 SQLite 数据库。单连接，保证 last_insert_rowid() 与插入处于同一会话，
// 也让 ":memory:" 在整个生命周期内指向同一个库。
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

var _ batchdb.SchemaInspector = (*Inspector)(nil)

// Inspector 通过 pragma_table_info 读取表的列
type Inspector struct {
	conn drivers.Conn
}

// NewInspector 创建表结构查询器
func NewInspector(conn drivers.Conn) *Inspector {
	return &Inspector{conn: conn}
}

// ColumnsOf 按列定义顺序返回列名；表不存在时返回空切片
func (i *Inspector) ColumnsOf(ctx context.Context, table string) (columns []string, err error) {
	rows, err := i.conn.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list columns of %s: %w", table, err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	if err := sqlx.StructScan(rows, &columns); err != nil {
		return nil, fmt.Errorf("sqlite: scan columns of %s: %w", table, err)
	}
	return columns, nil
}
