package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers"
)

const columnsQuery = "SELECT COLUMN_NAME FROM information_schema.COLUMNS " +
	"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"

var _ batchdb.SchemaInspector = (*Inspector)(nil)

// Inspector 通过 information_schema 读取当前库中表的列，不做缓存
type Inspector struct {
	conn drivers.Conn
}

// NewInspector 创建表结构查询器
func NewInspector(conn drivers.Conn) *Inspector {
	return &Inspector{conn: conn}
}

// ColumnsOf 按 ORDINAL_POSITION 返回列名；表不存在时返回空切片
func (i *Inspector) ColumnsOf(ctx context.Context, table string) (columns []string, err error) {
	rows, err := i.conn.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("mysql: list columns of %s: %w", table, err)
	}
	defer func() {
		err = errors.Join(err, rows.Close())
	}()

	if err := sqlx.StructScan(rows, &columns); err != nil {
		return nil, fmt.Errorf("mysql: scan columns of %s: %w", table, err)
	}
	return columns, nil
}
