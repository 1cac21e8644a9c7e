package drivers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rushairer/batchdb"
)

// InsertBuilder 使用 ? 占位符的多行 INSERT 生成器，供各 SQL 驱动复用
//
// 列子句取第一行的列名（升序），每行按相同顺序展开参数；缺失的列绑定 NULL。
type InsertBuilder struct {
	placeholders sync.Map // key: (colCount<<32)|batchSize  value: string
}

// Build 生成 INSERT INTO t (a, b) VALUES (?, ?), (?, ?)
func (b *InsertBuilder) Build(ctx context.Context, table string, rows []batchdb.Row) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, nil
	}
	if table == "" {
		return "", nil, batchdb.ErrEmptyTable
	}

	columns := batchdb.SortedColumns(rows[0])
	if len(columns) == 0 {
		return "", nil, errors.New("no columns in first row")
	}

	// 构建参数数组
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		// 忽略超时或取消的请求
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		for _, col := range columns {
			args = append(args, row[col])
		}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), b.generatePlaceholders(len(columns), len(rows)))
	return sql, args, nil
}

func (b *InsertBuilder) generatePlaceholders(columnCount, batchSize int) string {
	if columnCount <= 0 || batchSize <= 0 {
		return ""
	}
	key := (uint64(columnCount) << 32) | uint64(batchSize)
	if v, ok := b.placeholders.Load(key); ok {
		return v.(string)
	}
	singleRow := "(" + strings.Repeat("?, ", columnCount-1) + "?)"
	rows := make([]string, batchSize)
	for i := range rows {
		rows[i] = singleRow
	}
	out := strings.Join(rows, ", ")
	b.placeholders.Store(key, out)
	return out
}
