package batchdb

import "context"

// SchemaInspector 表结构查询接口
// 必须反映当前的表结构，缓存过期的列信息会导致参数静默错位
type SchemaInspector interface {
	// ColumnsOf 返回表的列名（按表定义顺序）；表不存在时返回空切片
	ColumnsOf(ctx context.Context, table string) ([]string, error)
}

// Executor 数据库执行器接口 - 执行参数化 SQL 的外部能力
//
// InsertAndFetch 依赖 LastInsertedID 与前一次 Insert 处于同一数据库会话，
// 使用连接池时请绑定到单个连接或事务。
type Executor interface {
	// Insert 插入一个分块的行（一条多行 INSERT）
	Insert(ctx context.Context, table string, rows []Row) error

	// Exec 执行原始参数化 SQL
	Exec(ctx context.Context, query string, args ...any) error

	// LastInsertedID 返回最近一次 INSERT 生成的第一个自增 ID
	LastInsertedID(ctx context.Context) (int64, error)

	// Query 执行查询并返回结果行
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Locker 外部锁，用于串行化同一张表上的 InsertAndFetch
type Locker interface {
	// Lock 阻塞直到获得锁或 ctx 结束；返回的 unlock 用于释放锁
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}
