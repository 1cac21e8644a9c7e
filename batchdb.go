// Package batchdb 提供 MySQL 系数据库的分块批量 INSERT / UPSERT。
//
// 单条预处理语句的占位符数量受驱动与服务端限制（MySQL 1390: Prepared statement
// contains too many placeholders）。BatchWriter 按 表列数 × 行数 <= 占位符预算
// 切分输入行，逐块执行，并在 InsertAndFetch 中根据 LAST_INSERT_ID() 推算每块的
// 自增 ID 区间后一次性回查插入的行。
//
//	writer, err := batchdb.NewBatchWriter(batchdb.DefaultConfig(), mysql.NewInspector(db))
//	if err != nil {
//		return err
//	}
//	conn, _ := db.Conn(ctx)
//	defer conn.Close()
//	err = writer.Upsert(ctx, mysql.NewExecutor(conn), "users", rows)
package batchdb
