package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNumTooManyPlaceholders MySQL 1390: Prepared statement contains too many placeholders
const ErrNumTooManyPlaceholders = 1390

// Open 解析 DSN 并创建连接池（不立即建立连接）
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: new connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// RedactDSN 返回隐藏密码后的 DSN，用于日志
func RedactDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "***"
	}
	return cfg.FormatDSN()
}

// IsTooManyPlaceholders 判断错误是否为 MySQL 1390，通常意味着占位符预算配置过大
func IsTooManyPlaceholders(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErrNumTooManyPlaceholders
}
