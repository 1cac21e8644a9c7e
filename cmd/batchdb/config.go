package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rushairer/batchdb"
)

const (
	driverMySQL  = "mysql"
	driverSQLite = "sqlite"
)

// cliConfig 命令行运行所需的全部配置；批量写入部分与 batchdb.Config 共用同一个 TOML 文件
type cliConfig struct {
	Driver      string `toml:"driver"`
	DSN         string `toml:"dsn"`
	RedisAddr   string `toml:"redis_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`

	Batch batchdb.Config `toml:"-"`
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Driver:   driverMySQL,
		LogLevel: "info",
		Batch:    batchdb.DefaultConfig(),
	}
}

// flagValues 命令行上显式出现的值，只有 changed 中的名字才会覆盖
type flagValues struct {
	Driver              string
	DSN                 string
	RedisAddr           string
	MetricsAddr         string
	LogLevel            string
	MaxPlaceholders     int
	IDColumn            string
	FillMissingWithNull bool
}

// loadFileConfig 读取 TOML；连接相关字段与 batchdb.Config 字段位于同一层
func loadFileConfig(cfg *cliConfig, path string) error {
	batch, err := batchdb.LoadConfigFile(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Batch = batch
	return nil
}

// applyEnvConfig BATCHDB_* 覆盖文件配置
func applyEnvConfig(cfg *cliConfig) {
	if v := os.Getenv("BATCHDB_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("BATCHDB_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("BATCHDB_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("BATCHDB_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("BATCHDB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.Batch = cfg.Batch.ApplyEnv()
}

// applyFlags 显式设置的命令行参数优先级最高
func applyFlags(cfg *cliConfig, fv flagValues, changed map[string]bool) {
	if changed["driver"] {
		cfg.Driver = fv.Driver
	}
	if changed["dsn"] {
		cfg.DSN = fv.DSN
	}
	if changed["redis-addr"] {
		cfg.RedisAddr = fv.RedisAddr
	}
	if changed["metrics-addr"] {
		cfg.MetricsAddr = fv.MetricsAddr
	}
	if changed["log-level"] {
		cfg.LogLevel = fv.LogLevel
	}
	if changed["max-placeholders"] {
		cfg.Batch.MaxPlaceholders = fv.MaxPlaceholders
	}
	if changed["id-column"] {
		cfg.Batch.IDColumn = fv.IDColumn
	}
	if changed["fill-missing-with-null"] {
		cfg.Batch.FillMissingWithNull = fv.FillMissingWithNull
	}
}

func (c cliConfig) validate() error {
	switch strings.ToLower(c.Driver) {
	case driverMySQL, driverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q (want %s or %s)", c.Driver, driverMySQL, driverSQLite)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return c.Batch.Validate()
}
