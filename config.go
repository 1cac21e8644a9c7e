package batchdb

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultMaxPlaceholders 单条语句默认的占位符上限
	DefaultMaxPlaceholders = 16000

	// MaxPlaceholdersLimit MySQL 预处理语句占位符的硬上限（协议层 uint16）
	MaxPlaceholdersLimit = 65535

	// DefaultIDColumn 默认的自增主键列
	DefaultIDColumn = "id"
)

// Config BatchWriter 配置，构造后不可变
type Config struct {
	// MaxPlaceholders 单条语句绑定参数的上限，防止 MySQL 1390 错误
	MaxPlaceholders int `toml:"max_placeholders" json:"max_placeholders"`

	// IDColumn InsertAndFetch 回查使用的自增列
	IDColumn string `toml:"id_column" json:"id_column"`

	// FillMissingWithNull Upsert 时行缺失的列以 NULL 绑定；为 false 时缺列直接报错
	FillMissingWithNull bool `toml:"fill_missing_with_null" json:"fill_missing_with_null"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxPlaceholders: DefaultMaxPlaceholders,
		IDColumn:        DefaultIDColumn,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.MaxPlaceholders <= 0 || c.MaxPlaceholders > MaxPlaceholdersLimit {
		return configErrorf("max placeholders must be in 1..%d, got %d", MaxPlaceholdersLimit, c.MaxPlaceholders)
	}
	if strings.TrimSpace(c.IDColumn) == "" {
		return configErrorf("id column cannot be empty")
	}
	return nil
}

// 环境变量解析辅助函数
func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ApplyEnv 用 BATCHDB_* 环境变量覆盖配置
func (c Config) ApplyEnv() Config {
	c.MaxPlaceholders = parseIntEnv("BATCHDB_MAX_PLACEHOLDERS", c.MaxPlaceholders)
	c.IDColumn = parseStringEnv("BATCHDB_ID_COLUMN", c.IDColumn)
	c.FillMissingWithNull = parseBoolEnv("BATCHDB_FILL_MISSING_WITH_NULL", c.FillMissingWithNull)
	return c
}

// LoadConfigFromEnv 从默认配置出发读取环境变量
func LoadConfigFromEnv() Config {
	return DefaultConfig().ApplyEnv()
}

// LoadConfigFile 读取 TOML 配置文件，未出现的字段保持默认值
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
