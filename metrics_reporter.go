package batchdb

import "time"

// MetricsReporter 性能监控报告器接口
//
// status 取值 "success" / "fail"；kind 为错误分类，如 "execution"、"alignment"、"fetch_mismatch"。
type MetricsReporter interface {
	// ObserveChunk 单个分块的执行耗时与行数
	ObserveChunk(op Operation, table string, rows int, d time.Duration, status string)

	// ObserveOperation 一次完整操作（全部分块 + 回查）的耗时
	ObserveOperation(op Operation, table string, rows, chunks int, d time.Duration, status string)

	// IncError 错误计数
	IncError(op Operation, table string, kind string)
}

// NoopMetricsReporter 默认的空实现
type NoopMetricsReporter struct{}

var _ MetricsReporter = NoopMetricsReporter{}

func (NoopMetricsReporter) ObserveChunk(Operation, string, int, time.Duration, string) {}

func (NoopMetricsReporter) ObserveOperation(Operation, string, int, int, time.Duration, string) {}

func (NoopMetricsReporter) IncError(Operation, string, string) {}
