package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushairer/batchdb"
)

// Options 配置项（可选）
type Options struct {
	Namespace   string            // 默认 "batchdb"
	ConstLabels map[string]string // 追加到所有指标的常量标签，如 {"env":"prod"}

	// 是否注册 Go 运行时与进程指标
	IncludeRuntime bool

	// 直方图桶
	ChunkBuckets     []float64
	OperationBuckets []float64
	RowBuckets       []float64
}

// PrometheusReporter Prometheus指标收集器，实现 batchdb.MetricsReporter
type PrometheusReporter struct {
	registry *prometheus.Registry

	chunkDuration     *prometheus.HistogramVec
	chunkRows         *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec

	logger zerolog.Logger
	mu     sync.Mutex
	server *http.Server
}

var _ batchdb.MetricsReporter = (*PrometheusReporter)(nil)

// NewPrometheusReporter 创建并注册一套指标
func NewPrometheusReporter(opts Options) *PrometheusReporter {
	if opts.Namespace == "" {
		opts.Namespace = "batchdb"
	}
	if len(opts.ChunkBuckets) == 0 {
		opts.ChunkBuckets = prometheus.ExponentialBuckets(0.001, 2, 15) // 1ms to ~16s
	}
	if len(opts.OperationBuckets) == 0 {
		opts.OperationBuckets = prometheus.ExponentialBuckets(0.001, 2, 18)
	}
	if len(opts.RowBuckets) == 0 {
		opts.RowBuckets = prometheus.ExponentialBuckets(1, 2, 15) // 1 to ~16k
	}

	registry := prometheus.NewRegistry()
	r := &PrometheusReporter{
		registry: registry,
		chunkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "chunk_duration_seconds",
				Help:        "Duration of a single chunk statement in seconds",
				ConstLabels: opts.ConstLabels,
				Buckets:     opts.ChunkBuckets,
			},
			[]string{"op", "table", "status"},
		),
		chunkRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "chunk_rows",
				Help:        "Number of rows per chunk",
				ConstLabels: opts.ConstLabels,
				Buckets:     opts.RowBuckets,
			},
			[]string{"op", "table"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "operation_duration_seconds",
				Help:        "Duration of a whole batch operation in seconds",
				ConstLabels: opts.ConstLabels,
				Buckets:     opts.OperationBuckets,
			},
			[]string{"op", "table", "status"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "errors_total",
				Help:        "Total number of batch errors by kind",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"op", "table", "kind"},
		),
		logger: zerolog.Nop(),
	}

	registry.MustRegister(r.chunkDuration, r.chunkRows, r.operationDuration, r.errorsTotal)
	if opts.IncludeRuntime {
		registry.MustRegister(collectors.NewBuildInfoCollector())
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return r
}

// WithLogger 设置日志（链式调用）
func (r *PrometheusReporter) WithLogger(logger zerolog.Logger) *PrometheusReporter {
	r.logger = logger
	return r
}

// Registry 返回内部 registry
func (r *PrometheusReporter) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusReporter) ObserveChunk(op batchdb.Operation, table string, rows int, d time.Duration, status string) {
	r.chunkDuration.WithLabelValues(op.String(), table, status).Observe(d.Seconds())
	r.chunkRows.WithLabelValues(op.String(), table).Observe(float64(rows))
}

func (r *PrometheusReporter) ObserveOperation(op batchdb.Operation, table string, _ int, _ int, d time.Duration, status string) {
	r.operationDuration.WithLabelValues(op.String(), table, status).Observe(d.Seconds())
}

func (r *PrometheusReporter) IncError(op batchdb.Operation, table string, kind string) {
	r.errorsTotal.WithLabelValues(op.String(), table, kind).Inc()
}

// Handler 使用内部 registry 的 /metrics handler
func (r *PrometheusReporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

// Router 提供 /metrics 与 /health 的 gin 路由
func (r *PrometheusReporter) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(r.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return router
}

// StartServer 启动 Prometheus HTTP 服务器
func (r *PrometheusReporter) StartServer(addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		return fmt.Errorf("prometheus server already running")
	}

	r.server = &http.Server{
		Addr:              addr,
		Handler:           r.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := r.server
	go func() {
		r.logger.Info().Str("addr", addr).Msg("metrics server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error().Err(err).Str("addr", addr).Msg("metrics server error")
		}
	}()
	return nil
}

// StopServer 停止 Prometheus HTTP 服务器
func (r *PrometheusReporter) StopServer(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.server.Shutdown(ctx)
	r.server = nil
	return err
}
