package batchdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchWriter 分块批量写入器
//
// 根据表的列数与占位符预算计算分块大小，按输入顺序逐块执行 INSERT / UPSERT，
// 不开启事务、不重试；失败时已执行的分块保持生效。
// 同一个 BatchWriter 可被多个 goroutine 共享，但 InsertAndFetch 的 ID 区间推算
// 假设执行期间没有其他写入者写同一张表（可通过 WithLocker 串行化）。
type BatchWriter struct {
	cfg       Config
	inspector SchemaInspector
	logger    zerolog.Logger
	reporter  MetricsReporter
	progress  ProgressFunc
	locker    Locker
}

// NewBatchWriter 创建批量写入器，cfg 在此校验并在之后保持不变
func NewBatchWriter(cfg Config, inspector SchemaInspector) (*BatchWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inspector == nil {
		return nil, configErrorf("schema inspector cannot be nil")
	}
	return &BatchWriter{
		cfg:       cfg,
		inspector: inspector,
		logger:    zerolog.Nop(),
		reporter:  NoopMetricsReporter{},
	}, nil
}

// Config 返回写入器的配置
func (w *BatchWriter) Config() Config {
	return w.cfg
}

// WithLogger 设置日志
func (w *BatchWriter) WithLogger(logger zerolog.Logger) *BatchWriter {
	w.logger = logger
	return w
}

// WithMetricsReporter 设置指标报告器
func (w *BatchWriter) WithMetricsReporter(reporter MetricsReporter) *BatchWriter {
	if reporter == nil {
		reporter = NoopMetricsReporter{}
	}
	w.reporter = reporter
	return w
}

// WithProgress 设置分块进度回调
func (w *BatchWriter) WithProgress(fn ProgressFunc) *BatchWriter {
	w.progress = fn
	return w
}

// WithLocker 设置表级外部锁，InsertAndFetch 执行期间持有
func (w *BatchWriter) WithLocker(locker Locker) *BatchWriter {
	w.locker = locker
	return w
}

// Insert 分块批量插入
func (w *BatchWriter) Insert(ctx context.Context, exec Executor, table string, rows []Row) (err error) {
	if table == "" {
		return ErrEmptyTable
	}
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	log := w.opLogger(OpInsert, table)
	chunks := 0
	defer func() { w.finish(log, OpInsert, table, len(rows), chunks, start, err) }()

	columns, chunked, err := w.prepare(ctx, OpInsert, table, rows)
	if err != nil {
		return err
	}
	chunks = len(chunked)
	if err = validateInsertRows(table, columns, rows); err != nil {
		w.reporter.IncError(OpInsert, table, "alignment")
		return err
	}

	return w.runChunks(ctx, log, OpInsert, table, chunked, func(ctx context.Context, _ int, chunk []Row) error {
		return exec.Insert(ctx, table, chunk)
	})
}

// InsertAndFetch 分块批量插入并回查插入的行。
//
// 每个分块插入后读取 LAST_INSERT_ID() 推算该分块的 ID 区间 [id, id+len-1]，
// 全部分块完成后按区间回查：连续区间合并为一个，区间过多时按占位符预算拆成多条
// SELECT 依次执行并拼接结果。回查行数与输入不一致时返回回查结果与
// *FetchMismatchError（errors.Is(err, ErrFetchCountMismatch)），调用方可选择忽略。
// 区间推算要求自增值连续分配且无并发写入，本方法不做校验。
func (w *BatchWriter) InsertAndFetch(ctx context.Context, exec Executor, table string, rows []Row) (fetched []Row, err error) {
	if table == "" {
		return nil, ErrEmptyTable
	}
	if len(rows) == 0 {
		return nil, nil
	}

	start := time.Now()
	log := w.opLogger(OpInsertFetch, table)
	chunks := 0
	defer func() {
		if errors.Is(err, ErrFetchCountMismatch) {
			// 可恢复的告警，不计为失败
			w.finish(log, OpInsertFetch, table, len(rows), chunks, start, nil)
			return
		}
		w.finish(log, OpInsertFetch, table, len(rows), chunks, start, err)
	}()

	if w.locker != nil {
		key := "batchdb:insert:" + table
		unlock, lockErr := w.locker.Lock(ctx, key)
		if lockErr != nil {
			return nil, fmt.Errorf("batchdb: acquire lock %s: %w", key, lockErr)
		}
		defer func() {
			if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
				log.Warn().Err(unlockErr).Str("key", key).Msg("release table lock failed")
			}
		}()
	}

	columns, chunked, err := w.prepare(ctx, OpInsertFetch, table, rows)
	if err != nil {
		return nil, err
	}
	chunks = len(chunked)
	if err = validateInsertRows(table, columns, rows); err != nil {
		w.reporter.IncError(OpInsertFetch, table, "alignment")
		return nil, err
	}

	ranges := make([]IDRange, 0, len(chunked))
	err = w.runChunks(ctx, log, OpInsertFetch, table, chunked, func(ctx context.Context, _ int, chunk []Row) error {
		if err := exec.Insert(ctx, table, chunk); err != nil {
			return err
		}
		firstID, err := exec.LastInsertedID(ctx)
		if err != nil {
			return err
		}
		r := IDRange{From: firstID, To: firstID + int64(len(chunk)) - 1}
		log.Debug().Int64("from_id", r.From).Int64("to_id", r.To).Msg("batch insert chunk id range")
		ranges = append(ranges, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 回查语句同样受占位符预算约束：合并连续区间后按预算分组，结果按组顺序拼接
	groups := GroupIDRanges(MergeIDRanges(ranges), w.cfg.MaxPlaceholders)
	if len(groups) > 1 {
		log.Debug().Int("ranges", len(ranges)).Int("statements", len(groups)).Msg("fetch split by placeholder budget")
	}
	for _, group := range groups {
		query, args, buildErr := BuildRangeFetchSQL(table, w.cfg.IDColumn, group)
		if buildErr != nil {
			return nil, buildErr
		}
		part, queryErr := exec.Query(ctx, query, args...)
		if queryErr != nil {
			w.reporter.IncError(OpInsertFetch, table, "fetch")
			return nil, &ExecutionError{Op: string(OpInsertFetch), Table: table, Chunk: -1, Chunks: len(chunked), Done: len(chunked), Err: queryErr}
		}
		fetched = append(fetched, part...)
	}

	if len(fetched) != len(rows) {
		w.reporter.IncError(OpInsertFetch, table, "fetch_mismatch")
		log.Warn().Int("expected", len(rows)).Int("fetched", len(fetched)).Msg("fetched row count mismatch")
		return fetched, &FetchMismatchError{Table: table, Expected: len(rows), Got: len(fetched)}
	}
	return fetched, nil
}

// Upsert 分块执行 INSERT ... ON DUPLICATE KEY UPDATE
func (w *BatchWriter) Upsert(ctx context.Context, exec Executor, table string, rows []Row) (err error) {
	if table == "" {
		return ErrEmptyTable
	}
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	log := w.opLogger(OpUpsert, table)
	chunks := 0
	defer func() { w.finish(log, OpUpsert, table, len(rows), chunks, start, err) }()

	columns, chunked, err := w.prepare(ctx, OpUpsert, table, rows)
	if err != nil {
		return err
	}
	chunks = len(chunked)
	if err = validateUpsertRows(table, columns, rows, w.cfg.FillMissingWithNull); err != nil {
		w.reporter.IncError(OpUpsert, table, "alignment")
		return err
	}

	return w.runChunks(ctx, log, OpUpsert, table, chunked, func(ctx context.Context, _ int, chunk []Row) error {
		query, args, err := BuildUpsertSQL(table, columns, chunk, w.cfg.FillMissingWithNull)
		if err != nil {
			return err
		}
		return exec.Exec(ctx, query, args...)
	})
}

// prepare 解析表的列（每次调用解析一次）并切分分块
func (w *BatchWriter) prepare(ctx context.Context, op Operation, table string, rows []Row) ([]string, [][]Row, error) {
	columns, err := w.inspector.ColumnsOf(ctx, table)
	if err != nil {
		w.reporter.IncError(op, table, "schema")
		return nil, nil, fmt.Errorf("batchdb: resolve columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		w.reporter.IncError(op, table, "configuration")
		return nil, nil, configErrorf("table %s has no columns or does not exist", table)
	}
	size, err := ChunkSize(w.cfg.MaxPlaceholders, len(columns))
	if err != nil {
		w.reporter.IncError(op, table, "configuration")
		return nil, nil, err
	}
	return columns, SplitIntoChunks(rows, size), nil
}

// runChunks 按顺序逐块执行，遇到第一个失败立即返回
func (w *BatchWriter) runChunks(
	ctx context.Context,
	log zerolog.Logger,
	op Operation,
	table string,
	chunks [][]Row,
	fn func(ctx context.Context, index int, chunk []Row) error,
) error {
	rowsDone := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			w.reporter.IncError(op, table, "context")
			return &ExecutionError{Op: string(op), Table: table, Chunk: i, Chunks: len(chunks), Done: i, Err: err}
		}

		chunkStart := time.Now()
		err := fn(ctx, i, chunk)
		elapsed := time.Since(chunkStart)
		if err != nil {
			w.reporter.ObserveChunk(op, table, len(chunk), elapsed, "fail")
			w.reporter.IncError(op, table, "execution")
			log.Error().Err(err).Int("chunk", i).Int("chunks", len(chunks)).Int("rows", len(chunk)).Msg("chunk failed")
			return &ExecutionError{Op: string(op), Table: table, Chunk: i, Chunks: len(chunks), Done: i, Err: err}
		}
		w.reporter.ObserveChunk(op, table, len(chunk), elapsed, "success")

		rowsDone += len(chunk)
		log.Debug().Int("chunk", i).Int("chunks", len(chunks)).Int("rows", len(chunk)).Dur("elapsed", elapsed).Msg("chunk done")
		if w.progress != nil {
			w.progress(ChunkProgress{Op: op, Table: table, Chunk: i, Chunks: len(chunks), Rows: len(chunk), RowsDone: rowsDone})
		}
	}
	return nil
}

func (w *BatchWriter) opLogger(op Operation, table string) zerolog.Logger {
	return w.logger.With().
		Str("op", op.String()).
		Str("table", table).
		Str("op_id", uuid.NewString()).
		Logger()
}

func (w *BatchWriter) finish(log zerolog.Logger, op Operation, table string, rows, chunks int, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "fail"
	}
	elapsed := time.Since(start)
	w.reporter.ObserveOperation(op, table, rows, chunks, elapsed, status)
	log.Debug().Int("rows", rows).Int("chunks", chunks).Dur("elapsed", elapsed).Str("status", status).Msg("batch done")
}
