package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers"
	"github.com/rushairer/batchdb/drivers/mysql"
	redislock "github.com/rushairer/batchdb/drivers/redis"
	"github.com/rushairer/batchdb/drivers/sqlite"
	"github.com/rushairer/batchdb/monitoring"
)

var exampleUsage = strings.TrimSpace(`
  batchdb insert --dsn 'user:pass@tcp(127.0.0.1:3306)/app' --table people --file people.ndjson
  batchdb insert-fetch --config batchdb.toml --table people --file people.ndjson > stored.ndjson
  batchdb upsert --config batchdb.toml --table people --file people.ndjson --fill-missing-with-null
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfgPath string
		fv      flagValues
	)
	defaults := defaultCLIConfig()

	root := &cobra.Command{
		Use:           "batchdb",
		Short:         "Chunked bulk insert, insert-and-fetch and upsert for MySQL-compatible databases",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to TOML config file")
	pf.StringVar(&fv.Driver, "driver", defaults.Driver, "database driver: mysql or sqlite")
	pf.StringVar(&fv.DSN, "dsn", "", "database DSN (mysql) or file path (sqlite)")
	pf.StringVar(&fv.RedisAddr, "redis-addr", "", "redis address; serializes insert-fetch per table across processes")
	pf.StringVar(&fv.MetricsAddr, "metrics-addr", "", "listen address for /metrics and /health, e.g. :9090")
	pf.StringVar(&fv.LogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	pf.IntVar(&fv.MaxPlaceholders, "max-placeholders", defaults.Batch.MaxPlaceholders, "bound parameters allowed per statement")
	pf.StringVar(&fv.IDColumn, "id-column", defaults.Batch.IDColumn, "auto-increment column used by insert-fetch")
	pf.BoolVar(&fv.FillMissingWithNull, "fill-missing-with-null", defaults.Batch.FillMissingWithNull, "upsert binds NULL for columns absent from a row")

	load := func(cmd *cobra.Command) (cliConfig, error) {
		cfg := defaultCLIConfig()
		if cfgPath != "" {
			if err := loadFileConfig(&cfg, cfgPath); err != nil {
				return cfg, fmt.Errorf("load config: %w", err)
			}
		}
		applyEnvConfig(&cfg)

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
		applyFlags(&cfg, fv, changed)

		if err := cfg.validate(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	root.AddCommand(
		newOpCommand(batchdb.OpInsert, "Insert rows in placeholder-bounded chunks", load),
		newOpCommand(batchdb.OpInsertFetch, "Insert rows and print the stored rows (with generated ids) as NDJSON", load),
		newOpCommand(batchdb.OpUpsert, "Insert rows, updating existing ones on duplicate key (MySQL only)", load),
	)
	return root
}

func newOpCommand(op batchdb.Operation, short string, load func(*cobra.Command) (cliConfig, error)) *cobra.Command {
	var table, file string

	cmd := &cobra.Command{
		Use:   strings.ReplaceAll(string(op), "_", "-"),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			rows, err := readInput(file, cmd.InOrStdin())
			if err != nil {
				log.Error().Err(err).Str("file", file).Msg("read rows")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = run(ctx, log, cfg, op, table, rows, cmd.OutOrStdout())
			if err != nil {
				log.Error().Err(err).Str("op", string(op)).Str("table", table).Msg("operation failed")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "target table")
	cmd.Flags().StringVar(&file, "file", "-", "NDJSON input, one object per line ('-' reads stdin)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func readInput(path string, stdin io.Reader) ([]batchdb.Row, error) {
	if path == "" || path == "-" {
		return readRows(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRows(f)
}

func openDatabase(cfg cliConfig) (*sql.DB, string, error) {
	switch strings.ToLower(cfg.Driver) {
	case driverSQLite:
		db, err := sqlite.Open(cfg.DSN)
		return db, cfg.DSN, err
	default:
		db, err := mysql.Open(cfg.DSN)
		return db, mysql.RedactDSN(cfg.DSN), err
	}
}

// run 在一条独占连接上执行操作；LAST_INSERT_ID 与插入必须处于同一会话
func run(ctx context.Context, log zerolog.Logger, cfg cliConfig, op batchdb.Operation, table string, rows []batchdb.Row, out io.Writer) error {
	db, target, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	var (
		exec      *drivers.SQLExecutor
		inspector batchdb.SchemaInspector
	)
	if strings.ToLower(cfg.Driver) == driverSQLite {
		exec, inspector = sqlite.NewExecutor(conn), sqlite.NewInspector(conn)
	} else {
		exec, inspector = mysql.NewExecutor(conn), mysql.NewInspector(conn)
	}

	writer, err := batchdb.NewBatchWriter(cfg.Batch, inspector)
	if err != nil {
		return err
	}
	writer.WithLogger(log).WithProgress(func(p batchdb.ChunkProgress) {
		log.Info().
			Str("op", string(p.Op)).
			Str("table", p.Table).
			Int("chunk", p.Chunk+1).
			Int("chunks", p.Chunks).
			Int("rows_done", p.RowsDone).
			Msg("chunk done")
	})

	if cfg.MetricsAddr != "" {
		reporter := monitoring.NewPrometheusReporter(monitoring.Options{IncludeRuntime: true}).WithLogger(log)
		if err := reporter.StartServer(cfg.MetricsAddr); err != nil {
			return err
		}
		defer func() {
			if err := reporter.StopServer(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("stop metrics server")
			}
		}()
		writer.WithMetricsReporter(reporter)
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		writer.WithLocker(redislock.NewLocker(client))
	}

	log.Info().
		Str("driver", exec.Driver().Name()).
		Str("target", target).
		Str("op", string(op)).
		Str("table", table).
		Int("rows", len(rows)).
		Msg("starting")

	switch op {
	case batchdb.OpInsert:
		return writer.Insert(ctx, exec, table, rows)
	case batchdb.OpUpsert:
		return writer.Upsert(ctx, exec, table, rows)
	case batchdb.OpInsertFetch:
		fetched, err := writer.InsertAndFetch(ctx, exec, table, rows)
		if werr := writeRows(out, fetched); werr != nil {
			return werr
		}
		// 行数不符时仍输出已取回的行，并以非零状态退出
		return err
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}
