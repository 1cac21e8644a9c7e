package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers/sqlite"
)

const createPeople = `CREATE TABLE people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	age INTEGER NOT NULL
)`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(createPeople)
	require.NoError(t, err)
	return db
}

func people(n int) []batchdb.Row {
	rows := make([]batchdb.Row, n)
	for i := range rows {
		rows[i] = batchdb.Row{"name": string(rune('a' + i)), "age": 20 + i}
	}
	return rows
}

func newWriter(t *testing.T, db *sql.DB, budget int) *batchdb.BatchWriter {
	t.Helper()
	cfg := batchdb.DefaultConfig()
	cfg.MaxPlaceholders = budget
	w, err := batchdb.NewBatchWriter(cfg, sqlite.NewInspector(db))
	require.NoError(t, err)
	return w
}

func TestInspector_ColumnsOf(t *testing.T) {
	db := openTestDB(t)
	insp := sqlite.NewInspector(db)

	cols, err := insp.ColumnsOf(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age"}, cols)

	cols, err = insp.ColumnsOf(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestExecutor_LastInsertedIDIsFirstRowOfStatement(t *testing.T) {
	db := openTestDB(t)
	exec := sqlite.NewExecutor(db)
	ctx := context.Background()

	require.NoError(t, exec.Insert(ctx, "people", people(3)))
	id, err := exec.LastInsertedID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, exec.Insert(ctx, "people", people(4)))
	id, err = exec.LastInsertedID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
}

func TestWriter_InsertAcrossChunks(t *testing.T) {
	db := openTestDB(t)
	w := newWriter(t, db, 10) // 3 列 -> 每块 3 行

	require.NoError(t, w.Insert(context.Background(), sqlite.NewExecutor(db), "people", people(7)))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&count))
	assert.Equal(t, 7, count)

	var names string
	require.NoError(t, db.QueryRow("SELECT group_concat(name, '') FROM (SELECT name FROM people ORDER BY id)").Scan(&names))
	assert.Equal(t, "abcdefg", names)
}

func TestWriter_InsertAndFetch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	exec := sqlite.NewExecutor(db)

	// 预先占用部分 ID，确认区间计算不依赖从 1 开始
	_, err := db.Exec("INSERT INTO people (name, age) VALUES ('x', 1), ('y', 2)")
	require.NoError(t, err)

	w := newWriter(t, db, 6) // 每块 2 行
	fetched, err := w.InsertAndFetch(ctx, exec, "people", people(5))
	require.NoError(t, err)
	require.Len(t, fetched, 5)

	for i, row := range fetched {
		assert.EqualValues(t, i+3, row["id"])
		assert.Equal(t, string(rune('a'+i)), row["name"])
		assert.EqualValues(t, 20+i, row["age"])
	}
}

func TestWriter_InsertAndFetch_UnknownTable(t *testing.T) {
	db := openTestDB(t)
	w := newWriter(t, db, 6)

	_, err := w.InsertAndFetch(context.Background(), sqlite.NewExecutor(db), "ghosts", people(1))
	assert.ErrorIs(t, err, batchdb.ErrConfiguration)
}

func TestWriter_InsertFailureKeepsEarlierChunks(t *testing.T) {
	db := openTestDB(t)
	w := newWriter(t, db, 6)

	rows := people(5)
	rows[2]["name"] = nil // 第二块违反 NOT NULL

	err := w.Insert(context.Background(), sqlite.NewExecutor(db), "people", rows)
	require.Error(t, err)

	var ee *batchdb.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.Chunk)
	assert.Equal(t, 3, ee.Chunks)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestExecutor_QueryConvertsValues(t *testing.T) {
	db := openTestDB(t)
	exec := sqlite.NewExecutor(db)
	ctx := context.Background()

	require.NoError(t, exec.Exec(ctx, "INSERT INTO people (name, age) VALUES (?, ?)", "zed", 40))
	rows, err := exec.Query(ctx, "SELECT name, age, CAST('raw' AS BLOB) AS raw_bytes FROM people WHERE age = ?", 40)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "zed", rows[0]["name"])
	assert.EqualValues(t, 40, rows[0]["age"])
	assert.Equal(t, "raw", rows[0]["raw_bytes"])

	_, err = exec.Query(ctx, "SELECT * FROM missing")
	assert.Error(t, err)
}

func TestExecutor_QueryNullsAndEmptyResult(t *testing.T) {
	db := openTestDB(t)
	exec := sqlite.NewExecutor(db)
	ctx := context.Background()

	rows, err := exec.Query(ctx, "SELECT NULL AS nothing, 7 AS seven")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, ok := rows[0]["nothing"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.EqualValues(t, 7, rows[0]["seven"])

	rows, err = exec.Query(ctx, "SELECT * FROM people WHERE id < 0")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
