package batchdb_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushairer/batchdb"
)

func TestBuildUpsertSQL_ExactShape(t *testing.T) {
	rows := []batchdb.Row{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
	}
	sql, args, err := batchdb.BuildUpsertSQL("t", []string{"name", "id"}, rows, false)
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO t ( id,name ) VALUES ( ?,? ),( ?,? ) ON DUPLICATE KEY UPDATE id=VALUES(id),name=VALUES(name)",
		sql)
	assert.Equal(t, []any{1, "a", 2, "b"}, args)
}

func TestBuildUpsertSQL_SortedClauses(t *testing.T) {
	columns := []string{"zeta", "alpha", "mid", "beta"}
	rows := []batchdb.Row{
		{"zeta": 4, "alpha": 1, "mid": 3, "beta": 2},
		{"beta": 6, "mid": 7, "zeta": 8, "alpha": 5},
		{"alpha": 9, "beta": 10, "mid": 11, "zeta": 12},
	}
	sql, args, err := batchdb.BuildUpsertSQL("things", columns, rows, false)
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO things ( alpha,beta,mid,zeta ) VALUES ")
	assert.True(t, strings.HasSuffix(sql,
		" ON DUPLICATE KEY UPDATE alpha=VALUES(alpha),beta=VALUES(beta),mid=VALUES(mid),zeta=VALUES(zeta)"))
	assert.Equal(t, len(rows), strings.Count(sql, "( ?,?,?,? )"))
	assert.Len(t, args, len(rows)*len(columns))
	assert.Equal(t, []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, args)

	// 原始列切片不被排序
	assert.Equal(t, []string{"zeta", "alpha", "mid", "beta"}, columns)
}

func TestBuildUpsertSQL_MissingColumn(t *testing.T) {
	rows := []batchdb.Row{
		{"id": 1, "name": "a"},
		{"id": 2},
	}

	_, _, err := batchdb.BuildUpsertSQL("t", []string{"id", "name"}, rows, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, batchdb.ErrAlignment))

	var ae *batchdb.AlignmentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 1, ae.Row)
	assert.Equal(t, []string{"name"}, ae.Missing)
	assert.Contains(t, err.Error(), "missing columns [name]")
}

func TestBuildUpsertSQL_FillMissingWithNull(t *testing.T) {
	rows := []batchdb.Row{
		{"id": 1, "name": "a"},
		{"id": 2},
	}
	sql, args, err := batchdb.BuildUpsertSQL("t", []string{"id", "name"}, rows, true)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(sql, "( ?,? )"))
	assert.Equal(t, []any{1, "a", 2, nil}, args)
}

func TestBuildUpsertSQL_UnknownColumn(t *testing.T) {
	rows := []batchdb.Row{{"id": 1, "name": "a", "nickname": "x"}}

	for _, fill := range []bool{false, true} {
		_, _, err := batchdb.BuildUpsertSQL("t", []string{"id", "name"}, rows, fill)
		require.Error(t, err)
		var ae *batchdb.AlignmentError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, []string{"nickname"}, ae.Unknown)
	}
}

func TestBuildUpsertSQL_ManyMisalignedRowsTruncated(t *testing.T) {
	rows := make([]batchdb.Row, 25)
	for i := range rows {
		rows[i] = batchdb.Row{"id": i}
	}
	_, _, err := batchdb.BuildUpsertSQL("t", []string{"id", "name"}, rows, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, batchdb.ErrAlignment))
	assert.Contains(t, err.Error(), "15 more misaligned rows omitted")
}

func TestBuildUpsertSQL_Edges(t *testing.T) {
	_, _, err := batchdb.BuildUpsertSQL("", []string{"id"}, []batchdb.Row{{"id": 1}}, false)
	assert.ErrorIs(t, err, batchdb.ErrEmptyTable)

	_, _, err = batchdb.BuildUpsertSQL("t", nil, []batchdb.Row{{"id": 1}}, false)
	assert.ErrorIs(t, err, batchdb.ErrConfiguration)

	sql, args, err := batchdb.BuildUpsertSQL("t", []string{"id"}, nil, false)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestBuildRangeFetchSQL(t *testing.T) {
	sql, args, err := batchdb.BuildRangeFetchSQL("t", "id", []batchdb.IDRange{{From: 10, To: 12}, {From: 20, To: 21}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE (id >= ? AND id <= ?) OR (id >= ? AND id <= ?) ORDER BY id", sql)
	assert.Equal(t, []any{int64(10), int64(12), int64(20), int64(21)}, args)

	sql, args, err = batchdb.BuildRangeFetchSQL("t", "id", nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	_, _, err = batchdb.BuildRangeFetchSQL("t", "", []batchdb.IDRange{{From: 1, To: 1}})
	assert.ErrorIs(t, err, batchdb.ErrConfiguration)
}

func TestBuildRangeFetchSQL_MergesContiguous(t *testing.T) {
	ranges := []batchdb.IDRange{{From: 1, To: 2}, {From: 3, To: 4}, {From: 5, To: 6}, {From: 9, To: 9}}
	sql, args, err := batchdb.BuildRangeFetchSQL("t", "id", ranges)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE (id >= ? AND id <= ?) OR (id >= ? AND id <= ?) ORDER BY id", sql)
	assert.Equal(t, []any{int64(1), int64(6), int64(9), int64(9)}, args)
}

func TestMergeIDRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []batchdb.IDRange
		want []batchdb.IDRange
	}{
		{"empty", nil, nil},
		{"single", []batchdb.IDRange{{From: 5, To: 7}}, []batchdb.IDRange{{From: 5, To: 7}}},
		{"all_contiguous", []batchdb.IDRange{{From: 1, To: 2}, {From: 3, To: 4}, {From: 5, To: 5}}, []batchdb.IDRange{{From: 1, To: 5}}},
		{"gap", []batchdb.IDRange{{From: 1, To: 2}, {From: 4, To: 5}}, []batchdb.IDRange{{From: 1, To: 2}, {From: 4, To: 5}}},
		{"mixed", []batchdb.IDRange{{From: 1, To: 2}, {From: 3, To: 4}, {From: 10, To: 11}, {From: 12, To: 12}}, []batchdb.IDRange{{From: 1, To: 4}, {From: 10, To: 12}}},
		{"out_of_order_kept", []batchdb.IDRange{{From: 10, To: 11}, {From: 1, To: 2}}, []batchdb.IDRange{{From: 10, To: 11}, {From: 1, To: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchdb.MergeIDRanges(tt.in))
		})
	}
}

func TestGroupIDRanges(t *testing.T) {
	ranges := make([]batchdb.IDRange, 7)
	for i := range ranges {
		ranges[i] = batchdb.IDRange{From: int64(i * 10), To: int64(i*10 + 1)}
	}

	for _, budget := range []int{1, 2, 3, 4, 5, 14, 100} {
		groups := batchdb.GroupIDRanges(ranges, budget)
		var flat []batchdb.IDRange
		for _, g := range groups {
			require.NotEmpty(t, g)
			if budget >= 2 {
				require.LessOrEqual(t, 2*len(g), budget)
			} else {
				require.Len(t, g, 1)
			}
			flat = append(flat, g...)
		}
		assert.Equal(t, ranges, flat, "budget=%d", budget)
	}

	assert.Len(t, batchdb.GroupIDRanges(ranges, 4), 4)
	assert.Len(t, batchdb.GroupIDRanges(ranges, 14), 1)
	assert.Nil(t, batchdb.GroupIDRanges(nil, 10))
}
