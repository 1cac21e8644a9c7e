package batchdb

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// 最多汇报的错位行数，避免大批量输入生成巨大的错误
const maxAlignmentErrors = 10

// BuildUpsertSQL 生成一个分块的 INSERT ... ON DUPLICATE KEY UPDATE 语句。
//
// 列名升序排列，列子句、VALUES 占位符与 UPDATE 子句顺序一致；
// 每行的参数也按相同的列顺序展开。fillMissing 为 true 时缺失的列绑定 NULL。
func BuildUpsertSQL(table string, columns []string, rows []Row, fillMissing bool) (string, []any, error) {
	if table == "" {
		return "", nil, ErrEmptyTable
	}
	if len(columns) == 0 {
		return "", nil, configErrorf("no columns for table %s", table)
	}
	if len(rows) == 0 {
		return "", nil, nil
	}

	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)

	if err := validateUpsertRows(table, sorted, rows, fillMissing); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" ( ")
	b.WriteString(strings.Join(sorted, ","))
	b.WriteString(" ) VALUES ")

	group := "( " + strings.TrimSuffix(strings.Repeat("?,", len(sorted)), ",") + " )"
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(group)
	}

	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	for i, col := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=VALUES(%s)", col, col)
	}

	args := make([]any, 0, len(rows)*len(sorted))
	for _, row := range rows {
		for _, col := range sorted {
			args = append(args, row[col])
		}
	}
	return b.String(), args, nil
}

// BuildRangeFetchSQL 生成按自增 ID 区间回查的 SELECT 语句，多个区间以 OR 连接，按 ID 升序即插入顺序。
// 首尾相接的区间先合并；每个区间占用 2 个占位符，调用方需用 GroupIDRanges 控制单条语句的区间数。
func BuildRangeFetchSQL(table, idColumn string, ranges []IDRange) (string, []any, error) {
	if table == "" {
		return "", nil, ErrEmptyTable
	}
	if idColumn == "" {
		return "", nil, configErrorf("id column cannot be empty")
	}
	ranges = MergeIDRanges(ranges)
	if len(ranges) == 0 {
		return "", nil, nil
	}

	predicates := make([]string, len(ranges))
	args := make([]any, 0, len(ranges)*2)
	for i, r := range ranges {
		predicates[i] = fmt.Sprintf("(%s >= ? AND %s <= ?)", idColumn, idColumn)
		args = append(args, r.From, r.To)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s", table, strings.Join(predicates, " OR "), idColumn)
	return query, args, nil
}

// MergeIDRanges 合并首尾相接（prev.To+1 == next.From）的相邻区间，顺序不变。
// 没有并发写入时所有分块的区间连续，合并后只剩一个区间。
func MergeIDRanges(ranges []IDRange) []IDRange {
	if len(ranges) == 0 {
		return nil
	}
	merged := make([]IDRange, 0, len(ranges))
	merged = append(merged, ranges[0])
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if last.To+1 == r.From {
			last.To = r.To
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// GroupIDRanges 按占位符预算把区间分组，每组生成一条回查语句（2*len(group) <= maxPlaceholders）。
// 预算不足 2 时每组一个区间。
func GroupIDRanges(ranges []IDRange, maxPlaceholders int) [][]IDRange {
	if len(ranges) == 0 {
		return nil
	}
	per := max(maxPlaceholders/2, 1)
	groups := make([][]IDRange, 0, (len(ranges)+per-1)/per)
	for start := 0; start < len(ranges); start += per {
		end := min(start+per, len(ranges))
		groups = append(groups, ranges[start:end:end])
	}
	return groups
}

// validateUpsertRows 每行必须只包含表中的列；fillMissing 为 false 时还必须覆盖全部列
func validateUpsertRows(table string, columns []string, rows []Row, fillMissing bool) error {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	var errs error
	bad := 0
	for i, row := range rows {
		var unknown, missing []string
		for col := range row {
			if _, ok := known[col]; !ok {
				unknown = append(unknown, col)
			}
		}
		if !fillMissing {
			for _, col := range columns {
				if _, ok := row[col]; !ok {
					missing = append(missing, col)
				}
			}
		}
		if len(unknown) == 0 && len(missing) == 0 {
			continue
		}
		bad++
		if bad <= maxAlignmentErrors {
			sort.Strings(unknown)
			errs = multierr.Append(errs, &AlignmentError{Table: table, Row: i, Missing: missing, Unknown: unknown})
		}
	}
	return truncatedAlignment(errs, bad)
}

// validateInsertRows 每行只包含表中的列，且所有行的列集合与第一行一致（一条多行 INSERT 只有一个列子句）
func validateInsertRows(table string, columns []string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}
	reference := SortedColumns(rows[0])

	var errs error
	bad := 0
	for i, row := range rows {
		var unknown, missing, extra []string
		for _, col := range SortedColumns(row) {
			if _, ok := known[col]; !ok {
				unknown = append(unknown, col)
				continue
			}
			if _, ok := rows[0][col]; !ok {
				extra = append(extra, col)
			}
		}
		for _, col := range reference {
			if _, ok := row[col]; !ok {
				missing = append(missing, col)
			}
		}
		if len(unknown) == 0 && len(missing) == 0 && len(extra) == 0 {
			continue
		}
		bad++
		if bad <= maxAlignmentErrors {
			errs = multierr.Append(errs, &AlignmentError{Table: table, Row: i, Missing: missing, Unknown: unknown, Extra: extra})
		}
	}
	return truncatedAlignment(errs, bad)
}

func truncatedAlignment(errs error, bad int) error {
	if bad > maxAlignmentErrors {
		errs = multierr.Append(errs, fmt.Errorf("%w: %d more misaligned rows omitted", ErrAlignment, bad-maxAlignmentErrors))
	}
	return errs
}
