package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rushairer/batchdb"
)

// 单行 NDJSON 的最大长度
const maxLineBytes = 4 << 20

// readRows 逐行解析 NDJSON，空行跳过；整数保持 int64 或 uint64，避免大 ID 被 float64 截断
func readRows(r io.Reader) ([]batchdb.Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var rows []batchdb.Row
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row batchdb.Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if row == nil {
			return nil, fmt.Errorf("line %d: expected a JSON object", line)
		}
		for k, v := range row {
			row[k] = normalizeValue(v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return rows, nil
}

// normalizeValue json.Number 转为 int64/uint64/float64，嵌套对象和数组以 JSON 文本写入
func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		// BIGINT UNSIGNED
		if u, err := strconv.ParseUint(val.String(), 10, 64); err == nil {
			return u
		}
		// 超出 64 位的整数以原文传给数据库（DECIMAL 列），不经 float64
		if !strings.ContainsAny(val.String(), ".eE") {
			return val.String()
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return v
	}
}

// writeRows 每行一个 JSON 对象
func writeRows(w io.Writer, rows []batchdb.Row) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
