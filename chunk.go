package batchdb

// ChunkSize 根据占位符预算与列数计算每个分块的最大行数
func ChunkSize(maxPlaceholders, columnCount int) (int, error) {
	if columnCount <= 0 {
		return 0, configErrorf("column count must be positive, got %d", columnCount)
	}
	if maxPlaceholders <= 0 {
		return 0, configErrorf("max placeholders must be positive, got %d", maxPlaceholders)
	}
	size := maxPlaceholders / columnCount
	if size == 0 {
		return 0, configErrorf("%d columns exceed the placeholder budget %d", columnCount, maxPlaceholders)
	}
	return size, nil
}

// SplitIntoChunks 将行按顺序切分为不超过 size 行的分块，最后一块可以更小。
// 分块共享原切片的底层数组。
func SplitIntoChunks(rows []Row, size int) [][]Row {
	if len(rows) == 0 || size <= 0 {
		return nil
	}
	chunks := make([][]Row, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end:end])
	}
	return chunks
}
