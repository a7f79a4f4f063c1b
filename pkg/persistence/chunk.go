package persistence

import "sort"

// Chunk splits keys into consecutive slices of at most size elements.
// A non-positive size falls back to DefaultChunkSize.
func Chunk[T any](keys []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(keys) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(keys)+size-1)/size)
	for len(keys) > size {
		out = append(out, keys[:size:size])
		keys = keys[size:]
	}
	return append(out, keys)
}

// UniqueIDs returns the distinct ids in ascending order.
func UniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
