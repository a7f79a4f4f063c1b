package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	ids := make([]int64, 250)
	for i := range ids {
		ids[i] = int64(i)
	}

	chunks := Chunk(ids, 100)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, int64(249), chunks[2][49])

	assert.Len(t, Chunk(ids[:100], 100), 1)
	assert.Len(t, Chunk(ids, 0), 3)
	assert.Nil(t, Chunk([]int64{}, 10))

	// appending to a chunk must not clobber the next one
	first := append(chunks[0], -1)
	assert.Equal(t, int64(100), chunks[1][0])
	assert.Equal(t, int64(-1), first[100])
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 5}, UniqueIDs([]int64{5, 1, 2, 5, 1}))
	assert.Nil(t, UniqueIDs(nil))
}
