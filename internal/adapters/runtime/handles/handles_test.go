package handles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_PutGetDelete(t *testing.T) {
	table := NewTable[string]()

	id := table.Put("status")
	require.NotZero(t, id)

	v, ok := table.Get(id)
	require.True(t, ok)
	assert.Equal(t, "status", v)
	assert.Equal(t, 1, table.Len())

	v, ok = table.Delete(id)
	require.True(t, ok)
	assert.Equal(t, "status", v)
	assert.Equal(t, 0, table.Len())

	_, ok = table.Get(id)
	assert.False(t, ok)
}

func TestTable_DeleteNullIsNoop(t *testing.T) {
	table := NewTable[int]()
	table.Put(1)

	_, ok := table.Delete(0)

	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestTable_HandlesAreNeverReused(t *testing.T) {
	table := NewTable[int]()

	first := table.Put(1)
	table.Delete(first)
	second := table.Put(2)

	assert.NotEqual(t, first, second)
}

func TestTable_ConcurrentPut(t *testing.T) {
	table := NewTable[int]()

	const n = 100

	ids := make([]uintptr, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			ids[i] = table.Put(i)
		})
	}
	wg.Wait()

	seen := make(map[uintptr]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate handle %d", id)
		seen[id] = true
	}

	assert.Equal(t, n, table.Len())
}
