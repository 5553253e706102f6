package keyindex

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apurbad/herddb/pagestore"
	"github.com/apurbad/herddb/sop"
)

func newTestMap(t *testing.T) *ConcurrentMap {
	t.Helper()
	storage := pagestore.NewMemStore[string, sop.PageId]()
	return New(storage, Options{ShardCount: 4})
}

func TestConcurrentMap_PutGetRemove(t *testing.T) {
	m := newTestMap(t)
	key := []byte("row-1")

	_, ok := m.Get(key)
	require.False(t, ok)

	m.Put(key, sop.PageId(7))
	got, ok := m.Get(key)
	require.True(t, ok)
	require.Equal(t, sop.PageId(7), got)
	require.True(t, m.ContainsKey(key))
	require.EqualValues(t, 1, m.Size())

	removed, ok := m.Remove(key)
	require.True(t, ok)
	require.Equal(t, sop.PageId(7), removed)
	require.False(t, m.ContainsKey(key))
	require.EqualValues(t, 0, m.Size())
}

func TestConcurrentMap_CompareAndSetInsertOnlyWhenAbsent(t *testing.T) {
	m := newTestMap(t)
	key := []byte("row-2")

	require.True(t, m.CompareAndSet(key, sop.PageId(1), sop.PageId(0), false))
	require.False(t, m.CompareAndSet(key, sop.PageId(2), sop.PageId(0), false))

	got, ok := m.Get(key)
	require.True(t, ok)
	require.Equal(t, sop.PageId(1), got)
}

func TestConcurrentMap_CompareAndSetContention(t *testing.T) {
	m := newTestMap(t)
	key := []byte("row-3")
	require.True(t, m.CompareAndSet(key, sop.PageId(1), sop.PageId(0), false))

	const racers = 64
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < racers; i++ {
		page := sop.PageId(i + 2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.CompareAndSet(key, page, sop.PageId(1), true) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins, "exactly one CAS from the original value must win")
}

func TestConcurrentMap_ScannerOrdering(t *testing.T) {
	m := newTestMap(t)
	for i := 9; i >= 0; i-- {
		m.Put([]byte(fmt.Sprintf("k%02d", i)), sop.PageId(i))
	}

	s := m.Scanner(PKTypeString)
	var keys []string
	for s.Next() {
		keys = append(keys, string(s.Entry().Key))
	}
	require.Len(t, keys, 10)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i], "scanner must yield ascending order for a sortable PK type")
	}
}

func TestConcurrentMap_CheckpointAndStart(t *testing.T) {
	ctx := context.Background()
	storage := pagestore.NewMemStore[string, sop.PageId]()
	m1 := New(storage, Options{ShardCount: 4})

	m1.Put([]byte("a"), sop.PageId(1))
	m1.Put([]byte("b"), sop.PageId(2))
	_, err := m1.Checkpoint(ctx, 1, false)
	require.NoError(t, err)

	m2 := New(storage, Options{ShardCount: 4})
	m2.rootPage = m1.rootPage
	require.NoError(t, m2.Start(ctx, 1, false))

	got, ok := m2.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, sop.PageId(1), got)
	require.EqualValues(t, 2, m2.Size())
}
