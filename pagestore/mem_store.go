package pagestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/apurbad/herddb/sop"
)

// MemStore is an IndexDataStorage backed by a map, used for tests and the
// in-memory recovery scenarios of spec §8 (scenario 2).
type MemStore[K any, V any] struct {
	mu      sync.RWMutex
	pages   map[sop.PageId][]Entry[K, V]
	nextID  uint64
}

// NewMemStore returns an empty in-memory page store.
func NewMemStore[K any, V any]() *MemStore[K, V] {
	return &MemStore[K, V]{
		pages:  make(map[sop.PageId][]Entry[K, V]),
		nextID: 1,
	}
}

func (m *MemStore[K, V]) CreateDataPage(ctx context.Context, entries []Entry[K, V]) (sop.PageId, error) {
	cp := make([]Entry[K, V], len(entries))
	copy(cp, entries)

	m.mu.Lock()
	defer m.mu.Unlock()
	id := sop.PageId(m.nextID)
	m.nextID++
	m.pages[id] = cp
	return id, nil
}

func (m *MemStore[K, V]) LoadDataPage(ctx context.Context, id sop.PageId) ([]Entry[K, V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.pages[id]
	if !ok {
		return nil, sop.Error{Code: sop.PageStoreError, Err: fmt.Errorf("page %d not found", id), UserData: id}
	}
	cp := make([]Entry[K, V], len(entries))
	copy(cp, entries)
	return cp, nil
}
