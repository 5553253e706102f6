package keyindex

import (
	"context"
	log "log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/apurbad/herddb/pagestore"
	"github.com/apurbad/herddb/sop"
)

const defaultShardCount = 256

type shard struct {
	mu    sync.RWMutex
	items map[string]sop.PageId
}

// ConcurrentMap is the KeyToPageIndex of spec §4.4. Keys are sharded by
// `xxhash.Sum64` over the raw key bytes, each shard a plain map behind its own
// RWMutex, so that independent keys rarely contend on the same lock (spec §5
// "all data-plane operations ... are safe under concurrent callers").
type ConcurrentMap struct {
	shards  []*shard
	storage pagestore.IndexDataStorage[string, sop.PageId]

	pinnedMu sync.Mutex
	pinned   map[int64][]sop.PageId

	rootMu       sync.Mutex
	rootPage     sop.PageId
	sequenceSeen int64
}

// New creates an empty ConcurrentMap, persisting checkpoints through
// storage.
func New(storage pagestore.IndexDataStorage[string, sop.PageId], opts Options) *ConcurrentMap {
	n := opts.ShardCount
	if n <= 0 {
		n = defaultShardCount
	}
	m := &ConcurrentMap{
		shards:   make([]*shard, n),
		storage:  storage,
		rootPage: sop.UnallocatedPageID,
	}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]sop.PageId)}
	}
	return m
}

func (m *ConcurrentMap) shardFor(key []byte) *shard {
	h := xxhash.Sum64(key)
	return m.shards[h%uint64(len(m.shards))]
}

// Put unconditionally sets key's page (spec §4.4 "put(key, page)").
func (m *ConcurrentMap) Put(key []byte, page sop.PageId) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[string(key)] = page
	s.mu.Unlock()
}

// CompareAndSet applies newPage iff the current mapping equals expectedPage
// (or is absent, when hasExpected is false), atomically. Returns whether the
// update was applied; the map is never partially modified on failure (spec
// §4.4, §5 "linearizable per-key").
func (m *ConcurrentMap) CompareAndSet(key []byte, newPage sop.PageId, expectedPage sop.PageId, hasExpected bool) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[string(key)]
	if !hasExpected {
		if ok {
			return false
		}
	} else if !ok || cur != expectedPage {
		return false
	}
	s.items[string(key)] = newPage
	return true
}

// Get returns key's page, if present.
func (m *ConcurrentMap) Get(key []byte) (sop.PageId, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[string(key)]
	return p, ok
}

// ContainsKey reports whether key has a mapping.
func (m *ConcurrentMap) ContainsKey(key []byte) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove deletes key's mapping and returns the page it held, if any.
func (m *ConcurrentMap) Remove(key []byte) (sop.PageId, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[string(key)]
	if ok {
		delete(s.items, string(key))
	}
	return p, ok
}

// Size returns the total number of entries across all shards.
func (m *ConcurrentMap) Size() int64 {
	var n int64
	for _, s := range m.shards {
		s.mu.RLock()
		n += int64(len(s.items))
		s.mu.RUnlock()
	}
	return n
}

// GetUsedMemory estimates resident bytes as the sum over entries of the key
// length plus an 8-byte page id; shard and map overhead is not counted
// (spec §4.4; an estimate is
// sufficient since no caller depends on exactness, only on monotonic growth
// for eviction heuristics external to this package).
func (m *ConcurrentMap) GetUsedMemory() int64 {
	var n int64
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.items {
			n += int64(len(k)) + 8
		}
		s.mu.RUnlock()
	}
	return n
}

// Truncate removes every entry without touching checkpoint state.
func (m *ConcurrentMap) Truncate() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]sop.PageId)
		s.mu.Unlock()
	}
}

// DropData discards both in-memory entries and the last checkpoint's root
// page, as for a dropped table.
func (m *ConcurrentMap) DropData() {
	m.Truncate()
	m.rootMu.Lock()
	m.rootPage = sop.UnallocatedPageID
	m.rootMu.Unlock()
}

// Close is a no-op hook kept for symmetry with pagestore/brin lifecycle
// methods; storage ownership stays with the caller.
func (m *ConcurrentMap) Close() error { return nil }

// Start marks the beginning of a transaction epoch identified by
// sequenceNumber. created indicates a brand-new table whose index has no
// prior checkpoint to boot from.
func (m *ConcurrentMap) Start(ctx context.Context, sequenceNumber int64, created bool) error {
	m.rootMu.Lock()
	defer m.rootMu.Unlock()
	m.sequenceSeen = sequenceNumber
	if created {
		m.rootPage = sop.UnallocatedPageID
		return nil
	}
	if m.rootPage == sop.UnallocatedPageID {
		return nil
	}
	entries, err := m.storage.LoadDataPage(ctx, m.rootPage)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s := m.shardFor([]byte(e.Key))
		s.mu.Lock()
		s.items[e.Key] = e.Value
		s.mu.Unlock()
	}
	return nil
}

// Checkpoint persists the full key set as a single page and returns
// deferred reclamation hints for any page this checkpoint superseded (spec
// §4.4 "checkpoint(sequenceNumber, pin)"). When pin is true the previous
// checkpoint's page is kept alive until UnpinCheckpoint(sequenceNumber).
func (m *ConcurrentMap) Checkpoint(ctx context.Context, sequenceNumber int64, pin bool) ([]sop.PostCheckpointAction, error) {
	entries := make([]pagestore.Entry[string, sop.PageId], 0, m.Size())
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			entries = append(entries, pagestore.Entry[string, sop.PageId]{Key: k, Value: v})
		}
		s.mu.RUnlock()
	}

	newPage, err := m.storage.CreateDataPage(ctx, entries)
	if err != nil {
		return nil, err
	}

	m.rootMu.Lock()
	oldPage := m.rootPage
	m.rootPage = newPage
	m.rootMu.Unlock()

	var actions []sop.PostCheckpointAction
	if oldPage != sop.UnallocatedPageID {
		if pin {
			m.pinnedMu.Lock()
			if m.pinned == nil {
				m.pinned = make(map[int64][]sop.PageId)
			}
			m.pinned[sequenceNumber] = append(m.pinned[sequenceNumber], oldPage)
			m.pinnedMu.Unlock()
		} else {
			oldPage := oldPage
			actions = append(actions, func() error {
				log.Debug("checkpoint superseded a page", "old_page_id", oldPage, "new_page_id", newPage)
				return nil
			})
		}
	}
	return actions, nil
}

// UnpinCheckpoint releases the pages a pinned Checkpoint(sequenceNumber,
// true) call kept alive.
func (m *ConcurrentMap) UnpinCheckpoint(sequenceNumber int64) {
	m.pinnedMu.Lock()
	defer m.pinnedMu.Unlock()
	delete(m.pinned, sequenceNumber)
}
