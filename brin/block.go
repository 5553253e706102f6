package brin

import (
	"context"
	"sync"

	"github.com/apurbad/herddb/sop"
)

// loadState is the per-block load state: Unloaded -> Loaded; Loaded ->
// Unloaded only when pinCount==0 and dirty==false. The loading value is never
// entered: concurrent loaders are coordinated by BRIN.ensureLoaded's
// single-flight group instead.
type loadState int

const (
	unloaded loadState = iota
	loading
	loaded
)

// Block represents a contiguous key range (spec §3). A single BRIN instance
// owns all of its blocks; other blocks reference it only by blockID, never
// by pointer, so the block map can be restructured (e.g. by split) without
// invalidating references a reader is holding (spec §9, "Object identity
// for blocks").
type Block[K any, V any] struct {
	mu sync.RWMutex

	id     int64
	minKey *K // nil means this is the head block
	pageID sop.PageId

	state   loadState
	entries []Entry[K, V]

	dirty    bool
	next     int64 // blockID, or noNextBlock
	pinCount int32
}

func newBlock[K any, V any](id int64, minKey *K) *Block[K, V] {
	return &Block[K, V]{
		id:      id,
		minKey:  minKey,
		pageID:  sop.UnallocatedPageID,
		state:   loaded,
		entries: nil,
		next:    noNextBlock,
	}
}

// ID returns the block's stable local identifier.
func (b *Block[K, V]) ID() int64 { return b.id }

// size returns the current number of resident entries. It does not load the
// block; an unloaded block reports 0.
func (b *Block[K, V]) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Block[K, V]) pin() {
	b.mu.Lock()
	b.pinCount++
	b.mu.Unlock()
}

func (b *Block[K, V]) unpin() {
	b.mu.Lock()
	b.pinCount--
	b.mu.Unlock()
}

// isLoaded reports whether entries are currently resident, without
// triggering a load.
func (b *Block[K, V]) isLoaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == loaded
}

// installLoaded sets entries as resident after a successful loadDataPage;
// called only by the single-flighted loader (see BRIN.ensureLoaded).
func (b *Block[K, V]) installLoaded(entries []Entry[K, V]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = entries
	b.state = loaded
}

// tryUnload drops entries and marks the block unloaded, iff it is unpinned
// and not dirty (spec §4.3 "unloadAllBlocks").
func (b *Block[K, V]) tryUnload() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pinCount != 0 || b.dirty || b.state != loaded {
		return
	}
	b.entries = nil
	b.state = unloaded
}

// lastEntry returns the block's last (greatest-key) entry, if loaded and
// non-empty. Callers must ensureLoaded first.
func (b *Block[K, V]) lastEntry() (Entry[K, V], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.entries) == 0 {
		return Entry[K, V]{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// snapshot returns a copy of the block's current bookkeeping, used to build
// checkpoint manifests without holding the lock across I/O.
func (b *Block[K, V]) snapshot() (minKey *K, pageID sop.PageId, size int, dirty, pinned bool, next int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minKey, b.pageID, len(b.entries), b.dirty, b.pinCount > 0, b.next
}

// ctxDone is a small helper so lazy load can bail out promptly on
// cancellation instead of starting I/O that nobody will consume.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
