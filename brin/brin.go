package brin

import (
	"context"
	log "log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/apurbad/herddb/pagestore"
	"github.com/apurbad/herddb/sop"
)

// Options configures a BRIN instance.
type Options struct {
	// MaxBlockSize is the soft cap on entries per block before a split is
	// triggered (spec §3; tests use 2).
	MaxBlockSize int
}

// BRIN is the Block Range Index of spec §3/§4.3: an in-memory sorted map of
// block-head keys to Block objects, backed by an IndexDataStorage for
// persistence.
type BRIN[K any, V any] struct {
	// structural lock: guards blocksByMinKey and byID together, so a split's
	// insertion is atomic with respect to readers walking the slice.
	mu             sync.RWMutex
	blocksByMinKey []*Block[K, V] // sorted ascending; index 0 is always the head
	byID           map[int64]*Block[K, V]
	headID         int64
	blockIDSeq     atomic.Int64

	maxBlockSize int
	cmp          Comparer[K]
	storage      pagestore.IndexDataStorage[K, V]

	loadGroup singleflight.Group

	pinnedMu          sync.Mutex
	pinnedCheckpoints map[sop.UUID][]sop.PageId
}

// New creates an empty BRIN over storage, comparing keys with cmp.
func New[K any, V any](storage pagestore.IndexDataStorage[K, V], cmp Comparer[K], opts Options) *BRIN[K, V] {
	if opts.MaxBlockSize < 1 {
		opts.MaxBlockSize = 1
	}
	t := &BRIN[K, V]{
		byID:         make(map[int64]*Block[K, V]),
		maxBlockSize: opts.MaxBlockSize,
		cmp:          cmp,
		storage:      storage,
	}
	head := newBlock[K, V](t.blockIDSeq.Add(1)-1, nil)
	t.headID = head.id
	t.blocksByMinKey = []*Block[K, V]{head}
	t.byID[head.id] = head
	return t
}

// GetNumBlocks returns the current number of blocks tracked in the map
// (spec §8 scenario 1/2).
func (t *BRIN[K, V]) GetNumBlocks() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.blocksByMinKey)
}

func (t *BRIN[K, V]) compareMinKeyToKey(minKey *K, key K) int {
	if minKey == nil {
		return -1
	}
	return t.cmp(*minKey, key)
}

// locate returns the greatest block with minKey <= key, or the head block if
// key precedes every other block's minKey (spec §4.3 "put"/"search").
func (t *BRIN[K, V]) locate(key K) *Block[K, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locateLocked(key)
}

func (t *BRIN[K, V]) locateLocked(key K) *Block[K, V] {
	bm := t.blocksByMinKey
	idx := sort.Search(len(bm), func(i int) bool {
		return t.compareMinKeyToKey(bm[i].minKey, key) > 0
	})
	floor := idx - 1
	if floor < 0 {
		floor = 0
	}
	return bm[floor]
}

func (t *BRIN[K, V]) blockByID(id int64) *Block[K, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

// snapshotBlocksByMinKey returns the current sorted slice reference. Safe to
// use without holding the lock afterwards: split never mutates a slice in
// place, it always installs a freshly allocated one.
func (t *BRIN[K, V]) snapshotBlocksByMinKey() []*Block[K, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocksByMinKey
}

// locateStart finds the earliest block a search or delete for key must begin
// at. Plain floor lookup (as used by put) can land past a split boundary
// that divided a run of equal keys between predecessor and successor blocks
// (spec §8, "duplicate key across split boundary"); this walks back over the
// map while the immediate predecessor's last entry still equals key, so the
// caller's forward next-chain walk picks up every matching entry.
func (t *BRIN[K, V]) locateStart(ctx context.Context, key K) (*Block[K, V], error) {
	bm := t.snapshotBlocksByMinKey()
	idx := sort.Search(len(bm), func(i int) bool {
		return t.compareMinKeyToKey(bm[i].minKey, key) > 0
	})
	start := idx - 1
	if start < 0 {
		start = 0
	}
	for start > 0 {
		prev := bm[start-1]
		if err := t.ensureLoaded(ctx, prev); err != nil {
			return nil, err
		}
		last, ok := prev.lastEntry()
		if !ok || t.cmp(last.Key, key) != 0 {
			break
		}
		start--
	}
	return bm[start], nil
}

// ensureLoaded lazily loads b's entries, coordinating concurrent loaders of
// the same block with a single-flight group so only one loadDataPage call
// happens per block (spec §4.3 "Lazy load").
func (t *BRIN[K, V]) ensureLoaded(ctx context.Context, b *Block[K, V]) error {
	if b.isLoaded() {
		return nil
	}
	if ctxDone(ctx) {
		return ctx.Err()
	}
	b.pin()
	defer b.unpin()

	_, err, _ := t.loadGroup.Do(strconv.FormatInt(b.id, 10), func() (any, error) {
		if b.isLoaded() {
			return nil, nil
		}
		b.mu.RLock()
		pageID := b.pageID
		b.mu.RUnlock()
		if pageID == sop.UnallocatedPageID {
			// Never checkpointed: an empty, freshly created block.
			b.installLoaded(nil)
			return nil, nil
		}
		entries, loadErr := t.storage.LoadDataPage(ctx, pageID)
		if loadErr != nil {
			return nil, loadErr
		}
		b.installLoaded(entries)
		return nil, nil
	})
	return err
}

// Put inserts (key, value), routing to the block whose range contains key
// and splitting if the block overflows maxBlockSize (spec §4.3 "put").
func (t *BRIN[K, V]) Put(ctx context.Context, key K, value V) error {
	b := t.locate(key)
	if err := t.ensureLoaded(ctx, b); err != nil {
		return err
	}

	b.mu.Lock()
	idx := sort.Search(len(b.entries), func(i int) bool {
		return t.cmp(b.entries[i].Key, key) > 0
	})
	b.entries = append(b.entries, Entry[K, V]{})
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = Entry[K, V]{Key: key, Value: value}
	b.dirty = true
	overflow := len(b.entries) > t.maxBlockSize
	b.mu.Unlock()

	if overflow {
		return t.split(ctx, b)
	}
	return nil
}

// split cuts an overflowing block into two contiguous halves, per spec
// §4.3's split algorithm.
func (t *BRIN[K, V]) split(ctx context.Context, b *Block[K, V]) error {
	b.mu.Lock()
	n := len(b.entries)
	if n <= t.maxBlockSize {
		// Someone else already split it (or deletes shrank it back down).
		b.mu.Unlock()
		return nil
	}
	lowerLen := (n + 1) / 2 // lower half gets the extra entry when n is odd
	lower := make([]Entry[K, V], lowerLen)
	upper := make([]Entry[K, V], n-lowerLen)
	copy(lower, b.entries[:lowerLen])
	copy(upper, b.entries[lowerLen:])

	newMinKey := upper[0].Key
	newID := t.blockIDSeq.Add(1) - 1
	newBlk := newBlock[K, V](newID, &newMinKey)
	newBlk.entries = upper
	newBlk.dirty = true
	newBlk.next = b.next

	b.entries = lower
	b.dirty = true
	b.next = newBlk.id
	b.mu.Unlock()

	t.mu.Lock()
	t.byID[newBlk.id] = newBlk
	bm := t.blocksByMinKey
	idx := sort.Search(len(bm), func(i int) bool {
		return t.compareMinKeyToKey(bm[i].minKey, newMinKey) >= 0
	})
	// Tie-break (spec §4.3 step 5): if a block already sits at this exact
	// minKey, don't displace the map entry — the new block is reachable
	// only by following the next chain from its predecessor.
	if idx < len(bm) && t.compareMinKeyToKey(bm[idx].minKey, newMinKey) == 0 {
		t.mu.Unlock()
		return nil
	}
	grown := make([]*Block[K, V], len(bm)+1)
	copy(grown[:idx], bm[:idx])
	grown[idx] = newBlk
	copy(grown[idx+1:], bm[idx:])
	t.blocksByMinKey = grown
	t.mu.Unlock()

	if len(lower) > t.maxBlockSize {
		return t.split(ctx, b)
	}
	return nil
}

// Search returns, in ascending block order, every value inserted under key
// and not subsequently deleted (spec §4.3 "search").
func (t *BRIN[K, V]) Search(ctx context.Context, key K) ([]V, error) {
	b, err := t.locateStart(ctx, key)
	if err != nil {
		return nil, err
	}
	var out []V
	for b != nil {
		if err := t.ensureLoaded(ctx, b); err != nil {
			return nil, err
		}
		b.mu.RLock()
		entries := b.entries
		lastMatches := false
		for _, e := range entries {
			c := t.cmp(e.Key, key)
			if c == 0 {
				out = append(out, e.Value)
			} else if c > 0 {
				break
			}
		}
		if len(entries) > 0 && t.cmp(entries[len(entries)-1].Key, key) == 0 {
			lastMatches = true
		}
		nextID := b.next
		b.mu.RUnlock()

		if !lastMatches || nextID == noNextBlock {
			break
		}
		b = t.blockByID(nextID)
	}
	return out, nil
}

// Delete removes the matching (key, value) entry. Empty non-head blocks are
// retained until PruneEmptyBlocks removes them; Checkpoint does not prune.
func (t *BRIN[K, V]) Delete(ctx context.Context, key K, value V, equal func(a, b V) bool) (bool, error) {
	b, err := t.locateStart(ctx, key)
	if err != nil {
		return false, err
	}
	for b != nil {
		if err := t.ensureLoaded(ctx, b); err != nil {
			return false, err
		}
		b.mu.Lock()
		for i, e := range b.entries {
			if t.cmp(e.Key, key) == 0 && equal(e.Value, value) {
				b.entries = append(b.entries[:i], b.entries[i+1:]...)
				b.dirty = true
				b.mu.Unlock()
				return true, nil
			}
		}
		lastMatches := len(b.entries) > 0 && t.cmp(b.entries[len(b.entries)-1].Key, key) == 0
		nextID := b.next
		b.mu.Unlock()

		if !lastMatches || nextID == noNextBlock {
			break
		}
		b = t.blockByID(nextID)
	}
	return false, nil
}

// UnloadAllBlocks drops entries for every non-dirty, unpinned block (spec
// §4.3 "unloadAllBlocks"). Iterates byID, not blocksByMinKey, so chain-only
// blocks created by a duplicate-minKey split are unloaded too.
func (t *BRIN[K, V]) UnloadAllBlocks() {
	t.mu.RLock()
	blocks := make([]*Block[K, V], 0, len(t.byID))
	for _, b := range t.byID {
		blocks = append(blocks, b)
	}
	t.mu.RUnlock()

	for _, b := range blocks {
		b.tryUnload()
	}
}

// Checkpoint serializes every dirty block to storage and returns a manifest
// sufficient to rebuild the index via Boot (spec §4.3 "checkpoint", §6 "BRIN
// manifest"). When pin is true, the returned handle keeps the checkpointed
// pages reachable via UnpinCheckpoint until the caller releases them; the
// returned actions are deferred, informational reclamation hints for pages
// superseded by this checkpoint (spec §9: IndexDataStorage has no delete
// primitive, so actual reclamation is left to the caller).
func (t *BRIN[K, V]) Checkpoint(ctx context.Context, pin bool) (Metadata[K], sop.UUID, []sop.PostCheckpointAction, error) {
	t.mu.RLock()
	blocks := make([]*Block[K, V], 0, len(t.byID))
	for _, b := range t.byID {
		blocks = append(blocks, b)
	}
	t.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	var actionsMu sync.Mutex
	var actions []sop.PostCheckpointAction
	for _, b := range blocks {
		b := b
		g.Go(func() error {
			b.mu.Lock()
			if !b.dirty {
				b.mu.Unlock()
				return nil
			}
			entries := make([]Entry[K, V], len(b.entries))
			copy(entries, b.entries)
			oldPageID := b.pageID
			b.mu.Unlock()

			newPageID, err := t.storage.CreateDataPage(gctx, entries)
			if err != nil {
				return err
			}

			b.mu.Lock()
			b.pageID = newPageID
			b.dirty = false
			b.mu.Unlock()

			if oldPageID != sop.UnallocatedPageID {
				oldPageID := oldPageID
				actionsMu.Lock()
				actions = append(actions, func() error {
					log.Debug("checkpoint superseded a page", "old_page_id", oldPageID, "new_page_id", newPageID)
					return nil
				})
				actionsMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Metadata[K]{}, sop.NilUUID, nil, err
	}

	meta := Metadata[K]{Blocks: make([]BlockMeta[K], 0, len(blocks))}
	var pinnedPages []sop.PageId
	for _, b := range blocks {
		minKey, pageID, size, _, _, _ := b.snapshot()
		meta.Blocks = append(meta.Blocks, BlockMeta[K]{
			BlockID: b.id,
			MinKey:  minKey,
			PageID:  pageID,
			Size:    size,
		})
		if pageID != sop.UnallocatedPageID {
			pinnedPages = append(pinnedPages, pageID)
		}
	}

	handle := sop.NilUUID
	if pin {
		handle = sop.NewUUID()
		t.pinnedMu.Lock()
		if t.pinnedCheckpoints == nil {
			t.pinnedCheckpoints = make(map[sop.UUID][]sop.PageId)
		}
		t.pinnedCheckpoints[handle] = pinnedPages
		t.pinnedMu.Unlock()
	}
	return meta, handle, actions, nil
}

// UnpinCheckpoint releases a checkpoint handle returned by a pinned
// Checkpoint call. Pages it pinned become eligible for reclamation by a
// future PostCheckpointAction.
func (t *BRIN[K, V]) UnpinCheckpoint(handle sop.UUID) {
	t.pinnedMu.Lock()
	defer t.pinnedMu.Unlock()
	delete(t.pinnedCheckpoints, handle)
}

// Boot rebuilds the in-memory structure from a checkpoint manifest (spec §4.3
// "recovery"). Blocks are sorted by (minKey ascending, nil first; blockID
// ascending as tie-break) — the order Checkpoint's source blocks were always
// in, since duplicate-minKey blocks are created consecutively by split —
// then the first block at each distinct minKey is installed in the map and
// any further blocks sharing that minKey become chain-only successors.
func (t *BRIN[K, V]) Boot(ctx context.Context, meta Metadata[K]) error {
	if len(meta.Blocks) == 0 {
		return nil
	}
	ordered := sortedByKeyOrder(meta.Blocks, t.cmp)

	blocks := make([]*Block[K, V], len(ordered))
	var maxID int64 = -1
	for i, bm := range ordered {
		b := newBlock[K, V](bm.BlockID, bm.MinKey)
		b.pageID = bm.PageID
		if bm.PageID == sop.UnallocatedPageID {
			b.state = loaded
			b.entries = nil
		} else {
			b.state = unloaded
		}
		blocks[i] = b
		if bm.BlockID > maxID {
			maxID = bm.BlockID
		}
	}
	for i, b := range blocks {
		if i+1 < len(blocks) {
			b.next = blocks[i+1].id
		} else {
			b.next = noNextBlock
		}
	}

	byID := make(map[int64]*Block[K, V], len(blocks))
	blocksByMinKey := make([]*Block[K, V], 0, len(blocks))
	for i, b := range blocks {
		byID[b.id] = b
		if i > 0 && compareMinKeyPtr(blocks[i-1].minKey, b.minKey, t.cmp) == 0 {
			// Chain-only successor: reachable via next, not a map entry.
			continue
		}
		blocksByMinKey = append(blocksByMinKey, b)
	}

	headID := blocksByMinKey[0].id

	t.mu.Lock()
	t.byID = byID
	t.blocksByMinKey = blocksByMinKey
	t.headID = headID
	t.blockIDSeq.Store(maxID + 1)
	t.mu.Unlock()
	return nil
}

// PruneEmptyBlocks drops empty, unpinned, non-dirty, non-head blocks whose
// predecessor can absorb their (now-vacated) range, folding the chain back
// together. This is not part of the wire format: it only ever shrinks
// blocksByMinKey/byID, so it is safe to run between checkpoints or skip
// entirely (spec §9 open question on block reclamation).
func (t *BRIN[K, V]) PruneEmptyBlocks(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := 0
	kept := make([]*Block[K, V], 0, len(t.blocksByMinKey))
	for _, b := range t.blocksByMinKey {
		if b.id == t.headID {
			kept = append(kept, b)
			continue
		}
		b.mu.RLock()
		empty := len(b.entries) == 0 && b.state == loaded
		prunable := empty && b.pinCount == 0 && !b.dirty
		next := b.next
		b.mu.RUnlock()
		if nb := t.byID[next]; prunable && nb != nil && compareMinKeyPtr(nb.minKey, b.minKey, t.cmp) == 0 {
			prunable = false // a chain-only successor still depends on b's minKey
		}
		if !prunable {
			kept = append(kept, b)
			continue
		}
		for _, p := range t.byID {
			p.mu.Lock()
			if p.next == b.id {
				p.next = next
			}
			p.mu.Unlock()
		}
		delete(t.byID, b.id)
		pruned++
	}
	t.blocksByMinKey = kept
	return pruned
}
