package brin

import "context"

// RangeCursor is a pull-style forward iterator over a key range, following the
// same next-chain walk Search uses. It is not safe for concurrent use by
// multiple goroutines.
type RangeCursor[K any, V any] struct {
	t   *BRIN[K, V]
	ctx context.Context
	hi  K
	has bool // whether hi bounds the scan at all

	b   *Block[K, V]
	idx int

	cur  Entry[K, V]
	err  error
	done bool
}

// RangeSearch returns a cursor over every (key, value) pair with lo <= key,
// and key <= hi when hasHi is true, in ascending key order. This supplements
// spec §4.3's point search/delete with the range scan HerdDB's table scans
// need (see SPEC_FULL.md's supplemented-features section).
func (t *BRIN[K, V]) RangeSearch(ctx context.Context, lo K, hi K, hasHi bool) (*RangeCursor[K, V], error) {
	start, err := t.locateStart(ctx, lo)
	if err != nil {
		return nil, err
	}
	c := &RangeCursor[K, V]{t: t, ctx: ctx, hi: hi, has: hasHi, b: start, idx: -1}
	c.seek(lo)
	return c, nil
}

// seek advances the cursor to the first entry >= lo, possibly crossing block
// boundaries, without yet exposing a value.
func (c *RangeCursor[K, V]) seek(lo K) {
	for c.b != nil {
		if c.err = c.t.ensureLoaded(c.ctx, c.b); c.err != nil {
			c.done = true
			return
		}
		c.b.mu.RLock()
		entries := c.b.entries
		c.b.mu.RUnlock()
		idx := 0
		for idx < len(entries) && c.t.cmp(entries[idx].Key, lo) < 0 {
			idx++
		}
		if idx < len(entries) {
			c.idx = idx - 1 // Next() increments before reading
			return
		}
		c.advanceBlock()
	}
	c.done = true
}

func (c *RangeCursor[K, V]) advanceBlock() {
	c.b.mu.RLock()
	nextID := c.b.next
	c.b.mu.RUnlock()
	if nextID == noNextBlock {
		c.b = nil
		return
	}
	c.b = c.t.blockByID(nextID)
	c.idx = -1
}

// Next advances the cursor and reports whether a value is available. Call
// Err after Next returns false to distinguish end-of-range from a failure.
func (c *RangeCursor[K, V]) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	for c.b != nil {
		c.b.mu.RLock()
		entries := c.b.entries
		c.b.mu.RUnlock()
		c.idx++
		if c.idx < len(entries) {
			e := entries[c.idx]
			if c.has && c.t.cmp(e.Key, c.hi) > 0 {
				c.done = true
				return false
			}
			c.cur = e
			return true
		}
		c.advanceBlock()
	}
	c.done = true
	return false
}

// Key returns the current entry's key. Valid only after Next returns true.
func (c *RangeCursor[K, V]) Key() K { return c.cur.Key }

// Value returns the current entry's value. Valid only after Next returns
// true.
func (c *RangeCursor[K, V]) Value() V { return c.cur.Value }

// Err returns the first error encountered while advancing the cursor, if
// any.
func (c *RangeCursor[K, V]) Err() error { return c.err }
