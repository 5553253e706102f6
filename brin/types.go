// Package brin implements the Block Range Index: an in-memory sorted map of
// block-head keys to Block objects, each owning an optionally-loaded sorted
// list of (key, value) entries, supporting concurrent point lookups, range
// scans, mutation, lazy load, split, checkpoint, and recovery.
package brin

import (
	"github.com/apurbad/herddb/pagestore"
)

// Entry is the (K, V) pair a Block stores, reusing pagestore's page entry
// shape so pages read from IndexDataStorage need no conversion.
type Entry[K any, V any] = pagestore.Entry[K, V]

// Comparer orders two keys, returning a negative number, zero, or a positive
// number as a < b, a == b, or a > b.
type Comparer[K any] func(a, b K) int

// noNextBlock is the sentinel for Block.next meaning "no successor",
// modeled as Option[blockID] per spec §9 ("next is modeled as
// Option<blockId>, not as a pointer").
const noNextBlock int64 = -1
