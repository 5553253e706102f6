package pagestore

import (
	"context"

	"github.com/apurbad/herddb/sop"
)

// Entry is the (K, V) pair persisted inside a page, mirroring spec §3's
// Entry type. A page is an immutable, ordered list of Entry.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// IndexDataStorage is the abstract page store contract of spec §4.2: an
// append-only set of immutable, 64-bit-identified pages. Implementations may
// buffer writes, but once CreateDataPage returns, the page must be readable
// by LoadDataPage within the same process lifetime.
type IndexDataStorage[K any, V any] interface {
	// CreateDataPage persists an immutable ordered list of entries and
	// returns a fresh id, greater than any id this store previously
	// returned.
	CreateDataPage(ctx context.Context, entries []Entry[K, V]) (sop.PageId, error)
	// LoadDataPage returns the exact list of entries previously written
	// under id, or fails.
	LoadDataPage(ctx context.Context, id sop.PageId) ([]Entry[K, V], error)
}

// Codec describes how to turn Entry[K, V] values to and from bytes so a
// page store can persist them. It follows the wider codebase's
// function-bag serializer idiom (see btree.ItemSerializer) generalized with
// type parameters instead of interface{}.
type Codec[K any, V any] struct {
	EncodeKey   func(K) ([]byte, error)
	DecodeKey   func([]byte) (K, error)
	EncodeValue func(V) ([]byte, error)
	DecodeValue func([]byte) (V, error)
}

// IsValid reports whether every function the codec needs is set.
func (c Codec[K, V]) IsValid() bool {
	return c.EncodeKey != nil && c.DecodeKey != nil && c.EncodeValue != nil && c.DecodeValue != nil
}
