// Package keyindex implements the KeyToPageIndex of spec §4.4: a concurrent
// map from primary-key bytes to page id, with linearizable per-key
// compare-and-set, an ascending-order scanner for sortable key types, and
// checkpoint/pin/unpin hooks mirroring the brin package's.
package keyindex

import "github.com/apurbad/herddb/sop"

// PKType identifies the SQL type backing a table's primary key, used only to
// decide whether the scanner can produce ascending order cheaply (spec
// §4.4 "isSortedAscending").
type PKType int

const (
	PKTypeBytes PKType = iota
	PKTypeString
	PKTypeInt64
)

// isSortedAscending reports whether lexicographic byte order on a PK of this
// type coincides with the type's natural ascending order. Fixed-width
// big-endian integers and raw byte/string keys satisfy this; nothing else
// does (spec §4.4 "yields entries in ascending key order when
// isSortedAscending(pkTypes) returns true; otherwise order is
// implementation-defined").
func isSortedAscending(t PKType) bool {
	switch t {
	case PKTypeBytes, PKTypeString, PKTypeInt64:
		return true
	default:
		return false
	}
}

// Options configures a ConcurrentMap.
type Options struct {
	// ShardCount is the number of independent shards the key space is split
	// across (a key's shard is its hash modulo ShardCount). Defaults to 256
	// when zero or negative.
	ShardCount int
}

// Entry is one (key, page) pair yielded by a Scanner.
type Entry struct {
	Key  []byte
	Page sop.PageId
}
