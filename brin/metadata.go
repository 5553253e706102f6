package brin

import (
	"bytes"
	"sort"

	"github.com/apurbad/herddb/sop"
)

// BlockMeta is one row of a checkpoint manifest (spec §6, "BRIN manifest").
// MinKey is nil for the head block.
type BlockMeta[K any] struct {
	BlockID int64
	MinKey  *K
	PageID  sop.PageId
	Size    int
}

// Metadata is the serialized block manifest produced by Checkpoint and
// consumed by Boot (spec §3 "BlockRangeIndexMetadata").
type Metadata[K any] struct {
	Blocks []BlockMeta[K]
}

// Encode serializes meta to bytes using the (blockId, minKey, pageId, size)
// wire layout of spec §6, with keyEncode producing the bytes for a non-nil
// MinKey.
func (m Metadata[K]) Encode(keyEncode func(K) ([]byte, error)) ([]byte, error) {
	var buf []byte
	buf = sop.WriteVarUint(buf, uint64(len(m.Blocks)))
	for _, b := range m.Blocks {
		buf = sop.WriteVarInt(buf, b.BlockID)
		if b.MinKey == nil {
			buf = sop.WriteVarUint(buf, 0)
		} else {
			kb, err := keyEncode(*b.MinKey)
			if err != nil {
				return nil, err
			}
			buf = sop.WriteVarUint(buf, 1)
			buf = sop.WriteBytesArray(buf, kb)
		}
		buf = sop.WriteVarUint(buf, uint64(b.PageID))
		buf = sop.WriteVarInt(buf, int64(b.Size))
	}
	return buf, nil
}

// DecodeMetadata is Encode's inverse.
func DecodeMetadata[K any](data []byte, keyDecode func([]byte) (K, error)) (Metadata[K], error) {
	r := bytes.NewReader(data)
	count, err := sop.ReadVarUint(r)
	if err != nil {
		return Metadata[K]{}, err
	}
	meta := Metadata[K]{Blocks: make([]BlockMeta[K], 0, count)}
	for i := uint64(0); i < count; i++ {
		blockID, err := sop.ReadVarInt(r)
		if err != nil {
			return Metadata[K]{}, err
		}
		hasKey, err := sop.ReadVarUint(r)
		if err != nil {
			return Metadata[K]{}, err
		}
		var minKey *K
		if hasKey != 0 {
			kb, err := sop.ReadBytesArray(r)
			if err != nil {
				return Metadata[K]{}, err
			}
			k, err := keyDecode(kb)
			if err != nil {
				return Metadata[K]{}, err
			}
			minKey = &k
		}
		pageID, err := sop.ReadVarUint(r)
		if err != nil {
			return Metadata[K]{}, err
		}
		size, err := sop.ReadVarInt(r)
		if err != nil {
			return Metadata[K]{}, err
		}
		meta.Blocks = append(meta.Blocks, BlockMeta[K]{
			BlockID: blockID,
			MinKey:  minKey,
			PageID:  sop.PageId(pageID),
			Size:    int(size),
		})
	}
	return meta, nil
}

// sortedByKeyOrder returns meta's blocks ordered by ascending minKey (nil
// first), tie-broken by ascending blockID — the same order Checkpoint's
// source blocks were in, since duplicate-minKey blocks are always created
// consecutively by split (spec §4.3 step 5).
func sortedByKeyOrder[K any](blocks []BlockMeta[K], cmp Comparer[K]) []BlockMeta[K] {
	out := make([]BlockMeta[K], len(blocks))
	copy(out, blocks)
	sort.Slice(out, func(i, j int) bool {
		c := compareMinKeyPtr(out[i].MinKey, out[j].MinKey, cmp)
		if c != 0 {
			return c < 0
		}
		return out[i].BlockID < out[j].BlockID
	})
	return out
}

func compareMinKeyPtr[K any](a, b *K, cmp Comparer[K]) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return cmp(*a, *b)
}
