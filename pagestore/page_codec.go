package pagestore

import (
	"bytes"
	"fmt"

	"github.com/apurbad/herddb/sop"
)

// encodePage serializes entries as: varuint count, then per entry a
// length-prefixed key followed by a length-prefixed value. It is the wire
// format FileStore pages use on disk.
func encodePage[K any, V any](codec Codec[K, V], entries []Entry[K, V]) ([]byte, error) {
	var buf []byte
	buf = sop.WriteVarUint(buf, uint64(len(entries)))
	for _, e := range entries {
		kb, err := codec.EncodeKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("pagestore: encoding key: %w", err)
		}
		vb, err := codec.EncodeValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("pagestore: encoding value: %w", err)
		}
		buf = sop.WriteBytesArray(buf, kb)
		buf = sop.WriteBytesArray(buf, vb)
	}
	return buf, nil
}

// decodePage is encodePage's inverse.
func decodePage[K any, V any](codec Codec[K, V], data []byte) ([]Entry[K, V], error) {
	r := bytes.NewReader(data)
	count, err := sop.ReadVarUint(r)
	if err != nil {
		return nil, fmt.Errorf("pagestore: reading entry count: %w", err)
	}
	entries := make([]Entry[K, V], 0, count)
	for i := uint64(0); i < count; i++ {
		kb, err := sop.ReadBytesArray(r)
		if err != nil {
			return nil, fmt.Errorf("pagestore: reading key %d: %w", i, err)
		}
		vb, err := sop.ReadBytesArray(r)
		if err != nil {
			return nil, fmt.Errorf("pagestore: reading value %d: %w", i, err)
		}
		k, err := codec.DecodeKey(kb)
		if err != nil {
			return nil, fmt.Errorf("pagestore: decoding key %d: %w", i, err)
		}
		v, err := codec.DecodeValue(vb)
		if err != nil {
			return nil, fmt.Errorf("pagestore: decoding value %d: %w", i, err)
		}
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	return entries, nil
}
