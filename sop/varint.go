package sop

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Varint/UTF/bytesArray are the wire primitives the table metadata format
// (spec §6) and the BRIN manifest/page codecs build on. They follow the
// Java source's naming ("varlong", "utf", "bytesArray") but use the
// standard LEB128 varint encoding via encoding/binary, since no third-party
// library in the corpus offers a drop-in replacement for this primitive.

// WriteVarUint appends v as an unsigned LEB128 varint (Java "varlong"/"varint"
// when the value is known non-negative).
func WriteVarUint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// ReadVarUint reads an unsigned LEB128 varint from r.
func ReadVarUint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// WriteVarInt appends v as a zigzag-encoded LEB128 varint.
func WriteVarInt(buf []byte, v int64) []byte {
	return binary.AppendVarint(buf, v)
}

// ReadVarInt reads a zigzag-encoded LEB128 varint from r.
func ReadVarInt(r io.ByteReader) (int64, error) {
	return binary.ReadVarint(r)
}

// WriteUTF appends a length-prefixed UTF-8 string.
func WriteUTF(buf []byte, s string) []byte {
	buf = WriteVarUint(buf, uint64(len(s)))
	return append(buf, s...)
}

// ReadUTF reads a length-prefixed UTF-8 string from r.
func ReadUTF(r ByteReaderAt) (string, error) {
	n, err := ReadVarUint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("sop: reading utf string of length %d: %w", n, err)
	}
	return string(b), nil
}

// WriteBytesArray appends a length-prefixed byte array.
func WriteBytesArray(buf []byte, b []byte) []byte {
	buf = WriteVarUint(buf, uint64(len(b)))
	return append(buf, b...)
}

// ReadBytesArray reads a length-prefixed byte array from r.
func ReadBytesArray(r ByteReaderAt) ([]byte, error) {
	n, err := ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("sop: reading bytes array of length %d: %w", n, err)
	}
	return b, nil
}

// ByteReaderAt is the minimal reader shape the varint/UTF/bytesArray decoders
// need: sequential byte-at-a-time reads (for varints) plus bulk reads (for
// the payload that follows a length prefix). *bytes.Reader satisfies it.
type ByteReaderAt interface {
	io.Reader
	io.ByteReader
}
