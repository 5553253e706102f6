package blockio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAlignedBlockWriter_PaddingOnClose covers spec §8 scenario 3: a short
// write followed by close pads the final batch to the alignment boundary
// and reports one written block.
func TestAlignedBlockWriter_PaddingOnClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fn := filepath.Join(dir, "seg.dat")

	w, err := Create(ctx, Shim{}, fn, 1, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	require.Equal(t, BlockSize, w.Alignment())

	payload := []byte("0123456789")
	n, err := w.Write(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, w.Close(ctx))
	require.EqualValues(t, 1, w.WrittenBlocks())

	info, err := os.Stat(fn)
	require.NoError(t, err)
	require.EqualValues(t, BlockSize, info.Size())

	got, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, payload, got[:len(payload)])
	for _, b := range got[len(payload):] {
		require.EqualValues(t, 0, b)
	}
}

// TestAlignedBlockWriter_FullBatchUnpadded covers the "writeBytes" fill path:
// a write that exactly fills a batch is submitted unpadded, and the buffer
// resets for subsequent writes.
func TestAlignedBlockWriter_FullBatchUnpadded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fn := filepath.Join(dir, "seg.dat")

	w, err := Create(ctx, Shim{}, fn, 1, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.NoError(t, err)

	full := make([]byte, BlockSize)
	for i := range full {
		full[i] = byte(i)
	}
	_, err = w.Write(ctx, full)
	require.NoError(t, err)
	require.EqualValues(t, 1, w.WrittenBlocks())

	// Nothing pending, so Flush is a no-op and doesn't add a zero-padded block.
	require.NoError(t, w.Flush(ctx))
	require.EqualValues(t, 1, w.WrittenBlocks())

	require.NoError(t, w.Close(ctx))

	info, err := os.Stat(fn)
	require.NoError(t, err)
	require.EqualValues(t, BlockSize, info.Size())
}

// TestAlignedBlockWriter_RejectsWriteAfterClose ensures a writer that has
// been closed rejects further writes with ErrClosed.
func TestAlignedBlockWriter_RejectsWriteAfterClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fn := filepath.Join(dir, "seg.dat")

	w, err := Create(ctx, Shim{}, fn, 1, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	// Write checks the closed flag before buffering, so no WriteAt is issued.
	full := make([]byte, BlockSize)
	_, err = w.Write(ctx, full)
	require.ErrorIs(t, err, ErrClosed)
}

// TestAlignUp covers the rounding helper in isolation.
func TestAlignUp(t *testing.T) {
	require.Equal(t, 4096, alignUp(1, 4096))
	require.Equal(t, 4096, alignUp(4096, 4096))
	require.Equal(t, 8192, alignUp(4097, 4096))
	require.Equal(t, 0, alignUp(0, 4096))
}
