package blockio

import (
	"context"
	"os"
)

// Shim is a DirectIO fallback that performs ordinary buffered file I/O
// instead of O_DIRECT, for hosts or test sandboxes where direct I/O isn't
// available. Callers still pass alignment-sized, zero-padded buffers, so the
// on-disk layout is identical to the real implementation; only the O_DIRECT
// flag itself is dropped (spec §9, "Direct I/O portability").
type Shim struct{}

func (Shim) Open(ctx context.Context, filename string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(filename, flag, perm)
}

func (Shim) WriteAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	return file.WriteAt(block, offset)
}

func (Shim) ReadAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	return file.ReadAt(block, offset)
}

func (Shim) Close(file *os.File) error {
	return file.Close()
}
