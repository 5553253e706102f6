package blockio

import (
	"context"
	"io"
	"os"

	"github.com/ncw/directio"

	"github.com/apurbad/herddb/sop"
)

// BlockSize is the platform's direct-I/O alignment reported by ncw/directio.
// fsBlockSize returns it for every path; no per-path query is made.
const BlockSize = directio.BlockSize

// DirectIO exposes the unbuffered file primitives AlignedBlockWriter is built
// on. Implementations are expected to be used with directio.AlignedBlock
// buffers and block-aligned offsets.
type DirectIO interface {
	// Open opens filename with direct-I/O semantics where supported.
	Open(ctx context.Context, filename string, flag int, perm os.FileMode) (*os.File, error)
	// WriteAt writes an aligned block at offset.
	WriteAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error)
	// ReadAt reads an aligned block at offset.
	ReadAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error)
	// Close closes file.
	Close(file *os.File) error
}

type directIO struct{}

// NewDirectIO returns a DirectIO backed by github.com/ncw/directio.
func NewDirectIO() DirectIO {
	return directIO{}
}

func (directIO) Open(ctx context.Context, filename string, flag int, perm os.FileMode) (*os.File, error) {
	var f *os.File
	err := sop.Retry(ctx, func(context.Context) error {
		var e error
		f, e = directio.OpenFile(filename, flag, perm)
		if e != nil {
			return sop.Error{Code: sop.FileIOError, Err: e, UserData: filename}
		}
		return nil
	})
	return f, err
}

func (directIO) WriteAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	var n int
	err := sop.Retry(ctx, func(context.Context) error {
		var e error
		n, e = file.WriteAt(block, offset)
		if e != nil {
			return sop.Error{Code: sop.FileIOError, Err: e, UserData: offset}
		}
		return nil
	})
	return n, err
}

func (directIO) ReadAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	var n int
	var readErr error
	err := sop.Retry(ctx, func(context.Context) error {
		n, readErr = file.ReadAt(block, offset)
		// io.EOF is a normal outcome of ReadAt (short final read); never retry it.
		if readErr != nil && readErr != io.EOF {
			return sop.Error{Code: sop.FileIOError, Err: readErr, UserData: offset}
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, readErr
}

func (directIO) Close(file *os.File) error {
	return file.Close()
}

// AlignedBlock allocates a buffer aligned to the direct-I/O sector size,
// suitable for use as a write or read buffer.
func AlignedBlock(size int) []byte {
	return directio.AlignedBlock(size)
}
