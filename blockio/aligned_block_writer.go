package blockio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/apurbad/herddb/sop"
)

// ErrPoisoned is returned once a write or flush has failed; the writer must
// be closed, not reused, per spec §4.1 "Failure".
var ErrPoisoned = errors.New("blockio: writer is poisoned by a prior I/O error")

// ErrClosed is returned by any call made after Close.
var ErrClosed = errors.New("blockio: writer is closed")

// AlignedBlockWriter is an append-only byte sink over a file opened with
// direct-I/O semantics. It buffers into batches sized to an integer multiple
// of the filesystem block size and submits only alignment-sized writes to
// the underlying file, per spec §4.1.
type AlignedBlockWriter struct {
	dio      DirectIO
	file     *os.File
	filename string

	alignment   int
	batchBlocks int
	batchSize   int

	buf     []byte // capacity 2*batchSize, allocated aligned via directio.AlignedBlock
	pending int

	offset        int64
	writtenBlocks int64

	mu        sync.Mutex
	poisoned  bool
	closed    bool
}

// Create opens filename for append-only direct I/O and returns a writer that
// batches writes into alignment*batchBlocks chunks. flag defaults to
// O_CREATE|O_WRONLY when 0, matching spec §6's "CREATE|WRITE by default".
func Create(ctx context.Context, dio DirectIO, filename string, batchBlocks int, flag int, perm os.FileMode) (*AlignedBlockWriter, error) {
	if batchBlocks < 1 {
		return nil, fmt.Errorf("blockio: batchBlocks must be >= 1, got %d", batchBlocks)
	}
	if dio == nil {
		dio = NewDirectIO()
	}
	if flag == 0 {
		flag = os.O_CREATE | os.O_WRONLY
	}
	f, err := dio.Open(ctx, filename, flag, perm)
	if err != nil {
		return nil, err
	}
	alignment := fsBlockSize(filename)
	batchSize := alignment * batchBlocks
	return &AlignedBlockWriter{
		dio:         dio,
		file:        f,
		filename:    filename,
		alignment:   alignment,
		batchBlocks: batchBlocks,
		batchSize:   batchSize,
		buf:         AlignedBlock(2 * batchSize),
	}, nil
}

// fsBlockSize reports the direct-I/O alignment used for path. It always
// returns the direct-I/O package's portable BlockSize constant; the
// filesystem backing path is not queried.
func fsBlockSize(path string) int {
	return BlockSize
}

// WriteByte appends a single byte, emitting a full unpadded batch when the
// buffer fills exactly.
func (w *AlignedBlockWriter) WriteByte(ctx context.Context, b byte) error {
	_, err := w.Write(ctx, []byte{b})
	return err
}

// Write appends p, submitting full batchSize-sized, unpadded batches to the
// underlying file as the buffer fills. It satisfies the append semantics of
// spec §4.1's writeBytes operation.
func (w *AlignedBlockWriter) Write(ctx context.Context, p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.poisoned {
		return 0, ErrPoisoned
	}
	if w.closed {
		return 0, ErrClosed
	}

	total := 0
	for len(p) > 0 {
		room := w.batchSize - w.pending
		if len(p) < room {
			copy(w.buf[w.pending:], p)
			w.pending += len(p)
			total += len(p)
			break
		}
		copy(w.buf[w.pending:w.pending+room], p[:room])
		w.pending += room
		p = p[room:]
		total += room

		if err := w.emit(ctx, w.buf[:w.batchSize], int64(w.batchBlocks)); err != nil {
			w.poisoned = true
			return total, err
		}
		w.pending = 0
	}
	return total, nil
}

// Flush submits whatever is buffered, zero-padded to the next alignment
// boundary, without closing the file.
func (w *AlignedBlockWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *AlignedBlockWriter) flushLocked(ctx context.Context) error {
	if w.poisoned {
		return ErrPoisoned
	}
	if w.closed {
		return ErrClosed
	}
	if w.pending == 0 {
		return nil
	}

	padded := alignUp(w.pending, w.alignment)
	for i := w.pending; i < padded; i++ {
		w.buf[i] = 0
	}
	blocks := int64(padded / w.alignment)
	if err := w.emit(ctx, w.buf[:padded], blocks); err != nil {
		w.poisoned = true
		return err
	}
	w.pending = 0
	return nil
}

// Close flushes any remaining buffered bytes (padded) and releases the file
// handle. It is safe to call Close on an already-closed writer.
func (w *AlignedBlockWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	var flushErr error
	if !w.poisoned {
		flushErr = w.flushLocked(ctx)
	}
	closeErr := w.dio.Close(w.file)
	w.closed = true
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// WrittenBlocks returns the count of alignment-sized blocks successfully
// submitted to the underlying file so far.
func (w *AlignedBlockWriter) WrittenBlocks() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writtenBlocks
}

// Alignment returns the configured alignment size in bytes.
func (w *AlignedBlockWriter) Alignment() int {
	return w.alignment
}

// Offset returns the byte offset the next Write will start submitting at.
// It is only a reliable page boundary when there is no pending unflushed
// data (callers that need aligned page starts should Flush after each page).
func (w *AlignedBlockWriter) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// ReadAt reads directly from the writer's underlying file handle, reusing
// the single owned file descriptor (spec §5: "File channel in
// AlignedBlockWriter: exclusively owned by its writer instance").
func (w *AlignedBlockWriter) ReadAt(ctx context.Context, block []byte, offset int64) (int, error) {
	w.mu.Lock()
	file := w.file
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return w.dio.ReadAt(ctx, file, block, offset)
}

func (w *AlignedBlockWriter) emit(ctx context.Context, data []byte, blocks int64) error {
	n, err := w.dio.WriteAt(ctx, w.file, data, w.offset)
	if err != nil {
		return sop.Error{Code: sop.FileIOError, Err: err, UserData: w.filename}
	}
	if n != len(data) {
		return sop.Error{Code: sop.FileIOError, Err: fmt.Errorf("short write: wrote %d of %d bytes", n, len(data)), UserData: w.filename}
	}
	w.offset += int64(n)
	w.writtenBlocks += blocks
	return nil
}

func alignUp(n, alignment int) int {
	if n%alignment == 0 {
		return n
	}
	return (n/alignment + 1) * alignment
}
