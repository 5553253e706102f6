package pagestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apurbad/herddb/blockio"
	"github.com/apurbad/herddb/sop"
)

// FileStoreOptions configures a FileStore (spec §4.2, §6 "File I/O").
type FileStoreOptions struct {
	// Directory holds the store's segment and directory files.
	Directory string
	// StoreName names this store's segment file, unique within Directory.
	StoreName string
	// BatchBlocks is AlignedBlockWriter's batch size in alignment units.
	BatchBlocks int
	// DirectIO overrides the default direct-I/O implementation; nil uses
	// blockio.NewDirectIO().
	DirectIO blockio.DirectIO
}

type pageLoc struct {
	Offset int64
	Length int
}

// FileStore is an IndexDataStorage that persists pages as sector-aligned,
// append-only records through blockio.AlignedBlockWriter, per spec §4.2's
// note that implementations use AlignedBlockWriter for sector-safe I/O. A
// page directory (id -> file offset/length) is kept in memory and can be
// checkpointed to a small header file so a restart can reopen the segment
// without rescanning it (SPEC_FULL.md supplement).
type FileStore[K any, V any] struct {
	mu     sync.Mutex
	codec  Codec[K, V]
	writer *blockio.AlignedBlockWriter
	dir    map[sop.PageId]pageLoc
	nextID uint64

	dataPath string
	dirPath  string
}

// NewFileStore opens (or creates) the segment file for opts.StoreName under
// opts.Directory.
func NewFileStore[K any, V any](ctx context.Context, opts FileStoreOptions, codec Codec[K, V]) (*FileStore[K, V], error) {
	if !codec.IsValid() {
		return nil, fmt.Errorf("pagestore: codec is missing required Encode/Decode functions")
	}
	if opts.BatchBlocks < 1 {
		opts.BatchBlocks = 1
	}
	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, sop.Error{Code: sop.FileIOError, Err: err, UserData: opts.Directory}
	}

	dataPath := filepath.Join(opts.Directory, opts.StoreName+".pages")
	dirPath := filepath.Join(opts.Directory, opts.StoreName+".dir")

	dio := opts.DirectIO
	if dio == nil {
		dio = blockio.NewDirectIO()
	}

	fs := &FileStore[K, V]{
		codec:    codec,
		dir:      make(map[sop.PageId]pageLoc),
		nextID:   1,
		dataPath: dataPath,
		dirPath:  dirPath,
	}

	if err := fs.loadDirectory(); err != nil {
		return nil, err
	}

	flag := os.O_CREATE | os.O_RDWR
	writer, err := blockio.Create(ctx, dio, dataPath, opts.BatchBlocks, flag, 0o644)
	if err != nil {
		return nil, err
	}
	fs.writer = writer
	return fs, nil
}

func (fs *FileStore[K, V]) CreateDataPage(ctx context.Context, entries []Entry[K, V]) (sop.PageId, error) {
	data, err := encodePage(fs.codec, entries)
	if err != nil {
		return sop.UnallocatedPageID, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	offset := fs.writer.Offset()
	if _, err := fs.writer.Write(ctx, data); err != nil {
		return sop.UnallocatedPageID, err
	}
	// Flush pads to the next alignment boundary, guaranteeing the next
	// page's CreateDataPage call starts at an aligned offset too.
	if err := fs.writer.Flush(ctx); err != nil {
		return sop.UnallocatedPageID, err
	}

	id := sop.PageId(fs.nextID)
	fs.nextID++
	fs.dir[id] = pageLoc{Offset: offset, Length: len(data)}
	return id, nil
}

func (fs *FileStore[K, V]) LoadDataPage(ctx context.Context, id sop.PageId) ([]Entry[K, V], error) {
	fs.mu.Lock()
	loc, ok := fs.dir[id]
	writer := fs.writer
	fs.mu.Unlock()
	if !ok {
		return nil, sop.Error{Code: sop.PageStoreError, Err: fmt.Errorf("page %d not found", id), UserData: id}
	}

	readLen := alignUp(loc.Length, writer.Alignment())
	if readLen == 0 {
		return nil, nil
	}
	buf := blockio.AlignedBlock(readLen)
	n, err := writer.ReadAt(ctx, buf, loc.Offset)
	if err != nil {
		return nil, err
	}
	if n < loc.Length {
		return nil, sop.Error{Code: sop.PageStoreError, Err: fmt.Errorf("short read for page %d: got %d of %d bytes", id, n, loc.Length), UserData: id}
	}
	return decodePage(fs.codec, buf[:loc.Length])
}

// Checkpoint persists the page directory so a future Boot can reopen the
// segment without rescanning it.
func (fs *FileStore[K, V]) Checkpoint(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.saveDirectory()
}

func (fs *FileStore[K, V]) saveDirectory() error {
	var buf []byte
	buf = sop.WriteVarUint(buf, fs.nextID)
	buf = sop.WriteVarUint(buf, uint64(len(fs.dir)))
	for id, loc := range fs.dir {
		buf = sop.WriteVarUint(buf, uint64(id))
		buf = sop.WriteVarInt(buf, loc.Offset)
		buf = sop.WriteVarUint(buf, uint64(loc.Length))
	}
	if err := os.WriteFile(fs.dirPath, buf, 0o644); err != nil {
		return sop.Error{Code: sop.FileIOError, Err: err, UserData: fs.dirPath}
	}
	return nil
}

func (fs *FileStore[K, V]) loadDirectory() error {
	data, err := os.ReadFile(fs.dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sop.Error{Code: sop.FileIOError, Err: err, UserData: fs.dirPath}
	}
	r := bytes.NewReader(data)
	nextID, err := sop.ReadVarUint(r)
	if err != nil {
		return fmt.Errorf("pagestore: reading directory header: %w", err)
	}
	count, err := sop.ReadVarUint(r)
	if err != nil {
		return fmt.Errorf("pagestore: reading directory count: %w", err)
	}
	dir := make(map[sop.PageId]pageLoc, count)
	for i := uint64(0); i < count; i++ {
		id, err := sop.ReadVarUint(r)
		if err != nil {
			return fmt.Errorf("pagestore: reading directory entry %d id: %w", i, err)
		}
		offset, err := sop.ReadVarInt(r)
		if err != nil {
			return fmt.Errorf("pagestore: reading directory entry %d offset: %w", i, err)
		}
		length, err := sop.ReadVarUint(r)
		if err != nil {
			return fmt.Errorf("pagestore: reading directory entry %d length: %w", i, err)
		}
		dir[sop.PageId(id)] = pageLoc{Offset: offset, Length: int(length)}
	}
	fs.nextID = nextID
	fs.dir = dir
	return nil
}

// Close flushes and releases the underlying segment file handle.
func (fs *FileStore[K, V]) Close(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.writer.Close(ctx)
}

func alignUp(n, alignment int) int {
	if n == 0 {
		return 0
	}
	if n%alignment == 0 {
		return n
	}
	return (n/alignment + 1) * alignment
}
