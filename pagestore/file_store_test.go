package pagestore

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/apurbad/herddb/blockio"
	"github.com/apurbad/herddb/sop"
	"github.com/stretchr/testify/require"
)

func int64Codec() Codec[int64, string] {
	return Codec[int64, string]{
		EncodeKey: func(k int64) ([]byte, error) {
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, uint64(k))
			return b, nil
		},
		DecodeKey: func(b []byte) (int64, error) {
			return int64(binary.BigEndian.Uint64(b)), nil
		},
		EncodeValue: func(v string) ([]byte, error) { return []byte(v), nil },
		DecodeValue: func(b []byte) (string, error) { return string(b), nil },
	}
}

func TestFileStore_CreateAndLoadDataPage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := NewFileStore(ctx, FileStoreOptions{
		Directory:   dir,
		StoreName:   "idx1",
		BatchBlocks: 1,
		DirectIO:    blockio.Shim{},
	}, int64Codec())
	require.NoError(t, err)

	entries := []Entry[int64, string]{
		{Key: 1, Value: "a"},
		{Key: 2, Value: "b"},
	}
	id, err := fs.CreateDataPage(ctx, entries)
	require.NoError(t, err)
	require.NotEqual(t, sop.UnallocatedPageID, id)

	got, err := fs.LoadDataPage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entries, got)

	// A second page gets a fresh, larger id.
	id2, err := fs.CreateDataPage(ctx, []Entry[int64, string]{{Key: 3, Value: "c"}})
	require.NoError(t, err)
	require.Greater(t, uint64(id2), uint64(id))

	got2, err := fs.LoadDataPage(ctx, id2)
	require.NoError(t, err)
	require.Equal(t, []Entry[int64, string]{{Key: 3, Value: "c"}}, got2)

	require.NoError(t, fs.Checkpoint(ctx))
	require.NoError(t, fs.Close(ctx))
}

func TestFileStore_BootFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	codec := int64Codec()

	fs1, err := NewFileStore(ctx, FileStoreOptions{
		Directory: dir, StoreName: "idx2", BatchBlocks: 1, DirectIO: blockio.Shim{},
	}, codec)
	require.NoError(t, err)
	id, err := fs1.CreateDataPage(ctx, []Entry[int64, string]{{Key: 9, Value: "nine"}})
	require.NoError(t, err)
	require.NoError(t, fs1.Checkpoint(ctx))
	require.NoError(t, fs1.Close(ctx))

	fs2, err := NewFileStore(ctx, FileStoreOptions{
		Directory: dir, StoreName: "idx2", BatchBlocks: 1, DirectIO: blockio.Shim{},
	}, codec)
	require.NoError(t, err)
	got, err := fs2.LoadDataPage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []Entry[int64, string]{{Key: 9, Value: "nine"}}, got)
}

func TestMemStore_CreateAndLoadDataPage(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore[int64, string]()

	id, err := ms.CreateDataPage(ctx, []Entry[int64, string]{{Key: 1, Value: "x"}})
	require.NoError(t, err)

	got, err := ms.LoadDataPage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []Entry[int64, string]{{Key: 1, Value: "x"}}, got)

	_, err = ms.LoadDataPage(ctx, id+100)
	require.Error(t, err)
}
