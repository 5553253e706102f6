package brin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apurbad/herddb/pagestore"
)

func intCmp(a, b int) int { return a - b }

func newTestBRIN(t *testing.T, maxBlockSize int) *BRIN[int, string] {
	t.Helper()
	storage := pagestore.NewMemStore[int, string]()
	return New[int, string](storage, intCmp, Options{MaxBlockSize: maxBlockSize})
}

func TestBRIN_SplitOnOverflow(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)

	require.Equal(t, 1, b.GetNumBlocks())
	require.NoError(t, b.Put(ctx, 1, "a"))
	require.NoError(t, b.Put(ctx, 2, "b"))
	require.Equal(t, 1, b.GetNumBlocks())
	require.NoError(t, b.Put(ctx, 3, "c"))
	require.Equal(t, 2, b.GetNumBlocks())

	got, err := b.Search(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got)

	got, err = b.Search(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, got)

	got, err = b.Search(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, got)
}

func TestBRIN_CheckpointUnloadAndBoot(t *testing.T) {
	ctx := context.Background()
	storage := pagestore.NewMemStore[int, string]()
	b := New[int, string](storage, intCmp, Options{MaxBlockSize: 2})

	require.NoError(t, b.Put(ctx, 1, "a"))
	require.NoError(t, b.Put(ctx, 2, "b"))
	require.NoError(t, b.Put(ctx, 3, "c"))
	require.Equal(t, 2, b.GetNumBlocks())

	meta, handle, actions, err := b.Checkpoint(ctx, false)
	require.NoError(t, err)
	require.Empty(t, actions)
	require.Len(t, meta.Blocks, 2)
	b.UnpinCheckpoint(handle) // no-op when unpinned, should not panic

	b.UnloadAllBlocks()

	b2 := New[int, string](storage, intCmp, Options{MaxBlockSize: 2})
	require.NoError(t, b2.Boot(ctx, meta))
	require.Equal(t, 2, b2.GetNumBlocks())

	for key, want := range map[int]string{1: "a", 2: "b", 3: "c"} {
		got, err := b2.Search(ctx, key)
		require.NoError(t, err)
		require.Equal(t, []string{want}, got)
	}
}

func TestBRIN_DuplicateKeyAcrossSplitBoundary(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)

	require.NoError(t, b.Put(ctx, 5, "a"))
	require.NoError(t, b.Put(ctx, 5, "b"))
	require.NoError(t, b.Put(ctx, 5, "c"))

	got, err := b.Search(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, got)
}

func TestBRIN_DeleteAcrossSplitBoundary(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)

	require.NoError(t, b.Put(ctx, 5, "a"))
	require.NoError(t, b.Put(ctx, 5, "b"))
	require.NoError(t, b.Put(ctx, 5, "c"))

	ok, err := b.Delete(ctx, 5, "a", func(x, y string) bool { return x == y })
	require.NoError(t, err)
	require.True(t, ok)

	got, err := b.Search(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b", "c"}, got)
}

func TestBRIN_RangeSearch(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)

	for i := 1; i <= 6; i++ {
		require.NoError(t, b.Put(ctx, i, string(rune('a'+i-1))))
	}

	cur, err := b.RangeSearch(ctx, 2, 5, true)
	require.NoError(t, err)

	var keys []int
	for cur.Next() {
		keys = append(keys, cur.Key())
	}
	require.NoError(t, cur.Err())
	require.Equal(t, []int{2, 3, 4, 5}, keys)
}

func TestBRIN_UnloadAllBlocksSkipsDirty(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)
	require.NoError(t, b.Put(ctx, 1, "a"))

	b.UnloadAllBlocks()

	head := b.blockByID(b.headID)
	require.True(t, head.isLoaded(), "dirty block must not be unloaded before checkpoint")
}

func TestBRIN_PruneEmptyBlocks(t *testing.T) {
	ctx := context.Background()
	b := newTestBRIN(t, 2)

	require.NoError(t, b.Put(ctx, 1, "a"))
	require.NoError(t, b.Put(ctx, 2, "b"))
	require.NoError(t, b.Put(ctx, 3, "c"))
	require.Equal(t, 2, b.GetNumBlocks())

	ok, err := b.Delete(ctx, 3, "c", func(x, y string) bool { return x == y })
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, b.GetNumBlocks(), "delete alone does not prune")

	_, _, _, err = b.Checkpoint(ctx, false)
	require.NoError(t, err)

	pruned := b.PruneEmptyBlocks(ctx)
	require.Equal(t, 1, pruned)
	require.Equal(t, 1, b.GetNumBlocks())
}
