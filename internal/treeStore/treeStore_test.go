package treestore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/nritschel/merkledoc/internal/merkle"
	treestore "github.com/nritschel/merkledoc/internal/treeStore"
	"github.com/nritschel/merkledoc/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *treestore.TreeStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store, err := treestore.NewTreeStore(treestore.StoreConfig{
		Path:   t.TempDir(),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func buildTree(t *testing.T, documentID string, paragraphs int) *types.Tree {
	t.Helper()
	root := &types.Block{ID: "doc", Type: types.BlockDocument}
	for i := 0; i < paragraphs; i++ {
		root.Children = append(root.Children, &types.Block{
			ID:      types.BlockID(fmt.Sprintf("p%d", i)),
			Type:    types.BlockParagraph,
			Content: []byte(fmt.Sprintf("paragraph %d", i)),
		})
	}
	tree, err := merkle.NewBuilder(nil, 0).Build(context.Background(), documentID, root)
	require.NoError(t, err)
	return tree
}

func TestRejectsMissingPath(t *testing.T) {
	_, err := treestore.NewTreeStore(treestore.StoreConfig{})
	assert.Error(t, err)
}

func TestStoreAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tree := buildTree(t, "note-1", 8)

	require.NoError(t, store.Store(ctx, tree))

	got, err := store.Load(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, tree.RootHash, got.RootHash)
	assert.Equal(t, tree.ShardKey, got.ShardKey)
	assert.ElementsMatch(t, tree.LeafIDs(), got.LeafIDs())
}

func TestLoadUnknownDocument(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "never-stored")
	assert.ErrorIs(t, err, types.ErrTreeNotFound)
}

func TestStoreReplacesPriorVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, buildTree(t, "note-1", 3)))
	updated := buildTree(t, "note-1", 5)
	require.NoError(t, store.Store(ctx, updated))

	got, err := store.Load(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, updated.RootHash, got.RootHash)
	assert.Equal(t, 5, got.LeafCount)
}

func TestDocumentsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := buildTree(t, "note-a", 4)
	b := buildTree(t, "note-b", 6)
	require.NoError(t, store.Store(ctx, a))
	require.NoError(t, store.Store(ctx, b))

	gotA, err := store.Load(ctx, "note-a")
	require.NoError(t, err)
	gotB, err := store.Load(ctx, "note-b")
	require.NoError(t, err)
	assert.Equal(t, a.RootHash, gotA.RootHash)
	assert.Equal(t, b.RootHash, gotB.RootHash)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, buildTree(t, "note-1", 3)))
	require.NoError(t, store.Delete(ctx, "note-1"))

	_, err := store.Load(ctx, "note-1")
	assert.ErrorIs(t, err, types.ErrTreeNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, "note-1"))
}

func TestCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, buildTree(t, "note-1", 2)))
	_, _ = store.Load(ctx, "note-1")
	_, _ = store.Load(ctx, "missing")

	reads, writes := store.Counters()
	assert.Equal(t, uint64(2), reads)
	assert.Equal(t, uint64(1), writes)
}

func TestHonorsCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx, "note-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Store(ctx, buildTree(t, "note-1", 2)), context.Canceled)
	assert.ErrorIs(t, store.Delete(ctx, "note-1"), context.Canceled)
}
