package treecodec_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/nritschel/merkledoc/internal/merkle"
	treecodec "github.com/nritschel/merkledoc/internal/treeCodec"
	"github.com/nritschel/merkledoc/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, branch int) *types.Tree {
	t.Helper()
	root := &types.Block{ID: "doc", Type: types.BlockDocument}
	for s := 0; s < 4; s++ {
		sec := &types.Block{ID: types.BlockID(fmt.Sprintf("s%d", s)), Type: types.BlockSection}
		for p := 0; p < 12; p++ {
			sec.Children = append(sec.Children, &types.Block{
				ID:      types.BlockID(fmt.Sprintf("s%d-p%d", s, p)),
				Type:    types.BlockParagraph,
				Content: []byte(fmt.Sprintf("paragraph %d.%d", s, p)),
			})
		}
		root.Children = append(root.Children, sec)
	}
	tree, err := merkle.NewBuilder(nil, branch).Build(context.Background(), "doc-1", root)
	require.NoError(t, err)
	return tree
}

func TestRoundTripPreservesTree(t *testing.T) {
	tree := buildTree(t, 0)

	data, err := treecodec.Encode(tree)
	require.NoError(t, err)
	assert.Equal(t, byte(treecodec.FormatV1), data[0])

	got, err := treecodec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, tree.DocumentID, got.DocumentID)
	assert.Equal(t, tree.ShardKey, got.ShardKey)
	assert.Equal(t, tree.RootHash, got.RootHash)
	assert.Equal(t, tree.LeafCount, got.LeafCount)
	assert.Equal(t, tree.NodeCount(), got.NodeCount())
	assert.ElementsMatch(t, tree.LeafIDs(), got.LeafIDs())
}

func TestRoundTripWithVirtualization(t *testing.T) {
	tree := buildTree(t, 5)

	data, err := treecodec.Encode(tree)
	require.NoError(t, err)
	got, err := treecodec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, tree.RootHash, got.RootHash)
	assert.ElementsMatch(t, tree.LeafIDs(), got.LeafIDs())

	// A decoded tree must diff clean against the live one.
	res, err := merkle.Diff(context.Background(), got, tree)
	require.NoError(t, err)
	assert.True(t, res.Clean())
	assert.Equal(t, tree.LeafCount, res.Unchanged)
}

func TestEncodeDeterministic(t *testing.T) {
	tree := buildTree(t, 5)

	a, err := treecodec.Encode(tree)
	require.NoError(t, err)
	b, err := treecodec.Encode(tree)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeRejectsEmptyTree(t *testing.T) {
	_, err := treecodec.Encode(nil)
	assert.Error(t, err)
	_, err = treecodec.Encode(&types.Tree{DocumentID: "d"})
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	tree := buildTree(t, 0)
	valid, err := treecodec.Encode(tree)
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":           {},
		"single byte":     {treecodec.FormatV1},
		"unknown version": append([]byte{0x7f}, valid[1:]...),
		"garbage payload": {treecodec.FormatV1, 0xde, 0xad, 0xbe, 0xef},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := treecodec.Decode(data)
			assert.ErrorIs(t, err, treecodec.ErrCorrupt)
		})
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	tree := buildTree(t, 0)
	valid, err := treecodec.Encode(tree)
	require.NoError(t, err)

	_, err = treecodec.Decode(valid[:len(valid)/2])
	assert.ErrorIs(t, err, treecodec.ErrCorrupt)
}
