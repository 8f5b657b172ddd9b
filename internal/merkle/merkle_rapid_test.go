package merkle_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/nritschel/merkledoc/internal/merkle"
	nodecache "github.com/nritschel/merkledoc/internal/nodeCache"
	"github.com/nritschel/merkledoc/pkg/types"
	"pgregory.net/rapid"
)

// Generators

func genDocument(t *rapid.T) *types.Block {
	leafCount := rapid.IntRange(1, 40).Draw(t, "leafCount")
	sectionEvery := rapid.IntRange(0, 5).Draw(t, "sectionEvery")

	root := &types.Block{ID: "doc", Type: types.BlockDocument}
	var current *types.Block
	for i := 0; i < leafCount; i++ {
		if sectionEvery > 0 && i%sectionEvery == 0 {
			current = &types.Block{
				ID:   types.BlockID(fmt.Sprintf("s%d", i)),
				Type: types.BlockSection,
			}
			root.Children = append(root.Children, current)
		}
		l := &types.Block{
			ID:      types.BlockID(fmt.Sprintf("p%d", i)),
			Type:    types.BlockParagraph,
			Content: []byte(rapid.StringN(0, 64, 64).Draw(t, fmt.Sprintf("content%d", i))),
		}
		if l.Content == nil {
			l.Content = []byte{}
		}
		if current != nil {
			current.Children = append(current.Children, l)
		} else {
			root.Children = append(root.Children, l)
		}
	}
	return root
}

func leaves(blk *types.Block) []*types.Block {
	if len(blk.Children) == 0 && !blk.Empty {
		return []*types.Block{blk}
	}
	var out []*types.Block
	for _, c := range blk.Children {
		out = append(out, leaves(c)...)
	}
	return out
}

// Properties

func TestRapid_BuildDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := genDocument(t)
		branch := rapid.IntRange(2, 64).Draw(t, "branch")
		b := merkle.NewBuilder(nil, branch)

		t1, err := b.Build(context.Background(), "d", input)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		t2, err := b.Build(context.Background(), "d", input)
		if err != nil {
			t.Fatalf("rebuild failed: %v", err)
		}
		if t1.RootHash != t2.RootHash {
			t.Fatalf("rebuild changed root hash: %s != %s", t1.RootHash, t2.RootHash)
		}
	})
}

func TestRapid_DiffOfIdenticalBuildsIsClean(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := genDocument(t)
		cache := nodecache.New(256)
		b := merkle.NewBuilder(cache, rapid.IntRange(2, 32).Draw(t, "branch"))

		t1, err := b.Build(context.Background(), "d", input)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		t2, err := b.Build(context.Background(), "d", input)
		if err != nil {
			t.Fatalf("rebuild failed: %v", err)
		}

		res, err := merkle.Diff(context.Background(), t1, t2)
		if err != nil {
			t.Fatalf("diff failed: %v", err)
		}
		if !res.Clean() || len(res.Moved) != 0 {
			t.Fatalf("identical builds diffed dirty: %+v", res)
		}
		if res.Unchanged != t1.LeafCount {
			t.Fatalf("unchanged = %d, want leaf count %d", res.Unchanged, t1.LeafCount)
		}
	})
}

func TestRapid_SingleEditIsLocal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prevDoc := genDocument(t)

		// Rebuild the same structure, then rewrite exactly one leaf with
		// content no generated document produces.
		copied := cloneBlock(prevDoc)
		ls := leaves(copied)
		victim := ls[rapid.IntRange(0, len(ls)-1).Draw(t, "victim")]
		victim.Content = []byte("!! rewritten out of band !!")

		b := merkle.NewBuilder(nil, rapid.IntRange(2, 32).Draw(t, "branch"))
		prev, err := b.Build(context.Background(), "d", prevDoc)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		curr, err := b.Build(context.Background(), "d", copied)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		res, err := merkle.Diff(context.Background(), prev, curr)
		if err != nil {
			t.Fatalf("diff failed: %v", err)
		}
		if len(res.Added) != 0 || len(res.Removed) != 0 {
			t.Fatalf("single edit produced adds/removes: %+v", res)
		}
		if _, ok := res.Changed[victim.ID]; !ok || len(res.Changed) != 1 {
			t.Fatalf("changed = %v, want exactly {%s}", res.Changed, victim.ID)
		}
		if res.Unchanged != prev.LeafCount-1 {
			t.Fatalf("unchanged = %d, want %d", res.Unchanged, prev.LeafCount-1)
		}
	})
}

func cloneBlock(blk *types.Block) *types.Block {
	c := &types.Block{
		ID:    blk.ID,
		Type:  blk.Type,
		Empty: blk.Empty,
	}
	if blk.Content != nil {
		c.Content = make([]byte, len(blk.Content))
		copy(c.Content, blk.Content)
	}
	for _, child := range blk.Children {
		c.Children = append(c.Children, cloneBlock(child))
	}
	return c
}
