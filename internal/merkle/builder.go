// Package merkle builds hash trees over parsed block hierarchies and diffs
// successive versions of them. The expensive work is hashing; everything here
// is synchronous, CPU-bound and free of I/O.
package merkle

import (
	"context"
	"fmt"

	"github.com/nritschel/merkledoc/internal/hashtree"
	nodecache "github.com/nritschel/merkledoc/internal/nodeCache"
	"github.com/nritschel/merkledoc/pkg/types"
)

// DefaultBranchFactor bounds the number of model-visible children per node
// before synthetic grouping kicks in.
const DefaultBranchFactor = 100

// deadlineCheckInterval is the number of processed blocks between
// context checks during a build or diff.
const deadlineCheckInterval = 256

// MalformedInputError rejects a block hierarchy the builder cannot give
// defined semantics to. The document must be repaired at the parser level;
// it is never coerced into a tree.
type MalformedInputError struct {
	ID     types.BlockID
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed block hierarchy: %s", e.Reason)
	}
	return fmt.Sprintf("malformed block %q: %s", e.ID, e.Reason)
}

// Builder turns parser output into trees. The cache is shared between
// builders and purely an optimization; a nil cache is valid.
type Builder struct {
	cache  *nodecache.NodeCache
	branch int
}

func NewBuilder(cache *nodecache.NodeCache, branchFactor int) *Builder {
	if branchFactor < 2 {
		branchFactor = DefaultBranchFactor
	}
	return &Builder{cache: cache, branch: branchFactor}
}

// Build hashes the block hierarchy bottom-up into a Tree. The input is
// validated in full before any hashing occurs. The context deadline is
// honored cooperatively; an aborted build leaves no partial state behind.
func (b *Builder) Build(ctx context.Context, documentID string, root *types.Block) (*types.Tree, error) {
	if root == nil {
		return nil, &MalformedInputError{Reason: "nil root block"}
	}
	if err := validate(root); err != nil {
		return nil, err
	}

	tree := &types.Tree{
		DocumentID: documentID,
		ShardKey:   types.ShardKeyFor(documentID),
		Nodes:      make(map[types.Hash]*types.Node),
	}
	st := &buildState{ctx: ctx, builder: b, tree: tree}

	ref, err := st.buildBlock(root, 0)
	if err != nil {
		return nil, err
	}
	tree.Root = ref
	tree.RootHash = ref.Hash
	tree.LeafCount = tree.Nodes[ref.Hash].LeafCount
	return tree, nil
}

type buildState struct {
	ctx     context.Context
	builder *Builder
	tree    *types.Tree
	steps   int
}

func (s *buildState) checkDeadline() error {
	s.steps++
	if s.steps%deadlineCheckInterval != 0 {
		return nil
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("build aborted: %w", err)
	}
	return nil
}

func (s *buildState) buildBlock(blk *types.Block, pos int) (*types.Ref, error) {
	if err := s.checkDeadline(); err != nil {
		return nil, err
	}

	// Leaf: a real content block.
	if len(blk.Children) == 0 && !blk.Empty {
		h := hashtree.LeafHash(blk.Type, blk.Content)
		s.intern(h, func() *types.Node {
			return &types.Node{Kind: types.KindLeaf, Type: blk.Type, LeafCount: 1}
		})
		return &types.Ref{Hash: h, ID: blk.ID, Pos: pos}, nil
	}

	// Container: hash children in declared order, group if over the branch
	// factor, then combine.
	hashes := make([]types.Hash, 0, len(blk.Children))
	refs := make([]*types.Ref, 0, len(blk.Children))
	for i, child := range blk.Children {
		ref, err := s.buildBlock(child, i)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, ref.Hash)
		refs = append(refs, ref)
	}

	hashes, refs, err := s.virtualize(hashes, refs)
	if err != nil {
		return nil, err
	}

	h := hashtree.Combine(hashes)
	s.intern(h, func() *types.Node {
		return &types.Node{
			Kind:      types.KindInternal,
			Children:  append([]types.Hash(nil), hashes...),
			LeafCount: s.sumLeaves(hashes),
		}
	})
	return &types.Ref{Hash: h, ID: blk.ID, Pos: pos, Children: refs}, nil
}

// intern places the node for h into the tree arena, reusing an existing
// materialization from this tree or the shared cache when one exists. The
// constructor only runs on a full miss.
func (s *buildState) intern(h types.Hash, make func() *types.Node) *types.Node {
	if n, ok := s.tree.Nodes[h]; ok {
		return n
	}
	if s.builder.cache != nil {
		if n, ok := s.builder.cache.Get(h); ok {
			s.tree.Nodes[h] = n
			return n
		}
	}
	n := make()
	if s.builder.cache != nil {
		// On a racing insert the cache keeps the first writer's node; adopt
		// whichever one it holds so all trees share the same materialization.
		n = s.builder.cache.Add(h, n)
	}
	s.tree.Nodes[h] = n
	return n
}

func (s *buildState) sumLeaves(hashes []types.Hash) int {
	total := 0
	for _, h := range hashes {
		total += s.tree.Nodes[h].LeafCount
	}
	return total
}

// validate walks the hierarchy before any hashing happens. It rejects
// missing or duplicate BlockIDs, containers with zero children that are not
// marked empty, containers carrying their own content, and cycles.
func validate(root *types.Block) error {
	seen := make(map[*types.Block]struct{})
	ids := make(map[types.BlockID]struct{})

	var walk func(blk *types.Block) error
	walk = func(blk *types.Block) error {
		if blk == nil {
			return &MalformedInputError{Reason: "nil block in hierarchy"}
		}
		if _, dup := seen[blk]; dup {
			return &MalformedInputError{ID: blk.ID, Reason: "cyclic parent/child reference"}
		}
		seen[blk] = struct{}{}

		if blk.ID == "" {
			return &MalformedInputError{Reason: "missing block id"}
		}
		if _, dup := ids[blk.ID]; dup {
			return &MalformedInputError{ID: blk.ID, Reason: "duplicate block id"}
		}
		ids[blk.ID] = struct{}{}

		if len(blk.Children) == 0 {
			if blk.Empty && blk.Content != nil {
				return &MalformedInputError{ID: blk.ID, Reason: "empty container with content"}
			}
			if !blk.Empty && blk.Content == nil {
				return &MalformedInputError{ID: blk.ID, Reason: "zero children but not marked empty"}
			}
			return nil
		}

		if blk.Empty {
			return &MalformedInputError{ID: blk.ID, Reason: "marked empty but has children"}
		}
		if blk.Content != nil {
			return &MalformedInputError{ID: blk.ID, Reason: "container carries content; parsers emit container text as a leaf child"}
		}
		for _, child := range blk.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}
