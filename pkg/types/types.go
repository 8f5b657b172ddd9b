package types

import (
	"context"
	"errors"
)

// ErrTreeNotFound is returned by TreeStore.Load when no tree has been
// persisted yet for a document identity.
var ErrTreeNotFound = errors.New("no tree persisted for document")

// Block is the parser's view of a document unit. A Block is either a leaf
// (Content set, no Children) or a container (Children set, or Empty marked
// explicitly). Containers carry no content of their own; parsers emit heading
// text and similar as leaf children.
type Block struct {
	ID       BlockID
	Type     BlockType
	Content  []byte
	Children []*Block
	// Empty marks a container that legitimately has no children, so the
	// builder can tell it apart from malformed input.
	Empty bool
}

// Node is the materialized, content-addressed form of a tree node. Nodes are
// immutable once built and carry no document identity, which is what allows
// them to be shared between trees through the node cache.
type Node struct {
	Kind      NodeKind
	Type      BlockType // leaves only
	Children  []Hash    // internal and virtual nodes only, in document order
	LeafCount int
}

// Ref is the per-tree identity overlay. The arena of Nodes is content
// addressed and shared; Refs pin down which BlockID sits where in this
// particular document version. Virtual nodes have an empty ID.
type Ref struct {
	Hash     Hash
	ID       BlockID
	Pos      int // position among model-visible siblings
	Children []*Ref
}

// Tree is one built version of a document. Nodes form a DAG keyed by hash
// (identical subtrees collapse into one entry); Root is the identity skeleton
// over that arena.
type Tree struct {
	DocumentID string
	ShardKey   string
	RootHash   Hash
	LeafCount  int
	Nodes      map[Hash]*Node
	Root       *Ref
}

// NodeCount reports the number of distinct nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.Nodes)
}

// Node returns the materialized node for a hash, if present in this tree.
func (t *Tree) Node(h Hash) (*Node, bool) {
	n, ok := t.Nodes[h]
	return n, ok
}

// LeafIDs returns the BlockIDs of all real leaves in document order.
func (t *Tree) LeafIDs() []BlockID {
	var ids []BlockID
	var walk func(r *Ref)
	walk = func(r *Ref) {
		n := t.Nodes[r.Hash]
		if n != nil && n.Kind == KindLeaf {
			ids = append(ids, r.ID)
			return
		}
		for _, c := range r.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	return ids
}

// TreeStats summarizes a tree's shape for inspection tooling.
type TreeStats struct {
	Leaves   int
	Internal int
	Virtual  int
	Depth    int
}

// Stats counts the distinct nodes in the arena by kind and measures the
// depth of the identity skeleton.
func (t *Tree) Stats() TreeStats {
	var s TreeStats
	for _, n := range t.Nodes {
		switch n.Kind {
		case KindLeaf:
			s.Leaves++
		case KindInternal:
			s.Internal++
		case KindVirtual:
			s.Virtual++
		}
	}
	var depth func(r *Ref) int
	depth = func(r *Ref) int {
		deepest := 0
		for _, c := range r.Children {
			if d := depth(c); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	}
	if t.Root != nil {
		s.Depth = depth(t.Root)
	}
	return s
}

// Move records a block whose position among siblings changed while its
// content did not. Pure reordering is not a content change; downstream
// consumers can ignore it or act on it.
type Move struct {
	ID   BlockID
	From int
	To   int
}

// DiffResult names the minimal set of blocks that need reprocessing after a
// document changed.
type DiffResult struct {
	Changed   map[BlockID]struct{}
	Added     map[BlockID]struct{}
	Removed   map[BlockID]struct{}
	Moved     []Move
	Unchanged int
}

func NewDiffResult() *DiffResult {
	return &DiffResult{
		Changed: make(map[BlockID]struct{}),
		Added:   make(map[BlockID]struct{}),
		Removed: make(map[BlockID]struct{}),
	}
}

// Clean reports whether no block content changed. Moves do not count; a pure
// reorder is clean.
func (d *DiffResult) Clean() bool {
	return len(d.Changed) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}

// TreeStore is the persistence boundary. Implementations may block on I/O;
// callers must not hold cache locks across these calls.
type TreeStore interface {
	// Load returns the most recently persisted tree for a document, or
	// ErrTreeNotFound on the first pass.
	Load(ctx context.Context, documentID string) (*Tree, error)
	Store(ctx context.Context, tree *Tree) error
	Delete(ctx context.Context, documentID string) error
}
