// Package treecodec serializes trees for the persistence boundary. The wire
// form is a single container byte naming the format, followed by an
// lzma-compressed CBOR envelope: a node table keyed by position, the root
// pointer, and a preorder identity skeleton referencing the table.
// load(store(tree)) reproduces the root hash and the exact leaf set.
package treecodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/nritschel/merkledoc/pkg/types"
	"github.com/ulikunitz/xz/lzma"
)

// FormatV1 is the only container format so far. Bump when the envelope
// changes incompatibly; unknown versions are rejected as corrupt.
const FormatV1 = 0x01

// ErrCorrupt marks stored bytes that cannot be decoded back into a tree.
var ErrCorrupt = errors.New("corrupt tree record")

type envelope struct {
	DocumentID string       `cbor:"1,keyasint"`
	ShardKey   string       `cbor:"2,keyasint"`
	Root       int          `cbor:"3,keyasint"`
	LeafCount  int          `cbor:"4,keyasint"`
	Nodes      []nodeRecord `cbor:"5,keyasint"`
	Refs       []refRecord  `cbor:"6,keyasint"`
}

type nodeRecord struct {
	Hash      []byte `cbor:"1,keyasint"`
	Kind      uint8  `cbor:"2,keyasint"`
	Type      uint8  `cbor:"3,keyasint"`
	LeafCount int    `cbor:"4,keyasint"`
	// Children is the ordered child hash list, concatenated.
	Children []byte `cbor:"5,keyasint,omitempty"`
}

// refRecord is one identity skeleton entry in preorder. Node indexes into
// the envelope's node table.
type refRecord struct {
	Node       int    `cbor:"1,keyasint"`
	ID         string `cbor:"2,keyasint,omitempty"`
	Pos        int    `cbor:"3,keyasint"`
	ChildCount int    `cbor:"4,keyasint"`
}

// Encode serializes a tree. The node table is emitted in first-visit
// preorder, so identical trees always produce identical bytes.
func Encode(tree *types.Tree) ([]byte, error) {
	if tree == nil || tree.Root == nil {
		return nil, fmt.Errorf("cannot encode empty tree")
	}

	env := envelope{
		DocumentID: tree.DocumentID,
		ShardKey:   tree.ShardKey,
		LeafCount:  tree.LeafCount,
	}
	nodeIndex := make(map[types.Hash]int)

	var flatten func(ref *types.Ref) error
	flatten = func(ref *types.Ref) error {
		idx, ok := nodeIndex[ref.Hash]
		if !ok {
			n, present := tree.Nodes[ref.Hash]
			if !present {
				return fmt.Errorf("tree arena is missing node %s", ref.Hash)
			}
			idx = len(env.Nodes)
			nodeIndex[ref.Hash] = idx
			var children []byte
			if len(n.Children) > 0 {
				children = make([]byte, 0, len(n.Children)*types.HashSize)
				for _, ch := range n.Children {
					children = append(children, ch[:]...)
				}
			}
			env.Nodes = append(env.Nodes, nodeRecord{
				Hash:      ref.Hash.Bytes(),
				Kind:      uint8(n.Kind),
				Type:      uint8(n.Type),
				LeafCount: n.LeafCount,
				Children:  children,
			})
		}
		env.Refs = append(env.Refs, refRecord{
			Node:       idx,
			ID:         string(ref.ID),
			Pos:        ref.Pos,
			ChildCount: len(ref.Children),
		})
		for _, child := range ref.Children {
			if err := flatten(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flatten(tree.Root); err != nil {
		return nil, err
	}
	env.Root = 0

	raw, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding tree envelope: %w", err)
	}
	compressed, err := compressWithLzma(raw)
	if err != nil {
		return nil, fmt.Errorf("compressing tree envelope: %w", err)
	}

	out := make([]byte, 0, len(compressed)+1)
	out = append(out, FormatV1)
	return append(out, compressed...), nil
}

// Decode reverses Encode. Any structural inconsistency in the stored bytes
// is surfaced as ErrCorrupt; a decoded tree is always internally consistent.
func Decode(data []byte) (*types.Tree, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	if data[0] != FormatV1 {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorrupt, data[0])
	}

	raw, err := decompressWithLzma(data[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(env.Nodes) == 0 || len(env.Refs) == 0 {
		return nil, fmt.Errorf("%w: empty node table", ErrCorrupt)
	}

	tree := &types.Tree{
		DocumentID: env.DocumentID,
		ShardKey:   env.ShardKey,
		LeafCount:  env.LeafCount,
		Nodes:      make(map[types.Hash]*types.Node, len(env.Nodes)),
	}

	hashes := make([]types.Hash, len(env.Nodes))
	for i, rec := range env.Nodes {
		var h types.Hash
		if err := h.FromBytes(rec.Hash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		hashes[i] = h
		if len(rec.Children)%types.HashSize != 0 {
			return nil, fmt.Errorf("%w: ragged child hash list", ErrCorrupt)
		}
		var children []types.Hash
		for off := 0; off < len(rec.Children); off += types.HashSize {
			var ch types.Hash
			copy(ch[:], rec.Children[off:off+types.HashSize])
			children = append(children, ch)
		}
		tree.Nodes[h] = &types.Node{
			Kind:      types.NodeKind(rec.Kind),
			Type:      types.BlockType(rec.Type),
			LeafCount: rec.LeafCount,
			Children:  children,
		}
	}

	next := 0
	var rebuild func() (*types.Ref, error)
	rebuild = func() (*types.Ref, error) {
		if next >= len(env.Refs) {
			return nil, fmt.Errorf("%w: ref skeleton shorter than declared", ErrCorrupt)
		}
		rec := env.Refs[next]
		next++
		if rec.Node < 0 || rec.Node >= len(hashes) {
			return nil, fmt.Errorf("%w: node index %d out of range", ErrCorrupt, rec.Node)
		}
		ref := &types.Ref{
			Hash: hashes[rec.Node],
			ID:   types.BlockID(rec.ID),
			Pos:  rec.Pos,
		}
		for i := 0; i < rec.ChildCount; i++ {
			child, err := rebuild()
			if err != nil {
				return nil, err
			}
			ref.Children = append(ref.Children, child)
		}
		return ref, nil
	}
	root, err := rebuild()
	if err != nil {
		return nil, err
	}
	if next != len(env.Refs) {
		return nil, fmt.Errorf("%w: trailing ref records", ErrCorrupt)
	}

	tree.Root = root
	tree.RootHash = root.Hash
	return tree, nil
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
