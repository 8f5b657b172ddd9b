// Package hashtree computes the content digests the tree is built from.
// All functions are pure and safe for concurrent use; nothing here holds
// state.
package hashtree

import (
	"github.com/nritschel/merkledoc/pkg/types"
	"lukechampine.com/blake3"
)

// Domain separation prefixes. A leaf digest and an internal digest over the
// same bytes must never collide.
const (
	leafPrefix     = 0x00
	internalPrefix = 0x01
)

// LeafHash digests a leaf block's raw content together with its block type.
// Position and sibling context deliberately do not feed the digest: moving a
// block without editing it keeps its hash.
func LeafHash(blockType types.BlockType, content []byte) types.Hash {
	h := blake3.New(types.HashSize, nil)
	h.Write([]byte{leafPrefix, byte(blockType)})
	h.Write(content)
	return digest(h)
}

// Combine digests an ordered list of child hashes into a parent hash. The
// order is significant; swapping two children changes the result.
// Combine(nil) yields the fixed sentinel for an empty container.
func Combine(children []types.Hash) types.Hash {
	h := blake3.New(types.HashSize, nil)
	h.Write([]byte{internalPrefix})
	for _, c := range children {
		h.Write(c[:])
	}
	return digest(h)
}

// EmptyHash is the reserved digest of a container with no children.
func EmptyHash() types.Hash {
	return Combine(nil)
}

func digest(h *blake3.Hasher) types.Hash {
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
