package types

import (
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashSize is the size of a node hash in bytes.
const HashSize = 16

// Hash is a truncated BLAKE3 digest identifying a node by content.
// Two nodes with equal hashes are treated as identical subtrees.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h *Hash) FromBytes(b []byte) error {
	if len(b) != HashSize {
		return fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// BlockID is the parser-assigned identifier of a source block. It is stable
// across re-parses of an edited document, which is what lets a diff name the
// block that changed instead of just detecting that something did.
type BlockID string

func (id BlockID) Bytes() []byte {
	return []byte(id)
}

// BlockType discriminates the structural kind of a source block. It feeds the
// leaf hash so that e.g. a heading and a paragraph with identical text do not
// collide.
type BlockType uint8

const (
	BlockUnknown BlockType = iota
	BlockDocument
	BlockSection
	BlockHeading
	BlockParagraph
	BlockList
	BlockListItem
	BlockCodeFence
	BlockQuote
	BlockTable
)

func (b BlockType) String() string {
	switch b {
	case BlockDocument:
		return "Document"
	case BlockSection:
		return "Section"
	case BlockHeading:
		return "Heading"
	case BlockParagraph:
		return "Paragraph"
	case BlockList:
		return "List"
	case BlockListItem:
		return "ListItem"
	case BlockCodeFence:
		return "CodeFence"
	case BlockQuote:
		return "Quote"
	case BlockTable:
		return "Table"
	}
	return "Unknown"
}

func (b BlockType) Bytes() []byte {
	return []byte{byte(b)}
}

// NodeKind discriminates materialized tree nodes.
type NodeKind uint8

const (
	KindLeaf NodeKind = iota
	KindInternal
	// KindVirtual marks synthetic grouping nodes that bound fan-out. They
	// carry no document identity and are invisible to diff consumers.
	KindVirtual
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "Leaf"
	case KindInternal:
		return "Internal"
	case KindVirtual:
		return "Virtual"
	}
	return "Unknown"
}

// ShardKeyFor derives the storage bucket for a document identity. The mapping
// is pure, so a lookup never needs a scan across buckets.
func ShardKeyFor(documentID string) string {
	sum := xxhash.Sum64String(documentID)
	return fmt.Sprintf("%02x", byte(sum))
}
