package merkle

import (
	"github.com/nritschel/merkledoc/internal/hashtree"
	"github.com/nritschel/merkledoc/pkg/types"
)

// virtualize bounds a node's fan-out. Child lists at or under the branch
// factor pass through untouched. Longer lists are partitioned into contiguous
// groups of at most branch children, one synthetic node per group, repeated
// until the list fits. Partition boundaries depend only on list length and
// the branch factor, never on content, so an unchanged child list always
// reproduces identical group hashes.
func (s *buildState) virtualize(hashes []types.Hash, refs []*types.Ref) ([]types.Hash, []*types.Ref, error) {
	branch := s.builder.branch

	for len(hashes) > branch {
		groupCount := (len(hashes) + branch - 1) / branch
		groupedHashes := make([]types.Hash, 0, groupCount)
		groupedRefs := make([]*types.Ref, 0, groupCount)

		for start := 0; start < len(hashes); start += branch {
			if err := s.checkDeadline(); err != nil {
				return nil, nil, err
			}
			end := start + branch
			if end > len(hashes) {
				end = len(hashes)
			}
			group := hashes[start:end]

			gh := hashtree.Combine(group)
			s.intern(gh, func() *types.Node {
				return &types.Node{
					Kind:      types.KindVirtual,
					Children:  append([]types.Hash(nil), group...),
					LeafCount: s.sumLeaves(group),
				}
			})
			groupedHashes = append(groupedHashes, gh)
			groupedRefs = append(groupedRefs, &types.Ref{
				Hash:     gh,
				Pos:      start / branch,
				Children: refs[start:end],
			})
		}
		hashes, refs = groupedHashes, groupedRefs
	}
	return hashes, refs, nil
}
