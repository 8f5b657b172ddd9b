package merkle

import (
	"context"
	"fmt"
	"sort"

	"github.com/nritschel/merkledoc/pkg/types"
)

// Diff compares a newly built tree against the previously persisted one for
// the same document and names the blocks that changed. A nil previous tree is
// the first pass: every leaf is added. Matching subtree hashes are skipped
// without descending, so the cost scales with the number of changed regions,
// not with document size.
//
// Children are matched by BlockID first, so a reorder without a content edit
// is reported as a move, never as a change. Virtual grouping nodes are
// transparent: the result is the same regardless of the branch factor either
// tree was built with.
func Diff(ctx context.Context, prev, curr *types.Tree) (*types.DiffResult, error) {
	if curr == nil {
		return nil, fmt.Errorf("diff requires a current tree")
	}

	res := types.NewDiffResult()
	if prev == nil {
		for _, id := range curr.LeafIDs() {
			res.Added[id] = struct{}{}
		}
		return res, nil
	}

	// Untouched document, the dominant fast path.
	if prev.RootHash == curr.RootHash {
		res.Unchanged = prev.LeafCount
		return res, nil
	}

	w := &walker{
		ctx:      ctx,
		prev:     prev,
		curr:     curr,
		res:      res,
		prevPool: make(map[types.BlockID]leafInfo),
		currPool: make(map[types.BlockID]leafInfo),
	}
	if err := w.walk(prev.Root, curr.Root); err != nil {
		return nil, err
	}
	w.reconcile()

	sort.Slice(res.Moved, func(i, j int) bool { return res.Moved[i].ID < res.Moved[j].ID })
	return res, nil
}

type leafInfo struct {
	hash types.Hash
	pos  int
}

type walker struct {
	ctx   context.Context
	prev  *types.Tree
	curr  *types.Tree
	res   *types.DiffResult
	steps int

	// Leaves from subtrees that could not be paired structurally. They are
	// reconciled by BlockID at the end, which is what keeps identity stable:
	// a surviving id is never reported as both added and removed.
	prevPool map[types.BlockID]leafInfo
	currPool map[types.BlockID]leafInfo
}

func (w *walker) checkDeadline() error {
	w.steps++
	if w.steps%deadlineCheckInterval != 0 {
		return nil
	}
	if err := w.ctx.Err(); err != nil {
		return fmt.Errorf("diff aborted: %w", err)
	}
	return nil
}

func (w *walker) walk(p, c *types.Ref) error {
	if err := w.checkDeadline(); err != nil {
		return err
	}

	if p.Hash == c.Hash {
		w.res.Unchanged += w.leafCount(w.prev, p)
		return nil
	}

	pn, ok := w.prev.Nodes[p.Hash]
	if !ok {
		return fmt.Errorf("previous tree arena is missing node %s", p.Hash)
	}
	cn, ok := w.curr.Nodes[c.Hash]
	if !ok {
		return fmt.Errorf("current tree arena is missing node %s", c.Hash)
	}

	if pn.Kind == types.KindLeaf || cn.Kind == types.KindLeaf {
		if pn.Kind == types.KindLeaf && cn.Kind == types.KindLeaf && p.ID != "" && p.ID == c.ID {
			w.res.Changed[p.ID] = struct{}{}
			return nil
		}
		// A leaf turned into a container or vice versa; settle by identity.
		w.collect(w.prev, p, w.prevPool)
		w.collect(w.curr, c, w.currPool)
		return nil
	}

	pcs, ccs := p.Children, c.Children
	matchedP := make([]bool, len(pcs))
	usedC := make([]bool, len(ccs))

	ccByID := make(map[types.BlockID]int, len(ccs))
	for j, cc := range ccs {
		if cc.ID != "" {
			ccByID[cc.ID] = j
		}
	}

	// Same identity, same content: the whole subtree is unchanged, possibly
	// relocated among its siblings.
	for i, pc := range pcs {
		if pc.ID == "" {
			continue
		}
		j, ok := ccByID[pc.ID]
		if !ok || usedC[j] {
			continue
		}
		cc := ccs[j]
		if cc.Hash != pc.Hash {
			continue
		}
		matchedP[i], usedC[j] = true, true
		w.res.Unchanged += w.leafCount(w.prev, pc)
		if cc.Pos != pc.Pos {
			w.res.Moved = append(w.res.Moved, types.Move{ID: pc.ID, From: pc.Pos, To: cc.Pos})
		}
	}

	// Unchanged virtual groups carry no identity and are matched by hash.
	byHash := make(map[types.Hash][]int)
	for j, cc := range ccs {
		if !usedC[j] && cc.ID == "" {
			byHash[cc.Hash] = append(byHash[cc.Hash], j)
		}
	}
	for i, pc := range pcs {
		if matchedP[i] || pc.ID != "" {
			continue
		}
		js := byHash[pc.Hash]
		if len(js) == 0 {
			continue
		}
		byHash[pc.Hash] = js[1:]
		matchedP[i], usedC[js[0]] = true, true
		w.res.Unchanged += w.leafCount(w.prev, pc)
	}

	// Same identity, different content: descend.
	for i, pc := range pcs {
		if matchedP[i] || pc.ID == "" {
			continue
		}
		j, ok := ccByID[pc.ID]
		if !ok || usedC[j] {
			continue
		}
		matchedP[i], usedC[j] = true, true
		if err := w.walk(pc, ccs[j]); err != nil {
			return err
		}
	}

	// Changed virtual groups: grouping is index-stable, so pairing leftovers
	// in order keeps the short-circuit alive one level down. Pairing "wrong"
	// groups after an insert shifted the boundaries is safe; everything
	// inside is still matched by identity or pooled.
	var pLeft, cLeft []int
	for i := range pcs {
		if !matchedP[i] && pcs[i].ID == "" {
			pLeft = append(pLeft, i)
		}
	}
	for j := range ccs {
		if !usedC[j] && ccs[j].ID == "" {
			cLeft = append(cLeft, j)
		}
	}
	for k := 0; k < len(pLeft) && k < len(cLeft); k++ {
		matchedP[pLeft[k]], usedC[cLeft[k]] = true, true
		if err := w.walk(pcs[pLeft[k]], ccs[cLeft[k]]); err != nil {
			return err
		}
	}

	for i, pc := range pcs {
		if !matchedP[i] {
			if err := w.collect(w.prev, pc, w.prevPool); err != nil {
				return err
			}
		}
	}
	for j, cc := range ccs {
		if !usedC[j] {
			if err := w.collect(w.curr, cc, w.currPool); err != nil {
				return err
			}
		}
	}
	return nil
}

// collect gathers every real leaf under ref into a reconciliation pool.
func (w *walker) collect(t *types.Tree, ref *types.Ref, pool map[types.BlockID]leafInfo) error {
	if err := w.checkDeadline(); err != nil {
		return err
	}
	if n, ok := t.Nodes[ref.Hash]; ok && n.Kind == types.KindLeaf {
		if ref.ID != "" {
			pool[ref.ID] = leafInfo{hash: ref.Hash, pos: ref.Pos}
		}
		return nil
	}
	for _, child := range ref.Children {
		if err := w.collect(t, child, pool); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) reconcile() {
	for id, pl := range w.prevPool {
		cl, ok := w.currPool[id]
		if !ok {
			w.res.Removed[id] = struct{}{}
			continue
		}
		delete(w.currPool, id)
		if cl.hash != pl.hash {
			w.res.Changed[id] = struct{}{}
			continue
		}
		w.res.Unchanged++
		if cl.pos != pl.pos {
			w.res.Moved = append(w.res.Moved, types.Move{ID: id, From: pl.pos, To: cl.pos})
		}
	}
	for id := range w.currPool {
		w.res.Added[id] = struct{}{}
	}
}

func (w *walker) leafCount(t *types.Tree, ref *types.Ref) int {
	if n, ok := t.Nodes[ref.Hash]; ok {
		return n.LeafCount
	}
	return 0
}
