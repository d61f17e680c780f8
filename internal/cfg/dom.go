package cfg

// DomTree is the immediate-dominator tree of one body, computed over
// reachable blocks only.
type DomTree struct {
	body *Body

	// Idom maps each reachable block to its immediate dominator; the entry
	// block dominates itself.
	Idom map[BlockId]BlockId

	rpoIndex map[BlockId]int
}

// Dominators computes the dominator tree using the iterative algorithm over
// reverse post-order: DFS postorder from entry restricted to reachable
// blocks, reversed to RPO, then fixpoint iteration folding each block's
// defined predecessors with the two-pointer intersect.
func Dominators(b *Body) *DomTree {
	post := postorder(b)

	rpo := make([]BlockId, len(post))
	for i, id := range post {
		rpo[len(post)-1-i] = id
	}
	rpoIndex := make(map[BlockId]int, len(rpo))
	for i, id := range rpo {
		rpoIndex[id] = i
	}

	idom := make(map[BlockId]BlockId, len(rpo))
	idom[b.Entry] = b.Entry

	preds := b.Predecessors()

	changed := true
	for changed {
		changed = false
		for _, blk := range rpo {
			if blk == b.Entry {
				continue
			}
			newIdom := NoBlock
			for _, p := range preds[blk] {
				if _, defined := idom[p]; !defined {
					continue
				}
				if newIdom == NoBlock {
					newIdom = p
					continue
				}
				newIdom = intersect(p, newIdom, idom, rpoIndex)
			}
			if newIdom == NoBlock {
				continue
			}
			if old, ok := idom[blk]; !ok || old != newIdom {
				idom[blk] = newIdom
				changed = true
			}
		}
	}

	return &DomTree{body: b, Idom: idom, rpoIndex: rpoIndex}
}

// postorder returns the DFS postorder of reachable blocks from entry.
func postorder(b *Body) []BlockId {
	var order []BlockId
	seen := make(map[BlockId]bool)

	var visit func(id BlockId)
	visit = func(id BlockId) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, s := range b.Blocks[id].Term.Successors() {
			visit(s)
		}
		order = append(order, id)
	}
	visit(b.Entry)
	return order
}

// intersect walks both pointers up the idom chain until they meet.
func intersect(b1, b2 BlockId, idom map[BlockId]BlockId, rpoIndex map[BlockId]int) BlockId {
	for b1 != b2 {
		for rpoIndex[b1] > rpoIndex[b2] {
			b1 = idom[b1]
		}
		for rpoIndex[b2] > rpoIndex[b1] {
			b2 = idom[b2]
		}
	}
	return b1
}

// Dominates reports whether a dominates b: it walks b's idom chain until it
// hits a or a self-dominated root.
func (d *DomTree) Dominates(a, b BlockId) bool {
	for {
		if a == b {
			return true
		}
		parent, ok := d.Idom[b]
		if !ok || parent == b {
			return false
		}
		b = parent
	}
}

// BackEdge is an edge (From, To) whose destination dominates its source.
type BackEdge struct {
	From BlockId
	To   BlockId
}

// BackEdges returns every back edge of the body under dom, in block order.
func BackEdges(b *Body, dom *DomTree) []BackEdge {
	reachable := b.ReachableBlocks()
	var edges []BackEdge
	for _, blk := range b.Blocks {
		if !reachable[blk.Id] {
			continue
		}
		for _, s := range blk.Term.Successors() {
			if dom.Dominates(s, blk.Id) {
				edges = append(edges, BackEdge{From: blk.Id, To: s})
			}
		}
	}
	return edges
}

// NaturalLoop returns the natural loop of the back edge (back, header): the
// set containing header and back, closed under predecessors of members
// other than the header.
func NaturalLoop(b *Body, header, back BlockId) map[BlockId]bool {
	loop := map[BlockId]bool{header: true}
	preds := b.Predecessors()

	stack := []BlockId{back}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if loop[id] {
			continue
		}
		loop[id] = true
		for _, p := range preds[id] {
			if !loop[p] {
				stack = append(stack, p)
			}
		}
	}
	return loop
}
