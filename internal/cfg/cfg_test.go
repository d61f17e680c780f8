package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

func buildSrc(t *testing.T, src string) *Collection {
	t.Helper()
	return Build(syntax.Parse([]byte(src)))
}

// requireWellFormed asserts the no-Unset-terminator invariant and that every
// reachable block can reach an exit.
func requireWellFormed(t *testing.T, body *Body) {
	t.Helper()
	for _, blk := range body.Blocks {
		require.NotEqual(t, TermUnset, blk.Term.Kind, "bb%d has an unset terminator", blk.Id)
	}

	// Every reachable block must have a path to exit or error_exit.
	reachable := body.ReachableBlocks()
	canExit := map[BlockId]bool{body.Exit: true, body.ErrorExit: true}
	for changed := true; changed; {
		changed = false
		for _, blk := range body.Blocks {
			if canExit[blk.Id] {
				continue
			}
			for _, s := range blk.Term.Successors() {
				if canExit[s] {
					canExit[blk.Id] = true
					changed = true
					break
				}
			}
		}
	}
	for id := range reachable {
		assert.True(t, canExit[id], "reachable bb%d has no path to an exit", id)
	}
}

func findBranch(body *Body, kind BranchKind) []*BasicBlock {
	var out []*BasicBlock
	for _, blk := range body.Blocks {
		if blk.Term.Kind == TermBranch && blk.Term.Branch == kind {
			out = append(out, blk)
		}
	}
	return out
}

func findTerm(body *Body, kind TermKind) []*BasicBlock {
	var out []*BasicBlock
	for _, blk := range body.Blocks {
		if blk.Term.Kind == kind {
			out = append(out, blk)
		}
	}
	return out
}

func TestShortCircuitBranchingWithConstantLhs(t *testing.T) {
	coll := buildSrc(t, "#if true and x { 1 } else { 2 }")
	body := coll.Root()
	requireWellFormed(t, body)

	// The constant lhs lowers to a Goto into the rhs-evaluating block: no
	// Branch{If} anywhere, exactly one Branch{And}.
	assert.Empty(t, findBranch(body, BranchIf))
	ands := findBranch(body, BranchAnd)
	require.Len(t, ands, 1)

	// The entry evaluates the constant and jumps straight to the rhs block.
	entry := body.Block(body.Entry)
	require.Equal(t, TermGoto, entry.Term.Kind)
	assert.Equal(t, ands[0].Id, entry.Term.Target)

	// Both arms join: the then and else successors eventually share a block.
	then, els := ands[0].Term.Then, ands[0].Term.Else
	assert.NotEqual(t, then, els)
	assert.Equal(t, body.Block(then).Term.Target, body.Block(els).Term.Target)

	assert.Empty(t, body.OrphanBlocks(), "all arms are reachable, no orphans expected")
}

func TestConstantFalseConditionOrphansUntakenArm(t *testing.T) {
	coll := buildSrc(t, "#if false { 1 } else { 2 }")
	body := coll.Root()
	requireWellFormed(t, body)

	// Folded condition: Goto the else arm, the then arm is an orphan.
	assert.Empty(t, findBranch(body, BranchIf))
	orphans := body.OrphanBlocks()
	require.Len(t, orphans, 1)
}

func TestReturnOutsideClosureTargetsErrorExit(t *testing.T) {
	coll := buildSrc(t, "#return 1\nafter")
	body := coll.Root()
	requireWellFormed(t, body)

	rets := findTerm(body, TermReturn)
	require.Len(t, rets, 1)
	assert.False(t, rets[0].Term.Allowed)
	assert.Equal(t, body.ErrorExit, rets[0].Term.Target)

	// The trailing statement lands in an orphan block.
	orphans := body.OrphanBlocks()
	require.NotEmpty(t, orphans)
	idx := body.StmtIndex()
	found := false
	for _, blk := range idx {
		for _, o := range orphans {
			if blk == o {
				found = true
			}
		}
	}
	assert.True(t, found, "the statement after the return should sit in an orphan block")
}

func TestContextualReturnBoundary(t *testing.T) {
	coll := buildSrc(t, "#context { return 1; 2 }")
	body := coll.Root()
	requireWellFormed(t, body)

	// The contextual interior allows return; its target is the after block,
	// not an exit of the body.
	rets := findTerm(body, TermReturn)
	require.Len(t, rets, 1)
	assert.True(t, rets[0].Term.Allowed)
	assert.NotEqual(t, body.Exit, rets[0].Term.Target)
	assert.NotEqual(t, body.ErrorExit, rets[0].Term.Target)

	// `2` is unreachable: it sits in an orphan block.
	assert.NotEmpty(t, body.OrphanBlocks())

	// The whole file still flows to the normal exit through the after block.
	dom := Dominators(body)
	assert.True(t, dom.Dominates(body.Entry, rets[0].Term.Target))
}

func TestClosurePushesBodyWithReturnAllowed(t *testing.T) {
	coll := buildSrc(t, "#let f = (x) => { return x }")
	require.Len(t, coll.Bodies, 2)

	root := coll.Root()
	requireWellFormed(t, root)
	// The closure records a Closure stmt in the enclosing block.
	closureStmts := 0
	for _, blk := range root.Blocks {
		for _, s := range blk.Stmts {
			if s.Kind == StmtClosure {
				closureStmts++
			}
		}
	}
	assert.Equal(t, 1, closureStmts)

	inner := coll.Bodies[1]
	require.Equal(t, BodyClosure, inner.Kind)
	requireWellFormed(t, inner)
	rets := findTerm(inner, TermReturn)
	require.Len(t, rets, 1)
	assert.True(t, rets[0].Term.Allowed)
	assert.Equal(t, inner.Exit, rets[0].Term.Target)
}

func TestBreakOutsideLoopIsIllegal(t *testing.T) {
	coll := buildSrc(t, "#break")
	body := coll.Root()
	requireWellFormed(t, body)

	brs := findTerm(body, TermBreak)
	require.Len(t, brs, 1)
	assert.False(t, brs[0].Term.Allowed)
	assert.Equal(t, body.ErrorExit, brs[0].Term.Target)
}

func TestWhileLoopShape(t *testing.T) {
	coll := buildSrc(t, "#while x { y }")
	body := coll.Root()
	requireWellFormed(t, body)

	whiles := findBranch(body, BranchWhile)
	require.Len(t, whiles, 1)
	header := whiles[0]

	// The body's fall-through jumps back to the header.
	bodyBB := body.Block(header.Term.Then)
	require.Equal(t, TermGoto, bodyBB.Term.Kind)
	assert.Equal(t, header.Id, bodyBB.Term.Target)
}

func TestForLoopRecordsHeaderStmt(t *testing.T) {
	coll := buildSrc(t, "#for i in xs { i }")
	body := coll.Root()
	requireWellFormed(t, body)

	fors := findBranch(body, BranchForIter)
	require.Len(t, fors, 1)
	header := fors[0]
	require.NotEmpty(t, header.Stmts)
	assert.Equal(t, StmtForLoop, header.Stmts[len(header.Stmts)-1].Kind)
}

func TestBreakContinueTargetLoop(t *testing.T) {
	coll := buildSrc(t, "#while x { break }")
	body := coll.Root()
	requireWellFormed(t, body)

	whiles := findBranch(body, BranchWhile)
	require.Len(t, whiles, 1)
	brs := findTerm(body, TermBreak)
	require.Len(t, brs, 1)
	assert.True(t, brs[0].Term.Allowed)
	assert.Equal(t, whiles[0].Term.Else, brs[0].Term.Target, "break targets the loop exit")

	coll = buildSrc(t, "#while x { continue }")
	body = coll.Root()
	requireWellFormed(t, body)
	conts := findTerm(body, TermContinue)
	require.Len(t, conts, 1)
	assert.True(t, conts[0].Term.Allowed)
	whiles = findBranch(body, BranchWhile)
	assert.Equal(t, whiles[0].Id, conts[0].Term.Target, "continue targets the loop header")
}

func TestDominatorsEntryDominatesAll(t *testing.T) {
	coll := buildSrc(t, "#if a { b } else { c }\n#while d { e }")
	body := coll.Root()
	requireWellFormed(t, body)

	dom := Dominators(body)
	for id := range body.ReachableBlocks() {
		assert.True(t, dom.Dominates(body.Entry, id), "entry must dominate reachable bb%d", id)
	}

	// Determinism: two computations agree.
	dom2 := Dominators(body)
	assert.Equal(t, dom.Idom, dom2.Idom)
}

func TestBackEdgesAndNaturalLoop(t *testing.T) {
	coll := buildSrc(t, "#while x { y }")
	body := coll.Root()
	dom := Dominators(body)

	edges := BackEdges(body, dom)
	require.Len(t, edges, 1, "one while loop, one back edge")
	header := edges[0].To
	back := edges[0].From
	assert.True(t, dom.Dominates(header, back))

	loop := NaturalLoop(body, header, back)
	assert.True(t, loop[header])
	assert.True(t, loop[back])

	// Closure under predecessors-not-through-header: every member other
	// than the header has all its in-loop predecessors in the loop.
	preds := body.Predecessors()
	for member := range loop {
		if member == header {
			continue
		}
		for _, p := range preds[member] {
			assert.True(t, loop[p], "predecessor bb%d of loop member bb%d escapes the loop", p, member)
		}
	}
}

func TestValuePositionShortCircuitJoins(t *testing.T) {
	coll := buildSrc(t, "#let v = a or b")
	body := coll.Root()
	requireWellFormed(t, body)

	ors := findBranch(body, BranchOr)
	require.Len(t, ors, 1)
	// For `or`, the rhs-evaluating block is the else successor.
	rhs := body.Block(ors[0].Term.Else)
	require.Equal(t, TermGoto, rhs.Term.Kind)
	assert.Equal(t, ors[0].Term.Then, rhs.Term.Target, "both flows join at the same block")
}

func TestStmtIndexFirstWins(t *testing.T) {
	coll := buildSrc(t, "#let a = 1\n#let b = 2")
	body := coll.Root()
	idx := body.StmtIndex()
	require.NotEmpty(t, idx)
	for _, blk := range idx {
		assert.GreaterOrEqual(t, int(blk), 0)
	}
}

func TestDebugDumpStable(t *testing.T) {
	coll := buildSrc(t, "#if x { 1 }")
	d1 := coll.DebugDump()
	d2 := buildSrc(t, "#if x { 1 }").DebugDump()
	assert.Equal(t, d1, d2)
	assert.Contains(t, d1, "body b0 (file_root)")
	assert.Contains(t, d1, "branch{If")
}
