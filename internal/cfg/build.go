package cfg

import (
	"github.com/Myriad-Dreamin/tinymist-core/internal/debug"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

// Build constructs the control-flow graphs for one parsed file: a file-root
// body plus one body per closure interior. Construction has no failure
// modes; malformed control flow becomes edges into the error exit.
func Build(root *syntax.Node) *Collection {
	coll := &Collection{}
	bb := newBodyBuilder(coll, BodyFileRoot, root.Span)
	bb.retAllowed = false
	bb.visitSeq(root.Children)
	bb.finish()
	return coll
}

type loopTarget struct {
	header BlockId
	exit   BlockId
}

// bodyBuilder carries the mutable "current block" plus the loop-target stack
// and return policy threaded through one body's structured descent.
type bodyBuilder struct {
	coll *Collection
	body *Body

	cur BlockId

	loops      []loopTarget
	retTarget  BlockId
	retAllowed bool
}

func newBodyBuilder(coll *Collection, kind BodyKind, span syntax.Span) *bodyBuilder {
	body := &Body{Id: BodyId(len(coll.Bodies)), Kind: kind, Span: span}
	coll.Bodies = append(coll.Bodies, body)

	bb := &bodyBuilder{coll: coll, body: body}
	body.Entry = bb.newBlock()
	body.Exit = bb.newBlock()
	body.ErrorExit = bb.newBlock()
	bb.block(body.Exit).Term = Terminator{Kind: TermExit, Exit: ExitNormal}
	bb.block(body.ErrorExit).Term = Terminator{Kind: TermExit, Exit: ExitError}
	bb.cur = body.Entry
	bb.retTarget = body.ErrorExit
	return bb
}

func (bb *bodyBuilder) newBlock() BlockId {
	id := BlockId(len(bb.body.Blocks))
	bb.body.Blocks = append(bb.body.Blocks, &BasicBlock{Id: id})
	return id
}

func (bb *bodyBuilder) block(id BlockId) *BasicBlock {
	return bb.body.Blocks[id]
}

func (bb *bodyBuilder) record(span syntax.Span, kind StmtKind) {
	blk := bb.block(bb.cur)
	blk.Stmts = append(blk.Stmts, Stmt{Span: span, Kind: kind})
}

// seal sets the current block's terminator if it is still unset. A block
// already terminated (by a return or jump in an embedded position) keeps
// its original terminator.
func (bb *bodyBuilder) seal(t Terminator) {
	blk := bb.block(bb.cur)
	if blk.Term.Kind == TermUnset {
		blk.Term = t
	}
}

// finish seals the falling-through end of the body into the normal exit and
// converts any stragglers, upholding the no-Unset-terminator invariant.
func (bb *bodyBuilder) finish() {
	bb.seal(Terminator{Kind: TermGoto, Target: bb.body.Exit})
	for _, blk := range bb.body.Blocks {
		if blk.Term.Kind == TermUnset {
			debug.LogCfg("body b%d: sealing stray bb%d into exit", bb.body.Id, blk.Id)
			blk.Term = Terminator{Kind: TermGoto, Target: bb.body.Exit}
		}
	}
}

// visitSeq appends each statement of a code/markup sequence to the current
// block until a terminating construct splits it.
func (bb *bodyBuilder) visitSeq(nodes []*syntax.Node) {
	for _, n := range nodes {
		bb.visitStmt(n)
	}
}

func (bb *bodyBuilder) visitStmt(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindCodeExpr:
		if len(n.Children) > 0 {
			bb.visitStmt(n.Children[0])
		}
	case syntax.KindIfExpr:
		bb.structIf(n)
	case syntax.KindWhileLoop:
		bb.structWhile(n)
	case syntax.KindForLoop:
		bb.structFor(n)
	case syntax.KindContextual:
		bb.structContext(n)
	case syntax.KindReturnStmt:
		bb.structReturn(n)
	case syntax.KindBreakStmt:
		bb.structLoopJump(n, TermBreak)
	case syntax.KindContinueStmt:
		bb.structLoopJump(n, TermContinue)
	case syntax.KindLetBinding:
		bb.record(n.Span, StmtLet)
		if len(n.Children) > 1 {
			bb.descendExpr(n.Children[1])
		}
	case syntax.KindClosure:
		bb.structClosure(n)
	default:
		// The container's statement record lands before any control flow
		// inside it, so flow analysis sequences the container ahead of a
		// nested terminator.
		bb.record(n.Span, StmtExpr)
		bb.descendExpr(n)
	}
}

// descendExpr walks an already-recorded expression looking for nested
// control flow that must be expressed structurally: short-circuit
// operators, closures, conditionals/loops in expression position, and
// content blocks whose statements execute inline.
func (bb *bodyBuilder) descendExpr(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindBinary:
		if n.Text == "and" || n.Text == "or" {
			bb.valueShortCircuit(n)
			return
		}
		for _, c := range n.Children {
			bb.descendExpr(c)
		}
	case syntax.KindClosure:
		bb.structClosure(n)
	case syntax.KindIfExpr:
		bb.structIf(n)
	case syntax.KindWhileLoop:
		bb.structWhile(n)
	case syntax.KindForLoop:
		bb.structFor(n)
	case syntax.KindContextual:
		bb.structContext(n)
	case syntax.KindReturnStmt:
		bb.structReturn(n)
	case syntax.KindBreakStmt:
		bb.structLoopJump(n, TermBreak)
	case syntax.KindContinueStmt:
		bb.structLoopJump(n, TermContinue)
	case syntax.KindMarkup, syntax.KindCodeBlock, syntax.KindContentBlock:
		bb.visitSeq(n.Children)
	default:
		for _, c := range n.Children {
			bb.descendExpr(c)
		}
	}
}

// visitEmbedded visits a construct arm or body: block nodes contribute
// their statements directly, anything else is a single statement.
func (bb *bodyBuilder) visitEmbedded(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindMarkup, syntax.KindCodeBlock, syntax.KindContentBlock:
		bb.visitSeq(n.Children)
	default:
		bb.visitStmt(n)
	}
}

// constFold evaluates a condition made of boolean literals, `not`, `and`
// and `or` at build time. Folded conditions lower to Goto rather than
// Branch, leaving the untaken arm an orphan.
func constFold(n *syntax.Node) (bool, bool) {
	if n == nil {
		return false, false
	}
	switch n.Kind {
	case syntax.KindCodeExpr:
		if len(n.Children) > 0 {
			return constFold(n.Children[0])
		}
	case syntax.KindBool:
		return n.Text == "true", true
	case syntax.KindUnary:
		if n.Text == "not" && len(n.Children) > 0 {
			if v, ok := constFold(n.Children[0]); ok {
				return !v, true
			}
		}
	case syntax.KindBinary:
		if (n.Text == "and" || n.Text == "or") && len(n.Children) == 2 {
			lv, lok := constFold(n.Children[0])
			rv, rok := constFold(n.Children[1])
			if lok && rok {
				if n.Text == "and" {
					return lv && rv, true
				}
				return lv || rv, true
			}
		}
	}
	return false, false
}

// lowerCond evaluates a condition with the given branch targets. Constant
// conditions become a Goto to the taken target; `and`/`or` decompose into a
// chain whose leaves branch with BranchAnd/BranchOr; anything else
// evaluates in the current block and branches with kind.
func (bb *bodyBuilder) lowerCond(n *syntax.Node, kind BranchKind, thenBB, elseBB BlockId) {
	if n == nil {
		bb.seal(Terminator{Kind: TermGoto, Target: thenBB})
		return
	}
	if n.Kind == syntax.KindCodeExpr && len(n.Children) > 0 {
		bb.lowerCond(n.Children[0], kind, thenBB, elseBB)
		return
	}

	if v, ok := constFold(n); ok {
		bb.record(n.Span, StmtExpr)
		target := thenBB
		if !v {
			target = elseBB
		}
		bb.seal(Terminator{Kind: TermGoto, Target: target})
		return
	}

	if n.Kind == syntax.KindBinary && n.Text == "and" {
		rhs := bb.newBlock()
		bb.lowerCond(n.Children[0], BranchAnd, rhs, elseBB)
		bb.cur = rhs
		bb.lowerCond(n.Children[1], BranchAnd, thenBB, elseBB)
		return
	}
	if n.Kind == syntax.KindBinary && n.Text == "or" {
		rhs := bb.newBlock()
		bb.lowerCond(n.Children[0], BranchOr, thenBB, rhs)
		bb.cur = rhs
		bb.lowerCond(n.Children[1], BranchOr, thenBB, elseBB)
		return
	}

	bb.record(n.Span, StmtExpr)
	bb.descendExpr(n)
	bb.seal(Terminator{Kind: TermBranch, Branch: kind, Span: n.Span, Then: thenBB, Else: elseBB})
}

func (bb *bodyBuilder) structIf(n *syntax.Node) {
	cond := child(n, 0)
	thenNode := child(n, 1)
	elseNode := child(n, 2)

	thenBB := bb.newBlock()
	join := bb.newBlock()
	elseTarget := join
	var elseBB BlockId = NoBlock
	if elseNode != nil {
		elseBB = bb.newBlock()
		elseTarget = elseBB
	}

	bb.lowerCond(cond, BranchIf, thenBB, elseTarget)

	bb.cur = thenBB
	bb.visitEmbedded(thenNode)
	bb.seal(Terminator{Kind: TermGoto, Target: join})

	if elseBB != NoBlock {
		bb.cur = elseBB
		bb.visitEmbedded(elseNode)
		bb.seal(Terminator{Kind: TermGoto, Target: join})
	}

	bb.cur = join
}

func (bb *bodyBuilder) structWhile(n *syntax.Node) {
	cond := child(n, 0)
	bodyNode := child(n, 1)

	header := bb.newBlock()
	bb.seal(Terminator{Kind: TermGoto, Target: header})

	bodyBB := bb.newBlock()
	exit := bb.newBlock()

	bb.cur = header
	bb.lowerCond(cond, BranchWhile, bodyBB, exit)

	bb.cur = bodyBB
	bb.loops = append(bb.loops, loopTarget{header: header, exit: exit})
	bb.visitEmbedded(bodyNode)
	bb.loops = bb.loops[:len(bb.loops)-1]
	bb.seal(Terminator{Kind: TermGoto, Target: header})

	bb.cur = exit
}

func (bb *bodyBuilder) structFor(n *syntax.Node) {
	iter := child(n, 1)
	bodyNode := child(n, 2)

	if iter != nil {
		bb.record(iter.Span, StmtExpr)
		bb.descendExpr(iter)
	}

	header := bb.newBlock()
	bb.seal(Terminator{Kind: TermGoto, Target: header})

	bodyBB := bb.newBlock()
	exit := bb.newBlock()

	bb.cur = header
	bb.record(n.Span, StmtForLoop)
	bb.seal(Terminator{Kind: TermBranch, Branch: BranchForIter, Span: n.Span, Then: bodyBB, Else: exit})

	bb.cur = bodyBB
	bb.loops = append(bb.loops, loopTarget{header: header, exit: exit})
	bb.visitEmbedded(bodyNode)
	bb.loops = bb.loops[:len(bb.loops)-1]
	bb.seal(Terminator{Kind: TermGoto, Target: header})

	bb.cur = exit
}

// structContext splices a fresh entry/after pair for `context e`. Inside,
// `return` is allowed with the after block as its target, so a return
// leaves the contextual rather than the enclosing body.
func (bb *bodyBuilder) structContext(n *syntax.Node) {
	inner := child(n, 0)

	ctxEntry := bb.newBlock()
	after := bb.newBlock()
	bb.seal(Terminator{Kind: TermGoto, Target: ctxEntry})

	savedTarget, savedAllowed := bb.retTarget, bb.retAllowed
	bb.retTarget, bb.retAllowed = after, true

	bb.cur = ctxEntry
	bb.visitEmbedded(inner)
	bb.seal(Terminator{Kind: TermGoto, Target: after})

	bb.retTarget, bb.retAllowed = savedTarget, savedAllowed
	bb.cur = after
}

func (bb *bodyBuilder) structReturn(n *syntax.Node) {
	if len(n.Children) > 0 {
		bb.record(n.Span, StmtExpr)
		bb.descendExpr(n.Children[0])
	}
	target := bb.retTarget
	if !bb.retAllowed {
		target = bb.body.ErrorExit
	}
	bb.seal(Terminator{Kind: TermReturn, Target: target, Allowed: bb.retAllowed})
	bb.cur = bb.newBlock()
}

func (bb *bodyBuilder) structLoopJump(n *syntax.Node, kind TermKind) {
	allowed := len(bb.loops) > 0
	target := bb.body.ErrorExit
	if allowed {
		top := bb.loops[len(bb.loops)-1]
		if kind == TermBreak {
			target = top.exit
		} else {
			target = top.header
		}
	}
	bb.seal(Terminator{Kind: kind, Target: target, Allowed: allowed})
	bb.cur = bb.newBlock()
}

// structClosure records a Closure stmt in the enclosing block and
// additionally pushes a new body for the closure's interior, where `return`
// is allowed and targets that body's normal exit.
func (bb *bodyBuilder) structClosure(n *syntax.Node) {
	bb.record(n.Span, StmtClosure)

	// Parameter defaults evaluate at the definition site.
	if params := child(n, 0); params != nil {
		for _, p := range params.Children {
			if len(p.Children) > 0 {
				bb.descendExpr(p.Children[0])
			}
		}
	}

	inner := newBodyBuilder(bb.coll, BodyClosure, n.Span)
	inner.retTarget = inner.body.Exit
	inner.retAllowed = true
	inner.visitEmbedded(child(n, 1))
	inner.finish()
}

// valueShortCircuit expresses `a and b` / `a or b` in value position:
// evaluate the lhs, branch with the rhs-evaluating block as "then" for
// `and` and "else" for `or`, and join both flows.
func (bb *bodyBuilder) valueShortCircuit(n *syntax.Node) {
	rhs := bb.newBlock()
	join := bb.newBlock()

	bb.descendExpr(n.Children[0])

	t := Terminator{Kind: TermBranch, Span: n.Span}
	if n.Text == "and" {
		t.Branch, t.Then, t.Else = BranchAnd, rhs, join
	} else {
		t.Branch, t.Then, t.Else = BranchOr, join, rhs
	}
	bb.seal(t)

	bb.cur = rhs
	bb.descendExpr(n.Children[1])
	bb.seal(Terminator{Kind: TermGoto, Target: join})

	bb.cur = join
}

func child(n *syntax.Node, i int) *syntax.Node {
	if n == nil || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}
