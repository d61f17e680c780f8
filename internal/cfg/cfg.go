// Package cfg builds basic-block control-flow graphs from a parsed syntax
// tree: one body per executable region (the file root, plus one per closure;
// a contextual interior is spliced into its enclosing body between a fresh
// entry/after block pair), terminators for structured jumps, dominator
// analysis, and natural-loop discovery.
package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

// BlockId indexes a block within its owning Body.
type BlockId int

// BodyId indexes a body within a Collection.
type BodyId int

// NoBlock marks an absent block reference.
const NoBlock BlockId = -1

// StmtKind classifies a diagnostic statement item recorded in a block.
type StmtKind int

const (
	StmtExpr StmtKind = iota
	StmtLet
	StmtForLoop
	StmtClosure
)

func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "Let"
	case StmtForLoop:
		return "ForLoop"
	case StmtClosure:
		return "Closure"
	default:
		return "Expr"
	}
}

// Stmt is a diagnostic item: the span of a statement (or condition
// evaluation) that executes within its block.
type Stmt struct {
	Span syntax.Span
	Kind StmtKind
}

// TermKind discriminates a block's Terminator.
type TermKind int

const (
	// TermUnset is a placeholder used during construction only; after
	// Build returns, no block carries it.
	TermUnset TermKind = iota
	TermExit
	TermGoto
	TermBranch
	TermReturn
	TermBreak
	TermContinue
)

// ExitKind distinguishes a normal body exit from the illegal-control-flow
// exit that structured jumps fall back to when not allowed.
type ExitKind int

const (
	ExitNormal ExitKind = iota
	ExitError
)

// BranchKind records which construct asked for a conditional branch.
type BranchKind int

const (
	BranchIf BranchKind = iota
	BranchWhile
	BranchForIter
	BranchAnd
	BranchOr
)

func (k BranchKind) String() string {
	switch k {
	case BranchWhile:
		return "While"
	case BranchForIter:
		return "ForIter"
	case BranchAnd:
		return "And"
	case BranchOr:
		return "Or"
	default:
		return "If"
	}
}

// Terminator is the final instruction of a block, defining its outgoing
// edges. Exactly the fields implied by Kind are meaningful.
type Terminator struct {
	Kind TermKind

	// Exit kind for TermExit.
	Exit ExitKind

	// Target for TermGoto, TermReturn, TermBreak, TermContinue.
	Target BlockId

	// Allowed reports, for structured jumps, whether the jump was legal at
	// its position; when false, Target is the body's error exit.
	Allowed bool

	// Branch payload for TermBranch.
	Branch BranchKind
	Span   syntax.Span
	Then   BlockId
	Else   BlockId
}

// Successors returns the up-to-two successor blocks of t, in then/else
// order for branches.
func (t Terminator) Successors() []BlockId {
	switch t.Kind {
	case TermGoto:
		return []BlockId{t.Target}
	case TermBranch:
		return []BlockId{t.Then, t.Else}
	case TermReturn, TermBreak, TermContinue:
		return []BlockId{t.Target}
	default:
		return nil
	}
}

// BasicBlock is a straight-line sequence of diagnostic statements ending in
// a terminator.
type BasicBlock struct {
	Id    BlockId
	Stmts []Stmt
	Term  Terminator
}

// BodyKind distinguishes what executable region a body models.
type BodyKind int

const (
	BodyFileRoot BodyKind = iota
	BodyClosure
)

// Body is one executable region's graph: the file root or a closure
// interior, with dedicated entry, normal-exit, and error-exit blocks.
type Body struct {
	Id   BodyId
	Kind BodyKind
	Span syntax.Span

	Entry     BlockId
	Exit      BlockId
	ErrorExit BlockId

	Blocks []*BasicBlock
}

// Block returns the block with the given id.
func (b *Body) Block(id BlockId) *BasicBlock {
	return b.Blocks[id]
}

// Successors returns the successor ids of the given block.
func (b *Body) Successors(id BlockId) []BlockId {
	return b.Blocks[id].Term.Successors()
}

// Predecessors computes the per-block predecessor lists.
func (b *Body) Predecessors() map[BlockId][]BlockId {
	preds := make(map[BlockId][]BlockId, len(b.Blocks))
	for _, blk := range b.Blocks {
		for _, s := range blk.Term.Successors() {
			preds[s] = append(preds[s], blk.Id)
		}
	}
	return preds
}

// ReachableBlocks returns the set of blocks reachable from entry via DFS.
func (b *Body) ReachableBlocks() map[BlockId]bool {
	seen := make(map[BlockId]bool)
	stack := []BlockId{b.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, s := range b.Blocks[id].Term.Successors() {
			if !seen[s] {
				stack = append(stack, s)
			}
		}
	}
	return seen
}

// OrphanBlocks returns every block that is not entry/exit/error-exit and has
// no predecessors. Orphans arise from constant-folded untaken branches and
// from statements following a terminating jump.
func (b *Body) OrphanBlocks() []BlockId {
	preds := b.Predecessors()
	var orphans []BlockId
	for _, blk := range b.Blocks {
		if blk.Id == b.Entry || blk.Id == b.Exit || blk.Id == b.ErrorExit {
			continue
		}
		if len(preds[blk.Id]) == 0 {
			orphans = append(orphans, blk.Id)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	return orphans
}

// StmtIndex maps each recorded statement span to the block that carries it;
// when the same span is recorded in several blocks, the first wins.
func (b *Body) StmtIndex() map[syntax.Span]BlockId {
	index := make(map[syntax.Span]BlockId)
	for _, blk := range b.Blocks {
		for _, s := range blk.Stmts {
			if _, ok := index[s.Span]; !ok {
				index[s.Span] = blk.Id
			}
		}
	}
	return index
}

// Collection owns every body built from one source file. Bodies[0] is
// always the file root.
type Collection struct {
	Bodies []*Body
}

// Root returns the file-root body.
func (c *Collection) Root() *Body {
	return c.Bodies[0]
}

// DebugDump renders the collection as stable, diffable text for
// snapshot-style assertions.
func (c *Collection) DebugDump() string {
	var sb strings.Builder
	for _, body := range c.Bodies {
		fmt.Fprintf(&sb, "body b%d (%s) entry=%d exit=%d error_exit=%d\n",
			body.Id, bodyKindName(body.Kind), body.Entry, body.Exit, body.ErrorExit)
		for _, blk := range body.Blocks {
			fmt.Fprintf(&sb, "  bb%d:\n", blk.Id)
			for _, s := range blk.Stmts {
				fmt.Fprintf(&sb, "    stmt %s @%s\n", s.Kind, s.Span)
			}
			fmt.Fprintf(&sb, "    %s\n", dumpTerm(blk.Term))
		}
	}
	return sb.String()
}

func bodyKindName(k BodyKind) string {
	if k == BodyClosure {
		return "closure"
	}
	return "file_root"
}

func dumpTerm(t Terminator) string {
	switch t.Kind {
	case TermExit:
		if t.Exit == ExitError {
			return "exit(error)"
		}
		return "exit(normal)"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Target)
	case TermBranch:
		return fmt.Sprintf("branch{%s @%s} then=bb%d else=bb%d", t.Branch, t.Span, t.Then, t.Else)
	case TermReturn:
		return fmt.Sprintf("return target=bb%d allowed=%v", t.Target, t.Allowed)
	case TermBreak:
		return fmt.Sprintf("break target=bb%d allowed=%v", t.Target, t.Allowed)
	case TermContinue:
		return fmt.Sprintf("continue target=bb%d allowed=%v", t.Target, t.Allowed)
	default:
		return "unset"
	}
}
