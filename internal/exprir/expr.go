package exprir

import "github.com/Myriad-Dreamin/tinymist-core/internal/syntax"

// Expr is the sum type of the intermediate representation. Every variant is
// a distinct Go type implementing Expr; payloads that are supposed to be
// hash-consed (Decl, and interned literal/scope values) carry a pointer so
// that equality reduces to pointer identity.
type Expr interface {
	Span() syntax.Span
	exprNode()
}

type baseExpr struct{ span syntax.Span }

func (b baseExpr) Span() syntax.Span { return b.span }
func (baseExpr) exprNode()           {}

// Literal covers number/string/bool/none/auto/text leaves.
type Literal struct {
	baseExpr
	Kind syntax.Kind
	Text string
}

// Block is an ordered sequence of expressions (markup sequence or code
// block body).
type Block struct {
	baseExpr
	Exprs []Expr
}

// ArgExpr is one entry of an Array/Dict/Args sequence: an optional name
// (for dict entries / named args), a spread flag, and the value.
type ArgExpr struct {
	Name   string
	Spread bool
	Value  Expr
	Origin syntax.Span
}

// Array is an ordered sequence of ArgExpr (no names).
type Array struct {
	baseExpr
	Items []ArgExpr
}

// Dict is an ordered sequence of named ArgExpr.
type Dict struct {
	baseExpr
	Items []ArgExpr
}

// Args is a call's argument list.
type Args struct {
	baseExpr
	Items []ArgExpr
}

// Pattern is either a simple binding (Simple != nil, Positional/Named/Spread
// all empty) or a destructuring signature.
type Pattern struct {
	baseExpr
	Simple     *Decl
	Positional []*Pattern
	Named      []NamedPatternItem
	Spread     *Decl
}

// NamedPatternItem is one "name: pattern" entry of a signature pattern.
type NamedPatternItem struct {
	Name    string
	Pattern *Pattern
}

// Element is a markup element: a tag (e.g. "heading", "emph") with ordered
// children.
type Element struct {
	baseExpr
	Tag      string
	Children []Expr
}

// Unary is a prefix operator applied to one operand.
type Unary struct {
	baseExpr
	Op      string
	Operand Expr
}

// Binary is an infix operator applied to two operands ("and"/"or" included).
type Binary struct {
	baseExpr
	Op          string
	Lhs, Rhs    Expr
}

// Apply is a function call: callee(args).
type Apply struct {
	baseExpr
	Callee   Expr
	Args     Expr // *Args
	CallSpan syntax.Span
}

// Signature is a closure or named function's parameter list.
type Signature struct {
	Positional []*Pattern
	Named      []NamedParam
	Spread     *Decl
}

// NamedParam is a "name: default" parameter entry.
type NamedParam struct {
	Decl    *Decl
	Default Expr
}

// Func is a named function or a closure literal.
type Func struct {
	baseExpr
	Decl *Decl // nil for an anonymous closure
	Sig  Signature
	Body Expr
}

// Let is a `let pattern = init` binding.
type Let struct {
	baseExpr
	PatternSpan syntax.Span
	Pattern     *Pattern
	Init        Expr // nil if uninitialized
}

// Show is a `show [selector]: edit` rule. Edit is either a target Expr
// (content replacement) or a transform function Expr.
type Show struct {
	baseExpr
	Selector Expr // nil for an unconditional show
	Edit     Expr
}

// Set is a `set target(args)` rule with an optional trailing `if cond`.
type Set struct {
	baseExpr
	Target Expr
	Args   Expr // *Args
	Cond   Expr // nil if unconditional
}

// RefStep classifies how a Ref's Root was found.
type RefStep int

const (
	StepUnresolved RefStep = iota
	StepLexical
	StepImport
	StepStar
	StepBuiltin
	StepField
)

func (s RefStep) String() string {
	switch s {
	case StepLexical:
		return "Lexical"
	case StepImport:
		return "Import"
	case StepStar:
		return "Star"
	case StepBuiltin:
		return "Builtin"
	case StepField:
		return "Field"
	default:
		return "Unresolved"
	}
}

// Ref is an identifier occurrence together with its resolution chain. Root
// is either an Expr wrapping a definition Decl, or nil if unresolved.
type Ref struct {
	baseExpr
	Decl *Decl
	Step RefStep
	Root Expr // *DeclExpr of a definition, or nil
	Term *Term
}

// ContentRef is a `<label>` style reference used inside markup.
type ContentRef struct {
	baseExpr
	Ident  *Decl
	Target *Decl // nil if unresolved
	Body   Expr  // nil for a bare reference
}

// Select is field access: lhs.key.
type Select struct {
	baseExpr
	Lhs Expr
	Key *Decl
}

// Import is `import source: items` (items nil means import the whole
// module under a default/aliased name carried by Decl).
type Import struct {
	baseExpr
	Decl   *Decl // the module binding, if any (import "x" as m)
	Source Expr
	Items  []*Decl
}

// Include is `include source`.
type Include struct {
	baseExpr
	Source Expr
}

// Contextual is `context inner`; it establishes a fresh `return` boundary
// that the CFG builder mirrors with an entry/after block pair inside the
// enclosing body.
type Contextual struct {
	baseExpr
	Inner Expr
}

// Conditional is `if cond { then } else { else }` (Else may be nil).
type Conditional struct {
	baseExpr
	Cond, Then, Else Expr
}

// While is `while cond { body }`.
type While struct {
	baseExpr
	Cond, Body Expr
}

// For is `for pattern in iter { body }`.
type For struct {
	baseExpr
	Pattern  *Pattern
	Iter     Expr
	Body     Expr
}

// Type reifies a Typst value type as a term, e.g. for a `set` target.
type Type struct {
	baseExpr
	Term *Term
}

// DeclExpr wraps an interned Decl so it can appear as an Expr (e.g. as a
// Ref's Root, or as the toplevel Func.Decl's defining-position expr).
type DeclExpr struct {
	baseExpr
	Decl *Decl
}

// Star is a wildcard import; it records the entire imported scope.
type Star struct {
	baseExpr
	Source Expr
	Scope  *Scope
}

// return/break/continue are deliberately not Expr variants: they are
// represented purely as CFG terminators (internal/cfg).

func NewBlock(span syntax.Span, exprs []Expr) *Block { return &Block{baseExpr{span}, exprs} }
