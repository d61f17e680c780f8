// Package syntax is a minimal, hand-written recursive-descent lexer/parser
// for a Typst-flavored toy grammar. It stands in for the real Typst parser,
// which lives outside this module by design: it produces just enough of a
// SyntaxNode tree (kind + span + children) to drive expression lowering and
// CFG construction.
package syntax

import "fmt"

// Span is a half-open byte range [Start, End) into a single source's bytes.
type Span struct {
	Start, End uint32
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Join returns the smallest span covering both s and o. A zero-value span on
// either side is ignored so callers can fold over an empty slice safely.
func (s Span) Join(o Span) Span {
	if s == (Span{}) {
		return o
	}
	if o == (Span{}) {
		return s
	}
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}
