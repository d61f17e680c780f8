// Package exprir implements the interned, hash-consed expression tree
// lowered from a parsed syntax tree: declarations, persistent scopes, the
// Expr sum type, and the syntax-directed lowering + bidirectional type
// inference that produce an ExprInfo per source file.
package exprir

import (
	"fmt"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/intern"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

// DeclKind classifies what a Decl was introduced as.
type DeclKind int

const (
	DeclUnknown DeclKind = iota
	DeclFunc
	DeclVariable
	DeclModule
	DeclReference // a named reference that no source binding resolves (lowering gives it to unresolved identifiers)
	DeclConstant
	DeclLabel
	DeclImport
	DeclBibEntry
	DeclParam
	DeclDocStart // synthetic decl representing the top-level file/module
)

// IsDefinition reports whether decl introduces a binding (as opposed to
// classifying a mere use site). Definitions are the stable keys symbol
// resolution, cross-reference queries, and documentation lookup key off.
func (k DeclKind) IsDefinition() bool {
	switch k {
	case DeclFunc, DeclVariable, DeclModule, DeclLabel, DeclImport, DeclBibEntry, DeclParam, DeclConstant, DeclDocStart:
		return true
	default:
		return false
	}
}

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "Func"
	case DeclVariable:
		return "Variable"
	case DeclModule:
		return "Module"
	case DeclReference:
		return "Reference"
	case DeclConstant:
		return "Constant"
	case DeclLabel:
		return "Label"
	case DeclImport:
		return "Import"
	case DeclBibEntry:
		return "BibEntry"
	case DeclParam:
		return "Param"
	case DeclDocStart:
		return "DocStart"
	default:
		return "Unknown"
	}
}

// Locus pins a Decl to the file and span it was introduced at. A Decl
// without a backing file (e.g. a built-in) carries a zero FileId and span.
type Locus struct {
	File fileid.FileId
	Span syntax.Span
}

// Decl is an interned declaration: the stable key for symbol resolution and
// cross-reference queries. Two declarations with equal Kind/Name/Locus are
// represented by the same *Decl handle process-wide.
type Decl struct {
	Kind DeclKind
	Name string
	Locus
}

func (d *Decl) String() string {
	return fmt.Sprintf("%s(%s)@%s:%s", d.Kind, d.Name, d.Locus.File, d.Locus.Span)
}

// IsDef reports whether d is a defining form.
func (d *Decl) IsDef() bool {
	return d.Kind.IsDefinition()
}

type declKey struct {
	kind DeclKind
	name string
	file fileid.FileId
	span syntax.Span
}

var declTable = intern.NewTable[declKey, Decl]()

// InternDecl returns the canonical *Decl for (kind, name, locus), building
// it only on first insertion. Interning tables are process-wide and
// append-only: they are never cleared.
func InternDecl(kind DeclKind, name string, locus Locus) *Decl {
	key := declKey{kind: kind, name: name, file: locus.File, span: locus.Span}
	return declTable.Intern(key, func() Decl {
		return Decl{Kind: kind, Name: name, Locus: locus}
	})
}

// InternedDeclCount reports how many distinct declarations have been
// interned process-wide; exposed for tests of the interning invariant.
func InternedDeclCount() int {
	return declTable.Len()
}
