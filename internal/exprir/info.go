package exprir

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// ExprInfo is the output of lowering one source file: the interned IR tree
// plus the cross-reference tables downstream consumers (hover, completion,
// goto-definition, semantic tokens, rename) key off.
type ExprInfo struct {
	Fid      fileid.FileId
	Revision uint64

	// Source is the parsed source this info was lowered from, when the
	// caller went through the VFS source cache; nil for bare-tree lowers.
	Source *vfs.Source

	Root Expr

	// Resolves maps a reference's span to the *Ref node recording its
	// resolution chain.
	Resolves map[syntax.Span]*Ref

	// Exprs maps every lowered span to its IR node.
	Exprs map[syntax.Span]Expr

	// Imports maps an imported FileId to that module's export scope, as
	// observed at lowering time.
	Imports map[fileid.FileId]*Scope

	// Exports is the lexical scope this file exposes to importers.
	Exports *Scope

	Docstrings      map[*Decl]string
	ModuleDocstring string

	// Diagnostics collects non-fatal type-check findings from lowering (e.g.
	// a comparison between incomparable terms). Lowering never fails; these
	// are advisory only.
	Diagnostics []string
}

// IsExported reports whether decl is reachable from Exports — i.e. some
// name in the file's export scope resolves to decl, either directly or
// through a Ref's root definition. A name bound to a Select is not followed
// to its member and never matches.
func (ei *ExprInfo) IsExported(decl *Decl) bool {
	if ei.Exports == nil {
		return false
	}
	for _, name := range ei.Exports.Names() {
		v, _ := ei.Exports.Get(name)
		if exprRootDecl(v) == decl {
			return true
		}
	}
	return false
}

func exprRootDecl(e Expr) *Decl {
	switch v := e.(type) {
	case *DeclExpr:
		return v.Decl
	case *Ref:
		if v.Root != nil {
			return exprRootDecl(v.Root)
		}
		return v.Decl
	default:
		return nil
	}
}

// GetRefs returns every Ref in Resolves whose Decl is decl, in span order.
func (ei *ExprInfo) GetRefs(decl *Decl) []*Ref {
	var out []*Ref
	for _, ref := range ei.Resolves {
		if ref.Decl == decl {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span().Start != out[j].Span().Start {
			return out[i].Span().Start < out[j].Span().Start
		}
		return out[i].Span().End < out[j].Span().End
	})
	return out
}

// Hash computes an order-independent content hash of ei's cross-reference
// tables: resolves and imports are sorted by key before hashing, so two
// independent lowerings of identical source produce equal hashes.
func (ei *ExprInfo) Hash() uint64 {
	h := xxhash.New()

	writeUint(h, uint64(len(ei.Fid.Path())))
	h.Write([]byte(ei.Fid.String()))

	spans := make([]syntax.Span, 0, len(ei.Resolves))
	for s := range ei.Resolves {
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	for _, s := range spans {
		ref := ei.Resolves[s]
		writeUint(h, uint64(s.Start))
		writeUint(h, uint64(s.End))
		h.Write([]byte(ref.Decl.Name))
		writeUint(h, uint64(ref.Step))
	}

	fids := make([]fileid.FileId, 0, len(ei.Imports))
	for fid := range ei.Imports {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i].String() < fids[j].String() })
	for _, fid := range fids {
		h.Write([]byte(fid.String()))
		scope := ei.Imports[fid]
		for _, name := range scope.Names() {
			h.Write([]byte(name))
		}
	}

	return h.Sum64()
}

func writeUint(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
