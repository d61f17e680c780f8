package exprir

import (
	"fmt"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

// Importer resolves an imported FileId to that module's export scope. The
// project compiler supplies the concrete implementation backed by the VFS;
// lowering itself stays agnostic of how a module's exports were produced.
type Importer interface {
	ExportsOf(id fileid.FileId) (*Scope, bool)
	Resolve(from fileid.FileId, path string) (fileid.FileId, bool)
}

// lowerer carries the mutable bookkeeping threaded through one file's
// lowering pass.
type lowerer struct {
	fid      fileid.FileId
	importer Importer

	resolves map[syntax.Span]*Ref
	exprs    map[syntax.Span]Expr
	imports  map[fileid.FileId]*Scope
	docs     map[*Decl]string
	diags    []string
}

func (lw *lowerer) diagf(span syntax.Span, format string, args ...any) {
	lw.diags = append(lw.diags, span.String()+": "+fmt.Sprintf(format, args...))
}

// Lower lowers a parsed syntax tree for fid into an ExprInfo. importer may
// be nil, in which case import/include statements resolve with an empty
// export scope (the reference is recorded but unresolved).
func Lower(fid fileid.FileId, revision uint64, root *syntax.Node, importer Importer) *ExprInfo {
	lw := &lowerer{
		fid:      fid,
		importer: importer,
		resolves: map[syntax.Span]*Ref{},
		exprs:    map[syntax.Span]Expr{},
		imports:  map[fileid.FileId]*Scope{},
		docs:     map[*Decl]string{},
	}

	fileScope := NewScope(ScopeLexical, nil)
	bodyExprs, finalScope := lw.lowerSeq(root.Children, fileScope)
	rootExpr := &Block{baseExpr{root.Span}, bodyExprs}
	lw.exprs[root.Span] = rootExpr

	return &ExprInfo{
		Fid:         fid,
		Revision:    revision,
		Root:        rootExpr,
		Resolves:    lw.resolves,
		Exprs:       lw.exprs,
		Imports:     lw.imports,
		Exports:     finalScope,
		Docstrings:  lw.docs,
		Diagnostics: lw.diags,
	}
}

func (lw *lowerer) record(span syntax.Span, e Expr) Expr {
	lw.exprs[span] = e
	return e
}

// lowerSeq threads scope across a sequence of sibling statements the way a
// markup body or code block does: a `let`/named-function/import in one
// statement is visible to every later sibling.
func (lw *lowerer) lowerSeq(nodes []*syntax.Node, scope *Scope) ([]Expr, *Scope) {
	var out []Expr
	for _, n := range nodes {
		e, next := lw.lowerStmt(n, scope)
		scope = next
		if e != nil {
			out = append(out, e)
		}
	}
	return out, scope
}

// lowerStmt lowers one statement, returning its Expr (nil for break/continue
// and a bare return) and the scope visible to later siblings.
func (lw *lowerer) lowerStmt(n *syntax.Node, scope *Scope) (Expr, *Scope) {
	switch n.Kind {
	case syntax.KindCodeExpr:
		return lw.lowerStmt(n.Children[0], scope)
	case syntax.KindLetBinding:
		return lw.lowerLet(n, scope)
	case syntax.KindImport:
		return lw.lowerImport(n, scope)
	case syntax.KindInclude:
		return lw.record(n.Span, &Include{baseExpr{n.Span}, lw.lowerExpr(n.Children[0], scope)}), scope
	case syntax.KindShowRule:
		return lw.lowerShow(n, scope), scope
	case syntax.KindSetRule:
		return lw.lowerSet(n, scope), scope
	case syntax.KindBreakStmt, syntax.KindContinueStmt:
		return nil, scope
	case syntax.KindReturnStmt:
		if len(n.Children) == 0 {
			return nil, scope
		}
		return lw.lowerExpr(n.Children[0], scope), scope
	default:
		return lw.lowerExpr(n, scope), scope
	}
}

func (lw *lowerer) lowerLet(n *syntax.Node, scope *Scope) (Expr, *Scope) {
	nameNode := n.Children[0]
	decl := InternDecl(DeclVariable, nameNode.Text, Locus{lw.fid, nameNode.Span})
	pattern := &Pattern{baseExpr: baseExpr{nameNode.Span}, Simple: decl}
	var init Expr
	if len(n.Children) > 1 {
		init = lw.lowerExpr(n.Children[1], scope)
	}
	next := scope.Bind(nameNode.Text, &DeclExpr{baseExpr{nameNode.Span}, decl})
	return lw.record(n.Span, &Let{baseExpr{n.Span}, nameNode.Span, pattern, init}), next
}

func (lw *lowerer) lowerImport(n *syntax.Node, scope *Scope) (Expr, *Scope) {
	source := lw.lowerExpr(n.Children[0], scope)
	next := scope
	var decl *Decl
	var items []*Decl

	var fid fileid.FileId
	var resolved bool
	if lit, ok := literalText(n.Children[0]); ok && lw.importer != nil {
		fid, resolved = lw.importer.Resolve(lw.fid, lit)
	}
	var exportScope *Scope
	if resolved {
		exportScope, _ = lw.importer.ExportsOf(fid)
		lw.imports[fid] = exportScope
	}
	if exportScope == nil {
		exportScope = NewScope(ScopeModule, nil)
	}

	if len(n.Children) > 1 {
		itemsNode := n.Children[1]
		for _, it := range itemsNode.Children {
			if it.Text == "*" {
				lw.record(it.Span, &Star{baseExpr{it.Span}, source, exportScope})
				merged := exportScope.MergeInto(source)
				for _, nm := range merged.Names() {
					v, _ := merged.Get(nm)
					next = next.Bind(nm, v)
				}
				continue
			}
			idecl := InternDecl(DeclImport, it.Text, Locus{lw.fid, it.Span})
			items = append(items, idecl)
			var bound Expr = &DeclExpr{baseExpr{it.Span}, idecl}
			if v, ok := exportScope.Get(it.Text); ok {
				bound = v
			}
			next = next.Bind(it.Text, bound)
		}
	} else {
		// `import "path"` with no item list binds the module itself under
		// a name derived from the source literal.
		name := moduleNameOf(n.Children[0])
		decl = InternDecl(DeclModule, name, Locus{lw.fid, n.Span})
		next = next.Bind(name, &DeclExpr{baseExpr{n.Span}, decl})
	}

	return lw.record(n.Span, &Import{baseExpr{n.Span}, decl, source, items}), next
}

// literalText returns a string literal node's unquoted content.
func literalText(n *syntax.Node) (string, bool) {
	if n.Kind != syntax.KindString {
		return "", false
	}
	t := n.Text
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		return t[1 : len(t)-1], true
	}
	return t, true
}

func moduleNameOf(src *syntax.Node) string {
	if lit, ok := literalText(src); ok {
		// last path segment, stripped of a trailing .typ extension.
		end := len(lit)
		start := end
		for start > 0 && lit[start-1] != '/' {
			start--
		}
		name := lit[start:end]
		if len(name) > 4 && name[len(name)-4:] == ".typ" {
			name = name[:len(name)-4]
		}
		return name
	}
	return "module"
}

func (lw *lowerer) lowerShow(n *syntax.Node, scope *Scope) Expr {
	if len(n.Children) == 2 {
		return lw.record(n.Span, &Show{baseExpr{n.Span}, lw.lowerExpr(n.Children[0], scope), lw.lowerExpr(n.Children[1], scope)})
	}
	return lw.record(n.Span, &Show{baseExpr{n.Span}, nil, lw.lowerExpr(n.Children[0], scope)})
}

func (lw *lowerer) lowerSet(n *syntax.Node, scope *Scope) Expr {
	target := lw.lowerExpr(n.Children[0], scope)
	var args, cond Expr
	rest := n.Children[1:]
	if len(rest) > 0 && rest[0].Kind == syntax.KindArgs {
		args = lw.lowerArgs(rest[0], scope)
		rest = rest[1:]
	}
	if len(rest) > 0 {
		cond = lw.lowerExpr(rest[0], scope)
	}
	return lw.record(n.Span, &Set{baseExpr{n.Span}, target, args, cond})
}

// lowerExpr lowers a pure expression node (no scope-mutating side effect).
func (lw *lowerer) lowerExpr(n *syntax.Node, scope *Scope) Expr {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case syntax.KindCodeExpr:
		return lw.lowerExpr(n.Children[0], scope)
	case syntax.KindMarkup, syntax.KindCodeBlock, syntax.KindContentBlock:
		inner := NewScope(ScopeLexical, scope)
		exprs, _ := lw.lowerSeq(n.Children, inner)
		return lw.record(n.Span, &Block{baseExpr{n.Span}, exprs})
	case syntax.KindText:
		return lw.record(n.Span, &Literal{baseExpr{n.Span}, syntax.KindText, n.Text})
	case syntax.KindHeading, syntax.KindEmph, syntax.KindStrong:
		return lw.record(n.Span, &Element{baseExpr{n.Span}, n.Kind.String(), []Expr{
			&Literal{baseExpr{n.Span}, syntax.KindText, n.Text},
		}})
	case syntax.KindIdent:
		return lw.lowerIdent(n, scope)
	case syntax.KindNumber, syntax.KindString, syntax.KindBool, syntax.KindNone, syntax.KindAuto:
		return lw.record(n.Span, &Literal{baseExpr{n.Span}, n.Kind, n.Text})
	case syntax.KindUnary:
		return lw.record(n.Span, &Unary{baseExpr{n.Span}, n.Text, lw.lowerExpr(n.Children[0], scope)})
	case syntax.KindBinary:
		return lw.lowerBinary(n, scope)
	case syntax.KindFieldAccess:
		lhs := lw.lowerExpr(n.Children[0], scope)
		key := InternDecl(DeclVariable, n.Text, Locus{lw.fid, n.Span})
		return lw.record(n.Span, &Select{baseExpr{n.Span}, lhs, key})
	case syntax.KindFuncCall:
		callee := lw.lowerExpr(n.Children[0], scope)
		args := lw.lowerArgs(n.Children[1], scope)
		return lw.record(n.Span, &Apply{baseExpr{n.Span}, callee, args, n.Span})
	case syntax.KindArgs:
		return lw.lowerArgs(n, scope)
	case syntax.KindClosure:
		return lw.lowerClosure(n, scope)
	case syntax.KindIfExpr:
		return lw.lowerIf(n, scope)
	case syntax.KindWhileLoop:
		return lw.record(n.Span, &While{baseExpr{n.Span}, lw.lowerExpr(n.Children[0], scope), lw.lowerExpr(n.Children[1], scope)})
	case syntax.KindForLoop:
		return lw.lowerFor(n, scope)
	case syntax.KindContextual:
		return lw.record(n.Span, &Contextual{baseExpr{n.Span}, lw.lowerExpr(n.Children[0], scope)})
	case syntax.KindReturnStmt:
		if len(n.Children) == 0 {
			return nil
		}
		return lw.lowerExpr(n.Children[0], scope)
	case syntax.KindError:
		return lw.record(n.Span, &Literal{baseExpr{n.Span}, syntax.KindError, n.Text})
	default:
		return lw.record(n.Span, &Literal{baseExpr{n.Span}, n.Kind, n.Text})
	}
}

func (lw *lowerer) lowerBinary(n *syntax.Node, scope *Scope) Expr {
	lhs := lw.lowerExpr(n.Children[0], scope)
	rhs := lw.lowerExpr(n.Children[1], scope)
	b := &Binary{baseExpr{n.Span}, n.Text, lhs, rhs}
	checkBinaryTypes(lw, b)
	return lw.record(n.Span, b)
}

func (lw *lowerer) lowerIdent(n *syntax.Node, scope *Scope) Expr {
	ref := &Ref{baseExpr: baseExpr{n.Span}}
	if v, ok := scope.Get(n.Text); ok {
		ref.Decl = declOf(v, n.Text, lw.fid, n.Span)
		ref.Root = v
		ref.Step = stepOf(v)
		ref.Term = termOf(v)
	} else {
		ref.Decl = InternDecl(DeclReference, n.Text, Locus{lw.fid, n.Span})
		ref.Step = StepUnresolved
	}
	lw.resolves[n.Span] = ref
	return lw.record(n.Span, ref)
}

func declOf(v Expr, name string, fid fileid.FileId, span syntax.Span) *Decl {
	switch e := v.(type) {
	case *DeclExpr:
		return e.Decl
	case *Ref:
		return e.Decl
	default:
		return InternDecl(DeclVariable, name, Locus{fid, span})
	}
}

func stepOf(v Expr) RefStep {
	switch v.(type) {
	case *DeclExpr:
		return StepLexical
	case *Select:
		return StepField
	default:
		return StepLexical
	}
}

// termOf attaches a Value term when the resolved binding was rewritten
// through merge_into (an imported module member accessed transitively via
// Select) — its precise type is unknown, but its origin declaration is.
func termOf(v Expr) *Term {
	if sel, ok := v.(*Select); ok {
		return ValueTerm(sel.Key)
	}
	return nil
}

func (lw *lowerer) lowerArgs(n *syntax.Node, scope *Scope) Expr {
	items := make([]ArgExpr, 0, len(n.Children))
	for _, c := range n.Children {
		name := c.Text
		spread := false
		if len(name) >= 3 && name[:3] == "..." {
			spread = true
			name = name[3:]
		}
		var val Expr
		if len(c.Children) > 0 {
			val = lw.lowerExpr(c.Children[0], scope)
		}
		items = append(items, ArgExpr{Name: name, Spread: spread, Value: val, Origin: c.Span})
	}
	return lw.record(n.Span, &Args{baseExpr{n.Span}, items})
}

func (lw *lowerer) lowerClosure(n *syntax.Node, scope *Scope) Expr {
	paramsNode := n.Children[0]
	body := n.Children[1]

	inner := NewScope(ScopeFunction, scope)
	sig := Signature{}
	for _, pn := range paramsNode.Children {
		name := pn.Text
		spread := false
		if len(name) >= 3 && name[:3] == "..." {
			spread = true
			name = name[3:]
		}
		var defaultNode *syntax.Node
		if len(pn.Children) > 0 {
			defaultNode = pn.Children[0]
		}
		// A parenthesized positional parameter carries its name as a child
		// identifier rather than as node text.
		if name == "" && defaultNode != nil && defaultNode.Kind == syntax.KindIdent {
			name = defaultNode.Text
			defaultNode = nil
		}
		decl := InternDecl(DeclParam, name, Locus{lw.fid, pn.Span})
		inner = inner.Bind(name, &DeclExpr{baseExpr{pn.Span}, decl})
		switch {
		case spread:
			sig.Spread = decl
		case defaultNode != nil:
			sig.Named = append(sig.Named, NamedParam{Decl: decl, Default: lw.lowerExpr(defaultNode, scope)})
		default:
			sig.Positional = append(sig.Positional, &Pattern{baseExpr: baseExpr{pn.Span}, Simple: decl})
		}
	}

	bodyExpr := lw.lowerExpr(body, inner)
	return lw.record(n.Span, &Func{baseExpr{n.Span}, nil, sig, bodyExpr})
}

func (lw *lowerer) lowerIf(n *syntax.Node, scope *Scope) Expr {
	cond := lw.lowerExpr(n.Children[0], scope)
	then := lw.lowerExpr(n.Children[1], scope)
	var elseExpr Expr
	if len(n.Children) > 2 {
		elseExpr = lw.lowerExpr(n.Children[2], scope)
	}
	return lw.record(n.Span, &Conditional{baseExpr{n.Span}, cond, then, elseExpr})
}

func (lw *lowerer) lowerFor(n *syntax.Node, scope *Scope) Expr {
	nameNode := n.Children[0]
	iter := lw.lowerExpr(n.Children[1], scope)
	decl := InternDecl(DeclVariable, nameNode.Text, Locus{lw.fid, nameNode.Span})
	pattern := &Pattern{baseExpr: baseExpr{nameNode.Span}, Simple: decl}
	inner := scope.Bind(nameNode.Text, &DeclExpr{baseExpr{nameNode.Span}, decl})
	body := lw.lowerExpr(n.Children[2], inner)
	return lw.record(n.Span, &For{baseExpr{n.Span}, pattern, iter, body})
}
