package exprir

// Type inference is structural and bidirectional on the IR: literals seed a
// concrete TermKind, Refs propagate their resolved binding's inferred type,
// and a handful of operators constrain their operands' types. Inference
// happens inline during lowering (checkBinaryTypes is called as each
// Binary node is built) rather than as a separate pass, since the IR is
// built bottom-up and every operand's Term is already known by the time its
// parent Binary node is constructed.

// termOfExpr returns the best-effort inferred term for an already-lowered
// Expr, used by checkBinaryTypes to decide whether to warn-tag a mismatch.
func termOfExpr(e Expr) *Term {
	switch v := e.(type) {
	case *Literal:
		return literalTerm(v)
	case *Ref:
		return v.Term
	case *Binary:
		return binaryResultTerm(v)
	case *Unary:
		if v.Op == "not" {
			return &Term{Kind: TermBool}
		}
		return termOfExpr(v.Operand)
	default:
		return nil
	}
}

func literalTerm(l *Literal) *Term {
	switch l.Kind.String() {
	case "Number":
		return &Term{Kind: TermFloat}
	case "String":
		return &Term{Kind: TermString}
	case "Bool":
		return &Term{Kind: TermBool}
	case "None":
		return &Term{Kind: TermNone}
	case "Auto":
		return &Term{Kind: TermAuto}
	case "Text":
		return &Term{Kind: TermContent}
	default:
		return nil
	}
}

func binaryResultTerm(b *Binary) *Term {
	switch b.Op {
	case "and", "or", "==", "!=", "<", "<=", ">", ">=", "in":
		return &Term{Kind: TermBool}
	default:
		return termOfExpr(b.Lhs)
	}
}

// checkBinaryTypes performs the operator type checks: comparisons
// constrain comparability on both sides, `in` constrains its right-hand
// side to a container (`not in` is not a binary operator of the parser and
// is not checked), and/or constrain both sides to boolean, and assignment
// constrains the
// right-hand type to be assignable into the left-hand slot. Mismatches are
// tolerated, lowering never fails; they are recorded as
// diagnostics on the lowerer rather than aborting the lower.
func checkBinaryTypes(lw *lowerer, b *Binary) {
	lt := termOfExpr(b.Lhs)
	rt := termOfExpr(b.Rhs)
	if lt == nil || rt == nil {
		return
	}
	switch b.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		if !comparable(lt.Kind, rt.Kind) {
			lw.diagf(b.Span(), "%s not comparable to %s", lt.Kind, rt.Kind)
		}
	case "in":
		if rt.Kind != TermArray && rt.Kind != TermDict && rt.Kind != TermString && rt.Kind != TermUnknown {
			lw.diagf(b.Span(), "right-hand side of 'in' is not a container (%s)", rt.Kind)
		}
	case "and", "or":
		if lt.Kind != TermBool && lt.Kind != TermUnknown {
			lw.diagf(b.Span(), "left-hand side of %q is not boolean (%s)", b.Op, lt.Kind)
		}
		if rt.Kind != TermBool && rt.Kind != TermUnknown {
			lw.diagf(b.Span(), "right-hand side of %q is not boolean (%s)", b.Op, rt.Kind)
		}
	case "=":
		if !assignable(lt.Kind, rt.Kind) {
			lw.diagf(b.Span(), "cannot assign %s into a %s slot", rt.Kind, lt.Kind)
		}
	}
}
