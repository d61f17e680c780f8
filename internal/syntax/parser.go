package syntax

import (
	"fmt"
	"strings"
)

// Parse lexes and parses src as a Typst-flavored document, returning the
// top-level KindMarkup root node. Parse never fails outright: malformed
// input is folded into KindError nodes so downstream CFG construction can
// still make progress.
func Parse(src []byte) *Node {
	p := &parser{src: src}
	return p.parseMarkup(len(src))
}

type parser struct {
	src []byte
	pos int
}

// parseMarkup scans markup content up to (not including) end, recognizing
// headings, emphasis/strong runs, and '#'-introduced code expressions.
func (p *parser) parseMarkup(end int) *Node {
	start := p.posMark()
	var children []*Node
	i := p.pos
	textStart := i
	flushText := func(upto int) {
		if upto > textStart {
			children = append(children, New(KindText, Span{uint32(textStart), uint32(upto)}, string(p.src[textStart:upto])))
		}
	}
	for i < end {
		c := p.src[i]
		switch {
		case c == '#':
			flushText(i)
			p.pos = i + 1
			expr := p.parseCodeExpr()
			children = append(children, New(KindCodeExpr, Span{uint32(i), uint32(p.pos)}, "", expr))
			i = p.pos
			textStart = i
		case c == '=' && (i == 0 || p.src[i-1] == '\n') && i+1 < len(p.src) && p.src[i+1] == ' ':
			flushText(i)
			lineEnd := i
			for lineEnd < end && p.src[lineEnd] != '\n' {
				lineEnd++
			}
			text := strings.TrimLeft(string(p.src[i:lineEnd]), "= ")
			children = append(children, New(KindHeading, Span{uint32(i), uint32(lineEnd)}, text))
			i = lineEnd
			textStart = i
		case c == '*':
			flushText(i)
			j := i + 1
			for j < end && p.src[j] != '*' {
				j++
			}
			closeAt := j
			if j < end {
				j++
			}
			children = append(children, New(KindStrong, Span{uint32(i), uint32(j)}, string(p.src[i+1:closeAt])))
			i = j
			textStart = i
		case c == '_':
			flushText(i)
			j := i + 1
			for j < end && p.src[j] != '_' {
				j++
			}
			closeAt := j
			if j < end {
				j++
			}
			children = append(children, New(KindEmph, Span{uint32(i), uint32(j)}, string(p.src[i+1:closeAt])))
			i = j
			textStart = i
		case c == ']':
			// closing of an enclosing content block; stop here, caller
			// (code parser) consumes the ']'.
			flushText(i)
			p.pos = i
			return New(KindMarkup, Span{start, uint32(i)}, "", children...)
		default:
			i++
		}
	}
	flushText(end)
	p.pos = end
	return New(KindMarkup, Span{start, uint32(end)}, "", children...)
}

func (p *parser) posMark() uint32 { return uint32(p.pos) }

// parseCodeExpr parses one code statement/expression after a '#' marker,
// dispatching on the leading keyword.
func (p *parser) parseCodeExpr() *Node {
	lx := newCodeLexer(p.src, p.pos)
	save := lx.pos
	tk := lx.next()

	if tk.kind == tKeyword {
		switch tk.text {
		case "let":
			return p.parseLet(lx)
		case "if":
			return p.parseIf(lx)
		case "while":
			return p.parseWhile(lx)
		case "for":
			return p.parseFor(lx)
		case "import":
			return p.parseImport(lx)
		case "include":
			return p.parseInclude(lx)
		case "show":
			return p.parseShow(lx)
		case "set":
			return p.parseSet(lx)
		case "context":
			return p.parseContext(lx)
		case "return":
			return p.parseReturn(lx)
		case "break":
			p.pos = lx.pos
			return New(KindBreakStmt, tk.span, "")
		case "continue":
			p.pos = lx.pos
			return New(KindContinueStmt, tk.span, "")
		}
	}

	lx.pos = save
	e := p.parseExpr(lx, precOr)
	p.pos = lx.pos
	return e
}

func (p *parser) errNode(span Span, msg string) *Node {
	return New(KindError, span, msg)
}

// --- statement forms ---

func (p *parser) parseLet(lx *codeLexer) *Node {
	span0 := lx.pos
	name := lx.next()
	var pattern *Node
	if name.kind == tIdent {
		pattern = New(KindIdent, name.span, name.text)
	} else {
		pattern = p.errNode(name.span, "expected binding name after let")
	}
	save := lx.pos
	eq := lx.next()
	var init *Node
	if eq.kind == tOp && eq.text == "=" {
		init = p.parseExpr(lx, precOr)
	} else {
		lx.pos = save
	}
	p.pos = lx.pos
	var kids []*Node
	kids = append(kids, pattern)
	if init != nil {
		kids = append(kids, init)
	}
	return New(KindLetBinding, Span{uint32(span0), uint32(lx.pos)}, "", kids...)
}

func (p *parser) parseIf(lx *codeLexer) *Node {
	start := lx.pos
	cond := p.parseExpr(lx, precOr)
	then := p.parseBlockArg(lx)
	var elseNode *Node
	save := lx.pos
	tk := lx.next()
	if tk.kind == tKeyword && tk.text == "else" {
		save2 := lx.pos
		tk2 := lx.next()
		if tk2.kind == tKeyword && tk2.text == "if" {
			elseNode = p.parseIf(lx)
		} else {
			lx.pos = save2
			elseNode = p.parseBlockArg(lx)
		}
	} else {
		lx.pos = save
	}
	p.pos = lx.pos
	kids := []*Node{cond, then}
	if elseNode != nil {
		kids = append(kids, elseNode)
	}
	return New(KindIfExpr, Span{uint32(start), uint32(lx.pos)}, "", kids...)
}

func (p *parser) parseWhile(lx *codeLexer) *Node {
	start := lx.pos
	cond := p.parseExpr(lx, precOr)
	body := p.parseBlockArg(lx)
	p.pos = lx.pos
	return New(KindWhileLoop, Span{uint32(start), uint32(lx.pos)}, "", cond, body)
}

func (p *parser) parseFor(lx *codeLexer) *Node {
	start := lx.pos
	name := lx.next()
	pattern := New(KindIdent, name.span, name.text)
	lx.next() // 'in'
	iter := p.parseExpr(lx, precOr)
	body := p.parseBlockArg(lx)
	p.pos = lx.pos
	return New(KindForLoop, Span{uint32(start), uint32(lx.pos)}, "", pattern, iter, body)
}

func (p *parser) parseImport(lx *codeLexer) *Node {
	start := lx.pos
	src := p.parseExpr(lx, precUnary)
	save := lx.pos
	tk := lx.next()
	var items *Node
	if tk.kind == tColon {
		items = p.parseImportItems(lx)
	} else {
		lx.pos = save
	}
	p.pos = lx.pos
	kids := []*Node{src}
	if items != nil {
		kids = append(kids, items)
	}
	return New(KindImport, Span{uint32(start), uint32(lx.pos)}, "", kids...)
}

func (p *parser) parseImportItems(lx *codeLexer) *Node {
	start := lx.pos
	var items []*Node
	for {
		tk := lx.next()
		if tk.kind == tOp && tk.text == "*" {
			items = append(items, New(KindImportItem, tk.span, "*"))
		} else if tk.kind == tIdent {
			items = append(items, New(KindImportItem, tk.span, tk.text))
		} else {
			break
		}
		save := lx.pos
		sep := lx.next()
		if sep.kind != tComma {
			lx.pos = save
			break
		}
	}
	return New(KindImportItems, Span{uint32(start), uint32(lx.pos)}, "", items...)
}

func (p *parser) parseInclude(lx *codeLexer) *Node {
	start := lx.pos
	src := p.parseExpr(lx, precUnary)
	p.pos = lx.pos
	return New(KindInclude, Span{uint32(start), uint32(lx.pos)}, "", src)
}

func (p *parser) parseShow(lx *codeLexer) *Node {
	start := lx.pos
	save := lx.pos
	var selector *Node
	// Peek for ":" immediately (unconditional show) vs a selector first.
	first := p.parseExpr(lx, precOr)
	tk := lx.next()
	if tk.kind == tColon {
		// first was actually the selector only if followed by ':' - but if
		// 'first' already consumed through a colon-less expr, treat it as
		// selector and continue to edit.
		selector = first
		edit := p.parseExpr(lx, precOr)
		p.pos = lx.pos
		return New(KindShowRule, Span{uint32(start), uint32(lx.pos)}, "", selector, edit)
	}
	lx.pos = save
	edit := p.parseExpr(lx, precOr)
	p.pos = lx.pos
	return New(KindShowRule, Span{uint32(start), uint32(lx.pos)}, "", edit)
}

func (p *parser) parseSet(lx *codeLexer) *Node {
	start := lx.pos
	target := p.parseExpr(lx, precUnary)
	args := p.parseArgsIfPresent(lx)
	var cond *Node
	save := lx.pos
	tk := lx.next()
	if tk.kind == tKeyword && tk.text == "if" {
		cond = p.parseExpr(lx, precOr)
	} else {
		lx.pos = save
	}
	p.pos = lx.pos
	kids := []*Node{target}
	if args != nil {
		kids = append(kids, args)
	}
	if cond != nil {
		kids = append(kids, cond)
	}
	return New(KindSetRule, Span{uint32(start), uint32(lx.pos)}, "", kids...)
}

func (p *parser) parseContext(lx *codeLexer) *Node {
	start := lx.pos
	inner := p.parseBlockArg(lx)
	p.pos = lx.pos
	return New(KindContextual, Span{uint32(start), uint32(lx.pos)}, "", inner)
}

func (p *parser) parseReturn(lx *codeLexer) *Node {
	start := lx.pos
	save := lx.pos
	tk := lx.next()
	if tk.kind == tRBrace || tk.kind == tSemicolon || tk.kind == tEOF {
		lx.pos = save
		p.pos = lx.pos
		return New(KindReturnStmt, Span{uint32(start), uint32(lx.pos)}, "")
	}
	lx.pos = save
	val := p.parseExpr(lx, precOr)
	p.pos = lx.pos
	return New(KindReturnStmt, Span{uint32(start), uint32(lx.pos)}, "", val)
}

// parseBlockArg parses a `{ code block }` or `[ content block ]` serving as
// a control construct's body.
func (p *parser) parseBlockArg(lx *codeLexer) *Node {
	save := lx.pos
	tk := lx.next()
	switch tk.kind {
	case tLBrace:
		return p.parseCodeBlockBody(lx, tk.span.Start)
	case tLBracket:
		return p.parseContentBlockBody(lx, tk.span.Start)
	default:
		lx.pos = save
		return p.parseExpr(lx, precOr)
	}
}

func (p *parser) parseCodeBlockBody(lx *codeLexer, braceStart uint32) *Node {
	var stmts []*Node
	for {
		save := lx.pos
		tk := lx.next()
		if tk.kind == tRBrace || tk.kind == tEOF {
			end := tk.span.End
			return New(KindCodeBlock, Span{braceStart, end}, "", stmts...)
		}
		if tk.kind == tSemicolon {
			continue
		}
		lx.pos = save
		stmt := p.parseCodeStmt(lx)
		stmts = append(stmts, stmt)
	}
}

// parseCodeStmt parses one statement inside a code block (same dispatch as
// parseCodeExpr but operating on an already-constructed lexer).
func (p *parser) parseCodeStmt(lx *codeLexer) *Node {
	save := lx.pos
	tk := lx.next()
	if tk.kind == tKeyword {
		switch tk.text {
		case "let":
			return p.parseLet(lx)
		case "if":
			return p.parseIf(lx)
		case "while":
			return p.parseWhile(lx)
		case "for":
			return p.parseFor(lx)
		case "import":
			return p.parseImport(lx)
		case "include":
			return p.parseInclude(lx)
		case "show":
			return p.parseShow(lx)
		case "set":
			return p.parseSet(lx)
		case "context":
			return p.parseContext(lx)
		case "return":
			return p.parseReturn(lx)
		case "break":
			return New(KindBreakStmt, tk.span, "")
		case "continue":
			return New(KindContinueStmt, tk.span, "")
		}
	}
	lx.pos = save
	return p.parseExpr(lx, precOr)
}

func (p *parser) parseContentBlockBody(lx *codeLexer, bracketStart uint32) *Node {
	sub := &parser{src: p.src, pos: int(bracketStart) + 1}
	markup := sub.parseMarkup(len(p.src))
	lx.pos = sub.pos
	save := lx.pos
	tk := lx.next()
	end := tk.span.End
	if tk.kind != tRBracket {
		lx.pos = save
	}
	return New(KindContentBlock, Span{bracketStart, end}, "", markup.Children...)
}

// --- expression parsing (precedence climbing) ---

type prec int

const (
	precOr prec = iota
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
)

func (p *parser) parseExpr(lx *codeLexer, min prec) *Node {
	left := p.parseUnary(lx)
	for {
		save := lx.pos
		tk := lx.next()
		opPrec, op, ok := binOpPrec(tk)
		if !ok || opPrec < min {
			lx.pos = save
			return left
		}
		right := p.parseExpr(lx, opPrec+1)
		left = New(KindBinary, left.Span.Join(right.Span), op, left, right)
	}
}

func binOpPrec(tk token) (prec, string, bool) {
	switch {
	case tk.kind == tKeyword && tk.text == "or":
		return precOr, "or", true
	case tk.kind == tKeyword && tk.text == "and":
		return precAnd, "and", true
	case tk.kind == tKeyword && tk.text == "in":
		return precCompare, "in", true
	case tk.kind == tOp && (tk.text == "==" || tk.text == "!=" || tk.text == "<" || tk.text == "<=" || tk.text == ">" || tk.text == ">="):
		return precCompare, tk.text, true
	case tk.kind == tOp && (tk.text == "+" || tk.text == "-"):
		return precAdditive, tk.text, true
	case tk.kind == tOp && (tk.text == "*" || tk.text == "/"):
		return precMultiplicative, tk.text, true
	case tk.kind == tOp && tk.text == "=":
		return precOr, "=", true
	default:
		return 0, "", false
	}
}

func (p *parser) parseUnary(lx *codeLexer) *Node {
	save := lx.pos
	tk := lx.next()
	if (tk.kind == tOp && (tk.text == "-" || tk.text == "+")) || (tk.kind == tKeyword && tk.text == "not") {
		operand := p.parseUnary(lx)
		op := tk.text
		return New(KindUnary, tk.span.Join(operand.Span), op, operand)
	}
	lx.pos = save
	return p.parsePostfix(lx)
}

func (p *parser) parsePostfix(lx *codeLexer) *Node {
	expr := p.parsePrimary(lx)
	for {
		save := lx.pos
		tk := lx.next()
		switch {
		case tk.kind == tDot:
			name := lx.next()
			expr = New(KindFieldAccess, expr.Span.Join(name.span), name.text, expr)
		case tk.kind == tLParen:
			args := p.parseArgList(lx, tRParen)
			expr = New(KindFuncCall, expr.Span.Join(args.Span), "", expr, args)
		default:
			lx.pos = save
			return expr
		}
	}
}

func (p *parser) parseArgsIfPresent(lx *codeLexer) *Node {
	save := lx.pos
	tk := lx.next()
	if tk.kind != tLParen {
		lx.pos = save
		return nil
	}
	return p.parseArgList(lx, tRParen)
}

func (p *parser) parseArgList(lx *codeLexer, closeKind tokKind) *Node {
	start := lx.pos - 1
	var args []*Node
	for {
		save := lx.pos
		tk := lx.next()
		if tk.kind == closeKind || tk.kind == tEOF {
			return New(KindArgs, Span{uint32(start), tk.span.End}, "", args...)
		}
		lx.pos = save
		args = append(args, p.parseArg(lx))
		save2 := lx.pos
		sep := lx.next()
		if sep.kind != tComma {
			lx.pos = save2
		}
	}
}

func (p *parser) parseArg(lx *codeLexer) *Node {
	start := lx.pos
	save := lx.pos
	spreadTk := lx.next()
	spread := spreadTk.kind == tDotDotDot
	if !spread {
		lx.pos = save
	}
	// named arg: ident ':' value
	save2 := lx.pos
	nameTk := lx.next()
	if nameTk.kind == tIdent {
		save3 := lx.pos
		colon := lx.next()
		if colon.kind == tColon {
			val := p.parseExpr(lx, precOr)
			n := New(KindArg, Span{uint32(start), val.Span.End}, nameTk.text, val)
			if spread {
				n.Text = "..." + nameTk.text
			}
			return n
		}
		lx.pos = save3
	}
	lx.pos = save2
	val := p.parseExpr(lx, precOr)
	text := ""
	if spread {
		text = "..."
	}
	return New(KindArg, Span{uint32(start), val.Span.End}, text, val)
}

func (p *parser) parsePrimary(lx *codeLexer) *Node {
	save := lx.pos
	tk := lx.next()
	switch {
	case tk.kind == tIdent:
		// closure: ident '=>' body
		save2 := lx.pos
		arrow := lx.next()
		if arrow.kind == tArrow {
			param := New(KindParam, tk.span, tk.text)
			params := New(KindParams, tk.span, "", param)
			body := p.parseExpr(lx, precOr)
			return New(KindClosure, tk.span.Join(body.Span), "", params, body)
		}
		lx.pos = save2
		return New(KindIdent, tk.span, tk.text)
	case tk.kind == tNumber:
		return New(KindNumber, tk.span, tk.text)
	case tk.kind == tString:
		return New(KindString, tk.span, tk.text)
	case tk.kind == tKeyword && tk.text == "true":
		return New(KindBool, tk.span, "true")
	case tk.kind == tKeyword && tk.text == "false":
		return New(KindBool, tk.span, "false")
	case tk.kind == tKeyword && tk.text == "none":
		return New(KindNone, tk.span, "none")
	case tk.kind == tKeyword && tk.text == "auto":
		return New(KindAuto, tk.span, "auto")
	case tk.kind == tLParen:
		return p.parseParenOrClosure(lx, tk.span.Start)
	case tk.kind == tLBrace:
		return p.parseCodeBlockBody(lx, tk.span.Start)
	case tk.kind == tLBracket:
		return p.parseContentBlockBody(lx, tk.span.Start)
	default:
		lx.pos = save
		return p.errNode(tk.span, fmt.Sprintf("unexpected token %q", tk.text))
	}
}

// parseParenOrClosure disambiguates `(expr)`, `(a, b)` array/dict literal,
// and `(a, b) => body` closure parameter lists.
func (p *parser) parseParenOrClosure(lx *codeLexer, start uint32) *Node {
	save := lx.pos
	var items []*Node
	closeAt := uint32(save)
	for {
		s := lx.pos
		tk := lx.next()
		if tk.kind == tRParen {
			closeAt = tk.span.End
			break
		}
		if tk.kind == tEOF {
			closeAt = tk.span.End
			break
		}
		lx.pos = s
		items = append(items, p.parseArg(lx))
		s2 := lx.pos
		sep := lx.next()
		if sep.kind != tComma {
			lx.pos = s2
			s3 := lx.pos
			tk2 := lx.next()
			if tk2.kind == tRParen {
				closeAt = tk2.span.End
			} else {
				lx.pos = s3
			}
			break
		}
	}

	save2 := lx.pos
	arrow := lx.next()
	if arrow.kind == tArrow {
		var params []*Node
		for _, it := range items {
			params = append(params, New(KindParam, it.Span, it.Text, it.Children...))
		}
		paramsNode := New(KindParams, Span{start, closeAt}, "", params...)
		body := p.parseExpr(lx, precOr)
		return New(KindClosure, Span{start, body.Span.End}, "", paramsNode, body)
	}
	lx.pos = save2

	if len(items) == 1 && items[0].Text == "" {
		inner := items[0].Children[0]
		return New(KindCodeExpr, Span{start, closeAt}, "", inner)
	}
	return New(KindArgs, Span{start, closeAt}, "dict-or-array", items...)
}
