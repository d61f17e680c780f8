package syntax

// Kind classifies a SyntaxNode. It covers the constructs the toy grammar
// supports: markup sequences, let/if/while/for, closures, calls, field
// access, import/include, show/set, context, return/break/continue, the
// unary/binary operators (including and/or), and content/code blocks.
type Kind int

const (
	KindError Kind = iota

	KindMarkup   // top-level or block-nested sequence of markup content
	KindText     // a run of plain text
	KindHeading  // "= Heading"
	KindEmph     // "_emph_"
	KindStrong   // "*strong*"
	KindCodeExpr // "#expr" embedded in markup

	KindCodeBlock    // "{ ... }"
	KindContentBlock // "[ ... ]"

	KindIdent
	KindNumber
	KindString
	KindBool
	KindNone
	KindAuto

	KindUnary  // op, operand
	KindBinary // lhs, op, rhs

	KindFieldAccess // target.field
	KindFuncCall    // callee(args)
	KindArgs        // argument list node, children are KindArg
	KindArg         // a single positional or named argument

	KindClosure  // params => body
	KindParams   // parameter list
	KindParam    // a single parameter, optionally named/spread

	KindLetBinding    // let name = init
	KindIfExpr        // if cond {then} else {else}
	KindWhileLoop      // while cond {body}
	KindForLoop        // for pattern in iter {body}
	KindBreakStmt
	KindContinueStmt
	KindReturnStmt
	KindSetRule   // set target(args)
	KindShowRule  // show [selector]: transform
	KindContextual // context expr
	KindImport    // import "path": items
	KindInclude   // include "path"
	KindImportItems
	KindImportItem // a single imported name, or "*" for Star
)

var kindNames = map[Kind]string{
	KindError:        "Error",
	KindMarkup:       "Markup",
	KindText:         "Text",
	KindHeading:      "Heading",
	KindEmph:         "Emph",
	KindStrong:       "Strong",
	KindCodeExpr:     "CodeExpr",
	KindCodeBlock:    "CodeBlock",
	KindContentBlock: "ContentBlock",
	KindIdent:        "Ident",
	KindNumber:       "Number",
	KindString:       "String",
	KindBool:         "Bool",
	KindNone:         "None",
	KindAuto:         "Auto",
	KindUnary:        "Unary",
	KindBinary:       "Binary",
	KindFieldAccess:  "FieldAccess",
	KindFuncCall:     "FuncCall",
	KindArgs:         "Args",
	KindArg:          "Arg",
	KindClosure:      "Closure",
	KindParams:       "Params",
	KindParam:        "Param",
	KindLetBinding:   "LetBinding",
	KindIfExpr:       "IfExpr",
	KindWhileLoop:    "WhileLoop",
	KindForLoop:      "ForLoop",
	KindBreakStmt:    "BreakStmt",
	KindContinueStmt: "ContinueStmt",
	KindReturnStmt:   "ReturnStmt",
	KindSetRule:      "SetRule",
	KindShowRule:     "ShowRule",
	KindContextual:   "Contextual",
	KindImport:       "Import",
	KindInclude:      "Include",
	KindImportItems:  "ImportItems",
	KindImportItem:   "ImportItem",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}
