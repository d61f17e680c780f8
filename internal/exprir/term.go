package exprir

// TermKind classifies an inferred Typst value type attached to a Ref or a
// reified Type expression. This is a coarse structural lattice, not a full
// type system: lowering attaches just enough precision to drive semantic
// tokens, completion, and hover.
type TermKind int

const (
	TermUnknown TermKind = iota
	TermContent
	TermString
	TermInt
	TermFloat
	TermBool
	TermNone
	TermAuto
	TermFunction
	TermModule
	TermType
	TermArray
	TermDict
	TermValue // a value bound in an imported module whose precise shape is unknown
)

func (k TermKind) String() string {
	names := [...]string{"Unknown", "Content", "String", "Int", "Float", "Bool", "None", "Auto",
		"Function", "Module", "Type", "Array", "Dict", "Value"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Term is an inferred term type. Decl is set only on TermValue terms built
// by ValueTerm, where it names the member declaration of the Select the
// binding resolved to; terms of every other kind leave it nil.
type Term struct {
	Kind TermKind
	Decl *Decl
}

func ValueTerm(decl *Decl) *Term { return &Term{Kind: TermValue, Decl: decl} }

// comparable reports whether two term kinds may be compared with
// ==/!=/</<=/>/>=; used by lowering's binary-comparison type check.
func comparable(a, b TermKind) bool {
	if a == TermUnknown || b == TermUnknown {
		return true
	}
	numeric := func(k TermKind) bool { return k == TermInt || k == TermFloat }
	if numeric(a) && numeric(b) {
		return true
	}
	return a == b
}

// assignable reports whether a value of kind src may be assigned into a
// slot previously inferred as dst.
func assignable(dst, src TermKind) bool {
	if dst == TermUnknown || src == TermUnknown {
		return true
	}
	if dst == src {
		return true
	}
	if dst == TermFloat && src == TermInt {
		return true
	}
	return false
}
