package syntax

// Node is a single syntax tree node: a kind, the span of source it covers,
// an optional literal payload (identifier text, string/number text, operator
// text), and its ordered children. Operators are carried as Text on the
// node itself (e.g. a KindBinary node's Text is "and", "==", "+", ...).
type Node struct {
	Kind     Kind
	Span     Span
	Text     string
	Children []*Node
}

// New builds a node covering the join of its children's spans when span is
// the zero value.
func New(kind Kind, span Span, text string, children ...*Node) *Node {
	if span == (Span{}) {
		for _, c := range children {
			if c != nil {
				span = span.Join(c.Span)
			}
		}
	}
	return &Node{Kind: kind, Span: span, Text: text, Children: children}
}

// Walk calls visit for n and every descendant, pre-order.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		Walk(c, visit)
	}
}
