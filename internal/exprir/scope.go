package exprir

// ScopeKind classifies how a Scope's members should be resolved.
type ScopeKind int

const (
	ScopeLexical ScopeKind = iota // a block/file's ordinary bindings
	ScopeModule                   // a module's export scope
	ScopeFunction                 // a closure's captured scope at definition site
	ScopeType                     // a built-in type's member scope
)

// Scope is a persistent ordered map from name to Expr. "Persistent" here
// means operations return a new Scope holding its own copy of the previous
// one's entries and index rather than mutating them in place, so a Scope
// captured by a closure is never invalidated by later bindings in the same
// lexical block.
type Scope struct {
	Kind    ScopeKind
	Parent  *Scope
	entries []scopeEntry
	index   map[string]int // name -> index into entries, most recent wins
}

type scopeEntry struct {
	name  string
	value Expr
}

// NewScope builds an empty scope of the given kind with an optional parent
// for lexical lookup fallthrough.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, index: map[string]int{}}
}

// Bind returns a new Scope with name bound to value, leaving the receiver
// untouched (persistent update).
func (s *Scope) Bind(name string, value Expr) *Scope {
	next := &Scope{
		Kind:    s.Kind,
		Parent:  s.Parent,
		entries: append(append([]scopeEntry(nil), s.entries...), scopeEntry{name, value}),
		index:   make(map[string]int, len(s.index)+1),
	}
	for k, v := range s.index {
		next.index[k] = v
	}
	next.index[name] = len(next.entries) - 1
	return next
}

// Get looks up name in this scope, then in each Parent in turn. A closure's
// function scope has its defining scope as Parent, so names captured from
// the definition site resolve through this chain.
func (s *Scope) Get(name string) (Expr, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if i, ok := cur.index[name]; ok {
			return cur.entries[i].value, true
		}
	}
	return nil, false
}

// Names returns the bound names in binding order (most recent last),
// deduplicated by most-recent-wins.
func (s *Scope) Names() []string {
	seen := make(map[string]bool, len(s.entries))
	var names []string
	for i := len(s.entries) - 1; i >= 0; i-- {
		if seen[s.entries[i].name] {
			continue
		}
		seen[s.entries[i].name] = true
		names = append(names, s.entries[i].name)
	}
	// restore definition order
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// Len reports the number of distinct bound names.
func (s *Scope) Len() int { return len(s.Names()) }

// MergeInto rewrites every member of s as select(source, name), producing
// the scope a reference like `m.x` resolves `x` against once `m` is known
// to be bound to source. This matches how module/function/type scopes
// expose their members lazily rather than by inlining a copy.
func (s *Scope) MergeInto(source Expr) *Scope {
	out := NewScope(s.Kind, nil)
	for _, name := range s.Names() {
		key := InternDecl(DeclVariable, name, Locus{})
		out = out.Bind(name, &Select{Lhs: source, Key: key})
	}
	return out
}
