package exprir

import (
	"github.com/hbollon/go-edlib"
)

// SuggestThreshold is the minimum Jaro-Winkler similarity for a candidate
// name to be offered as a "did you mean" suggestion.
const SuggestThreshold = 0.75

// Suggest returns the best-matching in-scope name for an unresolved
// reference, or "" if nothing clears SuggestThreshold.
func Suggest(name string, candidates []string) string {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if c == name {
			continue
		}
		score, err := edlib.StringsSimilarity(name, c, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > bestScore {
			bestScore = float64(score)
			best = c
		}
	}
	if bestScore < SuggestThreshold {
		return ""
	}
	return best
}

// SuggestForRef returns a suggestion for ref using every name visible in
// scope, or "" if ref is already resolved or nothing is close enough.
func SuggestForRef(ref *Ref, scope *Scope) string {
	if ref == nil || ref.Root != nil || scope == nil {
		return ""
	}
	return Suggest(ref.Decl.Name, scope.Names())
}
