package exprir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
)

func lowerSrc(t *testing.T, src string) *ExprInfo {
	t.Helper()
	root := syntax.Parse([]byte(src))
	fid := fileid.New("/a.typ")
	return Lower(fid, 2, root, nil)
}

func TestLowerLetThenReference(t *testing.T) {
	info := lowerSrc(t, "#let x = 1\n#x + 1")

	var ref *Ref
	for _, r := range info.Resolves {
		if r.Decl.Name == "x" {
			ref = r
		}
	}
	require.NotNil(t, ref, "expected a resolved reference to x")
	assert.NotNil(t, ref.Root, "x should resolve to its let-binding")
	assert.Equal(t, StepLexical, ref.Step)
}

func TestLowerUnresolvedReference(t *testing.T) {
	info := lowerSrc(t, "#y")

	var ref *Ref
	for _, r := range info.Resolves {
		ref = r
	}
	require.NotNil(t, ref)
	assert.Nil(t, ref.Root, "an unbound identifier must resolve to root=None")
	assert.Equal(t, StepUnresolved, ref.Step)
}

func TestLowerFieldAccessChain(t *testing.T) {
	info := lowerSrc(t, "#a.b.c")

	require.IsType(t, &Block{}, info.Root)
	block := info.Root.(*Block)
	require.Len(t, block.Exprs, 1)

	outer, ok := block.Exprs[0].(*Select)
	require.True(t, ok, "a.b.c must lower to a Select")
	assert.Equal(t, "c", outer.Key.Name)

	mid, ok := outer.Lhs.(*Select)
	require.True(t, ok, "a.b.c's lhs must itself be a Select for a.b")
	assert.Equal(t, "b", mid.Key.Name)

	_, ok = mid.Lhs.(*Ref)
	assert.True(t, ok, "innermost lhs must be the Ref to a")
}

func TestLowerClosureParamsShadowOuterScope(t *testing.T) {
	info := lowerSrc(t, "#let x = 1\n#(x) => x + 1")

	// The newline between the two code expressions lowers to a text literal.
	block := info.Root.(*Block)
	require.Len(t, block.Exprs, 3)
	fn, ok := block.Exprs[2].(*Func)
	require.True(t, ok)
	require.Len(t, fn.Sig.Positional, 1)
	assert.Equal(t, "x", fn.Sig.Positional[0].Simple.Name)

	bin, ok := fn.Body.(*Binary)
	require.True(t, ok)
	ref, ok := bin.Lhs.(*Ref)
	require.True(t, ok)
	assert.Same(t, fn.Sig.Positional[0].Simple, ref.Decl, "x in the body must resolve to the parameter, not the outer let")
}

func TestHashEqualAcrossTwoIndependentLowerings(t *testing.T) {
	i1 := lowerSrc(t, "#let x = 1")
	i2 := lowerSrc(t, "#let x = 1")
	assert.Equal(t, i1.Hash(), i2.Hash(), "two lowerings of identical source must hash equal")
}

func TestBinaryAndOrShortCircuitLowering(t *testing.T) {
	info := lowerSrc(t, "#true and false")
	block := info.Root.(*Block)
	bin, ok := block.Exprs[0].(*Binary)
	require.True(t, ok)
	assert.Equal(t, "and", bin.Op)
}
