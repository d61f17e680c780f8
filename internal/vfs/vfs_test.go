package vfs

import (
	"testing"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver resolves every FileId to "<root><path>" for test purposes.
type mapResolver struct {
	root string
}

func (r mapResolver) PathForId(id fileid.FileId) (fileid.PathResolution, error) {
	return fileid.PathResolution{AbsPath: r.root + id.Path()}, nil
}

func noopParse(id fileid.FileId, data []byte) (any, *ferrors.FileError) {
	return string(data), nil
}

func newTestVfs() (*Vfs, *MapAccessModel) {
	access := NewMapAccessModel()
	return New(mapResolver{root: "/work"}, access, noopParse), access
}

func TestVfsMonotonicity(t *testing.T) {
	v, _ := newTestVfs()
	rev0 := v.Revision()
	require.Equal(t, uint64(2), rev0)

	v.MapShadow("/work/a.typ", Ok(NewBytes([]byte("= A"))))
	rev1 := v.Revision()
	assert.Equal(t, rev0+1, rev1, "a content-changing mutation must advance the revision by exactly one")

	// Mapping the identical content again is a no-op: revision must not move.
	v.MapShadow("/work/a.typ", Ok(NewBytes([]byte("= A"))))
	assert.Equal(t, rev1, v.Revision(), "a no-op mutation must not advance the revision")
}

func TestVfsReadDeterminism(t *testing.T) {
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")
	v.MapShadowById(id, Ok(NewBytes([]byte("= A"))))

	s1 := v.Read(id)
	s2 := v.Read(id)
	assert.True(t, s1.Equal(s2), "two reads of the same id at the same revision must be equal")
}

func TestVfsSourceIdentity(t *testing.T) {
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")

	v.MapShadowById(id, Ok(NewBytes([]byte("= A"))))
	src1, err := v.Source(id)
	require.Nil(t, err)

	// Re-mapping identical bytes is a no-op, so the revision does not move
	// and the same Source pointer must be returned.
	v.MapShadowById(id, Ok(NewBytes([]byte("= A"))))
	src2, err := v.Source(id)
	require.Nil(t, err)

	assert.Same(t, src1, src2, "identical content must yield the pointer-identical Source")
}

func TestVfsIsCleanCompile(t *testing.T) {
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")
	v.MapShadowById(id, Ok(NewBytes([]byte("= A"))))
	_ = v.Read(id)

	rev := v.Revision()
	assert.True(t, v.IsCleanCompile(rev, []fileid.FileId{id}))

	v.MapShadowById(id, Ok(NewBytes([]byte("= B"))))
	assert.False(t, v.IsCleanCompile(rev, []fileid.FileId{id}), "a mutation after rev must make is_clean_compile false")

	assert.False(t, v.IsCleanCompile(v.Revision(), []fileid.FileId{fileid.New("/never-seen.typ")}), "an id never observed must not be clean")
}

func TestEditThenCachedSourceReuse(t *testing.T) {
	// Start with an empty VFS at rev 2,
	// map_shadow("/a.typ", "= A") -> rev 3, source(a) yields S1, map_shadow
	// identical content again -> rev stays 3, source(a) returns S1.
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")
	path := "/work/a.typ"

	require.Equal(t, uint64(2), v.Revision())

	v.MapShadow(path, Ok(NewBytes([]byte("= A"))))
	require.Equal(t, uint64(3), v.Revision())

	s1, err := v.Source(id)
	require.Nil(t, err)

	v.MapShadow(path, Ok(NewBytes([]byte("= A"))))
	assert.Equal(t, uint64(3), v.Revision(), "re-mapping identical content must not advance the revision")

	s2, err := v.Source(id)
	require.Nil(t, err)
	assert.Same(t, s1, s2)
}

func TestVfsSnapshotSharesState(t *testing.T) {
	v, _ := newTestVfs()
	snap := v.Snapshot()
	id := fileid.New("/a.typ")

	v.MapShadowById(id, Ok(NewBytes([]byte("x"))))
	assert.Equal(t, v.Revision(), snap.Revision(), "a snapshot shares the revisioned state with its origin")

	got := snap.Read(id)
	assert.True(t, got.IsOk())
}

func TestVfsForkSharesOnlySourceCache(t *testing.T) {
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")
	v.MapShadowById(id, Ok(NewBytes([]byte("x"))))

	fork := v.Fork()
	assert.Equal(t, uint64(2), fork.Revision(), "a fork resets to the initial revision")
	assert.True(t, fork.sourceCache == v.sourceCache, "a fork shares the source cache pointer")

	got := fork.Read(id)
	assert.True(t, got.Err != nil, "a fork does not inherit the origin's overlays")
}

func TestVfsResetShadowClearsOverlays(t *testing.T) {
	v, _ := newTestVfs()
	id := fileid.New("/a.typ")
	v.MapShadowById(id, Ok(NewBytes([]byte("x"))))
	assert.Len(t, v.ShadowIds(), 1)

	v.ResetShadow()
	assert.Len(t, v.ShadowIds(), 0)
}

func TestVfsResetReadDropsCachesAndBumpsRevision(t *testing.T) {
	v, access := newTestVfs()
	path := "/work/a.typ"
	access.Files[path] = Ok(NewBytes([]byte("= A")))

	id := fileid.New("/a.typ")
	s1, err := v.Source(id)
	require.Nil(t, err)
	rev := v.Revision()

	v.ResetRead()
	assert.Equal(t, rev+1, v.Revision(), "a read reset must bump the revision")
	assert.False(t, v.IsCleanCompile(v.Revision(), []fileid.FileId{id}),
		"changed-at bookkeeping is dropped, so nothing counts as seen until re-read")

	s2, err := v.Source(id)
	require.Nil(t, err)
	assert.NotSame(t, s1, s2, "the source cache must have been taken")
}

func TestVfsNotifyFsChangesRemoveAndInsert(t *testing.T) {
	v, access := newTestVfs()
	path := "/work/a.typ"
	access.Files[path] = Ok(NewBytes([]byte("one")))

	id := fileid.New("/a.typ")
	first := v.Read(id)
	require.True(t, first.IsOk())

	v.NotifyFsChanges([]FileChange{{Path: path, Removed: true}})
	removed := v.Read(id)
	assert.False(t, removed.IsOk())

	v.NotifyFsChanges([]FileChange{{Path: path, Snap: Ok(NewBytes([]byte("two")))}})
	reinserted := v.Read(id)
	require.True(t, reinserted.IsOk())
	assert.Equal(t, "two", string(reinserted.Bytes.Data()))
}
