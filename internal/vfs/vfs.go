// Package vfs implements the versioned virtual file system: a content-
// addressed, revision-tracked store that overlays in-memory edits on a
// physical access model and caches parsed source artifacts.
//
// Layering, innermost to outermost: a notify layer applies filesystem
// change sets to a shadow map over the raw AccessModel; an overlay-by-path
// layer holds in-memory edits keyed by physical path; a resolve layer turns
// a FileId into a physical path via a RootResolver; an overlay-by-id layer
// holds in-memory edits for untitled/packaged buffers. Reads are served
// outer to inner, with inner layers the authoritative fallback.
package vfs

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

// state is the immutable, revisioned snapshot of observable VFS content.
// A Vfs swaps its *state pointer wholesale on each committed revise().
type state struct {
	revision      uint64
	overlayByPath map[string]FileSnapshot
	overlayById   map[fileid.FileId]FileSnapshot
	notifyRemoves map[string]bool
	notifyInserts map[string]FileSnapshot
}

func emptyState(rev uint64) *state {
	return &state{
		revision:      rev,
		overlayByPath: map[string]FileSnapshot{},
		overlayById:   map[fileid.FileId]FileSnapshot{},
		notifyRemoves: map[string]bool{},
		notifyInserts: map[string]FileSnapshot{},
	}
}

// shared is the part of a Vfs that Snapshot() clones keep pointer-identical
// with their origin; Fork() gets a fresh one.
type shared struct {
	st atomic.Pointer[state]

	// commitMu serializes revise() commits; the VFS entry/path maps are
	// conceptually behind a single exclusive lock held only for the
	// duration of a commit.
	commitMu sync.Mutex

	// pathIndex is the reverse path->id index used to find which FileIds
	// are affected by a path-keyed mutation. It is not part of the
	// revisioned state because it is monotone, append-only metadata (no
	// revision-dependent content lives in it).
	pathIndex sync.Map // string -> fileid.FileId

	// lastSnapshot/lastChanged track, per observed FileId, the most
	// recently effective snapshot and the revision at which it last
	// changed. Both are updated on first observation (by a plain read)
	// and on invalidation (during a revise() commit).
	lastSnapshot sync.Map // fileid.FileId -> FileSnapshot
	lastChanged  sync.Map // fileid.FileId -> uint64
}

// Vfs is the versioned virtual file system handle. It is Send+Sync: reads
// never block, and mutations are serialized through Revise.
type Vfs struct {
	resolver fileid.RootResolver
	access   AccessModel

	// sourceCache is shared by Snapshot() and Fork() alike per the source
	// cache's documented lifecycle (it is evicted independently of VFS
	// entries and can be taken at reset).
	sourceCache *SourceCache

	sh *shared
}

// New builds a Vfs at the initial revision (2, matching the documented
// starting point) wrapping access via resolver.
func New(resolver fileid.RootResolver, access AccessModel, parse ParseFunc) *Vfs {
	v := &Vfs{
		resolver:    resolver,
		access:      access,
		sourceCache: NewSourceCache(parse),
		sh:          &shared{},
	}
	v.sh.st.Store(emptyState(2))
	return v
}

// Revision returns the current monotone revision.
func (v *Vfs) Revision() uint64 {
	return v.sh.st.Load().revision
}

// Snapshot returns a cheap clone sharing every cache and the revisioned
// state with v; mutating through either handle's Revise is observed by
// both, matching the documented sharing semantics.
func (v *Vfs) Snapshot() *Vfs {
	return &Vfs{resolver: v.resolver, access: v.access, sourceCache: v.sourceCache, sh: v.sh}
}

// Fork returns a clone sharing only the source cache; entries, overlays and
// the revision counter are independent and reset to a fresh revision 2.
func (v *Vfs) Fork() *Vfs {
	nv := &Vfs{resolver: v.resolver, access: v.access, sourceCache: v.sourceCache, sh: &shared{}}
	nv.sh.st.Store(emptyState(2))
	return nv
}

// ResetRead drops every read-derived cache: the path index, the per-id
// changed-at bookkeeping, and the source cache, and bumps the revision.
// Required after the root resolver's configuration changes, since cached
// path resolutions are stale from that point on.
func (v *Vfs) ResetRead() {
	clearSyncMap(&v.sh.pathIndex)
	clearSyncMap(&v.sh.lastSnapshot)
	clearSyncMap(&v.sh.lastChanged)
	v.TakeSourceCache()
	v.Revise(func(r *Revising) { r.ChangeView() })
}

func clearSyncMap(m *sync.Map) {
	m.Range(func(key, _ any) bool {
		m.Delete(key)
		return true
	})
}

// TakeSourceCache detaches and returns the current source cache, installing
// a fresh empty one in its place.
func (v *Vfs) TakeSourceCache() *SourceCache {
	old := v.sourceCache
	v.sourceCache = NewSourceCache(old.parse)
	return old
}

// Read resolves id through the overlay/resolve/notify layering and returns
// the effective snapshot at the current revision. It also records id's
// path in the reverse index and, on first observation, stamps its
// changed-at revision.
func (v *Vfs) Read(id fileid.FileId) FileSnapshot {
	st := v.sh.st.Load()

	if snap, ok := st.overlayById[id]; ok {
		v.observe(id, snap, st.revision)
		return snap
	}

	res, err := v.resolver.PathForId(id)
	if err != nil {
		snap := ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "resolve", id.Path(), err))
		v.observe(id, snap, st.revision)
		return snap
	}
	if res.Rootless {
		snap := ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "resolve", id.Path(), errors.New("no backing path for rootless buffer")))
		v.observe(id, snap, st.revision)
		return snap
	}

	path := res.AbsPath
	v.sh.pathIndex.Store(path, id)

	snap := effectiveRead(st, v.access, path)
	v.observe(id, snap, st.revision)
	return snap
}

// effectiveRead queries the overlay-by-path layer, then the notify layer,
// then falls through to the raw access model.
func effectiveRead(st *state, access AccessModel, path string) FileSnapshot {
	if snap, ok := st.overlayByPath[path]; ok {
		return snap
	}
	if st.notifyRemoves[path] {
		return ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "fs", path, errFsRemoved))
	}
	if snap, ok := st.notifyInserts[path]; ok {
		return snap
	}
	return access.ReadAll(path)
}

var errFsRemoved = errors.New("removed by filesystem event")

// observe records the first sighting of id, or leaves existing bookkeeping
// untouched; invalidation during Revise is what advances it afterwards.
func (v *Vfs) observe(id fileid.FileId, snap FileSnapshot, rev uint64) {
	v.sh.lastSnapshot.LoadOrStore(id, snap)
	v.sh.lastChanged.LoadOrStore(id, rev)
}

// Source returns the parsed source for id, reading it first.
func (v *Vfs) Source(id fileid.FileId) (*Source, *ferrors.FileError) {
	snap := v.Read(id)
	if snap.Err != nil {
		return nil, snap.Err
	}
	return v.sourceCache.GetOrParse(id, snap.Bytes, v.Revision())
}

// IsCleanCompile reports whether every id in ids has been observed by the
// VFS and has not changed since rev.
func (v *Vfs) IsCleanCompile(rev uint64, ids []fileid.FileId) bool {
	for _, id := range ids {
		raw, ok := v.sh.lastChanged.Load(id)
		if !ok {
			return false
		}
		if raw.(uint64) > rev {
			return false
		}
	}
	return true
}

// EvictVfs drops path/changed-at bookkeeping unrelated to the invalidation
// rule's correctness, older than threshold revisions.
func (v *Vfs) EvictVfs(threshold uint64) {
	curr := v.Revision()
	v.sh.lastChanged.Range(func(key, value any) bool {
		rev := value.(uint64)
		if curr > rev && curr-rev > threshold {
			v.sh.lastChanged.Delete(key)
			v.sh.lastSnapshot.Delete(key)
		}
		return true
	})
}

// EvictSourceCache evicts the shared source cache by revision distance.
func (v *Vfs) EvictSourceCache(threshold uint64) {
	v.sourceCache.Evict(v.Revision(), threshold)
}

// ShadowPaths returns the physical paths currently overlaid.
func (v *Vfs) ShadowPaths() []string {
	st := v.sh.st.Load()
	paths := make([]string, 0, len(st.overlayByPath))
	for p := range st.overlayByPath {
		paths = append(paths, p)
	}
	return paths
}

// ShadowIds returns the FileIds currently overlaid by id.
func (v *Vfs) ShadowIds() []fileid.FileId {
	st := v.sh.st.Load()
	ids := make([]fileid.FileId, 0, len(st.overlayById))
	for id := range st.overlayById {
		ids = append(ids, id)
	}
	return ids
}
