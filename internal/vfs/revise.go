package vfs

import (
	"errors"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

var errNoBackingPath = errors.New("no backing path")

// Revising is a guarded handle that batches mutations against a Vfs. It is
// created and committed by Vfs.Revise; Go has no destructor to hang the
// "commit on drop" semantics off of, so Revise itself plays that role: the
// goal revision and any overlay/notify changes are installed atomically
// when the callback returns, and only if something observable changed.
type Revising struct {
	vfs *Vfs

	base *state

	overlayByPath map[string]FileSnapshot
	overlayById   map[fileid.FileId]FileSnapshot
	notifyRemoves map[string]bool
	notifyInserts map[string]FileSnapshot

	goalRevision uint64
	viewChanged  bool
	forceBump    bool

	// warnings collects non-fatal, tolerated anomalies surfaced by the
	// caller (e.g. a delayed memory-event tag mismatch); Revise does not
	// interpret these, it just carries them back to the caller.
	warnings []string
}

// Revise runs fn against a fresh Revising built from the current state,
// then atomically installs the result iff fn changed observable state or
// called ChangeView. It returns any warnings fn recorded.
func (v *Vfs) Revise(fn func(r *Revising)) []string {
	v.sh.commitMu.Lock()
	defer v.sh.commitMu.Unlock()

	base := v.sh.st.Load()
	r := &Revising{
		vfs:           v,
		base:          base,
		overlayByPath: cloneSnapMap(base.overlayByPath),
		overlayById:   cloneSnapMapById(base.overlayById),
		notifyRemoves: cloneBoolMap(base.notifyRemoves),
		notifyInserts: cloneSnapMap(base.notifyInserts),
		goalRevision:  base.revision + 1,
	}

	fn(r)

	if r.viewChanged || r.forceBump {
		v.sh.st.Store(&state{
			revision:      r.goalRevision,
			overlayByPath: r.overlayByPath,
			overlayById:   r.overlayById,
			notifyRemoves: r.notifyRemoves,
			notifyInserts: r.notifyInserts,
		})
	}
	return r.warnings
}

func cloneSnapMap(m map[string]FileSnapshot) map[string]FileSnapshot {
	out := make(map[string]FileSnapshot, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSnapMapById(m map[fileid.FileId]FileSnapshot) map[fileid.FileId]FileSnapshot {
	out := make(map[fileid.FileId]FileSnapshot, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MapShadowByPath overlays the physical path with an in-memory snapshot.
func (r *Revising) MapShadowByPath(path string, snap FileSnapshot) {
	before := r.snapshotOfPath(path)
	r.overlayByPath[path] = snap
	r.invalidatePath(path, before)
}

// UnmapShadowByPath removes the path overlay, falling back to the notify
// layer / raw access model.
func (r *Revising) UnmapShadowByPath(path string) {
	if _, ok := r.overlayByPath[path]; !ok {
		return
	}
	before := r.snapshotOfPath(path)
	delete(r.overlayByPath, path)
	r.invalidatePath(path, before)
}

// MapShadowById overlays a logical id directly (untitled buffers, or
// package-relative virtual files with no physical path).
func (r *Revising) MapShadowById(id fileid.FileId, snap FileSnapshot) {
	before := r.snapshotOfId(id)
	r.overlayById[id] = snap
	r.invalidateId(id, before, snap)
}

// RemoveShadowById removes an id overlay.
func (r *Revising) RemoveShadowById(id fileid.FileId) {
	if _, ok := r.overlayById[id]; !ok {
		return
	}
	before := r.snapshotOfId(id)
	delete(r.overlayById, id)
	after := r.snapshotOfId(id)
	r.invalidateId(id, before, after)
}

// ResetShadow clears every overlay, by path and by id.
func (r *Revising) ResetShadow() {
	for path := range r.overlayByPath {
		before := r.snapshotOfPath(path)
		delete(r.overlayByPath, path)
		r.invalidatePath(path, before)
	}
	for id := range r.overlayById {
		before := r.snapshotOfId(id)
		delete(r.overlayById, id)
		after := r.snapshotOfId(id)
		r.invalidateId(id, before, after)
	}
}

// NotifyFsChanges applies a batch of concrete filesystem deletes/inserts
// through the notify layer.
func (r *Revising) NotifyFsChanges(removes []string, inserts map[string]FileSnapshot) {
	for _, p := range removes {
		before := r.snapshotOfPath(p)
		r.notifyRemoves[p] = true
		delete(r.notifyInserts, p)
		r.invalidatePath(p, before)
	}
	for p, snap := range inserts {
		before := r.snapshotOfPath(p)
		delete(r.notifyRemoves, p)
		r.notifyInserts[p] = snap
		r.invalidatePath(p, before)
	}
}

// ChangeView forces a revision bump on commit even if nothing observable
// changed, for cache-flush semantics (e.g. a root resolver reconfiguration).
func (r *Revising) ChangeView() {
	r.forceBump = true
}

// Warn records a tolerated anomaly (see the delayed memory-event mismatch
// design note) without failing the commit.
func (r *Revising) Warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// inProgress builds the *state reflecting this Revising's overlays so far,
// to recompute effective reads mid-commit.
func (r *Revising) inProgress() *state {
	return &state{
		overlayByPath: r.overlayByPath,
		notifyRemoves: r.notifyRemoves,
		notifyInserts: r.notifyInserts,
	}
}

// snapshotOfPath computes what Read would currently return for a bare path
// (no id overlay consulted), using the in-progress overlays.
func (r *Revising) snapshotOfPath(path string) FileSnapshot {
	return effectiveRead(r.inProgress(), r.vfs.access, path)
}

// snapshotOfId computes what Read(id) would currently return, consulting
// the id overlay first, then resolving to a path as Read does.
func (r *Revising) snapshotOfId(id fileid.FileId) FileSnapshot {
	if snap, ok := r.overlayById[id]; ok {
		return snap
	}
	res, err := r.vfs.resolver.PathForId(id)
	if err != nil {
		return ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "resolve", id.Path(), err))
	}
	if res.Rootless {
		return ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "resolve", id.Path(), errNoBackingPath))
	}
	return r.snapshotOfPath(res.AbsPath)
}

// invalidatePath compares the path's previous effective snapshot (computed
// before this mutation) against its new one. A change marks the view dirty
// and, if a FileId is already known to live at this path, also stamps that
// id's changed-at revision and drops its cached source.
func (r *Revising) invalidatePath(path string, before FileSnapshot) {
	after := r.snapshotOfPath(path)
	if before.Equal(after) {
		return
	}
	r.viewChanged = true

	if raw, ok := r.vfs.sh.pathIndex.Load(path); ok {
		id := raw.(fileid.FileId)
		r.vfs.sh.lastSnapshot.Store(id, after)
		r.vfs.sh.lastChanged.Store(id, r.goalRevision)
		r.vfs.sourceCache.Invalidate(id)
	}
}

// invalidateId is the by-id counterpart of invalidatePath: a change to the
// id's effective snapshot stamps its changed-at revision, drops its cached
// source, and marks the view dirty.
func (r *Revising) invalidateId(id fileid.FileId, before, after FileSnapshot) {
	if before.Equal(after) {
		return
	}
	r.vfs.sh.lastSnapshot.Store(id, after)
	r.vfs.sh.lastChanged.Store(id, r.goalRevision)
	r.vfs.sourceCache.Invalidate(id)
	r.viewChanged = true
}
