package vfs

import "github.com/Myriad-Dreamin/tinymist-core/internal/fileid"

// MapShadow is a single-operation convenience wrapper around
// Revise(func(r){ r.MapShadowByPath(...) }) for callers that don't need to
// batch several mutations into one revision bump.
func (v *Vfs) MapShadow(path string, snap FileSnapshot) {
	v.Revise(func(r *Revising) { r.MapShadowByPath(path, snap) })
}

// UnmapShadow removes a path overlay in its own revision.
func (v *Vfs) UnmapShadow(path string) {
	v.Revise(func(r *Revising) { r.UnmapShadowByPath(path) })
}

// MapShadowById overlays a logical id in its own revision.
func (v *Vfs) MapShadowById(id fileid.FileId, snap FileSnapshot) {
	v.Revise(func(r *Revising) { r.MapShadowById(id, snap) })
}

// RemoveShadowById removes an id overlay in its own revision.
func (v *Vfs) RemoveShadowById(id fileid.FileId) {
	v.Revise(func(r *Revising) { r.RemoveShadowById(id) })
}

// ResetShadow clears every overlay in its own revision.
func (v *Vfs) ResetShadow() {
	v.Revise(func(r *Revising) { r.ResetShadow() })
}

// FileChange is a single filesystem insert or delete, as carried by a
// FilesystemEvent.
type FileChange struct {
	Path    string
	Removed bool
	Snap    FileSnapshot
}

// NotifyFsChanges applies a batch of concrete filesystem deletes/inserts in
// its own revision. Callers that must coalesce this with a delayed memory
// event (see internal/project) should use Revise directly instead so both
// land in the same revision bump.
func (v *Vfs) NotifyFsChanges(changes []FileChange) {
	v.Revise(func(r *Revising) {
		var removes []string
		inserts := make(map[string]FileSnapshot)
		for _, c := range changes {
			if c.Removed {
				removes = append(removes, c.Path)
			} else {
				inserts[c.Path] = c.Snap
			}
		}
		r.NotifyFsChanges(removes, inserts)
	})
}
