package project

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Myriad-Dreamin/tinymist-core/internal/debug"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// CompileReasons is the accumulated justification for recompiling a
// project. Reasons merge by OR until a compile job consumes them.
type CompileReasons uint8

const (
	ReasonByMemoryEvents CompileReasons = 1 << iota
	ReasonByFsEvents
	ReasonByEntryUpdate
)

// Any reports whether at least one reason is set.
func (r CompileReasons) Any() bool { return r != 0 }

// See merges other into r.
func (r *CompileReasons) See(other CompileReasons) { *r |= other }

// EntryState names the project's main file and whether compilation is
// currently wanted for it.
type EntryState struct {
	Entry    fileid.FileId
	Inactive bool
}

// FontResolver stands in for the external font discovery collaborator: the
// compiler only needs to install it on worlds and detect whether its
// observable state changed.
type FontResolver struct {
	Paths []string
}

// StateHash folds the resolver's configuration into a comparable digest.
func (f *FontResolver) StateHash() uint64 {
	if f == nil {
		return 0
	}
	paths := append([]string(nil), f.Paths...)
	sort.Strings(paths)
	h := xxhash.New()
	for _, p := range paths {
		h.WriteString(p)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Universe is the world factory for one project: the entry, sys inputs,
// font resolver, and the revisioned VFS that worlds snapshot from.
type Universe struct {
	Entry  EntryState
	Inputs map[string]string
	Fonts  *FontResolver
	Vfs    *vfs.Vfs
}

// Snapshot captures an immutable world for one compile run.
func (u *Universe) Snapshot(id ProjectInsId) *CompileSnapshot {
	inputs := make(map[string]string, len(u.Inputs))
	for k, v := range u.Inputs {
		inputs[k] = v
	}
	return &CompileSnapshot{
		Id:       id,
		Revision: u.Vfs.Revision(),
		Entry:    u.Entry,
		Inputs:   inputs,
		Vfs:      u.Vfs.Snapshot(),
	}
}

// CompileSnapshot is the pure input of one compile job.
type CompileSnapshot struct {
	Id       ProjectInsId
	Revision uint64
	Entry    EntryState
	Inputs   map[string]string
	Vfs      *vfs.Vfs
}

// CompileResult is what the external compile function produces: an opaque
// document, diagnostics, and the set of files the compile read.
type CompileResult struct {
	Doc      any
	Warnings []string
	Errors   []string
	Deps     []fileid.FileId
}

// CompileFn is the external Typst compile boundary: a pure function of the
// snapshot.
type CompileFn func(snap *CompileSnapshot) CompileResult

// CompiledArtifact is the output of one compile job, re-entering the loop
// as a Compiled interrupt.
type CompiledArtifact struct {
	Snapshot *CompileSnapshot
	Doc      any
	Warnings []string
	Errors   []string
	Duration time.Duration

	depsOnce sync.Once
	deps     []fileid.FileId
	depsFn   func() []fileid.FileId
}

// Success reports whether the compile produced no errors.
func (a *CompiledArtifact) Success() bool { return len(a.Errors) == 0 }

// Deps returns the dependency set, computing it at most once.
func (a *CompiledArtifact) Deps() []fileid.FileId {
	a.depsOnce.Do(func() {
		if a.depsFn != nil {
			a.deps = a.depsFn()
		}
	})
	return a.deps
}

// ProjectInstance owns one project's world factory, accumulated compile
// reasons, cached documents, dependency set, and the revision of its last
// committed artifact.
type ProjectInstance struct {
	Id       ProjectInsId
	Universe *Universe

	reasons CompileReasons

	// latestDoc is the most recent document of any outcome; latestSuccessDoc
	// only advances on error-free compiles.
	latestDoc        any
	latestSuccessDoc any

	deps []fileid.FileId

	// committedRevision is the revision at which the latest notified
	// compile was committed; older artifacts are dropped on arrival.
	committedRevision uint64
}

func newInstance(id ProjectInsId, u *Universe) *ProjectInstance {
	return &ProjectInstance{Id: id, Universe: u}
}

// Reasons returns the currently accumulated compile reasons.
func (p *ProjectInstance) Reasons() CompileReasons { return p.reasons }

// LatestDoc returns the most recently installed document, if any.
func (p *ProjectInstance) LatestDoc() any { return p.latestDoc }

// LatestSuccessDoc returns the most recent error-free document, if any.
func (p *ProjectInstance) LatestSuccessDoc() any { return p.latestSuccessDoc }

// CommittedRevision returns the revision of the last installed artifact.
func (p *ProjectInstance) CommittedRevision() uint64 { return p.committedRevision }

// Deps returns the current dependency set.
func (p *ProjectInstance) Deps() []fileid.FileId { return p.deps }

// MayCompile returns a runnable compile job iff the project has a non-empty
// reason and an active entry; taking the job consumes the reasons. The run
// closure is a pure function of the snapshot and is safe to dispatch to a
// worker.
func (p *ProjectInstance) MayCompile(h Handler, compile CompileFn) func() *CompiledArtifact {
	if !p.reasons.Any() || p.Universe.Entry.Inactive {
		return nil
	}
	p.reasons = 0

	snap := p.Universe.Snapshot(p.Id)
	return func() *CompiledArtifact {
		start := time.Now()
		h.Status(snap.Revision, snap.Id, CompileReport{
			Kind:  ReportStage,
			File:  snap.Entry.Entry,
			Stage: "compiling",
			At:    start,
		})

		res := compile(snap)
		dur := time.Since(start)

		if len(res.Errors) > 0 {
			// Diagnostics merge: warnings count toward the reported total
			// alongside errors.
			h.Status(snap.Revision, snap.Id, CompileReport{
				Kind:     ReportCompileError,
				File:     snap.Entry.Entry,
				NDiags:   len(res.Errors) + len(res.Warnings),
				Duration: dur,
			})
		} else {
			h.Status(snap.Revision, snap.Id, CompileReport{
				Kind:      ReportCompileSuccess,
				File:      snap.Entry.Entry,
				NWarnings: len(res.Warnings),
				Duration:  dur,
			})
		}

		debug.LogProject("project %s compiled rev=%d errors=%d warnings=%d",
			snap.Id, snap.Revision, len(res.Errors), len(res.Warnings))

		deps := res.Deps
		return &CompiledArtifact{
			Snapshot: snap,
			Doc:      res.Doc,
			Warnings: res.Warnings,
			Errors:   res.Errors,
			Duration: dur,
			depsFn:   func() []fileid.FileId { return deps },
		}
	}
}
