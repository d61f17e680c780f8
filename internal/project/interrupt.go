package project

import (
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// ProjectInsId identifies one project instance owned by the compiler.
type ProjectInsId string

// PrimaryId is the id of the compiler's always-present primary instance.
const PrimaryId ProjectInsId = "primary"

// PathSnap pairs a physical path with its in-memory snapshot.
type PathSnap struct {
	Path string
	Snap vfs.FileSnapshot
}

// FileChangeSet is a batch of concrete path removals and insertions, as
// carried by memory and filesystem events.
type FileChangeSet struct {
	Removes []string
	Inserts []PathSnap
}

// IsEmpty reports whether the set carries no change at all.
func (s FileChangeSet) IsEmpty() bool {
	return len(s.Removes) == 0 && len(s.Inserts) == 0
}

// MemoryEventKind distinguishes an overlay reset from an incremental diff.
type MemoryEventKind int

const (
	// MemorySync replaces the entire overlay with the carried set.
	MemorySync MemoryEventKind = iota
	// MemoryUpdate applies the carried set as a diff on the overlay.
	MemoryUpdate
)

// MemoryEvent is a host-driven change to the in-memory overlay (editor
// buffers).
type MemoryEvent struct {
	Kind    MemoryEventKind
	Changes FileChangeSet
}

// UpstreamUpdateEvent tags a filesystem event with the logical tick of the
// memory event whose application was deferred pending this scan.
type UpstreamUpdateEvent struct {
	Tick uint64
}

// FilesystemEvent is a batch of concrete on-disk changes, optionally
// carrying the upstream envelope that ties it back to a deferred memory
// event.
type FilesystemEvent struct {
	Changes  FileChangeSet
	Upstream *UpstreamUpdateEvent
}

// TaskChange is the payload of a ChangeTask interrupt: nil fields leave the
// corresponding configuration untouched.
type TaskChange struct {
	Entry  *EntryState
	Inputs map[string]string
}

// Interrupt is one event consumed by the compiler's single cooperative
// loop. All state mutation happens while processing exactly one of these.
type Interrupt interface{ isInterrupt() }

// InterruptCompile requests a compile of the given project.
type InterruptCompile struct{ Id ProjectInsId }

// InterruptCompiled delivers a finished compile job's artifact back into
// the loop.
type InterruptCompiled struct{ Artifact *CompiledArtifact }

// InterruptSettle removes a dedicated project and its dependency state.
type InterruptSettle struct{ Id ProjectInsId }

// InterruptChangeTask reconfigures a project's entry and inputs.
type InterruptChangeTask struct {
	Id     ProjectInsId
	Change TaskChange
}

// InterruptFont installs a new font resolver on every project.
type InterruptFont struct{ Resolver *FontResolver }

// InterruptMemory carries an editor overlay change.
type InterruptMemory struct{ Event MemoryEvent }

// InterruptFs carries a filesystem scan result.
type InterruptFs struct{ Event FilesystemEvent }

func (InterruptCompile) isInterrupt()    {}
func (InterruptCompiled) isInterrupt()   {}
func (InterruptSettle) isInterrupt()     {}
func (InterruptChangeTask) isInterrupt() {}
func (InterruptFont) isInterrupt()       {}
func (InterruptMemory) isInterrupt()     {}
func (InterruptFs) isInterrupt()         {}
