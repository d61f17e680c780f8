// Package project implements the single-threaded, event-driven project
// compiler: an interrupt loop coordinating edits, filesystem notifications,
// font changes, task reconfiguration, and completion of compile jobs across
// one primary and any number of dedicated project instances.
package project

import (
	"context"

	"github.com/Myriad-Dreamin/tinymist-core/internal/debug"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// EvictThreshold is the revision distance beyond which stale VFS
// bookkeeping and source cache entries are dropped after an artifact
// installs.
const EvictThreshold = 30

// ProjectCompiler serializes all project state mutation through one
// cooperative loop. Compile jobs may run on workers, but their artifacts
// re-enter the loop as Compiled interrupts.
type ProjectCompiler struct {
	handler Handler
	compile CompileFn

	primary   *ProjectInstance
	dedicated map[ProjectInsId]*ProjectInstance

	// logicalTick advances on every handled interrupt; dirtyShadowTick is
	// the tick at which a memory event was deferred pending a filesystem
	// confirmation (zero when none is outstanding).
	logicalTick     uint64
	dirtyShadowTick uint64

	// estimatedShadow is the compiler's projection of which paths the VFS
	// currently holds as overlays.
	estimatedShadow map[string]bool

	deferredMemory *MemoryEvent

	// upstream receives the update envelope for a deferred memory event;
	// the watcher echoes its tick back on the next filesystem event.
	upstream func(UpstreamUpdateEvent)

	// depsSink receives the dependency set of each installed artifact so
	// the watcher can adjust its interest set.
	depsSink func(ProjectInsId, *CompiledArtifact)

	jobs       *jobRunner
	interrupts chan Interrupt
}

// Options configures a ProjectCompiler.
type Options struct {
	Handler  Handler
	Compile  CompileFn
	Primary  *Universe
	MaxJobs  int
	Upstream func(UpstreamUpdateEvent)
	DepsSink func(ProjectInsId, *CompiledArtifact)
}

// New builds a compiler around a primary universe. The handler defaults to
// NoopHandler and the compile function to one that produces an empty
// artifact, so partial wiring is usable in tests.
func New(opts Options) *ProjectCompiler {
	handler := opts.Handler
	if handler == nil {
		handler = NoopHandler{}
	}
	compile := opts.Compile
	if compile == nil {
		compile = func(*CompileSnapshot) CompileResult { return CompileResult{} }
	}

	c := &ProjectCompiler{
		handler:         handler,
		compile:         compile,
		primary:         newInstance(PrimaryId, opts.Primary),
		dedicated:       make(map[ProjectInsId]*ProjectInstance),
		estimatedShadow: make(map[string]bool),
		upstream:        opts.Upstream,
		depsSink:        opts.DepsSink,
		interrupts:      make(chan Interrupt, 128),
	}
	c.jobs = newJobRunner(opts.MaxJobs, c.interrupts)
	return c
}

// Primary returns the primary project instance.
func (c *ProjectCompiler) Primary() *ProjectInstance { return c.primary }

// Project returns the instance with the given id, or nil if it does not
// exist (e.g. it was settled).
func (c *ProjectCompiler) Project(id ProjectInsId) *ProjectInstance {
	if id == c.primary.Id {
		return c.primary
	}
	return c.dedicated[id]
}

// Projects returns the primary followed by every dedicated instance.
func (c *ProjectCompiler) Projects() []*ProjectInstance {
	out := make([]*ProjectInstance, 0, 1+len(c.dedicated))
	out = append(out, c.primary)
	for _, p := range c.dedicated {
		out = append(out, p)
	}
	return out
}

// LogicalTick returns the loop's logical time.
func (c *ProjectCompiler) LogicalTick() uint64 { return c.logicalTick }

// Send enqueues an interrupt for the loop goroutine.
func (c *ProjectCompiler) Send(i Interrupt) { c.interrupts <- i }

// Run consumes interrupts serially until ctx is cancelled. It is the only
// blocking point of the core loop.
func (c *ProjectCompiler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case i := <-c.interrupts:
			c.Process(i)
		}
	}
}

// Close waits for in-flight compile jobs to finish.
func (c *ProjectCompiler) Close() {
	c.jobs.wait()
}

// Process handles exactly one interrupt, then gives the handler its
// scheduling opportunity. Hosts that do not run the loop goroutine may
// call it directly; all calls must come from a single goroutine.
func (c *ProjectCompiler) Process(i Interrupt) {
	c.logicalTick++

	switch ev := i.(type) {
	case InterruptCompile:
		c.interruptCompile(ev.Id)
	case InterruptCompiled:
		c.processCompile(ev.Artifact)
	case InterruptSettle:
		c.interruptSettle(ev.Id)
	case InterruptChangeTask:
		c.interruptChangeTask(ev.Id, ev.Change)
	case InterruptFont:
		c.interruptFont(ev.Resolver)
	case InterruptMemory:
		c.interruptMemory(ev.Event)
	case InterruptFs:
		c.interruptFs(ev.Event)
	}

	c.handler.OnAnyCompileReason(c)
}

// CompileAll asks every project for a compile job and dispatches the ones
// that are ready onto the worker pool.
func (c *ProjectCompiler) CompileAll() {
	for _, p := range c.Projects() {
		if run := p.MayCompile(c.handler, c.compile); run != nil {
			c.jobs.submit(run)
		}
	}
}

func (c *ProjectCompiler) interruptCompile(id ProjectInsId) {
	p := c.Project(id)
	if p == nil {
		debug.LogProject("compile requested for unknown project %s", id)
		return
	}
	// Bump the project's revision so the snapshot is distinguishable from
	// the previous compile even when no content changed.
	p.Universe.Vfs.Revise(func(r *vfs.Revising) { r.ChangeView() })
	p.reasons.See(ReasonByEntryUpdate)
}

func (c *ProjectCompiler) interruptSettle(id ProjectInsId) {
	if id == c.primary.Id {
		debug.LogProject("refusing to settle the primary project")
		return
	}
	if _, ok := c.dedicated[id]; !ok {
		return
	}
	delete(c.dedicated, id)
	c.handler.NotifyRemoved(id)
}

func (c *ProjectCompiler) interruptChangeTask(id ProjectInsId, change TaskChange) {
	p := c.Project(id)
	if p == nil {
		// A task for an unknown id creates a dedicated instance forked off
		// the primary's world, sharing the source cache.
		u := &Universe{
			Entry:  c.primary.Universe.Entry,
			Inputs: c.primary.Universe.Inputs,
			Fonts:  c.primary.Universe.Fonts,
			Vfs:    c.primary.Universe.Vfs.Fork(),
		}
		p = newInstance(id, u)
		c.dedicated[id] = p
	}

	p.Universe.Vfs.Revise(func(r *vfs.Revising) { r.ChangeView() })
	if change.Entry != nil {
		p.Universe.Entry = *change.Entry
	}
	if change.Inputs != nil {
		p.Universe.Inputs = change.Inputs
	}
	p.reasons.See(ReasonByEntryUpdate)

	if p.Universe.Entry.Inactive {
		c.handler.Status(p.Universe.Vfs.Revision(), id, CompileReport{Kind: ReportSuspend})
	}
}

func (c *ProjectCompiler) interruptFont(resolver *FontResolver) {
	for _, p := range c.Projects() {
		changed := p.Universe.Fonts.StateHash() != resolver.StateHash()
		p.Universe.Fonts = resolver
		if changed {
			p.reasons.See(ReasonByEntryUpdate)
		}
	}
}

// interruptMemory implements the memory-event protocol. If the event's
// shadow-set diff is empty and no deferral is outstanding, it applies
// immediately; otherwise it is deferred behind an upstream update event
// tagged with the current logical tick.
func (c *ProjectCompiler) interruptMemory(ev MemoryEvent) {
	files := c.estimatedShadowDiff(ev)

	if len(files) == 0 && c.dirtyShadowTick == 0 {
		for _, p := range c.Projects() {
			p.Universe.Vfs.Revise(func(r *vfs.Revising) {
				applyMemory(r, ev)
			})
			p.reasons.See(ReasonByMemoryEvents)
		}
		c.projectShadow(ev)
		return
	}

	c.deferredMemory = mergeMemory(c.deferredMemory, ev)
	c.dirtyShadowTick = c.logicalTick
	debug.LogProject("memory event deferred at tick %d (%d paths changed membership)", c.logicalTick, len(files))
	if c.upstream != nil {
		c.upstream(UpstreamUpdateEvent{Tick: c.logicalTick})
	}
}

// interruptFs applies an outstanding deferred memory change (warning on a
// tag mismatch) and then the filesystem diff, inside the same revision
// bump per project.
func (c *ProjectCompiler) interruptFs(ev FilesystemEvent) {
	deferred := c.deferredMemory
	if deferred != nil {
		if ev.Upstream == nil || ev.Upstream.Tick != c.dirtyShadowTick {
			// Tolerated anomaly: the scan that arrived is not the one we
			// asked for. The memory change is applied anyway.
			debug.LogProject("deferred memory event tag mismatch (want tick %d)", c.dirtyShadowTick)
		}
		c.deferredMemory = nil
		c.dirtyShadowTick = 0
	}

	for _, p := range c.Projects() {
		p.Universe.Vfs.Revise(func(r *vfs.Revising) {
			if deferred != nil {
				applyMemory(r, *deferred)
			}
			applyFsChanges(r, ev.Changes)
		})
		p.reasons.See(ReasonByFsEvents)
	}
	if deferred != nil {
		c.projectShadow(*deferred)
	}
}

// applyMemory replays a memory event onto one revising handle.
func applyMemory(r *vfs.Revising, ev MemoryEvent) {
	if ev.Kind == MemorySync {
		r.ResetShadow()
	}
	for _, path := range ev.Changes.Removes {
		r.UnmapShadowByPath(path)
	}
	for _, ins := range ev.Changes.Inserts {
		r.MapShadowByPath(ins.Path, ins.Snap)
	}
}

func applyFsChanges(r *vfs.Revising, set FileChangeSet) {
	inserts := make(map[string]vfs.FileSnapshot, len(set.Inserts))
	for _, ins := range set.Inserts {
		inserts[ins.Path] = ins.Snap
	}
	r.NotifyFsChanges(set.Removes, inserts)
}

// estimatedShadowDiff collects the paths whose overlay membership the event
// would change relative to the compiler's current projection.
func (c *ProjectCompiler) estimatedShadowDiff(ev MemoryEvent) []string {
	var files []string
	if ev.Kind == MemorySync {
		next := make(map[string]bool, len(ev.Changes.Inserts))
		for _, ins := range ev.Changes.Inserts {
			next[ins.Path] = true
		}
		for p := range c.estimatedShadow {
			if !next[p] {
				files = append(files, p)
			}
		}
		for p := range next {
			if !c.estimatedShadow[p] {
				files = append(files, p)
			}
		}
		return files
	}

	for _, p := range ev.Changes.Removes {
		if c.estimatedShadow[p] {
			files = append(files, p)
		}
	}
	for _, ins := range ev.Changes.Inserts {
		if !c.estimatedShadow[ins.Path] {
			files = append(files, ins.Path)
		}
	}
	return files
}

// projectShadow folds an applied memory event into the estimated shadow
// set.
func (c *ProjectCompiler) projectShadow(ev MemoryEvent) {
	if ev.Kind == MemorySync {
		c.estimatedShadow = make(map[string]bool, len(ev.Changes.Inserts))
	}
	for _, p := range ev.Changes.Removes {
		delete(c.estimatedShadow, p)
	}
	for _, ins := range ev.Changes.Inserts {
		c.estimatedShadow[ins.Path] = true
	}
}

// mergeMemory coalesces two deferred memory events: a later Sync replaces
// the accumulated state wholesale, a later Update layers on top.
func mergeMemory(old *MemoryEvent, next MemoryEvent) *MemoryEvent {
	if old == nil || next.Kind == MemorySync {
		ev := next
		return &ev
	}
	merged := MemoryEvent{Kind: old.Kind}
	merged.Changes.Removes = append(append([]string(nil), old.Changes.Removes...), next.Changes.Removes...)
	merged.Changes.Inserts = append(append([]PathSnap(nil), old.Changes.Inserts...), next.Changes.Inserts...)
	return &merged
}

// processCompile installs a finished artifact. It is idempotent with
// respect to out-of-order completions: artifacts at or below the committed
// revision are dropped, so installed revisions are strictly increasing.
func (c *ProjectCompiler) processCompile(artifact *CompiledArtifact) {
	p := c.Project(artifact.Snapshot.Id)
	if p == nil {
		// The project was settled while the job was in flight.
		debug.LogProject("dropping artifact for settled project %s", artifact.Snapshot.Id)
		return
	}
	if artifact.Snapshot.Revision <= p.committedRevision {
		debug.LogProject("dropping stale artifact rev=%d (committed rev=%d)",
			artifact.Snapshot.Revision, p.committedRevision)
		return
	}

	p.committedRevision = artifact.Snapshot.Revision
	p.latestDoc = artifact.Doc
	if artifact.Success() {
		p.latestSuccessDoc = artifact.Doc
	}
	p.deps = artifact.Deps()

	if c.depsSink != nil {
		c.depsSink(p.Id, artifact)
	}
	c.handler.NotifyCompile(artifact)

	// Stale cache eviction is fire-and-forget on a scratch worker; the
	// primary project owns the shared source cache.
	isPrimary := p.Id == c.primary.Id
	u := p.Universe
	c.jobs.scratch(func() {
		u.Vfs.EvictVfs(EvictThreshold)
		if isPrimary {
			u.Vfs.EvictSourceCache(EvictThreshold)
		}
	})
}
