package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

type testResolver struct{ root string }

func (r testResolver) PathForId(id fileid.FileId) (fileid.PathResolution, error) {
	return fileid.PathResolution{AbsPath: r.root + id.Path()}, nil
}

func testParse(id fileid.FileId, data []byte) (any, *ferrors.FileError) {
	return string(data), nil
}

// recordingHandler counts contract callbacks for assertions.
type recordingHandler struct {
	NoopHandler
	compiled []*CompiledArtifact
	removed  []ProjectInsId
	reports  []CompileReport
}

func (h *recordingHandler) NotifyCompile(a *CompiledArtifact) { h.compiled = append(h.compiled, a) }
func (h *recordingHandler) NotifyRemoved(id ProjectInsId)     { h.removed = append(h.removed, id) }
func (h *recordingHandler) Status(rev uint64, id ProjectInsId, r CompileReport) {
	h.reports = append(h.reports, r)
}

func newTestUniverse() *Universe {
	v := vfs.New(testResolver{root: "/work"}, vfs.NewMapAccessModel(), testParse)
	return &Universe{
		Entry:  EntryState{Entry: fileid.New("/main.typ")},
		Inputs: map[string]string{},
		Fonts:  &FontResolver{},
		Vfs:    v,
	}
}

func readThrough(v *vfs.Vfs, path string) (string, bool) {
	snap := v.Read(fileid.New(path))
	if !snap.IsOk() {
		return "", false
	}
	return string(snap.Bytes.Data()), true
}

func TestEditCoalescingWithFsEvent(t *testing.T) {
	var sent []UpstreamUpdateEvent
	h := &recordingHandler{}
	c := New(Options{
		Handler:  h,
		Primary:  newTestUniverse(),
		Upstream: func(ev UpstreamUpdateEvent) { sent = append(sent, ev) },
		Compile: func(snap *CompileSnapshot) CompileResult {
			snapA := snap.Vfs.Read(fileid.New("/a.typ"))
			return CompileResult{Doc: string(snapA.Bytes.Data())}
		},
	})
	defer c.Close()

	insert := PathSnap{Path: "/work/a.typ", Snap: vfs.Ok(vfs.NewBytes([]byte("1")))}

	// The insert changes shadow membership, so it defers behind an
	// upstream update event tagged with the current tick.
	c.Process(InterruptMemory{Event: MemoryEvent{Kind: MemoryUpdate, Changes: FileChangeSet{Inserts: []PathSnap{insert}}}})
	require.Len(t, sent, 1)
	tick := sent[0].Tick
	assert.Equal(t, c.LogicalTick(), tick)
	assert.False(t, c.Primary().Reasons().Any(), "a deferred memory event must not mark a reason yet")

	// Nothing is visible in the VFS until the matching scan confirms.
	_, ok := readThrough(c.Primary().Universe.Vfs, "/a.typ")
	assert.False(t, ok)

	// The matching fs event applies the memory change first, then the fs
	// diff, inside one revision bump.
	revBefore := c.Primary().Universe.Vfs.Revision()
	c.Process(InterruptFs{Event: FilesystemEvent{Upstream: &UpstreamUpdateEvent{Tick: tick}}})
	assert.Equal(t, revBefore+1, c.Primary().Universe.Vfs.Revision())

	content, ok := readThrough(c.Primary().Universe.Vfs, "/a.typ")
	require.True(t, ok)
	assert.Equal(t, "1", content)

	// The reason bitset ends as fs-only.
	assert.Equal(t, ReasonByFsEvents, c.Primary().Reasons())

	// The next compile sees the edit.
	c.CompileAll()
	c.Close()
	c.Process(<-c.interrupts)
	require.Len(t, h.compiled, 1)
	assert.Equal(t, "1", h.compiled[0].Doc)
}

func TestMemoryEventAppliesImmediatelyWhenMembershipUnchanged(t *testing.T) {
	c := New(Options{Primary: newTestUniverse()})
	defer c.Close()

	insert1 := PathSnap{Path: "/work/a.typ", Snap: vfs.Ok(vfs.NewBytes([]byte("1")))}
	c.Process(InterruptMemory{Event: MemoryEvent{Kind: MemoryUpdate, Changes: FileChangeSet{Inserts: []PathSnap{insert1}}}})
	c.Process(InterruptFs{Event: FilesystemEvent{Upstream: &UpstreamUpdateEvent{Tick: 1}}})
	c.Primary().reasons = 0

	// A second edit to the same overlaid path does not change membership:
	// it applies immediately and marks the memory reason.
	insert2 := PathSnap{Path: "/work/a.typ", Snap: vfs.Ok(vfs.NewBytes([]byte("2")))}
	c.Process(InterruptMemory{Event: MemoryEvent{Kind: MemoryUpdate, Changes: FileChangeSet{Inserts: []PathSnap{insert2}}}})

	content, ok := readThrough(c.Primary().Universe.Vfs, "/a.typ")
	require.True(t, ok)
	assert.Equal(t, "2", content)
	assert.Equal(t, ReasonByMemoryEvents, c.Primary().Reasons())
}

func TestDeferredMemoryTagMismatchIsTolerated(t *testing.T) {
	c := New(Options{Primary: newTestUniverse()})
	defer c.Close()

	insert := PathSnap{Path: "/work/a.typ", Snap: vfs.Ok(vfs.NewBytes([]byte("1")))}
	c.Process(InterruptMemory{Event: MemoryEvent{Kind: MemoryUpdate, Changes: FileChangeSet{Inserts: []PathSnap{insert}}}})

	// An fs event with no (or a wrong) tag still applies the deferred
	// memory change.
	c.Process(InterruptFs{Event: FilesystemEvent{}})

	content, ok := readThrough(c.Primary().Universe.Vfs, "/a.typ")
	require.True(t, ok)
	assert.Equal(t, "1", content)
}

func TestOutOfOrderCompileCompletion(t *testing.T) {
	h := &recordingHandler{}
	c := New(Options{Handler: h, Primary: newTestUniverse()})
	defer c.Close()

	u := c.Primary().Universe

	snapA := u.Snapshot(PrimaryId)
	u.Vfs.Revise(func(r *vfs.Revising) { r.ChangeView() })
	snapB := u.Snapshot(PrimaryId)
	require.Greater(t, snapB.Revision, snapA.Revision)

	artA := &CompiledArtifact{Snapshot: snapA, Doc: "A"}
	artB := &CompiledArtifact{Snapshot: snapB, Doc: "B"}

	// B completes first and installs.
	c.Process(InterruptCompiled{Artifact: artB})
	assert.Equal(t, "B", c.Primary().LatestDoc())
	assert.Equal(t, snapB.Revision, c.Primary().CommittedRevision())

	// A arrives late and is silently discarded.
	c.Process(InterruptCompiled{Artifact: artA})
	assert.Equal(t, "B", c.Primary().LatestDoc())
	assert.Equal(t, snapB.Revision, c.Primary().CommittedRevision())

	// Exactly one installed artifact, exactly one notification.
	require.Len(t, h.compiled, 1)
	assert.Equal(t, "B", h.compiled[0].Doc)
}

func TestArtifactRevisionsStrictlyIncrease(t *testing.T) {
	h := &recordingHandler{}
	c := New(Options{Handler: h, Primary: newTestUniverse()})
	defer c.Close()

	u := c.Primary().Universe
	var installed []uint64
	for i := 0; i < 4; i++ {
		snap := u.Snapshot(PrimaryId)
		c.Process(InterruptCompiled{Artifact: &CompiledArtifact{Snapshot: snap, Doc: i}})
		// A duplicate at the same revision must be dropped.
		c.Process(InterruptCompiled{Artifact: &CompiledArtifact{Snapshot: snap, Doc: -1}})
		u.Vfs.Revise(func(r *vfs.Revising) { r.ChangeView() })
	}
	for _, a := range h.compiled {
		installed = append(installed, a.Snapshot.Revision)
	}
	require.Len(t, installed, 4)
	for i := 1; i < len(installed); i++ {
		assert.Greater(t, installed[i], installed[i-1])
	}
}

func TestSettleRemovesDedicatedProject(t *testing.T) {
	h := &recordingHandler{}
	c := New(Options{Handler: h, Primary: newTestUniverse()})
	defer c.Close()

	entry := EntryState{Entry: fileid.New("/other.typ")}
	c.Process(InterruptChangeTask{Id: "export-1", Change: TaskChange{Entry: &entry}})
	dedicated := c.Project("export-1")
	require.NotNil(t, dedicated)
	assert.True(t, dedicated.Reasons().Any())

	snap := dedicated.Universe.Snapshot("export-1")

	c.Process(InterruptSettle{Id: "export-1"})
	assert.Nil(t, c.Project("export-1"))
	require.Len(t, h.removed, 1)
	assert.Equal(t, ProjectInsId("export-1"), h.removed[0])

	// An in-flight artifact for the settled project is dropped on arrival.
	c.Process(InterruptCompiled{Artifact: &CompiledArtifact{Snapshot: snap, Doc: "late"}})
	assert.Empty(t, h.compiled)
}

func TestChangeTaskInactiveEntryReportsSuspend(t *testing.T) {
	h := &recordingHandler{}
	c := New(Options{Handler: h, Primary: newTestUniverse()})
	defer c.Close()

	entry := EntryState{Entry: fileid.New("/main.typ"), Inactive: true}
	c.Process(InterruptChangeTask{Id: PrimaryId, Change: TaskChange{Entry: &entry}})

	var suspends int
	for _, r := range h.reports {
		if r.Kind == ReportSuspend {
			suspends++
		}
	}
	assert.Equal(t, 1, suspends)

	// An inactive entry yields no compile job regardless of reasons.
	assert.Nil(t, c.Primary().MayCompile(h, c.compile))
}

func TestMayCompileConsumesReasons(t *testing.T) {
	h := &recordingHandler{}
	c := New(Options{Handler: h, Primary: newTestUniverse(), Compile: func(*CompileSnapshot) CompileResult {
		return CompileResult{Doc: "ok", Deps: []fileid.FileId{fileid.New("/main.typ")}}
	}})
	defer c.Close()

	assert.Nil(t, c.Primary().MayCompile(h, c.compile), "no reason, no job")

	c.Process(InterruptCompile{Id: PrimaryId})
	run := c.Primary().MayCompile(h, c.compile)
	require.NotNil(t, run)
	assert.False(t, c.Primary().Reasons().Any(), "taking the job consumes the reasons")

	artifact := run()
	c.Process(InterruptCompiled{Artifact: artifact})
	assert.Equal(t, "ok", c.Primary().LatestDoc())
	assert.Equal(t, "ok", c.Primary().LatestSuccessDoc())
	require.Len(t, c.Primary().Deps(), 1)

	// Status reporting: one stage start, one success.
	var stages, successes int
	for _, r := range h.reports {
		switch r.Kind {
		case ReportStage:
			stages++
		case ReportCompileSuccess:
			successes++
		}
	}
	assert.Equal(t, 1, stages)
	assert.Equal(t, 1, successes)
}

func TestFailedCompileKeepsLastSuccessDoc(t *testing.T) {
	h := &recordingHandler{}
	fail := false
	c := New(Options{Handler: h, Primary: newTestUniverse(), Compile: func(*CompileSnapshot) CompileResult {
		if fail {
			return CompileResult{Doc: "bad", Errors: []string{"boom"}, Warnings: []string{"warn"}}
		}
		return CompileResult{Doc: "good"}
	}})
	defer c.Close()

	c.Process(InterruptCompile{Id: PrimaryId})
	c.Process(InterruptCompiled{Artifact: c.Primary().MayCompile(h, c.compile)()})

	fail = true
	c.Process(InterruptCompile{Id: PrimaryId})
	c.Process(InterruptCompiled{Artifact: c.Primary().MayCompile(h, c.compile)()})

	assert.Equal(t, "bad", c.Primary().LatestDoc())
	assert.Equal(t, "good", c.Primary().LatestSuccessDoc())

	var errReports []CompileReport
	for _, r := range h.reports {
		if r.Kind == ReportCompileError {
			errReports = append(errReports, r)
		}
	}
	require.Len(t, errReports, 1)
	assert.Equal(t, 2, errReports[0].NDiags, "warnings merge into the reported diagnostic count")
}

func TestCompileAllHandlerDrivesCompilesAutomatically(t *testing.T) {
	c := New(Options{
		Handler: CompileAllHandler{},
		Primary: newTestUniverse(),
		Compile: func(*CompileSnapshot) CompileResult { return CompileResult{Doc: "auto"} },
	})
	defer c.Close()

	// The handler schedules the job as part of processing the interrupt.
	c.Process(InterruptCompile{Id: PrimaryId})
	c.Close()
	c.Process(<-c.interrupts)

	assert.Equal(t, "auto", c.Primary().LatestDoc())
}

func TestFontChangeMarksReasonOnlyWhenStateChanges(t *testing.T) {
	c := New(Options{Primary: newTestUniverse()})
	defer c.Close()

	same := &FontResolver{}
	c.Process(InterruptFont{Resolver: same})
	assert.False(t, c.Primary().Reasons().Any())

	changed := &FontResolver{Paths: []string{"/fonts"}}
	c.Process(InterruptFont{Resolver: changed})
	assert.True(t, c.Primary().Reasons().Any())
}
