package project

import (
	"time"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

// ReportKind discriminates a CompileReport.
type ReportKind int

const (
	// ReportSuspend signals the project's entry became inactive.
	ReportSuspend ReportKind = iota
	// ReportStage marks the start of a named compile stage.
	ReportStage
	// ReportCompileError is a finished compile with errors.
	ReportCompileError
	// ReportExportError is a finished export with errors.
	ReportExportError
	// ReportCompileSuccess is a finished compile with zero errors.
	ReportCompileSuccess
)

// CompileReport is a stage or outcome report delivered to the handler.
type CompileReport struct {
	Kind ReportKind
	File fileid.FileId

	// Stage label and start time for ReportStage.
	Stage string
	At    time.Time

	// Diagnostics count for error reports, warning count for success.
	NDiags    int
	NWarnings int
	Duration  time.Duration
}

// Handler is the consumer contract: compile reporting, artifact delivery,
// and the per-interrupt scheduling hook.
type Handler interface {
	// OnAnyCompileReason is called after every interrupt; the handler
	// decides which projects to ask MayCompile of.
	OnAnyCompileReason(c *ProjectCompiler)

	// NotifyCompile is invoked exactly once per installed artifact.
	NotifyCompile(artifact *CompiledArtifact)

	// NotifyRemoved is invoked when a dedicated project is settled.
	NotifyRemoved(id ProjectInsId)

	// Status delivers stage and outcome reports.
	Status(revision uint64, id ProjectInsId, report CompileReport)
}

// NoopHandler ignores every notification; useful for headless use and as an
// embedding base for handlers that care about a subset of the contract.
type NoopHandler struct{}

func (NoopHandler) OnAnyCompileReason(*ProjectCompiler)        {}
func (NoopHandler) NotifyCompile(*CompiledArtifact)            {}
func (NoopHandler) NotifyRemoved(ProjectInsId)                 {}
func (NoopHandler) Status(uint64, ProjectInsId, CompileReport) {}

var _ Handler = NoopHandler{}

// CompileAllHandler schedules a compile on every project that has an
// accumulated reason, dispatching each run through the compiler's job
// runner. It is the default scheduling policy for hosts that just want the
// loop to keep documents fresh.
type CompileAllHandler struct {
	NoopHandler
}

func (CompileAllHandler) OnAnyCompileReason(c *ProjectCompiler) {
	c.CompileAll()
}
