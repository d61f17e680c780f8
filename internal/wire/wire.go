// Package wire gives hosts a schema-validated JSON encoding of the
// interrupt and report shapes, for driving the project compiler over a
// byte boundary instead of linking against the Go types. It adds no
// semantics of its own.
//
// Compiled-artifact interrupts deliberately have no wire form: artifacts
// carry live snapshots and only ever travel from the job runner back into
// the loop in-process.
package wire

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/project"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// InterruptSchema describes the JSON envelope accepted by DecodeInterrupt.
func InterruptSchema() *jsonschema.Schema {
	changeSet := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"removes": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"inserts": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"path":    {Type: "string"},
						"content": {Type: "string"},
					},
					Required: []string{"path"},
				},
			},
		},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"type": {
				Type:        "string",
				Description: "Interrupt kind",
				Enum:        []any{"compile", "settle", "changeTask", "font", "memory", "fs"},
			},
			"id": {
				Type:        "string",
				Description: "Project instance id (compile, settle, changeTask)",
			},
			"entry": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path":     {Type: "string"},
					"inactive": {Type: "boolean"},
				},
				Required: []string{"path"},
			},
			"inputs": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Type: "string"},
			},
			"fontPaths": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"kind": {
				Type:        "string",
				Description: "Memory event kind",
				Enum:        []any{"sync", "update"},
			},
			"changes":      changeSet,
			"upstreamTick": {Type: "integer"},
		},
		Required: []string{"type"},
	}
}

// CompileReportSchema describes the JSON envelope produced by EncodeReport.
func CompileReportSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"revision": {Type: "integer"},
			"id":       {Type: "string"},
			"kind": {
				Type: "string",
				Enum: []any{"suspend", "stage", "compileError", "exportError", "compileSuccess"},
			},
			"file":       {Type: "string"},
			"stage":      {Type: "string"},
			"nDiags":     {Type: "integer"},
			"nWarnings":  {Type: "integer"},
			"durationMs": {Type: "integer"},
		},
		Required: []string{"revision", "id", "kind"},
	}
}

var (
	interruptResolveOnce sync.Once
	interruptResolved    *jsonschema.Resolved
	interruptResolveErr  error
)

func resolvedInterruptSchema() (*jsonschema.Resolved, error) {
	interruptResolveOnce.Do(func() {
		interruptResolved, interruptResolveErr = InterruptSchema().Resolve(nil)
	})
	return interruptResolved, interruptResolveErr
}

type wireChangeSet struct {
	Removes []string `json:"removes,omitempty"`
	Inserts []struct {
		Path    string  `json:"path"`
		Content *string `json:"content,omitempty"`
	} `json:"inserts,omitempty"`
}

type wireInterrupt struct {
	Type string `json:"type"`
	Id   string `json:"id,omitempty"`

	Entry *struct {
		Path     string `json:"path"`
		Inactive bool   `json:"inactive,omitempty"`
	} `json:"entry,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty"`

	FontPaths []string `json:"fontPaths,omitempty"`

	Kind         string        `json:"kind,omitempty"`
	Changes      wireChangeSet `json:"changes,omitempty"`
	UpstreamTick *uint64       `json:"upstreamTick,omitempty"`
}

// DecodeInterrupt validates data against InterruptSchema and converts it to
// the in-process interrupt type.
func DecodeInterrupt(data []byte) (project.Interrupt, error) {
	resolved, err := resolvedInterruptSchema()
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("malformed interrupt envelope: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("interrupt envelope rejected by schema: %w", err)
	}

	var w wireInterrupt
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case "compile":
		return project.InterruptCompile{Id: project.ProjectInsId(w.Id)}, nil
	case "settle":
		return project.InterruptSettle{Id: project.ProjectInsId(w.Id)}, nil
	case "changeTask":
		change := project.TaskChange{Inputs: w.Inputs}
		if w.Entry != nil {
			change.Entry = &project.EntryState{
				Entry:    fileid.New(w.Entry.Path),
				Inactive: w.Entry.Inactive,
			}
		}
		return project.InterruptChangeTask{Id: project.ProjectInsId(w.Id), Change: change}, nil
	case "font":
		return project.InterruptFont{Resolver: &project.FontResolver{Paths: w.FontPaths}}, nil
	case "memory":
		kind := project.MemoryUpdate
		if w.Kind == "sync" {
			kind = project.MemorySync
		}
		return project.InterruptMemory{Event: project.MemoryEvent{
			Kind:    kind,
			Changes: decodeChangeSet(w.Changes),
		}}, nil
	case "fs":
		ev := project.FilesystemEvent{Changes: decodeChangeSet(w.Changes)}
		if w.UpstreamTick != nil {
			ev.Upstream = &project.UpstreamUpdateEvent{Tick: *w.UpstreamTick}
		}
		return project.InterruptFs{Event: ev}, nil
	default:
		return nil, fmt.Errorf("unknown interrupt type %q", w.Type)
	}
}

func decodeChangeSet(w wireChangeSet) project.FileChangeSet {
	set := project.FileChangeSet{Removes: w.Removes}
	for _, ins := range w.Inserts {
		content := ""
		if ins.Content != nil {
			content = *ins.Content
		}
		set.Inserts = append(set.Inserts, project.PathSnap{
			Path: ins.Path,
			Snap: vfs.Ok(vfs.NewBytes([]byte(content))),
		})
	}
	return set
}

type wireReport struct {
	Revision   uint64 `json:"revision"`
	Id         string `json:"id"`
	Kind       string `json:"kind"`
	File       string `json:"file,omitempty"`
	Stage      string `json:"stage,omitempty"`
	NDiags     int    `json:"nDiags,omitempty"`
	NWarnings  int    `json:"nWarnings,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// EncodeReport renders a compile report as its wire envelope.
func EncodeReport(revision uint64, id project.ProjectInsId, r project.CompileReport) ([]byte, error) {
	w := wireReport{
		Revision:   revision,
		Id:         string(id),
		File:       r.File.Path(),
		Stage:      r.Stage,
		NDiags:     r.NDiags,
		NWarnings:  r.NWarnings,
		DurationMs: r.Duration.Milliseconds(),
	}
	switch r.Kind {
	case project.ReportSuspend:
		w.Kind = "suspend"
	case project.ReportStage:
		w.Kind = "stage"
	case project.ReportCompileError:
		w.Kind = "compileError"
	case project.ReportExportError:
		w.Kind = "exportError"
	case project.ReportCompileSuccess:
		w.Kind = "compileSuccess"
	default:
		return nil, fmt.Errorf("unknown report kind %d", r.Kind)
	}
	return json.Marshal(w)
}
