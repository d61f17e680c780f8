package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Myriad-Dreamin/tinymist-core/internal/cfg"
	"github.com/Myriad-Dreamin/tinymist-core/internal/config"
	"github.com/Myriad-Dreamin/tinymist-core/internal/exprir"
	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/project"
	"github.com/Myriad-Dreamin/tinymist-core/internal/syntax"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// workspaceResolver maps workspace-relative FileIds onto the project root.
type workspaceResolver struct {
	root string
}

func (r workspaceResolver) PathForId(id fileid.FileId) (fileid.PathResolution, error) {
	if id.InPackage() {
		return fileid.PathResolution{Rootless: true}, nil
	}
	return fileid.PathResolution{AbsPath: filepath.Join(r.root, filepath.FromSlash(id.Path()))}, nil
}

func parseSource(id fileid.FileId, data []byte) (any, *ferrors.FileError) {
	return syntax.Parse(data), nil
}

// analysisDoc is the "document" the built-in analysis compile produces: the
// textual CFG dump plus a per-file summary, standing in for the external
// Typst renderer at this boundary.
type analysisDoc struct {
	Entry   fileid.FileId
	CfgDump string
	Exports []string
}

func (d *analysisDoc) String() string {
	return fmt.Sprintf("%s: %d exports", d.Entry, len(d.Exports))
}

// newAnalysisCompile builds the CompileFn driving the project compiler:
// parse the entry through the VFS source cache, lower it to the expression
// IR, build control-flow graphs, and fold lowering diagnostics plus
// unreachable-code findings into warnings.
func newAnalysisCompile() project.CompileFn {
	return func(snap *project.CompileSnapshot) project.CompileResult {
		entry := snap.Entry.Entry
		deps := []fileid.FileId{entry}

		src, ferr := snap.Vfs.Source(entry)
		if ferr != nil {
			return project.CompileResult{Errors: []string{ferr.Error()}, Deps: deps}
		}

		root := src.Root.(*syntax.Node)
		info := exprir.Lower(entry, snap.Revision, root, nil)
		info.Source = src
		graphs := cfg.Build(root)

		warnings := append([]string(nil), info.Diagnostics...)
		for span, ref := range info.Resolves {
			if ref.Root != nil {
				continue
			}
			msg := fmt.Sprintf("%s: unknown variable %q", span, ref.Decl.Name)
			if hint := exprir.SuggestForRef(ref, info.Exports); hint != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", hint)
			}
			warnings = append(warnings, msg)
		}
		for _, body := range graphs.Bodies {
			for _, orphan := range body.OrphanBlocks() {
				for _, stmt := range body.Block(orphan).Stmts {
					warnings = append(warnings, fmt.Sprintf("%s: unreachable code", stmt.Span))
					break
				}
			}
			rets := illegalJumps(body)
			warnings = append(warnings, rets...)
		}

		doc := &analysisDoc{
			Entry:   entry,
			CfgDump: graphs.DebugDump(),
			Exports: info.Exports.Names(),
		}
		return project.CompileResult{Doc: doc, Warnings: warnings, Deps: deps}
	}
}

// illegalJumps reports structured jumps routed into the error exit.
func illegalJumps(body *cfg.Body) []string {
	var out []string
	for _, blk := range body.Blocks {
		t := blk.Term
		switch t.Kind {
		case cfg.TermReturn, cfg.TermBreak, cfg.TermContinue:
			if !t.Allowed {
				out = append(out, fmt.Sprintf("bb%d: %s outside its legal context", blk.Id, termName(t.Kind)))
			}
		}
	}
	return out
}

func termName(k cfg.TermKind) string {
	switch k {
	case cfg.TermBreak:
		return "break"
	case cfg.TermContinue:
		return "continue"
	default:
		return "return"
	}
}

// newUniverse assembles the primary world from the loaded configuration.
func newUniverse(cfgv *config.Config) *project.Universe {
	v := vfs.New(workspaceResolver{root: cfgv.Project.Root}, vfs.OsAccessModel{}, parseSource)

	entry, ok := cfgv.EntryId()
	if !ok {
		// An entry outside the workspace still compiles under its bare name.
		entry = fileid.New("/" + filepath.ToSlash(filepath.Base(cfgv.Project.Entry)))
	}

	return &project.Universe{
		Entry:  project.EntryState{Entry: entry},
		Inputs: cfgv.Compile.Inputs,
		Fonts:  &project.FontResolver{Paths: cfgv.Compile.FontPaths},
		Vfs:    v,
	}
}

func formatDiags(diags []string) string {
	if len(diags) == 0 {
		return ""
	}
	return "  " + strings.Join(diags, "\n  ")
}
