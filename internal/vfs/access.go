package vfs

import (
	"os"
	"unicode/utf8"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
)

// AccessModel is the raw, physical file reader the VFS wraps. It is the
// innermost collaborator in the layering described by the package doc: every
// overlay and notify layer eventually falls through to one of these.
type AccessModel interface {
	ReadAll(path string) FileSnapshot
}

// OsAccessModel reads directly from the local filesystem.
type OsAccessModel struct{}

// ReadAll implements AccessModel by shelling out to os.ReadFile and
// classifying the result.
func (OsAccessModel) ReadAll(path string) FileSnapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrSnapshot(ferrors.NewFileError("read", path, err))
	}
	if !utf8.Valid(data) {
		return ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindInvalidUtf8, "read", path, nil))
	}
	return Ok(NewBytes(data))
}

// MapAccessModel is an in-memory AccessModel useful for tests and for
// untitled/rootless buffers that never touch disk.
type MapAccessModel struct {
	Files map[string]FileSnapshot
}

// NewMapAccessModel builds an empty in-memory access model.
func NewMapAccessModel() *MapAccessModel {
	return &MapAccessModel{Files: make(map[string]FileSnapshot)}
}

func (m *MapAccessModel) ReadAll(path string) FileSnapshot {
	if snap, ok := m.Files[path]; ok {
		return snap
	}
	return ErrSnapshot(ferrors.NewFileErrorKind(ferrors.KindNotFound, "read", path, os.ErrNotExist))
}
