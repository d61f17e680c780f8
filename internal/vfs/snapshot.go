package vfs

import "github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"

// FileSnapshot is the result of reading a file at a fixed revision: either
// successful content or a classified failure. It stands in for a
// Result<Bytes, FileError>.
type FileSnapshot struct {
	Bytes Bytes
	Err   *ferrors.FileError
}

// Ok builds a successful snapshot.
func Ok(b Bytes) FileSnapshot {
	return FileSnapshot{Bytes: b}
}

// ErrSnapshot builds a failed snapshot.
func ErrSnapshot(err *ferrors.FileError) FileSnapshot {
	return FileSnapshot{Err: err}
}

// IsOk reports whether the snapshot represents a successful read.
func (s FileSnapshot) IsOk() bool {
	return s.Err == nil
}

// Equal compares two snapshots the way the invalidation rule requires:
// successful snapshots compare by content, failed snapshots compare by
// classified error (ignoring timestamp and message detail).
func (s FileSnapshot) Equal(o FileSnapshot) bool {
	if s.IsOk() != o.IsOk() {
		return false
	}
	if s.IsOk() {
		return s.Bytes.Equal(o.Bytes)
	}
	return s.Err.Equal(o.Err)
}
