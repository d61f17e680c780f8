// Package pathutil provides utilities for converting between absolute and
// relative paths.
//
// The toolchain uses absolute paths internally for consistency and to avoid
// ambiguity, while logical file identity is workspace-relative. This package
// provides the conversion layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/thesis/ch/one.typ", "/home/user/thesis") → "ch/one.typ"
//   - ToRelative("/other/location/file.typ", "/home/user/thesis") → "/other/location/file.typ" (outside root)
//   - ToRelative("ch/one.typ", "/home/user/thesis") → "ch/one.typ" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// A ".."-prefixed result means the file is outside the root; the
	// absolute path is clearer in that case.
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToAbsolute resolves a possibly-relative path against a root directory.
func ToAbsolute(path, rootDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(rootDir, path))
}

// FileIdForPath converts a physical path under rootDir into its
// workspace-relative FileId. The second result is false when the path lies
// outside the workspace and therefore has no workspace identity.
func FileIdForPath(absPath, rootDir string) (fileid.FileId, bool) {
	rel := ToRelative(absPath, rootDir)
	if filepath.IsAbs(rel) {
		return fileid.FileId{}, false
	}
	return fileid.New("/" + filepath.ToSlash(rel)), true
}
