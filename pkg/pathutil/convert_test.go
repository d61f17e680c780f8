package pathutil

import (
	"runtime"
	"testing"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/thesis/chapters/one.typ",
			rootDir:  "/home/user/thesis",
			expected: "chapters/one.typ",
		},
		{
			name:     "root level file",
			absPath:  "/home/user/thesis/main.typ",
			rootDir:  "/home/user/thesis",
			expected: "main.typ",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/thesis",
			rootDir:  "/home/user/thesis",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "chapters/one.typ",
			rootDir:  "/home/user/thesis",
			expected: "chapters/one.typ",
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/other/location/file.typ",
			rootDir:  "/home/user/thesis",
			expected: "/other/location/file.typ",
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/thesis/main.typ",
			rootDir:  "",
			expected: "/home/user/thesis/main.typ",
		},
		{
			name:     "empty path",
			absPath:  "",
			rootDir:  "/home/user/thesis",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" {
				t.Skip("POSIX path fixtures")
			}
			got := ToRelative(tt.absPath, tt.rootDir)
			if got != tt.expected {
				t.Errorf("ToRelative(%q, %q) = %q, want %q", tt.absPath, tt.rootDir, got, tt.expected)
			}
		})
	}
}

func TestToAbsolute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX path fixtures")
	}
	if got := ToAbsolute("chapters/one.typ", "/ws"); got != "/ws/chapters/one.typ" {
		t.Errorf("ToAbsolute relative = %q", got)
	}
	if got := ToAbsolute("/abs/file.typ", "/ws"); got != "/abs/file.typ" {
		t.Errorf("ToAbsolute absolute = %q", got)
	}
}

func TestFileIdForPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX path fixtures")
	}
	id, ok := FileIdForPath("/ws/chapters/one.typ", "/ws")
	if !ok {
		t.Fatal("expected a workspace identity")
	}
	if id != fileid.New("/chapters/one.typ") {
		t.Errorf("unexpected id %v", id)
	}

	if _, ok := FileIdForPath("/elsewhere/one.typ", "/ws"); ok {
		t.Error("a path outside the workspace must have no workspace identity")
	}
}
