// Package fileid identifies logical files tracked by the VFS, independent of
// where they physically live on disk.
package fileid

import "fmt"

// PackageSpec is the optional package coordinate carried by a FileId that
// belongs to a fetched Typst package rather than the active workspace.
type PackageSpec struct {
	Namespace string
	Name      string
	Version   string
}

func (p PackageSpec) String() string {
	if p.Version == "" {
		return fmt.Sprintf("@%s/%s", p.Namespace, p.Name)
	}
	return fmt.Sprintf("@%s/%s:%s", p.Namespace, p.Name, p.Version)
}

// FileId is an opaque, comparable handle identifying a logical file. Two
// FileIds are equal iff their package coordinate and virtual path match, so
// FileId is safe to use as a map key directly.
type FileId struct {
	pkg  PackageSpec
	path string
}

// New builds a workspace-relative FileId for a virtual path (always starting
// with "/").
func New(path string) FileId {
	return FileId{path: normalize(path)}
}

// NewInPackage builds a FileId rooted inside a fetched package.
func NewInPackage(pkg PackageSpec, path string) FileId {
	return FileId{pkg: pkg, path: normalize(path)}
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

// Path returns the virtual path component of the id.
func (f FileId) Path() string {
	return f.path
}

// Package returns the package coordinate, or the zero value for a
// workspace-relative id.
func (f FileId) Package() PackageSpec {
	return f.pkg
}

// InPackage reports whether this id is rooted inside a fetched package.
func (f FileId) InPackage() bool {
	return f.pkg.Name != ""
}

// Join resolves a relative import path against the directory of f.
func (f FileId) Join(rel string) FileId {
	if rel != "" && rel[0] == '/' {
		return FileId{pkg: f.pkg, path: normalize(rel)}
	}
	dir := dirname(f.path)
	return FileId{pkg: f.pkg, path: normalize(joinClean(dir, rel))}
}

func (f FileId) String() string {
	if f.InPackage() {
		return f.pkg.String() + f.path
	}
	return f.path
}

func dirname(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

// joinClean joins a directory and a relative path, resolving "." and ".."
// segments without touching the filesystem.
func joinClean(dir, rel string) string {
	segs := splitSegments(dir)
	for _, s := range splitSegments(rel) {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, s)
		}
	}
	out := "/"
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func splitSegments(p string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				segs = append(segs, p[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

// PathResolution is the concrete location a RootResolver maps a FileId to.
type PathResolution struct {
	// AbsPath is the resolved filesystem path, empty for rootless (untitled)
	// buffers.
	AbsPath string
	// Rootless indicates the id has no backing physical path.
	Rootless bool
}

// RootResolver maps a FileId to a concrete filesystem path. Implementations
// must be side-effect-free and referentially transparent for a fixed
// configuration.
type RootResolver interface {
	PathForId(id FileId) (PathResolution, error)
}
