// Package debug provides category-scoped diagnostic logging for the
// toolchain's subsystems. Nothing is emitted unless a writer is installed
// and the message's category is enabled, so a default build stays silent.
// Hosts that speak a wire protocol on their output streams (see
// internal/wire) should additionally set quiet mode so a stray category
// can never corrupt a protocol frame.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Category selects which subsystems emit diagnostics. Categories combine
// as a bitmask.
type Category uint8

const (
	CatVfs Category = 1 << iota
	CatExpr
	CatCfg
	CatProject

	CatAll = CatVfs | CatExpr | CatCfg | CatProject
)

func (c Category) String() string {
	switch c {
	case CatVfs:
		return "vfs"
	case CatExpr:
		return "expr"
	case CatCfg:
		return "cfg"
	case CatProject:
		return "project"
	default:
		return "debug"
	}
}

// One mutex guards all logging state: the writer may be swapped while the
// loop goroutine and compile workers are logging concurrently.
var (
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	mask  = maskFromEnv()
	quiet bool
	seq   uint64
)

// maskFromEnv seeds the category mask from the DEBUG environment variable:
// "1", "true" or "all" enable every category, anything else is read as a
// comma-separated category list ("vfs,cfg").
func maskFromEnv() Category {
	switch v := os.Getenv("DEBUG"); v {
	case "", "0", "false":
		return 0
	case "1", "true", "all":
		return CatAll
	default:
		var m Category
		for _, name := range strings.Split(v, ",") {
			switch strings.TrimSpace(name) {
			case "vfs":
				m |= CatVfs
			case "expr":
				m |= CatExpr
			case "cfg":
				m |= CatCfg
			case "project":
				m |= CatProject
			}
		}
		return m
	}
}

// Enable turns the given categories on, in addition to anything enabled
// through the DEBUG environment variable.
func Enable(cats Category) {
	mu.Lock()
	defer mu.Unlock()
	mask |= cats
}

// Disable turns the given categories off.
func Disable(cats Category) {
	mu.Lock()
	defer mu.Unlock()
	mask &^= cats
}

// SetQuiet suppresses all output regardless of category mask and writer.
// Hosts that drive the core over a JSON boundary set this before serving
// so diagnostics can never interleave with protocol frames.
func SetQuiet(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = enabled
}

// SetOutput installs the diagnostic writer; nil disables output entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Enabled reports whether a message for any of the given categories would
// currently be emitted.
func Enabled(cats Category) bool {
	mu.Lock()
	defer mu.Unlock()
	return !quiet && out != nil && mask&cats != 0
}

// OpenLogFile routes diagnostics to a timestamped file under the system
// temp directory and returns its path. Call Close to detach the file.
func OpenLogFile() (string, error) {
	dir := filepath.Join(os.TempDir(), "tinymist-debug-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("create debug log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	file = f
	out = f
	return path, nil
}

// Close closes the log file opened by OpenLogFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	out = nil
	return err
}

// Logf emits one structured line for cat: a monotonic sequence number, the
// category field, and the formatted message, e.g.
//
//	12 cat=vfs revision bumped to 5
//
// The sequence number makes interleavings from worker goroutines
// reconstructible after the fact.
func Logf(cat Category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if quiet || out == nil || mask&cat == 0 {
		return
	}
	seq++
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(out, "%d cat=%s %s\n", seq, cat, msg)
}

// LogVfs logs revision and overlay activity.
func LogVfs(format string, args ...any) { Logf(CatVfs, format, args...) }

// LogExpr logs expression lowering activity.
func LogExpr(format string, args ...any) { Logf(CatExpr, format, args...) }

// LogCfg logs control-flow graph construction activity.
func LogCfg(format string, args ...any) { Logf(CatCfg, format, args...) }

// LogProject logs the project compiler's interrupt loop activity.
func LogProject(format string, args ...any) { Logf(CatProject, format, args...) }
