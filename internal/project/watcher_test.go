package project

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsWatcherEmitsInsertsAndEchoesUpstreamTick(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var events []FilesystemEvent
	sink := func(ev FilesystemEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	fw, err := NewFsWatcher(WatcherOptions{
		Include:          []string{"**/*.typ"},
		DebounceInterval: 20 * time.Millisecond,
	}, sink)
	require.NoError(t, err)
	require.NoError(t, fw.Start(dir))
	defer func() { require.NoError(t, fw.Stop()) }()

	path := filepath.Join(dir, "a.typ")
	require.NoError(t, os.WriteFile(path, []byte("= A"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			for _, ins := range ev.Changes.Inserts {
				if ins.Path == path && ins.Snap.IsOk() {
					return true
				}
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond, "the write should surface as an insert with content")

	// An upstream update envelope is echoed on the next flush even with no
	// new disk activity.
	fw.UpstreamUpdate(UpstreamUpdateEvent{Tick: 7})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev.Upstream != nil && ev.Upstream.Tick == 7 {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFsWatcherFiltersExcludedPaths(t *testing.T) {
	fw, err := NewFsWatcher(WatcherOptions{
		Include: []string{"**/*.typ"},
		Exclude: []string{"**/target/**"},
	}, func(FilesystemEvent) {})
	require.NoError(t, err)
	defer func() { require.NoError(t, fw.Stop()) }()

	assert.True(t, fw.shouldProcessPath("/ws/chapter.typ"))
	assert.False(t, fw.shouldProcessPath("/ws/notes.md"))
	assert.False(t, fw.shouldProcessPath("/ws/target/out.typ"))
	assert.True(t, fw.shouldIgnoreDirectory("/ws/target"))
}
