package project

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/Myriad-Dreamin/tinymist-core/internal/debug"
	"github.com/Myriad-Dreamin/tinymist-core/internal/vfs"
)

// FsWatcher monitors the workspace for changes and converts them into
// FilesystemEvent interrupts. It also answers upstream update requests from
// the compiler: when a memory event was deferred, the next emitted event
// carries the deferral's tick so the compiler can coalesce both changes
// into one revision.
type FsWatcher struct {
	watcher *fsnotify.Watcher

	include []string
	exclude []string
	access  vfs.AccessModel

	debouncer *eventDebouncer

	sink func(FilesystemEvent)

	done chan struct{}
	wg   sync.WaitGroup

	// pendingTick is the latest upstream update tick not yet echoed back.
	mu          sync.Mutex
	pendingTick *uint64

	eventsProcessed int64
}

// WatcherOptions configures an FsWatcher.
type WatcherOptions struct {
	// Include/Exclude are doublestar glob patterns over workspace paths.
	Include []string
	Exclude []string

	// DebounceInterval batches rapid successive events; defaults to 100ms.
	DebounceInterval time.Duration

	// Access reads file content for emitted insert snapshots; defaults to
	// the OS access model.
	Access vfs.AccessModel
}

// NewFsWatcher builds a watcher delivering events to sink.
func NewFsWatcher(opts WatcherOptions, sink func(FilesystemEvent)) (*FsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.DebounceInterval
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	access := opts.Access
	if access == nil {
		access = vfs.OsAccessModel{}
	}

	fw := &FsWatcher{
		watcher: watcher,
		include: opts.Include,
		exclude: opts.Exclude,
		access:  access,
		sink:    sink,
		done:    make(chan struct{}),
	}
	fw.debouncer = newEventDebouncer(debounce, fw.flush)
	return fw, nil
}

// Start begins watching root and every non-excluded directory below it.
func (fw *FsWatcher) Start(root string) error {
	if err := fw.addWatches(root); err != nil {
		return err
	}
	fw.wg.Add(1)
	go fw.processEvents()
	debug.LogProject("filesystem watcher started for %s", root)
	return nil
}

// Stop shuts the watcher down. Pending debounced events are dropped; the
// compiler's next memory event re-establishes any lost overlay state.
func (fw *FsWatcher) Stop() error {
	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	fw.debouncer.stop()
	return err
}

// UpstreamUpdate accepts the compiler's deferred-memory envelope: the next
// emitted filesystem event echoes ev.Tick. It also forces a prompt flush so
// the deferred edit does not wait for unrelated disk activity.
func (fw *FsWatcher) UpstreamUpdate(ev UpstreamUpdateEvent) {
	fw.mu.Lock()
	tick := ev.Tick
	fw.pendingTick = &tick
	fw.mu.Unlock()
	fw.debouncer.kick()
}

// addWatches recursively adds watches below root, skipping excluded
// directories and symlink cycles.
func (fw *FsWatcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			debug.LogProject("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (fw *FsWatcher) shouldIgnoreDirectory(path string) bool {
	for _, pattern := range fw.exclude {
		dirPattern := strings.TrimSuffix(pattern, "/**")
		if matched, _ := doublestar.Match(dirPattern, filepath.Base(path)); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(path)); matched {
			return true
		}
	}
	return false
}

// shouldProcessPath filters file events down to the configured include
// patterns; an empty include list accepts everything not excluded.
func (fw *FsWatcher) shouldProcessPath(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range fw.exclude {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return false
		}
	}
	if len(fw.include) == 0 {
		return true
	}
	for _, pattern := range fw.include {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

func (fw *FsWatcher) processEvents() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			debug.LogProject("watcher error: %v", err)
		}
	}
}

func (fw *FsWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	info, err := os.Stat(path)
	if err != nil {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && fw.shouldProcessPath(path) {
			fw.debouncer.addEvent(path, true)
		}
		return
	}

	if info.IsDir() {
		// New directories need their own watch.
		if event.Op&fsnotify.Create != 0 && !fw.shouldIgnoreDirectory(path) {
			if err := fw.watcher.Add(path); err != nil {
				debug.LogProject("failed to watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if !fw.shouldProcessPath(path) {
		return
	}
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
		fw.debouncer.addEvent(path, false)
	case event.Op&fsnotify.Remove != 0:
		fw.debouncer.addEvent(path, true)
	}
}

// flush converts accumulated debounced events into one FilesystemEvent,
// reading current content for inserts and attaching a pending upstream
// tick if one is outstanding.
func (fw *FsWatcher) flush(events map[string]bool) {
	var set FileChangeSet
	for path, removed := range events {
		if removed {
			set.Removes = append(set.Removes, path)
			continue
		}
		set.Inserts = append(set.Inserts, PathSnap{Path: path, Snap: fw.access.ReadAll(path)})
	}

	fw.mu.Lock()
	var upstream *UpstreamUpdateEvent
	if fw.pendingTick != nil {
		upstream = &UpstreamUpdateEvent{Tick: *fw.pendingTick}
		fw.pendingTick = nil
	}
	fw.eventsProcessed += int64(len(events))
	fw.mu.Unlock()

	if set.IsEmpty() && upstream == nil {
		return
	}
	fw.sink(FilesystemEvent{Changes: set, Upstream: upstream})
}

// EventsProcessed reports how many raw events have been flushed so far.
func (fw *FsWatcher) EventsProcessed() int64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.eventsProcessed
}

// eventDebouncer batches file events so a burst of writes produces one
// FilesystemEvent.
type eventDebouncer struct {
	mu       sync.Mutex
	events   map[string]bool // path -> removed
	debounce time.Duration
	timer    *time.Timer
	flush    func(map[string]bool)
}

func newEventDebouncer(debounce time.Duration, flush func(map[string]bool)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]bool),
		debounce: debounce,
		flush:    flush,
	}
}

func (d *eventDebouncer) addEvent(path string, removed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[path] = removed
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.fire)
}

// kick forces a flush on the next debounce boundary even with no pending
// events (used to echo an upstream tick promptly).
func (d *eventDebouncer) kick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.fire)
}

func (d *eventDebouncer) fire() {
	d.mu.Lock()
	events := d.events
	d.events = make(map[string]bool)
	d.mu.Unlock()
	d.flush(events)
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
