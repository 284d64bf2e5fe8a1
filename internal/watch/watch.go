// Package watch installs real filesystem watches for every project in a build queue and forwards
// relevant events into the build driver's invalidation queue, following
// tsgonest's internal/watcher debounce shape but backed by a real
// fsnotify.Watcher instead of directory-snapshot polling.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tsb-dev/tsb/internal/configcache"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/solution"
	"github.com/tsb-dev/tsb/internal/status"
)

// sourceExtensions are the file extensions a wildcard-directory event must
// carry to be considered a relevant source change.
var sourceExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".json", ".js", ".jsx"}

// ConfigSource resolves a project identifier to its cached config entry
// and supports eviction. *configcache.Cache satisfies it; tests substitute
// a plain map.
type ConfigSource interface {
	Get(id projectid.ID) configcache.Entry
	Invalidate(id projectid.ID)
}

// Watcher owns the fsnotify handle and the set of watched paths for one
// build queue. It knows nothing about compiling — every relevant event is
// forwarded to the driver's InvalidateProject, which does the rest.
type Watcher struct {
	builder  *solution.Builder
	cache    ConfigSource
	fw       *fsnotify.Watcher
	onStatus func(string)

	configOf   map[string]string // watched path -> owning project's config file name, for explicit inputs/config
	wildcardOf map[string]string

	// timer is only ever read or reset from the Run goroutine: its channel
	// is one of Run's select cases, so the debounce never touches builder
	// state from any thread but the one driving fsnotify events.
	timer *time.Timer
}

// New creates a Watcher. onStatus, if non-nil, is called with each
// status line normally written to the watch status reporter.
func New(builder *solution.Builder, cache ConfigSource, onStatus func(string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	return &Watcher{
		builder:    builder,
		cache:      cache,
		fw:         fw,
		onStatus:   onStatus,
		configOf:   map[string]string{},
		wildcardOf: map[string]string{},
		timer:      timer,
	}, nil
}

// Close tears down the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.timer.Stop()
	return w.fw.Close()
}

// Install wires the config file, every wildcard directory, and every
// explicit input file of each project in queue. An input whose directory is
// already watched as a wildcard directory is not watched separately; its
// events arrive through that directory's watch and classify as Partial.
func (w *Watcher) Install(queue []projectid.ID) {
	for _, id := range queue {
		name := string(id)
		entry := w.cache.Get(id)

		// (a) the config file itself — on change, Full reload.
		if err := w.fw.Add(name); err == nil {
			w.configOf[name] = name
		}

		if !entry.Ok() {
			continue
		}

		// (b) wildcard directories — on a relevant event, Partial reload.
		for _, wc := range entry.Project.Wildcards {
			if err := w.fw.Add(wc.Path); err == nil {
				w.wildcardOf[wc.Path] = name
			}
		}

		// (c) explicit input files — on change, None (eviction alone
		// forces reclassification; InvalidateProject widens the level).
		for _, input := range entry.Project.FileNames {
			dir := filepath.Dir(input)
			if _, ok := w.wildcardOf[dir]; ok {
				continue
			}
			if err := w.fw.Add(input); err == nil {
				w.configOf[input] = name
			}
		}
	}
}

// Run drains fsnotify events until ctx is cancelled, forwarding each
// relevant one to the builder's invalidation queue and driving the 250ms
// debounce drain loop. Every case below runs on this one goroutine, so the
// debounce timer firing can never race the event handler over builder
// state — there is exactly one driver thread, as the core requires.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case <-w.fw.Errors:
			// Host watch backends may drop individual errors; the core
			// has no per-error recovery beyond continuing to watch.
		case <-w.timer.C:
			w.drainOne()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	name, level, ok := w.classifyEvent(ev)
	if !ok {
		return
	}
	if level == solution.ReloadFull {
		w.cache.Invalidate(projectid.ID(name))
	}
	w.invalidate(name, level)
}

// classifyEvent decides which project a filesystem event invalidates and
// at what reload level: a config file change reloads its project fully; a
// change to an explicitly watched input only needs the status eviction; a
// relevant wildcard-directory event re-expands the file list. ok is false
// for irrelevant events — unknown paths, a project's own output files, and
// non-source extensions.
func (w *Watcher) classifyEvent(ev fsnotify.Event) (name string, level solution.ReloadLevel, ok bool) {
	if owner, watched := w.configOf[ev.Name]; watched {
		if owner == ev.Name {
			return ev.Name, solution.ReloadFull, true
		}
		return owner, solution.ReloadNone, true
	}

	dir := filepath.Dir(ev.Name)
	owner, watched := w.wildcardOf[dir]
	if !watched {
		return "", solution.ReloadNone, false
	}
	entry := w.cache.Get(projectid.ID(owner))
	if entry.Ok() && status.IsProjectOutput(entry.Project, ev.Name) {
		return "", solution.ReloadNone, false
	}
	if !ev.Has(fsnotify.Create) && !isRelevantExtension(ev.Name) {
		return "", solution.ReloadNone, false
	}
	return owner, solution.ReloadPartial, true
}

func isRelevantExtension(name string) bool {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// invalidate forwards to the builder and (re)arms the 250ms debounce
// timer. A pending timer is cancelled and replaced on every new
// invalidation.
func (w *Watcher) invalidate(name string, level solution.ReloadLevel) {
	w.builder.InvalidateProject(name, level)
	w.rearm()
}

func (w *Watcher) rearm() {
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(solution.DebounceInterval)
}

// drainOne implements buildInvalidatedProject's driving loop: pop one
// project, build it, and either re-arm for the next pop or emit the
// watch-mode summary once the queue is empty.
func (w *Watcher) drainOne() {
	more := w.builder.BuildInvalidatedProject(context.Background())
	if more {
		w.rearm()
		return
	}
	if w.onStatus != nil {
		w.onStatus(w.builder.WatchSummary())
	}
}
