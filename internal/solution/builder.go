// Package solution implements the build driver: buildAll,
// cleanAll, and the watch-mode invalidation queue with debounce, driving
// the dependency graph and up-to-date classifier to compile only what's
// necessary.
package solution

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/microsoft/typescript-go/shim/ast"
	"github.com/microsoft/typescript-go/shim/vfs"

	"github.com/tsb-dev/tsb/internal/configcache"
	"github.com/tsb-dev/tsb/internal/diagnostic"
	"github.com/tsb-dev/tsb/internal/graph"
	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/status"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// ExitCode mirrors tsc -b's own two-valued exit status.
type ExitCode int

const (
	ExitSuccess            ExitCode = 0
	ExitDiagnosticsPresent ExitCode = 2
)

// DebounceInterval is the fixed invalidation-queue debounce window.
const DebounceInterval = 250 * time.Millisecond

// Options are the build options recognized from the command line.
type Options struct {
	Dry                 bool
	Force               bool
	Verbose             bool
	PreserveWatchOutput bool
	SingleThreaded      bool
}

// ResultFlags is the bitmask buildSingleProject returns.
type ResultFlags int

const (
	Success ResultFlags = 1 << iota
	DeclarationOutputUnchanged
	ConfigFileErrors
	SyntaxErrors
	TypeErrors
	DeclarationEmitErrors
)

func (f ResultFlags) has(flag ResultFlags) bool { return f&flag != 0 }

// Builder owns every piece of driver-mutable state: the config
// cache, the classifier's memo, the unchanged-outputs map, the
// pending-build map, and the invalidated queue. The watch-mode debounce
// timer is not here: it belongs to internal/watch's Watcher, which calls
// back into the Builder. All of it is mutated only from the driver's own
// goroutine — there is no locking because there is no concurrent access.
type Builder struct {
	host hostfs.Host
	fs   vfs.FS
	opts Options

	cache      *configcache.Cache
	classifier *status.Classifier

	unchangedOutputs map[string]time.Time
	errorCounts      map[projectid.ID]int

	pending     map[projectid.ID]ReloadLevel
	invalidated []projectid.ID

	graph *graph.Graph

	diagReporter tscompiler.Reporter
	statusLog    *diagnostic.Reporter
	allDiags     []*ast.Diagnostic

	stderr io.Writer
}

// New constructs a Builder against a live host/filesystem.
func New(host hostfs.Host, opts Options, stderr io.Writer) *Builder {
	fs := tscompiler.FS(host)
	b := &Builder{
		host:             host,
		fs:               fs,
		opts:             opts,
		cache:            configcache.New(host, fs),
		unchangedOutputs: map[string]time.Time{},
		errorCounts:      map[projectid.ID]int{},
		pending:          map[projectid.ID]ReloadLevel{},
		stderr:           stderr,
		statusLog:        diagnostic.NewReporter(stderr),
	}
	b.classifier = status.NewClassifier(host, b.cache, b.unchangedOutputs)
	b.diagReporter = tscompiler.NewReporter(stderr, host.GetCurrentDirectory(), tscompiler.UsePrettyOutput())
	return b
}

// resolveRoots turns user-typed root names into identifiers, dropping and
// reporting any that cannot be found.
func (b *Builder) resolveRoots(names []string) []projectid.ID {
	ids := make([]projectid.ID, 0, len(names))
	for _, name := range names {
		id, ok := projectid.Resolve(b.host, name)
		if !ok {
			b.statusLog.Errorf(diagnostic.CategoryConfigError, name, "File '%s' not found.", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// buildGraph resolves roots and builds the dependency graph, rebuilding
// the classifier against the fresh graph's project source (the cache).
// graph.Build never returns a nil *Graph, even on failure — its edge maps
// are retained on b.graph regardless, so a later InvalidateProject can
// still walk ChildToParents to find the dependents of a project whose own
// subtree failed to parse or closed an illegal cycle.
func (b *Builder) buildGraph(rootNames []string) (*graph.Graph, ExitCode) {
	roots := b.resolveRoots(rootNames)
	g, err := graph.Build(roots, b.cache, b.host)
	b.graph = g
	if err != nil {
		b.statusLog.Errorf(diagnostic.CategoryCycle, "", "%s", err.Error())
		return nil, ExitDiagnosticsPresent
	}
	if b.opts.Verbose {
		fmt.Fprintln(b.stderr, "Projects in this build:")
		for _, id := range g.Queue {
			fmt.Fprintf(b.stderr, "    * %s\n", id)
		}
	}
	return g, ExitSuccess
}

// BuildAll is the `build` entry point.
func (b *Builder) BuildAll(ctx context.Context, rootNames []string) ExitCode {
	b.allDiags = nil
	graphStart := time.Now()
	g, code := b.buildGraph(rootNames)
	graphElapsed := time.Since(graphStart)
	if g == nil {
		return code
	}

	var classifyElapsed, compileElapsed time.Duration
	hadFailure := false
	for _, id := range g.Queue {
		classifyStart := time.Now()
		s := b.classifier.Classify(id)
		classifyElapsed += time.Since(classifyStart)

		switch s.Kind {
		case status.ContainerOnly:
			if b.opts.Verbose {
				b.logStatus(id, "Project %s is a container only", id)
			}
			continue
		case status.UpToDate:
			if !b.opts.Force {
				if b.opts.Verbose {
					b.logStatus(id, "Project %s is up to date", id)
				}
				continue
			}
		case status.UpstreamBlocked:
			if b.opts.Verbose {
				b.logStatus(id, "Project %s can't be built because its dependency %s has errors", id, s.UpstreamName)
			}
			hadFailure = true
			continue
		case status.UpToDateWithUpstreamTypes:
			if !b.opts.Force {
				if b.opts.Dry {
					fmt.Fprintf(b.stderr, "Project %s would have its output timestamps updated\n", id)
					continue
				}
				touchStart := time.Now()
				b.touchUpToDate(id, s)
				compileElapsed += time.Since(touchStart)
				continue
			}
		}

		compileStart := time.Now()
		flags := b.buildSingleProject(ctx, id)
		compileElapsed += time.Since(compileStart)
		if !flags.has(Success) {
			hadFailure = true
		}
	}

	tscompiler.WriteSummary(b.stderr, b.allDiags, b.host.GetCurrentDirectory())

	if b.opts.Verbose {
		b.printTimingSummary(graphElapsed, classifyElapsed, compileElapsed)
	}

	if hadFailure {
		return ExitDiagnosticsPresent
	}
	return ExitSuccess
}

// printTimingSummary reports the three phases of one buildAll run: graph
// construction, classification, and compile-or-touch. The breakdown is
// per-solution-run rather than per-project, since a single project's
// compile time is already visible from its own "Building project X" line.
func (b *Builder) printTimingSummary(graph, classify, compile time.Duration) {
	fmt.Fprintf(b.stderr, "Graph: %s, Classify: %s, Compile: %s, Total: %s\n",
		graph.Round(time.Millisecond), classify.Round(time.Millisecond),
		compile.Round(time.Millisecond), (graph + classify + compile).Round(time.Millisecond))
}

// touchUpToDate performs the fast-rebuild timestamp-only update for a
// pseudo-up-to-date project: every output's modification time is set to
// now, and the status is replaced with
// UpToDate carrying forward the prior declaration-change time.
func (b *Builder) touchUpToDate(id projectid.ID, s status.Status) {
	project, _ := b.cache.Parsed(id)
	now := time.Now()
	for _, out := range status.ExpectedOutputs(project) {
		_ = b.host.Chtimes(out.Path, now, now)
	}
	if b.opts.Verbose {
		b.logStatus(id, "Updating output timestamps of project %s", id)
	}
	b.classifier.Evict(id)
	b.memoizeUpToDate(id, s.NewestDeclarationFileContentChanged)
}

// memoizeUpToDate seeds the classifier's memo directly with a synthetic
// UpToDate status, used after a timestamp-only touch or a successful
// build, so the next classification of a downstream project observes the
// refreshed state without re-touching the filesystem.
func (b *Builder) memoizeUpToDate(id projectid.ID, newestDeclChange time.Time) {
	project, _ := b.cache.Parsed(id)
	outputs := status.ExpectedOutputs(project)
	now := time.Now()
	s := status.Status{Kind: status.UpToDate, NewestDeclarationFileContentChanged: newestDeclChange, NewestInputTime: now}
	if len(outputs) > 0 {
		s.OldestOutputTime, s.NewestOutputTime = now, now
	}
	b.seedStatus(id, s)
}

func (b *Builder) logStatus(id projectid.ID, format string, args ...any) {
	b.statusLog.Infof(diagnostic.CategoryBuildStatus, string(id), format, args...)
}

// CleanAll is the `clean` entry point.
func (b *Builder) CleanAll(rootNames []string) ExitCode {
	g, code := b.buildGraph(rootNames)
	if g == nil {
		return code
	}

	for _, id := range g.Queue {
		project, ok := b.cache.Parsed(id)
		if !ok {
			continue
		}
		for _, out := range status.ExpectedOutputs(project) {
			if !b.host.FileExists(out.Path) {
				continue
			}
			if b.opts.Dry {
				b.statusLog.Infof(diagnostic.CategoryClean, string(id), "would delete %s", out.Path)
				continue
			}
			if err := b.host.Remove(out.Path); err != nil {
				b.statusLog.Errorf(diagnostic.CategoryClean, string(id), "could not delete %s: %v", out.Path, err)
			}
		}
	}
	if b.statusLog.HasErrors() {
		return ExitDiagnosticsPresent
	}
	return ExitSuccess
}

// InvalidateProject resolves name, evicts its status (and error count),
// and widens its pending reload level. If this is a new pending entry, it
// walks child→parents transitively, queuing every downstream project at
// ReloadNone — the status eviction alone forces their reclassification
// on next build.
func (b *Builder) InvalidateProject(name string, level ReloadLevel) bool {
	id, ok := projectid.Resolve(b.host, name)
	if !ok {
		return false
	}
	return b.invalidateID(id, level)
}

func (b *Builder) invalidateID(id projectid.ID, level ReloadLevel) bool {
	_, existed := b.pending[id]
	b.pending[id] = b.pending[id].widen(level)
	b.classifier.Evict(id)
	delete(b.errorCounts, id)

	if existed {
		return false
	}
	b.invalidated = append(b.invalidated, id)

	if b.graph != nil {
		queue := []projectid.ID{id}
		seen := map[projectid.ID]bool{id: true}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, parent := range b.graph.ChildToParents[cur] {
				if seen[parent] {
					continue
				}
				seen[parent] = true
				if _, ok := b.pending[parent]; !ok {
					b.pending[parent] = ReloadNone
					b.invalidated = append(b.invalidated, parent)
				}
				b.classifier.Evict(parent)
				queue = append(queue, parent)
			}
		}
	}
	return true
}

// BuildInvalidatedProject pops one project from the invalidated queue,
// optionally refreshes it for Partial reload, classifies and builds it
// unless UpstreamBlocked. Reports whether the queue still has work and,
// if not, the watch-mode error summary should be emitted by the caller.
func (b *Builder) BuildInvalidatedProject(ctx context.Context) (more bool) {
	if len(b.invalidated) == 0 {
		return false
	}
	id := b.invalidated[0]
	b.invalidated = b.invalidated[1:]
	level := b.pending[id]
	delete(b.pending, id)

	// Full re-parses the config file; Partial re-expands the wildcard file
	// lists, which the parse does anyway — so both levels evict the cache
	// entry and let the next Get re-derive everything from disk.
	if level != ReloadNone {
		b.cache.Invalidate(id)
	}

	s := b.classifier.Classify(id)
	if s.Kind == status.UpstreamBlocked {
		if b.opts.Verbose {
			b.logStatus(id, "Project %s can't be built because its dependency %s has errors", id, s.UpstreamName)
		}
	} else {
		flags := b.buildSingleProject(ctx, id)
		// reportAll already counted per-diagnostic errors; failures with no
		// reportable diagnostics (e.g. an unreadable config) still count one.
		if !flags.has(Success) && b.errorCounts[id] == 0 {
			b.errorCounts[id] = 1
		}
	}

	return len(b.invalidated) > 0
}

// WatchSummary formats the "Found N errors. Watching for file changes."
// line emitted after a full queue drain.
func (b *Builder) WatchSummary() string {
	total := 0
	for _, n := range b.errorCounts {
		total += n
	}
	if total == 1 {
		return "Found 1 error. Watching for file changes."
	}
	return fmt.Sprintf("Found %d errors. Watching for file changes.", total)
}

// Opts returns the build options the Builder was constructed with, so a
// caller driving watch mode can consult flags like PreserveWatchOutput
// without duplicating them.
func (b *Builder) Opts() Options { return b.opts }

// WatchTargets exposes the config cache and the most recently built
// queue, so a watch backend (internal/watch) can install filesystem
// watches over exactly the projects the initial build covered. If no graph
// has been built yet, it builds one from rootNames first. After a failed
// graph build the queue holds only the projects completed before the
// failure; ok is false only when no graph is available at all.
func (b *Builder) WatchTargets(rootNames []string) (*configcache.Cache, []projectid.ID, bool) {
	if b.graph == nil {
		b.buildGraph(rootNames)
	}
	if b.graph == nil {
		return nil, nil, false
	}
	return b.cache, b.graph.Queue, true
}

// seedStatus installs a status directly into the classifier's memo,
// bypassing recomputation — used after a build or timestamp touch
// completes, since the driver already knows the resulting status.
func (b *Builder) seedStatus(id projectid.ID, s status.Status) {
	b.classifier.Evict(id)
	b.classifier.Seed(id, s)
}
