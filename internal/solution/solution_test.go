package solution

import (
	"io"
	"testing"
	"time"

	"github.com/tsb-dev/tsb/internal/graph"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/status"
	"github.com/tsb-dev/tsb/internal/testutil"
)

func newTestBuilder(host *testutil.FakeHost) *Builder {
	return New(host, Options{}, io.Discard)
}

func TestReloadLevel_WidenNeverNarrows(t *testing.T) {
	if got := ReloadNone.widen(ReloadPartial); got != ReloadPartial {
		t.Errorf("None.widen(Partial) = %v, want Partial", got)
	}
	if got := ReloadFull.widen(ReloadPartial); got != ReloadFull {
		t.Errorf("Full.widen(Partial) = %v, want Full (must not narrow)", got)
	}
	if got := ReloadPartial.widen(ReloadPartial); got != ReloadPartial {
		t.Errorf("Partial.widen(Partial) = %v, want Partial", got)
	}
}

func TestInvalidateID_QueuesTransitiveParents(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)
	b.graph = &graph.Graph{
		ChildToParents: map[projectid.ID][]projectid.ID{
			"leaf": {"mid"},
			"mid":  {"top"},
		},
	}

	changed := b.invalidateID("leaf", ReloadFull)
	if !changed {
		t.Fatal("expected first invalidation of leaf to report a change")
	}

	want := map[projectid.ID]ReloadLevel{"leaf": ReloadFull, "mid": ReloadNone, "top": ReloadNone}
	if len(b.pending) != len(want) {
		t.Fatalf("pending = %v, want keys %v", b.pending, want)
	}
	for id, level := range want {
		if got := b.pending[id]; got != level {
			t.Errorf("pending[%s] = %v, want %v", id, got, level)
		}
	}
	if len(b.invalidated) != 3 {
		t.Fatalf("invalidated queue = %v, want 3 entries", b.invalidated)
	}
}

func TestInvalidateID_WidensExistingLevelWithoutRequeuing(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)
	b.graph = &graph.Graph{ChildToParents: map[projectid.ID][]projectid.ID{}}

	first := b.invalidateID("leaf", ReloadPartial)
	second := b.invalidateID("leaf", ReloadFull)

	if !first {
		t.Error("first invalidation should report a change")
	}
	if second {
		t.Error("re-invalidating an already-pending project should not report a new change")
	}
	if b.pending["leaf"] != ReloadFull {
		t.Errorf("pending level should widen to Full, got %v", b.pending["leaf"])
	}
	if len(b.invalidated) != 1 {
		t.Errorf("project must only be queued once, got %v", b.invalidated)
	}
}

func TestInvalidateID_EvictsClassifierMemoAndErrorCount(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)
	b.graph = &graph.Graph{ChildToParents: map[projectid.ID][]projectid.ID{}}

	b.classifier.Seed("leaf", status.Status{Kind: status.UpToDate})
	b.errorCounts["leaf"] = 3

	b.invalidateID("leaf", ReloadNone)

	if _, ok := b.classifier.Get("leaf"); ok {
		t.Error("expected classifier memo to be evicted on invalidation")
	}
	if _, ok := b.errorCounts["leaf"]; ok {
		t.Error("expected error count to be cleared on invalidation")
	}
}

func TestBuildInvalidatedProject_UpstreamBlockedSkipsBuildAndErrorCount(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)
	b.graph = &graph.Graph{ChildToParents: map[projectid.ID][]projectid.ID{}}

	b.classifier.Seed("down", status.Status{Kind: status.UpstreamBlocked, UpstreamName: "up"})
	b.pending["down"] = ReloadNone
	b.invalidated = []projectid.ID{"down"}

	more := b.BuildInvalidatedProject(nil)

	if more {
		t.Error("expected no more work after draining the only queued project")
	}
	if len(b.invalidated) != 0 {
		t.Errorf("expected the queue to be drained, got %v", b.invalidated)
	}
	if _, ok := b.pending["down"]; ok {
		t.Error("expected the pending entry to be cleared once popped")
	}
	if b.errorCounts["down"] != 0 {
		t.Error("an UpstreamBlocked project must not count as a new build error")
	}
}

func TestBuildInvalidatedProject_ReportsMoreWorkRemaining(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)
	b.graph = &graph.Graph{ChildToParents: map[projectid.ID][]projectid.ID{}}

	b.classifier.Seed("a", status.Status{Kind: status.UpstreamBlocked, UpstreamName: "x"})
	b.classifier.Seed("b", status.Status{Kind: status.UpstreamBlocked, UpstreamName: "x"})
	b.pending["a"] = ReloadNone
	b.pending["b"] = ReloadNone
	b.invalidated = []projectid.ID{"a", "b"}

	more := b.BuildInvalidatedProject(nil)
	if !more {
		t.Error("expected more work remaining after popping only the first of two")
	}
}

func TestWatchSummary_FormatsSingularAndPlural(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)

	if got, want := b.WatchSummary(), "Found 0 errors. Watching for file changes."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	b.errorCounts["a"] = 1
	if got, want := b.WatchSummary(), "Found 1 error. Watching for file changes."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	b.errorCounts["b"] = 2
	if got, want := b.WatchSummary(), "Found 3 errors. Watching for file changes."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSeedStatus_EvictsThenSeeds(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	b := newTestBuilder(host)

	b.classifier.Seed("p", status.Status{Kind: status.OutOfDateWithSelf})
	b.seedStatus("p", status.Status{Kind: status.UpToDate})

	got, ok := b.classifier.Get("p")
	if !ok || got.Kind != status.UpToDate {
		t.Errorf("expected seeded UpToDate, got %v, ok=%v", got, ok)
	}
}

func TestResolveRoots_ReportsMissingProjectsAndKeepsRest(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/a/tsconfig.json", "{}", time.Unix(0, 0))
	b := newTestBuilder(host)

	ids := b.resolveRoots([]string{"/repo/a", "/repo/missing"})

	if len(ids) != 1 || ids[0] != "/repo/a/tsconfig.json" {
		t.Errorf("expected only the resolvable root, got %v", ids)
	}
	if b.statusLog.ErrorCount() != 1 {
		t.Errorf("expected one reported error for the missing root, got %d", b.statusLog.ErrorCount())
	}
}
