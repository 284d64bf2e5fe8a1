package status_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/status"
	"github.com/tsb-dev/tsb/internal/testutil"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// fakeSource lets status tests hand-build parsed projects directly,
// without a real tsconfig.json parse.
type fakeSource map[projectid.ID]*tscompiler.ParsedProject

func (s fakeSource) Parsed(id projectid.ID) (*tscompiler.ParsedProject, bool) {
	p, ok := s[id]
	return p, ok
}

var (
	t0 = time.Unix(1000, 0) // oldest
	t1 = time.Unix(2000, 0)
	t2 = time.Unix(3000, 0) // newest
)

func leafProject(configDir string, input string) *tscompiler.ParsedProject {
	return &tscompiler.ParsedProject{
		ConfigFileName: configDir + "/tsconfig.json",
		ConfigDir:      configDir,
		FileNames:      []string{input},
		Options:        tscompiler.Options{OutDir: configDir + "/out"},
	}
}

func newClassifier(host *testutil.FakeHost, src fakeSource) *status.Classifier {
	return status.NewClassifier(host, src, map[string]time.Time{})
}

func newClassifierWithUnchanged(host *testutil.FakeHost, src fakeSource, unchanged map[string]time.Time) *status.Classifier {
	return status.NewClassifier(host, src, unchanged)
}

func TestClassify_ContainerOnly_NoOutputs(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	p := &tscompiler.ParsedProject{ConfigDir: "/repo", Options: tscompiler.Options{NoEmit: true}}
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	s := c.Classify("/repo/tsconfig.json")
	assert.Equal(t, status.ContainerOnly, s.Kind)
}

func TestClassify_Unbuildable_MissingInput(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	// input file is never written to the host.
	p := leafProject("/repo", "/repo/a.ts")
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	s := c.Classify("/repo/tsconfig.json")
	assert.Equal(t, status.Unbuildable, s.Kind)
}

func TestClassify_OutputMissing(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/a.ts", "export {}", t0)
	p := leafProject("/repo", "/repo/a.ts")
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	s := c.Classify("/repo/tsconfig.json")
	require.Equal(t, status.OutputMissing, s.Kind)
	assert.Equal(t, "/repo/out/a.js", s.MissingOutputFileName)
}

func TestClassify_OutOfDateWithSelf(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/out/a.js", "...", t0)
	host.WriteAt("/repo/a.ts", "export {}", t1) // input newer than output
	p := leafProject("/repo", "/repo/a.ts")
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	s := c.Classify("/repo/tsconfig.json")
	require.Equal(t, status.OutOfDateWithSelf, s.Kind)
	assert.Equal(t, "/repo/a.ts", s.NewerInputName)
}

func TestClassify_UpToDate(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/a.ts", "export {}", t0)
	host.WriteAt("/repo/out/a.js", "...", t1) // output newer than input
	p := leafProject("/repo", "/repo/a.ts")
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	s := c.Classify("/repo/tsconfig.json")
	assert.Equal(t, status.UpToDate, s.Kind)
}

// pseudoUpToDateFixture builds an upstream project that is itself
// up-to-date (its outputs are newer than its own inputs) yet whose
// declaration content was recorded unchanged (via the build driver's
// unchanged-outputs map) before downstream's own output was last written —
// the configuration the pseudo-up-to-date fast path exists for.
func pseudoUpToDateFixture(prepend bool) (*testutil.FakeHost, fakeSource, map[string]time.Time) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/up/tsconfig.json", "{}", t0)

	host.WriteAt("/repo/up/a.ts", "export {}", t2)
	host.WriteAt("/repo/up/out/a.js", "...", t2)
	host.WriteAt("/repo/up/out/a.d.ts", "export {}", t2)

	host.WriteAt("/repo/down/b.ts", "export {}", t0)
	host.WriteAt("/repo/down/out/b.js", "...", t1)

	up := &tscompiler.ParsedProject{
		ConfigDir: "/repo/up",
		FileNames: []string{"/repo/up/a.ts"},
		Options:   tscompiler.Options{OutDir: "/repo/up/out", EmitDeclarations: true},
	}
	down := &tscompiler.ParsedProject{
		ConfigDir:  "/repo/down",
		FileNames:  []string{"/repo/down/b.ts"},
		Options:    tscompiler.Options{OutDir: "/repo/down/out"},
		References: []tscompiler.Reference{{Path: "/repo/up/tsconfig.json", Prepend: prepend}},
	}
	src := fakeSource{
		"/repo/up/tsconfig.json":   up,
		"/repo/down/tsconfig.json": down,
	}
	unchanged := map[string]time.Time{"/repo/up/out/a.d.ts": t0}
	return host, src, unchanged
}

func TestClassify_PseudoUpToDate_UpstreamDeclarationStable(t *testing.T) {
	host, src, unchanged := pseudoUpToDateFixture(false)
	c := newClassifierWithUnchanged(host, src, unchanged)

	s := c.Classify("/repo/down/tsconfig.json")
	assert.Equal(t, status.UpToDateWithUpstreamTypes, s.Kind)
}

// TestClassify_Prepend_DefeatsPseudoUpToDate: same fixture, but the
// reference is "prepend": true — prepend must always force a full rebuild
// on any upstream change, even one that would otherwise pass the
// pseudo-up-to-date fast path.
func TestClassify_Prepend_DefeatsPseudoUpToDate(t *testing.T) {
	host, src, unchanged := pseudoUpToDateFixture(true)
	c := newClassifierWithUnchanged(host, src, unchanged)

	s := c.Classify("/repo/down/tsconfig.json")
	require.Equal(t, status.OutOfDateWithUpstream, s.Kind)
	assert.Equal(t, "/repo/up/tsconfig.json", s.UpstreamName)
}

func TestClassify_UpstreamBlocked(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/up/tsconfig.json", "{}", t0)
	host.WriteAt("/repo/down/b.ts", "export {}", t0)
	host.WriteAt("/repo/down/out/b.js", "...", t1)

	// upstream's own input is missing -> Unbuildable.
	up := leafProject("/repo/up", "/repo/up/a.ts")
	down := &tscompiler.ParsedProject{
		ConfigDir:  "/repo/down",
		FileNames:  []string{"/repo/down/b.ts"},
		Options:    tscompiler.Options{OutDir: "/repo/down/out"},
		References: []tscompiler.Reference{{Path: "/repo/up/tsconfig.json"}},
	}
	src := fakeSource{
		"/repo/up/tsconfig.json":   up,
		"/repo/down/tsconfig.json": down,
	}
	c := newClassifier(host, src)

	s := c.Classify("/repo/down/tsconfig.json")
	require.Equal(t, status.UpstreamBlocked, s.Kind)
	assert.Equal(t, "/repo/up/tsconfig.json", s.UpstreamName)
}

func TestClassify_MemoizesAndEvicts(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	host.WriteAt("/repo/a.ts", "export {}", t0)
	host.WriteAt("/repo/out/a.js", "...", t1)
	p := leafProject("/repo", "/repo/a.ts")
	src := fakeSource{"/repo/tsconfig.json": p}
	c := newClassifier(host, src)

	first := c.Classify("/repo/tsconfig.json")
	require.Equal(t, status.UpToDate, first.Kind)

	// Mutate the input after the first classification; without eviction the
	// memoized result must still be returned unchanged.
	host.WriteAt("/repo/a.ts", "export {}", t2)
	cached, ok := c.Get("/repo/tsconfig.json")
	require.True(t, ok)
	assert.Equal(t, status.UpToDate, cached.Kind)

	c.Evict("/repo/tsconfig.json")
	recomputed := c.Classify("/repo/tsconfig.json")
	assert.Equal(t, status.OutOfDateWithSelf, recomputed.Kind)
}

func TestClassify_Seed_BypassesRecomputation(t *testing.T) {
	host := testutil.NewFakeHost("/repo")
	src := fakeSource{}
	c := newClassifier(host, src)

	c.Seed("/repo/tsconfig.json", status.Status{Kind: status.UpToDate})
	s, ok := c.Get("/repo/tsconfig.json")
	require.True(t, ok)
	assert.Equal(t, status.UpToDate, s.Kind)
}
