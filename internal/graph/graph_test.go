package graph_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsb-dev/tsb/internal/configcache"
	"github.com/tsb-dev/tsb/internal/graph"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/testutil"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

var timeZero = time.Unix(0, 0)

// fakeSource lets graph tests construct a reference topology directly,
// without a real tsconfig.json parse.
type fakeSource map[projectid.ID]configcache.Entry

func (s fakeSource) Get(id projectid.ID) configcache.Entry { return s[id] }

func project(refs ...tscompiler.Reference) configcache.Entry {
	return configcache.Entry{Project: &tscompiler.ParsedProject{References: refs}}
}

func ref(path string, circular bool) tscompiler.Reference {
	return tscompiler.Reference{Path: path, Circular: circular}
}

func newHostWithConfigs(ids ...string) *testutil.FakeHost {
	h := testutil.NewFakeHost("/repo")
	for _, id := range ids {
		h.WriteAt(id, "{}", timeZero)
	}
	return h
}

func TestBuild_LinearOrder_LeavesFirst(t *testing.T) {
	host := newHostWithConfigs("/repo/a/tsconfig.json", "/repo/b/tsconfig.json", "/repo/c/tsconfig.json")
	src := fakeSource{
		"/repo/a/tsconfig.json": project(ref("/repo/b/tsconfig.json", false)),
		"/repo/b/tsconfig.json": project(ref("/repo/c/tsconfig.json", false)),
		"/repo/c/tsconfig.json": project(),
	}

	g, err := graph.Build([]projectid.ID{"/repo/a/tsconfig.json"}, src, host)
	require.NoError(t, err)

	index := map[projectid.ID]int{}
	for i, id := range g.Queue {
		index[id] = i
	}
	assert.Less(t, index["/repo/c/tsconfig.json"], index["/repo/b/tsconfig.json"], "c (leaf) must come before b")
	assert.Less(t, index["/repo/b/tsconfig.json"], index["/repo/a/tsconfig.json"], "b must come before a (its parent)")
}

func TestBuild_IllegalCycle_Fails(t *testing.T) {
	host := newHostWithConfigs("/repo/a/tsconfig.json", "/repo/b/tsconfig.json", "/repo/c/tsconfig.json")
	src := fakeSource{
		"/repo/a/tsconfig.json": project(ref("/repo/b/tsconfig.json", false)),
		"/repo/b/tsconfig.json": project(ref("/repo/c/tsconfig.json", false)),
		"/repo/c/tsconfig.json": project(ref("/repo/a/tsconfig.json", false)),
	}

	g, err := graph.Build([]projectid.ID{"/repo/a/tsconfig.json"}, src, host)
	require.Error(t, err)
	require.NotNil(t, g, "the partial graph must survive a failed build so watch invalidation can still find dependents")
	assert.Contains(t, err.Error(), "Circularity detected")
	assert.Equal(t, []projectid.ID{"/repo/a/tsconfig.json"}, g.ChildToParents["/repo/b/tsconfig.json"], "edges traversed before the cycle was hit must still be registered")
}

func TestBuild_LegalCircularEdge_Succeeds(t *testing.T) {
	host := newHostWithConfigs("/repo/a/tsconfig.json", "/repo/b/tsconfig.json", "/repo/c/tsconfig.json")
	src := fakeSource{
		"/repo/a/tsconfig.json": project(ref("/repo/b/tsconfig.json", false)),
		"/repo/b/tsconfig.json": project(ref("/repo/c/tsconfig.json", false)),
		"/repo/c/tsconfig.json": project(ref("/repo/a/tsconfig.json", true)), // circular=true
	}

	g, err := graph.Build([]projectid.ID{"/repo/a/tsconfig.json"}, src, host)
	require.NoError(t, err, "legal circular edge should not fail")
	assert.Len(t, g.Queue, 3)
}

func TestBuild_ReferenceMapIsBidirectional(t *testing.T) {
	host := newHostWithConfigs("/repo/a/tsconfig.json", "/repo/b/tsconfig.json")
	src := fakeSource{
		"/repo/a/tsconfig.json": project(ref("/repo/b/tsconfig.json", false)),
		"/repo/b/tsconfig.json": project(),
	}

	g, err := graph.Build([]projectid.ID{"/repo/a/tsconfig.json"}, src, host)
	require.NoError(t, err)
	assert.Equal(t, []projectid.ID{"/repo/a/tsconfig.json"}, g.ChildToParents["/repo/b/tsconfig.json"])
}

func TestBuild_FailedParse_StillRegistersTraversedEdges(t *testing.T) {
	host := newHostWithConfigs("/repo/a/tsconfig.json", "/repo/b/tsconfig.json")
	src := fakeSource{
		"/repo/a/tsconfig.json": project(ref("/repo/b/tsconfig.json", false)),
		// b has no entry at all: Get returns a zero Entry, Ok() == false.
	}

	g, err := graph.Build([]projectid.ID{"/repo/a/tsconfig.json"}, src, host)
	require.Error(t, err, "expected failure when a referenced project can't be parsed")
	require.NotNil(t, g, "the partial graph must survive a failed build so watch invalidation can still find dependents")
	assert.Equal(t, []projectid.ID{"/repo/a/tsconfig.json"}, g.ChildToParents["/repo/b/tsconfig.json"], "the edge to the unparseable project must still be registered")
}
