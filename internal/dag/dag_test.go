package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func indexOf(t *testing.T, order []string, name string) int {
	t.Helper()
	for i, n := range order {
		if n == name {
			return i
		}
	}
	t.Fatalf("%q not in order %v", name, order)
	return -1
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	g := New()
	g.AddEdge("app", "db")
	g.AddEdge("app", "cache")
	g.AddEdge("db", "vpc")
	g.AddEdge("cache", "vpc")
	g.Add("standalone")

	order, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, order, 5)

	assert.Less(t, indexOf(t, order, "vpc"), indexOf(t, order, "db"))
	assert.Less(t, indexOf(t, order, "vpc"), indexOf(t, order, "cache"))
	assert.Less(t, indexOf(t, order, "db"), indexOf(t, order, "app"))
	assert.Less(t, indexOf(t, order, "cache"), indexOf(t, order, "app"))
}

func TestTopoSortDeterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		g.AddEdge("b", "a")
		g.AddEdge("c", "a")
		g.AddEdge("d", "b")
		g.AddEdge("d", "c")
		g.Add("e")
		return g
	}

	first, err := build().TopoSort()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := build().TopoSort()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTopoSortReportsCyclePath(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "A")
	g.AddEdge("standalone", "A")

	_, err := g.TopoSort()
	require.Error(t, err)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "circular resource dependencies")
	for _, name := range []string{"A", "B", "C"} {
		assert.Contains(t, cerr.Path, name)
	}
	// The path closes on its first node.
	assert.Equal(t, cerr.Path[0], cerr.Path[len(cerr.Path)-1])
	assert.NotContains(t, cerr.Path, "standalone")
}

func TestSelfCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "a")

	_, err := g.TopoSort()
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"a", "a"}, cerr.Path)
}

func TestTransitiveDependencies(t *testing.T) {
	g := New()
	g.AddEdge("app", "db")
	g.AddEdge("db", "vpc")
	g.AddEdge("other", "vpc")

	closure := g.TransitiveDependencies(set("app"))
	assert.Equal(t, set("app", "db", "vpc"), closure)

	closure = g.TransitiveDependencies(set("db"))
	assert.Equal(t, set("db", "vpc"), closure)
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	g.AddEdge("app", "db")
	g.AddEdge("db", "vpc")
	g.AddEdge("other", "vpc")

	closure := g.TransitiveDependents(set("vpc"))
	assert.Equal(t, set("vpc", "db", "app", "other"), closure)

	closure = g.TransitiveDependents(set("db"))
	assert.Equal(t, set("db", "app"), closure)
}

func TestClosureToleratesUnknownSeeds(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")

	closure := g.TransitiveDependencies(set("ghost"))
	assert.Equal(t, set("ghost"), closure)
}

func TestDOT(t *testing.T) {
	g := New()
	g.AddEdge("app", "db")

	dot := g.DOT("resources")
	assert.Contains(t, dot, `digraph "resources"`)
	assert.Contains(t, dot, `"app";`)
	assert.Contains(t, dot, `"db" -> "app";`)
}
