package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_TryAddInheritanceRejectsCycles(t *testing.T) {
	t.Parallel()
	g := NewGraph[string]()

	require.True(t, g.TryAddInheritance("a", "b"))
	require.True(t, g.TryAddInheritance("b", "c"))
	assert.Equal(t, 2, g.EdgeCount())

	assert.False(t, g.TryAddInheritance("c", "a"), "c→a closes a→b→c→a")
	assert.False(t, g.TryAddInheritance("a", "a"), "self inheritance is a cycle")
	assert.Equal(t, 2, g.EdgeCount())
	assert.Empty(t, g.ParentsOf("c"))
}

func TestGraph_DuplicateEdgeIsNotCounted(t *testing.T) {
	t.Parallel()
	g := NewGraph[string]()
	require.True(t, g.TryAddInheritance("a", "b"))
	require.True(t, g.TryAddInheritance("a", "b"))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"b"}, g.ParentsOf("a"))
}

func TestGraph_AllParentsNearestFirst(t *testing.T) {
	t.Parallel()
	// d inherits b and c; both inherit a.
	g := NewGraph[string]()
	require.True(t, g.TryAddInheritance("d", "b"))
	require.True(t, g.TryAddInheritance("d", "c"))
	require.True(t, g.TryAddInheritance("b", "a"))
	require.True(t, g.TryAddInheritance("c", "a"))

	assert.Equal(t, []string{"d", "b", "c", "a"}, g.AllParents("d"))
	assert.Equal(t, []string{"a"}, g.AllParents("a"))
	assert.Equal(t, []string{"b", "c", "d"}, g.AllChildren("a"))
	assert.Empty(t, g.AllChildren("d"))
}

func TestGraph_Remove(t *testing.T) {
	t.Parallel()
	g := NewGraph[string]()
	require.True(t, g.TryAddInheritance("a", "b"))
	require.True(t, g.TryAddInheritance("b", "c"))
	require.True(t, g.TryAddInheritance("x", "b"))

	g.RemoveOutgoing("a")
	assert.Empty(t, g.ParentsOf("a"))
	assert.Equal(t, []string{"x"}, g.ChildrenOf("b"))
	assert.Equal(t, 2, g.EdgeCount())

	g.RemoveNode("b")
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.ParentsOf("x"))
	assert.Empty(t, g.ChildrenOf("c"))

	// A removed edge can be added again in the other direction.
	assert.True(t, g.TryAddInheritance("c", "x"))
}

func TestGraph_Edges(t *testing.T) {
	t.Parallel()
	g := NewGraph[string]()
	g.AddInheritance("a", "b")
	g.AddInheritance("a", "c")
	g.AddInheritance("z", "a")

	assert.Equal(t, []Edge[string]{{Child: "a", Parent: "b"}, {Child: "a", Parent: "c"}}, g.Edges([]string{"a"}))
	assert.Nil(t, g.Edges([]string{"b"}))
}

func TestGraph_RandomInsertionsStayAcyclic(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	g := NewGraph[int]()
	const nodes = 12

	for i := 0; i < 500; i++ {
		child, parent := rng.Intn(nodes), rng.Intn(nodes)
		before := g.EdgeCount()
		added := g.TryAddInheritance(child, parent)
		if !added {
			assert.Equal(t, before, g.EdgeCount())
		}
	}

	for n := 0; n < nodes; n++ {
		for _, p := range g.ParentsOf(n) {
			assert.False(t, g.Reaches(p, n), "edge %d→%d is part of a cycle", n, p)
		}
	}
}
