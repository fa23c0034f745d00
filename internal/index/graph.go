package index

// Graph is a directed child→parent inheritance graph. Parents of a node are
// kept in insertion order so traversals are deterministic.
type Graph[K comparable] struct {
	parents  map[K][]K
	children map[K][]K
	edges    int
}

// Edge is one child→parent relation.
type Edge[K comparable] struct {
	Child  K
	Parent K
}

// NewGraph returns an empty graph.
func NewGraph[K comparable]() *Graph[K] {
	return &Graph[K]{
		parents:  make(map[K][]K),
		children: make(map[K][]K),
	}
}

// TryAddInheritance adds child→parent unless parent already reaches child,
// which would close a cycle. A node inheriting itself is a cycle. Adding an
// existing edge succeeds without duplicating it.
func (g *Graph[K]) TryAddInheritance(child, parent K) bool {
	if g.Reaches(parent, child) {
		return false
	}
	g.AddInheritance(child, parent)
	return true
}

// AddInheritance writes child→parent without checking for cycles.
func (g *Graph[K]) AddInheritance(child, parent K) {
	for _, p := range g.parents[child] {
		if p == parent {
			return
		}
	}
	g.parents[child] = append(g.parents[child], parent)
	g.children[parent] = append(g.children[parent], child)
	g.edges++
}

// Reaches reports whether to is from itself or one of its ancestors.
func (g *Graph[K]) Reaches(from, to K) bool {
	found := false
	g.walk(from, g.parents, func(k K) bool {
		if k == to {
			found = true
			return false
		}
		return true
	})
	return found
}

// ParentsOf returns the direct parents of k.
func (g *Graph[K]) ParentsOf(k K) []K {
	return append([]K(nil), g.parents[k]...)
}

// ChildrenOf returns the direct children of k.
func (g *Graph[K]) ChildrenOf(k K) []K {
	return append([]K(nil), g.children[k]...)
}

// AllParents returns k followed by all of its ancestors, nearest first.
// Each ancestor appears once even under diamond inheritance.
func (g *Graph[K]) AllParents(k K) []K {
	var out []K
	g.walk(k, g.parents, func(n K) bool {
		out = append(out, n)
		return true
	})
	return out
}

// AllChildren returns all descendants of k, nearest first, excluding k.
func (g *Graph[K]) AllChildren(k K) []K {
	var out []K
	g.walk(k, g.children, func(n K) bool {
		if n != k {
			out = append(out, n)
		}
		return true
	})
	return out
}

// RemoveOutgoing drops every edge from k to its parents.
func (g *Graph[K]) RemoveOutgoing(k K) {
	for _, p := range g.parents[k] {
		g.children[p] = remove(g.children[p], k)
		if len(g.children[p]) == 0 {
			delete(g.children, p)
		}
		g.edges--
	}
	delete(g.parents, k)
}

// RemoveNode drops every edge touching k.
func (g *Graph[K]) RemoveNode(k K) {
	g.RemoveOutgoing(k)
	for _, c := range g.children[k] {
		g.parents[c] = remove(g.parents[c], k)
		if len(g.parents[c]) == 0 {
			delete(g.parents, c)
		}
		g.edges--
	}
	delete(g.children, k)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[K]) EdgeCount() int { return g.edges }

// Edges lists the outgoing edges of the given children, in child order then
// parent insertion order.
func (g *Graph[K]) Edges(children []K) []Edge[K] {
	var out []Edge[K]
	for _, c := range children {
		for _, p := range g.parents[c] {
			out = append(out, Edge[K]{Child: c, Parent: p})
		}
	}
	return out
}

// walk is a breadth-first traversal from start over adj. visit returning
// false stops the walk.
func (g *Graph[K]) walk(start K, adj map[K][]K, visit func(K) bool) {
	seen := map[K]bool{start: true}
	queue := []K{start}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if !visit(k) {
			return
		}
		for _, next := range adj[k] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
}

func remove[K comparable](list []K, k K) []K {
	out := list[:0]
	for _, v := range list {
		if v != k {
			out = append(out, v)
		}
	}
	return out
}
