// Package dag provides the directed-graph plumbing shared by model
// finalization and run planning: deterministic topological ordering, cycle
// reporting with an explicit path, transitive closures over dependencies and
// dependents, and Graphviz export.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed graph where an edge from A to B means A depends on B.
type Graph struct {
	nodes map[string]*node
}

type node struct {
	name     string
	edges    map[string]struct{} // direct dependencies
	revEdges map[string]struct{} // direct dependents
}

// CycleError reports a dependency cycle. Path holds the nodes along the
// cycle, with the first node repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular resource dependencies: " + strings.Join(e.Path, " -> ")
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Add ensures a node exists.
func (g *Graph) Add(name string) {
	if _, ok := g.nodes[name]; !ok {
		g.nodes[name] = &node{
			name:     name,
			edges:    make(map[string]struct{}),
			revEdges: make(map[string]struct{}),
		}
	}
}

// AddEdge records that from depends on to, creating both nodes as needed.
func (g *Graph) AddEdge(from, to string) {
	g.Add(from)
	g.Add(to)
	g.nodes[from].edges[to] = struct{}{}
	g.nodes[to].revEdges[from] = struct{}{}
}

// Nodes returns all node names sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependencies returns the sorted direct dependencies of a node.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return sortedSet(n.edges)
}

// TopoSort returns a deterministic dependency-first ordering of all nodes
// (Kahn's algorithm with a sorted ready queue). Cycles yield a *CycleError.
func (g *Graph) TopoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		inDegree[name] = len(n.edges)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted = append(sorted, name)

		ready := make([]string, 0)
		for dependent := range g.nodes[name].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
		sort.Strings(queue)
	}

	if len(sorted) != len(g.nodes) {
		return nil, &CycleError{Path: g.findCycle()}
	}
	return sorted, nil
}

// findCycle walks the graph depth-first and returns one cycle as an explicit
// path. Only called when TopoSort already established that a cycle exists.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)

		for _, dep := range sortedSet(g.nodes[name].edges) {
			switch color[dep] {
			case gray:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append(append(cycle, stack[start:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, name := range g.Nodes() {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

// TransitiveDependencies returns the seeds plus every node they directly or
// transitively depend on.
func (g *Graph) TransitiveDependencies(seeds map[string]struct{}) map[string]struct{} {
	return g.closure(seeds, func(n *node) map[string]struct{} { return n.edges })
}

// TransitiveDependents returns the seeds plus every node that directly or
// transitively depends on them.
func (g *Graph) TransitiveDependents(seeds map[string]struct{}) map[string]struct{} {
	return g.closure(seeds, func(n *node) map[string]struct{} { return n.revEdges })
}

func (g *Graph) closure(seeds map[string]struct{}, next func(*node) map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{}, len(seeds))
	var frontier []string
	for name := range seeds {
		result[name] = struct{}{}
		frontier = append(frontier, name)
	}

	for len(frontier) > 0 {
		name := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		n, ok := g.nodes[name]
		if !ok {
			continue
		}
		for neighbor := range next(n) {
			if _, seen := result[neighbor]; !seen {
				result[neighbor] = struct{}{}
				frontier = append(frontier, neighbor)
			}
		}
	}
	return result
}

// DOT renders the graph in Graphviz format, dependencies pointing at the
// nodes they are needed by.
func (g *Graph) DOT(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", title)
	b.WriteString("  rankdir=LR;\n")
	for _, name := range g.Nodes() {
		fmt.Fprintf(&b, "  %q;\n", name)
	}
	for _, name := range g.Nodes() {
		for _, dep := range g.Dependencies(name) {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
