package engine

import (
	"fmt"

	"github.com/shellform-io/shellform/internal/dag"
	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/state"
)

// Selection is the planned work of one run: resources to bring down in
// teardown order, then resources to bring up in dependency order.
type Selection struct {
	Down []string
	Up   []string
}

// Select computes the down and up lists for a run. The document must already
// have aliases applied.
//
// Down candidates are every stored resource when downEverything is set, else
// only stored resources the model no longer defines. Included candidates drag
// all their transitive dependents along, because nothing may be removed while
// something still depends on it. Exclusion then protects each excluded
// resource together with everything it needs. The surviving set is ordered
// dependents first, using the stored dependency graph rather than the
// model's: stored entries remember the graph they were created under, and
// that graph is authoritative for teardown.
//
// Up candidates are the model's topological order, none when downEverything
// is set. Included candidates drag their transitive dependencies along, and
// exclusion protects each excluded resource together with everything that
// would depend on it. Survivors keep the model's forward order.
func Select(m *model.Model, doc *state.Document, filters *Filters, downEverything bool) (*Selection, error) {
	sel := &Selection{}

	tagsOf := func(name string) map[string]struct{} {
		if res, ok := m.Resources[name]; ok {
			return res.Tags
		}
		if rs, ok := doc.Resources[name]; ok {
			return toTagSet(rs.Tags)
		}
		return nil
	}

	stored := storedGraph(doc)

	downSeeds := make(map[string]struct{})
	for name := range doc.Resources {
		if _, inModel := m.Resources[name]; inModel && !downEverything {
			continue
		}
		if filters.Included(name, tagsOf(name)) {
			downSeeds[name] = struct{}{}
		}
	}
	downSet := stored.TransitiveDependents(downSeeds)

	downExcluded := make(map[string]struct{})
	for name := range doc.Resources {
		if filters.Excluded(name, tagsOf(name)) {
			downExcluded[name] = struct{}{}
		}
	}
	for name := range stored.TransitiveDependencies(downExcluded) {
		delete(downSet, name)
	}

	storedOrder, err := stored.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("stored state is inconsistent: %w", err)
	}
	for i := len(storedOrder) - 1; i >= 0; i-- {
		if _, ok := downSet[storedOrder[i]]; ok {
			sel.Down = append(sel.Down, storedOrder[i])
		}
	}

	if downEverything {
		return sel, nil
	}

	upSeeds := make(map[string]struct{})
	for _, name := range m.Order {
		if filters.Included(name, m.Resources[name].Tags) {
			upSeeds[name] = struct{}{}
		}
	}
	upSet := m.Graph.TransitiveDependencies(upSeeds)

	upExcluded := make(map[string]struct{})
	for _, name := range m.Order {
		if filters.Excluded(name, m.Resources[name].Tags) {
			upExcluded[name] = struct{}{}
		}
	}
	for name := range m.Graph.TransitiveDependents(upExcluded) {
		delete(upSet, name)
	}

	for _, name := range m.Order {
		if _, ok := upSet[name]; ok {
			sel.Up = append(sel.Up, name)
		}
	}
	return sel, nil
}

// storedGraph rebuilds the dependency graph the state document remembers.
// Stored deps pointing at entries that no longer exist are dropped.
func storedGraph(doc *state.Document) *dag.Graph {
	g := dag.New()
	for name, rs := range doc.Resources {
		g.Add(name)
		for _, dep := range rs.Deps {
			if _, ok := doc.Resources[dep]; ok {
				g.AddEdge(name, dep)
			}
		}
	}
	return g
}

func toTagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}
