package model

import (
	"fmt"
	"sort"
)

// Bag names one of the file groups deployed for an action.
type Bag string

const (
	BagUp       Bag = "up"
	BagDown     Bag = "down"
	BagCommon   Bag = "common"
	BagPrecheck Bag = "precheck"
)

// Bags lists every bag in a stable order.
var Bags = []Bag{BagUp, BagDown, BagCommon, BagPrecheck}

// IdentityFile is the distinguished path in the up/common bags whose rendered
// value, when changed between runs, forces teardown before recreate.
const IdentityFile = "identity"

// Import names the source of one imported value.
type Import struct {
	Resource string
	Export   string
}

// Resource is a finalized resource definition. Instances come out of
// Builder.Finalize and are not mutated afterwards.
type Resource struct {
	Name          string
	Tags          map[string]struct{}
	Depends       map[string]struct{}
	Imports       map[string]Import
	Consts        map[string]string
	Exports       map[string]struct{}
	Mementos      map[string]struct{}
	Files         map[Bag]map[string]Renderer
	AlwaysRefresh bool
	UsedModes     map[string]struct{}
}

// RenderBag renders every file of one bag against the resolved import map.
func (r *Resource) RenderBag(bag Bag, imports map[string]string) (map[string]string, error) {
	files := r.Files[bag]
	out := make(map[string]string, len(files))
	for path, renderer := range files {
		content, err := renderer.Render(imports)
		if err != nil {
			return nil, fmt.Errorf("resource '%s': file '%s': %w", r.Name, path, err)
		}
		out[path] = content
	}
	return out, nil
}

// ResolveImports builds the render context for this resource from the export
// maps of already-processed resources plus the resource's own constants.
func (r *Resource) ResolveImports(exports map[string]map[string]string) (map[string]string, error) {
	imports := make(map[string]string, len(r.Imports)+len(r.Consts))
	for name, value := range r.Consts {
		imports[name] = value
	}
	for name, src := range r.Imports {
		vars, ok := exports[src.Resource]
		if !ok {
			return nil, fmt.Errorf("resource '%s': import '%s': resource '%s' has not been processed", r.Name, name, src.Resource)
		}
		value, ok := vars[src.Export]
		if !ok {
			return nil, fmt.Errorf("resource '%s': import '%s': resource '%s' did not export '%s'", r.Name, name, src.Resource, src.Export)
		}
		imports[name] = value
	}
	return imports, nil
}

// SortedTags returns the tag set as a sorted slice, the form stored in the
// state document.
func (r *Resource) SortedTags() []string {
	return sortedKeys(r.Tags)
}

// SortedUsedModes returns the used mode set as a sorted slice.
func (r *Resource) SortedUsedModes() []string {
	return sortedKeys(r.UsedModes)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
