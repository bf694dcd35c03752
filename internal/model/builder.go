package model

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/shellform-io/shellform/internal/dag"
)

// Model is the finalized, immutable description of resources, aliases and
// modes, with the dependency graph already validated and ordered.
type Model struct {
	Resources map[string]*Resource
	Aliases   map[string]string
	Modes     map[string]*Mode

	// Dependencies is the union of explicit depends edges and import-derived
	// edges, per resource.
	Dependencies map[string]map[string]struct{}

	// Order is one valid topological order of all resources, dependencies
	// first. Computed once at finalization and reused for all planning.
	Order []string

	// Graph is the dependency graph the order was computed from.
	Graph *dag.Graph
}

var (
	resourceNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
	identifierRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Builder accumulates unvalidated declarations. Declaration mistakes are
// remembered and surface from Finalize, so call sites can chain freely.
type Builder struct {
	resources map[string]*ResourceBuilder
	aliases   map[string]string
	modes     map[string]*Mode
	err       error
}

// NewBuilder returns an empty model builder.
func NewBuilder() *Builder {
	return &Builder{
		resources: make(map[string]*ResourceBuilder),
		aliases:   make(map[string]string),
		modes:     make(map[string]*Mode),
	}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

// Resource declares a resource or returns the builder of an already declared
// one. Aliases register former names of this resource for state migration.
func (b *Builder) Resource(name string, aliases ...string) *ResourceBuilder {
	rb, ok := b.resources[name]
	if !ok {
		rb = newResourceBuilder(b, name)

		switch {
		case !resourceNameRe.MatchString(name):
			b.fail("invalid resource name: '%s'", name)
			return rb // detached, keeps chained calls safe
		case b.aliases[name] != "":
			b.fail("'%s' is an existing alias assigned to resource '%s'", name, b.aliases[name])
			return rb
		}

		b.resources[name] = rb
	}

	for _, alias := range aliases {
		if _, exists := b.resources[alias]; exists {
			b.fail("alias name matches existing resource: '%s'", alias)
			continue
		}
		if owner, exists := b.aliases[alias]; exists && owner != name {
			b.fail("alias '%s' for resource '%s' is already assigned to resource '%s'", alias, name, owner)
			continue
		}
		b.aliases[alias] = name
	}

	return rb
}

// Mode declares a named global toggle. Redeclaring a mode is an error.
func (b *Builder) Mode(mode Mode) *Builder {
	if !identifierRe.MatchString(mode.Name) {
		b.fail("invalid mode name: '%s'", mode.Name)
		return b
	}
	if _, exists := b.modes[mode.Name]; exists {
		b.fail("mode '%s' is already defined", mode.Name)
		return b
	}
	m := mode
	b.modes[mode.Name] = &m
	return b
}

// Finalize performs all cross-resource validation and produces the immutable
// Model: import and depends references must exist, used modes must be
// defined, untagged resources get the default tag, and the dependency graph
// must be acyclic.
func (b *Builder) Finalize() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}

	resources := make(map[string]*Resource, len(b.resources))
	for name, rb := range b.resources {
		resources[name] = rb.build()
	}

	graph := dag.New()
	for _, name := range sortedResourceNames(resources) {
		res := resources[name]
		graph.Add(name)

		for _, dep := range sortedKeys(res.Depends) {
			if _, ok := resources[dep]; !ok {
				return nil, fmt.Errorf("resource '%s' depends on non-existent resource '%s'", name, dep)
			}
			graph.AddEdge(name, dep)
		}

		for _, local := range sortedImportNames(res.Imports) {
			src := res.Imports[local]
			dep, ok := resources[src.Resource]
			if !ok {
				return nil, fmt.Errorf("resource '%s' depends on non-existent resource '%s'", name, src.Resource)
			}
			if _, ok := dep.Exports[src.Export]; !ok {
				return nil, fmt.Errorf("resource '%s' imports variable '%s' which is not exported by resource '%s'", name, src.Export, src.Resource)
			}
			graph.AddEdge(name, src.Resource)
		}

		for _, mode := range sortedKeys(res.UsedModes) {
			if _, ok := b.modes[mode]; !ok {
				return nil, fmt.Errorf("resource '%s' uses undefined mode '%s'", name, mode)
			}
		}
	}

	order, err := graph.TopoSort()
	if err != nil {
		return nil, err
	}

	dependencies := make(map[string]map[string]struct{}, len(resources))
	for name := range resources {
		deps := make(map[string]struct{})
		for _, dep := range graph.Dependencies(name) {
			deps[dep] = struct{}{}
		}
		dependencies[name] = deps
	}

	aliases := make(map[string]string, len(b.aliases))
	for old, current := range b.aliases {
		aliases[old] = current
	}
	modes := make(map[string]*Mode, len(b.modes))
	for name, mode := range b.modes {
		modes[name] = mode
	}

	return &Model{
		Resources:    resources,
		Aliases:      aliases,
		Modes:        modes,
		Dependencies: dependencies,
		Order:        order,
		Graph:        graph,
	}, nil
}

// ResourceBuilder accumulates one resource's declarations.
type ResourceBuilder struct {
	b    *Builder
	name string

	tags          map[string]struct{}
	depends       map[string]struct{}
	imports       map[string]Import
	consts        map[string]string
	exports       map[string]struct{}
	mementos      map[string]struct{}
	files         map[Bag]map[string]Renderer
	dirs          map[Bag]map[string]struct{}
	alwaysRefresh bool
	usedModes     map[string]struct{}
	scriptSeq     int
}

func newResourceBuilder(b *Builder, name string) *ResourceBuilder {
	rb := &ResourceBuilder{
		b:         b,
		name:      name,
		tags:      make(map[string]struct{}),
		depends:   make(map[string]struct{}),
		imports:   make(map[string]Import),
		consts:    make(map[string]string),
		exports:   make(map[string]struct{}),
		mementos:  make(map[string]struct{}),
		files:     make(map[Bag]map[string]Renderer),
		dirs:      make(map[Bag]map[string]struct{}),
		usedModes: make(map[string]struct{}),
	}
	for _, bag := range Bags {
		rb.files[bag] = make(map[string]Renderer)
		rb.dirs[bag] = make(map[string]struct{})
	}
	return rb
}

// Tag adds selection tags.
func (rb *ResourceBuilder) Tag(tags ...string) *ResourceBuilder {
	for _, tag := range tags {
		if tag == "" {
			rb.b.fail("resource '%s': tag cannot be empty", rb.name)
			continue
		}
		rb.tags[tag] = struct{}{}
	}
	return rb
}

// Depends adds pure ordering edges with no data flow.
func (rb *ResourceBuilder) Depends(names ...string) *ResourceBuilder {
	for _, name := range names {
		rb.depends[name] = struct{}{}
	}
	return rb
}

// Import binds a local name to another resource's exported variable. A
// previous Const binding of the same local name is displaced.
func (rb *ResourceBuilder) Import(local, resource, export string) *ResourceBuilder {
	if !identifierRe.MatchString(local) {
		rb.b.fail("resource '%s': invalid import name: '%s'", rb.name, local)
		return rb
	}
	delete(rb.consts, local)
	rb.imports[local] = Import{Resource: resource, Export: export}
	return rb
}

// Const binds a local name to a literal value. A previous Import binding of
// the same local name is displaced.
func (rb *ResourceBuilder) Const(name, value string) *ResourceBuilder {
	if !identifierRe.MatchString(name) {
		rb.b.fail("resource '%s': invalid const name: '%s'", rb.name, name)
		return rb
	}
	delete(rb.imports, name)
	rb.consts[name] = value
	return rb
}

// Export declares variables the up action must produce.
func (rb *ResourceBuilder) Export(names ...string) *ResourceBuilder {
	for _, name := range names {
		if !identifierRe.MatchString(name) {
			rb.b.fail("resource '%s': invalid export name: '%s'", rb.name, name)
			continue
		}
		rb.exports[name] = struct{}{}
	}
	return rb
}

// Memento declares artifact files retained across runs.
func (rb *ResourceBuilder) Memento(names ...string) *ResourceBuilder {
	for _, name := range names {
		if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
			rb.b.fail("resource '%s': invalid memento name: '%s'", rb.name, name)
			continue
		}
		rb.mementos[name] = struct{}{}
	}
	return rb
}

// AlwaysRefresh forces the up action to run every time regardless of content
// changes.
func (rb *ResourceBuilder) AlwaysRefresh() *ResourceBuilder {
	rb.alwaysRefresh = true
	return rb
}

// UseModes declares which global modes this resource's scripts consume.
func (rb *ResourceBuilder) UseModes(names ...string) *ResourceBuilder {
	for _, name := range names {
		rb.usedModes[name] = struct{}{}
	}
	return rb
}

// File places a rendered file into a bag. Within a bag a path may not be both
// a file and a directory prefix; common paths may not collide with any other
// bag. Re-adding a path moves it into the named bag.
func (rb *ResourceBuilder) File(bag Bag, dest string, r Renderer) *ResourceBuilder {
	if !validBag(bag) {
		rb.b.fail("resource '%s': unknown bag: '%s'", rb.name, bag)
		return rb
	}
	cleaned, err := cleanBagPath(dest)
	if err != nil {
		rb.b.fail("resource '%s': %v", rb.name, err)
		return rb
	}

	checked := []Bag{bag, BagCommon}
	if bag == BagCommon {
		checked = Bags
	}

	parts := strings.Split(cleaned, "/")
	for _, cb := range checked {
		if _, ok := rb.dirs[cb][cleaned]; ok {
			rb.b.fail("resource '%s': path is a directory: %s", rb.name, cleaned)
			return rb
		}
		for i := 1; i < len(parts); i++ {
			prefix := strings.Join(parts[:i], "/")
			if _, ok := rb.files[cb][prefix]; ok {
				rb.b.fail("resource '%s': file already exists: %s", rb.name, prefix)
				return rb
			}
		}
		delete(rb.files[cb], cleaned)
	}

	for i := 1; i < len(parts); i++ {
		rb.dirs[bag][strings.Join(parts[:i], "/")] = struct{}{}
	}
	rb.files[bag][cleaned] = r
	return rb
}

// FileContent places literal content into a bag, dedented so multiline
// literals can sit indented at the call site.
func (rb *ResourceBuilder) FileContent(bag Bag, dest, content string) *ResourceBuilder {
	return rb.File(bag, dest, Static(Dedent(content)))
}

// Script adds a shell chunk to a bag. Chunks execute in (order, insertion)
// order under the runner's s.*.sh glob.
func (rb *ResourceBuilder) Script(bag Bag, order int, content string) *ResourceBuilder {
	if order < 0 || order > 9999 {
		rb.b.fail("resource '%s': script order out of range: %d", rb.name, order)
		return rb
	}
	name := fmt.Sprintf("s.%04d-%04d.sh", order, rb.scriptSeq)
	rb.scriptSeq++
	return rb.FileContent(bag, name, content)
}

func (rb *ResourceBuilder) build() *Resource {
	res := &Resource{
		Name:          rb.name,
		Tags:          copySet(rb.tags),
		Depends:       copySet(rb.depends),
		Imports:       make(map[string]Import, len(rb.imports)),
		Consts:        make(map[string]string, len(rb.consts)),
		Exports:       copySet(rb.exports),
		Mementos:      copySet(rb.mementos),
		Files:         make(map[Bag]map[string]Renderer, len(Bags)),
		AlwaysRefresh: rb.alwaysRefresh,
		UsedModes:     copySet(rb.usedModes),
	}
	for name, imp := range rb.imports {
		res.Imports[name] = imp
	}
	for name, value := range rb.consts {
		res.Consts[name] = value
	}
	for _, bag := range Bags {
		files := make(map[string]Renderer, len(rb.files[bag]))
		for p, r := range rb.files[bag] {
			files[p] = r
		}
		res.Files[bag] = files
	}
	if len(res.Tags) == 0 {
		res.Tags = map[string]struct{}{"untagged": {}}
	}
	return res
}

func validBag(bag Bag) bool {
	for _, b := range Bags {
		if b == bag {
			return true
		}
	}
	return false
}

func cleanBagPath(dest string) (string, error) {
	if dest == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.HasPrefix(dest, "/") {
		return "", fmt.Errorf("path cannot be absolute: %s", dest)
	}
	cleaned := path.Clean(dest)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path cannot leave the working directory: %s", dest)
	}
	return cleaned, nil
}

func copySet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

func sortedResourceNames(resources map[string]*Resource) []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedImportNames(imports map[string]Import) []string {
	names := make([]string, 0, len(imports))
	for name := range imports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
