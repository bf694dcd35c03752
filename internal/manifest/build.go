package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shellform-io/shellform/internal/model"
)

// Build validates the manifest against the model rules and returns the
// finalized model. Declarations are fed to the builder in sorted order so
// the first reported problem is stable across runs.
func (m *Manifest) Build() (*model.Model, error) {
	b := model.NewBuilder()

	for _, name := range sortedKeys(m.Modes) {
		spec := m.Modes[name]
		mode := model.Mode{
			Name:    name,
			Default: spec.Default,
			Help:    spec.Help,
			Choices: spec.Choices,
		}
		if spec.Pattern != "" {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("mode '%s': invalid pattern: %w", name, err)
			}
			mode.Pattern = re
		}
		b.Mode(mode)
	}

	for _, name := range sortedKeys(m.Resources) {
		if err := buildResource(b, name, m.Resources[name]); err != nil {
			return nil, err
		}
	}

	for _, old := range sortedKeys(m.Aliases) {
		current := m.Aliases[old]
		if _, ok := m.Resources[current]; !ok {
			return nil, fmt.Errorf("alias '%s' names undeclared resource '%s'", old, current)
		}
		b.Resource(current, old)
	}

	return b.Finalize()
}

func buildResource(b *model.Builder, name string, spec ResourceSpec) error {
	rb := b.Resource(name)
	rb.Tag(spec.Tags...)
	rb.Depends(spec.Depends...)
	rb.Export(spec.Exports...)
	rb.Memento(spec.Mementos...)
	rb.UseModes(spec.Modes...)
	if spec.AlwaysRefresh {
		rb.AlwaysRefresh()
	}

	for _, local := range sortedKeys(spec.Imports) {
		if _, clash := spec.Const[local]; clash {
			return fmt.Errorf("resource '%s': '%s' is declared both as an import and a const", name, local)
		}
		src, export, ok := splitImport(spec.Imports[local])
		if !ok {
			return fmt.Errorf("resource '%s': import '%s': want 'resource.export', got '%s'", name, local, spec.Imports[local])
		}
		rb.Import(local, src, export)
	}
	for _, local := range sortedKeys(spec.Const) {
		rb.Const(local, spec.Const[local])
	}

	shorthands := []struct {
		bag  model.Bag
		text string
	}{
		{model.BagUp, spec.Up},
		{model.BagDown, spec.Down},
		{model.BagPrecheck, spec.Precheck},
	}
	for _, s := range shorthands {
		if s.text == "" {
			continue
		}
		tpl, err := model.Template(string(s.bag)+" script", s.text)
		if err != nil {
			return fmt.Errorf("resource '%s': %w", name, err)
		}
		rb.File(s.bag, "s.0000.sh", tpl)
	}

	for _, bag := range sortedKeys(spec.Files) {
		files := spec.Files[bag]
		for _, path := range sortedKeys(files) {
			tpl, err := model.Template(path, files[path])
			if err != nil {
				return fmt.Errorf("resource '%s': bag '%s': %w", name, bag, err)
			}
			rb.File(model.Bag(bag), path, tpl)
		}
	}

	return nil
}

// splitImport splits "resource.export" at the last dot. Resource names may
// contain dots, export names may not.
func splitImport(ref string) (resource, export string, ok bool) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
