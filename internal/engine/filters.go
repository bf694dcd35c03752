package engine

import (
	"fmt"
	"path"

	"github.com/shellform-io/shellform/internal/tagexpr"
)

// Filters hold the caller's include and exclude predicates over resources.
// A resource is included when any name glob or tag expression matches; no
// include filters at all means everything is included. Exclusion matches the
// same way but never defaults to everything.
type Filters struct {
	includeGlobs []string
	includeTags  []tagexpr.Func
	excludeGlobs []string
	excludeTags  []tagexpr.Func
}

// NewFilters compiles glob patterns and tag expressions into a filter set.
func NewFilters(only, tags, exclude, excludeTags []string) (*Filters, error) {
	f := &Filters{}

	var err error
	if f.includeGlobs, err = checkGlobs(only); err != nil {
		return nil, err
	}
	if f.excludeGlobs, err = checkGlobs(exclude); err != nil {
		return nil, err
	}
	if f.includeTags, err = compileTagExprs(tags); err != nil {
		return nil, err
	}
	if f.excludeTags, err = compileTagExprs(excludeTags); err != nil {
		return nil, err
	}
	return f, nil
}

// Included reports whether a resource passes the include filters.
func (f *Filters) Included(name string, tags map[string]struct{}) bool {
	if len(f.includeGlobs) == 0 && len(f.includeTags) == 0 {
		return true
	}
	return matches(name, tags, f.includeGlobs, f.includeTags)
}

// Excluded reports whether a resource matches any exclude filter.
func (f *Filters) Excluded(name string, tags map[string]struct{}) bool {
	return matches(name, tags, f.excludeGlobs, f.excludeTags)
}

func matches(name string, tags map[string]struct{}, globs []string, exprs []tagexpr.Func) bool {
	for _, glob := range globs {
		if ok, _ := path.Match(glob, name); ok {
			return true
		}
	}
	for _, expr := range exprs {
		if expr(tags) {
			return true
		}
	}
	return false
}

func checkGlobs(globs []string) ([]string, error) {
	for _, glob := range globs {
		if _, err := path.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("invalid resource pattern '%s'", glob)
		}
	}
	return globs, nil
}

func compileTagExprs(exprs []string) ([]tagexpr.Func, error) {
	fns := make([]tagexpr.Func, 0, len(exprs))
	for _, expr := range exprs {
		fn, err := tagexpr.Compile(expr)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}
