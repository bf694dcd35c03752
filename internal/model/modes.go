package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// TruthyValue is assigned to a bare "name" mode override that carries no
// explicit value.
const TruthyValue = "1"

// Mode is a named global configuration toggle consumed by resource scripts
// as environment input. Validation is a closed set of variants: choice list,
// regexp pattern, custom hook, or nothing; whichever are set all apply.
type Mode struct {
	Name    string
	Default string
	Help    string
	Choices []string
	Pattern *regexp.Regexp

	// Validate, when set, is called with the mode's final value and the
	// final values of all modes, after defaults and overrides are merged.
	Validate func(value string, all map[string]string) error
}

func (m *Mode) validateValue(value string, all map[string]string) error {
	if len(m.Choices) > 0 {
		found := false
		for _, c := range m.Choices {
			if c == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("mode '%s': value '%s' is not one of: %s", m.Name, value, strings.Join(m.Choices, ", "))
		}
	}
	if m.Pattern != nil && !m.Pattern.MatchString(value) {
		return fmt.Errorf("mode '%s': value '%s' does not match %s", m.Name, value, m.Pattern)
	}
	if m.Validate != nil {
		if err := m.Validate(value, all); err != nil {
			return fmt.Errorf("mode '%s': %w", m.Name, err)
		}
	}
	return nil
}

// ParseModeOverrides turns "name=value" and bare "name" arguments into an
// override map. A bare name gets the truthy sentinel value.
func ParseModeOverrides(args []string) (map[string]string, error) {
	overrides := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid mode override '%s'", arg)
		}
		if !found {
			value = TruthyValue
		}
		overrides[name] = value
	}
	return overrides, nil
}

// ResolveModes computes the effective value of every defined mode from
// defaults plus caller overrides, then validates the merged result. Custom
// validators observe the full value map.
func ResolveModes(modes map[string]*Mode, overrides map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(modes))
	for name, mode := range modes {
		values[name] = mode.Default
	}
	for name, value := range overrides {
		if _, ok := modes[name]; !ok {
			return nil, fmt.Errorf("unknown mode '%s'", name)
		}
		values[name] = value
	}

	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := modes[name].validateValue(values[name], values); err != nil {
			return nil, err
		}
	}
	return values, nil
}
