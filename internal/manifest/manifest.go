// Package manifest loads shellform.toml files and turns them into a model.
//
// The manifest is the declarative front end of the model builder: every
// table maps onto one builder call, and file contents are Go text/templates
// rendered against the resource's resolved imports.
package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/shellform-io/shellform/internal/runner"
	"github.com/shellform-io/shellform/internal/state"
)

// DefaultPath is where commands look for the manifest unless told otherwise.
const DefaultPath = "shellform.toml"

// Manifest is a decoded shellform.toml document, not yet validated against
// the model rules. Build turns it into a finalized model.
type Manifest struct {
	Modes     map[string]ModeSpec     `toml:"modes"`
	Resources map[string]ResourceSpec `toml:"resources"`

	// Aliases maps former resource names to their current name, so state
	// entries written under the old name follow the rename.
	Aliases map[string]string `toml:"aliases"`

	State  state.Config  `toml:"state"`
	Runner runner.Config `toml:"runner"`
}

// ModeSpec declares one global toggle. Validation is whatever subset of
// choices and pattern is present.
type ModeSpec struct {
	Default string   `toml:"default"`
	Choices []string `toml:"choices"`
	Pattern string   `toml:"pattern"`
	Help    string   `toml:"help"`
}

// ResourceSpec declares one resource. Up, Down and Precheck are script
// shorthands; Files places arbitrary rendered files into the named bags.
type ResourceSpec struct {
	Tags          []string          `toml:"tags"`
	Depends       []string          `toml:"depends"`
	Imports       map[string]string `toml:"imports"`
	Const         map[string]string `toml:"const"`
	Exports       []string          `toml:"exports"`
	Mementos      []string          `toml:"mementos"`
	AlwaysRefresh bool              `toml:"always_refresh"`
	Modes         []string          `toml:"modes"`

	Up       string `toml:"up"`
	Down     string `toml:"down"`
	Precheck string `toml:"precheck"`

	// Files maps bag name to path to template text.
	Files map[string]map[string]string `toml:"files"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse parses manifest content from bytes. Keys the schema does not know
// are rejected, so typos fail loudly instead of silently dropping settings.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key '%s'", undecoded[0].String())
	}
	return &m, nil
}
