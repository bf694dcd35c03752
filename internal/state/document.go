package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Document is the whole persisted state: one workspace label plus one entry
// per resource that is currently up. It is only ever replaced wholesale.
type Document struct {
	Workspace string                    `json:"workspace"`
	Resources map[string]*ResourceState `json:"resources"`
}

// ResourceState is the durable record of one resource.
type ResourceState struct {
	// Dirty means the last up attempt did not complete cleanly and must be
	// retried even without content changes.
	Dirty bool `json:"dirty"`

	// Files holds the last rendered content of every bag, keyed bag -> path.
	// Down actions replay these verbatim.
	Files map[string]map[string]string `json:"files,omitempty"`

	// Deps, Tags and UsedModes snapshot the resource's metadata as of the
	// last update, kept current even without a content change.
	Deps      []string `json:"deps,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	UsedModes []string `json:"used_modes,omitempty"`

	// Exports and Mementos are the outputs of the last successful up action.
	// MementosModes keeps the permission bits of each memento file.
	Exports       map[string]string `json:"exports,omitempty"`
	Mementos      map[string][]byte `json:"mementos,omitempty"`
	MementosModes map[string]uint32 `json:"mementos_modes,omitempty"`

	// Snapshot is an opaque file set a resource's own scripts persist and
	// expect restored verbatim on the next invocation.
	Snapshot map[string][]byte `json:"state,omitempty"`

	// Checkpoint is the last progress marker emitted by an in-flight up
	// action; present only while a resumable up is incomplete.
	Checkpoint string `json:"checkpoint,omitempty"`

	// Message is a free-text operator note surfaced after the run.
	Message string `json:"message,omitempty"`
}

// NewDocument returns an empty document for a workspace.
func NewDocument(workspace string) *Document {
	return &Document{
		Workspace: workspace,
		Resources: make(map[string]*ResourceState),
	}
}

// Names returns the resource names in the document, sorted.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Resources))
	for name := range d.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyAliases relabels stored resource entries through a rename table
// before they are matched against the current model. A rename is pure
// relabeling and causes no action by itself.
func (d *Document) ApplyAliases(aliases map[string]string) error {
	for _, old := range d.Names() {
		current, ok := aliases[old]
		if !ok {
			continue
		}
		if _, exists := d.Resources[current]; exists {
			return fmt.Errorf("cannot rename stored resource '%s' to '%s': an entry with that name already exists", old, current)
		}
		d.Resources[current] = d.Resources[old]
		delete(d.Resources, old)
	}
	return nil
}

// BagFiles returns the stored content of one bag, never nil.
func (rs *ResourceState) BagFiles(bag string) map[string]string {
	if rs == nil || rs.Files == nil {
		return map[string]string{}
	}
	files, ok := rs.Files[bag]
	if !ok {
		return map[string]string{}
	}
	return files
}

// Status describes an entry for plan listings.
func (rs *ResourceState) Status() string {
	if rs == nil {
		return "new"
	}
	if rs.Dirty {
		return "dirty"
	}
	return "clean"
}

func marshalDocument(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding state document: %w", err)
	}
	return append(data, '\n'), nil
}

func unmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding state document: %w", err)
	}
	if doc.Resources == nil {
		doc.Resources = make(map[string]*ResourceState)
	}
	return &doc, nil
}
