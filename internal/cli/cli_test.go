package cli

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shellform-io/shellform/internal/engine"
	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/state"
)

func TestColorize(t *testing.T) {
	noColor = false
	assert.Equal(t, "\033[31m", colorize("\033[31m"))

	noColor = true
	assert.Equal(t, "", colorize("\033[31m"))

	noColor = false
}

func TestIndent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"two lines", "a\nb\n", "  a\n  b\n"},
		{"normalizes missing newline", "a", "  a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, indent(tt.input, "  "))
		})
	}
}

func TestRenderPreview_NoChanges(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	assert.Equal(t, "No changes. Resources are up to date.\n", renderPreview(nil))

	quiet := []engine.PreviewEntry{
		{Name: "db", Status: "clean", Action: engine.ActionUpToDate},
	}
	assert.Equal(t, "No changes. Resources are up to date.\n", renderPreview(quiet))
}

func TestRenderPreview_Listing(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	entries := []engine.PreviewEntry{
		{Name: "queue", Status: "dirty", Action: engine.ActionDown},
		{Name: "db", Status: "clean", Action: engine.ActionUpdate, Files: []engine.FileDiff{
			{Path: "s.0000.sh", Old: "a\n", New: "b\n"},
		}},
		{Name: "cache", Status: "new", Action: engine.ActionCreate},
		{Name: "web", Status: "clean", Action: engine.ActionUpToDate},
		{Name: "app", Status: "clean", Action: engine.ActionUnknown, Reason: "waiting for exports of 'db'"},
	}

	want := "- queue will be brought down (dirty)\n" +
		"~ db will be updated\n" +
		"    s.0000.sh:\n" +
		"      - a\n" +
		"      + b\n" +
		"+ cache will be created\n" +
		"? app cannot be decided yet: waiting for exports of 'db'\n" +
		"\n" +
		"Plan: 1 to create, 1 to update, 0 to replace, 1 to bring down.\n" +
		"Undecided: 1, their dependencies still have work pending.\n"
	assert.Equal(t, want, renderPreview(entries))
}

func TestRenderPreview_ReplaceAndReason(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	entries := []engine.PreviewEntry{
		{Name: "server", Status: "clean", Action: engine.ActionReplace},
		{Name: "cron", Status: "clean", Action: engine.ActionUpdate, Reason: "always refreshes"},
	}

	want := "-/+ server will be replaced: its identity changed\n" +
		"~ cron will be updated: always refreshes\n" +
		"\n" +
		"Plan: 0 to create, 1 to update, 1 to replace, 0 to bring down.\n"
	assert.Equal(t, want, renderPreview(entries))
}

func TestRenderModes(t *testing.T) {
	modes := map[string]*model.Mode{
		"region": {Name: "region", Default: "eu-west-1", Help: "target region",
			Choices: []string{"eu-west-1", "us-east-1"}},
		"flavor": {Name: "flavor", Default: "small",
			Pattern: regexp.MustCompile("^(small|large)$")},
	}

	want := "MODE    DEFAULT    HELP\n" +
		"flavor  small      (matching ^(small|large)$)\n" +
		"region  eu-west-1  target region (one of: eu-west-1, us-east-1)\n"
	assert.Equal(t, want, renderModes(modes))
}

func TestRenderModes_Empty(t *testing.T) {
	assert.Equal(t, "No modes defined.\n", renderModes(nil))
}

func TestRenderShow(t *testing.T) {
	rs := &state.ResourceState{
		Tags:          []string{"backend"},
		Deps:          []string{"net"},
		UsedModes:     []string{"region"},
		Exports:       map[string]string{"addr": "10.0.0.5"},
		Mementos:      map[string][]byte{"root.key": []byte("secret")},
		MementosModes: map[string]uint32{"root.key": 0o600},
		Snapshot:      map[string][]byte{"refs/head": []byte("abc123\n")},
		Checkpoint:    "batch-2",
		Message:       "db is ready\n",
	}

	want := "# db\n" +
		"  status = clean\n" +
		"  tags   = backend\n" +
		"  deps   = net\n" +
		"  modes  = region\n" +
		"\n" +
		"  exports:\n" +
		"    addr = 10.0.0.5\n" +
		"\n" +
		"  mementos:\n" +
		"    root.key (mode 0600)\n" +
		"\n" +
		"  snapshot:\n" +
		"    refs/head (7 bytes)\n" +
		"\n" +
		"  checkpoint = batch-2\n" +
		"\n" +
		"  message:\n" +
		"    db is ready\n"
	assert.Equal(t, want, renderShow("db", rs))
}

func TestRenderShow_MinimalEntry(t *testing.T) {
	rs := &state.ResourceState{Dirty: true}

	want := "# app\n" +
		"  status = dirty\n" +
		"  tags   = (none)\n" +
		"  deps   = (none)\n" +
		"  modes  = (none)\n"
	assert.Equal(t, want, renderShow("app", rs))
}
