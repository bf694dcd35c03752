package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChunk(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func runLocal(t *testing.T, req Request) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := &LocalRunner{Stdout: &out, Stderr: &out}
	err := r.Run(context.Background(), req)
	return out.String(), err
}

func TestLocalRunnerSourcesChunksInOrder(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0010-0001.sh", "echo second\n")
	writeChunk(t, dir, "s.0000-0000.sh", "echo first\n")
	writeChunk(t, dir, "s.0010-0000.sh", "echo middle\n")

	out, err := runLocal(t, Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "first\nmiddle\nsecond\n", out)
}

func TestLocalRunnerSharesShellState(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "GREETING=hello\ngreet() { echo \"$GREETING $1\"; }\n")
	writeChunk(t, dir, "s.0010-0000.sh", "greet world\n")

	out, err := runLocal(t, Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestLocalRunnerPassesEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "echo \"$SHELLFORM_RESOURCE in $SHELLFORM_WORKSPACE\"\n")

	out, err := runLocal(t, Request{
		Dir: dir,
		Env: map[string]string{
			"SHELLFORM_RESOURCE":  "db",
			"SHELLFORM_WORKSPACE": "staging",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "db in staging\n", out)
}

func TestLocalRunnerEmptyDirSucceeds(t *testing.T) {
	_, err := runLocal(t, Request{Dir: t.TempDir()})
	require.NoError(t, err)
}

func TestLocalRunnerIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "echo only\n")
	writeChunk(t, dir, "helper.sh", "echo never\n")
	writeChunk(t, dir, "notes.txt", "not a script\n")

	out, err := runLocal(t, Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "only\n", out)
}

func TestLocalRunnerReportsExitStatus(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "exit 3\n")

	_, err := runLocal(t, Request{Dir: dir})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "exit status 3", exitErr.Error())
}

func TestLocalRunnerStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "false\n")
	writeChunk(t, dir, "s.0010-0000.sh", "echo unreachable\n")

	out, err := runLocal(t, Request{Dir: dir})
	require.Error(t, err)
	assert.NotContains(t, out, "unreachable")
}

func TestLocalRunnerRejectsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "echo \"$THIS_IS_NOT_SET\"\n")

	_, err := runLocal(t, Request{Dir: dir})
	require.Error(t, err)
}

func TestLocalRunnerFailsInsidePipelines(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "false | cat\n")

	_, err := runLocal(t, Request{Dir: dir})
	require.Error(t, err)
}

func TestLocalRunnerDebugTracesCommands(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "echo traced\n")

	out, err := runLocal(t, Request{Dir: dir, Debug: true})
	require.NoError(t, err)
	assert.Contains(t, out, "+ echo traced")
}

func TestLocalRunnerTimeout(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "sleep 10\n")

	start := time.Now()
	_, err := runLocal(t, Request{Dir: dir, Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 100ms")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLocalRunnerRunsInDir(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, "s.0000-0000.sh", "echo marker > produced.txt\n")

	_, err := runLocal(t, Request{Dir: dir})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "produced.txt"))
	require.NoError(t, err)
	assert.Equal(t, "marker\n", string(content))
}

func TestShellCommand(t *testing.T) {
	assert.Equal(t,
		`set -euo pipefail; shopt -s nullglob; for i in s.*.sh; do source "$i"; done`,
		shellCommand(false))
	assert.Equal(t,
		`set -euxo pipefail; shopt -s nullglob; for i in s.*.sh; do source "$i"; done`,
		shellCommand(true))
}

func TestEnvListSorted(t *testing.T) {
	list := envList(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, list)
}

func TestNewRunner(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &LocalRunner{}, r)

	r, err = New(Config{Kind: "docker", Image: "alpine:3"})
	require.NoError(t, err)
	dr, ok := r.(*DockerRunner)
	require.True(t, ok)
	assert.Equal(t, "alpine:3", dr.Image)
	assert.Equal(t, DefaultImage, (&DockerRunner{}).image())

	_, err = New(Config{Kind: "ssh"})
	require.Error(t, err)
	assert.EqualError(t, err, "unknown script runner 'ssh'")
}
