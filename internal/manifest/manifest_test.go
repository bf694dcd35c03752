package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellform-io/shellform/internal/model"
)

const fullManifest = `
[modes.region]
default = "eu-west-1"
choices = ["eu-west-1", "us-east-1"]
help = "target region"

[modes.flavor]
default = "small"
pattern = "^(small|large)$"

[aliases]
database = "db"

[state]
backend = "s3"
bucket = "shellform-state"
key = "prod/state.json"
region = "eu-west-1"
dynamodb_table = "shellform-locks"
encrypt = true

[runner]
kind = "docker"
image = "ubuntu:24.04"

[resources.db]
tags = ["backend"]
exports = ["addr"]
modes = ["region"]
up = '''
echo 10.0.0.5 > exports/addr
'''
down = "echo dropping"

[resources.app]
tags = ["frontend"]
depends = ["db"]
mementos = ["app.key"]
always_refresh = true

[resources.app.imports]
addr = "db.addr"

[resources.app.const]
port = "8080"

[resources.app.files.up]
"config.ini" = "db={{.addr}}:{{.port}}\n"

[resources.app.files.common]
"region.txt" = "static\n"
`

func mustParse(t *testing.T, src string) *Manifest {
	t.Helper()
	m, err := Parse([]byte(src))
	require.NoError(t, err)
	return m
}

func TestParse_FullDocument(t *testing.T) {
	m := mustParse(t, fullManifest)

	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, m.Modes["region"].Choices)
	assert.Equal(t, "target region", m.Modes["region"].Help)
	assert.Equal(t, "^(small|large)$", m.Modes["flavor"].Pattern)

	assert.Equal(t, map[string]string{"database": "db"}, m.Aliases)

	assert.Equal(t, "s3", m.State.Backend)
	assert.Equal(t, "shellform-state", m.State.Bucket)
	assert.Equal(t, "shellform-locks", m.State.DynamoDBTable)
	assert.True(t, m.State.Encrypt)
	assert.Equal(t, "docker", m.Runner.Kind)
	assert.Equal(t, "ubuntu:24.04", m.Runner.Image)

	db := m.Resources["db"]
	assert.Equal(t, []string{"backend"}, db.Tags)
	assert.Equal(t, []string{"addr"}, db.Exports)
	assert.Equal(t, []string{"region"}, db.Modes)
	assert.Equal(t, "echo 10.0.0.5 > exports/addr\n", db.Up)
	assert.Equal(t, "echo dropping", db.Down)

	app := m.Resources["app"]
	assert.Equal(t, []string{"db"}, app.Depends)
	assert.True(t, app.AlwaysRefresh)
	assert.Equal(t, map[string]string{"addr": "db.addr"}, app.Imports)
	assert.Equal(t, map[string]string{"port": "8080"}, app.Const)
	assert.Equal(t, "db={{.addr}}:{{.port}}\n", app.Files["up"]["config.ini"])
	assert.Equal(t, "static\n", app.Files["common"]["region.txt"])
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("[resources.db]\nalways_refesh = true\n"))
	assert.EqualError(t, err, "unknown key 'resources.db.always_refesh'")
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("[resources.db\n"))
	assert.ErrorContains(t, err, "parsing TOML")
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellform.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, m.Resources, "db")
	assert.Contains(t, m.Resources, "app")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "reading manifest")
}

func TestLoad_NamesFileOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shellform.toml")
	require.NoError(t, os.WriteFile(path, []byte("[resources.db]\nports = [80]\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, path)
	assert.ErrorContains(t, err, "unknown key")
}

func TestBuild_EndToEnd(t *testing.T) {
	m := mustParse(t, fullManifest)

	mdl, err := m.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "app"}, mdl.Order)
	assert.Equal(t, map[string]string{"database": "db"}, mdl.Aliases)

	db := mdl.Resources["db"]
	require.NotNil(t, db)
	assert.Equal(t, []string{"backend"}, db.SortedTags())
	assert.Equal(t, []string{"region"}, db.SortedUsedModes())
	up, err := db.RenderBag(model.BagUp, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo 10.0.0.5 > exports/addr\n", up["s.0000.sh"])
	down, err := db.RenderBag(model.BagDown, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo dropping", down["s.0000.sh"])

	app := mdl.Resources["app"]
	require.NotNil(t, app)
	assert.True(t, app.AlwaysRefresh)
	assert.Equal(t, map[string]string{"port": "8080"}, app.Consts)
	assert.Equal(t, model.Import{Resource: "db", Export: "addr"}, app.Imports["addr"])
	rendered, err := app.RenderBag(model.BagUp, map[string]string{"addr": "10.0.0.5", "port": "8080"})
	require.NoError(t, err)
	assert.Equal(t, "db=10.0.0.5:8080\n", rendered["config.ini"])

	require.NotNil(t, mdl.Modes["flavor"].Pattern)
	assert.True(t, mdl.Modes["flavor"].Pattern.MatchString("small"))
	assert.False(t, mdl.Modes["flavor"].Pattern.MatchString("huge"))
}

func TestBuild_EmptyManifest(t *testing.T) {
	m := mustParse(t, "")

	mdl, err := m.Build()
	require.NoError(t, err)
	assert.Empty(t, mdl.Order)
	assert.Empty(t, mdl.Resources)
}

func TestSplitImport(t *testing.T) {
	cases := []struct {
		ref      string
		resource string
		export   string
		ok       bool
	}{
		{"db.addr", "db", "addr", true},
		{"my.db.addr", "my.db", "addr", true},
		{"dbaddr", "", "", false},
		{".addr", "", "", false},
		{"db.", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			resource, export, ok := splitImport(tc.ref)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.resource, resource)
				assert.Equal(t, tc.export, export)
			}
		})
	}
}

func TestBuild_BadImportRef(t *testing.T) {
	m := mustParse(t, `
[resources.app.imports]
addr = "dbaddr"
`)
	_, err := m.Build()
	assert.EqualError(t, err, "resource 'app': import 'addr': want 'resource.export', got 'dbaddr'")
}

func TestBuild_ImportConstClash(t *testing.T) {
	m := mustParse(t, `
[resources.app.imports]
addr = "db.addr"

[resources.app.const]
addr = "localhost"
`)
	_, err := m.Build()
	assert.EqualError(t, err, "resource 'app': 'addr' is declared both as an import and a const")
}

func TestBuild_InvalidModePattern(t *testing.T) {
	m := mustParse(t, `
[modes.region]
pattern = "[unclosed"
`)
	_, err := m.Build()
	assert.ErrorContains(t, err, "mode 'region': invalid pattern")
}

func TestBuild_AliasMustNameDeclaredResource(t *testing.T) {
	m := mustParse(t, `
[aliases]
database = "warehouse"

[resources.db]
up = "true"
`)
	_, err := m.Build()
	assert.EqualError(t, err, "alias 'database' names undeclared resource 'warehouse'")
}

func TestBuild_UnknownBag(t *testing.T) {
	m := mustParse(t, `
[resources.db.files.sideways]
"x" = "y"
`)
	_, err := m.Build()
	assert.EqualError(t, err, "resource 'db': unknown bag: 'sideways'")
}

func TestBuild_BadTemplate(t *testing.T) {
	m := mustParse(t, `
[resources.db]
up = "echo {{.addr"
`)
	_, err := m.Build()
	assert.ErrorContains(t, err, "resource 'db'")
	assert.ErrorContains(t, err, "up script")
}

func TestBuild_FinalizeChecksReferences(t *testing.T) {
	m := mustParse(t, `
[resources.app.imports]
addr = "db.addr"
`)
	_, err := m.Build()
	assert.EqualError(t, err, "resource 'app' depends on non-existent resource 'db'")
}
