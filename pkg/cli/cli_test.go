package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-provider/internal/db"
)

const usersDocs = `apiVersion: sqlite/v1
kind: Table
metadata:
  name: users
spec:
  columns:
    - name: id
      type: INTEGER
      constraints: {primary_key: true}
    - name: name
      type: TEXT
      constraints: {not_null: true}
---
apiVersion: sqlite/v1
kind: Index
metadata:
  name: idx_name
spec:
  table: users
  columns: [name]
`

// schemaObjects returns the names in sqlite_master, ordered.
func schemaObjects(t *testing.T, path string) []string {
	t.Helper()
	h, err := db.Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer h.Close() //nolint:errcheck

	rs, err := h.Query(context.Background(), "SELECT name FROM sqlite_master ORDER BY name")
	require.NoError(t, err)
	names := []string{}
	for _, r := range rs.Rows {
		names = append(names, r[0].(string))
	}
	return names
}

func TestVersionCmd(t *testing.T) {
	res := runCLI(t, "version")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "sqlite-provider version dev")

	res = runCLI(t, "-o", "json", "version")
	assert.Equal(t, 0, res.code)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, res.stdout)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	res := runCLI(t, "-o", "yaml", "version")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unsupported output format "yaml": use 'table' or 'json'`)
}

func TestCompletionCmd(t *testing.T) {
	res := runCLI(t, "completion", "bash")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "sqlite-provider")

	res = runCLI(t, "completion", "tcsh")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unsupported shell")
}

func TestValidateCmd(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	res := runCLI(t, ws.args("validate")...)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Configuration is valid (1 table(s), 1 index(es))")

	ws.write(t, usersDocs+"---\napiVersion: sqlite/v1\nkind: Index\nmetadata: {name: idx_email}\nspec: {table: users, columns: [email]}\n")
	res = runCLI(t, ws.args("validate")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `column "email" does not exist in table "users"`)

	res = runCLI(t, append([]string{"-o", "json"}, ws.args("validate")...)...)
	assert.Equal(t, 1, res.code)
	var out struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.False(t, out.Valid)
	assert.Len(t, out.Errors, 1)
}

func TestValidateCmd_MissingDir(t *testing.T) {
	res := runCLI(t, "validate", "--config-dir", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, 1, res.code)
	assert.True(t, containsIgnoreCase(res.stderr, "load config"))
}

func TestLifecycle_PlanApplyShowDestroy(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	// Plan reports pending changes with exit status 2.
	res := runCLI(t, ws.args("plan", "--no-color")...)
	assert.Equal(t, 2, res.code, res.stderr)
	assert.Contains(t, res.stdout, `+ table "users" will be created`)
	assert.Contains(t, res.stdout, "2 to create, 0 to replace, 0 to delete.")

	res = runCLI(t, ws.args("apply", "--auto-approve", "--no-color")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "create table/users ... succeeded")
	assert.Contains(t, res.stdout, "Apply complete: 2 succeeded, 0 failed, 0 skipped.")
	assert.Equal(t, []string{"idx_name", "users"}, schemaObjects(t, ws.dbPath))

	// Nothing left to do.
	res = runCLI(t, ws.args("plan", "--no-color")...)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No changes.")

	res = runCLI(t, ws.args("show")...)
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "KIND")
	assert.Contains(t, res.stdout, "users")
	assert.Contains(t, res.stdout, "Last run: apply")

	res = runCLI(t, append([]string{"-o", "json"}, ws.args("show")...)...)
	assert.Equal(t, 0, res.code, res.stderr)
	var shown struct {
		Resources []struct {
			Kind   string `json:"kind"`
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &shown))
	require.Len(t, shown.Resources, 2)
	assert.Equal(t, "present", shown.Resources[1].Status)

	// Changing the index replaces it.
	ws.write(t, usersDocs+"  unique: true\n")
	res = runCLI(t, ws.args("apply", "--auto-approve", "--no-color")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, `-/+ index "idx_name" will be replaced`)
	assert.Contains(t, res.stdout, "delete index/idx_name ... succeeded")

	res = runCLI(t, ws.args("destroy", "--auto-approve", "--no-color")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, schemaObjects(t, ws.dbPath))

	res = runCLI(t, ws.args("show")...)
	assert.Contains(t, res.stdout, "No resources tracked.")
}

func TestApplyCmd_JSONOutput(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	res := runCLI(t, append([]string{"-o", "json"}, ws.args("apply", "--auto-approve")...)...)
	require.Equal(t, 0, res.code, res.stderr)

	var report applyReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, "table/users", report.Steps[0].Resource)
	assert.Equal(t, "present", report.Steps[0].Status)
}

func TestApplyCmd_RequiresConfirmation(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	res := runCLI(t, ws.args("apply")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "use --auto-approve")
	assert.NoFileExists(t, ws.dbPath)
}

func TestApplyCmd_EngineFailureSkipsDependents(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	// A table the state store does not know about blocks the create.
	h, err := db.Open(context.Background(), ws.dbPath, nil)
	require.NoError(t, err)
	_, err = h.Execute(context.Background(), "CREATE TABLE users (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, h.Close())

	res := runCLI(t, ws.args("apply", "--auto-approve", "--no-color")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "create table/users ... failed")
	assert.Contains(t, res.stdout, "EngineError")
	assert.Contains(t, res.stdout, "create index/idx_name ... skipped")
	assert.Contains(t, res.stderr, "1 failed and 1 skipped")

	res = runCLI(t, ws.args("show")...)
	assert.Contains(t, res.stdout, "No resources tracked.")
}

func TestApplyCmd_BadParallelism(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, usersDocs)

	res := runCLI(t, ws.args("apply", "--auto-approve", "--parallelism", "0")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "--parallelism must be at least 1")
}

func TestApplyCmd_ProviderConfigError(t *testing.T) {
	ws := newWorkspace(t)
	// No Provider document and no environment fallback.
	require.NoError(t, os.WriteFile(filepath.Join(ws.configDir, "main.yaml"), []byte(usersDocs), 0o644))

	res := runCLI(t, ws.args("apply", "--auto-approve")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "ConfigError")
	assert.Contains(t, res.stderr, "path is required")
}

func TestApplyCmd_DatabasePathFromEnvironment(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.configDir, "main.yaml"), []byte(usersDocs), 0o644))
	t.Setenv("SQLITE_PROVIDER_PATH", " "+ws.dbPath+" ")

	res := runCLI(t, ws.args("apply", "--auto-approve", "--no-color")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, []string{"idx_name", "users"}, schemaObjects(t, ws.dbPath))
}
