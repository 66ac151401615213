package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliResult is the captured outcome of one CLI invocation.
type cliResult struct {
	stdout string
	stderr string
	code   int
}

// runCLI executes the root command with args against in-memory streams.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))

	code := run(rootCmd, &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// workspace is a temp config directory plus database and state paths.
type workspace struct {
	configDir string
	dbPath    string
	statePath string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	t.Setenv("SQLITE_PROVIDER_PATH", "")
	t.Setenv("SQLITE_PROVIDER_STATE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	dir := t.TempDir()
	ws := workspace{
		configDir: filepath.Join(dir, "config"),
		dbPath:    filepath.Join(dir, "app.db"),
		statePath: filepath.Join(dir, "state", "state.db"),
	}
	require.NoError(t, os.MkdirAll(ws.configDir, 0o755))
	return ws
}

// write replaces the configuration with a Provider document pointing at
// the workspace database followed by docs.
func (ws workspace) write(t *testing.T, docs string) {
	t.Helper()
	provider := "apiVersion: sqlite/v1\nkind: Provider\nspec:\n  path: " + ws.dbPath + "\n---\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws.configDir, "main.yaml"), []byte(provider+docs), 0o644))
}

// args prefixes the global and config flags for command.
func (ws workspace) args(command string, extra ...string) []string {
	out := []string{"--state", ws.statePath, "--log-level", "error", command}
	if command != "show" {
		out = append(out, "--config-dir", ws.configDir)
	}
	return append(out, extra...)
}

// containsIgnoreCase checks if s contains substr (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
