package provider

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/db"
	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/resource"
)

func noEnv(string) (string, bool) { return "", false }

func usersTable() attr.Map {
	return attr.Map{
		"name": attr.String("users"),
		"columns": attr.List(
			attr.MapValue(attr.Map{
				"name":        attr.String("id"),
				"type":        attr.String("INTEGER"),
				"constraints": attr.MapValue(attr.Map{"primary_key": attr.Bool(true)}),
			}),
			attr.MapValue(attr.Map{
				"name":        attr.String("name"),
				"type":        attr.String("TEXT"),
				"constraints": attr.MapValue(attr.Map{"not_null": attr.Bool(true)}),
			}),
		),
	}
}

func nameIndex() attr.Map {
	return attr.Map{
		"name":    attr.String("idx_name"),
		"table":   attr.String("users"),
		"columns": attr.Strings("name"),
	}
}

func configured(t *testing.T) (*Provider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p := New(WithEnvLookup(noEnv))
	t.Cleanup(func() { _ = p.Close() })
	diags := p.Configure(context.Background(), attr.Map{"path": attr.String(path)})
	require.False(t, diags.HasError(), diags.String())
	return p, path
}

// schemaSQL returns the stored CREATE statement for name, or "" when absent.
func schemaSQL(t *testing.T, path, name string) string {
	t.Helper()
	h, err := db.Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer h.Close() //nolint:errcheck

	rs, err := h.Query(context.Background(), "SELECT sql FROM sqlite_master WHERE name = ?", name)
	require.NoError(t, err)
	if len(rs.Rows) == 0 {
		return ""
	}
	return rs.Rows[0][0].(string)
}

func requireErrorSummary(t *testing.T, diags diag.Diagnostics, prefix string) diag.Diagnostic {
	t.Helper()
	require.True(t, diags.HasError(), "expected an error diagnostic")
	d := diags.Errors()[0]
	require.True(t, strings.HasPrefix(d.Summary, prefix), "summary %q lacks prefix %q", d.Summary, prefix)
	return d
}

func TestProvider_Kinds(t *testing.T) {
	p := New()
	assert.Equal(t, []string{"index", "table"}, p.ResourceKinds())

	c, ok := p.Controller("table")
	require.True(t, ok)
	assert.Equal(t, resource.KindTable, c.Kind())

	_, ok = p.Controller("view")
	assert.False(t, ok)

	s, err := p.ResourceSchema("index")
	require.NoError(t, err)
	assert.Contains(t, s.Attributes, "unique")

	_, err = p.ResourceSchema("view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown resource kind "view"`)

	assert.Contains(t, p.Schema().Attributes, "path")
}

func TestProvider_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p, path := configured(t)

	resp := p.Create(ctx, "table", usersTable())
	require.False(t, resp.Diagnostics.HasError(), resp.Diagnostics.String())
	assert.Equal(t, "users", resp.ID)
	assert.Equal(t, resource.StatusPresent, resp.Status)
	assert.Equal(t, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)", schemaSQL(t, path, "users"))

	idx := p.Create(ctx, "index", nameIndex())
	require.False(t, idx.Diagnostics.HasError(), idx.Diagnostics.String())
	assert.Equal(t, "CREATE INDEX idx_name ON users(name)", schemaSQL(t, path, "idx_name"))

	read := p.Read(ctx, "table", resp.ID, resp.State)
	require.False(t, read.Diagnostics.HasError())
	assert.True(t, read.State.Equal(resp.State))

	del := p.Delete(ctx, "index", idx.ID, idx.State)
	require.False(t, del.Diagnostics.HasError(), del.Diagnostics.String())
	assert.Equal(t, resource.StatusDeleted, del.Status)
	assert.Empty(t, schemaSQL(t, path, "idx_name"))

	del = p.Delete(ctx, "table", resp.ID, resp.State)
	require.False(t, del.Diagnostics.HasError(), del.Diagnostics.String())
	assert.Equal(t, resource.StatusDeleted, del.Status)
	assert.Empty(t, del.ID)
	assert.Empty(t, schemaSQL(t, path, "users"))
}

func TestProvider_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	p, _ := configured(t)

	require.False(t, p.Create(ctx, "table", usersTable()).Diagnostics.HasError())

	resp := p.Create(ctx, "table", usersTable())
	d := requireErrorSummary(t, resp.Diagnostics, "EngineError: ")
	assert.Contains(t, d.Detail, "already exists")
	assert.Equal(t, resource.StatusAbsent, resp.Status)
}

func TestProvider_ConfigureFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.db")
	p := New(WithEnvLookup(func(key string) (string, bool) {
		if key == "SQLITE_PROVIDER_PATH" {
			return path, true
		}
		return "", false
	}))
	defer p.Close() //nolint:errcheck

	diags := p.Configure(context.Background(), attr.Map{})
	require.False(t, diags.HasError(), diags.String())

	resp := p.Create(context.Background(), "table", usersTable())
	require.False(t, resp.Diagnostics.HasError(), resp.Diagnostics.String())
	assert.NotEmpty(t, schemaSQL(t, path, "users"))
}

func TestProvider_ConfigPathWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.db")
	cfgPath := filepath.Join(dir, "cfg.db")
	p := New(WithEnvLookup(func(string) (string, bool) { return envPath, true }))
	defer p.Close() //nolint:errcheck

	require.False(t, p.Configure(context.Background(), attr.Map{"path": attr.String(cfgPath)}).HasError())
	require.False(t, p.Create(context.Background(), "table", usersTable()).Diagnostics.HasError())

	assert.NotEmpty(t, schemaSQL(t, cfgPath, "users"))
	assert.NoFileExists(t, envPath)
}

func TestProvider_ConfigureFailures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     attr.Map
		summary string
		detail  string
	}{
		{
			name:    "missing path",
			cfg:     attr.Map{},
			summary: "ConfigError: ",
			detail:  "path is required",
		},
		{
			name:    "empty path",
			cfg:     attr.Map{"path": attr.String("")},
			summary: "ConfigError: ",
			detail:  "path is required",
		},
		{
			name:    "wrong type",
			cfg:     attr.Map{"path": attr.Number(1)},
			summary: "ConfigError: ",
			detail:  "expected string, got number",
		},
		{
			name:    "unknown key",
			cfg:     attr.Map{"path": attr.String("x.db"), "mode": attr.String("ro")},
			summary: "ConfigError: ",
			detail:  "mode: unsupported attribute",
		},
		{
			name:    "unopenable path",
			cfg:     attr.Map{"path": attr.String(dir)},
			summary: "IOError: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(WithEnvLookup(noEnv))
			defer p.Close() //nolint:errcheck

			d := requireErrorSummary(t, p.Configure(context.Background(), tt.cfg), tt.summary)
			if tt.detail != "" {
				assert.Contains(t, d.Detail, tt.detail)
			}

			// Every later call reports the failed configuration.
			resp := p.Create(context.Background(), "table", usersTable())
			d = requireErrorSummary(t, resp.Diagnostics, "ConfigError: ")
			assert.Contains(t, d.Detail, "provider not configured")
		})
	}
}

func TestProvider_NotConfigured(t *testing.T) {
	p := New(WithEnvLookup(noEnv))

	for _, resp := range []resource.Response{
		p.Create(context.Background(), "table", usersTable()),
		p.Read(context.Background(), "table", "users", usersTable()),
		p.Delete(context.Background(), "index", "idx_name", nameIndex()),
	} {
		d := requireErrorSummary(t, resp.Diagnostics, "ConfigError: ")
		assert.Equal(t, "provider not configured", d.Detail)
	}
}

func TestProvider_UnknownKind(t *testing.T) {
	p, _ := configured(t)

	resp := p.Create(context.Background(), "view", attr.Map{})
	d := requireErrorSummary(t, resp.Diagnostics, "ValidationError: ")
	assert.Contains(t, d.Detail, `unknown resource kind "view"`)
	assert.Equal(t, resource.StatusAbsent, resp.Status)

	// Unknown kinds are rejected before the configuration check.
	resp = New().Delete(context.Background(), "view", "v", nil)
	requireErrorSummary(t, resp.Diagnostics, "ValidationError: ")
}

func TestProvider_Reconfigure(t *testing.T) {
	ctx := context.Background()
	p, first := configured(t)

	second := filepath.Join(t.TempDir(), "second.db")
	diags := p.Configure(ctx, attr.Map{"path": attr.String(second)})
	require.False(t, diags.HasError(), diags.String())

	require.False(t, p.Create(ctx, "table", usersTable()).Diagnostics.HasError())
	assert.NotEmpty(t, schemaSQL(t, second, "users"))
	assert.Empty(t, schemaSQL(t, first, "users"))
}

func TestProvider_Close(t *testing.T) {
	p, _ := configured(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	resp := p.Create(context.Background(), "table", usersTable())
	d := requireErrorSummary(t, resp.Diagnostics, "ConfigError: ")
	assert.Equal(t, "provider closed", d.Detail)
}

type panicking struct{ resource.Controller }

func (panicking) Kind() string { return "boom" }

func (panicking) Create(context.Context, resource.Executor, attr.Map) resource.Response {
	panic("kaboom")
}

func TestProvider_RecoversControllerPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p := New(WithEnvLookup(noEnv), WithController(panicking{}))
	defer p.Close() //nolint:errcheck
	require.False(t, p.Configure(context.Background(), attr.Map{"path": attr.String(path)}).HasError())

	var resp resource.Response
	require.NotPanics(t, func() {
		resp = p.Create(context.Background(), "boom", attr.Map{})
	})
	d := requireErrorSummary(t, resp.Diagnostics, "create boom")
	assert.Contains(t, d.Detail, "kaboom")

	// The provider stays usable.
	assert.False(t, p.Create(context.Background(), "table", usersTable()).Diagnostics.HasError())
}

func TestProvider_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	p, path := configured(t)

	const n = 12
	var wg sync.WaitGroup
	errs := make([]diag.Diagnostics, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attrs := usersTable()
			attrs["name"] = attr.String("t" + string(rune('a'+i)))
			errs[i] = p.Create(ctx, "table", attrs).Diagnostics
		}()
	}
	wg.Wait()

	for i, d := range errs {
		require.False(t, d.HasError(), "create %d: %s", i, d.String())
		assert.NotEmpty(t, schemaSQL(t, path, "t"+string(rune('a'+i))))
	}
}
