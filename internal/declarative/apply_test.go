package declarative

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/provider"
	"sqlite-provider/internal/resource"
	"sqlite-provider/internal/state"
)

func newTestApplier(t *testing.T) (*Applier, *state.Store) {
	t.Helper()
	dir := t.TempDir()

	p := provider.New(provider.WithEnvLookup(func(string) (string, bool) { return "", false }))
	t.Cleanup(func() { _ = p.Close() })
	diags := p.Configure(context.Background(), attr.Map{"path": attr.String(filepath.Join(dir, "app.db"))})
	require.False(t, diags.HasError(), diags.String())

	store, err := state.Open(context.Background(), filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &Applier{Provider: p, Store: store, Parallelism: 2}, store
}

func stepsOf(res *ApplyResult) []string {
	var out []string
	for _, s := range res.Steps {
		out = append(out, string(s.Phase)+" "+s.Action.Key())
	}
	return out
}

func TestApply_CreateThenNoChanges(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApplier(t)
	desired := validState()

	res := a.Apply(ctx, Diff(desired, nil))
	assert.False(t, res.HasErrors(), "%+v", res.Steps)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"create table/users", "create index/idx_name"}, stepsOf(res))

	tracked, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tracked, 2)
	assert.Equal(t, "index/idx_name", tracked[0].Key())
	assert.Equal(t, "table/users", tracked[1].Key())
	assert.True(t, tracked[1].Attributes.Has("created_at"))

	assert.False(t, Diff(desired, tracked).HasChanges())
}

func TestApply_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApplier(t)
	desired := validState()
	require.False(t, a.Apply(ctx, Diff(desired, nil)).HasErrors())

	// Change a column: the table and its index are rebuilt.
	desired.Tables[0].Spec.Columns[1].Type = "VARCHAR(64)"
	tracked, err := store.List(ctx)
	require.NoError(t, err)

	res := a.Apply(ctx, Diff(desired, tracked))
	require.False(t, res.HasErrors(), "%+v", res.Steps)
	assert.Equal(t, []string{
		"delete index/idx_name",
		"delete table/users",
		"create table/users",
		"create index/idx_name",
	}, stepsOf(res))

	rec, ok, err := store.Get(ctx, "table", "users")
	require.NoError(t, err)
	require.True(t, ok)
	cols, err := rec.Attributes.List("columns")
	require.NoError(t, err)
	col, _ := cols[1].AsMap()
	typ, _ := col.String("type")
	assert.Equal(t, "VARCHAR(64)", typ)

	// Remove everything.
	tracked, err = store.List(ctx)
	require.NoError(t, err)
	res = a.Apply(ctx, Diff(&DesiredState{}, tracked))
	require.False(t, res.HasErrors(), "%+v", res.Steps)
	for _, s := range res.Steps {
		assert.Equal(t, resource.StatusDeleted, s.Status)
	}

	tracked, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracked)
}

func TestApply_FailedTableSkipsIndex(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApplier(t)
	desired := validState()
	desired.Tables[0].Spec.Columns[0].Type = "NOT A TYPE;" // fails in the provider

	res := a.Apply(ctx, Diff(desired, nil))
	assert.True(t, res.HasErrors())
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	skipped := res.Steps[1]
	assert.True(t, skipped.Skipped)
	require.Len(t, skipped.Diagnostics, 1)
	assert.Equal(t, diag.SeverityWarning, skipped.Diagnostics[0].Severity)
	assert.Contains(t, skipped.Diagnostics[0].Detail, "table/users")

	tracked, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracked)
}

// scriptedProvider fails the listed keys and records call order.
type scriptedProvider struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (p *scriptedProvider) Configure(context.Context, attr.Map) diag.Diagnostics { return nil }

func (p *scriptedProvider) record(op, kind, name string) resource.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op+" "+kind+"/"+name)
	var resp resource.Response
	if p.fail[op+" "+kind+"/"+name] {
		resp.Diagnostics.Errorf("EngineError: "+op, "scripted failure")
		return resp
	}
	resp.ID = name
	resp.Status = resource.StatusPresent
	if op == "delete" {
		resp = resource.Response{Status: resource.StatusDeleted}
	}
	return resp
}

func (p *scriptedProvider) Create(_ context.Context, kind string, attrs attr.Map) resource.Response {
	name, _ := attrs.String("name")
	resp := p.record("create", kind, name)
	if !resp.Diagnostics.HasError() {
		resp.State = attrs.Clone()
	}
	return resp
}

func (p *scriptedProvider) Read(_ context.Context, _, id string, state attr.Map) resource.Response {
	return resource.Response{ID: id, Status: resource.StatusPresent, State: state}
}

func (p *scriptedProvider) Delete(_ context.Context, kind, id string, _ attr.Map) resource.Response {
	return p.record("delete", kind, id)
}

var _ provider.Lifecycle = (*scriptedProvider)(nil)

// memStore is an in-memory StateStore.
type memStore struct {
	mu   sync.Mutex
	recs map[string]state.Record
}

func (s *memStore) Put(_ context.Context, rec state.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key()] = rec
	return nil
}

func (s *memStore) Remove(_ context.Context, kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, kind+"/"+name)
	return nil
}

func TestApply_FailedDeleteHalfSkipsCreate(t *testing.T) {
	desired := validState()
	tracked := trackedFrom(desired)
	desired.Tables[0].Spec.Columns[1].Type = "BLOB"
	plan := Diff(desired, tracked)

	prov := &scriptedProvider{fail: map[string]bool{"delete table/users": true}}
	store := &memStore{recs: map[string]state.Record{}}
	for _, r := range tracked {
		store.recs[r.Key()] = r
	}
	a := &Applier{Provider: prov, Store: store, RunID: "run-1"}

	res := a.Apply(context.Background(), plan)
	assert.Equal(t, []string{"delete index/idx_name", "delete table/users"}, prov.calls)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Skipped)

	// The table stays tracked with its old attributes; the index is gone.
	require.Contains(t, store.recs, "table/users")
	assert.True(t, store.recs["table/users"].Attributes.Equal(tracked[0].Attributes))
	assert.NotContains(t, store.recs, "index/idx_name")
}

func TestApply_IndependentFailuresDoNotBlock(t *testing.T) {
	desired := validState()
	desired.Tables = append(desired.Tables, TableResource{
		Name: "orders",
		Spec: TableSpec{Columns: []ColumnSpec{{Name: "id", Type: "INTEGER"}}},
	})

	prov := &scriptedProvider{fail: map[string]bool{"create table/orders": true}}
	store := &memStore{recs: map[string]state.Record{}}
	a := &Applier{Provider: prov, Store: store, RunID: "run-2", Parallelism: 1}

	res := a.Apply(context.Background(), Diff(desired, nil))
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Skipped)
	assert.Contains(t, store.recs, "index/idx_name")
	assert.Equal(t, "run-2", store.recs["table/users"].RunID)
}

func TestApply_FailedTableSkipsIndexAcrossNameCase(t *testing.T) {
	desired := validState()
	desired.Tables[0].Name = "Users"
	desired.Indexes[0].Spec.Table = "users"

	prov := &scriptedProvider{fail: map[string]bool{"create table/Users": true}}
	store := &memStore{recs: map[string]state.Record{}}
	a := &Applier{Provider: prov, Store: store}

	res := a.Apply(context.Background(), Diff(desired, nil))
	assert.Equal(t, []string{"create table/Users"}, prov.calls)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "index/idx_name", res.Steps[1].Action.Key())
	assert.True(t, res.Steps[1].Skipped)
	assert.Empty(t, store.recs)
}
