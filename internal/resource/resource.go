// Package resource implements the table and index controllers: the
// create, read and delete callbacks of the lifecycle protocol.
package resource

import (
	"context"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/db"
	"sqlite-provider/internal/diag"
)

// Resource kind names as exposed to the host.
const (
	KindTable = "table"
	KindIndex = "index"
)

// Executor runs a generated statement. *db.Handle satisfies it.
type Executor interface {
	Execute(ctx context.Context, stmt string, args ...any) (*db.RowSet, error)
}

var _ Executor = (*db.Handle)(nil)

// Controller implements the lifecycle callbacks of one resource kind.
// Controllers hold no per-resource state; definitions are rebuilt from the
// attribute map on every call.
type Controller interface {
	Kind() string
	Schema() Schema
	Create(ctx context.Context, exec Executor, attrs attr.Map) Response
	Read(ctx context.Context, exec Executor, id string, state attr.Map) Response
	Delete(ctx context.Context, exec Executor, id string, state attr.Map) Response
}

// Response is what a lifecycle callback reports back to the host.
type Response struct {
	ID          string           `json:"id,omitempty"`
	Status      Status           `json:"status"`
	State       attr.Map         `json:"state,omitempty"`
	Diagnostics diag.Diagnostics `json:"diagnostics,omitempty"`
}

// read is the shared Read callback. It returns the tracked state as-is;
// the live schema is not consulted.
func read(id string, state attr.Map) Response {
	if id == "" {
		return Response{Status: StatusAbsent}
	}
	return Response{ID: id, Status: StatusPresent, State: state.Clone()}
}

// trackedStatus is the status a resource starts an operation in: present
// when the host names it by id or tracks state for it, absent otherwise.
func trackedStatus(id string, state attr.Map) Status {
	if id == "" && len(state) == 0 {
		return StatusAbsent
	}
	return StatusPresent
}
