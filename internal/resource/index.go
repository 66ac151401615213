package resource

import (
	"context"
	"fmt"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/ddl"
	"sqlite-provider/internal/domain"
)

// Index manages CREATE INDEX / DROP INDEX.
type Index struct{}

// NewIndex returns the index controller.
func NewIndex() *Index { return &Index{} }

var _ Controller = (*Index)(nil)

// Kind implements Controller.
func (x *Index) Kind() string { return KindIndex }

// Schema implements Controller.
func (x *Index) Schema() Schema {
	return Schema{
		Description: "An index on an existing table. Any change recreates the index.",
		Attributes: map[string]*Attribute{
			"name": {
				Type:        attr.KindString,
				Description: "Index name.",
				Required:    true,
				ForceNew:    true,
			},
			"table": {
				Type:        attr.KindString,
				Description: "Name of the indexed table.",
				Required:    true,
				ForceNew:    true,
			},
			"columns": {
				Type:        attr.KindList,
				Description: "Ordered indexed column names.",
				Required:    true,
				ForceNew:    true,
				MinItems:    1,
				Elem:        &Attribute{Type: attr.KindString},
			},
			"unique": {
				Type:        attr.KindBool,
				Description: "Create a UNIQUE index.",
				ForceNew:    true,
			},
		},
	}
}

// DecodeIndex builds an index definition from an attribute map.
func DecodeIndex(attrs attr.Map) (ddl.IndexDef, error) {
	var def ddl.IndexDef
	var err error

	if def.Name, err = attrs.String("name"); err != nil {
		return def, err
	}
	if def.Table, err = attrs.String("table"); err != nil {
		return def, err
	}
	items, err := attrs.List("columns")
	if err != nil {
		return def, err
	}
	if len(items) == 0 {
		return def, domain.ErrValidationAt("columns", "at least one column is required")
	}
	for i, item := range items {
		c, err := item.AsString()
		if err != nil {
			return def, domain.ErrValidationAt(fmt.Sprintf("columns[%d]", i), "%s", err.Error())
		}
		def.Columns = append(def.Columns, c)
	}
	if def.Unique, err = attrs.OptionalBool("unique"); err != nil {
		return def, err
	}
	return def, nil
}

// Create implements Controller.
func (x *Index) Create(ctx context.Context, exec Executor, attrs attr.Map) Response {
	resp := Response{Status: StatusAbsent}

	if resp.Diagnostics = x.Schema().Validate(attrs); resp.Diagnostics.HasError() {
		return resp
	}
	def, err := DecodeIndex(attrs)
	if err != nil {
		resp.Diagnostics.AddError("invalid index", err)
		return resp
	}
	stmt, err := ddl.CreateIndex(def)
	if err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("invalid index %q", def.Name), err)
		return resp
	}
	if _, err := exec.Execute(ctx, stmt); err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("create index %q on %q", def.Name, def.Table), err)
		return resp
	}

	resp.ID = def.Name
	resp.Status = Transition(StatusAbsent, OpCreate, true)
	resp.State = attrs.Clone()
	return resp
}

// Read implements Controller. The tracked state is returned unchanged.
func (x *Index) Read(_ context.Context, _ Executor, id string, state attr.Map) Response {
	return read(id, state)
}

// Delete implements Controller.
func (x *Index) Delete(ctx context.Context, exec Executor, id string, state attr.Map) Response {
	from := trackedStatus(id, state)
	resp := Response{ID: id, Status: from, State: state}

	name := id
	if name == "" {
		name, _ = state.String("name")
	}
	stmt, err := ddl.DropIndex(name)
	if err != nil {
		resp.Diagnostics.AddError("invalid index", err)
		return resp
	}
	if _, err := exec.Execute(ctx, stmt); err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("delete index %q", name), err)
		return resp
	}

	return Response{Status: Transition(from, OpDelete, true)}
}
