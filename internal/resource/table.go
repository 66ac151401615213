package resource

import (
	"context"
	"fmt"
	"time"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/ddl"
	"sqlite-provider/internal/domain"
)

// Table manages CREATE TABLE / DROP TABLE.
type Table struct {
	now func() time.Time
}

// NewTable returns the table controller.
func NewTable() *Table {
	return &Table{now: time.Now}
}

var _ Controller = (*Table)(nil)

// Kind implements Controller.
func (t *Table) Kind() string { return KindTable }

// Schema implements Controller.
func (t *Table) Schema() Schema {
	return Schema{
		Description: "A table in the SQLite database. Any change recreates the table.",
		Attributes: map[string]*Attribute{
			"name": {
				Type:        attr.KindString,
				Description: "Table name.",
				Required:    true,
				ForceNew:    true,
			},
			"columns": {
				Type:        attr.KindList,
				Description: "Ordered column definitions.",
				Required:    true,
				ForceNew:    true,
				MinItems:    1,
				Elem: &Attribute{
					Type: attr.KindMap,
					Attributes: map[string]*Attribute{
						"name": {Type: attr.KindString, Required: true},
						"type": {Type: attr.KindString, Required: true},
						"constraints": {
							Type: attr.KindMap,
							Attributes: map[string]*Attribute{
								"primary_key": {Type: attr.KindBool},
								"not_null":    {Type: attr.KindBool},
								"default":     {Type: attr.KindString},
							},
						},
					},
				},
			},
			"created_at": {
				Type:        attr.KindString,
				Description: "Creation time (RFC 3339, UTC).",
				Computed:    true,
			},
		},
	}
}

// DecodeTable builds a table definition from an attribute map.
func DecodeTable(attrs attr.Map) (ddl.TableDef, error) {
	var def ddl.TableDef

	name, err := attrs.String("name")
	if err != nil {
		return def, err
	}
	def.Name = name

	items, err := attrs.List("columns")
	if err != nil {
		return def, err
	}
	if len(items) == 0 {
		return def, domain.ErrValidationAt("columns", "at least one column is required")
	}

	for i, item := range items {
		path := fmt.Sprintf("columns[%d]", i)
		col, err := item.AsMap()
		if err != nil {
			return def, domain.ErrValidationAt(path, "%s", err.Error())
		}
		c, err := decodeColumn(col)
		if err != nil {
			return def, fmt.Errorf("%s: %w", path, err)
		}
		def.Columns = append(def.Columns, c)
	}
	return def, nil
}

func decodeColumn(col attr.Map) (ddl.ColumnDef, error) {
	var c ddl.ColumnDef
	var err error

	if c.Name, err = col.String("name"); err != nil {
		return c, err
	}
	if c.Type, err = col.String("type"); err != nil {
		return c, err
	}
	cons, err := col.Map("constraints")
	if err != nil {
		return c, err
	}
	if c.PrimaryKey, err = cons.OptionalBool("primary_key"); err != nil {
		return c, err
	}
	if c.NotNull, err = cons.OptionalBool("not_null"); err != nil {
		return c, err
	}
	if c.Default, err = cons.OptionalString("default"); err != nil {
		return c, err
	}
	return c, nil
}

// Create implements Controller.
func (t *Table) Create(ctx context.Context, exec Executor, attrs attr.Map) Response {
	resp := Response{Status: StatusAbsent}

	if resp.Diagnostics = t.Schema().Validate(attrs); resp.Diagnostics.HasError() {
		return resp
	}
	def, err := DecodeTable(attrs)
	if err != nil {
		resp.Diagnostics.AddError("invalid table", err)
		return resp
	}
	stmt, err := ddl.CreateTable(def)
	if err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("invalid table %q", def.Name), err)
		return resp
	}
	if _, err := exec.Execute(ctx, stmt); err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("create table %q", def.Name), err)
		return resp
	}

	resp.ID = def.Name
	resp.Status = Transition(StatusAbsent, OpCreate, true)
	resp.State = attrs.Clone()
	resp.State["created_at"] = attr.String(t.now().UTC().Format(time.RFC3339))
	return resp
}

// Read implements Controller. The tracked state is returned unchanged.
func (t *Table) Read(_ context.Context, _ Executor, id string, state attr.Map) Response {
	return read(id, state)
}

// Delete implements Controller.
func (t *Table) Delete(ctx context.Context, exec Executor, id string, state attr.Map) Response {
	from := trackedStatus(id, state)
	resp := Response{ID: id, Status: from, State: state}

	name := id
	if name == "" {
		name, _ = state.String("name")
	}
	stmt, err := ddl.DropTable(name)
	if err != nil {
		resp.Diagnostics.AddError("invalid table", err)
		return resp
	}
	if _, err := exec.Execute(ctx, stmt); err != nil {
		resp.Diagnostics.AddError(fmt.Sprintf("delete table %q", name), err)
		return resp
	}

	return Response{Status: Transition(from, OpDelete, true)}
}
