package declarative

import "sqlite-provider/internal/attr"

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ObjectMeta holds common metadata for named resources.
type ObjectMeta struct {
	Name string `yaml:"name"`
}

// ProviderDoc configures the provider itself. At most one may appear.
type ProviderDoc struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Spec       ProviderSpec `yaml:"spec"`
}

// ProviderSpec is the provider configuration block.
type ProviderSpec struct {
	Path string `yaml:"path,omitempty"`
}

// Attributes converts the spec to the provider's configuration map.
func (s ProviderSpec) Attributes() attr.Map {
	m := attr.Map{}
	if s.Path != "" {
		m["path"] = attr.String(s.Path)
	}
	return m
}

// TableDoc declares one table.
type TableDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       TableSpec  `yaml:"spec"`
}

// TableSpec lists the table's columns in order.
type TableSpec struct {
	Columns []ColumnSpec `yaml:"columns"`
}

// ColumnSpec declares one column.
type ColumnSpec struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Constraints ConstraintSpec `yaml:"constraints,omitempty"`
}

// ConstraintSpec holds per-column constraints.
type ConstraintSpec struct {
	PrimaryKey bool    `yaml:"primary_key,omitempty"`
	NotNull    bool    `yaml:"not_null,omitempty"`
	Default    *string `yaml:"default,omitempty"`
}

// IndexDoc declares one index.
type IndexDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       IndexSpec  `yaml:"spec"`
}

// IndexSpec names the indexed table and columns.
type IndexSpec struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// TableResource is a table with its source location.
type TableResource struct {
	Name       string
	Spec       TableSpec
	SourceFile string
}

// Attributes converts the table to the attribute map the table controller
// accepts.
func (t TableResource) Attributes() attr.Map {
	cols := make([]attr.Value, 0, len(t.Spec.Columns))
	for _, c := range t.Spec.Columns {
		cons := attr.Map{}
		if c.Constraints.PrimaryKey {
			cons["primary_key"] = attr.Bool(true)
		}
		if c.Constraints.NotNull {
			cons["not_null"] = attr.Bool(true)
		}
		if c.Constraints.Default != nil {
			cons["default"] = attr.String(*c.Constraints.Default)
		}
		col := attr.Map{
			"name": attr.String(c.Name),
			"type": attr.String(c.Type),
		}
		if len(cons) > 0 {
			col["constraints"] = attr.MapValue(cons)
		}
		cols = append(cols, attr.MapValue(col))
	}
	return attr.Map{
		"name":    attr.String(t.Name),
		"columns": attr.List(cols...),
	}
}

// IndexResource is an index with its source location.
type IndexResource struct {
	Name       string
	Spec       IndexSpec
	SourceFile string
}

// Attributes converts the index to the attribute map the index controller
// accepts.
func (x IndexResource) Attributes() attr.Map {
	m := attr.Map{
		"name":    attr.String(x.Name),
		"table":   attr.String(x.Spec.Table),
		"columns": attr.Strings(x.Spec.Columns...),
	}
	if x.Spec.Unique {
		m["unique"] = attr.Bool(true)
	}
	return m
}

// DesiredState is the complete desired configuration loaded from YAML.
type DesiredState struct {
	Provider     *ProviderSpec
	ProviderFile string
	Tables       []TableResource
	Indexes      []IndexResource
}
