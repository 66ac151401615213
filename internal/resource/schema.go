package resource

import (
	"fmt"
	"sort"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/domain"
)

// Attribute describes one field of a resource or configuration schema.
type Attribute struct {
	Type        attr.Kind
	Description string
	Required    bool
	Computed    bool // set by the provider; users may not supply it
	ForceNew    bool // a change forces delete-then-create
	MinItems    int

	// Elem describes list elements when Type is KindList.
	Elem *Attribute
	// Attributes describes nested fields when Type is KindMap.
	Attributes map[string]*Attribute
}

// Schema is the attribute schema of a resource kind or of the provider
// configuration.
type Schema struct {
	Description string
	Attributes  map[string]*Attribute
}

// ForceNewAttributes returns, sorted, the attributes whose change requires
// replacement.
func (s Schema) ForceNewAttributes() []string {
	var out []string
	for name, a := range s.Attributes {
		if a.ForceNew {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ComputedAttributes returns, sorted, the attributes set by the provider.
func (s Schema) ComputedAttributes() []string {
	var out []string
	for name, a := range s.Attributes {
		if a.Computed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks m against the schema: unknown attributes, missing
// required attributes, computed attributes set by the user, kind mismatches
// and list sizes. Every problem becomes one ValidationError diagnostic.
func (s Schema) Validate(m attr.Map) diag.Diagnostics {
	var diags diag.Diagnostics
	validateMap(&diags, "", s.Attributes, m, true)
	return diags
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func validateMap(diags *diag.Diagnostics, prefix string, schema map[string]*Attribute, m attr.Map, topLevel bool) {
	for _, key := range m.Keys() {
		if _, ok := schema[key]; !ok {
			diags.AddError("invalid attributes", domain.ErrValidationAt(joinPath(prefix, key), "unsupported attribute"))
		}
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := schema[name]
		path := joinPath(prefix, name)
		v, present := m[name]
		present = present && !v.IsNull()

		switch {
		case a.Computed && present && topLevel:
			diags.AddError("invalid attributes", domain.ErrValidationAt(path, "is computed and cannot be set"))
		case a.Required && !present:
			diags.AddError("invalid attributes", domain.ErrValidationAt(path, "is required"))
		case present:
			validateValue(diags, path, a, v)
		}
	}
}

func validateValue(diags *diag.Diagnostics, path string, a *Attribute, v attr.Value) {
	if v.Kind() != a.Type {
		diags.AddError("invalid attributes", domain.ErrValidationAt(path, "expected %s, got %s", a.Type, v.Kind()))
		return
	}

	switch a.Type {
	case attr.KindList:
		items, _ := v.AsList()
		if len(items) < a.MinItems {
			diags.AddError("invalid attributes", domain.ErrValidationAt(path, "at least %d item(s) required, got %d", a.MinItems, len(items)))
		}
		if a.Elem == nil {
			return
		}
		for i, item := range items {
			validateValue(diags, fmt.Sprintf("%s[%d]", path, i), a.Elem, item)
		}
	case attr.KindMap:
		if a.Attributes == nil {
			return
		}
		nested, _ := v.AsMap()
		validateMap(diags, path, a.Attributes, nested, false)
	}
}
