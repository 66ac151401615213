package declarative

import (
	"fmt"
	"sort"
	"strings"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/resource"
	"sqlite-provider/internal/state"
)

// Diff compares the desired state (from YAML) against the tracked state
// (from the state store) and returns a Plan describing the changes needed.
// There is no in-place update: any configurable change is a replace.
func Diff(desired *DesiredState, tracked []state.Record) *Plan {
	plan := &Plan{}

	actual := make(map[string]state.Record, len(tracked))
	for _, rec := range tracked {
		kind, ok := ParseResourceKind(rec.Kind)
		if !ok {
			addError(plan, KindTable, rec.Name, fmt.Sprintf("tracked resource has unknown kind %q", rec.Kind))
			continue
		}
		actual[resourceKey(kind, rec.Name)] = rec
	}
	wanted := make(map[string]bool)

	// Tables whose create half runs in this plan; indexes on them must be
	// rebuilt since dropping a table drops its indexes.
	rebuilt := make(map[string]bool)
	for _, t := range desired.Tables {
		key := resourceKey(KindTable, t.Name)
		wanted[key] = true
		attrs := t.Attributes()
		rec, ok := actual[key]
		if !ok {
			addCreate(plan, KindTable, t.Name, t.SourceFile, attrs)
			rebuilt[strings.ToLower(t.Name)] = true
			continue
		}
		if changes := diffAttributes(KindTable, rec.Attributes, attrs); len(changes) > 0 {
			addReplace(plan, KindTable, t.Name, t.SourceFile, rec, attrs, changes, "")
			rebuilt[strings.ToLower(t.Name)] = true
		}
	}

	for _, x := range desired.Indexes {
		key := resourceKey(KindIndex, x.Name)
		wanted[key] = true
		attrs := x.Attributes()
		rec, ok := actual[key]
		if !ok {
			addCreate(plan, KindIndex, x.Name, x.SourceFile, attrs)
			continue
		}
		changes := diffAttributes(KindIndex, rec.Attributes, attrs)
		switch {
		case len(changes) > 0:
			addReplace(plan, KindIndex, x.Name, x.SourceFile, rec, attrs, changes, "")
		case rebuilt[strings.ToLower(x.Spec.Table)]:
			addReplace(plan, KindIndex, x.Name, x.SourceFile, rec, attrs, nil,
				fmt.Sprintf("table %q is recreated", x.Spec.Table))
		}
	}

	keys := make([]string, 0, len(actual))
	for k := range actual {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if wanted[k] {
			continue
		}
		rec := actual[k]
		kind, _ := ParseResourceKind(rec.Kind)
		addDelete(plan, kind, rec)
	}

	plan.SortActions()
	return plan
}

// === Helpers ===

func addCreate(plan *Plan, kind ResourceKind, name, filePath string, desired attr.Map) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpCreate,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Desired:      desired,
	})
}

func addReplace(plan *Plan, kind ResourceKind, name, filePath string, rec state.Record, desired attr.Map, changes []FieldDiff, reason string) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpReplace,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		ID:           rec.ID,
		Desired:      desired,
		Actual:       rec.Attributes,
		Changes:      changes,
		Reason:       reason,
	})
}

func addDelete(plan *Plan, kind ResourceKind, rec state.Record) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpDelete,
		ResourceKind: kind,
		ResourceName: rec.Name,
		ID:           rec.ID,
		Actual:       rec.Attributes,
	})
}

func addError(plan *Plan, kind ResourceKind, name, msg string) {
	plan.Errors = append(plan.Errors, PlanError{
		ResourceKind: kind,
		ResourceName: name,
		Message:      msg,
	})
}

// computedAttributes caches the provider-computed attribute names per kind.
var computedAttributes = map[ResourceKind][]string{
	KindTable: resource.NewTable().Schema().ComputedAttributes(),
	KindIndex: resource.NewIndex().Schema().ComputedAttributes(),
}

// diffAttributes lists leaf-level differences between the tracked and
// desired attributes, ignoring provider-computed ones.
func diffAttributes(kind ResourceKind, actual, desired attr.Map) []FieldDiff {
	oldLeaves := map[string]string{}
	newLeaves := map[string]string{}
	flattenMap(oldLeaves, "", withoutComputed(kind, actual))
	flattenMap(newLeaves, "", desired)

	fields := make(map[string]bool, len(oldLeaves)+len(newLeaves))
	for f := range oldLeaves {
		fields[f] = true
	}
	for f := range newLeaves {
		fields[f] = true
	}
	sorted := make([]string, 0, len(fields))
	for f := range fields {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	var changes []FieldDiff
	for _, f := range sorted {
		diffField(&changes, f, oldLeaves[f], newLeaves[f])
	}
	return changes
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

func withoutComputed(kind ResourceKind, m attr.Map) attr.Map {
	out := m.Clone()
	for _, name := range computedAttributes[kind] {
		delete(out, name)
	}
	return out
}

func flattenMap(out map[string]string, prefix string, m attr.Map) {
	for _, k := range m.Keys() {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		flattenValue(out, path, m[k])
	}
}

func flattenValue(out map[string]string, path string, v attr.Value) {
	switch v.Kind() {
	case attr.KindNull:
		return
	case attr.KindMap:
		m, _ := v.AsMap()
		flattenMap(out, path, m)
	case attr.KindList:
		items, _ := v.AsList()
		out[path+".#"] = fmt.Sprint(len(items))
		for i, item := range items {
			flattenValue(out, fmt.Sprintf("%s[%d]", path, i), item)
		}
	default:
		out[path] = v.GoString()
	}
}
