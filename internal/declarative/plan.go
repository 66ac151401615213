package declarative

import (
	"sort"
	"strings"

	"sqlite-provider/internal/attr"
)

// Action represents a single planned change.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string
	FilePath     string   // source YAML file path (empty for deletes)
	ID           string   // tracked resource ID (replace and delete)
	Desired      attr.Map // attributes from YAML (nil for Delete)
	Actual       attr.Map // tracked state (nil for Create)
	Changes      []FieldDiff
	Reason       string // set when a replace is caused by a dependency
}

// Key identifies the action's resource as "kind/name", with the name as
// written in configuration.
func (a Action) Key() string { return a.ResourceKind.String() + "/" + a.ResourceName }

// matchKey is Key with the name folded to lower case. SQLite resolves
// identifiers case-insensitively, so resources are matched on it.
func (a Action) matchKey() string { return resourceKey(a.ResourceKind, a.ResourceName) }

// DependsOn returns the match key of the resource that must exist before
// this action's create half can run, or "" when there is none.
func (a Action) DependsOn() string {
	if a.ResourceKind != KindIndex || a.Desired == nil {
		return ""
	}
	table, err := a.Desired.String("table")
	if err != nil {
		return ""
	}
	return resourceKey(KindTable, table)
}

func resourceKey(kind ResourceKind, name string) string {
	return kind.String() + "/" + strings.ToLower(name)
}

// FieldDiff describes a single attribute change within a Replace action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is an ordered list of actions grouped by dependency layer.
type Plan struct {
	Actions []Action
	Errors  []PlanError
}

// PlanError represents a non-actionable issue found during planning.
type PlanError struct {
	ResourceKind ResourceKind `json:"-"`
	ResourceName string       `json:"resource_name"`
	Message      string       `json:"message"`
}

// Summary returns counts of creates, replaces, deletes, and errors.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpReplace:
			s.Replaces++
		case OpDelete:
			s.Deletes++
		}
	}
	s.Errors = len(p.Errors)
	return s
}

// HasChanges returns true if the plan has any actions or errors.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0 || len(p.Errors) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates  int `json:"creates"`
	Replaces int `json:"replaces"`
	Deletes  int `json:"deletes"`
	Errors   int `json:"errors"`
}

// SortActions sorts actions by dependency layer.
// Deletes come first in descending layer order (layer 1 -> 0); creates and
// replaces follow in ascending order (layer 0 -> 1). A replace deletes
// before it creates, so the apply engine runs its delete half with the
// deletes of its layer.
// Within the same layer and operation group, actions are sorted alphabetically by ResourceName.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]

		iIsDelete := ai.Operation == OpDelete
		jIsDelete := aj.Operation == OpDelete

		if iIsDelete != jIsDelete {
			return iIsDelete
		}

		li := ai.ResourceKind.Layer()
		lj := aj.ResourceKind.Layer()

		if iIsDelete {
			// Deletes: descending layer order (high layers first).
			if li != lj {
				return li > lj
			}
		} else {
			// Creates/replaces: ascending layer order (low layers first).
			if li != lj {
				return li < lj
			}
		}

		return ai.ResourceName < aj.ResourceName
	})
}
