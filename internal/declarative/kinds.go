package declarative

import "sqlite-provider/internal/resource"

// ResourceKind identifies a type of managed resource.
type ResourceKind int

// Resource kind constants identify each type of managed resource.
// They are ordered by dependency layer for correct apply/delete sequencing.
const (
	KindTable ResourceKind = iota // layer 0
	KindIndex                     // layer 1
)

// String returns the provider kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindTable:
		return resource.KindTable
	case KindIndex:
		return resource.KindIndex
	default:
		return "unknown"
	}
}

// Layer returns the dependency layer for ordering.
// Layer 0 has no dependencies; higher layers depend on lower ones.
func (k ResourceKind) Layer() int {
	switch k {
	case KindTable:
		return 0
	case KindIndex:
		return 1
	default:
		return 99
	}
}

// MaxLayer is the highest dependency layer.
const MaxLayer = 1

// ParseResourceKind maps a provider kind name back to a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, bool) {
	switch s {
	case resource.KindTable:
		return KindTable, true
	case resource.KindIndex:
		return KindIndex, true
	default:
		return 0, false
	}
}

// Operation represents a planned change type.
type Operation int

const (
	// OpCreate indicates a resource should be created.
	OpCreate Operation = iota
	// OpReplace indicates a resource should be deleted and created again.
	OpReplace
	// OpDelete indicates a resource should be deleted.
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Known Kind strings used in YAML documents.
const (
	KindNameProvider = "Provider"
	KindNameTable    = "Table"
	KindNameIndex    = "Index"
)

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "sqlite/v1"
