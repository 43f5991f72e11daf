package schema

import "sort"

// ChangeType represents the kind of difference between two field sets.
type ChangeType string

const (
	ChangeTypeAddField    ChangeType = "ADD_FIELD"
	ChangeTypeRemoveField ChangeType = "REMOVE_FIELD"
)

// FieldChange is one difference between an expected and an observed field set.
type FieldChange struct {
	Type  ChangeType `json:"type"`
	Field string     `json:"field"`
}

// CompareFields reports the fields of got that are not in expected (added)
// and the fields of expected missing from got (removed). Order is ignored.
// The result is sorted by type then field.
func CompareFields(expected, got []string) []FieldChange {
	want := make(map[string]struct{}, len(expected))
	for _, f := range expected {
		want[f] = struct{}{}
	}
	have := make(map[string]struct{}, len(got))
	for _, f := range got {
		have[f] = struct{}{}
	}

	var changes []FieldChange
	for f := range want {
		if _, ok := have[f]; !ok {
			changes = append(changes, FieldChange{Type: ChangeTypeRemoveField, Field: f})
		}
	}
	for f := range have {
		if _, ok := want[f]; !ok {
			changes = append(changes, FieldChange{Type: ChangeTypeAddField, Field: f})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changes[i].Type < changes[j].Type
		}
		return changes[i].Field < changes[j].Field
	})
	return changes
}

// SameFields reports whether got and expected contain the same field names.
func SameFields(expected, got []string) bool {
	return len(expected) == len(got) && len(CompareFields(expected, got)) == 0
}
