package domain

import "strings"

// ActionKey is the reserved tag key carrying a primitive's action.
const ActionKey = "action"

// Action classifies the change that produced a primitive.
type Action string

const (
	ActionCreate    Action = "create"
	ActionDelete    Action = "delete"
	ActionModifyOld Action = "modify-old"
	ActionModifyNew Action = "modify-new"

	ActionCreateRel    Action = "create-rel"
	ActionDeleteRel    Action = "delete-rel"
	ActionModifyOldRel Action = "modify-old-rel"
	ActionModifyNewRel Action = "modify-new-rel"
)

const relSuffix = "-rel"

// Actions lists every valid action in a stable order.
var Actions = []Action{
	ActionCreate, ActionDelete, ActionModifyOld, ActionModifyNew,
	ActionCreateRel, ActionDeleteRel, ActionModifyOldRel, ActionModifyNewRel,
}

// Valid reports whether a belongs to the action domain.
func (a Action) Valid() bool {
	for _, v := range Actions {
		if a == v {
			return true
		}
	}
	return false
}

// Relation returns the relation-rectangle variant of a.
func (a Action) Relation() Action {
	if a.IsRelation() {
		return a
	}
	return a + relSuffix
}

// IsRelation reports whether a tags a synthesized relation rectangle.
func (a Action) IsRelation() bool {
	return strings.HasSuffix(string(a), relSuffix)
}

// Base strips the relation suffix.
func (a Action) Base() Action {
	return Action(strings.TrimSuffix(string(a), relSuffix))
}
