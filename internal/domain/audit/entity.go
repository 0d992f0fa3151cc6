package audit

import (
	"encoding/json"
	"time"
)

// Action names a recorded operation.
type Action string

const (
	ActionRunGenerated  Action = "payroll_run.generated"
	ActionRunTransition Action = "payroll_run.transition"
	ActionRunRecalc     Action = "payroll_run.recalculated"
	ActionChangesApply  Action = "payroll_run.changes_applied"
	ActionSettingsSave  Action = "payroll_settings.updated"
)

// Entry is an append-only audit record.
type Entry struct {
	ID         string
	CompanyID  string
	ActorID    string
	Action     Action
	EntityType string
	EntityID   string
	Reason     *string
	Details    json.RawMessage
	CreatedAt  time.Time
}

// NewEntry marshals details into an Entry. Unmarshalable details are dropped.
func NewEntry(companyID, actorID string, action Action, entityType, entityID string, reason *string, details any) Entry {
	e := Entry{
		CompanyID:  companyID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     reason,
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.Details = b
		}
	}
	return e
}
