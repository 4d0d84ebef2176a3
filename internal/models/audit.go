package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionCreate     = "CREATE"
	AuditActionUpdate     = "UPDATE"
	AuditActionDelete     = "DELETE"
	AuditActionApprove    = "APPROVE"
	AuditActionReject     = "REJECT"
	AuditActionAssignRole = "ASSIGN_ROLE"
	AuditActionRemoveRole = "REMOVE_ROLE"
	AuditActionLogin      = "LOGIN"
	AuditActionLogout     = "LOGOUT"
)

// Audit entity types.
const (
	AuditEntityNotice   = "notice"
	AuditEntityUser     = "user"
	AuditEntityUserRole = "user_role"
	AuditEntityAuth     = "auth"
)

// AuditEvent is an immutable audit trail record. The application only ever
// inserts and reads these rows.
type AuditEvent struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit queries. Results are newest first and capped.
type AuditFilter struct {
	Action     string
	EntityType string
	ActorID    string
	Limit      int
}
