package entity

import "time"

// AuditLogEntry is an append-only record of one document change
type AuditLogEntry struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"document_id"`
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performed_by"`
	FromStatus  string                 `json:"from_status,omitempty"`
	ToStatus    string                 `json:"to_status,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	PerformedAt time.Time              `json:"performed_at"`
}
