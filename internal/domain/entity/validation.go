package entity

import "time"

// ValidationRecord is an immutable human validation of a document's extracted data.
// The latest record for a document is authoritative.
type ValidationRecord struct {
	ID             string                 `json:"id"`
	DocumentID     string                 `json:"document_id"`
	ValidatedBy    string                 `json:"validated_by"`
	ValidationData map[string]interface{} `json:"validation_data"`
	Notes          string                 `json:"notes,omitempty"`
	ValidatedAt    time.Time              `json:"validated_at"`
}
