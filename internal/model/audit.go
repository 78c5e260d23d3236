package model

import "time"

// AuditLogEntry records one observable state change: an extraction
// activation or deactivation, or a manual field edit. The log is append-only.
type AuditLogEntry struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subject_id"`
	FieldPath string     `json:"field_path"`
	OldValue  string     `json:"old_value"`
	NewValue  string     `json:"new_value"`
	ChangedBy string     `json:"changed_by"`
	Source    Provenance `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
}
