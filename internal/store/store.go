// Package store persists extraction attempts, their audit trail, comparable
// sales and subject area figures. Extraction history is append-only: records
// are deactivated, never deleted.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// ErrNotFound is returned when a subject, extraction or comparable does not
// exist (or does not belong to the subject it was addressed through).
var ErrNotFound = eris.New("store: not found")

// SaveMeta describes how an extraction attempt was produced and who
// triggered the state change.
type SaveMeta struct {
	Method     string         // e.g. "pattern/v1", model name for AI attempts
	Confidence *float64       // coarse record-level score, 0..1
	Origin     model.Origin   // pattern / ai_vision for parses, manual for user edits
	DocumentID string         // source document, cited in audit entries
	ChangedBy  string
}

// Store is the persistence interface for the extraction lifecycle and the
// valuation inputs. Multi-step lifecycle writes (save, restore) execute as
// single transactions so "deactivate old, activate new" is never observably
// split. Reads are not transactional and may trail a concurrent writer.
type Store interface {
	// Subjects
	CreateSubject(ctx context.Context, address, city string) (*model.Subject, error)
	GetSubject(ctx context.Context, id string) (*model.Subject, error)

	// Extraction lifecycle. SaveExtraction deactivates every sibling of the
	// same (subject, type) and inserts the new record as active, atomically.
	SaveExtraction(ctx context.Context, subjectID string, typ model.ExtractionType, rawPayload string, fields model.FieldSet, meta SaveMeta) (string, error)
	GetExtraction(ctx context.Context, id string) (*model.ExtractionRecord, error)
	GetLatestActive(ctx context.Context, subjectID string, typ model.ExtractionType) (*model.ExtractionRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]model.ExtractionRecord, error)
	Deactivate(ctx context.Context, extractionID, changedBy string) error
	Restore(ctx context.Context, subjectID, extractionID, changedBy string) error

	// Audit trail (append-only, written by the lifecycle calls above).
	ListAudit(ctx context.Context, subjectID string) ([]model.AuditLogEntry, error)

	// Valuation inputs
	UpsertComparables(ctx context.Context, subjectID string, comps []model.ComparableRecord) (int, error)
	ListComparables(ctx context.Context, subjectID string) ([]model.ComparableRecord, error)
	SetComparableIncluded(ctx context.Context, comparableID string, included bool, changedBy string) error
	SetSubjectArea(ctx context.Context, subjectID string, area model.SubjectArea, changedBy string) error
	GetSubjectArea(ctx context.Context, subjectID string) (*model.SubjectArea, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
