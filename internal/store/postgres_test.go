package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSubject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, address, city, created_at FROM subjects WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSubject(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSubject(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO subjects`).
		WithArgs(pgxmock.AnyArg(), "addr", "city", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sub, err := s.CreateSubject(context.Background(), "addr", "city")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveExtraction_TransactionalFlip(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, address, city, created_at FROM subjects WHERE id = \$1`).
		WithArgs("subj-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "city", "created_at"}).
			AddRow("subj-1", "addr", "", now))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM extractions WHERE subject_id = \$1 AND extraction_type = \$2 AND is_active`).
		WithArgs("subj-1", "permit").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("ext-old"))
	mock.ExpectExec(`UPDATE extractions SET is_active = false WHERE subject_id`).
		WithArgs("subj-1", "permit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO extractions`).
		WithArgs(pgxmock.AnyArg(), "subj-1", "permit", "raw", pgxmock.AnyArg(), "pattern/v1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// One audit entry for the demoted sibling, one for the activation.
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "subj-1", activePath("ext-old"), "true", "false", "tester", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "subj-1", pgxmock.AnyArg(), "", "true", "tester", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	conf := 0.95
	id, err := s.SaveExtraction(context.Background(), "subj-1", model.TypePermit, "raw",
		model.FieldSet{}, SaveMeta{Method: "pattern/v1", Confidence: &conf, Origin: model.OriginPattern, ChangedBy: "tester"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveExtraction_RollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, address, city, created_at FROM subjects WHERE id = \$1`).
		WithArgs("subj-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "city", "created_at"}).
			AddRow("subj-1", "addr", "", now))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM extractions WHERE subject_id = \$1 AND extraction_type = \$2 AND is_active`).
		WithArgs("subj-1", "permit").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE extractions SET is_active = false WHERE subject_id`).
		WithArgs("subj-1", "permit").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO extractions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.SaveExtraction(context.Background(), "subj-1", model.TypePermit, "raw",
		model.FieldSet{}, SaveMeta{Method: "pattern/v1", Origin: model.OriginPattern})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert extraction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetExtraction(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	fields, err := json.Marshal(model.FieldSet{Scalars: map[string]model.FieldValue{
		"permit_number": {Value: "2021/0455", Source: model.Provenance{Origin: model.OriginPattern}},
	}})
	require.NoError(t, err)

	conf := 0.95
	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE id = \$1`).
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "extraction_type", "raw_source", "fields", "method", "confidence", "is_active", "created_at"}).
			AddRow("ext-1", "subj-1", "permit", "raw", fields, "pattern/v1", &conf, true, now))

	rec, err := s.GetExtraction(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, model.TypePermit, rec.Type)
	assert.True(t, rec.IsActive)
	assert.Equal(t, "2021/0455", rec.Fields.Scalars["permit_number"].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLatestActive_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE subject_id = \$1 AND extraction_type = \$2 AND is_active`).
		WithArgs("subj-1", "permit").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLatestActive(context.Background(), "subj-1", model.TypePermit)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Deactivate_AlreadyInactiveIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	fields, err := json.Marshal(model.FieldSet{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE id = \$1`).
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "extraction_type", "raw_source", "fields", "method", "confidence", "is_active", "created_at"}).
			AddRow("ext-1", "subj-1", "permit", "", fields, "pattern/v1", (*float64)(nil), false, now))

	// No transaction expected: the call returns before any write.
	err = s.Deactivate(context.Background(), "ext-1", "tester")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Restore_WrongSubject(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	fields, err := json.Marshal(model.FieldSet{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE id = \$1`).
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subject_id", "extraction_type", "raw_source", "fields", "method", "confidence", "is_active", "created_at"}).
			AddRow("ext-1", "owner", "permit", "", fields, "pattern/v1", (*float64)(nil), false, now))

	err = s.Restore(context.Background(), "other", "ext-1", "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetComparableIncluded_Noop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT subject_id, included FROM comparables WHERE id = \$1`).
		WithArgs("comp-1").
		WillReturnRows(pgxmock.NewRows([]string{"subject_id", "included"}).AddRow("subj-1", true))

	err := s.SetComparableIncluded(context.Background(), "comp-1", true, "tester")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetComparableIncluded_TogglesWithAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT subject_id, included FROM comparables WHERE id = \$1`).
		WithArgs("comp-1").
		WillReturnRows(pgxmock.NewRows([]string{"subject_id", "included"}).AddRow("subj-1", true))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE comparables SET included = \$1 WHERE id = \$2`).
		WithArgs(false, "comp-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "subj-1", includedPath("comp-1"), "true", "false", "tester", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SetComparableIncluded(context.Background(), "comp-1", false, "tester")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS subjects`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
