package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// single-appraiser installs and the shared store test suite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	city       TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS extractions (
	id              TEXT PRIMARY KEY,
	subject_id      TEXT NOT NULL REFERENCES subjects(id),
	extraction_type TEXT NOT NULL,
	raw_source      TEXT NOT NULL,
	fields          TEXT NOT NULL,
	method          TEXT NOT NULL,
	confidence      REAL,
	is_active       INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	field_path TEXT NOT NULL,
	old_value  TEXT,
	new_value  TEXT,
	changed_by TEXT,
	source     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comparables (
	id                TEXT PRIMARY KEY,
	subject_id        TEXT NOT NULL REFERENCES subjects(id),
	sale_date         TEXT,
	address           TEXT,
	gush_chelka_sub   TEXT,
	rooms             REAL,
	floor             TEXT,
	area_sqm          REAL NOT NULL,
	price_per_sqm     REAL NOT NULL,
	total_price       REAL,
	construction_year INTEGER,
	included          INTEGER NOT NULL DEFAULT 1,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS subject_areas (
	subject_id   TEXT PRIMARY KEY REFERENCES subjects(id),
	area_built   REAL NOT NULL,
	area_balcony REAL NOT NULL,
	coefficient  REAL NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extractions_subject_type ON extractions(subject_id, extraction_type);
CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_comparables_subject ON comparables(subject_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubject(ctx context.Context, address, city string) (*model.Subject, error) {
	sub := &model.Subject{
		ID:        uuid.New().String(),
		Address:   address,
		City:      city,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, address, city, created_at) VALUES (?, ?, ?, ?)`,
		sub.ID, sub.Address, sub.City, sub.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert subject")
	}
	return sub, nil
}

func (s *SQLiteStore) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	var sub model.Subject
	err := s.db.QueryRowContext(ctx,
		`SELECT id, address, city, created_at FROM subjects WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.Address, &sub.City, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subject %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get subject")
	}
	return &sub, nil
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, subjectID string, typ model.ExtractionType, rawPayload string, fields model.FieldSet, meta SaveMeta) (string, error) {
	// Subject check happens before any transaction opens.
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return "", err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal fields")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin save extraction")
	}
	defer tx.Rollback()

	siblings, err := activeSiblingsSQLite(ctx, tx, subjectID, typ)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE extractions SET is_active = 0 WHERE subject_id = ? AND extraction_type = ? AND is_active = 1`,
		subjectID, string(typ),
	); err != nil {
		return "", eris.Wrap(err, "sqlite: deactivate siblings")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO extractions (id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		id, subjectID, string(typ), rawPayload, string(fieldsJSON), meta.Method, meta.Confidence, now,
	); err != nil {
		return "", eris.Wrap(err, "sqlite: insert extraction")
	}

	source := model.Provenance{Origin: meta.Origin, DocumentID: meta.DocumentID}
	for _, sib := range siblings {
		if err := insertAuditSQLite(ctx, tx, auditEntry(subjectID, activePath(sib), "true", "false", meta.ChangedBy, source, now)); err != nil {
			return "", err
		}
	}
	if err := insertAuditSQLite(ctx, tx, auditEntry(subjectID, activePath(id), "", "true", meta.ChangedBy, source, now)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit save extraction")
	}
	return id, nil
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	rec, err := scanExtraction(s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at
		 FROM extractions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "extraction %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get extraction")
	}
	return rec, nil
}

func (s *SQLiteStore) GetLatestActive(ctx context.Context, subjectID string, typ model.ExtractionType) (*model.ExtractionRecord, error) {
	rec, err := scanExtraction(s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at
		 FROM extractions WHERE subject_id = ? AND extraction_type = ? AND is_active = 1`,
		subjectID, string(typ)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "no active %s extraction for subject %s", typ, subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest active")
	}
	return rec, nil
}

func (s *SQLiteStore) ListBySubject(ctx context.Context, subjectID string) ([]model.ExtractionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at
		 FROM extractions WHERE subject_id = ? ORDER BY created_at DESC, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close()

	var recs []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

func (s *SQLiteStore) Deactivate(ctx context.Context, extractionID, changedBy string) error {
	rec, err := s.GetExtraction(ctx, extractionID)
	if err != nil {
		return err
	}
	if !rec.IsActive {
		return nil // idempotent
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin deactivate")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE extractions SET is_active = 0 WHERE id = ?`, extractionID,
	); err != nil {
		return eris.Wrap(err, "sqlite: deactivate")
	}
	now := time.Now().UTC()
	source := model.Provenance{Origin: model.OriginManual}
	if err := insertAuditSQLite(ctx, tx, auditEntry(rec.SubjectID, activePath(extractionID), "true", "false", changedBy, source, now)); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit deactivate")
}

func (s *SQLiteStore) Restore(ctx context.Context, subjectID, extractionID, changedBy string) error {
	rec, err := s.GetExtraction(ctx, extractionID)
	if err != nil {
		return err
	}
	if rec.SubjectID != subjectID {
		return eris.Wrapf(ErrNotFound, "extraction %s does not belong to subject %s", extractionID, subjectID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin restore")
	}
	defer tx.Rollback()

	siblings, err := activeSiblingsSQLite(ctx, tx, subjectID, rec.Type)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE extractions SET is_active = 0 WHERE subject_id = ? AND extraction_type = ? AND is_active = 1`,
		subjectID, string(rec.Type),
	); err != nil {
		return eris.Wrap(err, "sqlite: deactivate siblings")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE extractions SET is_active = 1 WHERE id = ?`, extractionID,
	); err != nil {
		return eris.Wrap(err, "sqlite: activate target")
	}

	now := time.Now().UTC()
	source := model.Provenance{Origin: model.OriginManual}
	for _, sib := range siblings {
		if sib == extractionID {
			continue
		}
		if err := insertAuditSQLite(ctx, tx, auditEntry(subjectID, activePath(sib), "true", "false", changedBy, source, now)); err != nil {
			return err
		}
	}
	if !rec.IsActive {
		if err := insertAuditSQLite(ctx, tx, auditEntry(subjectID, activePath(extractionID), "false", "true", changedBy, source, now)); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit restore")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, subjectID string) ([]model.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, field_path, old_value, new_value, changed_by, source, created_at
		 FROM audit_log WHERE subject_id = ? ORDER BY created_at, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var sourceJSON string
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.FieldPath, &e.OldValue, &e.NewValue, &e.ChangedBy, &sourceJSON, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		if err := json.Unmarshal([]byte(sourceJSON), &e.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit source")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func (s *SQLiteStore) UpsertComparables(ctx context.Context, subjectID string, comps []model.ComparableRecord) (int, error) {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert comparables")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	count := 0
	for _, c := range comps {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comparables (id, subject_id, sale_date, address, gush_chelka_sub, rooms, floor, area_sqm, price_per_sqm, total_price, construction_year, included, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   sale_date = excluded.sale_date, address = excluded.address,
			   gush_chelka_sub = excluded.gush_chelka_sub, rooms = excluded.rooms,
			   floor = excluded.floor, area_sqm = excluded.area_sqm,
			   price_per_sqm = excluded.price_per_sqm, total_price = excluded.total_price,
			   construction_year = excluded.construction_year`,
			c.ID, subjectID, c.SaleDate, c.Address, c.GushChelkaSub, c.Rooms, c.Floor,
			c.AreaSqm, c.PricePerAreaUnit, c.TotalPrice, c.ConstructionYear, c.Included, now,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert comparable")
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert comparables")
	}
	return count, nil
}

func (s *SQLiteStore) ListComparables(ctx context.Context, subjectID string) ([]model.ComparableRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, sale_date, address, gush_chelka_sub, rooms, floor, area_sqm, price_per_sqm, total_price, construction_year, included, created_at
		 FROM comparables WHERE subject_id = ? ORDER BY sale_date DESC, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparables")
	}
	defer rows.Close()

	var comps []model.ComparableRecord
	for rows.Next() {
		var c model.ComparableRecord
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.SaleDate, &c.Address, &c.GushChelkaSub, &c.Rooms, &c.Floor,
			&c.AreaSqm, &c.PricePerAreaUnit, &c.TotalPrice, &c.ConstructionYear, &c.Included, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparable")
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "sqlite: list comparables iterate")
}

func (s *SQLiteStore) SetComparableIncluded(ctx context.Context, comparableID string, included bool, changedBy string) error {
	var subjectID string
	var current bool
	err := s.db.QueryRowContext(ctx,
		`SELECT subject_id, included FROM comparables WHERE id = ?`, comparableID,
	).Scan(&subjectID, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "comparable %s", comparableID)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: get comparable")
	}
	if current == included {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin set included")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE comparables SET included = ? WHERE id = ?`, included, comparableID,
	); err != nil {
		return eris.Wrap(err, "sqlite: set included")
	}
	entry := auditEntry(subjectID, includedPath(comparableID), formatBool(current), formatBool(included),
		changedBy, model.Provenance{Origin: model.OriginManual}, time.Now().UTC())
	if err := insertAuditSQLite(ctx, tx, entry); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit set included")
}

func (s *SQLiteStore) SetSubjectArea(ctx context.Context, subjectID string, area model.SubjectArea, changedBy string) error {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	old, err := s.GetSubjectArea(ctx, subjectID)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin set subject area")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subject_areas (subject_id, area_built, area_balcony, coefficient, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (subject_id) DO UPDATE SET
		   area_built = excluded.area_built, area_balcony = excluded.area_balcony,
		   coefficient = excluded.coefficient, updated_at = excluded.updated_at`,
		subjectID, area.Built, area.Balcony, area.Coefficient, now,
	); err != nil {
		return eris.Wrap(err, "sqlite: upsert subject area")
	}
	entry := auditEntry(subjectID, "subject_area", formatArea(old), formatArea(&area),
		changedBy, model.Provenance{Origin: model.OriginManual}, now)
	if err := insertAuditSQLite(ctx, tx, entry); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit set subject area")
}

func (s *SQLiteStore) GetSubjectArea(ctx context.Context, subjectID string) (*model.SubjectArea, error) {
	var a model.SubjectArea
	err := s.db.QueryRowContext(ctx,
		`SELECT area_built, area_balcony, coefficient FROM subject_areas WHERE subject_id = ?`,
		subjectID,
	).Scan(&a.Built, &a.Balcony, &a.Coefficient)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subject area for %s", subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get subject area")
	}
	return &a, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	var typ, fieldsJSON string
	var confidence sql.NullFloat64
	if err := row.Scan(&rec.ID, &rec.SubjectID, &typ, &rec.RawSource, &fieldsJSON,
		&rec.Method, &confidence, &rec.IsActive, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Type = model.ExtractionType(typ)
	if confidence.Valid {
		rec.Confidence = &confidence.Float64
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "unmarshal fields")
	}
	return &rec, nil
}

func activeSiblingsSQLite(ctx context.Context, tx *sql.Tx, subjectID string, typ model.ExtractionType) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM extractions WHERE subject_id = ? AND extraction_type = ? AND is_active = 1`,
		subjectID, string(typ),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query active siblings")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sibling id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: siblings iterate")
}

func insertAuditSQLite(ctx context.Context, tx *sql.Tx, e model.AuditLogEntry) error {
	sourceJSON, err := json.Marshal(e.Source)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit source")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, subject_id, field_path, old_value, new_value, changed_by, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubjectID, e.FieldPath, e.OldValue, e.NewValue, e.ChangedBy, string(sourceJSON), e.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert audit entry")
}

func auditEntry(subjectID, fieldPath, oldValue, newValue, changedBy string, source model.Provenance, ts time.Time) model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		FieldPath: fieldPath,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: changedBy,
		Source:    source,
		Timestamp: ts,
	}
}

func activePath(extractionID string) string {
	return fmt.Sprintf("extractions/%s/is_active", extractionID)
}

func includedPath(comparableID string) string {
	return fmt.Sprintf("comparables/%s/included", comparableID)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatArea(a *model.SubjectArea) string {
	if a == nil {
		return ""
	}
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(data)
}
