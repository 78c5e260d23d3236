package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shamay-group/appraisal-engine/internal/db"
	"github.com/shamay-group/appraisal-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	city       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extractions (
	id              TEXT PRIMARY KEY,
	subject_id      TEXT NOT NULL REFERENCES subjects(id),
	extraction_type TEXT NOT NULL,
	raw_source      TEXT NOT NULL,
	fields          JSONB NOT NULL,
	method          TEXT NOT NULL,
	confidence      DOUBLE PRECISION,
	is_active       BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	field_path TEXT NOT NULL,
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	changed_by TEXT NOT NULL DEFAULT '',
	source     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comparables (
	id                TEXT PRIMARY KEY,
	subject_id        TEXT NOT NULL REFERENCES subjects(id),
	sale_date         TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	gush_chelka_sub   TEXT NOT NULL DEFAULT '',
	rooms             DOUBLE PRECISION NOT NULL DEFAULT 0,
	floor             TEXT NOT NULL DEFAULT '',
	area_sqm          DOUBLE PRECISION NOT NULL,
	price_per_sqm     DOUBLE PRECISION NOT NULL,
	total_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	construction_year INTEGER NOT NULL DEFAULT 0,
	included          BOOLEAN NOT NULL DEFAULT true,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subject_areas (
	subject_id   TEXT PRIMARY KEY REFERENCES subjects(id),
	area_built   DOUBLE PRECISION NOT NULL,
	area_balcony DOUBLE PRECISION NOT NULL,
	coefficient  DOUBLE PRECISION NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_subject_type ON extractions(subject_id, extraction_type);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_extractions_active ON extractions(subject_id, extraction_type) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_comparables_subject ON comparables(subject_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSubject(ctx context.Context, address, city string) (*model.Subject, error) {
	sub := &model.Subject{
		ID:        uuid.New().String(),
		Address:   address,
		City:      city,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subjects (id, address, city, created_at) VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.Address, sub.City, sub.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert subject")
	}
	return sub, nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	var sub model.Subject
	err := s.pool.QueryRow(ctx,
		`SELECT id, address, city, created_at FROM subjects WHERE id = $1`, id,
	).Scan(&sub.ID, &sub.Address, &sub.City, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subject %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get subject")
	}
	return &sub, nil
}

func (s *PostgresStore) SaveExtraction(ctx context.Context, subjectID string, typ model.ExtractionType, rawPayload string, fields model.FieldSet, meta SaveMeta) (string, error) {
	// Subject check and payload marshaling happen before the transaction
	// opens; transaction duration stays bounded by a handful of row writes.
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return "", err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal fields")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin save extraction")
	}
	defer tx.Rollback(ctx)

	siblings, err := activeSiblingsPG(ctx, tx, subjectID, typ)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE extractions SET is_active = false WHERE subject_id = $1 AND extraction_type = $2 AND is_active`,
		subjectID, string(typ),
	); err != nil {
		return "", eris.Wrap(err, "postgres: deactivate siblings")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO extractions (id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)`,
		id, subjectID, string(typ), rawPayload, fieldsJSON, meta.Method, meta.Confidence, now,
	); err != nil {
		return "", eris.Wrap(err, "postgres: insert extraction")
	}

	source := model.Provenance{Origin: meta.Origin, DocumentID: meta.DocumentID}
	for _, sib := range siblings {
		if err := insertAuditPG(ctx, tx, auditEntry(subjectID, activePath(sib), "true", "false", meta.ChangedBy, source, now)); err != nil {
			return "", err
		}
	}
	if err := insertAuditPG(ctx, tx, auditEntry(subjectID, activePath(id), "", "true", meta.ChangedBy, source, now)); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit save extraction")
	}
	return id, nil
}

const extractionColumns = `id, subject_id, extraction_type, raw_source, fields, method, confidence, is_active, created_at`

func (s *PostgresStore) GetExtraction(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	rec, err := scanExtractionPG(s.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "extraction %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get extraction")
	}
	return rec, nil
}

func (s *PostgresStore) GetLatestActive(ctx context.Context, subjectID string, typ model.ExtractionType) (*model.ExtractionRecord, error) {
	rec, err := scanExtractionPG(s.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE subject_id = $1 AND extraction_type = $2 AND is_active`,
		subjectID, string(typ)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "no active %s extraction for subject %s", typ, subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get latest active")
	}
	return rec, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string) ([]model.ExtractionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE subject_id = $1 ORDER BY created_at DESC, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var recs []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtractionPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func (s *PostgresStore) Deactivate(ctx context.Context, extractionID, changedBy string) error {
	rec, err := s.GetExtraction(ctx, extractionID)
	if err != nil {
		return err
	}
	if !rec.IsActive {
		return nil // idempotent
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin deactivate")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE extractions SET is_active = false WHERE id = $1`, extractionID,
	); err != nil {
		return eris.Wrap(err, "postgres: deactivate")
	}
	now := time.Now().UTC()
	source := model.Provenance{Origin: model.OriginManual}
	if err := insertAuditPG(ctx, tx, auditEntry(rec.SubjectID, activePath(extractionID), "true", "false", changedBy, source, now)); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit deactivate")
}

func (s *PostgresStore) Restore(ctx context.Context, subjectID, extractionID, changedBy string) error {
	rec, err := s.GetExtraction(ctx, extractionID)
	if err != nil {
		return err
	}
	if rec.SubjectID != subjectID {
		return eris.Wrapf(ErrNotFound, "extraction %s does not belong to subject %s", extractionID, subjectID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin restore")
	}
	defer tx.Rollback(ctx)

	siblings, err := activeSiblingsPG(ctx, tx, subjectID, rec.Type)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE extractions SET is_active = false WHERE subject_id = $1 AND extraction_type = $2 AND is_active`,
		subjectID, string(rec.Type),
	); err != nil {
		return eris.Wrap(err, "postgres: deactivate siblings")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE extractions SET is_active = true WHERE id = $1`, extractionID,
	); err != nil {
		return eris.Wrap(err, "postgres: activate target")
	}

	now := time.Now().UTC()
	source := model.Provenance{Origin: model.OriginManual}
	for _, sib := range siblings {
		if sib == extractionID {
			continue
		}
		if err := insertAuditPG(ctx, tx, auditEntry(subjectID, activePath(sib), "true", "false", changedBy, source, now)); err != nil {
			return err
		}
	}
	if !rec.IsActive {
		if err := insertAuditPG(ctx, tx, auditEntry(subjectID, activePath(extractionID), "false", "true", changedBy, source, now)); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit restore")
}

func (s *PostgresStore) ListAudit(ctx context.Context, subjectID string) ([]model.AuditLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, field_path, old_value, new_value, changed_by, source, created_at
		 FROM audit_log WHERE subject_id = $1 ORDER BY created_at, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var sourceJSON []byte
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.FieldPath, &e.OldValue, &e.NewValue, &e.ChangedBy, &sourceJSON, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		if err := json.Unmarshal(sourceJSON, &e.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit source")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) UpsertComparables(ctx context.Context, subjectID string, comps []model.ComparableRecord) (int, error) {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert comparables")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	count := 0
	for _, c := range comps {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO comparables (id, subject_id, sale_date, address, gush_chelka_sub, rooms, floor, area_sqm, price_per_sqm, total_price, construction_year, included, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO UPDATE SET
			   sale_date = EXCLUDED.sale_date, address = EXCLUDED.address,
			   gush_chelka_sub = EXCLUDED.gush_chelka_sub, rooms = EXCLUDED.rooms,
			   floor = EXCLUDED.floor, area_sqm = EXCLUDED.area_sqm,
			   price_per_sqm = EXCLUDED.price_per_sqm, total_price = EXCLUDED.total_price,
			   construction_year = EXCLUDED.construction_year`,
			c.ID, subjectID, c.SaleDate, c.Address, c.GushChelkaSub, c.Rooms, c.Floor,
			c.AreaSqm, c.PricePerAreaUnit, c.TotalPrice, c.ConstructionYear, c.Included, now,
		); err != nil {
			return 0, eris.Wrap(err, "postgres: upsert comparable")
		}
		count++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert comparables")
	}
	return count, nil
}

func (s *PostgresStore) ListComparables(ctx context.Context, subjectID string) ([]model.ComparableRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, sale_date, address, gush_chelka_sub, rooms, floor, area_sqm, price_per_sqm, total_price, construction_year, included, created_at
		 FROM comparables WHERE subject_id = $1 ORDER BY sale_date DESC, id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparables")
	}
	defer rows.Close()

	var comps []model.ComparableRecord
	for rows.Next() {
		var c model.ComparableRecord
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.SaleDate, &c.Address, &c.GushChelkaSub, &c.Rooms, &c.Floor,
			&c.AreaSqm, &c.PricePerAreaUnit, &c.TotalPrice, &c.ConstructionYear, &c.Included, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparable")
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "postgres: list comparables iterate")
}

func (s *PostgresStore) SetComparableIncluded(ctx context.Context, comparableID string, included bool, changedBy string) error {
	var subjectID string
	var current bool
	err := s.pool.QueryRow(ctx,
		`SELECT subject_id, included FROM comparables WHERE id = $1`, comparableID,
	).Scan(&subjectID, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "comparable %s", comparableID)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: get comparable")
	}
	if current == included {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin set included")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE comparables SET included = $1 WHERE id = $2`, included, comparableID,
	); err != nil {
		return eris.Wrap(err, "postgres: set included")
	}
	entry := auditEntry(subjectID, includedPath(comparableID), formatBool(current), formatBool(included),
		changedBy, model.Provenance{Origin: model.OriginManual}, time.Now().UTC())
	if err := insertAuditPG(ctx, tx, entry); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit set included")
}

func (s *PostgresStore) SetSubjectArea(ctx context.Context, subjectID string, area model.SubjectArea, changedBy string) error {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	old, err := s.GetSubjectArea(ctx, subjectID)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin set subject area")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO subject_areas (subject_id, area_built, area_balcony, coefficient, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id) DO UPDATE SET
		   area_built = EXCLUDED.area_built, area_balcony = EXCLUDED.area_balcony,
		   coefficient = EXCLUDED.coefficient, updated_at = EXCLUDED.updated_at`,
		subjectID, area.Built, area.Balcony, area.Coefficient, now,
	); err != nil {
		return eris.Wrap(err, "postgres: upsert subject area")
	}
	entry := auditEntry(subjectID, "subject_area", formatArea(old), formatArea(&area),
		changedBy, model.Provenance{Origin: model.OriginManual}, now)
	if err := insertAuditPG(ctx, tx, entry); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit set subject area")
}

func (s *PostgresStore) GetSubjectArea(ctx context.Context, subjectID string) (*model.SubjectArea, error) {
	var a model.SubjectArea
	err := s.pool.QueryRow(ctx,
		`SELECT area_built, area_balcony, coefficient FROM subject_areas WHERE subject_id = $1`,
		subjectID,
	).Scan(&a.Built, &a.Balcony, &a.Coefficient)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "subject area for %s", subjectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get subject area")
	}
	return &a, nil
}

func scanExtractionPG(row pgx.Row) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	var typ string
	var fieldsJSON []byte
	var confidence *float64
	if err := row.Scan(&rec.ID, &rec.SubjectID, &typ, &rec.RawSource, &fieldsJSON,
		&rec.Method, &confidence, &rec.IsActive, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Type = model.ExtractionType(typ)
	rec.Confidence = confidence
	if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "unmarshal fields")
	}
	return &rec, nil
}

func activeSiblingsPG(ctx context.Context, tx pgx.Tx, subjectID string, typ model.ExtractionType) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT id FROM extractions WHERE subject_id = $1 AND extraction_type = $2 AND is_active`,
		subjectID, string(typ),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query active siblings")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sibling id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: siblings iterate")
}

func insertAuditPG(ctx context.Context, tx pgx.Tx, e model.AuditLogEntry) error {
	sourceJSON, err := json.Marshal(e.Source)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit source")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO audit_log (id, subject_id, field_path, old_value, new_value, changed_by, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SubjectID, e.FieldPath, e.OldValue, e.NewValue, e.ChangedBy, sourceJSON, e.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert audit entry")
}
