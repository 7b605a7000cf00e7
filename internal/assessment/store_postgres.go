package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/co-cddo/webcaf/internal/platform/database"
)

const dbTimeout = 5 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS assessments (
	id               BIGSERIAL PRIMARY KEY,
	reference        TEXT UNIQUE,
	framework        TEXT NOT NULL,
	system_name      TEXT,
	caf_profile      TEXT,
	status           TEXT NOT NULL DEFAULT 'draft',
	assessments_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_updated_by  TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assessment_events (
	id            BIGSERIAL PRIMARY KEY,
	assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
	user_id       TEXT,
	event_type    TEXT NOT NULL,
	data          JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS assessment_events_assessment_id_idx ON assessment_events (assessment_id);
`

// PostgresStore is a PostgreSQL-backed Store. Answers live in one jsonb
// document per assessment, keyed by outcome.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an open pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables the store needs if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return database.Migrate(ctx, s.pool, "assessments", schemaSQL)
}

func (s *PostgresStore) CreateAssessment(ctx context.Context, a Assessment) (*Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.FrameworkID == "" {
		return nil, fmt.Errorf("framework is required")
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if a.Data == nil {
		a.Data = map[string]Section{}
	}
	data, err := json.Marshal(a.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal assessment data: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO assessments (framework, system_name, caf_profile, status, assessments_data, last_updated_by)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			 RETURNING id, created_at, updated_at`,
			a.FrameworkID,
			nullIfEmpty(a.SystemName),
			nullIfEmpty(a.Profile),
			a.Status,
			string(data),
			nullIfEmpty(a.LastUpdatedBy),
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert assessment: %w", err)
		}

		a.Reference, err = Reference(a.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE assessments SET reference = $2 WHERE id = $1`,
			a.ID, a.Reference,
		); err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id int64) (*Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a := &Assessment{}
	var ref, systemName, profile, lastUpdatedBy *string
	var data []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, reference, framework, system_name, caf_profile, status,
		        assessments_data, last_updated_by, created_at, updated_at
		 FROM assessments
		 WHERE id = $1`,
		id,
	).Scan(
		&a.ID,
		&ref,
		&a.FrameworkID,
		&systemName,
		&profile,
		&a.Status,
		&data,
		&lastUpdatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	a.Reference = deref(ref)
	a.SystemName = deref(systemName)
	a.Profile = deref(profile)
	a.LastUpdatedBy = deref(lastUpdatedBy)

	a.Data = map[string]Section{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return nil, fmt.Errorf("decode assessment data: %w", err)
		}
	}
	return a, nil
}

func (s *PostgresStore) SaveSection(ctx context.Context, id int64, outcomeKey string, section Section, user string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("marshal section: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE assessments
		 SET assessments_data = jsonb_set(COALESCE(assessments_data, '{}'::jsonb), ARRAY[$2::text], $3::jsonb, true),
		     last_updated_by = $4,
		     updated_at = NOW()
		 WHERE id = $1`,
		id,
		outcomeKey,
		string(data),
		nullIfEmpty(user),
	)
	if err != nil {
		return fmt.Errorf("save section: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	slog.Debug("section stored", "assessment_id", id, "outcome", outcomeKey)
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
