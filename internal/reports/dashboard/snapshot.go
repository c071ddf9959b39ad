package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// ErrSnapshotNotFound is returned when a subject has no stored snapshot
var ErrSnapshotNotFound = errors.New("dashboard snapshot not found")

// Schema creates the snapshot table used by the API and the aggregation worker
const Schema = `
CREATE TABLE IF NOT EXISTS dashboard_snapshots (
	subject_id  TEXT PRIMARY KEY,
	summary     JSONB NOT NULL DEFAULT '{}',
	trend       JSONB NOT NULL DEFAULT '{}',
	run_count   INTEGER NOT NULL DEFAULT 0,
	is_stale    BOOLEAN NOT NULL DEFAULT TRUE,
	computed_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Snapshot is the persisted dashboard view of one subject
type Snapshot struct {
	SubjectID  string         `db:"subject_id" json:"subject_id"`
	Summary    types.JSONText `db:"summary" json:"summary"`
	Trend      types.JSONText `db:"trend" json:"trend"`
	RunCount   int            `db:"run_count" json:"run_count"`
	IsStale    bool           `db:"is_stale" json:"is_stale"`
	ComputedAt time.Time      `db:"computed_at" json:"computed_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// SnapshotRepository persists dashboard snapshots
type SnapshotRepository interface {
	MarkStale(ctx context.Context, subjectID string) error
	ListStale(ctx context.Context, computedBefore time.Time, limit int) ([]string, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, subjectID string) (*Snapshot, error)
	RenameSubject(ctx context.Context, from, to string) error
}

// postgresSnapshotRepository implements SnapshotRepository on PostgreSQL
type postgresSnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db *sqlx.DB) SnapshotRepository {
	return &postgresSnapshotRepository{db: db}
}

// EnsureSchema creates the snapshot table if it does not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create dashboard_snapshots: %w", err)
	}
	return nil
}

func (r *postgresSnapshotRepository) MarkStale(ctx context.Context, subjectID string) error {
	query := `
		INSERT INTO dashboard_snapshots (subject_id, is_stale, updated_at)
		VALUES ($1, TRUE, NOW())
		ON CONFLICT (subject_id) DO UPDATE SET is_stale = TRUE, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, subjectID); err != nil {
		return fmt.Errorf("failed to mark snapshot stale: %w", err)
	}
	return nil
}

func (r *postgresSnapshotRepository) ListStale(ctx context.Context, computedBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT subject_id
		FROM dashboard_snapshots
		WHERE is_stale = TRUE OR computed_at < $1
		ORDER BY computed_at ASC
		LIMIT $2
	`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query, computedBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to query stale snapshots: %w", err)
	}
	return subjects, nil
}

func (r *postgresSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	query := `
		INSERT INTO dashboard_snapshots (subject_id, summary, trend, run_count, is_stale, computed_at, updated_at)
		VALUES (:subject_id, :summary, :trend, :run_count, FALSE, :computed_at, NOW())
		ON CONFLICT (subject_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			trend = EXCLUDED.trend,
			run_count = EXCLUDED.run_count,
			is_stale = FALSE,
			computed_at = EXCLUDED.computed_at,
			updated_at = NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *postgresSnapshotRepository) GetSnapshot(ctx context.Context, subjectID string) (*Snapshot, error) {
	query := `
		SELECT subject_id, summary, trend, run_count, is_stale, computed_at, updated_at
		FROM dashboard_snapshots
		WHERE subject_id = $1
	`
	var snapshot Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

// RenameSubject drops the source snapshot and marks the target stale, used after a
// session merge re-owns the source's records.
func (r *postgresSnapshotRepository) RenameSubject(ctx context.Context, from, to string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_snapshots WHERE subject_id = $1`, from); err != nil {
		return fmt.Errorf("failed to drop snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dashboard_snapshots (subject_id, is_stale, updated_at)
		VALUES ($1, TRUE, NOW())
		ON CONFLICT (subject_id) DO UPDATE SET is_stale = TRUE, updated_at = NOW()
	`, to); err != nil {
		return fmt.Errorf("failed to mark snapshot stale: %w", err)
	}
	return tx.Commit()
}
