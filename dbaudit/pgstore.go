package dbaudit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the audit table, applied once by the CLI's
// -init-schema path. It is deliberately not run implicitly by PGStore,
// mirroring the teacher's separation of provisioning from the hot path.
const Schema = `
CREATE TABLE IF NOT EXISTS vcfload_batch (
	id                  text PRIMARY KEY,
	source_path         text NOT NULL,
	source_fingerprint  text NOT NULL,
	row_count           bigint NOT NULL DEFAULT 0,
	status              text NOT NULL,
	started_at          timestamptz NOT NULL,
	completed_at        timestamptz,
	first_failed_offset bigint NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS vcfload_batch_fingerprint_idx
	ON vcfload_batch (source_fingerprint, status);
`

// PGStore is the Postgres-backed Store, used by cmd/vcfload in
// production. Grounded on the pgx/v5 pool usage shown in the pack's
// cdc-sink-redshift and JonMunkholm-UiUpload reference files (see
// DESIGN.md).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-connected pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) FindCompleted(ctx context.Context, fingerprint string) (Entry, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_path, source_fingerprint, row_count, status,
		       started_at, completed_at, first_failed_offset
		FROM vcfload_batch
		WHERE source_fingerprint = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1`, fingerprint, Completed.String())

	var e Entry
	var statusStr string
	var completedAt *time.Time
	if err := row.Scan(&e.ID, &e.SourcePath, &e.SourceFingerprint, &e.RowCount,
		&statusStr, &e.StartedAt, &completedAt, &e.FirstFailedOffset); err != nil {
		if err == pgx.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	e.Status = Completed
	if completedAt != nil {
		e.CompletedAt = *completedAt
	}
	return e, true, nil
}

func (s *PGStore) InsertStarted(ctx context.Context, sourcePath, fingerprint string) (Entry, error) {
	id, err := newID()
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:                id,
		SourcePath:        sourcePath,
		SourceFingerprint: fingerprint,
		Status:            Started,
		StartedAt:         time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vcfload_batch (id, source_path, source_fingerprint, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.SourcePath, e.SourceFingerprint, Started.String(), e.StartedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) UpdateCompleted(ctx context.Context, id string, rowCount int64, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vcfload_batch SET status = $1, row_count = $2, completed_at = $3
		WHERE id = $4`, Completed.String(), rowCount, completedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateFailed(ctx context.Context, id string, firstFailedOffset int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vcfload_batch SET status = $1, first_failed_offset = $2
		WHERE id = $3`, Failed.String(), firstFailedOffset, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
