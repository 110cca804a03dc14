package load

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zacharyr41/vcfload/copyio"
	"github.com/Zacharyr41/vcfload/rowbuild"
)

// BatchSink delivers one sealed batch's rows to the destination table.
// A narrow interface in the teacher's bamprovider.Provider style, so
// Coordinator's tests run against MemSink instead of a live database.
type BatchSink interface {
	CommitBatch(ctx context.Context, tableName string, cols []copyio.ColumnSpec, rows []rowbuild.Row) error
}

// PGSink commits batches to Postgres using the binary COPY protocol
// (spec.md §4.7), built from copyio's encoder and sent over pgx/v5's
// low-level CopyFrom, grounded the same way as dbaudit.PGStore (see
// DESIGN.md).
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) CommitBatch(ctx context.Context, tableName string, cols []copyio.ColumnSpec, rows []rowbuild.Row) error {
	var buf bytes.Buffer
	if err := copyio.WriteHeader(&buf); err != nil {
		return err
	}
	for _, row := range rows {
		if err := copyio.WriteTuple(&buf, copyio.EncodeRow(row, cols)); err != nil {
			return err
		}
	}
	if err := copyio.WriteTrailer(&buf); err != nil {
		return err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT binary)", tableName, strings.Join(names, ", "))

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Conn().PgConn().CopyFrom(ctx, &buf, sql)
	return err
}

// MemSink is an in-memory BatchSink fake for tests, recording every
// committed row keyed by table name.
type MemSink struct {
	mu       sync.Mutex
	Rows     map[string][]rowbuild.Row
	FailNext bool  // when true, CommitBatch fails once then clears itself
	FailErr  error // error returned by the FailNext failure; defaults to a generic transient error
	FailAlways bool // when true, every CommitBatch call fails with FailErr, never clearing
}

func NewMemSink() *MemSink {
	return &MemSink{Rows: make(map[string][]rowbuild.Row)}
}

func (s *MemSink) CommitBatch(ctx context.Context, tableName string, cols []copyio.ColumnSpec, rows []rowbuild.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAlways {
		return s.failErr()
	}
	if s.FailNext {
		s.FailNext = false
		return s.failErr()
	}
	s.Rows[tableName] = append(s.Rows[tableName], rows...)
	return nil
}

func (s *MemSink) failErr() error {
	if s.FailErr != nil {
		return s.FailErr
	}
	return fmt.Errorf("load: simulated commit failure")
}
