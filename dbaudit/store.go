// Package dbaudit defines the load-audit table contract: the only
// externally observable metadata the core produces (spec.md §6). Store
// is a small interface so LoadCoordinator's tests can use an in-memory
// fake instead of a live Postgres connection, grounded on the teacher's
// encoding/bamprovider.Provider pattern of a narrow interface with a
// swappable backend.
package dbaudit

import (
	"context"
	"time"

	"github.com/grailbio/base/errors"
)

// Status is a LoadBatch's terminal-or-in-progress state, spec.md §3.
type Status int

const (
	Started Status = iota
	Completed
	Failed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Started:
		return "started"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Entry is one persisted LoadBatch audit record.
type Entry struct {
	ID                 string
	SourcePath         string
	SourceFingerprint  string
	RowCount           int64
	Status             Status
	StartedAt          time.Time
	CompletedAt        time.Time
	FirstFailedOffset  int64 // source line of the first failing batch, for resume
}

// ErrAlreadyLoaded is returned by FindCompleted's caller (LoadCoordinator)
// when a matching fingerprint already has a Completed entry and force
// was not requested, per spec.md §7.
var ErrAlreadyLoaded = errors.New("dbaudit: source already loaded")

// ErrNotFound is returned by UpdateCompleted/UpdateFailed when id does
// not match a previously inserted entry.
var ErrNotFound = errors.New("dbaudit: entry not found")

// Store is the audit table contract consumed (not defined) by the core,
// per spec.md §6: a separate schema-init component owns table DDL.
type Store interface {
	// FindCompleted looks up the most recent Completed entry for
	// fingerprint, returning ok=false if none exists.
	FindCompleted(ctx context.Context, fingerprint string) (Entry, bool, error)
	// InsertStarted records a new Started entry and returns it.
	InsertStarted(ctx context.Context, sourcePath, fingerprint string) (Entry, error)
	// UpdateCompleted transitions id to Completed with the final row
	// count and completion time.
	UpdateCompleted(ctx context.Context, id string, rowCount int64, completedAt time.Time) error
	// UpdateFailed transitions id to Failed, recording the source offset
	// of the first failing batch for resume.
	UpdateFailed(ctx context.Context, id string, firstFailedOffset int64) error
}
