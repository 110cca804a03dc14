package dbaudit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// MemStore is an in-memory Store, grounded on the teacher's
// bamprovider.FakeProvider pattern of a test double behind the same
// interface as the production backend.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]*Entry)}
}

func (m *MemStore) FindCompleted(ctx context.Context, fingerprint string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Entry
	for _, e := range m.entries {
		if e.SourceFingerprint == fingerprint && e.Status == Completed &&
			(best == nil || e.StartedAt.After(best.StartedAt)) {
			best = e
		}
	}
	if best == nil {
		return Entry{}, false, nil
	}
	return *best, true, nil
}

func (m *MemStore) InsertStarted(ctx context.Context, sourcePath, fingerprint string) (Entry, error) {
	id, err := newID()
	if err != nil {
		return Entry{}, err
	}
	e := &Entry{
		ID:                id,
		SourcePath:        sourcePath,
		SourceFingerprint: fingerprint,
		Status:            Started,
		StartedAt:         time.Now(),
	}
	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	return *e, nil
}

func (m *MemStore) UpdateCompleted(ctx context.Context, id string, rowCount int64, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = Completed
	e.RowCount = rowCount
	e.CompletedAt = completedAt
	return nil
}

func (m *MemStore) UpdateFailed(ctx context.Context, id string, firstFailedOffset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = Failed
	e.FirstFailedOffset = firstFailedOffset
	return nil
}

func newID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
