// Package batch implements BatchBuffer: accumulating rows up to a
// row-count and/or byte-budget threshold, then sealing the batch for
// handoff to the encoder. See spec.md §4.6.
package batch

import (
	"sync"

	"github.com/grailbio/base/errors"

	"github.com/Zacharyr41/vcfload/rowbuild"
)

// State is a BatchHandle's lifecycle state, spec.md §3.
type State int

const (
	Filling State = iota
	Sealed
	Encoding
	Flushed
	Failed
)

// Options configures BatchBuffer thresholds, grounded on the teacher's
// pam.WriteOpts (MaxBufSize) and sorter.SortOptions (SortBatchSize)
// shape: a row-count threshold (required) and a byte-budget threshold
// (optional, 0 disables it).
type Options struct {
	// MaxRows is the row-count flush threshold. Required; spec.md §4.6
	// says row-count flush is REQUIRED. Defaults to 50,000 (spec.md §6)
	// if <= 0.
	MaxRows int
	// MaxBytes is an optional byte-budget flush threshold; 0 disables it.
	MaxBytes int64
}

const DefaultMaxRows = 50_000

// Handle is a BatchHandle: an ordered, growing (until Sealed) sequence
// of built rows plus its source offset range for resume.
type Handle struct {
	ID         string
	Rows       []rowbuild.Row
	bytes      int64
	StartLine  int64
	EndLine    int64
	state      State
}

func (h *Handle) State() State { return h.state }

// ErrSealed is returned by Add once the handle has been sealed.
var ErrSealed = errors.New("batch: handle already sealed")

// Buffer accumulates rows into the current Handle and seals it once a
// threshold is crossed. A Buffer fronts exactly one in-flight encoder at
// a time, per spec.md §4.6; parallelism comes from running one Buffer
// per chromosome shard, not from pipelining within a Buffer.
type Buffer struct {
	mu      sync.Mutex
	opts    Options
	nextID  func() string
	current *Handle
}

// NewBuffer constructs a Buffer. nextID mints a fresh Handle.ID for each
// new batch (load's runShard supplies one built from the audit entry id,
// the shard index and a sequence number).
func NewBuffer(opts Options, nextID func() string) *Buffer {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	return &Buffer{opts: opts, nextID: nextID}
}

// CurrentID returns the ID of the handle currently being filled,
// creating it (without adding any row) if none is open yet. Callers use
// this to stamp a row's owning-batch id before building the row, since
// RowBuilder needs the id up front (spec.md §4.5) while the Handle
// itself is only minted lazily on first Add.
func (b *Buffer) CurrentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		b.current = &Handle{ID: b.nextID(), state: Filling}
	}
	return b.current.ID
}

// Add appends row to the in-progress handle, sealing and returning it
// (so the caller can hand it to the encoder) once a threshold is
// crossed. It returns (nil, false, nil) when the row was merely buffered.
func (b *Buffer) Add(row rowbuild.Row, approxBytes int64, sourceLine int64) (*Handle, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		b.current = &Handle{ID: b.nextID(), state: Filling}
	}
	if b.current.state != Filling {
		return nil, false, ErrSealed
	}
	if len(b.current.Rows) == 0 {
		b.current.StartLine = sourceLine
	}
	b.current.Rows = append(b.current.Rows, row)
	b.current.bytes += approxBytes
	b.current.EndLine = sourceLine

	full := len(b.current.Rows) >= b.opts.MaxRows
	overBudget := b.opts.MaxBytes > 0 && b.current.bytes >= b.opts.MaxBytes
	if full || overBudget {
		sealed := b.current
		sealed.state = Sealed
		b.current = nil
		return sealed, true, nil
	}
	return nil, false, nil
}

// Flush seals and returns whatever is currently buffered, even if below
// threshold; used at end-of-stream. Returns nil if nothing is buffered.
func (b *Buffer) Flush() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || len(b.current.Rows) == 0 {
		return nil
	}
	sealed := b.current
	sealed.state = Sealed
	b.current = nil
	return sealed
}
