package load

import (
	"sync/atomic"

	"github.com/Zacharyr41/vcfload/variant"
)

// Stats accumulates whole-run counters across every shard, mirroring the
// teacher's markduplicates metrics: a flat struct of atomically-updated
// counters a caller can read once the run finishes.
type Stats struct {
	RecordsRead       int64
	RowsEmitted       int64
	RowsSkipped       int64 // malformed input lines, vcfio.Scanner.Skipped
	ChromRejected     int64 // rowbuild.ErrUnknownChromosome
	CoercionFailures  int64
	CardinalityMismatches int64
	BatchesCommitted  int64
	BatchesRetried    int64
}

func (s *Stats) addRecordsRead(n int64)      { atomic.AddInt64(&s.RecordsRead, n) }
func (s *Stats) addRowsEmitted(n int64)      { atomic.AddInt64(&s.RowsEmitted, n) }
func (s *Stats) addRowsSkipped(n int64)      { atomic.AddInt64(&s.RowsSkipped, n) }
func (s *Stats) addChromRejected(n int64)    { atomic.AddInt64(&s.ChromRejected, n) }
func (s *Stats) addBatchesCommitted(n int64) { atomic.AddInt64(&s.BatchesCommitted, n) }
func (s *Stats) addBatchesRetried(n int64)   { atomic.AddInt64(&s.BatchesRetried, n) }

// mergeFieldStats folds a per-shard variant.Stats into the run total.
func (s *Stats) mergeFieldStats(fs *variant.Stats) {
	atomic.AddInt64(&s.CoercionFailures, fs.CoercionFailures)
	atomic.AddInt64(&s.CardinalityMismatches, fs.ArrayCardinalityMismatches)
}
