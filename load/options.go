// Package load implements LoadCoordinator: the top-level lifecycle that
// drives a VCF source through header parsing, sharded
// decompose/normalize/build/encode, and batch-by-batch COPY delivery,
// recording progress in the audit store as it goes (spec.md §4.8, §6,
// §7). Grounded on the teacher's pileup/snp.Opts/pileupSNPMain shape: a
// small options struct with a DefaultOpts constructor, plus a
// traverse.Each-driven parallel main loop.
package load

import "github.com/Zacharyr41/vcfload/rowbuild"
import "github.com/Zacharyr41/vcfload/variant"

// Options configures one Coordinator run, spec.md §6's configuration
// surface.
type Options struct {
	// BatchSize is the row count threshold at which a filling batch
	// seals (batch.Options.MaxRows).
	BatchSize int
	// BatchMaxBytes is the approximate-byte threshold at which a
	// filling batch seals.
	BatchMaxBytes int64
	// ShardCount is the number of concurrent chromosome-keyed
	// pipelines; 1 disables sharding.
	ShardCount int
	// Normalize enables left-alignment/trimming of REF/ALT pairs.
	Normalize bool
	// NormalizeMode selects context-free vs. reference-assisted
	// normalization; only meaningful when Normalize is true. Reference-
	// assisted mode also requires a non-nil refgenome.Provider passed to
	// NewCoordinator; resolving that provider from a file path is the
	// CLI's job, not the Coordinator's (spec.md §6).
	NormalizeMode variant.NormalizeMode
	// ChromMode selects whether unrecognized chromosome names are
	// rejected (ChromConstrained) or accepted (ChromOpen).
	ChromMode rowbuild.ChromMode
	// Force bypasses the idempotency guard, re-loading a source whose
	// fingerprint already has a Completed audit entry.
	Force bool
	// RetryMaxAttempts bounds the per-batch commit attempts on transient
	// failure, counting the first attempt.
	RetryMaxAttempts int
	// RetryBackoffBaseMS is the base delay for exponential backoff
	// between commit retries.
	RetryBackoffBaseMS int
	// TableName is the destination table COPY targets.
	TableName string
}

// DefaultOptions mirrors spec.md §6's defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:          50_000,
		BatchMaxBytes:      64 << 20,
		ShardCount:         1,
		Normalize:          true,
		NormalizeMode:      variant.ModeContextFree,
		ChromMode:          rowbuild.ChromConstrained,
		Force:              false,
		RetryMaxAttempts:   5,
		RetryBackoffBaseMS: 100,
		TableName:          "variants",
	}
}
