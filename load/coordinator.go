package load

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/Zacharyr41/vcfload/batch"
	"github.com/Zacharyr41/vcfload/copyio"
	"github.com/Zacharyr41/vcfload/dbaudit"
	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/internal/shard"
	"github.com/Zacharyr41/vcfload/refgenome"
	"github.com/Zacharyr41/vcfload/rowbuild"
	"github.com/Zacharyr41/vcfload/variant"
	"github.com/Zacharyr41/vcfload/vcfio"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

// ErrAlreadyLoaded re-exports dbaudit.ErrAlreadyLoaded for callers that
// only import load.
var ErrAlreadyLoaded = dbaudit.ErrAlreadyLoaded

// Coordinator drives one source file through the full pipeline, per
// spec.md §4.8: idempotency guard, sharded decompose/normalize/build,
// batch commit with retry, and audit finalization. Grounded on the
// teacher's pileupSNPMain (pileup/snp/pileup.go): a options-holding
// driver whose main loop is a traverse.Each over a fixed shard count,
// each shard writing its own output through a shared error-aggregation
// path.
type Coordinator struct {
	opts     Options
	store    dbaudit.Store
	sink     BatchSink
	provider refgenome.Provider

	stats Stats
	seq   int64
}

// NewCoordinator builds a Coordinator. provider may be nil unless
// opts.Normalize && opts.NormalizeMode == variant.ModeReferenceAssisted.
func NewCoordinator(opts Options, store dbaudit.Store, sink BatchSink, provider refgenome.Provider) *Coordinator {
	return &Coordinator{opts: opts, store: store, sink: sink, provider: provider}
}

// RunInput names one load's source.
type RunInput struct {
	SourcePath  string
	Fingerprint string // content fingerprint, spec.md §7's idempotency key
	Reader      io.Reader
}

// Run executes one end-to-end load of in.Reader and returns the run's
// Stats. A non-nil error other than ErrAlreadyLoaded means the audit
// entry was marked Failed; the caller can resume using
// Stats.RecordsRead/FirstFailedOffset recorded in the store.
func (c *Coordinator) Run(ctx context.Context, in RunInput) (Stats, error) {
	if !c.opts.Force {
		if prior, ok, err := c.store.FindCompleted(ctx, in.Fingerprint); err != nil {
			return Stats{}, err
		} else if ok {
			log.Printf("load: %s already completed as batch %s, skipping (force not set)", in.SourcePath, prior.ID)
			return Stats{}, ErrAlreadyLoaded
		}
	}

	entry, err := c.store.InsertStarted(ctx, in.SourcePath, in.Fingerprint)
	if err != nil {
		return Stats{}, errors.E(err, "load: recording start of", in.SourcePath)
	}

	dec, err := vcfio.Open(in.Reader, 0)
	if err != nil {
		c.fail(ctx, entry.ID)
		return c.stats, errors.E(err, "load: opening", in.SourcePath)
	}
	br := bufio.NewReader(dec)
	dict, err := header.Parse(br)
	if err != nil {
		c.fail(ctx, entry.ID)
		return c.stats, errors.E(err, "load: parsing header of", in.SourcePath)
	}
	cols := copyio.BuildProjection(dict)

	if c.opts.Normalize && c.opts.NormalizeMode == variant.ModeReferenceAssisted && c.provider == nil {
		c.fail(ctx, entry.ID)
		return c.stats, errors.New("load: reference-assisted normalization requires a refgenome.Provider")
	}

	if err := c.stream(ctx, br, dict, cols, entry.ID); err != nil {
		c.fail(ctx, entry.ID)
		return c.stats, err
	}

	if err := c.store.UpdateCompleted(ctx, entry.ID, c.stats.RowsEmitted, time.Now().UTC()); err != nil {
		return c.stats, errors.E(err, "load: finalizing", in.SourcePath)
	}
	return c.stats, nil
}

func (c *Coordinator) fail(ctx context.Context, id string) {
	if err := c.store.UpdateFailed(ctx, id, c.stats.RecordsRead); err != nil {
		log.Error.Printf("load: recording failure for batch %s: %v", id, err)
	}
}

// stream runs the sharded decompose/normalize/build/commit pipeline: one
// feeder goroutine scans raw records and dispatches by chromosome shard,
// and one traverse.Each worker per shard consumes its channel until
// closed, building and committing batches as they seal.
func (c *Coordinator) stream(ctx context.Context, r io.Reader, dict *header.Dict, cols []copyio.ColumnSpec, batchPrefix string) error {
	assignment := shard.New(c.opts.ShardCount)
	nShards := assignment.Count()

	chans := make([]chan *vcfpb.RawRecord, nShards)
	for i := range chans {
		chans[i] = make(chan *vcfpb.RawRecord, 256)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var agg errors.Once
	scanner := vcfio.NewScanner(r, dict)

	go func() {
		defer func() {
			for _, ch := range chans {
				close(ch)
			}
		}()
		for {
			rec := new(vcfpb.RawRecord)
			if !scanner.Scan(rec) {
				break
			}
			c.stats.addRecordsRead(1)
			idx := assignment.Of(string(rec.Chrom))
			select {
			case chans[idx] <- rec:
			case <-ctx.Done():
				return
			}
		}
		if serr := scanner.Err(); serr != nil {
			agg.Set(serr)
			cancel()
		}
		c.stats.addRowsSkipped(scanner.Skipped())
	}()

	terr := traverse.Each(nShards, func(i int) error {
		return c.runShard(ctx, i, chans[i], dict, cols, batchPrefix)
	})
	if terr != nil {
		agg.Set(terr)
	}
	return agg.Err()
}

func (c *Coordinator) runShard(ctx context.Context, shardIdx int, in <-chan *vcfpb.RawRecord, dict *header.Dict, cols []copyio.ColumnSpec, batchPrefix string) error {
	nextID := func() string {
		return fmt.Sprintf("%s-%d-%d", batchPrefix, shardIdx, atomic.AddInt64(&c.seq, 1))
	}
	buf := batch.NewBuffer(batch.Options{MaxRows: c.opts.BatchSize, MaxBytes: c.opts.BatchMaxBytes}, nextID)
	vstats := &variant.Stats{}

	for rec := range in {
		rows := variant.Decompose(rec, dict, vstats)
		for _, br := range rows {
			nr := variant.NormalizedRow{BiallelicRow: br}
			if c.opts.Normalize {
				var err error
				nr, err = variant.Normalize(br, c.opts.NormalizeMode, c.provider)
				if err != nil {
					return errors.E(err, "load: normalizing", rec.Chrom)
				}
			}

			built, err := rowbuild.Build(nr, dict, rowbuild.Options{
				Mode:     c.opts.ChromMode,
				BatchID:  buf.CurrentID(),
			})
			if err != nil {
				if stderrors.Is(err, rowbuild.ErrUnknownChromosome) {
					c.stats.addChromRejected(1)
					continue
				}
				return err
			}

			handle, sealed, err := buf.Add(built, approxRowBytes(built), rec.LineNumber)
			if err != nil {
				return err
			}
			c.stats.addRowsEmitted(1)
			if sealed {
				if err := c.commitHandle(ctx, handle, cols); err != nil {
					return err
				}
			}
		}
	}
	if h := buf.Flush(); h != nil {
		if err := c.commitHandle(ctx, h, cols); err != nil {
			return err
		}
	}
	c.stats.mergeFieldStats(vstats)
	return nil
}

func (c *Coordinator) commitHandle(ctx context.Context, h *batch.Handle, cols []copyio.ColumnSpec) error {
	var lastErr error
	for attempt := 0; attempt < c.opts.RetryMaxAttempts; attempt++ {
		if attempt > 0 {
			c.stats.addBatchesRetried(1)
			if err := sleep(ctx, backoff(c.opts.RetryBackoffBaseMS, attempt-1)); err != nil {
				return err
			}
		}
		err := c.sink.CommitBatch(ctx, c.opts.TableName, cols, h.Rows)
		if err == nil {
			c.stats.addBatchesCommitted(1)
			return nil
		}
		err = classifyCommitErr(err)
		if isPermanent(err) {
			// Wrapped with stdlib %w, not grailbio's errors.E: the corpus
			// never calls errors.Is on a grailbio errors.E value, so its
			// Unwrap semantics are unverified. A permanent commit failure
			// crosses a package boundary via this error, and a caller
			// (e.g. a test, or the CLI deciding whether to suggest retry)
			// must be able to errors.Is against copyio.ErrEncoding with a
			// guaranteed-correct stdlib Unwrap chain.
			return fmt.Errorf("load: batch %s: permanent commit failure, aborting: %w", h.ID, err)
		}
		lastErr = err
		log.Error.Printf("load: batch %s commit attempt %d failed: %v", h.ID, attempt+1, err)
	}
	return errors.E(lastErr, "load: batch", h.ID, "exhausted retries")
}

// approxRowBytes estimates a built row's wire footprint for the
// byte-budget threshold, cheaply rather than exactly (spec.md §4.6 only
// requires an approximation).
func approxRowBytes(r rowbuild.Row) int64 {
	n := int64(len(r.Chrom) + len(r.ID) + len(r.Ref) + len(r.Alt) + len(r.Fingerprint) + 32)
	for _, v := range r.Info {
		n += int64(len(v.ScalarStr) + len(v.Array)*8 + 16)
	}
	for _, sample := range r.Format {
		for _, v := range sample {
			n += int64(len(v.ScalarStr) + len(v.Array)*8 + 16)
		}
	}
	return n
}
