/*
vcfload parses a VCF file, decomposes multi-allelic records
into biallelic rows, normalizes REF/ALT pairs, and bulk-loads the result
into a Postgres table using the binary COPY protocol.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zacharyr41/vcfload/dbaudit"
	"github.com/Zacharyr41/vcfload/load"
	"github.com/Zacharyr41/vcfload/refgenome"
	"github.com/Zacharyr41/vcfload/rowbuild"
	"github.com/Zacharyr41/vcfload/variant"
)

var (
	dsn          = flag.String("dsn", "", "Postgres connection string (required)")
	table        = flag.String("table", "variants", "Destination table name")
	batchSize    = flag.Int("batch-size", 50_000, "Row-count flush threshold per batch")
	batchBytes   = flag.Int64("batch-bytes", 64<<20, "Byte-budget flush threshold per batch, 0 disables")
	shardCount   = flag.Int("shards", 1, "Number of concurrent chromosome-keyed pipelines")
	normalize    = flag.Bool("normalize", true, "Left-align and trim REF/ALT pairs")
	refAssisted  = flag.Bool("reference-assisted", false, "Use reference-assisted normalization (requires -ref)")
	refPath      = flag.String("ref", "", "FASTA reference path, required when -reference-assisted is set")
	openChrom    = flag.Bool("open-chromosomes", false, "Accept any chromosome name instead of the constrained human alphabet")
	force        = flag.Bool("force", false, "Reload even if this source's fingerprint is already marked completed")
	retryMax     = flag.Int("retry-max-attempts", 5, "Maximum commit attempts per batch, including the first")
	retryBaseMS  = flag.Int("retry-backoff-base-ms", 100, "Base exponential-backoff delay between commit retries")
	initSchema   = flag.Bool("init-schema", false, "Create the audit table if it doesn't exist, then exit")
	enableS3     = flag.Bool("s3", false, "Allow s3:// source paths, using the default AWS session credential chain")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] vcfpath\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *dsn == "" {
		log.Fatalf("vcfload: -dsn is required")
	}
	ctx := vcontext.Background()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("vcfload: connecting to %s: %v", redactDSN(*dsn), err)
	}
	defer pool.Close()

	if *initSchema {
		if _, err := pool.Exec(ctx, dbaudit.Schema); err != nil {
			log.Fatalf("vcfload: initializing schema: %v", err)
		}
		log.Printf("vcfload: schema initialized")
		return
	}

	if *enableS3 {
		file.RegisterImplementation("s3", func() file.Implementation {
			return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
		})
	}

	if flag.NArg() != 1 {
		log.Fatalf("vcfload: exactly one VCF path required, got %d", flag.NArg())
	}
	path := flag.Arg(0)

	opts := load.DefaultOptions()
	opts.BatchSize = *batchSize
	opts.BatchMaxBytes = *batchBytes
	opts.ShardCount = *shardCount
	opts.Normalize = *normalize
	opts.Force = *force
	opts.RetryMaxAttempts = *retryMax
	opts.RetryBackoffBaseMS = *retryBaseMS
	opts.TableName = *table
	if *openChrom {
		opts.ChromMode = rowbuild.ChromOpen
	}

	var provider refgenome.Provider
	if *refAssisted {
		opts.NormalizeMode = variant.ModeReferenceAssisted
		if *refPath == "" {
			log.Fatalf("vcfload: -reference-assisted requires -ref")
		}
		ref, err := file.Open(ctx, *refPath)
		if err != nil {
			log.Fatalf("vcfload: opening reference %s: %v", *refPath, err)
		}
		defer ref.Close(ctx) // nolint: errcheck
		provider, err = refgenome.Load(ref.Reader(ctx))
		if err != nil {
			log.Fatalf("vcfload: loading reference %s: %v", *refPath, err)
		}
	}

	fingerprint, err := fingerprintFile(ctx, path)
	if err != nil {
		log.Fatalf("vcfload: fingerprinting %s: %v", path, err)
	}

	src, err := file.Open(ctx, path)
	if err != nil {
		log.Fatalf("vcfload: opening %s: %v", path, err)
	}
	defer src.Close(ctx) // nolint: errcheck

	store := dbaudit.NewPGStore(pool)
	sink := load.NewPGSink(pool)
	coord := load.NewCoordinator(opts, store, sink, provider)

	stats, err := coord.Run(ctx, load.RunInput{SourcePath: path, Fingerprint: fingerprint, Reader: src.Reader(ctx)})
	if err == load.ErrAlreadyLoaded {
		log.Printf("vcfload: %s already loaded, use -force to reload", path)
		return
	}
	if err != nil {
		log.Panicf("vcfload: %v", err)
	}
	log.Printf("vcfload: loaded %s: %d records read, %d rows emitted, %d batches committed (%d retried)",
		path, stats.RecordsRead, stats.RowsEmitted, stats.BatchesCommitted, stats.BatchesRetried)
}

// fingerprintFile hashes the raw file content with seahash in a single
// streaming pass, ahead of the main load pass, so Coordinator's
// idempotency guard (spec.md §7) can be checked before any rows are
// built. Kept in the CLI rather than Coordinator.Run so the core stays
// single-pass and storage-agnostic about how the caller obtained a
// fingerprint.
func fingerprintFile(ctx context.Context, path string) (string, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer f.Close(ctx) // nolint: errcheck
	var h hash.Hash64 = seahash.New()
	if _, err := io.Copy(h, f.Reader(ctx)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		return "***@" + dsn[i+1:]
	}
	return dsn
}
