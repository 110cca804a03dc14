// Package shard assigns VCF records to one of N disjoint, chromosome-keyed
// partitions, so LoadCoordinator can run one independent parse-normalize-
// encode pipeline per shard. Grounded on the teacher's encoding/bam.Shard,
// narrowed from a genomic coordinate range down to a chromosome-name
// partition key, since VCF input is naturally sorted and grouped by
// chromosome already (spec.md §5).
package shard

import "github.com/dgryski/go-farm"

// Assignment maps a chromosome name to one of [0, count) shard indexes.
// The mapping is stable across calls for the same (chrom, count) pair,
// so records sharing a chromosome are always routed to the same shard
// regardless of arrival order.
type Assignment struct {
	count int
}

// New returns an Assignment over count shards. count must be >= 1;
// count==1 means sharding is disabled and every record maps to shard 0,
// matching spec.md §6's shard_count default of 1.
func New(count int) Assignment {
	if count < 1 {
		count = 1
	}
	return Assignment{count: count}
}

// Count returns the number of shards.
func (a Assignment) Count() int { return a.count }

// Of returns the shard index for chrom.
func (a Assignment) Of(chrom string) int {
	if a.count == 1 {
		return 0
	}
	h := farm.Hash64WithSeed([]byte(chrom), 0)
	return int(h % uint64(a.count))
}
