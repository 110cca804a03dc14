// Package variant implements the Decomposer and Normalizer: splitting a
// multi-allelic RawRecord into biallelic rows and left-aligning each
// row's (pos, ref, alt) triple. See spec.md §4.3-§4.4.
package variant

import "github.com/Zacharyr41/vcfload/vcfpb"

// TypedValue holds one projected INFO/FORMAT value after cardinality
// projection and type coercion. Exactly one of the Scalar* fields or
// Array is populated, per the field's StorageKind.
type TypedValue struct {
	Kind    vcfpb.StorageKind
	Present bool // false means missing/NULL

	ScalarInt   int64
	ScalarFloat float64
	ScalarStr   string
	ScalarFlag  bool
	// Array holds StorageArray values as strings; copyio parses each
	// element into the column's Integer/Float array kind at encode time.
	Array []string

	// Coerced is true when projection fell back to missing because of a
	// CoercionFailure; Present is also false in that case, but Coerced
	// distinguishes "never had a value" from "had one and it didn't
	// parse." An ArrayCardinalityMismatch leaves Coerced false.
	Coerced bool
}

// BiallelicRow is one ALT's worth of a decomposed RawRecord, before
// normalization. See spec.md §3.
type BiallelicRow struct {
	Chrom    string
	Pos      int64
	ID       string
	Ref      string
	Alt      string
	AltIndex int // 1-based index into the original ALT list

	Spanning bool // true iff Alt == "*"
	Symbolic bool // true iff Alt is a <TAG> symbolic allele

	Qual   *float64
	Filter []string

	Info   map[string]TypedValue
	Format []map[string]TypedValue // one map per sample, in header sample order

	// dedupKey is a cheap, non-cryptographic hash of (Chrom, Pos, Alt)
	// computed during decomposition and exposed through DedupKey.
	// BatchBuffer does not consult it and performs no deduplication. It
	// is not a substitute for RowBuilder's content fingerprint.
	dedupKey uint64
}

// DedupKey returns the cheap hash computed at decomposition time.
func (r *BiallelicRow) DedupKey() uint64 { return r.dedupKey }

// NormalizedRow is a BiallelicRow after the §4.4 left-align/trim
// rewrite. The invariant (spec.md §3) is: either it's an SNV
// (len(Ref)==len(Alt)==1), or Ref/Alt share neither a common final base
// in a way the algorithm would still trim, nor both leading and trailing
// characters equal.
type NormalizedRow struct {
	BiallelicRow
}
