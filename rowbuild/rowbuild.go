// Package rowbuild implements RowBuilder: projecting a NormalizedRow
// into the target table's column tuple, synthesizing the derived
// spatial-range and content-fingerprint columns, and enforcing the
// chromosome identifier policy. See spec.md §4.5.
package rowbuild

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/grailbio/base/errors"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/variant"
)

// ChromMode is the chromosome identifier policy, fixed per load and
// frozen at LoadCoordinator init, per spec.md §4.5.
type ChromMode int

const (
	// ChromConstrained restricts chromosome values to a fixed alphabet.
	ChromConstrained ChromMode = iota
	// ChromOpen allows free-text chromosome values.
	ChromOpen
)

// ErrUnknownChromosome is returned in ChromConstrained mode when a row's
// chromosome isn't in the configured alphabet.
var ErrUnknownChromosome = errors.New("rowbuild: chromosome not in constrained alphabet")

// DefaultConstrainedAlphabet is the standard human autosome/sex/mito set
// named in spec.md §4.5.
var DefaultConstrainedAlphabet = func() map[string]bool {
	m := make(map[string]bool, 25)
	for i := 1; i <= 22; i++ {
		m[fmt.Sprintf("chr%d", i)] = true
	}
	m["chrX"] = true
	m["chrY"] = true
	m["chrM"] = true
	return m
}()

// Options configures RowBuilder, grounded on the teacher's small
// options-struct idiom (pam.WriteOpts, pileup/snp.Opts).
type Options struct {
	Mode ChromMode
	// Alphabet is consulted only when Mode == ChromConstrained; nil means
	// DefaultConstrainedAlphabet.
	Alphabet map[string]bool
	// BatchID is stamped onto every row built under this option set, the
	// owning LoadBatch's identifier (spec.md §4.5's "owning audit batch id").
	BatchID string
}

// Row is the target column tuple: scalars plus the two derived columns.
type Row struct {
	Chrom       string
	Pos         int64
	ID          string
	Ref         string
	Alt         string
	AltIndex    int
	Qual        *float64
	Filter      []string
	Spanning    bool

	Info   map[string]variant.TypedValue
	Format []map[string]variant.TypedValue

	RangeLower int64
	RangeUpper int64 // exclusive

	Fingerprint string // hex MD5 of chrom|pos|ref|alt
	BatchID     string
}

// Build projects row into the target tuple, applying the frozen column
// projection from dict (consulted for presence/validation only; actual
// column naming lives in header.HeaderField.ColumnName and is read by
// copyio at encode time) and opts' chromosome policy.
func Build(row variant.NormalizedRow, dict *header.Dict, opts Options) (Row, error) {
	alphabet := opts.Alphabet
	if alphabet == nil {
		alphabet = DefaultConstrainedAlphabet
	}
	if opts.Mode == ChromConstrained && !alphabet[row.Chrom] {
		return Row{}, fmt.Errorf("%w: %s", ErrUnknownChromosome, row.Chrom)
	}

	lower, upper := spanRange(row)

	out := Row{
		Chrom:       row.Chrom,
		Pos:         row.Pos,
		ID:          row.ID,
		Ref:         row.Ref,
		Alt:         row.Alt,
		AltIndex:    row.AltIndex,
		Qual:        row.Qual,
		Filter:      row.Filter,
		Spanning:    row.Spanning,
		Info:        row.Info,
		Format:      row.Format,
		RangeLower:  lower,
		RangeUpper:  upper,
		Fingerprint: fingerprint(row.Chrom, row.Pos, row.Ref, row.Alt),
		BatchID:     opts.BatchID,
	}
	return out, nil
}

// spanRange resolves spec.md §9's Open Question: [pos, pos+len(ref)) for
// literal REF, [pos, pos+1) for symbolic ALTs (<DEL>, <DUP>, *).
func spanRange(row variant.NormalizedRow) (int64, int64) {
	if row.Symbolic || row.Spanning {
		return row.Pos, row.Pos + 1
	}
	return row.Pos, row.Pos + int64(len(row.Ref))
}

func fingerprint(chrom string, pos int64, ref, alt string) string {
	h := md5.New()
	fmt.Fprintf(h, "%s|%d|%s|%s", chrom, pos, ref, alt)
	return hex.EncodeToString(h.Sum(nil))
}
