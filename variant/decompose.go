package variant

import (
	"strconv"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

// Sentinel errors for the per-field taxonomy in spec.md §7. They are
// never fatal: a field that hits one of these becomes missing and a
// Stats counter is incremented by the caller.
var (
	ErrCoercionFailure          = errors.New("variant: coercion failure")
	ErrArrayCardinalityMismatch = errors.New("variant: array cardinality mismatch")
)

// Stats accumulates per-field projection failures across a load, mirroring
// the teacher's metrics-accumulation style in markduplicates/metrics.go.
// Callers increment these with sync/atomic if shared across shard
// goroutines; Decompose itself is single-threaded per spec.md §5.
type Stats struct {
	CoercionFailures          int64
	ArrayCardinalityMismatches int64
}

// Decompose splits rec into len(rec.Alts) BiallelicRows, one per ALT
// allele, each carrying its original 1-based alt_index. dict supplies
// the typed field declarations used for per-ALT projection; each row's
// Format slice follows rec.SampleValues' sample order. Decompose never
// fails: malformed per-field data degrades to
// a missing value and a Stats increment, per spec.md §4.3/§7.
func Decompose(rec *vcfpb.RawRecord, dict *header.Dict, stats *Stats) []BiallelicRow {
	k := rec.NAlts()
	rows := make([]BiallelicRow, k)
	chrom := string(rec.Chrom)
	ref := string(rec.Ref)
	var id string
	if rec.ID != nil {
		id = string(rec.ID)
	}

	for i := 0; i < k; i++ {
		alt := string(rec.Alts[i])
		rows[i] = BiallelicRow{
			Chrom:    chrom,
			Pos:      rec.Pos,
			ID:       id,
			Ref:      ref,
			Alt:      alt,
			AltIndex: i + 1,
			Spanning: alt == "*",
			Symbolic: isSymbolic(alt),
			Qual:     rec.Qual,
			Filter:   rec.Filter,
			Info:     make(map[string]TypedValue, len(rec.InfoOrder)),
		}
	}

	for _, id := range rec.InfoOrder {
		field, declared := dict.Lookup(vcfpb.NamespaceInfo, id)
		tokens := rec.InfoValues[id]
		projectField(field, declared, tokens, k, stats, func(i int, v TypedValue) {
			rows[i].Info[id] = v
		})
	}

	if len(rec.FormatKeys) > 0 {
		nSamples := len(rec.SampleValues)
		for i := range rows {
			rows[i].Format = make([]map[string]TypedValue, nSamples)
			for s := range rows[i].Format {
				rows[i].Format[s] = make(map[string]TypedValue, len(rec.FormatKeys))
			}
		}
		for fi, fkey := range rec.FormatKeys {
			field, declared := dict.Lookup(vcfpb.NamespaceFormat, fkey)
			for s := range rec.SampleValues {
				tokens := rec.SampleValues[s][fi]
				if fkey == "GT" {
					projectGT(tokens, k, func(i int, v TypedValue) {
						rows[i].Format[s]["GT"] = v
					})
					continue
				}
				projectField(field, declared, tokens, k, stats, func(i int, v TypedValue) {
					rows[i].Format[s][fkey] = v
				})
			}
		}
	}

	for i := range rows {
		rows[i].dedupKey = farm.Hash64WithSeed([]byte(rows[i].Chrom+rows[i].Alt), uint64(rows[i].Pos))
	}
	return rows
}

func isSymbolic(alt string) bool {
	return len(alt) >= 2 && alt[0] == '<' && alt[len(alt)-1] == '>'
}

// projectField applies the §4.3 cardinality rules for one INFO/FORMAT
// field across all k rows, calling set(i, value) for each row i in
// [0,k).
func projectField(field *vcfpb.HeaderField, declared bool, tokens [][]byte, k int, stats *Stats, set func(int, TypedValue)) {
	if !declared {
		// Undeclared ANN/CSQ-style fields are treated as String,
		// spec.md §3's invariant; pass the raw joined token through
		// unchanged to every row (no cardinality to project by).
		v := TypedValue{Kind: vcfpb.StorageScalar, Present: len(tokens) > 0}
		if v.Present {
			v.ScalarStr = joinTokens(tokens)
		}
		for i := 0; i < k; i++ {
			set(i, v)
		}
		return
	}

	switch field.Cardinality.Kind {
	case vcfpb.CardFixed:
		if field.Cardinality.N == 0 {
			v := TypedValue{Kind: vcfpb.StorageFlag, Present: true, ScalarFlag: true}
			for i := 0; i < k; i++ {
				set(i, v)
			}
			return
		}
		v := coerceScalarOrArray(field, tokens)
		if v.Coerced {
			stats.CoercionFailures++
		}
		for i := 0; i < k; i++ {
			set(i, v)
		}

	case vcfpb.CardPerAlt:
		if len(tokens) != k {
			stats.ArrayCardinalityMismatches++
			missing := TypedValue{Kind: field.StorageKind}
			for i := 0; i < k; i++ {
				set(i, missing)
			}
			return
		}
		for i := 0; i < k; i++ {
			v := coerceOneToken(field, tokens[i])
			if v.Coerced {
				stats.CoercionFailures++
			}
			set(i, v)
		}

	case vcfpb.CardPerAllele:
		if len(tokens) != k+1 {
			stats.ArrayCardinalityMismatches++
			missing := TypedValue{Kind: vcfpb.StorageArray}
			for i := 0; i < k; i++ {
				set(i, missing)
			}
			return
		}
		for i := 0; i < k; i++ {
			set(i, coerceArray(field, [][]byte{tokens[0], tokens[i+1]}))
		}

	case vcfpb.CardPerGenotype:
		want := (k + 1) * (k + 2) / 2
		if len(tokens) != want {
			stats.ArrayCardinalityMismatches++
			missing := TypedValue{Kind: vcfpb.StorageArray}
			for i := 0; i < k; i++ {
				set(i, missing)
			}
			return
		}
		for i := 0; i < k; i++ {
			alt := i + 1
			idx0 := 0
			idx1 := alt * (alt + 1) / 2
			idx2 := (alt+1)*(alt+2)/2 - 1
			set(i, coerceArray(field, [][]byte{tokens[idx0], tokens[idx1], tokens[idx2]}))
		}

	case vcfpb.CardUnbounded:
		// Never split; pass the raw comma-joined string through to every
		// row, per spec.md §4.3.
		v := TypedValue{Kind: vcfpb.StorageScalar, Present: len(tokens) > 0}
		if v.Present {
			v.ScalarStr = joinTokens(tokens)
		}
		for i := 0; i < k; i++ {
			set(i, v)
		}
	}
}

func joinTokens(tokens [][]byte) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func coerceScalarOrArray(field *vcfpb.HeaderField, tokens [][]byte) TypedValue {
	if field.StorageKind == vcfpb.StorageArray {
		return coerceArray(field, tokens)
	}
	if len(tokens) == 0 {
		return TypedValue{Kind: field.StorageKind}
	}
	if len(tokens) > 1 {
		// More values than the declared Number=1 allows: missing, counted
		// as a coercion failure by the caller.
		return TypedValue{Kind: field.StorageKind, Coerced: true}
	}
	return coerceOneToken(field, tokens[0])
}

func coerceArray(field *vcfpb.HeaderField, tokens [][]byte) TypedValue {
	v := TypedValue{Kind: vcfpb.StorageArray, Present: true, Array: make([]string, len(tokens))}
	for i, t := range tokens {
		v.Array[i] = string(t)
	}
	return v
}

// coerceOneToken type-coerces a single token by the field's declared
// VCFType. Invalid tokens become missing rather than falling back to a
// string, per spec.md §4.3's contract.
func coerceOneToken(field *vcfpb.HeaderField, token []byte) TypedValue {
	if token == nil || (len(token) == 1 && token[0] == '.') {
		return TypedValue{Kind: field.StorageKind}
	}
	switch field.VCFType {
	case vcfpb.TypeInteger:
		n, err := strconv.ParseInt(string(token), 10, 64)
		if err != nil {
			return TypedValue{Kind: field.StorageKind, Coerced: true}
		}
		return TypedValue{Kind: field.StorageKind, Present: true, ScalarInt: n}
	case vcfpb.TypeFloat:
		f, err := strconv.ParseFloat(string(token), 64)
		if err != nil {
			return TypedValue{Kind: field.StorageKind, Coerced: true}
		}
		return TypedValue{Kind: field.StorageKind, Present: true, ScalarFloat: f}
	default:
		return TypedValue{Kind: field.StorageKind, Present: true, ScalarStr: string(token)}
	}
}

// projectGT rewrites a genotype token into its per-ALT biallelic form:
// allele index a becomes 1 iff a==altIndex, else 0; '*' and '.' pass
// through unchanged; the phase separator ('/' or '|') is preserved.
func projectGT(tokens [][]byte, k int, set func(int, TypedValue)) {
	if len(tokens) == 0 {
		v := TypedValue{Kind: vcfpb.StorageScalar}
		for i := 0; i < k; i++ {
			set(i, v)
		}
		return
	}
	raw := string(tokens[0])
	for i := 0; i < k; i++ {
		set(i, TypedValue{Kind: vcfpb.StorageScalar, Present: true, ScalarStr: rewriteGT(raw, i+1)})
	}
}

func rewriteGT(gt string, altIndex int) string {
	var b strings.Builder
	j := 0
	for j < len(gt) {
		sep := byte(0)
		end := j
		for end < len(gt) && gt[end] != '/' && gt[end] != '|' {
			end++
		}
		allele := gt[j:end]
		b.WriteString(rewriteAllele(allele, altIndex))
		if end < len(gt) {
			sep = gt[end]
			b.WriteByte(sep)
		}
		j = end + 1
	}
	return b.String()
}

func rewriteAllele(allele string, altIndex int) string {
	switch allele {
	case ".", "*":
		return allele
	case "0":
		return "0"
	default:
		n, err := strconv.Atoi(allele)
		if err != nil {
			return allele
		}
		if n == altIndex {
			return "1"
		}
		return "0"
	}
}
