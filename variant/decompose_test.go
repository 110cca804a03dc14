package variant_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/variant"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

const decomposeTestHeader = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##INFO=<ID=AD,Number=R,Type=Integer,Description="Total allele depth">
##INFO=<ID=ANN,Number=.,Type=String,Description="Annotation">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Per-sample allele depth">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Genotype likelihood">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	sample1
`

func testDict(t *testing.T) *header.Dict {
	t.Helper()
	d, err := header.Parse(bufio.NewReader(strings.NewReader(decomposeTestHeader)))
	require.NoError(t, err)
	return d
}

func rec(chrom string, pos int64, ref string, alts []string) *vcfpb.RawRecord {
	r := &vcfpb.RawRecord{Chrom: []byte(chrom), Pos: pos, Ref: []byte(ref)}
	for _, a := range alts {
		r.Alts = append(r.Alts, []byte(a))
	}
	return r
}

func TestDecomposeRowCount(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T", "C"})
	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.Len(t, rows, 3)
	for i, row := range rows {
		require.Equal(t, i+1, row.AltIndex)
		require.Equal(t, "chr1", row.Chrom)
		require.Equal(t, int64(100), row.Pos)
	}
	require.Equal(t, "G", rows[0].Alt)
	require.Equal(t, "T", rows[1].Alt)
	require.Equal(t, "C", rows[2].Alt)
}

func TestDecomposePerAltProjection(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.InfoOrder = []string{"AF"}
	r.InfoValues = map[string][][]byte{"AF": {[]byte("0.1"), []byte("0.2")}}

	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.Equal(t, 0.1, rows[0].Info["AF"].ScalarFloat)
	require.Equal(t, 0.2, rows[1].Info["AF"].ScalarFloat)
}

func TestDecomposePerAlleleProjection(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.InfoOrder = []string{"AD"}
	r.InfoValues = map[string][][]byte{"AD": {[]byte("30"), []byte("10"), []byte("5")}}

	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.Equal(t, []string{"30", "10"}, rows[0].Info["AD"].Array)
	require.Equal(t, []string{"30", "5"}, rows[1].Info["AD"].Array)
}

func TestDecomposePerGenotypeProjectionDiploid(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.FormatKeys = []string{"PL"}
	// Diploid PL has (k+1)(k+2)/2 = 6 entries for k=2: 0/0,0/1,1/1,0/2,1/2,2/2.
	r.SampleValues = [][][][]byte{
		{{[]byte("0"), []byte("10"), []byte("20"), []byte("30"), []byte("40"), []byte("50")}},
	}
	rows := variant.Decompose(r, dict, &variant.Stats{})
	// ALT 1 (index 1): idx0=0, idx1=1, idx2=2 -> 0/1,1/1
	require.Equal(t, []string{"0", "10", "20"}, rows[0].Format[0]["PL"].Array)
	// ALT 2 (index 2): idx0=0, idx1=3, idx2=5
	require.Equal(t, []string{"0", "30", "50"}, rows[1].Format[0]["PL"].Array)
}

func TestDecomposeCardinalityMismatchIsMissing(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.InfoOrder = []string{"AF"}
	r.InfoValues = map[string][][]byte{"AF": {[]byte("0.1")}} // want 2, got 1

	stats := &variant.Stats{}
	rows := variant.Decompose(r, dict, stats)
	require.False(t, rows[0].Info["AF"].Present)
	require.False(t, rows[1].Info["AF"].Present)
	require.Equal(t, int64(1), stats.ArrayCardinalityMismatches)
}

func TestDecomposeCoercionFailureBecomesMissing(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G"})
	r.InfoOrder = []string{"DP"}
	r.InfoValues = map[string][][]byte{"DP": {[]byte("not-a-number")}}

	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.False(t, rows[0].Info["DP"].Present)
	require.True(t, rows[0].Info["DP"].Coerced)
}

func TestDecomposeGTRewrite(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.FormatKeys = []string{"GT"}
	r.SampleValues = [][][][]byte{{{[]byte("1/2")}}}

	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.Equal(t, "1/0", rows[0].Format[0]["GT"].ScalarStr)
	require.Equal(t, "0/1", rows[1].Format[0]["GT"].ScalarStr)
}

func TestDecomposeUndeclaredFieldPassesThrough(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"G", "T"})
	r.InfoOrder = []string{"CSQ"}
	r.InfoValues = map[string][][]byte{"CSQ": {[]byte("a|b|c")}}

	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.Equal(t, "a|b|c", rows[0].Info["CSQ"].ScalarStr)
	require.Equal(t, "a|b|c", rows[1].Info["CSQ"].ScalarStr)
}

func TestDecomposeSpanningAndSymbolic(t *testing.T) {
	dict := testDict(t)
	r := rec("chr1", 100, "A", []string{"*", "<DEL>"})
	rows := variant.Decompose(r, dict, &variant.Stats{})
	require.True(t, rows[0].Spanning)
	require.True(t, rows[1].Symbolic)
}
