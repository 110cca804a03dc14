package variant_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/refgenome"
	"github.com/Zacharyr41/vcfload/variant"
)

func biallelic(chrom string, pos int64, ref, alt string) variant.BiallelicRow {
	return variant.BiallelicRow{Chrom: chrom, Pos: pos, Ref: ref, Alt: alt, AltIndex: 1}
}

func TestNormalizeTrimsCommonSuffix(t *testing.T) {
	row := biallelic("chr1", 100, "CAT", "GAT")
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "C", out.Ref)
	require.Equal(t, "G", out.Alt)
	require.Equal(t, int64(100), out.Pos)
}

func TestNormalizeTrimsCommonPrefixAdvancesPos(t *testing.T) {
	row := biallelic("chr1", 100, "ATG", "ATC")
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "G", out.Ref)
	require.Equal(t, "C", out.Alt)
	require.Equal(t, int64(102), out.Pos)
}

func TestNormalizeInsertionContextFree(t *testing.T) {
	// VCF anchoring-base convention: REF=A, ALT=AT (insertion of T). The
	// shared anchor base trims away entirely in context-free mode, since
	// there's no reference to extend back into.
	row := biallelic("chr1", 100, "A", "AT")
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "", out.Ref)
	require.Equal(t, "T", out.Alt)
	require.Equal(t, int64(101), out.Pos)
}

func TestNormalizeSNVUnchanged(t *testing.T) {
	row := biallelic("chr1", 100, "A", "G")
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "A", out.Ref)
	require.Equal(t, "G", out.Alt)
	require.Equal(t, int64(100), out.Pos)
}

func TestNormalizeSkipsSpanningAndSymbolic(t *testing.T) {
	row := biallelic("chr1", 100, "A", "*")
	row.Spanning = true
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "A", out.Ref)
	require.Equal(t, "*", out.Alt)

	row2 := biallelic("chr1", 100, "A", "<DEL>")
	row2.Symbolic = true
	out2, err := variant.Normalize(row2, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Equal(t, "<DEL>", out2.Alt)
}

const fastaText = ">chr1\nGGGCATGATGATCCAT\n"

func TestNormalizeReferenceAssistedExtendsLeft(t *testing.T) {
	provider, err := refgenome.Load(strings.NewReader(fastaText))
	require.NoError(t, err)

	// Missing a VCF anchoring base: bare deletion with no shared base at
	// all, forcing the context-free trim to bottom out at an empty ALT.
	// Position 5 is 'A' (1-based) in GGGCATGATGATCCAT; deleting base 6 ('T').
	row := biallelic("chr1", 6, "T", "")
	out, err := variant.Normalize(row, variant.ModeReferenceAssisted, provider)
	require.NoError(t, err)
	require.NotEmpty(t, out.Ref)
	require.NotEmpty(t, out.Alt)
	require.Less(t, out.Pos, row.Pos)
}

func TestNormalizeContextFreeLeavesEmptySideWhenNoProvider(t *testing.T) {
	row := biallelic("chr1", 6, "T", "")
	out, err := variant.Normalize(row, variant.ModeContextFree, nil)
	require.NoError(t, err)
	require.Empty(t, out.Alt)
}
