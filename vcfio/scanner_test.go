package vcfio_test

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/vcfio"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

const testHeader = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allele depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	sample1
`

func parseHeader(t *testing.T, text string) *header.Dict {
	t.Helper()
	d, err := header.Parse(bufio.NewReader(strings.NewReader(text)))
	require.NoError(t, err)
	return d
}

func TestScannerBasicRecord(t *testing.T) {
	dict := parseHeader(t, testHeader)
	body := "chr1\t100\trs1\tA\tG,T\t50\tPASS\tDP=30;AF=0.1,0.2\tGT:AD\t0/1:10,5,2\n"

	s := vcfio.NewScanner(bytes.NewReader([]byte(body)), dict)
	var rec vcfpb.RawRecord
	require.True(t, s.Scan(&rec))
	require.NoError(t, s.Err())

	require.Equal(t, "chr1", string(rec.Chrom))
	require.Equal(t, int64(100), rec.Pos)
	require.Equal(t, 2, rec.NAlts())
	require.Equal(t, "G", string(rec.Alts[0]))
	require.Equal(t, "T", string(rec.Alts[1]))
	require.NotNil(t, rec.Qual)
	require.Equal(t, 50.0, *rec.Qual)
	require.Equal(t, []string{"PASS"}, rec.Filter)
	require.Equal(t, []string{"GT", "AD"}, rec.FormatKeys)
	require.Len(t, rec.SampleValues, 1)

	require.False(t, s.Scan(&rec))
	require.NoError(t, s.Err())
}

func TestScannerSkipsMalformedByDefault(t *testing.T) {
	dict := parseHeader(t, testHeader)
	body := "chr1\ttoo\tfew\tcolumns\n" + "chr1\t200\trs2\tA\tG\t.\t.\t.\tGT\t0/1\n"

	s := vcfio.NewScanner(bytes.NewReader([]byte(body)), dict)
	var rec vcfpb.RawRecord
	require.True(t, s.Scan(&rec))
	require.Equal(t, int64(200), rec.Pos)
	require.Equal(t, int64(1), s.Skipped())
	require.False(t, s.Scan(&rec))
	require.NoError(t, s.Err())
}

func TestScannerFatalWhenSkipDisabled(t *testing.T) {
	dict := parseHeader(t, testHeader)
	body := "chr1\ttoo\tfew\n"

	s := vcfio.NewScanner(bytes.NewReader([]byte(body)), dict)
	s.SkipMalformed = false
	var rec vcfpb.RawRecord
	require.False(t, s.Scan(&rec))
	require.Error(t, s.Err())
	require.ErrorIs(t, s.Err(), vcfio.ErrMalformedRecord)
}

func TestOpenDetectsGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("chr1\t100\t.\tA\tG\t.\t.\t.\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := vcfio.Open(&buf, 0)
	require.NoError(t, err)
	out := make([]byte, 7)
	n, err := r.Read(out)
	require.NoError(t, err)
	require.Equal(t, "chr1\t10", string(out[:n]))
}

func TestOpenPassesThroughPlainText(t *testing.T) {
	src := strings.NewReader("chr1\t100\t.\tA\tG\t.\t.\t.\n")
	r, err := vcfio.Open(src, 0)
	require.NoError(t, err)
	out := make([]byte, 4)
	n, err := r.Read(out)
	require.NoError(t, err)
	require.Equal(t, "chr1", string(out[:n]))
}
