package copyio_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/copyio"
)

func TestRoundTrip(t *testing.T) {
	kinds := []copyio.Kind{
		copyio.KindText,
		copyio.KindInt64,
		copyio.KindInt32,
		copyio.KindFloat64,
		copyio.KindBool,
		copyio.KindArrayText,
		copyio.KindArrayInt64,
		copyio.KindArrayFloat64,
		copyio.KindRangeInt8,
	}
	rows := [][]copyio.Field{
		{
			{Kind: copyio.KindText, Text: "chr1"},
			{Kind: copyio.KindInt64, Int64: 12345},
			{Kind: copyio.KindInt32, Int32: 2},
			{Kind: copyio.KindFloat64, Float64: 30.5},
			{Kind: copyio.KindBool, Bool: true},
			{Kind: copyio.KindArrayText, ArrayText: []string{"PASS"}},
			{Kind: copyio.KindArrayInt64, ArrayInt64: []int64{100, 10, 5}},
			{Kind: copyio.KindArrayFloat64, ArrayFloat64: []float64{0.1, 0.05}},
			{Kind: copyio.KindRangeInt8, RangeLower: 100, RangeUpper: 101, RangeLowerInc: true},
		},
		{
			{Kind: copyio.KindText, Null: true},
			{Kind: copyio.KindInt64, Int64: 99},
			{Kind: copyio.KindInt32, Int32: 1},
			{Kind: copyio.KindFloat64, Null: true},
			{Kind: copyio.KindBool, Bool: false},
			{Kind: copyio.KindArrayText, ArrayText: []string{}},
			{Kind: copyio.KindArrayInt64, ArrayInt64: []int64{}},
			{Kind: copyio.KindArrayFloat64, ArrayFloat64: []float64{1.5}},
			{Kind: copyio.KindRangeInt8, Empty: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, copyio.WriteHeader(&buf))
	for _, row := range rows {
		require.NoError(t, copyio.WriteTuple(&buf, row))
	}
	require.NoError(t, copyio.WriteTrailer(&buf))

	require.NoError(t, copyio.ReadHeader(&buf))
	for _, want := range rows {
		got, err := copyio.ReadTuple(&buf, kinds)
		require.NoError(t, err)
		for i := range want {
			requireFieldEqual(t, want[i], got[i])
		}
	}
	_, err := copyio.ReadTuple(&buf, kinds)
	require.ErrorIs(t, err, copyio.ErrTrailer)
}

func requireFieldEqual(t *testing.T, want, got copyio.Field) {
	t.Helper()
	require.Equal(t, want.Null, got.Null)
	if want.Null {
		return
	}
	switch want.Kind {
	case copyio.KindText:
		require.Equal(t, want.Text, got.Text)
	case copyio.KindInt64:
		require.Equal(t, want.Int64, got.Int64)
	case copyio.KindInt32:
		require.Equal(t, want.Int32, got.Int32)
	case copyio.KindFloat64:
		require.Equal(t, want.Float64, got.Float64)
	case copyio.KindBool:
		require.Equal(t, want.Bool, got.Bool)
	case copyio.KindArrayText:
		require.Equal(t, len(want.ArrayText), len(got.ArrayText))
		require.Equal(t, want.ArrayText, got.ArrayText)
	case copyio.KindArrayInt64:
		require.Equal(t, want.ArrayInt64, got.ArrayInt64)
	case copyio.KindArrayFloat64:
		require.Equal(t, want.ArrayFloat64, got.ArrayFloat64)
	case copyio.KindRangeInt8:
		require.Equal(t, want.Empty, got.Empty)
		if !want.Empty {
			require.Equal(t, want.RangeLower, got.RangeLower)
			require.Equal(t, want.RangeUpper, got.RangeUpper)
			require.Equal(t, want.RangeLowerInc, got.RangeLowerInc)
			require.Equal(t, want.RangeUpperInc, got.RangeUpperInc)
		}
	}
}
