package batch_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/batch"
	"github.com/Zacharyr41/vcfload/rowbuild"
)

func idGen() func() string {
	n := 0
	return func() string {
		n++
		return "b" + strconv.Itoa(n)
	}
}

func TestBufferSealsOnMaxRows(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{MaxRows: 2}, idGen())

	h, sealed, err := buf.Add(rowbuild.Row{}, 1, 1)
	require.NoError(t, err)
	require.False(t, sealed)
	require.Nil(t, h)

	h, sealed, err = buf.Add(rowbuild.Row{}, 1, 2)
	require.NoError(t, err)
	require.True(t, sealed)
	require.NotNil(t, h)
	require.Len(t, h.Rows, 2)
	require.Equal(t, batch.Sealed, h.State())
	require.Equal(t, int64(1), h.StartLine)
	require.Equal(t, int64(2), h.EndLine)
}

func TestBufferSealsOnMaxBytes(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{MaxRows: 1000, MaxBytes: 10}, idGen())

	_, sealed, err := buf.Add(rowbuild.Row{}, 6, 1)
	require.NoError(t, err)
	require.False(t, sealed)

	h, sealed, err := buf.Add(rowbuild.Row{}, 6, 2)
	require.NoError(t, err)
	require.True(t, sealed)
	require.Len(t, h.Rows, 2)
}

func TestBufferFlushReturnsPartialBatch(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{MaxRows: 1000}, idGen())
	_, sealed, err := buf.Add(rowbuild.Row{}, 1, 1)
	require.NoError(t, err)
	require.False(t, sealed)

	h := buf.Flush()
	require.NotNil(t, h)
	require.Len(t, h.Rows, 1)
	require.Equal(t, batch.Sealed, h.State())
}

func TestBufferFlushWithNothingBufferedReturnsNil(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{MaxRows: 1000}, idGen())
	require.Nil(t, buf.Flush())
}

func TestBufferCurrentIDLazilyCreatesHandleWithoutRows(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{MaxRows: 1000}, idGen())
	id := buf.CurrentID()
	require.Equal(t, "b1", id)
	// Calling again before any Add must return the same id, not mint a new one.
	require.Equal(t, id, buf.CurrentID())

	_, sealed, err := buf.Add(rowbuild.Row{}, 1, 5)
	require.NoError(t, err)
	require.False(t, sealed)

	h := buf.Flush()
	require.Equal(t, "b1", h.ID)
	require.Equal(t, int64(5), h.StartLine)
}

func TestBufferDefaultsMaxRows(t *testing.T) {
	buf := batch.NewBuffer(batch.Options{}, idGen())
	for i := 0; i < batch.DefaultMaxRows-1; i++ {
		_, sealed, err := buf.Add(rowbuild.Row{}, 0, int64(i))
		require.NoError(t, err)
		require.False(t, sealed)
	}
	_, sealed, err := buf.Add(rowbuild.Row{}, 0, int64(batch.DefaultMaxRows))
	require.NoError(t, err)
	require.True(t, sealed)
}
