package dbaudit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/dbaudit"
)

func TestMemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := dbaudit.NewMemStore()

	_, ok, err := store.FindCompleted(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, ok)

	entry, err := store.InsertStarted(ctx, "/tmp/a.vcf", "fp1")
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, dbaudit.Started, entry.Status)

	_, ok, err = store.FindCompleted(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, ok, "started entry must not be found as completed")

	now := time.Now().UTC()
	require.NoError(t, store.UpdateCompleted(ctx, entry.ID, 42, now))

	found, ok, err := store.FindCompleted(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dbaudit.Completed, found.Status)
	require.Equal(t, int64(42), found.RowCount)
}

func TestMemStoreUpdateFailed(t *testing.T) {
	ctx := context.Background()
	store := dbaudit.NewMemStore()
	entry, err := store.InsertStarted(ctx, "/tmp/b.vcf", "fp2")
	require.NoError(t, err)

	require.NoError(t, store.UpdateFailed(ctx, entry.ID, 1234))
	_, ok, err := store.FindCompleted(ctx, "fp2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreUpdateUnknownIDReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	store := dbaudit.NewMemStore()
	require.ErrorIs(t, store.UpdateCompleted(ctx, "nope", 0, time.Now()), dbaudit.ErrNotFound)
	require.ErrorIs(t, store.UpdateFailed(ctx, "nope", 0), dbaudit.ErrNotFound)
}

func TestMemStoreDistinctFingerprintsIndependent(t *testing.T) {
	ctx := context.Background()
	store := dbaudit.NewMemStore()
	a, err := store.InsertStarted(ctx, "/tmp/a.vcf", "fpA")
	require.NoError(t, err)
	_, err = store.InsertStarted(ctx, "/tmp/b.vcf", "fpB")
	require.NoError(t, err)

	require.NoError(t, store.UpdateCompleted(ctx, a.ID, 1, time.Now()))

	_, ok, err := store.FindCompleted(ctx, "fpA")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.FindCompleted(ctx, "fpB")
	require.NoError(t, err)
	require.False(t, ok)
}
