package shard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zacharyr41/vcfload/internal/shard"
)

func TestSingleShardDegenerate(t *testing.T) {
	a := shard.New(1)
	require.Equal(t, 1, a.Count())
	require.Equal(t, 0, a.Of("chr1"))
	require.Equal(t, 0, a.Of("chrX"))
}

func TestZeroOrNegativeCountClampsToOne(t *testing.T) {
	require.Equal(t, 1, shard.New(0).Count())
	require.Equal(t, 1, shard.New(-3).Count())
}

func TestAssignmentStableAndInRange(t *testing.T) {
	a := shard.New(4)
	chroms := []string{"chr1", "chr2", "chrX", "chrY", "chrM", "chr22"}
	for _, c := range chroms {
		idx := a.Of(c)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 4)
		require.Equal(t, idx, a.Of(c), "repeated lookup must be stable")
	}
}

func TestAssignmentGroupsSameChromosomeTogether(t *testing.T) {
	a := shard.New(8)
	first := a.Of("chr7")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, a.Of("chr7"))
	}
}
