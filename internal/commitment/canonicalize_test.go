package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

func TestFeltLessOrdering(t *testing.T) {
	require.True(t, feltLess(*felt.New(1), *felt.New(2)))
	require.False(t, feltLess(*felt.New(2), *felt.New(1)))
	require.False(t, feltLess(*felt.New(1), *felt.New(1)))
}

func TestCanonicalizeStateDiffSortsByAddress(t *testing.T) {
	d := &kv.StateDiff{
		DeployedContracts: []kv.DeployedContract{
			{Address: *felt.New(9)},
			{Address: *felt.New(1)},
			{Address: *felt.New(5)},
		},
	}
	got := canonicalizeStateDiff(d)
	require.True(t, got.DeployedContracts[0].Address.Equal(felt.New(1)))
	require.True(t, got.DeployedContracts[1].Address.Equal(felt.New(5)))
	require.True(t, got.DeployedContracts[2].Address.Equal(felt.New(9)))
}

func TestCanonicalizeStateDiffSortsStorageEntriesByKey(t *testing.T) {
	d := &kv.StateDiff{
		StorageDiffs: []kv.StorageDiff{
			{
				Address: *felt.New(1),
				Entries: []kv.StorageEntry{
					{Key: *felt.New(3)},
					{Key: *felt.New(1)},
					{Key: *felt.New(2)},
				},
			},
		},
	}
	got := canonicalizeStateDiff(d)
	require.True(t, got.StorageDiffs[0].Entries[0].Key.Equal(felt.New(1)))
	require.True(t, got.StorageDiffs[0].Entries[1].Key.Equal(felt.New(2)))
	require.True(t, got.StorageDiffs[0].Entries[2].Key.Equal(felt.New(3)))
}

func TestCanonicalizeStateDiffDoesNotMutateInput(t *testing.T) {
	original := []kv.DeployedContract{{Address: *felt.New(9)}, {Address: *felt.New(1)}}
	d := &kv.StateDiff{DeployedContracts: append([]kv.DeployedContract(nil), original...)}
	canonicalizeStateDiff(d)
	require.True(t, d.DeployedContracts[0].Address.Equal(felt.New(9)))
	require.True(t, d.DeployedContracts[1].Address.Equal(felt.New(1)))
}
