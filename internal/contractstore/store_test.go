package contractstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

func newTestBackend(t *testing.T) *idb.Backend {
	t.Helper()
	b, err := idb.Open(idb.Config{BasePath: t.TempDir(), ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestWriteBlockThenContractClassHashAt(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)
	classHash := *felt.New(2)

	diff := &kv.StateDiff{DeployedContracts: []kv.DeployedContract{{Address: addr, ClassHash: classHash}}}
	require.NoError(t, s.WriteBlock(diff, 10))

	got, err := s.ContractClassHashAt(addr, 10)
	require.NoError(t, err)
	require.True(t, got.Equal(&classHash))

	_, err = s.ContractClassHashAt(addr, 9)
	require.ErrorIs(t, err, idb.NotFound())
}

func TestDeployImplicitlyZeroesNonceUnlessOverridden(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)

	diff := &kv.StateDiff{DeployedContracts: []kv.DeployedContract{{Address: addr, ClassHash: *felt.New(2)}}}
	require.NoError(t, s.WriteBlock(diff, 1))

	nonce, err := s.ContractNonceAt(addr, 1)
	require.NoError(t, err)
	require.True(t, nonce.IsZero())
}

func TestDeployWithExplicitNonceOverridesImplicitZero(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)

	diff := &kv.StateDiff{
		DeployedContracts: []kv.DeployedContract{{Address: addr, ClassHash: *felt.New(2)}},
		Nonces:            []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(7)}},
	}
	require.NoError(t, s.WriteBlock(diff, 1))

	nonce, err := s.ContractNonceAt(addr, 1)
	require.NoError(t, err)
	require.True(t, nonce.Equal(felt.New(7)))
}

func TestHistoryGetReturnsNewestAtOrBeforeBlock(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)

	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(1)}}}, 10))
	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(2)}}}, 20))

	at15, err := s.ContractNonceAt(addr, 15)
	require.NoError(t, err)
	require.True(t, at15.Equal(felt.New(1)))

	at20, err := s.ContractNonceAt(addr, 20)
	require.NoError(t, err)
	require.True(t, at20.Equal(felt.New(2)))

	at100, err := s.ContractNonceAt(addr, 100)
	require.NoError(t, err)
	require.True(t, at100.Equal(felt.New(2)))
}

func TestOutOfOrderWritePanics(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)
	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(1)}}}, 10))

	require.Panics(t, func() {
		s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(2)}}}, 5)
	})
}

func TestContractStorageAtPendingFallsBackToHistory(t *testing.T) {
	s := New(newTestBackend(t))
	addr, key := *felt.New(1), *felt.New(2)

	require.NoError(t, s.WriteBlock(&kv.StateDiff{
		StorageDiffs: []kv.StorageDiff{{Address: addr, Entries: []kv.StorageEntry{{Key: key, Value: *felt.New(100)}}}},
	}, 5))

	got, err := s.ContractStorageAtPending(addr, key, 5)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(100)))

	require.NoError(t, s.WritePending(&kv.StateDiff{
		StorageDiffs: []kv.StorageDiff{{Address: addr, Entries: []kv.StorageEntry{{Key: key, Value: *felt.New(200)}}}},
	}))

	got, err = s.ContractStorageAtPending(addr, key, 5)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(200)))

	require.NoError(t, s.ClearPending())
	got, err = s.ContractStorageAtPending(addr, key, 5)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(100)))
}

// TestHistoryGetAboveSyncTipIsNeverStale guards against memoizing a
// query whose target block hasn't been reached yet: a lookup made
// before the chain passes `at` must not cache an answer that a later
// write at or before `at` would falsify.
func TestHistoryGetAboveSyncTipIsNeverStale(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)

	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(1)}}}, 10))
	setSyncTip(t, s, 10)

	// Queried above the tip: 20 hasn't happened yet, so this must not
	// be memoized as "newest is block 10, value 1" forever.
	got, err := s.ContractNonceAt(addr, 20)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(1)))

	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(2)}}}, 15))
	setSyncTip(t, s, 15)

	got, err = s.ContractNonceAt(addr, 20)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(2)))
}

func setSyncTip(t *testing.T, s *Store, n uint64) {
	t.Helper()
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()
	wb.PutCF(s.b.GetColumn(kv.Meta), []byte(kv.MetaSyncTipKey), kv.EncodeBlockNumber(n))
	require.NoError(t, s.b.Write(wb))
}

func TestWarmAcceleratorBackfillsFromDisk(t *testing.T) {
	s := New(newTestBackend(t))
	addr := *felt.New(1)
	require.NoError(t, s.WriteBlock(&kv.StateDiff{Nonces: []kv.NonceUpdate{{Address: addr, Nonce: *felt.New(1)}}}, 50))

	fresh := New(s.b)
	require.NoError(t, fresh.WarmAccelerator())

	// block 10 precedes the earliest recorded write (50), so the
	// accelerator short-circuits the lookup to not-found without a seek.
	_, err := fresh.ContractNonceAt(addr, 10)
	require.ErrorIs(t, err, idb.NotFound())

	got, err := fresh.ContractNonceAt(addr, 50)
	require.NoError(t, err)
	require.True(t, got.Equal(felt.New(1)))
}
