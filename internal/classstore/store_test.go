package classstore

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

func TestWriteBlockThenClassInfo(t *testing.T) {
	s := New(newTestBackend(t))
	classHash, compiledHash := *felt.New(1), *felt.New(2)
	compiled := map[[32]byte][]byte{classHash.Bytes(): []byte("casm")}

	diff := &kv.StateDiff{DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: compiledHash}}}
	require.NoError(t, s.WriteBlock(diff, compiled, 7))

	info, err := s.ClassInfo(classHash)
	require.NoError(t, err)
	require.Equal(t, uint64(7), info.DeclaredAtBlock)
	require.True(t, info.CompiledClassHash.Equal(&compiledHash))

	casm, err := s.CompiledClass(classHash)
	require.NoError(t, err)
	require.Equal(t, []byte("casm"), casm)
}

func TestRedeclareSameCompiledHashIsNoop(t *testing.T) {
	s := New(newTestBackend(t))
	classHash, compiledHash := *felt.New(1), *felt.New(2)
	diff := &kv.StateDiff{DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: compiledHash}}}

	require.NoError(t, s.WriteBlock(diff, nil, 1))
	require.NotPanics(t, func() { require.NoError(t, s.WriteBlock(diff, nil, 2)) })

	info, err := s.ClassInfo(classHash)
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.DeclaredAtBlock)
}

func TestRedeclareDifferentCompiledHashPanics(t *testing.T) {
	s := New(newTestBackend(t))
	classHash := *felt.New(1)

	require.NoError(t, s.WriteBlock(&kv.StateDiff{
		DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: *felt.New(2)}},
	}, nil, 1))

	require.Panics(t, func() {
		s.WriteBlock(&kv.StateDiff{
			DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: *felt.New(3)}},
		}, nil, 2)
	})
}

func TestPendingClassVisibleBeforeFinalization(t *testing.T) {
	s := New(newTestBackend(t))
	classHash := *felt.New(1)
	diff := &kv.StateDiff{DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: *felt.New(2)}}}

	require.NoError(t, s.WritePending(diff, map[[32]byte][]byte{classHash.Bytes(): []byte("pending-casm")}))

	info, err := s.ClassInfo(classHash)
	require.NoError(t, err)
	require.Equal(t, uint64(0), info.DeclaredAtBlock)

	require.NoError(t, s.FinalizePending(9))
	info, err = s.ClassInfo(classHash)
	require.NoError(t, err)
	require.Equal(t, uint64(9), info.DeclaredAtBlock)
}

func TestClearPendingDropsOverlayWithoutFolding(t *testing.T) {
	s := New(newTestBackend(t))
	classHash := *felt.New(1)
	diff := &kv.StateDiff{DeclaredClasses: []kv.DeclaredClass{{ClassHash: classHash, CompiledClassHash: *felt.New(2)}}}
	require.NoError(t, s.WritePending(diff, nil))

	require.NoError(t, s.ClearPending())
	_, err := s.ClassInfo(classHash)
	require.ErrorIs(t, err, idb.NotFound())
}

func TestClassInfoNotFound(t *testing.T) {
	s := New(newTestBackend(t))
	_, err := s.ClassInfo(*felt.New(404))
	require.ErrorIs(t, err, idb.NotFound())
}
