package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/kv"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Config{
		BasePath:  t.TempDir(),
		ChainID:   "SN_MAIN",
		ChainName: "mainnet",
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestOpenCreatesEveryColumn(t *testing.T) {
	b := newTestBackend(t)
	for _, name := range kv.Names() {
		require.NotPanics(t, func() { b.GetColumn(name) })
	}
}

func TestChainMismatchRejectsReopenWithDifferentID(t *testing.T) {
	path := t.TempDir()
	b, err := Open(Config{BasePath: path, ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)
	b.Close()

	_, err = Open(Config{BasePath: path, ChainID: "SN_GOERLI", ChainName: "goerli"})
	require.ErrorIs(t, err, errs.ChainMismatch)
}

func TestChainMatchReopenSucceeds(t *testing.T) {
	path := t.TempDir()
	b, err := Open(Config{BasePath: path, ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)
	b.Close()

	b2, err := Open(Config{BasePath: path, ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)
	b2.Close()
}

func TestBackupUnavailableWithoutBackupDir(t *testing.T) {
	b := newTestBackend(t)
	err := b.Backup()
	require.ErrorIs(t, err, errs.BackupUnavailable)
}

func TestBackupAndRestore(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()

	b, err := Open(Config{BasePath: dataDir, BackupDir: backupDir, ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)

	wb := b.NewWriteBatch()
	wb.PutCF(b.GetColumn(kv.Meta), []byte("probe"), []byte("value"))
	require.NoError(t, b.Write(wb))
	wb.Destroy()

	require.NoError(t, b.Backup())
	b.Close()

	restoreDir := t.TempDir()
	b2, err := Open(Config{
		BasePath:                restoreDir,
		BackupDir:               backupDir,
		RestoreFromLatestBackup: true,
		ChainID:                 "SN_MAIN",
		ChainName:               "mainnet",
	})
	require.NoError(t, err)
	defer b2.Close()

	v, found, err := b2.CachedGetCF(b2.GetColumn(kv.Meta), kv.Meta, []byte("probe"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), v)
}

func TestCachedGetCFMissThenHit(t *testing.T) {
	b := newTestBackend(t)
	h := b.GetColumn(kv.Meta)

	_, found, err := b.CachedGetCF(h, kv.Meta, []byte("missing"))
	require.NoError(t, err)
	require.False(t, found)

	wb := b.NewWriteBatch()
	wb.PutCF(h, []byte("k"), []byte("v"))
	require.NoError(t, b.Write(wb))
	wb.Destroy()

	v, found, err := b.CachedGetCF(h, kv.Meta, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), v)
}

func TestMaybeFlushForced(t *testing.T) {
	b := newTestBackend(t)
	require.True(t, b.MaybeFlush(true))
}

func TestColumnSizesCoversEveryColumn(t *testing.T) {
	b := newTestBackend(t)
	sizes := b.ColumnSizes()
	require.Len(t, sizes, len(kv.Names()))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(NotFound()))
	require.False(t, IsNotFound(errs.Io))
}
