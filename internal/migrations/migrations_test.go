package migrations

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/log"
)

func newTestBackend(t *testing.T) *idb.Backend {
	t.Helper()
	b, err := idb.Open(idb.Config{BasePath: t.TempDir(), ChainID: "SN_MAIN", ChainName: "mainnet"})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestApplyWithNoMigrationsIsNoop(t *testing.T) {
	m := NewMigrator()
	require.NoError(t, m.Apply(newTestBackend(t)))
}

func TestApplyRunsEachMigrationExactlyOnce(t *testing.T) {
	b := newTestBackend(t)
	calls := 0
	m := &Migrator{log: log.New("component", "migrations-test"), Migrations: []Migration{
		{Name: "add-probe-key", Up: func(b *idb.Backend) error { calls++; return nil }},
	}}

	require.NoError(t, m.Apply(b))
	require.NoError(t, m.Apply(b))
	require.Equal(t, 1, calls)
}

func TestApplyStopsOnFirstFailure(t *testing.T) {
	b := newTestBackend(t)
	m := &Migrator{log: log.New("component", "migrations-test"), Migrations: []Migration{
		{Name: "first", Up: func(b *idb.Backend) error { return nil }},
		{Name: "second", Up: func(b *idb.Backend) error { return fmt.Errorf("boom") }},
		{Name: "third", Up: func(b *idb.Backend) error { return fmt.Errorf("should not run") }},
	}}

	err := m.Apply(b)
	require.Error(t, err)

	applied, err := m.appliedSet(b)
	require.NoError(t, err)
	require.True(t, applied["first"])
	require.False(t, applied["second"])
	require.False(t, applied["third"])
}
