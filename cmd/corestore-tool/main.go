// Command corestore-tool is the operator CLI for this storage core:
// open/backup/restore/inspect a database directly, with no node
// process attached. Grounded on cmd/rpcdaemon's cobra.Command +
// flag-populated Config + OpenDB-then-RunE shape
// (cmd/rpcdaemon/main.go), generalized from "open a remote db handle
// and start an RPC server" to "open a local backend and run one
// operator subcommand", and on cmd/hack's flag-driven single-purpose
// subcommands for the overall "thin wrapper directly over storage
// internals" spirit. This is an operator tool for this core only —
// not the node's own CLI (spec §4 Non-goals).
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/starknetfull/corestore/internal/blockstore"
	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/internal/metrics"
	"github.com/starknetfull/corestore/internal/migrations"
	"github.com/starknetfull/corestore/log"
)

var cfg idb.Config

func main() {
	root := &cobra.Command{
		Use:   "corestore-tool",
		Short: "Operator CLI for the corestore storage-and-verification core",
	}
	root.PersistentFlags().StringVar(&cfg.BasePath, "base-path", "", "database directory (required)")
	root.PersistentFlags().StringVar(&cfg.BackupDir, "backup-dir", "", "backup engine directory")
	root.PersistentFlags().StringVar(&cfg.ChainID, "chain-id", "SN_MAIN", "expected chain id")
	root.PersistentFlags().StringVar(&cfg.ChainName, "chain-name", "mainnet", "expected chain name")
	root.MarkPersistentFlagRequired("base-path")

	root.AddCommand(openCmd(), backupCmd(), restoreCmd(), sizesCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the database, run migrations, and report the sync tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := idb.Open(cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := migrations.NewMigrator().Apply(b); err != nil {
				return err
			}
			tip, ok, err := blockstore.New(b).SyncTip()
			if err != nil {
				return err
			}
			if !ok {
				log.Info("opened database", "path", cfg.BasePath, "sync_tip", "none")
				return nil
			}
			log.Info("opened database", "path", cfg.BasePath, "sync_tip", tip)
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Trigger an online backup via the dedicated backup worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.BackupDir == "" {
				return fmt.Errorf("--backup-dir is required for backup")
			}
			b, err := idb.Open(cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.Backup(); err != nil {
				return err
			}
			log.Info("backup complete", "backup_dir", cfg.BackupDir)
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the database from the newest backup before opening it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.BackupDir == "" {
				return fmt.Errorf("--backup-dir is required for restore")
			}
			restoreCfg := cfg
			restoreCfg.RestoreFromLatestBackup = true
			b, err := idb.Open(restoreCfg)
			if err != nil {
				return err
			}
			defer b.Close()
			log.Info("restored and opened database", "path", cfg.BasePath)
			return nil
		},
	}
}

func sizesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "Report on-disk size in bytes for every column family",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := idb.Open(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			reg := prometheus.NewRegistry()
			coll := metrics.NewCollector(b, reg)
			coll.Refresh()

			metricFamilies, err := reg.Gather()
			if err != nil {
				return err
			}
			for _, mf := range metricFamilies {
				for _, m := range mf.GetMetric() {
					var column string
					for _, l := range m.GetLabel() {
						if l.GetName() == "column" {
							column = l.GetValue()
						}
					}
					fmt.Printf("%-28s %12.0f bytes\n", column, m.GetGauge().GetValue())
				}
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := idb.Open(cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			return migrations.NewMigrator().Apply(b)
		},
	}
}
