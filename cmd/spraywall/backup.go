package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/storage"
)

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup PATH",
		Short: "Snapshot the configured storage backend to a file",
		Long: "Writes a copy of the catalogue to PATH: a SQLite database for the sqlite\n" +
			"backend, a JSON export for the memory backend. Postgres is backed up with\n" +
			"its own tooling.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, args[0])
		},
	}
}

func runBackup(cmd *cobra.Command, path string) error {
	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(a, storageCfg, config.GetDBConfig())
	if err != nil {
		return err
	}

	dumper, ok := backend.(storage.Dumpable)
	if !ok {
		return fmt.Errorf("storage type %q does not support backups", storageCfg.Type)
	}

	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	if err := dumper.Dump(path); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	a.Logger.Info("Backup written", "path", path, "storage", storageCfg.Type)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", path)
	return err
}
