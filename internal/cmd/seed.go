package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/fileutil"
	"github.com/lolmeida/kstack/internal/lock"
	"github.com/lolmeida/kstack/internal/store"
	"github.com/lolmeida/kstack/internal/ui"
)

var seedNoBackup bool

// seedCmd loads the catalog file into the SQLite store.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the catalog file into the SQLite store",
	Long: `Replace the contents of the SQLite store with the catalog file.

The database path comes from --db or KSTACK_DB. An existing database is
copied to <db>.bak first unless --no-backup is given.

Examples:
  kstack seed --db kstack.db --catalog catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedNoBackup, "no-backup", false, "Do not back up an existing database")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DB == "" {
		return fmt.Errorf("no database configured (set --db or KSTACK_DB)")
	}

	catalog, err := store.LoadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	return lock.WithLock(cfg.StateDir, "seed", func() error {
		if !seedNoBackup {
			if _, err := os.Stat(cfg.DB); err == nil {
				if err := fileutil.CopyFile(cfg.DB, cfg.DB+".bak"); err != nil {
					return fmt.Errorf("back up database: %w", err)
				}
				ui.Info("Backed up %s to %s.bak", cfg.DB, cfg.DB)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat database: %w", err)
			}
		}

		s, err := store.OpenSQLite(cfg.DB, false)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.Import(cmd.Context(), catalog); err != nil {
			return err
		}
		ui.Success("Seeded %s from %s (%d environments)", cfg.DB, cfg.Catalog, len(catalog.Environments))
		return nil
	})
}
