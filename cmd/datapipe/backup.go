package main

import (
	"github.com/spf13/cobra"
	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/internal/store"
	"go.uber.org/zap"
)

var backupCmd = &cobra.Command{
	Use:   "backup [ARCHIVE]",
	Short: "Archive the database and payload files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogger(cfg)
		defer cleanup()

		path := archiveDefault(cfg)
		if len(args) == 1 {
			path = args[0]
		}

		s, err := openStore(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		defer s.Close()

		if err := s.Backup(path); err != nil {
			return err
		}
		zap.S().Infof("backup written to %s", path)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE",
	Short: "Restore the database and payload files from an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogger(cfg)
		defer cleanup()

		// unpack before the store opens the database file
		if err := store.RestoreArchive(args[0], cfg.Database.Name, cfg.Service.DataDir); err != nil {
			return err
		}

		s, err := openStore(cfg)
		if err != nil {
			zap.S().Fatalw("opening restored data store", "error", err)
		}
		defer s.Close()

		zap.S().Infof("restored from %s", args[0])
		return nil
	},
}
