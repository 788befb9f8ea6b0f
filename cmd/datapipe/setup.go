package main

import (
	"path/filepath"

	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/internal/importer"
	"github.com/tabwerk/datapipe/internal/processor"
	"github.com/tabwerk/datapipe/internal/service"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/pkg/log"
	"go.uber.org/zap"
)

func setupLogger(cfg *config.Config) func() {
	logger := log.NewLogger(cfg.Service.LogLevel)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	s := store.NewStore(db,
		store.WithWriteLockTimeout(cfg.Service.WriteLockTimeout),
		store.WithBackupPaths(cfg.Database.Name, cfg.Service.DataDir),
	)
	if err := s.InitialMigration(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

type services struct {
	datasets  *service.DatasetService
	scheduler *service.Scheduler
	figures   *service.FigureService
}

func buildServices(cfg *config.Config, s store.Store) services {
	datasets := service.NewDatasetService(s, importer.NewDefaultRegistry(), cfg.Service.DataDir)
	scheduler := service.NewScheduler(s, processor.NewDefaultRegistry(), datasets)
	return services{
		datasets:  datasets,
		scheduler: scheduler,
		figures:   service.NewFigureService(s),
	}
}

func archiveDefault(cfg *config.Config) string {
	return filepath.Join(cfg.Service.DataDir, "datapipe-backup.zip")
}
