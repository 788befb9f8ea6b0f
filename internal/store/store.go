package store

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/tabwerk/datapipe/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Dataset() Dataset
	Job() Job
	Figure() Figure
	AnalysisResult() AnalysisResult
	InitialMigration() error
	Statistics(ctx context.Context) (model.PipelineStats, error)
	Backup(path string) error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	gate     *writeGate
	dbPath   string
	dataDir  string
	migrate  sync.Once
	dataset  Dataset
	job      Job
	figure   Figure
	analysis AnalysisResult
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithWriteLockTimeout bounds the wait for the single-writer gate.
func WithWriteLockTimeout(wait time.Duration) Option {
	return func(s *DataStore) {
		s.gate = newWriteGate(wait)
	}
}

// WithBackupPaths points Backup at the database file and the payload
// directory to archive.
func WithBackupPaths(dbPath, dataDir string) Option {
	return func(s *DataStore) {
		s.dbPath = dbPath
		s.dataDir = dataDir
	}
}

func NewStore(db *gorm.DB, opts ...Option) Store {
	s := &DataStore{
		db:   db,
		gate: newWriteGate(5 * time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dataset = NewDatasetStore(db)
	s.job = NewJobStore(db)
	s.figure = NewFigureStore(db)
	s.analysis = NewAnalysisResultStore(db)
	return s
}

// NewTransactionContext acquires the write gate and opens a transaction
// bound to the returned context. Commit and Rollback release the gate on
// every exit path.
func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db, s.gate)
}

func (s *DataStore) Dataset() Dataset {
	return s.dataset
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Figure() Figure {
	return s.figure
}

func (s *DataStore) AnalysisResult() AnalysisResult {
	return s.analysis
}

// InitialMigration creates the schema if absent. Safe to call from
// multiple goroutines at startup; only the first call does work.
func (s *DataStore) InitialMigration() error {
	var err error
	s.migrate.Do(func() {
		err = s.db.AutoMigrate(
			&model.Dataset{},
			&model.ProcessingJob{},
			&model.AnalysisResult{},
			&model.Figure{},
		)
	})
	return err
}

func (s *DataStore) Statistics(ctx context.Context) (model.PipelineStats, error) {
	stats := model.PipelineStats{JobsByStatus: map[string]int64{}}

	if err := s.db.WithContext(ctx).Model(&model.Dataset{}).Count(&stats.Datasets).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Figure{}).Count(&stats.Figures).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&model.AnalysisResult{}).Count(&stats.Results).Error; err != nil {
		return stats, err
	}

	var rows []struct {
		Status string
		Total  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
		Select("status, count(*) as total").Group("status").Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, row := range rows {
		stats.JobsByStatus[row.Status] = row.Total
	}

	if s.dbPath != "" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DatabaseSize = info.Size()
		}
	}
	return stats, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
