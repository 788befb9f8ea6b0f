package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/store/model"
	"gorm.io/gorm"
)

// JobQueryFilter narrows List results.
type JobQueryFilter struct {
	Status    string
	DatasetID *uuid.UUID
}

func NewJobQueryFilter() *JobQueryFilter {
	return &JobQueryFilter{}
}

func (f *JobQueryFilter) ByStatus(status string) *JobQueryFilter {
	f.Status = status
	return f
}

func (f *JobQueryFilter) ByDataset(id uuid.UUID) *JobQueryFilter {
	f.DatasetID = &id
	return f
}

// TransitionUpdates carries the column changes applied together with a
// guarded status transition.
type TransitionUpdates struct {
	Status          string
	Progress        *float64
	ErrorMessage    *string
	OutputDatasetID *uuid.UUID
	OutputResultID  *uuid.UUID
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

type Job interface {
	Create(ctx context.Context, job model.ProcessingJob) (*model.ProcessingJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ProcessingJob, error)
	List(ctx context.Context, filter *JobQueryFilter) (model.ProcessingJobList, error)
	Count(ctx context.Context) (int64, error)
	// Transition applies updates only when the job is currently in the
	// `from` status. It reports whether the guarded update took effect,
	// which is how illegal state-machine calls are detected atomically.
	Transition(ctx context.Context, id uuid.UUID, from string, updates TransitionUpdates) (bool, error)
	// UpdateProgress bumps progress, never backwards.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error
	DeleteByDataset(ctx context.Context, datasetID uuid.UUID) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.ProcessingJob) (*model.ProcessingJob, error) {
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		return nil, fmt.Errorf("creating processing job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying processing job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter) (model.ProcessingJobList, error) {
	tx := s.getDB(ctx).Model(&model.ProcessingJob{})
	if filter != nil {
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if filter.DatasetID != nil {
			tx = tx.Where("dataset_id = ?", *filter.DatasetID)
		}
	}

	var jobs model.ProcessingJobList
	result := tx.Order("created_at").Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("listing processing jobs: %w", result.Error)
	}
	return jobs, nil
}

func (s *JobStore) Count(ctx context.Context) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.ProcessingJob{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("counting processing jobs: %w", result.Error)
	}
	return count, nil
}

func (s *JobStore) Transition(ctx context.Context, id uuid.UUID, from string, updates TransitionUpdates) (bool, error) {
	fields := map[string]any{"status": updates.Status}
	if updates.Progress != nil {
		fields["progress"] = *updates.Progress
	}
	if updates.ErrorMessage != nil {
		fields["error_message"] = *updates.ErrorMessage
	}
	if updates.OutputDatasetID != nil {
		fields["output_dataset_id"] = *updates.OutputDatasetID
	}
	if updates.OutputResultID != nil {
		fields["output_result_id"] = *updates.OutputResultID
	}
	if updates.StartedAt != nil {
		fields["started_at"] = *updates.StartedAt
	}
	if updates.FinishedAt != nil {
		fields["finished_at"] = *updates.FinishedAt
	}

	result := s.getDB(ctx).Model(&model.ProcessingJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return false, fmt.Errorf("transitioning job %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	result := s.getDB(ctx).Model(&model.ProcessingJob{}).
		Where("id = ? AND status = ? AND progress <= ?", id, model.JobStatusRunning, progress).
		Update("progress", progress)
	if result.Error != nil {
		return fmt.Errorf("updating job progress: %w", result.Error)
	}
	return nil
}

func (s *JobStore) DeleteByDataset(ctx context.Context, datasetID uuid.UUID) error {
	result := s.getDB(ctx).Where("dataset_id = ?", datasetID).Delete(&model.ProcessingJob{})
	if result.Error != nil {
		return fmt.Errorf("deleting jobs for dataset %s: %w", datasetID, result.Error)
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
