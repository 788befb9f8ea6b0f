package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/store/model"
	"gorm.io/gorm"
)

type AnalysisResult interface {
	Create(ctx context.Context, result model.AnalysisResult) (*model.AnalysisResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.AnalysisResult, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) (model.AnalysisResultList, error)
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

type AnalysisResultStore struct {
	db *gorm.DB
}

// Make sure we conform to AnalysisResult interface
var _ AnalysisResult = (*AnalysisResultStore)(nil)

func NewAnalysisResultStore(db *gorm.DB) AnalysisResult {
	return &AnalysisResultStore{db: db}
}

func (s *AnalysisResultStore) Create(ctx context.Context, result model.AnalysisResult) (*model.AnalysisResult, error) {
	res := s.getDB(ctx).Create(&result)
	if res.Error != nil {
		return nil, fmt.Errorf("creating analysis result: %w", res.Error)
	}
	return &result, nil
}

func (s *AnalysisResultStore) Get(ctx context.Context, id uuid.UUID) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	res := s.getDB(ctx).First(&result, "id = ?", id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying analysis result: %w", res.Error)
	}
	return &result, nil
}

func (s *AnalysisResultStore) ListByJob(ctx context.Context, jobID uuid.UUID) (model.AnalysisResultList, error) {
	var results model.AnalysisResultList
	res := s.getDB(ctx).Where("job_id = ?", jobID).Order("created_at").Find(&results)
	if res.Error != nil {
		return nil, fmt.Errorf("listing analysis results: %w", res.Error)
	}
	return results, nil
}

func (s *AnalysisResultStore) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	res := s.getDB(ctx).Where("job_id = ?", jobID).Delete(&model.AnalysisResult{})
	if res.Error != nil {
		return fmt.Errorf("deleting analysis results for job %s: %w", jobID, res.Error)
	}
	return nil
}

func (s *AnalysisResultStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
