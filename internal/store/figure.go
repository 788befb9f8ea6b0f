package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/store/model"
	"gorm.io/gorm"
)

type Figure interface {
	Create(ctx context.Context, figure model.Figure) (*model.Figure, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Figure, error)
	List(ctx context.Context) (model.FigureList, error)
	DeleteByDataset(ctx context.Context, datasetID uuid.UUID) error
	DeleteByResult(ctx context.Context, resultID uuid.UUID) error
}

type FigureStore struct {
	db *gorm.DB
}

// Make sure we conform to Figure interface
var _ Figure = (*FigureStore)(nil)

func NewFigureStore(db *gorm.DB) Figure {
	return &FigureStore{db: db}
}

func (s *FigureStore) Create(ctx context.Context, figure model.Figure) (*model.Figure, error) {
	result := s.getDB(ctx).Create(&figure)
	if result.Error != nil {
		return nil, fmt.Errorf("creating figure: %w", result.Error)
	}
	return &figure, nil
}

func (s *FigureStore) Get(ctx context.Context, id uuid.UUID) (*model.Figure, error) {
	var figure model.Figure
	result := s.getDB(ctx).First(&figure, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying figure: %w", result.Error)
	}
	return &figure, nil
}

func (s *FigureStore) List(ctx context.Context) (model.FigureList, error) {
	var figures model.FigureList
	result := s.getDB(ctx).Order("created_at").Find(&figures)
	if result.Error != nil {
		return nil, fmt.Errorf("listing figures: %w", result.Error)
	}
	return figures, nil
}

func (s *FigureStore) DeleteByDataset(ctx context.Context, datasetID uuid.UUID) error {
	result := s.getDB(ctx).Where("dataset_id = ?", datasetID).Delete(&model.Figure{})
	if result.Error != nil {
		return fmt.Errorf("deleting figures for dataset %s: %w", datasetID, result.Error)
	}
	return nil
}

func (s *FigureStore) DeleteByResult(ctx context.Context, resultID uuid.UUID) error {
	result := s.getDB(ctx).Where("result_id = ?", resultID).Delete(&model.Figure{})
	if result.Error != nil {
		return fmt.Errorf("deleting figures for analysis result %s: %w", resultID, result.Error)
	}
	return nil
}

func (s *FigureStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
