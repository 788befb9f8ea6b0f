package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/store/model"
	"gorm.io/gorm"
)

type Dataset interface {
	Create(ctx context.Context, dataset model.Dataset) (*model.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error)
	GetByName(ctx context.Context, name string) (*model.Dataset, error)
	List(ctx context.Context) (model.DatasetList, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type DatasetStore struct {
	db *gorm.DB
}

// Make sure we conform to Dataset interface
var _ Dataset = (*DatasetStore)(nil)

func NewDatasetStore(db *gorm.DB) Dataset {
	return &DatasetStore{db: db}
}

func (s *DatasetStore) Create(ctx context.Context, dataset model.Dataset) (*model.Dataset, error) {
	result := s.getDB(ctx).Create(&dataset)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating dataset: %w", result.Error)
	}
	return &dataset, nil
}

func (s *DatasetStore) Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	var dataset model.Dataset
	result := s.getDB(ctx).First(&dataset, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying dataset: %w", result.Error)
	}
	return &dataset, nil
}

func (s *DatasetStore) GetByName(ctx context.Context, name string) (*model.Dataset, error) {
	var dataset model.Dataset
	result := s.getDB(ctx).First(&dataset, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying dataset by name: %w", result.Error)
	}
	return &dataset, nil
}

func (s *DatasetStore) List(ctx context.Context) (model.DatasetList, error) {
	var datasets model.DatasetList
	result := s.getDB(ctx).Order("created_at").Find(&datasets)
	if result.Error != nil {
		return nil, fmt.Errorf("listing datasets: %w", result.Error)
	}
	return datasets, nil
}

func (s *DatasetStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Dataset{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("deleting dataset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *DatasetStore) Count(ctx context.Context) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.Dataset{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("counting datasets: %w", result.Error)
	}
	return count, nil
}

func (s *DatasetStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
