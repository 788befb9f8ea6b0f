package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/importer"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/internal/store/model"
	"github.com/tabwerk/datapipe/pkg/metrics"
	"github.com/tabwerk/datapipe/pkg/tabular"
	"go.uber.org/zap"
)

// DatasetService ingests files through the importer registry and owns the
// payload files on disk. Raw imports land under <dataDir>/raw, derived
// payloads under <dataDir>/processed.
type DatasetService struct {
	store     store.Store
	importers *importer.Registry
	dataDir   string
}

func NewDatasetService(store store.Store, importers *importer.Registry, dataDir string) *DatasetService {
	return &DatasetService{store: store, importers: importers, dataDir: dataDir}
}

// ImportRequest names the dataset being created from a file.
type ImportRequest struct {
	Path        string
	Name        string
	Description string
	Options     importer.Options
}

// Import parses the file, persists the payload as a CSV snapshot and
// creates the Dataset row in one transaction. No partial state survives a
// failure: the payload file is removed if the insert does not commit.
func (s *DatasetService) Import(ctx context.Context, req ImportRequest) (*model.Dataset, error) {
	imp, found := s.importers.Find(req.Path)
	if !found {
		return nil, NewErrUnsupportedFormat(req.Path)
	}

	name := req.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	}

	// fail-fast duplicate check; the unique index is the backstop
	if _, err := s.store.Dataset().GetByName(ctx, name); err == nil {
		metrics.IncreaseImportsTotalMetric(imp.Name(), "duplicate")
		return nil, NewErrDuplicateDataset(name)
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	table, meta, err := imp.Import(req.Path, req.Options)
	if err != nil {
		metrics.IncreaseImportsTotalMetric(imp.Name(), "failed")
		return nil, NewErrImportFailure(req.Path, err)
	}

	id := uuid.New()
	payloadPath, err := s.writePayload("raw", id, table)
	if err != nil {
		return nil, err
	}

	var fileSize int64
	if info, err := os.Stat(req.Path); err == nil {
		fileSize = info.Size()
	}

	rows, cols := table.Shape()
	dataset := model.Dataset{
		ID:          id,
		Name:        name,
		SourcePath:  req.Path,
		FilePath:    payloadPath,
		Format:      imp.Name(),
		FileSize:    fileSize,
		Rows:        rows,
		Cols:        cols,
		Columns:     model.MakeJSONField(table.Columns),
		Metadata:    model.MakeJSONField(meta),
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	created, err := s.createDataset(ctx, dataset)
	if err != nil {
		_ = os.Remove(payloadPath)
		metrics.IncreaseImportsTotalMetric(imp.Name(), "failed")
		return nil, err
	}

	metrics.IncreaseImportsTotalMetric(imp.Name(), "imported")
	zap.S().Named("dataset").Infof("imported %s as dataset %s (%dx%d)", req.Path, created.ID, rows, cols)
	return created, nil
}

// Preview parses at most maxRows rows without persisting anything.
func (s *DatasetService) Preview(path string, maxRows int, opts importer.Options) (*tabular.Table, map[string]any, error) {
	imp, found := s.importers.Find(path)
	if !found {
		return nil, nil, NewErrUnsupportedFormat(path)
	}
	opts.MaxRows = maxRows
	table, meta, err := imp.Import(path, opts)
	if err != nil {
		return nil, nil, NewErrImportFailure(path, err)
	}
	return table, meta, nil
}

func (s *DatasetService) Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	dataset, err := s.store.Dataset().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDatasetNotFound(id)
		}
		return nil, err
	}
	return dataset, nil
}

func (s *DatasetService) List(ctx context.Context) (model.DatasetList, error) {
	return s.store.Dataset().List(ctx)
}

// Delete removes a dataset with its whole lineage: jobs, the analysis
// results those jobs produced, and figures referencing either the dataset
// or one of its results. Deletion is rejected while any referencing job
// is still pending or running.
func (s *DatasetService) Delete(ctx context.Context, id uuid.UUID) error {
	dataset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	jobs, err := s.store.Job().List(ctx, store.NewJobQueryFilter().ByDataset(id))
	if err != nil {
		return err
	}
	live := 0
	for _, job := range jobs {
		if !job.Terminal() {
			live++
		}
	}
	if live > 0 {
		return NewErrDatasetInUse(id, live)
	}

	ctx, err = s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		results, err := s.store.AnalysisResult().ListByJob(ctx, job.ID)
		if err != nil {
			_, _ = store.Rollback(ctx)
			return err
		}
		for _, result := range results {
			if err := s.store.Figure().DeleteByResult(ctx, result.ID); err != nil {
				_, _ = store.Rollback(ctx)
				return err
			}
		}
		if err := s.store.AnalysisResult().DeleteByJob(ctx, job.ID); err != nil {
			_, _ = store.Rollback(ctx)
			return err
		}
	}
	if err := s.store.Job().DeleteByDataset(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return err
	}
	if err := s.store.Figure().DeleteByDataset(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return err
	}
	if err := s.store.Dataset().Delete(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return err
	}
	if _, err := store.Commit(ctx); err != nil {
		return err
	}

	if dataset.FilePath != "" {
		if err := os.Remove(dataset.FilePath); err != nil && !os.IsNotExist(err) {
			zap.S().Named("dataset").Warnf("removing payload %s: %v", dataset.FilePath, err)
		}
	}
	return nil
}

// LoadPayload reads a dataset's table back from its payload file.
func (s *DatasetService) LoadPayload(dataset *model.Dataset) (*tabular.Table, error) {
	return tabular.ReadCSVFile(dataset.FilePath)
}

func (s *DatasetService) writePayload(kind string, id uuid.UUID, table *tabular.Table) (string, error) {
	dir := filepath.Join(s.dataDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating payload directory: %w", err)
	}
	path := filepath.Join(dir, id.String()+".csv")
	if err := tabular.WriteCSVFile(path, table); err != nil {
		return "", err
	}
	return path, nil
}

func (s *DatasetService) createDataset(ctx context.Context, dataset model.Dataset) (*model.Dataset, error) {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Dataset().Create(ctx, dataset)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicateDataset(dataset.Name)
		}
		return nil, err
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}
