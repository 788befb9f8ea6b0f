package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/internal/store/model"
	"go.uber.org/zap"
)

// FigureService records figure metadata against a source, which may be a
// dataset or an analysis result. Rendering is out of scope; only the
// bookkeeping lives here.
type FigureService struct {
	store store.Store
}

func NewFigureService(store store.Store) *FigureService {
	return &FigureService{store: store}
}

// RecordRequest describes one rendered figure.
type RecordRequest struct {
	SourceID      uuid.UUID
	Name          string
	PlotType      string
	Parameters    map[string]any
	OutputPath    string
	ThumbnailPath string
	Description   string
}

// Record resolves the source id as a dataset first, then as an analysis
// result, and persists the figure linked to whichever matched.
func (s *FigureService) Record(ctx context.Context, req RecordRequest) (*model.Figure, error) {
	figure := model.Figure{
		ID:            uuid.New(),
		Name:          req.Name,
		PlotType:      req.PlotType,
		Parameters:    model.MakeJSONField(req.Parameters),
		OutputPath:    req.OutputPath,
		ThumbnailPath: req.ThumbnailPath,
		Description:   req.Description,
		CreatedAt:     time.Now(),
	}

	if _, err := s.store.Dataset().Get(ctx, req.SourceID); err == nil {
		sourceID := req.SourceID
		figure.DatasetID = &sourceID
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	} else if _, err := s.store.AnalysisResult().Get(ctx, req.SourceID); err == nil {
		sourceID := req.SourceID
		figure.ResultID = &sourceID
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	} else {
		return nil, NewErrSourceNotFound(req.SourceID)
	}

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Figure().Create(ctx, figure)
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	zap.S().Named("figure").Infof("recorded figure %s (%s)", created.ID, req.PlotType)
	return created, nil
}

func (s *FigureService) Get(ctx context.Context, id uuid.UUID) (*model.Figure, error) {
	figure, err := s.store.Figure().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrResourceNotFound(id, "figure")
		}
		return nil, err
	}
	return figure, nil
}

func (s *FigureService) List(ctx context.Context) (model.FigureList, error) {
	return s.store.Figure().List(ctx)
}
