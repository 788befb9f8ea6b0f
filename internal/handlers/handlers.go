package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tabwerk/datapipe/internal/service"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/pkg/requestid"
)

// Handler exposes the pipeline services over HTTP.
type Handler struct {
	datasets  *service.DatasetService
	scheduler *service.Scheduler
	figures   *service.FigureService
	store     store.Store
}

func New(datasets *service.DatasetService, scheduler *service.Scheduler, figures *service.FigureService, store store.Store) *Handler {
	return &Handler{datasets: datasets, scheduler: scheduler, figures: figures, store: store}
}

func (h *Handler) Routes(router chi.Router) {
	router.Get("/health", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/datasets", h.ImportDataset)
		r.Post("/datasets/preview", h.PreviewDataset)
		r.Get("/datasets", h.ListDatasets)
		r.Get("/datasets/{id}", h.GetDataset)
		r.Delete("/datasets/{id}", h.DeleteDataset)

		r.Post("/jobs", h.SubmitJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Post("/jobs/{id}/run", h.RunJob)
		r.Post("/jobs/{id}/cancel", h.CancelJob)
		r.Get("/jobs/{id}/results", h.ListJobResults)

		r.Post("/figures", h.RecordFigure)
		r.Get("/figures", h.ListFigures)
		r.Get("/figures/{id}", h.GetFigure)

		r.Get("/statistics", h.GetStatistics)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, statusFor(err))
	render.JSON(w, r, errorReply{Error: err.Error(), RequestID: requestid.FromRequest(r)})
}

type errorReply struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps service error types onto HTTP status codes.
func statusFor(err error) int {
	switch err.(type) {
	case *service.ErrResourceNotFound:
		return http.StatusNotFound
	case *service.ErrInvalidParameters, *service.ErrUnsupportedFormat, *service.ErrImportFailure:
		return http.StatusBadRequest
	case *service.ErrInvalidTransition, *service.ErrDatasetInUse, *service.ErrDuplicateDataset:
		return http.StatusConflict
	}
	if errors.Is(err, store.ErrStorageBusy) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
