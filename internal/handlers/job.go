package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/service"
	"github.com/tabwerk/datapipe/internal/store"
)

type submitJobRequest struct {
	DatasetID  uuid.UUID      `json:"dataset_id"`
	Processor  string         `json:"processor"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	// Run the job synchronously before responding.
	Run bool `json:"run,omitempty"`
}

func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}
	if req.DatasetID == uuid.Nil || req.Processor == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "dataset_id and processor are required"})
		return
	}

	job, err := h.scheduler.Submit(r.Context(), service.SubmitRequest{
		DatasetID:  req.DatasetID,
		Processor:  req.Processor,
		Name:       req.Name,
		Parameters: req.Parameters,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	if req.Run {
		job, err = h.scheduler.Run(r.Context(), job.ID)
		if err != nil {
			renderError(w, r, err)
			return
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, job)
}

func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.scheduler.Run(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := h.scheduler.Cancel(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.NewJobQueryFilter()
	if status := r.URL.Query().Get("status"); status != "" {
		filter = filter.ByStatus(status)
	}
	if raw := r.URL.Query().Get("dataset_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorReply{Error: "invalid dataset_id"})
			return
		}
		filter = filter.ByDataset(id)
	}

	jobs, err := h.scheduler.List(r.Context(), filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, jobs)
}

func (h *Handler) ListJobResults(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if _, err := h.scheduler.Get(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	results, err := h.store.AnalysisResult().ListByJob(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, results)
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid job id"})
		return uuid.Nil, false
	}
	return id, true
}
