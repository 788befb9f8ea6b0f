package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/service"
)

type recordFigureRequest struct {
	SourceID      uuid.UUID      `json:"source_id"`
	Name          string         `json:"name,omitempty"`
	PlotType      string         `json:"plot_type"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	OutputPath    string         `json:"output_path"`
	ThumbnailPath string         `json:"thumbnail_path,omitempty"`
	Description   string         `json:"description,omitempty"`
}

func (h *Handler) RecordFigure(w http.ResponseWriter, r *http.Request) {
	var req recordFigureRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}
	if req.SourceID == uuid.Nil || req.PlotType == "" || req.OutputPath == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "source_id, plot_type and output_path are required"})
		return
	}

	figure, err := h.figures.Record(r.Context(), service.RecordRequest{
		SourceID:      req.SourceID,
		Name:          req.Name,
		PlotType:      req.PlotType,
		Parameters:    req.Parameters,
		OutputPath:    req.OutputPath,
		ThumbnailPath: req.ThumbnailPath,
		Description:   req.Description,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, figure)
}

func (h *Handler) ListFigures(w http.ResponseWriter, r *http.Request) {
	figures, err := h.figures.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, figures)
}

func (h *Handler) GetFigure(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid figure id"})
		return
	}
	figure, err := h.figures.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, figure)
}
