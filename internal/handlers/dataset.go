package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/importer"
	"github.com/tabwerk/datapipe/internal/service"
	"github.com/tabwerk/datapipe/pkg/tabular"
)

type importOptions struct {
	Delimiter string `json:"delimiter,omitempty"`
	HasHeader *bool  `json:"has_header,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	SkipRows  int    `json:"skip_rows,omitempty"`
}

func (o importOptions) toOptions() importer.Options {
	return importer.Options{
		Delimiter: o.Delimiter,
		HasHeader: o.HasHeader,
		Sheet:     o.Sheet,
		SkipRows:  o.SkipRows,
	}
}

type importRequest struct {
	Path        string        `json:"path"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Options     importOptions `json:"options,omitempty"`
}

func (h *Handler) ImportDataset(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}
	if req.Path == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "path is required"})
		return
	}

	dataset, err := h.datasets.Import(r.Context(), service.ImportRequest{
		Path:        req.Path,
		Name:        req.Name,
		Description: req.Description,
		Options:     req.Options.toOptions(),
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, dataset)
}

type previewRequest struct {
	Path    string        `json:"path"`
	MaxRows int           `json:"max_rows,omitempty"`
	Options importOptions `json:"options,omitempty"`
}

type previewReply struct {
	Columns  []string       `json:"columns"`
	Rows     [][]string     `json:"rows"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) PreviewDataset(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Path == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "path is required"})
		return
	}
	if req.MaxRows <= 0 {
		req.MaxRows = 10
	}

	table, meta, err := h.datasets.Preview(req.Path, req.MaxRows, req.Options.toOptions())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, previewReply{Columns: table.Columns, Rows: renderRows(table), Metadata: meta})
}

func renderRows(table *tabular.Table) [][]string {
	rows := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cell.String()
		}
		rows[i] = cells
	}
	return rows
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasets.List(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, datasets)
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid dataset id"})
		return
	}
	dataset, err := h.datasets.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dataset)
}

func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid dataset id"})
		return
	}
	if err := h.datasets.Delete(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
