// Package importer recognizes and parses tabular files into payload
// tables. Importers are pure parsers; persisting the resulting Dataset is
// the service layer's job.
package importer

import (
	"sync"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

// Options tune a single import. Zero values mean "infer".
type Options struct {
	Delimiter string `json:"delimiter,omitempty"`
	HasHeader *bool  `json:"has_header,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	SkipRows  int    `json:"skip_rows,omitempty"`
	// MaxRows caps the parsed row count; used for previews. 0 is unlimited.
	MaxRows int `json:"max_rows,omitempty"`
}

func (o Options) hasHeader(fallback bool) bool {
	if o.HasHeader != nil {
		return *o.HasHeader
	}
	return fallback
}

type Importer interface {
	Name() string
	// CanImport reports whether this importer handles the file family,
	// judged by path alone so registries stay cheap to query.
	CanImport(path string) bool
	// Import parses the file into a table plus free-form metadata about
	// the structure it inferred (delimiter, sheet names, nesting).
	Import(path string, opts Options) (*tabular.Table, map[string]any, error)
}

// Registry dispatches to the first registered importer whose CanImport
// accepts the path. Registration order is dispatch order, so more specific
// formats must register before generic fallbacks.
type Registry struct {
	mu        sync.RWMutex
	importers []Importer
}

func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry registers the built-in importers, text last because
// its delimiter sniffing accepts almost anything.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCSV())
	r.Register(NewExcel())
	r.Register(NewJSON())
	r.Register(NewText())
	return r
}

func (r *Registry) Register(i Importer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importers = append(r.importers, i)
}

func (r *Registry) Find(path string) (Importer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, imp := range r.importers {
		if imp.CanImport(path) {
			return imp, true
		}
	}
	return nil, false
}

func limitRows(t *tabular.Table, maxRows int) *tabular.Table {
	if maxRows <= 0 || t.NumRows() <= maxRows {
		return t
	}
	out := tabular.New(t.Columns)
	out.Rows = t.Rows[:maxRows]
	return out
}
