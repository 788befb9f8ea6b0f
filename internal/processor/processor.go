// Package processor holds the transform contract and the built-in
// transform families (cleaning, smoothing, filtering, statistics).
// Processors are pure functions over their input table: they never touch
// storage and never mutate the table they are handed, so a failed run can
// be retried by submitting a fresh job without side effects.
package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

// ProgressFunc reports a completion fraction in [0,1]. Implementations
// that cannot report incremental progress call it with 0 at start and 1 at
// completion.
type ProgressFunc func(fraction float64)

// Result is the outcome of one processor invocation. Transform families
// set Table; the statistics family sets Statistics instead.
type Result struct {
	Table      *tabular.Table
	Statistics map[string]any
	Summary    string
}

type Processor interface {
	Name() string
	DefaultParameters() map[string]any
	// Validate checks parameters against the processor's schema without
	// touching any payload. It is called before a job record is created.
	Validate(params map[string]any) error
	Process(ctx context.Context, table *tabular.Table, params map[string]any, progress ProgressFunc) (*Result, error)
}

// InvalidParametersError reports a parameter schema violation.
type InvalidParametersError struct {
	Reasons []string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s", strings.Join(e.Reasons, "; "))
}

func NewInvalidParametersError(reasons ...string) *InvalidParametersError {
	return &InvalidParametersError{Reasons: reasons}
}

// UnknownColumnError reports a reference to a column the table lacks.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

// Registry is a name-keyed processor catalog.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
	names      []string
}

func NewRegistry() *Registry {
	return &Registry{processors: map[string]Processor{}}
}

// NewDefaultRegistry returns a registry with all built-in families.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCleaning())
	r.Register(NewSmoothing())
	r.Register(NewFiltering())
	r.Register(NewStatistics())
	return r
}

func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[p.Name()]; !exists {
		r.names = append(r.names, p.Name())
	}
	r.processors[p.Name()] = p
}

func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}
