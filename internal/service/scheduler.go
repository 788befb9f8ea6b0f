package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/tabwerk/datapipe/internal/processor"
	"github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/internal/store/model"
	"github.com/tabwerk/datapipe/pkg/metrics"
	"go.uber.org/zap"
)

// Scheduler drives processing jobs through their state machine:
// pending -> running -> {completed, failed}. Each run executes
// synchronously on the caller's goroutine; callers wanting asynchrony
// start Run on a goroutine of their own.
type Scheduler struct {
	store      store.Store
	processors *processor.Registry
	datasets   *DatasetService

	// ids of jobs being executed by this process, consulted by the
	// reconciler so a live run is never mistaken for a crashed one
	running sync.Map
}

func NewScheduler(store store.Store, processors *processor.Registry, datasets *DatasetService) *Scheduler {
	return &Scheduler{store: store, processors: processors, datasets: datasets}
}

// SubmitRequest describes one processor invocation against one dataset.
type SubmitRequest struct {
	DatasetID  uuid.UUID
	Processor  string
	Name       string
	Parameters map[string]any
}

// Submit validates the request and persists a pending job. Validation
// failures reject synchronously: no job row is created.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (*model.ProcessingJob, error) {
	proc, found := s.processors.Get(req.Processor)
	if !found {
		return nil, NewErrUnknownProcessor(req.Processor)
	}

	params := req.Parameters
	if params == nil {
		params = proc.DefaultParameters()
	}
	if err := proc.Validate(params); err != nil {
		return nil, NewErrInvalidParameters(err)
	}

	if _, err := s.datasets.Get(ctx, req.DatasetID); err != nil {
		return nil, err
	}

	job := model.ProcessingJob{
		ID:         uuid.New(),
		DatasetID:  req.DatasetID,
		Name:       req.Name,
		Processor:  req.Processor,
		Parameters: model.MakeJSONField(params),
		Status:     model.JobStatusPending,
		CreatedAt:  time.Now(),
	}

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Job().Create(ctx, job)
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.IncreaseJobsTotalMetric(req.Processor, model.JobStatusPending)
	zap.S().Named("scheduler").Infof("job %s submitted: %s on dataset %s", created.ID, req.Processor, req.DatasetID)
	return created, nil
}

// Run executes a pending job to a terminal state and returns the final
// record. Calling Run on a job that is already running or terminal fails
// with ErrInvalidTransition.
func (s *Scheduler) Run(ctx context.Context, jobID uuid.UUID) (*model.ProcessingJob, error) {
	// register as live before the row says running, so a reconciler
	// sweep between the two never mistakes this run for a crashed one
	s.running.Store(jobID, struct{}{})
	defer s.running.Delete(jobID)

	started := time.Now()
	zero := 0.0
	ok, err := s.transition(ctx, jobID, model.JobStatusPending, store.TransitionUpdates{
		Status:    model.JobStatusRunning,
		StartedAt: &started,
		Progress:  &zero,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, jobID, "run")
	}

	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result, procErr := s.execute(ctx, job)
	if procErr != nil {
		return s.finishFailed(ctx, job, procErr)
	}
	return s.finishCompleted(ctx, job, result)
}

// Cancel fails a pending job with a cancellation reason. Running jobs
// cannot be cancelled: there is no preemption primitive.
func (s *Scheduler) Cancel(ctx context.Context, jobID uuid.UUID) error {
	finished := time.Now()
	reason := model.CancelledReason
	ok, err := s.transition(ctx, jobID, model.JobStatusPending, store.TransitionUpdates{
		Status:       model.JobStatusFailed,
		ErrorMessage: &reason,
		FinishedAt:   &finished,
	})
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, jobID, "cancelled")
	}
	zap.S().Named("scheduler").Infof("job %s cancelled", jobID)
	return nil
}

func (s *Scheduler) Get(ctx context.Context, jobID uuid.UUID) (*model.ProcessingJob, error) {
	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}
	return job, nil
}

func (s *Scheduler) List(ctx context.Context, filter *store.JobQueryFilter) (model.ProcessingJobList, error) {
	return s.store.Job().List(ctx, filter)
}

// ReconcileStaleJobs fails every job persisted as running that no live
// worker in this process owns. Called at startup (before any job runs)
// and periodically by the reconciler, it closes the crash window where a
// terminated process would leave jobs running forever.
func (s *Scheduler) ReconcileStaleJobs(ctx context.Context) (int, error) {
	jobs, err := s.store.Job().List(ctx, store.NewJobQueryFilter().ByStatus(model.JobStatusRunning))
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, job := range jobs {
		if _, live := s.running.Load(job.ID); live {
			continue
		}
		finished := time.Now()
		reason := model.CrashedReason
		ok, err := s.transition(ctx, job.ID, model.JobStatusRunning, store.TransitionUpdates{
			Status:       model.JobStatusFailed,
			ErrorMessage: &reason,
			FinishedAt:   &finished,
		})
		if err != nil {
			return reconciled, err
		}
		if ok {
			reconciled++
			metrics.IncreaseJobsTotalMetric(job.Processor, model.JobStatusFailed)
			zap.S().Named("scheduler").Warnf("job %s marked failed: %s", job.ID, reason)
		}
	}
	return reconciled, nil
}

// StartReconciler sweeps for stale running jobs until ctx is cancelled.
func (s *Scheduler) StartReconciler(ctx context.Context, interval time.Duration) {
	updateTicker := jitterbug.New(interval, &jitterbug.Norm{Stdev: 100 * time.Millisecond, Mean: 0})
	defer updateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-updateTicker.C:
			if _, err := s.ReconcileStaleJobs(ctx); err != nil {
				zap.S().Named("scheduler").Errorf("reconciling stale jobs: %v", err)
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *model.ProcessingJob) (*processor.Result, error) {
	proc, found := s.processors.Get(job.Processor)
	if !found {
		return nil, NewErrUnknownProcessor(job.Processor)
	}

	dataset, err := s.datasets.Get(ctx, job.DatasetID)
	if err != nil {
		return nil, err
	}
	table, err := s.datasets.LoadPayload(dataset)
	if err != nil {
		return nil, err
	}

	var params map[string]any
	if job.Parameters != nil {
		params = job.Parameters.Data
	}

	progress := func(fraction float64) {
		s.persistProgress(ctx, job.ID, fraction)
	}
	return proc.Process(ctx, table, params, progress)
}

// persistProgress writes one progress update in its own transaction.
// Updates are best-effort: a busy gate drops the update rather than
// stalling the processor.
func (s *Scheduler) persistProgress(ctx context.Context, jobID uuid.UUID, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		zap.S().Named("scheduler").Debugf("skipping progress update for %s: %v", jobID, err)
		return
	}
	if err := s.store.Job().UpdateProgress(txCtx, jobID, fraction); err != nil {
		_, _ = store.Rollback(txCtx)
		return
	}
	_, _ = store.Commit(txCtx)
}

func (s *Scheduler) finishCompleted(ctx context.Context, job *model.ProcessingJob, result *processor.Result) (*model.ProcessingJob, error) {
	finished := time.Now()
	one := 1.0
	updates := store.TransitionUpdates{
		Status:     model.JobStatusCompleted,
		Progress:   &one,
		FinishedAt: &finished,
	}

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	// persist failures must not leave the job running forever, so every
	// abort below falls through to the failed terminal state
	var payloadPath string
	switch {
	case result.Table != nil:
		output, path, err := s.buildOutputDataset(job, result)
		if err != nil {
			_, _ = store.Rollback(txCtx)
			return s.finishFailed(ctx, job, fmt.Errorf("persisting output: %w", err))
		}
		payloadPath = path
		if _, err := s.store.Dataset().Create(txCtx, *output); err != nil {
			_, _ = store.Rollback(txCtx)
			_ = removeFile(payloadPath)
			return s.finishFailed(ctx, job, fmt.Errorf("persisting output: %w", err))
		}
		updates.OutputDatasetID = &output.ID
	case result.Statistics != nil:
		analysis := model.AnalysisResult{
			ID:         uuid.New(),
			JobID:      job.ID,
			Name:       outputName(job),
			ResultType: job.Processor,
			Results:    model.MakeJSONField(result.Statistics),
			Metadata:   model.MakeJSONField(map[string]any{"summary": result.Summary}),
			CreatedAt:  finished,
		}
		if _, err := s.store.AnalysisResult().Create(txCtx, analysis); err != nil {
			_, _ = store.Rollback(txCtx)
			return s.finishFailed(ctx, job, fmt.Errorf("persisting output: %w", err))
		}
		updates.OutputResultID = &analysis.ID
	}

	ok, err := s.store.Job().Transition(txCtx, job.ID, model.JobStatusRunning, updates)
	if err != nil || !ok {
		_, _ = store.Rollback(txCtx)
		_ = removeFile(payloadPath)
		if err != nil {
			return s.finishFailed(ctx, job, fmt.Errorf("persisting output: %w", err))
		}
		return nil, s.transitionError(ctx, job.ID, "completed")
	}
	if _, err := store.Commit(txCtx); err != nil {
		_ = removeFile(payloadPath)
		return s.finishFailed(ctx, job, fmt.Errorf("persisting output: %w", err))
	}

	metrics.IncreaseJobsTotalMetric(job.Processor, model.JobStatusCompleted)
	zap.S().Named("scheduler").Infof("job %s completed", job.ID)
	return s.store.Job().Get(ctx, job.ID)
}

func (s *Scheduler) finishFailed(ctx context.Context, job *model.ProcessingJob, procErr error) (*model.ProcessingJob, error) {
	finished := time.Now()
	message := procErr.Error()
	ok, err := s.transition(ctx, job.ID, model.JobStatusRunning, store.TransitionUpdates{
		Status:       model.JobStatusFailed,
		ErrorMessage: &message,
		FinishedAt:   &finished,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, job.ID, "failed")
	}

	metrics.IncreaseJobsTotalMetric(job.Processor, model.JobStatusFailed)
	zap.S().Named("scheduler").Warnf("job %s failed: %s", job.ID, message)
	return s.store.Job().Get(ctx, job.ID)
}

func (s *Scheduler) buildOutputDataset(job *model.ProcessingJob, result *processor.Result) (*model.Dataset, string, error) {
	id := uuid.New()
	path, err := s.datasets.writePayload("processed", id, result.Table)
	if err != nil {
		return nil, "", err
	}

	rows, cols := result.Table.Shape()
	jobID := job.ID
	output := &model.Dataset{
		ID:          id,
		Name:        outputName(job),
		ParentJobID: &jobID,
		FilePath:    path,
		Format:      "derived",
		Rows:        rows,
		Cols:        cols,
		Columns:     model.MakeJSONField(result.Table.Columns),
		Metadata:    model.MakeJSONField(map[string]any{"summary": result.Summary, "processor": job.Processor}),
		CreatedAt:   time.Now(),
	}
	return output, path, nil
}

// transition wraps a guarded status update in its own transaction.
func (s *Scheduler) transition(ctx context.Context, jobID uuid.UUID, from string, updates store.TransitionUpdates) (bool, error) {
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return false, err
	}
	ok, err := s.store.Job().Transition(txCtx, jobID, from, updates)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return false, err
	}
	if _, err := store.Commit(txCtx); err != nil {
		return false, err
	}
	return ok, nil
}

// transitionError distinguishes a missing job from an illegal transition.
func (s *Scheduler) transitionError(ctx context.Context, jobID uuid.UUID, op string) error {
	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrJobNotFound(jobID)
		}
		return err
	}
	return NewErrInvalidTransition(jobID, job.Status, op)
}

func outputName(job *model.ProcessingJob) string {
	if job.Name != "" {
		return job.Name + "-output"
	}
	return job.Processor + "-" + job.ID.String()[:8]
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	return os.Remove(path)
}
