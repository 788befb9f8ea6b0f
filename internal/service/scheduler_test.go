package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/service"
	st "github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("scheduler", Ordered, func() {
	var f *fixture

	BeforeAll(func() {
		f = newFixture(GinkgoT().TempDir())
	})

	AfterAll(func() {
		f.close()
	})

	AfterEach(func() {
		f.reset()
	})

	importFixture := func(name string) *model.Dataset {
		path := f.writeCSV(name+".csv", tenRowsOneGap())
		dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: name})
		Expect(err).To(BeNil())
		return dataset
	}

	Context("submit", func() {
		It("creates a pending job", func() {
			dataset := importFixture("submit-pending")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "cleaning",
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
			Expect(job.Progress).To(Equal(0.0))
		})

		It("rejects an unknown processor without creating a job", func() {
			dataset := importFixture("submit-unknown")

			_, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "resampling",
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidParameters{}))

			count, cerr := f.store.Job().Count(context.TODO())
			Expect(cerr).To(BeNil())
			Expect(count).To(Equal(int64(0)))
		})

		It("rejects invalid parameters without creating a job", func() {
			dataset := importFixture("submit-invalid")

			// even smoothing window violates the schema
			_, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID:  dataset.ID,
				Processor:  "smoothing",
				Parameters: map[string]any{"method": "moving-average", "window": 4},
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidParameters{}))

			count, cerr := f.store.Job().Count(context.TODO())
			Expect(cerr).To(BeNil())
			Expect(count).To(Equal(int64(0)))
		})

		It("rejects a missing dataset", func() {
			_, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: uuid.New(),
				Processor: "cleaning",
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("assigns distinct ids to concurrent submits", func() {
			dataset := importFixture("submit-concurrent")

			const n = 5
			ids := make(chan uuid.UUID, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
						DatasetID: dataset.ID,
						Processor: "cleaning",
					})
					Expect(err).To(BeNil())
					ids <- job.ID
				}()
			}
			wg.Wait()
			close(ids)

			seen := map[uuid.UUID]struct{}{}
			for id := range ids {
				seen[id] = struct{}{}
			}
			Expect(seen).To(HaveLen(n))
		})
	})

	Context("run", func() {
		It("drives a cleaning job to completed with a derived dataset", func() {
			dataset := importFixture("run-cleaning")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID:  dataset.ID,
				Processor:  "cleaning",
				Parameters: map[string]any{"strategy": "drop"},
			})
			Expect(err).To(BeNil())

			job, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
			Expect(job.Progress).To(Equal(1.0))
			Expect(job.StartedAt).ToNot(BeNil())
			Expect(job.FinishedAt).ToNot(BeNil())
			Expect(job.OutputDatasetID).ToNot(BeNil())

			// the gap row is dropped
			output, err := f.datasets.Get(context.TODO(), *job.OutputDatasetID)
			Expect(err).To(BeNil())
			Expect(output.Rows).To(Equal(9))
			Expect(*output.ParentJobID).To(Equal(job.ID))

			table, err := f.datasets.LoadPayload(output)
			Expect(err).To(BeNil())
			Expect(table.NumRows()).To(Equal(9))
		})

		It("produces an analysis result for statistics", func() {
			dataset := importFixture("run-statistics")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "statistics",
			})
			Expect(err).To(BeNil())

			job, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
			Expect(job.OutputResultID).ToNot(BeNil())
			Expect(job.OutputDatasetID).To(BeNil())

			results, err := f.store.AnalysisResult().ListByJob(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ResultType).To(Equal("statistics"))
		})

		It("completes correlation over a constant column with a null entry", func() {
			path := f.writeCSV("run-constant.csv", "x,y\n7,1\n7,2\n7,3\n7,4\n")
			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "run-constant"})
			Expect(err).To(BeNil())

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID:  dataset.ID,
				Processor:  "statistics",
				Parameters: map[string]any{"correlation": true},
			})
			Expect(err).To(BeNil())

			job, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
			Expect(job.OutputResultID).ToNot(BeNil())

			result, err := f.store.AnalysisResult().Get(context.TODO(), *job.OutputResultID)
			Expect(err).To(BeNil())
			corr, ok := result.Results.Data["correlation"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(corr).To(HaveKey("x:y"))
			Expect(corr["x:y"]).To(BeNil())
		})

		It("fails the job when the window exceeds the row count", func() {
			dataset := importFixture("run-window")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID:  dataset.ID,
				Processor:  "smoothing",
				Parameters: map[string]any{"method": "moving-average", "window": 11},
			})
			Expect(err).To(BeNil())

			_, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())

			job, err = f.scheduler.Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorMessage).ToNot(BeEmpty())
			Expect(job.OutputDatasetID).To(BeNil())
		})

		It("refuses to run a completed job again", func() {
			dataset := importFixture("run-twice")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "cleaning",
			})
			Expect(err).To(BeNil())

			_, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())

			_, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))
		})

		It("reports a missing job", func() {
			_, err := f.scheduler.Run(context.TODO(), uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("cancel", func() {
		It("fails a pending job with the cancellation reason", func() {
			dataset := importFixture("cancel-pending")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "cleaning",
			})
			Expect(err).To(BeNil())

			Expect(f.scheduler.Cancel(context.TODO(), job.ID)).To(Succeed())

			job, err = f.scheduler.Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorMessage).To(Equal(model.CancelledReason))
			Expect(job.FinishedAt).ToNot(BeNil())
		})

		It("refuses to cancel a terminal job", func() {
			dataset := importFixture("cancel-terminal")

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "cleaning",
			})
			Expect(err).To(BeNil())

			_, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())

			err = f.scheduler.Cancel(context.TODO(), job.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidTransition{}))
		})

		It("reports a missing job", func() {
			err := f.scheduler.Cancel(context.TODO(), uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("reconcile", func() {
		insertRunningJob := func(datasetID uuid.UUID) uuid.UUID {
			id := uuid.New()
			tx := f.gormDB.Exec(fmt.Sprintf(
				"INSERT INTO processing_jobs (id, dataset_id, processor, status, progress, created_at) VALUES ('%s', '%s', 'cleaning', '%s', 0.5, '%s');",
				id.String(), datasetID.String(), model.JobStatusRunning, time.Now().Format(time.RFC3339)))
			Expect(tx.Error).To(BeNil())
			return id
		}

		It("fails running jobs with no live worker", func() {
			dataset := importFixture("reconcile-stale")
			jobID := insertRunningJob(dataset.ID)

			reconciled, err := f.scheduler.ReconcileStaleJobs(context.TODO())
			Expect(err).To(BeNil())
			Expect(reconciled).To(Equal(1))

			job, err := f.scheduler.Get(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorMessage).To(Equal(model.CrashedReason))
		})

		It("does nothing when no job is running", func() {
			reconciled, err := f.scheduler.ReconcileStaleJobs(context.TODO())
			Expect(err).To(BeNil())
			Expect(reconciled).To(Equal(0))
		})
	})

	Context("storage busy", func() {
		It("waits out a concurrent writer and then submits", func() {
			dataset := importFixture("busy-submit")

			ctx, err := f.store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			// the gate wait is 2s; release it after 200ms so the blocked
			// submit acquires the gate instead of timing out
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				time.Sleep(200 * time.Millisecond)
				_, cerr := st.Commit(ctx)
				Expect(cerr).To(BeNil())
			}()

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{
				DatasetID: dataset.ID,
				Processor: "cleaning",
			})
			<-done
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
		})
	})
})
