package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	st "github.com/tabwerk/datapipe/internal/store"
	"github.com/tabwerk/datapipe/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm = "INSERT INTO processing_jobs (id, dataset_id, processor, status, progress, created_at) VALUES ('%s', '%s', '%s', '%s', %f, '%s');"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	now := func() string { return time.Now().Format(time.RFC3339) }

	insertJob := func(id uuid.UUID, datasetID uuid.UUID, status string, progress float64) {
		tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id.String(), datasetID.String(), "cleaning", status, progress, now()))
		Expect(tx.Error).To(BeNil())
	}

	BeforeAll(func() {
		cfg := testConfig(GinkgoT().TempDir())
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(Succeed())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM processing_jobs;")
	})

	Context("list", func() {
		It("filters by status", func() {
			datasetID := uuid.New()
			insertJob(uuid.New(), datasetID, model.JobStatusPending, 0)
			insertJob(uuid.New(), datasetID, model.JobStatusRunning, 0.5)

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByStatus(model.JobStatusRunning))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].Status).To(Equal(model.JobStatusRunning))
		})

		It("filters by dataset", func() {
			datasetID := uuid.New()
			insertJob(uuid.New(), datasetID, model.JobStatusPending, 0)
			insertJob(uuid.New(), uuid.New(), model.JobStatusPending, 0)

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByDataset(datasetID))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].DatasetID).To(Equal(datasetID))
		})
	})

	Context("transition", func() {
		It("moves a pending job to running", func() {
			id := uuid.New()
			insertJob(id, uuid.New(), model.JobStatusPending, 0)

			started := time.Now()
			ok, err := s.Job().Transition(context.TODO(), id, model.JobStatusPending, st.TransitionUpdates{
				Status:    model.JobStatusRunning,
				StartedAt: &started,
			})
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))
			Expect(job.StartedAt).ToNot(BeNil())
		})

		It("refuses the guarded update from the wrong state", func() {
			id := uuid.New()
			insertJob(id, uuid.New(), model.JobStatusCompleted, 1)

			ok, err := s.Job().Transition(context.TODO(), id, model.JobStatusPending, st.TransitionUpdates{
				Status: model.JobStatusRunning,
			})
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
		})

		It("reports false for an unknown job", func() {
			ok, err := s.Job().Transition(context.TODO(), uuid.New(), model.JobStatusPending, st.TransitionUpdates{
				Status: model.JobStatusRunning,
			})
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
		})

		It("records terminal fields on failure", func() {
			id := uuid.New()
			insertJob(id, uuid.New(), model.JobStatusRunning, 0.4)

			finished := time.Now()
			message := "smoothing window exceeds row count"
			ok, err := s.Job().Transition(context.TODO(), id, model.JobStatusRunning, st.TransitionUpdates{
				Status:       model.JobStatusFailed,
				ErrorMessage: &message,
				FinishedAt:   &finished,
			})
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.ErrorMessage).To(Equal(message))
			Expect(job.FinishedAt).ToNot(BeNil())
		})
	})

	Context("progress", func() {
		It("moves forward only", func() {
			id := uuid.New()
			insertJob(id, uuid.New(), model.JobStatusRunning, 0.5)

			Expect(s.Job().UpdateProgress(context.TODO(), id, 0.8)).To(Succeed())
			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Progress).To(Equal(0.8))

			Expect(s.Job().UpdateProgress(context.TODO(), id, 0.3)).To(Succeed())
			job, err = s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Progress).To(Equal(0.8))
		})

		It("ignores jobs not running", func() {
			id := uuid.New()
			insertJob(id, uuid.New(), model.JobStatusPending, 0)

			Expect(s.Job().UpdateProgress(context.TODO(), id, 0.5)).To(Succeed())
			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.Progress).To(Equal(0.0))
		})
	})

	Context("delete by dataset", func() {
		It("removes all jobs referencing the dataset", func() {
			datasetID := uuid.New()
			insertJob(uuid.New(), datasetID, model.JobStatusCompleted, 1)
			insertJob(uuid.New(), datasetID, model.JobStatusFailed, 0)
			insertJob(uuid.New(), uuid.New(), model.JobStatusPending, 0)

			Expect(s.Job().DeleteByDataset(context.TODO(), datasetID)).To(Succeed())

			count, err := s.Job().Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
