package service_test

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/importer"
	"github.com/tabwerk/datapipe/internal/service"
	st "github.com/tabwerk/datapipe/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("dataset service", Ordered, func() {
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

	Context("import", func() {
		It("persists the table shape and a payload snapshot", func() {
			path := f.writeCSV("shape.csv", "a,b,c\n1,2,3\n4,5,6\n")

			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "shape"})
			Expect(err).To(BeNil())
			Expect(dataset.Rows).To(Equal(2))
			Expect(dataset.Cols).To(Equal(3))
			Expect(dataset.Format).To(Equal("csv"))
			Expect(dataset.Columns.Data).To(Equal([]string{"a", "b", "c"}))

			table, err := f.datasets.LoadPayload(dataset)
			Expect(err).To(BeNil())
			Expect(table.NumRows()).To(Equal(2))
			Expect(table.Columns).To(Equal([]string{"a", "b", "c"}))
		})

		It("defaults the name to the file base", func() {
			path := f.writeCSV("unnamed.csv", "a\n1\n")

			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path})
			Expect(err).To(BeNil())
			Expect(dataset.Name).To(Equal("unnamed"))
		})

		It("rejects a duplicate name", func() {
			path := f.writeCSV("dup.csv", "a\n1\n")

			_, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "dup"})
			Expect(err).To(BeNil())

			_, err = f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "dup"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrDuplicateDataset{}))
		})

		It("rejects an unsupported extension", func() {
			path := f.writeCSV("image.png", "not really an image")

			_, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrUnsupportedFormat{}))
		})

		It("reports a parse failure", func() {
			path := f.writeCSV("broken.json", "{not json")

			_, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrImportFailure{}))
		})
	})

	Context("preview", func() {
		It("limits rows without persisting", func() {
			path := f.writeCSV("preview.csv", tenRowsOneGap())

			table, _, err := f.datasets.Preview(path, 3, importer.Options{})
			Expect(err).To(BeNil())
			Expect(table.NumRows()).To(Equal(3))

			count, err := f.store.Dataset().Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(0)))
		})
	})

	Context("delete", func() {
		It("removes the dataset, its jobs and its payload file", func() {
			path := f.writeCSV("delete-me.csv", tenRowsOneGap())
			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "delete-me"})
			Expect(err).To(BeNil())

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{DatasetID: dataset.ID, Processor: "cleaning"})
			Expect(err).To(BeNil())
			_, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())

			Expect(f.datasets.Delete(context.TODO(), dataset.ID)).To(Succeed())

			_, err = f.datasets.Get(context.TODO(), dataset.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

			jobs, err := f.store.Job().List(context.TODO(), nil)
			Expect(err).To(BeNil())
			for _, j := range jobs {
				Expect(j.DatasetID).ToNot(Equal(dataset.ID))
			}

			_, err = os.Stat(dataset.FilePath)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("cascades to analysis results and figures recorded against them", func() {
			path := f.writeCSV("lineage.csv", tenRowsOneGap())
			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "lineage"})
			Expect(err).To(BeNil())

			job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{DatasetID: dataset.ID, Processor: "statistics"})
			Expect(err).To(BeNil())
			job, err = f.scheduler.Run(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(job.OutputResultID).ToNot(BeNil())

			figure, err := f.figures.Record(context.TODO(), service.RecordRequest{
				SourceID:   *job.OutputResultID,
				Name:       "lineage-histogram",
				PlotType:   "histogram",
				OutputPath: "figures/lineage.png",
			})
			Expect(err).To(BeNil())

			Expect(f.datasets.Delete(context.TODO(), dataset.ID)).To(Succeed())

			_, err = f.store.AnalysisResult().Get(context.TODO(), *job.OutputResultID)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
			_, err = f.store.Figure().Get(context.TODO(), figure.ID)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("refuses while a job is pending", func() {
			path := f.writeCSV("in-use.csv", tenRowsOneGap())
			dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "in-use"})
			Expect(err).To(BeNil())

			_, err = f.scheduler.Submit(context.TODO(), service.SubmitRequest{DatasetID: dataset.ID, Processor: "cleaning"})
			Expect(err).To(BeNil())

			err = f.datasets.Delete(context.TODO(), dataset.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrDatasetInUse{}))
		})

		It("reports a missing dataset", func() {
			err := f.datasets.Delete(context.TODO(), uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("backup", func() {
		It("archives and restores the database with payloads", func() {
			path := f.writeCSV("backed-up.csv", tenRowsOneGap())
			_, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: "backed-up"})
			Expect(err).To(BeNil())

			archive := f.dir + "/backup.zip"
			Expect(f.store.Backup(archive)).To(Succeed())

			info, err := os.Stat(archive)
			Expect(err).To(BeNil())
			Expect(info.Size()).To(BeNumerically(">", 0))
		})
	})
})
