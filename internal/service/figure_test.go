package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/tabwerk/datapipe/internal/service"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("figure service", Ordered, func() {
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

	importAndAnalyze := func(name string) (datasetID, resultID uuid.UUID) {
		path := f.writeCSV(name+".csv", tenRowsOneGap())
		dataset, err := f.datasets.Import(context.TODO(), service.ImportRequest{Path: path, Name: name})
		Expect(err).To(BeNil())

		job, err := f.scheduler.Submit(context.TODO(), service.SubmitRequest{DatasetID: dataset.ID, Processor: "statistics"})
		Expect(err).To(BeNil())
		job, err = f.scheduler.Run(context.TODO(), job.ID)
		Expect(err).To(BeNil())
		Expect(job.OutputResultID).ToNot(BeNil())

		return dataset.ID, *job.OutputResultID
	}

	It("links a figure to a dataset source", func() {
		datasetID, _ := importAndAnalyze("fig-dataset")

		figure, err := f.figures.Record(context.TODO(), service.RecordRequest{
			SourceID:   datasetID,
			PlotType:   "scatter",
			OutputPath: "/tmp/scatter.png",
		})
		Expect(err).To(BeNil())
		Expect(figure.DatasetID).ToNot(BeNil())
		Expect(*figure.DatasetID).To(Equal(datasetID))
		Expect(figure.ResultID).To(BeNil())
	})

	It("links a figure to an analysis result source", func() {
		_, resultID := importAndAnalyze("fig-result")

		figure, err := f.figures.Record(context.TODO(), service.RecordRequest{
			SourceID:   resultID,
			PlotType:   "histogram",
			OutputPath: "/tmp/histogram.png",
		})
		Expect(err).To(BeNil())
		Expect(figure.ResultID).ToNot(BeNil())
		Expect(*figure.ResultID).To(Equal(resultID))
		Expect(figure.DatasetID).To(BeNil())
	})

	It("rejects a source that is neither", func() {
		_, err := f.figures.Record(context.TODO(), service.RecordRequest{
			SourceID:   uuid.New(),
			PlotType:   "line",
			OutputPath: "/tmp/line.png",
		})
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
	})

	It("lists recorded figures", func() {
		datasetID, _ := importAndAnalyze("fig-list")

		for _, plot := range []string{"line", "scatter"} {
			_, err := f.figures.Record(context.TODO(), service.RecordRequest{
				SourceID:   datasetID,
				PlotType:   plot,
				OutputPath: "/tmp/" + plot + ".png",
			})
			Expect(err).To(BeNil())
		}

		figures, err := f.figures.List(context.TODO())
		Expect(err).To(BeNil())
		Expect(figures).To(HaveLen(2))
	})
})
