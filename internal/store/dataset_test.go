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
	insertDatasetStm = "INSERT INTO datasets (id, name, file_path, created_at) VALUES ('%s', '%s', '/tmp/%s.csv', '%s');"
)

var _ = Describe("dataset store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	now := func() string { return time.Now().Format(time.RFC3339) }

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
		gormdb.Exec("DELETE FROM datasets;")
	})

	Context("list", func() {
		It("lists all datasets", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, uuid.NewString(), "ds1", "ds1", now()))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertDatasetStm, uuid.NewString(), "ds2", "ds2", now()))
			Expect(tx.Error).To(BeNil())

			datasets, err := s.Dataset().List(context.TODO())
			Expect(err).To(BeNil())
			Expect(datasets).To(HaveLen(2))
		})
	})

	Context("get", func() {
		It("returns the dataset by id", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, id.String(), "ds1", "ds1", now()))
			Expect(tx.Error).To(BeNil())

			dataset, err := s.Dataset().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(dataset.Name).To(Equal("ds1"))
		})

		It("reports a missing dataset", func() {
			_, err := s.Dataset().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("returns the dataset by name", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, uuid.NewString(), "named", "named", now()))
			Expect(tx.Error).To(BeNil())

			dataset, err := s.Dataset().GetByName(context.TODO(), "named")
			Expect(err).To(BeNil())
			Expect(dataset.Name).To(Equal("named"))
		})
	})

	Context("create", func() {
		It("rejects a duplicate name", func() {
			_, err := s.Dataset().Create(context.TODO(), model.Dataset{ID: uuid.New(), Name: "dup"})
			Expect(err).To(BeNil())

			_, err = s.Dataset().Create(context.TODO(), model.Dataset{ID: uuid.New(), Name: "dup"})
			Expect(err).To(MatchError(st.ErrDuplicateKey))
		})

		It("persists columns and metadata", func() {
			id := uuid.New()
			_, err := s.Dataset().Create(context.TODO(), model.Dataset{
				ID:       id,
				Name:     "with-columns",
				Columns:  model.MakeJSONField([]string{"a", "b"}),
				Metadata: model.MakeJSONField(map[string]any{"delimiter": ","}),
			})
			Expect(err).To(BeNil())

			dataset, err := s.Dataset().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(dataset.Columns.Data).To(Equal([]string{"a", "b"}))
			Expect(dataset.Metadata.Data).To(HaveKeyWithValue("delimiter", ","))
		})
	})

	Context("delete", func() {
		It("removes the dataset", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, id.String(), "gone", "gone", now()))
			Expect(tx.Error).To(BeNil())

			Expect(s.Dataset().Delete(context.TODO(), id)).To(Succeed())

			_, err := s.Dataset().Get(context.TODO(), id)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("reports a missing dataset", func() {
			err := s.Dataset().Delete(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})
})
