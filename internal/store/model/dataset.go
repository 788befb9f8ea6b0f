package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Dataset is an immutable record of an ingested or derived table. The
// payload itself lives on disk at FilePath; the row is metadata only and
// is never updated after creation.
type Dataset struct {
	ID          uuid.UUID `gorm:"primaryKey;type:VARCHAR(255)"`
	Name        string    `gorm:"uniqueIndex:datasets_name_idx;not null"`
	SourcePath  string
	ParentJobID *uuid.UUID `gorm:"type:VARCHAR(255)"`
	FilePath    string     `gorm:"not null"`
	Format      string     `gorm:"type:VARCHAR(50)"`
	FileSize    int64
	Rows        int
	Cols        int
	Columns     *JSONField[[]string]       `gorm:"type:jsonb"`
	Metadata    *JSONField[map[string]any] `gorm:"type:jsonb"`
	Description string
	CreatedAt   time.Time `gorm:"not null"`
}

type DatasetList []Dataset

func (d Dataset) String() string {
	val, _ := json.Marshal(d)
	return string(val)
}

func NewDatasetFromId(id uuid.UUID) *Dataset {
	return &Dataset{ID: id}
}
