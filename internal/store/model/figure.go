package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Figure records that a visualization artifact was derived from a dataset
// or analysis result. Rendering happens outside the pipeline; exactly one
// of DatasetID and ResultID is set.
type Figure struct {
	ID            uuid.UUID  `gorm:"primaryKey;type:VARCHAR(255)"`
	DatasetID     *uuid.UUID `gorm:"index:figures_dataset_id_idx;type:VARCHAR(255)"`
	ResultID      *uuid.UUID `gorm:"index:figures_result_id_idx;type:VARCHAR(255)"`
	Name          string
	PlotType      string                     `gorm:"type:VARCHAR(50)"`
	Parameters    *JSONField[map[string]any] `gorm:"type:jsonb"`
	OutputPath    string                     `gorm:"not null"`
	ThumbnailPath string
	Description   string
	CreatedAt     time.Time `gorm:"not null"`
}

type FigureList []Figure

func (f Figure) String() string {
	val, _ := json.Marshal(f)
	return string(val)
}
