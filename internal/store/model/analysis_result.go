package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisResult holds named statistics produced by a statistics-family
// processor, keyed to the job that computed them.
type AnalysisResult struct {
	ID         uuid.UUID                  `gorm:"primaryKey;type:VARCHAR(255)"`
	JobID      uuid.UUID                  `gorm:"not null;index:analysis_results_job_id_idx;type:VARCHAR(255)"`
	Name       string                     `gorm:"not null"`
	ResultType string                     `gorm:"type:VARCHAR(50)"`
	Results    *JSONField[map[string]any] `gorm:"type:jsonb"`
	Metadata   *JSONField[map[string]any] `gorm:"type:jsonb"`
	CreatedAt  time.Time                  `gorm:"not null"`
}

type AnalysisResultList []AnalysisResult

func (r AnalysisResult) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}
