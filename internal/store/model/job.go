package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job status constants. Pending and Running are live states, Completed and
// Failed are terminal; a job enters a terminal state exactly once.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// CancelledReason is recorded on jobs failed through Cancel rather than a
// processor error.
const CancelledReason = "cancelled by user"

// CrashedReason is recorded on jobs found in running state with no live
// worker, e.g. after the process terminated mid-job.
const CrashedReason = "crashed: process terminated while job was running"

// ProcessingJob tracks one processor invocation against one input dataset.
type ProcessingJob struct {
	ID              uuid.UUID `gorm:"primaryKey;type:VARCHAR(255)"`
	DatasetID       uuid.UUID `gorm:"not null;index:processing_jobs_dataset_id_idx;type:VARCHAR(255)"`
	Name            string
	Processor       string                     `gorm:"not null;type:VARCHAR(100)"`
	Parameters      *JSONField[map[string]any] `gorm:"type:jsonb"`
	Status          string                     `gorm:"not null;default:pending;index:processing_jobs_status_idx;type:VARCHAR(20)"`
	Progress        float64                    `gorm:"not null;default:0"`
	ErrorMessage    string
	OutputDatasetID *uuid.UUID `gorm:"type:VARCHAR(255)"`
	OutputResultID  *uuid.UUID `gorm:"type:VARCHAR(255)"`
	CreatedAt       time.Time  `gorm:"not null"`
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

type ProcessingJobList []ProcessingJob

func (j ProcessingJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Terminal reports whether no further status transition is legal.
func (j ProcessingJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
