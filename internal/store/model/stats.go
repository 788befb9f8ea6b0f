package model

// PipelineStats is a point-in-time summary of the persisted state, served
// to the metrics collector and the database info endpoint.
type PipelineStats struct {
	Datasets     int64            `json:"datasets"`
	Figures      int64            `json:"figures"`
	Results      int64            `json:"analysis_results"`
	JobsByStatus map[string]int64 `json:"jobs_by_status"`
	DatabaseSize int64            `json:"database_size_bytes"`
}
