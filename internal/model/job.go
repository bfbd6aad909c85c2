package model

import "time"

// JobStatus represents the current state of an extraction job.
type JobStatus string

const (
	JobStatusUploaded      JobStatus = "uploaded"
	JobStatusProcessing    JobStatus = "processing"
	JobStatusAnalysisReady JobStatus = "analysis_ready"
	JobStatusFailed        JobStatus = "failed"
)

// Stage names one orchestrator phase; stages advance strictly in order.
type Stage string

const (
	StageStart        Stage = "start"
	StageOCR          Stage = "ocr"
	StageNormalize    Stage = "normalize"
	StageLineItems    Stage = "line_items"
	StageMeasurements Stage = "measurements"
	StageVerify       Stage = "verify"
	StageComplete     Stage = "complete"
)

// MeasurementSummary is the subset of roof scalars mirrored onto flat job
// columns for the review UI. Nil fields are skipped on write, never zeroed.
type MeasurementSummary struct {
	RoofSquares      *float64 `json:"roof_squares,omitempty"`
	EaveLength       *float64 `json:"eave_length,omitempty"`
	RakeLength       *float64 `json:"rake_length,omitempty"`
	ValleyLength     *float64 `json:"valley_length,omitempty"`
	RidgeHipLength   *float64 `json:"ridge_hip_length,omitempty"`
	RoofSlope        *string  `json:"roof_slope,omitempty"`
	RoofStories      *int     `json:"roof_stories,omitempty"`
	OriginalEstimate *float64 `json:"original_estimate,omitempty"`
}

// ExtractionPayload is the v2 extraction document merged into the job's
// extraction record. It is written once per run under the "v2" key,
// preserving any sibling keys from earlier pipeline versions.
type ExtractionPayload struct {
	Totals       *NormalizedTotals   `json:"totals"`
	LineItems    []LineItem          `json:"line_items"`
	Measurements *RoofMeasurements   `json:"measurements"`
	Verification *VerificationResult `json:"verification"`
	CompletedAt  time.Time           `json:"completed_at"`
}

// Job is the long-lived record the orchestrator mutates. Created at upload
// time by the surrounding application; one pipeline run owns one job's
// working set exclusively for the duration of that run.
type Job struct {
	ID        string             `json:"id"`
	Status    JobStatus          `json:"status"`
	Stage     Stage              `json:"stage"`
	FilePaths []string           `json:"file_paths"`
	Summary   MeasurementSummary `json:"summary"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
