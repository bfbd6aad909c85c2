package model

import "time"

// ProgressEvent is a coarse pipeline progress notification for the review
// UI. Progress values are fixed checkpoints, not computed from real work.
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
