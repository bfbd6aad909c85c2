package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction jobs. One pipeline
// run is the sole writer for its job for the duration of that run.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, filePaths []string) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage) error
	SetJobError(ctx context.Context, jobID string, message string) error

	// Page text
	SavePages(ctx context.Context, jobID string, pages []model.PageText) error
	GetPages(ctx context.Context, jobID string) ([]model.PageText, error)
	DeletePages(ctx context.Context, jobID string) (int, error)

	// Extraction document
	GetExtractionDocument(ctx context.Context, jobID string) (map[string]any, error)
	MergeExtractionDocument(ctx context.Context, jobID string, key string, payload any) error
	UpdateMeasurementSummary(ctx context.Context, jobID string, summary model.MeasurementSummary) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store based on config.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
