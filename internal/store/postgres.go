package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clearclaim/estimate-cli/internal/db"
	"github.com/clearclaim/estimate-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// newPostgresWithPool wires an explicit pool; used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'uploaded',
	stage             TEXT NOT NULL DEFAULT 'start',
	file_paths        JSONB NOT NULL DEFAULT '[]',
	extraction        JSONB NOT NULL DEFAULT '{}',
	roof_squares      DOUBLE PRECISION,
	eave_length       DOUBLE PRECISION,
	rake_length       DOUBLE PRECISION,
	valley_length     DOUBLE PRECISION,
	ridge_hip_length  DOUBLE PRECISION,
	roof_slope        TEXT,
	roof_stories      INTEGER,
	original_estimate DOUBLE PRECISION,
	error             TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_pages (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	page_number INTEGER NOT NULL,
	raw_text    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, page_number)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_job_pages_job_id ON job_pages(job_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const jobColumns = `id, status, stage, file_paths,
	roof_squares, eave_length, rake_length, valley_length,
	ridge_hip_length, roof_slope, roof_stories, original_estimate,
	error, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, filePaths []string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	pathsJSON, err := json.Marshal(filePaths)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal file paths")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, stage, file_paths, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(model.JobStatusUploaded), string(model.StageStart), string(pathsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		Status:    model.JobStatusUploaded,
		Stage:     model.StageStart,
		FilePaths: filePaths,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` WHERE status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argN)
	args = append(args, limit)
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, stage = $2, updated_at = $3 WHERE id = $4`,
		string(status), string(stage), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) SetJobError(ctx context.Context, jobID string, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusFailed), message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set job error %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

// SavePages bulk-inserts page rows via the COPY protocol; roof reports can
// run past a hundred pages.
func (s *PostgresStore) SavePages(ctx context.Context, jobID string, pages []model.PageText) error {
	now := time.Now().UTC()
	rows := make([][]any, len(pages))
	for i, p := range pages {
		rows[i] = []any{uuid.New().String(), jobID, p.PageNumber, p.RawText, now}
	}

	_, err := db.CopyFrom(ctx, s.pool, "job_pages",
		[]string{"id", "job_id", "page_number", "raw_text", "created_at"}, rows)
	return eris.Wrapf(err, "postgres: save pages for job %s", jobID)
}

func (s *PostgresStore) GetPages(ctx context.Context, jobID string) ([]model.PageText, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT page_number, raw_text FROM job_pages WHERE job_id = $1 ORDER BY page_number`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pages for job %s", jobID)
	}
	defer rows.Close()

	var pages []model.PageText
	for rows.Next() {
		var p model.PageText
		if err := rows.Scan(&p.PageNumber, &p.RawText); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: get pages iterate")
}

func (s *PostgresStore) DeletePages(ctx context.Context, jobID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_pages WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete pages for job %s", jobID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetExtractionDocument(ctx context.Context, jobID string) (map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT extraction FROM jobs WHERE id = $1`, jobID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get extraction for job %s", jobID)
	}

	doc := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal extraction for job %s", jobID)
		}
	}
	return doc, nil
}

// MergeExtractionDocument sets doc[key] = payload on the job's extraction
// document, preserving sibling keys. The pipeline is the sole writer for a
// running job, so read-modify-write is safe here.
func (s *PostgresStore) MergeExtractionDocument(ctx context.Context, jobID string, key string, payload any) error {
	doc, err := s.GetExtractionDocument(ctx, jobID)
	if err != nil {
		return err
	}
	doc[key] = payload

	merged, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET extraction = $1, updated_at = $2 WHERE id = $3`,
		string(merged), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: merge extraction for job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

// UpdateMeasurementSummary mirrors found scalars onto flat job columns,
// skipping nil fields.
func (s *PostgresStore) UpdateMeasurementSummary(ctx context.Context, jobID string, summary model.MeasurementSummary) error {
	sets, args := summaryAssignments(summary, "?")
	if len(sets) == 0 {
		return nil
	}

	// summaryAssignments emits "?" markers; rewrite them positionally.
	for i := range sets {
		sets[i] = strings.Replace(sets[i], "?", fmt.Sprintf("$%d", i+1), 1)
	}
	n := len(args)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", n+1))
	args = append(args, time.Now().UTC(), jobID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE jobs SET %s WHERE id = $%d`, strings.Join(sets, ", "), n+2),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update summary for job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var pathsJSON []byte
	var roofSquares, eaveLength, rakeLength, valleyLength, ridgeHipLength, originalEstimate *float64
	var roofSlope *string
	var roofStories *int
	var status, stage string

	err := row.Scan(
		&j.ID, &status, &stage, &pathsJSON,
		&roofSquares, &eaveLength, &rakeLength, &valleyLength,
		&ridgeHipLength, &roofSlope, &roofStories, &originalEstimate,
		&j.Error, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan job")
	}

	j.Status = model.JobStatus(status)
	j.Stage = model.Stage(stage)
	if err := json.Unmarshal(pathsJSON, &j.FilePaths); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal file paths")
	}

	j.Summary = model.MeasurementSummary{
		RoofSquares:      roofSquares,
		EaveLength:       eaveLength,
		RakeLength:       rakeLength,
		ValleyLength:     valleyLength,
		RidgeHipLength:   ridgeHipLength,
		RoofSlope:        roofSlope,
		RoofStories:      roofStories,
		OriginalEstimate: originalEstimate,
	}
	return &j, nil
}
