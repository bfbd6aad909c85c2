package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clearclaim/estimate-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'uploaded',
	stage             TEXT NOT NULL DEFAULT 'start',
	file_paths        TEXT NOT NULL DEFAULT '[]',
	extraction        TEXT NOT NULL DEFAULT '{}',
	roof_squares      REAL,
	eave_length       REAL,
	rake_length       REAL,
	valley_length     REAL,
	ridge_hip_length  REAL,
	roof_slope        TEXT,
	roof_stories      INTEGER,
	original_estimate REAL,
	error             TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS job_pages (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL REFERENCES jobs(id),
	page_number INTEGER NOT NULL,
	raw_text    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (job_id, page_number)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_job_pages_job_id ON job_pages(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, filePaths []string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	pathsJSON, err := json.Marshal(filePaths)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal file paths")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, stage, file_paths, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(model.JobStatusUploaded), string(model.StageStart), string(pathsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
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

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, stage, file_paths,
		       roof_squares, eave_length, rake_length, valley_length,
		       ridge_hip_length, roof_slope, roof_stories, original_estimate,
		       error, created_at, updated_at
		FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
		SELECT id, status, stage, file_paths,
		       roof_squares, eave_length, rake_length, valley_length,
		       ridge_hip_length, roof_slope, roof_stories, original_estimate,
		       error, created_at, updated_at
		FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = ?, updated_at = ? WHERE id = ?`,
		string(status), string(stage), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) SetJobError(ctx context.Context, jobID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set job error %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) SavePages(ctx context.Context, jobID string, pages []model.PageText) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save pages")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_pages (id, job_id, page_number, raw_text) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), jobID, p.PageNumber, p.RawText,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert page %d for job %s", p.PageNumber, jobID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save pages")
}

func (s *SQLiteStore) GetPages(ctx context.Context, jobID string) ([]model.PageText, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_number, raw_text FROM job_pages WHERE job_id = ? ORDER BY page_number`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pages for job %s", jobID)
	}
	defer rows.Close()

	var pages []model.PageText
	for rows.Next() {
		var p model.PageText
		if err := rows.Scan(&p.PageNumber, &p.RawText); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: get pages iterate")
}

func (s *SQLiteStore) DeletePages(ctx context.Context, jobID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_pages WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete pages for job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete pages rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) GetExtractionDocument(ctx context.Context, jobID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT extraction FROM jobs WHERE id = ?`, jobID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get extraction for job %s", jobID)
	}

	doc := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal extraction for job %s", jobID)
		}
	}
	return doc, nil
}

// MergeExtractionDocument sets doc[key] = payload on the job's extraction
// document, preserving sibling keys. The pipeline is the sole writer for a
// running job, so read-modify-write is safe here.
func (s *SQLiteStore) MergeExtractionDocument(ctx context.Context, jobID string, key string, payload any) error {
	doc, err := s.GetExtractionDocument(ctx, jobID)
	if err != nil {
		return err
	}
	doc[key] = payload

	merged, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET extraction = ?, updated_at = ? WHERE id = ?`,
		string(merged), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: merge extraction for job %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

// UpdateMeasurementSummary mirrors found scalars onto flat job columns.
// Nil fields are omitted from the SET clause so absent measurements never
// clobber prior values with zeros.
func (s *SQLiteStore) UpdateMeasurementSummary(ctx context.Context, jobID string, summary model.MeasurementSummary) error {
	sets, args := summaryAssignments(summary, "?")
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), jobID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update summary for job %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

// summaryAssignments builds SET fragments for non-nil summary fields.
// placeholder is "?" for sqlite; postgres substitutes positional markers.
func summaryAssignments(summary model.MeasurementSummary, placeholder string) ([]string, []any) {
	var sets []string
	var args []any

	add := func(col string, v any) {
		sets = append(sets, col+" = "+placeholder)
		args = append(args, v)
	}

	if summary.RoofSquares != nil {
		add("roof_squares", *summary.RoofSquares)
	}
	if summary.EaveLength != nil {
		add("eave_length", *summary.EaveLength)
	}
	if summary.RakeLength != nil {
		add("rake_length", *summary.RakeLength)
	}
	if summary.ValleyLength != nil {
		add("valley_length", *summary.ValleyLength)
	}
	if summary.RidgeHipLength != nil {
		add("ridge_hip_length", *summary.RidgeHipLength)
	}
	if summary.RoofSlope != nil {
		add("roof_slope", *summary.RoofSlope)
	}
	if summary.RoofStories != nil {
		add("roof_stories", *summary.RoofStories)
	}
	if summary.OriginalEstimate != nil {
		add("original_estimate", *summary.OriginalEstimate)
	}
	return sets, args
}

// rowScanner abstracts sql.Row and sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var pathsJSON string
	var roofSquares, eaveLength, rakeLength, valleyLength, ridgeHipLength, originalEstimate sql.NullFloat64
	var roofSlope sql.NullString
	var roofStories sql.NullInt64
	var status, stage string

	err := row.Scan(
		&j.ID, &status, &stage, &pathsJSON,
		&roofSquares, &eaveLength, &rakeLength, &valleyLength,
		&ridgeHipLength, &roofSlope, &roofStories, &originalEstimate,
		&j.Error, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan job")
	}

	j.Status = model.JobStatus(status)
	j.Stage = model.Stage(stage)
	if err := json.Unmarshal([]byte(pathsJSON), &j.FilePaths); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal file paths")
	}

	if roofSquares.Valid {
		j.Summary.RoofSquares = &roofSquares.Float64
	}
	if eaveLength.Valid {
		j.Summary.EaveLength = &eaveLength.Float64
	}
	if rakeLength.Valid {
		j.Summary.RakeLength = &rakeLength.Float64
	}
	if valleyLength.Valid {
		j.Summary.ValleyLength = &valleyLength.Float64
	}
	if ridgeHipLength.Valid {
		j.Summary.RidgeHipLength = &ridgeHipLength.Float64
	}
	if roofSlope.Valid {
		j.Summary.RoofSlope = &roofSlope.String
	}
	if roofStories.Valid {
		stories := int(roofStories.Int64)
		j.Summary.RoofStories = &stories
	}
	if originalEstimate.Valid {
		j.Summary.OriginalEstimate = &originalEstimate.Float64
	}
	return &j, nil
}

func checkRowsAffected(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}
