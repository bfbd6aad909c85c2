package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/extraction"
	"github.com/clearclaim/estimate-cli/internal/model"
	"github.com/clearclaim/estimate-cli/internal/progress"
	"github.com/clearclaim/estimate-cli/internal/store"
	"github.com/clearclaim/estimate-cli/internal/worker"
)

// stubOCR returns fixed pages for any path.
type stubOCR struct {
	pages []model.PageText
}

func (s stubOCR) ExtractPages(ctx context.Context, pdfPath string) ([]model.PageText, error) {
	return s.pages, nil
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	extCfg := config.ExtractionConfig{
		MaxKeywordPages: 5,
		FallbackPages:   3,
		MaxVerifyPages:  3,
		MaxCharsPerPage: 6000,
		NormalizerPages: 2,
	}
	pipeline, err := extraction.New(st, stubOCR{pages: []model.PageText{
		{PageNumber: 1, RawText: "RCV $5,000\nEave 100 LF\nRake 50 LF"},
	}}, nil, progress.NopNotifier{}, extCfg)
	require.NoError(t, err)

	env := &appEnv{
		Store:    st,
		Pipeline: pipeline,
		Runner:   worker.NewRunner(2, 8),
	}
	t.Cleanup(func() { env.Close(context.Background()) })
	return env
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	router := newRouter(newTestEnv(t), true)

	rec := doRequest(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServer_GetJob_NotFound(t *testing.T) {
	router := newRouter(newTestEnv(t), true)

	rec := doRequest(t, router, http.MethodGet, "/jobs/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	_, err := env.Store.CreateJob(context.Background(), []string{"a.pdf"})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []model.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)
}

func TestServer_Process_V2Disabled(t *testing.T) {
	router := newRouter(newTestEnv(t), false)

	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/any/process", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_Process_UnknownJob(t *testing.T) {
	router := newRouter(newTestEnv(t), true)

	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/no-such-job/process",
		map[string]any{"filePaths": []string{"a.pdf"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Process_NoFilePaths(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	job, err := env.Store.CreateJob(context.Background(), nil)
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/process", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Process_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	job, err := env.Store.CreateJob(context.Background(), []string{"estimate.pdf"})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/process", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		OK        bool   `json:"ok"`
		JobID     string `json:"jobId"`
		FileCount int    `json:"fileCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, 1, resp.FileCount)

	require.Eventually(t, func() bool {
		got, err := env.Store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == model.JobStatusAnalysisReady
	}, 5*time.Second, 20*time.Millisecond)

	doc, err := env.Store.GetExtractionDocument(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Contains(t, doc, "v2")
}

func TestServer_Reprocess_PurgesPages(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, true)

	job, err := env.Store.CreateJob(context.Background(), []string{"estimate.pdf"})
	require.NoError(t, err)

	// First run populates job_pages.
	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/process", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		pages, err := env.Store.GetPages(context.Background(), job.ID)
		return err == nil && len(pages) > 0
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		got, err := env.Store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == model.JobStatusAnalysisReady
	}, 5*time.Second, 20*time.Millisecond)

	// Reprocess purges and reruns without a unique-page conflict.
	rec = doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/reprocess", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		got, err := env.Store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == model.JobStatusAnalysisReady
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServer_Process_ConflictWhileRunning(t *testing.T) {
	env := newTestEnv(t)

	// Hold the single worker so the second submission hits the in-flight guard.
	release := make(chan struct{})
	started := make(chan struct{})
	env.Runner = worker.NewRunner(1, 8)
	require.NoError(t, env.Runner.Submit("job-held", func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started
	defer close(release)

	router := newRouter(env, true)

	job, err := env.Store.CreateJob(context.Background(), []string{"estimate.pdf"})
	require.NoError(t, err)

	// First submission queues behind the held worker; second conflicts.
	rec := doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/process", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/v2/jobs/"+job.ID+"/process", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
