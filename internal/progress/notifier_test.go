package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

func TestNew_PicksNotifier(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(config.ProgressConfig{}))
	assert.IsType(t, &WebhookNotifier{}, New(config.ProgressConfig{WebhookURL: "http://localhost/hook"}))
}

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got model.ProgressEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	n.Notify(context.Background(), model.ProgressEvent{
		JobID:    "job-1",
		Status:   model.JobStatusProcessing,
		Stage:    model.StageOCR,
		Progress: 10,
		Message:  "extracting page text",
	})

	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, model.StageOCR, got.Stage)
	assert.Equal(t, 10, got.Progress)
}

func TestWebhookNotifier_FailureDoesNotPanic(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1", 100*time.Millisecond)
	// Connection refused must be swallowed.
	n.Notify(context.Background(), model.ProgressEvent{JobID: "job-1"})
}
