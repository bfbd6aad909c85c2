// Package progress delivers coarse pipeline progress events to the review UI.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

// Notifier receives progress events. Delivery is fire-and-forget; no
// implementation may block the pipeline or return an error to it.
type Notifier interface {
	Notify(ctx context.Context, ev model.ProgressEvent)
}

// New picks a notifier from config: webhook when a URL is set, otherwise log.
func New(cfg config.ProgressConfig) Notifier {
	if cfg.WebhookURL != "" {
		return NewWebhookNotifier(cfg.WebhookURL, time.Duration(cfg.TimeoutSecs)*time.Second)
	}
	return LogNotifier{}
}

// WebhookNotifier POSTs each event as JSON to a fixed URL. Failures are
// logged and dropped; the UI can always fall back to polling job status.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier with the given delivery timeout.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, ev model.ProgressEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		zap.L().Warn("progress: marshal event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("progress: create request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		zap.L().Warn("progress: webhook delivery failed",
			zap.String("job_id", ev.JobID),
			zap.Error(err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		zap.L().Warn("progress: webhook rejected event",
			zap.String("job_id", ev.JobID),
			zap.Int("status", resp.StatusCode))
	}
}

// LogNotifier writes events to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev model.ProgressEvent) {
	zap.L().Info("pipeline progress",
		zap.String("job_id", ev.JobID),
		zap.String("status", string(ev.Status)),
		zap.String("stage", string(ev.Stage)),
		zap.Int("progress", ev.Progress),
		zap.String("message", ev.Message),
	)
}

// NopNotifier discards events; used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.ProgressEvent) {}
