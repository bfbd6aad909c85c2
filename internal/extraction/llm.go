// Package extraction implements the multi-phase estimate extraction pipeline:
// deterministic totals normalization with LLM fallback, per-category line-item
// extraction, measurement parsing, and a document-grounded verification pass.
package extraction

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/resilience"
	"github.com/clearclaim/estimate-cli/pkg/anthropic"
)

// LLM bundles the Anthropic client with the generation parameters shared by
// every model-backed phase. A nil *LLM means no credential is configured and
// the phase must skip rather than call out.
type LLM struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

// NewLLM constructs an LLM helper. Returns nil when client is nil so callers
// can treat "no credential" uniformly.
func NewLLM(client anthropic.Client, model string, maxTokens int64) *LLM {
	if client == nil {
		return nil
	}
	return &LLM{
		Client:    client,
		Model:     model,
		MaxTokens: maxTokens,
		Retry:     resilience.DefaultRetryConfig(),
	}
}

// Complete issues one temperature-0 message and returns the text content.
// Transient API failures are retried; the phase name is used for cost
// attribution and retry logging.
func (l *LLM) Complete(ctx context.Context, phase, system, prompt string) (string, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       l.Model,
		MaxTokens:   l.MaxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	cfg := l.Retry
	cfg.OnRetry = resilience.RetryLogger(zap.L(), phase)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return l.Client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "extraction: %s model call", phase)
	}

	resp.Usage.LogCost(l.Model, phase)
	return resp.Text(), nil
}
