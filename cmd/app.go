package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/extraction"
	"github.com/clearclaim/estimate-cli/internal/ocr"
	"github.com/clearclaim/estimate-cli/internal/progress"
	"github.com/clearclaim/estimate-cli/internal/store"
	"github.com/clearclaim/estimate-cli/internal/worker"
	"github.com/clearclaim/estimate-cli/pkg/anthropic"
)

// appEnv wires the pipeline and its collaborators for one process.
type appEnv struct {
	Store    store.Store
	Pipeline *extraction.Pipeline
	Runner   *worker.Runner
}

// initApp constructs the store, OCR provider, model client, notifier, and
// pipeline from config. The model client is optional; without a key every
// model-backed phase degrades.
func initApp(ctx context.Context, cfg *config.Config) (*appEnv, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	pageExtractor, err := ocr.NewPageExtractor(cfg.OCR)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "init ocr")
	}

	var llm *extraction.LLM
	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key,
			anthropic.WithRateLimit(cfg.Anthropic.RequestsPerMinute))
		llm = extraction.NewLLM(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	} else {
		zap.L().Warn("no anthropic key configured, model-backed phases will be skipped")
	}

	pipeline, err := extraction.New(st, pageExtractor, llm, progress.New(cfg.Progress), cfg.Extraction)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "init pipeline")
	}

	return &appEnv{
		Store:    st,
		Pipeline: pipeline,
		Runner:   worker.NewRunner(cfg.Extraction.WorkerConcurrency, 64),
	}, nil
}

// Close shuts down the runner and the store.
func (e *appEnv) Close(ctx context.Context) {
	if err := e.Runner.Shutdown(ctx); err != nil {
		zap.L().Warn("worker shutdown", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}
