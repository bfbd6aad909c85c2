package extraction

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
	"github.com/clearclaim/estimate-cli/internal/ocr"
	"github.com/clearclaim/estimate-cli/internal/progress"
	"github.com/clearclaim/estimate-cli/internal/store"
)

// Pipeline orchestrates one extraction run: OCR, totals normalization,
// line-item fan-out, measurement parsing, verification, and persistence.
type Pipeline struct {
	store      store.Store
	ocr        ocr.PageExtractor
	llm        *LLM
	notifier   progress.Notifier
	cfg        config.ExtractionConfig
	categories []CategoryDef
}

// New creates a Pipeline with all dependencies. llm may be nil; every
// model-backed phase then degrades to its deterministic or empty result.
func New(
	st store.Store,
	pageExtractor ocr.PageExtractor,
	llm *LLM,
	notifier progress.Notifier,
	cfg config.ExtractionConfig,
) (*Pipeline, error) {
	categories, err := LoadCategories()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = progress.NopNotifier{}
	}
	return &Pipeline{
		store:      st,
		ocr:        pageExtractor,
		llm:        llm,
		notifier:   notifier,
		cfg:        cfg,
		categories: categories,
	}, nil
}

// Run executes the full pipeline for one job. Model-backed phases degrade on
// error; OCR and persistence failures are unrecoverable and mark the job
// failed before returning.
func (p *Pipeline) Run(ctx context.Context, jobID string, filePaths []string) error {
	log := zap.L().With(zap.String("job_id", jobID))
	log.Info("pipeline: starting extraction", zap.Int("file_count", len(filePaths)))

	if len(filePaths) == 0 {
		return p.fail(ctx, jobID, eris.New("pipeline: no file paths"))
	}

	p.advance(ctx, jobID, model.StageStart, 5, "starting extraction")

	// OCR. Everything downstream consumes the page-text index.
	p.advance(ctx, jobID, model.StageOCR, 10, "extracting page text")
	pages, err := p.runOCR(ctx, jobID, filePaths)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	p.advance(ctx, jobID, model.StageOCR, 40, "page text extracted")

	// Totals.
	p.advance(ctx, jobID, model.StageNormalize, 45, "normalizing totals")
	normalizer := &Normalizer{LLM: p.llm, Cfg: p.cfg}
	totals, err := normalizer.Extract(ctx, pages)
	if err != nil {
		// Deterministic results stand; only the fallback failed.
		log.Warn("pipeline: totals fallback degraded", zap.Error(err))
	}
	p.advance(ctx, jobID, model.StageNormalize, 55, "totals normalized")

	// Line items, one concurrent call per category.
	p.advance(ctx, jobID, model.StageLineItems, 60, "extracting line items")
	lineItems := p.runExtractors(ctx, pages, log)
	p.advance(ctx, jobID, model.StageLineItems, 75, "line items extracted")

	// Measurements. Deterministic; runs even when model phases degraded.
	p.advance(ctx, jobID, model.StageMeasurements, 78, "parsing measurements")
	measurements := ParseMeasurements(pages)
	measurements.ComputeDerived()
	p.advance(ctx, jobID, model.StageMeasurements, 85, "measurements parsed")

	// Verification.
	p.advance(ctx, jobID, model.StageVerify, 88, "verifying totals")
	verifier := &Verifier{LLM: p.llm, Cfg: p.cfg}
	verification, skipped, err := verifier.Verify(ctx, totals, pages)
	if err != nil {
		log.Warn("pipeline: verification degraded", zap.Error(err))
		verification = model.EmptyVerification()
	} else if skipped {
		log.Info("pipeline: verification skipped, no model credential")
	}
	p.advance(ctx, jobID, model.StageVerify, 92, "totals verified")

	// Persist: merged v2 payload, then mirrored scalar columns.
	p.advance(ctx, jobID, model.StageComplete, 95, "persisting results")
	payload := model.ExtractionPayload{
		Totals:       totals,
		LineItems:    lineItems,
		Measurements: &measurements,
		Verification: verification,
		CompletedAt:  time.Now().UTC(),
	}
	if err := p.store.MergeExtractionDocument(ctx, jobID, "v2", payload); err != nil {
		return p.fail(ctx, jobID, eris.Wrap(err, "pipeline: merge extraction"))
	}
	if err := p.store.UpdateMeasurementSummary(ctx, jobID, summarize(totals, measurements)); err != nil {
		return p.fail(ctx, jobID, eris.Wrap(err, "pipeline: mirror summary"))
	}

	if err := p.store.UpdateJobStatus(ctx, jobID, model.JobStatusAnalysisReady, model.StageComplete); err != nil {
		return p.fail(ctx, jobID, eris.Wrap(err, "pipeline: finalize job"))
	}
	p.emit(ctx, jobID, model.JobStatusAnalysisReady, model.StageComplete, 100, "analysis ready")

	log.Info("pipeline: extraction complete",
		zap.Float64("totals_confidence", totals.Confidence),
		zap.Int("line_items", len(lineItems)),
	)
	return nil
}

// runOCR extracts pages from every input file, renumbering pages sequentially
// across files, and persists them for reprocessing and review.
func (p *Pipeline) runOCR(ctx context.Context, jobID string, filePaths []string) ([]model.PageText, error) {
	var pages []model.PageText
	for _, path := range filePaths {
		filePages, err := p.ocr.ExtractPages(ctx, path)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: ocr %s", path)
		}
		for _, page := range filePages {
			page.PageNumber = len(pages) + 1
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		return nil, eris.New("pipeline: ocr produced no pages")
	}

	if err := p.store.SavePages(ctx, jobID, pages); err != nil {
		return nil, eris.Wrap(err, "pipeline: save pages")
	}
	return pages, nil
}

// runExtractors fans out one extraction per category and concatenates the
// results in category order. A failed or skipped category contributes no
// items; failures never abort the other categories.
func (p *Pipeline) runExtractors(ctx context.Context, pages []model.PageText, log *zap.Logger) []model.LineItem {
	extractor := &LineItemExtractor{LLM: p.llm, Cfg: p.cfg}
	results := make([]LineItemResult, len(p.categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, def := range p.categories {
		g.Go(func() error {
			result, err := extractor.Extract(gctx, def, pages)
			if err != nil {
				log.Warn("pipeline: category extraction degraded",
					zap.String("category", string(def.Category)),
					zap.Error(err))
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; degradation is per-category

	items := []model.LineItem{}
	for _, r := range results {
		items = append(items, r.Items...)
	}
	return items
}

// summarize builds the mirrored scalar subset. RidgeHipLength comes from the
// derived total; OriginalEstimate mirrors RCV.
func summarize(totals *model.NormalizedTotals, m model.RoofMeasurements) model.MeasurementSummary {
	return model.MeasurementSummary{
		RoofSquares:      m.Squares,
		EaveLength:       m.EaveLength,
		RakeLength:       m.RakeLength,
		ValleyLength:     m.ValleyLength,
		RidgeHipLength:   m.TotalRidgeHip,
		RoofSlope:        m.Pitch,
		RoofStories:      m.Stories,
		OriginalEstimate: totals.RCV,
	}
}

// advance updates the job's persisted status/stage and emits the checkpoint.
func (p *Pipeline) advance(ctx context.Context, jobID string, stage model.Stage, pct int, msg string) {
	if err := p.store.UpdateJobStatus(ctx, jobID, model.JobStatusProcessing, stage); err != nil {
		zap.L().Warn("pipeline: status update failed",
			zap.String("job_id", jobID),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}
	p.emit(ctx, jobID, model.JobStatusProcessing, stage, pct, msg)
}

func (p *Pipeline) emit(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage, pct int, msg string) {
	p.notifier.Notify(ctx, model.ProgressEvent{
		JobID:     jobID,
		Status:    status,
		Stage:     stage,
		Progress:  pct,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// fail marks the job failed and returns the causing error.
func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) error {
	zap.L().Error("pipeline: unrecoverable failure",
		zap.String("job_id", jobID),
		zap.Error(cause))
	if err := p.store.SetJobError(ctx, jobID, cause.Error()); err != nil {
		zap.L().Error("pipeline: failed to record job error",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
	return cause
}
