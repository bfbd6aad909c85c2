package extraction

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/estimate-cli/internal/model"
)

func newTestPipeline(t *testing.T, st *mockStore, pe *mockPageExtractor, llm *LLM, n *recordingNotifier) *Pipeline {
	t.Helper()
	p, err := New(st, pe, llm, n, testExtractionConfig())
	require.NoError(t, err)
	return p
}

func allowStatusUpdates(st *mockStore) {
	st.On("UpdateJobStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func TestPipeline_EndToEnd_NoModelCredential(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}
	notifier := &recordingNotifier{}

	pages := []model.PageText{
		{PageNumber: 1, RawText: "RCV $5,000"},
		{PageNumber: 2, RawText: "Eave 100 LF\nRake 50 LF"},
		{PageNumber: 3, RawText: ""},
	}
	pe.On("ExtractPages", mock.Anything, "estimate.pdf").Return(pages, nil)

	allowStatusUpdates(st)
	st.On("SavePages", mock.Anything, "job-1", pages).Return(nil)

	var payload model.ExtractionPayload
	st.On("MergeExtractionDocument", mock.Anything, "job-1", "v2", mock.Anything).
		Run(func(args mock.Arguments) {
			payload = args.Get(3).(model.ExtractionPayload)
		}).Return(nil)

	var summary model.MeasurementSummary
	st.On("UpdateMeasurementSummary", mock.Anything, "job-1", mock.Anything).
		Run(func(args mock.Arguments) {
			summary = args.Get(2).(model.MeasurementSummary)
		}).Return(nil)

	p := newTestPipeline(t, st, pe, nil, notifier)
	require.NoError(t, p.Run(context.Background(), "job-1", []string{"estimate.pdf"}))

	// Totals.
	require.NotNil(t, payload.Totals.RCV)
	assert.Equal(t, 5000.0, *payload.Totals.RCV)
	assert.InDelta(t, 0.2, payload.Totals.Confidence, 1e-9)

	// Measurements with the derived drip edge total.
	require.NotNil(t, payload.Measurements.EaveLength)
	assert.Equal(t, 100.0, *payload.Measurements.EaveLength)
	require.NotNil(t, payload.Measurements.RakeLength)
	assert.Equal(t, 50.0, *payload.Measurements.RakeLength)
	require.NotNil(t, payload.Measurements.DripEdgeTotal)
	assert.Equal(t, 150.0, *payload.Measurements.DripEdgeTotal)
	assert.Nil(t, payload.Measurements.TotalRidgeHip)

	// No credential: no line items, empty verification.
	assert.Empty(t, payload.LineItems)
	assert.Empty(t, payload.Verification.Verifications)

	// Mirrored scalars skip absent values.
	require.NotNil(t, summary.EaveLength)
	assert.Equal(t, 100.0, *summary.EaveLength)
	require.NotNil(t, summary.OriginalEstimate)
	assert.Equal(t, 5000.0, *summary.OriginalEstimate)
	assert.Nil(t, summary.RoofSquares)
	assert.Nil(t, summary.RidgeHipLength)

	// Terminal transition.
	st.AssertCalled(t, "UpdateJobStatus", mock.Anything, "job-1",
		model.JobStatusAnalysisReady, model.StageComplete)
}

func TestPipeline_EmitsFixedCheckpoints(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}
	notifier := &recordingNotifier{}

	pe.On("ExtractPages", mock.Anything, mock.Anything).
		Return([]model.PageText{{PageNumber: 1, RawText: "RCV $100"}}, nil)
	allowStatusUpdates(st)
	st.On("SavePages", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("MergeExtractionDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("UpdateMeasurementSummary", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, nil, notifier)
	require.NoError(t, p.Run(context.Background(), "job-1", []string{"a.pdf"}))

	assert.Equal(t, []int{5, 10, 40, 45, 55, 60, 75, 78, 85, 88, 92, 95, 100}, notifier.progressValues())

	last := notifier.events[len(notifier.events)-1]
	assert.Equal(t, model.JobStatusAnalysisReady, last.Status)
	assert.Equal(t, model.StageComplete, last.Stage)
}

func TestPipeline_MultipleFiles_RenumbersPages(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}

	pe.On("ExtractPages", mock.Anything, "a.pdf").
		Return([]model.PageText{{PageNumber: 1, RawText: "first doc"}}, nil)
	pe.On("ExtractPages", mock.Anything, "b.pdf").
		Return([]model.PageText{{PageNumber: 1, RawText: "second doc"}, {PageNumber: 2, RawText: "RCV $100"}}, nil)

	allowStatusUpdates(st)
	var saved []model.PageText
	st.On("SavePages", mock.Anything, "job-1", mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).([]model.PageText)
		}).Return(nil)
	st.On("MergeExtractionDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("UpdateMeasurementSummary", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, nil, &recordingNotifier{})
	require.NoError(t, p.Run(context.Background(), "job-1", []string{"a.pdf", "b.pdf"}))

	require.Len(t, saved, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{saved[0].PageNumber, saved[1].PageNumber, saved[2].PageNumber})
	assert.Equal(t, "RCV $100", saved[2].RawText)
}

func TestPipeline_NoFilePaths_Fails(t *testing.T) {
	st := &mockStore{}
	st.On("SetJobError", mock.Anything, "job-1", mock.Anything).Return(nil)

	p := newTestPipeline(t, st, &mockPageExtractor{}, nil, &recordingNotifier{})
	err := p.Run(context.Background(), "job-1", nil)
	assert.Error(t, err)
	st.AssertCalled(t, "SetJobError", mock.Anything, "job-1", mock.Anything)
}

func TestPipeline_OCRFailure_MarksJobFailed(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}

	pe.On("ExtractPages", mock.Anything, "broken.pdf").Return(nil, fmt.Errorf("pdftotext exited 1"))
	allowStatusUpdates(st)
	st.On("SetJobError", mock.Anything, "job-1", mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, nil, &recordingNotifier{})
	err := p.Run(context.Background(), "job-1", []string{"broken.pdf"})
	assert.Error(t, err)
	st.AssertCalled(t, "SetJobError", mock.Anything, "job-1", mock.Anything)
	st.AssertNotCalled(t, "MergeExtractionDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_EmptyOCROutput_Fails(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}

	pe.On("ExtractPages", mock.Anything, "empty.pdf").Return([]model.PageText{}, nil)
	allowStatusUpdates(st)
	st.On("SetJobError", mock.Anything, "job-1", mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, nil, &recordingNotifier{})
	assert.Error(t, p.Run(context.Background(), "job-1", []string{"empty.pdf"}))
}

func TestPipeline_PersistFailure_MarksJobFailed(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}

	pe.On("ExtractPages", mock.Anything, mock.Anything).
		Return([]model.PageText{{PageNumber: 1, RawText: "RCV $100"}}, nil)
	allowStatusUpdates(st)
	st.On("SavePages", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("MergeExtractionDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("disk full"))
	st.On("SetJobError", mock.Anything, "job-1", mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, nil, &recordingNotifier{})
	assert.Error(t, p.Run(context.Background(), "job-1", []string{"a.pdf"}))
	st.AssertCalled(t, "SetJobError", mock.Anything, "job-1", mock.Anything)
	st.AssertNotCalled(t, "UpdateMeasurementSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_ModelFailures_DegradeWithoutFailingRun(t *testing.T) {
	st := &mockStore{}
	pe := &mockPageExtractor{}
	client := &mockAnthropicClient{}

	// Every model call errors: totals fallback, four extractors, verify.
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("api unavailable"))

	pe.On("ExtractPages", mock.Anything, mock.Anything).
		Return([]model.PageText{{PageNumber: 1, RawText: "RCV $5,000 with drip edge and starter"}}, nil)
	allowStatusUpdates(st)
	st.On("SavePages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var payload model.ExtractionPayload
	st.On("MergeExtractionDocument", mock.Anything, "job-1", "v2", mock.Anything).
		Run(func(args mock.Arguments) {
			payload = args.Get(3).(model.ExtractionPayload)
		}).Return(nil)
	st.On("UpdateMeasurementSummary", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, st, pe, testLLM(client), &recordingNotifier{})
	require.NoError(t, p.Run(context.Background(), "job-1", []string{"a.pdf"}))

	// Deterministic results survive the degraded model phases.
	require.NotNil(t, payload.Totals.RCV)
	assert.Equal(t, 5000.0, *payload.Totals.RCV)
	assert.Empty(t, payload.LineItems)
	assert.Empty(t, payload.Verification.Verifications)

	// One fallback call, four category calls, one verification call.
	client.AssertNumberOfCalls(t, "CreateMessage", 6)

	st.AssertCalled(t, "UpdateJobStatus", mock.Anything, "job-1",
		model.JobStatusAnalysisReady, model.StageComplete)
}
