package extraction

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/clearclaim/estimate-cli/internal/model"
	"github.com/clearclaim/estimate-cli/internal/store"
	"github.com/clearclaim/estimate-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// textResponse builds a single-text-block response, the shape every phase
// consumes.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- OCR Mock ---

type mockPageExtractor struct {
	mock.Mock
}

func (m *mockPageExtractor) ExtractPages(ctx context.Context, pdfPath string) ([]model.PageText, error) {
	args := m.Called(ctx, pdfPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PageText), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateJob(ctx context.Context, filePaths []string) (*model.Job, error) {
	args := m.Called(ctx, filePaths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *mockStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Job), args.Error(1)
}

func (m *mockStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage) error {
	return m.Called(ctx, jobID, status, stage).Error(0)
}

func (m *mockStore) SetJobError(ctx context.Context, jobID string, message string) error {
	return m.Called(ctx, jobID, message).Error(0)
}

func (m *mockStore) SavePages(ctx context.Context, jobID string, pages []model.PageText) error {
	return m.Called(ctx, jobID, pages).Error(0)
}

func (m *mockStore) GetPages(ctx context.Context, jobID string) ([]model.PageText, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PageText), args.Error(1)
}

func (m *mockStore) DeletePages(ctx context.Context, jobID string) (int, error) {
	args := m.Called(ctx, jobID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) GetExtractionDocument(ctx context.Context, jobID string) (map[string]any, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *mockStore) MergeExtractionDocument(ctx context.Context, jobID string, key string, payload any) error {
	return m.Called(ctx, jobID, key, payload).Error(0)
}

func (m *mockStore) UpdateMeasurementSummary(ctx context.Context, jobID string, summary model.MeasurementSummary) error {
	return m.Called(ctx, jobID, summary).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Notifier Mock ---

// recordingNotifier captures every emitted event for checkpoint assertions.
type recordingNotifier struct {
	events []model.ProgressEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.ProgressEvent) {
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) progressValues() []int {
	out := make([]int, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Progress
	}
	return out
}
