package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/estimate-cli/internal/config"
)

func TestNewPageExtractor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.OCRConfig
		want    any
		wantErr bool
	}{
		{"default is local", config.OCRConfig{}, &PdfToText{}, false},
		{"local", config.OCRConfig{Provider: "local"}, &PdfToText{}, false},
		{"mistral", config.OCRConfig{Provider: "mistral", MistralKey: "key"}, &MistralOCR{}, false},
		{"mistral without key", config.OCRConfig{Provider: "mistral"}, nil, true},
		{"unknown", config.OCRConfig{Provider: "tesseract"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPageExtractor(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestSplitFormFeeds(t *testing.T) {
	pages := splitFormFeeds("page one\ftotal RCV $100\f\n")

	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "page one", pages[0].RawText)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, "total RCV $100", pages[1].RawText)
}

func TestSplitFormFeeds_KeepsBlankInteriorPages(t *testing.T) {
	pages := splitFormFeeds("first\f\fthird\f")

	require.Len(t, pages, 3)
	assert.Equal(t, "", pages[1].RawText)
	assert.Equal(t, 3, pages[2].PageNumber)
	assert.Equal(t, "third", pages[2].RawText)
}

func TestNormalizePage_NFKC(t *testing.T) {
	// The "ﬁ" ligature common in PDF text layers must fold to "fi" so
	// keyword scans match.
	assert.Equal(t, "finish", normalizePage("ﬁnish  \n"))
}

func TestPdfToText_MissingBinary(t *testing.T) {
	p := NewPdfToText(filepath.Join(t.TempDir(), "no-such-binary"))

	_, err := p.ExtractPages(context.Background(), "whatever.pdf")
	assert.Error(t, err)
}

func TestMistralOCR_ExtractPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"# Estimate"},{"index":1,"markdown":"Drip Edge 120 LF"}]}`))
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	m := NewMistralOCR("test-key", "")
	m.endpoint = srv.URL

	pages, err := m.ExtractPages(context.Background(), pdfPath)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "# Estimate", pages[0].RawText)
	assert.Equal(t, 2, pages[1].PageNumber)
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	m := NewMistralOCR("test-key", "")
	m.endpoint = srv.URL

	_, err := m.ExtractPages(context.Background(), pdfPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
