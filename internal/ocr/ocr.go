// Package ocr turns PDF files into per-page text for the extraction pipeline.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

// PageExtractor extracts text from a PDF, one entry per page in page order.
type PageExtractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]model.PageText, error)
}

// NewPageExtractor creates a PageExtractor based on config.
func NewPageExtractor(cfg config.OCRConfig) (PageExtractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// normalizePage applies NFKC so ligatures and width variants from PDF fonts
// compare equal under the downstream regexes, and trims trailing whitespace.
func normalizePage(text string) string {
	return strings.TrimRight(norm.NFKC.String(text), " \t\n\r\f")
}
