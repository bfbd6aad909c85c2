package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/clearclaim/estimate-cli/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// the form feeds pdftotext emits between pages.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]model.PageText, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return splitFormFeeds(stdout.String()), nil
}

// splitFormFeeds converts raw pdftotext output into page records, keeping
// blank pages so page numbers stay aligned with the source document.
func splitFormFeeds(raw string) []model.PageText {
	chunks := strings.Split(raw, "\f")
	// pdftotext terminates the last page with a form feed too.
	if n := len(chunks); n > 1 && strings.TrimSpace(chunks[n-1]) == "" {
		chunks = chunks[:n-1]
	}

	pages := make([]model.PageText, len(chunks))
	for i, chunk := range chunks {
		pages[i] = model.PageText{
			PageNumber: i + 1,
			RawText:    normalizePage(chunk),
		}
	}
	return pages
}
