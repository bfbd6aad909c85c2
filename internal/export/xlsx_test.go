package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/clearclaim/estimate-cli/internal/model"
)

func samplePayload() model.ExtractionPayload {
	rcv := 5000.0
	eave, rake, dripTotal := 100.0, 50.0, 150.0
	qty := 120.0

	totals := &model.NormalizedTotals{
		RCV: &rcv,
		Sources: []model.FieldSource{
			{Field: model.FieldRCV, PageNumber: 1, MatchedText: "RCV $5,000"},
		},
	}
	totals.RecomputeConfidence()

	return model.ExtractionPayload{
		Totals: totals,
		LineItems: []model.LineItem{
			{
				Category:    model.CategoryDripEdge,
				Code:        "RFG DRIP",
				Description: "Drip edge",
				Quantity:    &model.Quantity{Value: qty, Unit: "LF"},
				SourcePages: []int{2, 3},
			},
		},
		Measurements: &model.RoofMeasurements{
			EaveLength:    &eave,
			RakeLength:    &rake,
			DripEdgeTotal: &dripTotal,
		},
		Verification: &model.VerificationResult{
			Verifications: []model.VerificationItem{
				{Field: "rcv", ExtractedValue: 5000.0, ObservedValue: 5000.0, Confidence: 0.95, Pages: []int{1}},
			},
			Corrections: map[string]any{"acv": 4200.0},
		},
		CompletedAt: time.Now().UTC(),
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.xlsx")
	require.NoError(t, WriteWorkbook(samplePayload(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)

	names := make([]string, len(f.Sheets))
	for i, s := range f.Sheets {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Totals", "Line Items", "Measurements", "Verification"}, names)

	totals := f.Sheet["Totals"]
	assert.Equal(t, "rcv", totals.Rows[1].Cells[0].String())
	assert.Equal(t, "5000", totals.Rows[1].Cells[1].String())
	assert.Equal(t, "1", totals.Rows[1].Cells[2].String())

	items := f.Sheet["Line Items"]
	require.Len(t, items.Rows, 2)
	assert.Equal(t, "drip_edge", items.Rows[1].Cells[0].String())
	assert.Equal(t, "2, 3", items.Rows[1].Cells[7].String())

	verification := f.Sheet["Verification"]
	assert.Equal(t, "rcv", verification.Rows[1].Cells[0].String())
}

func TestWriteWorkbook_EmptyPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteWorkbook(model.ExtractionPayload{}, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	// Header rows only.
	for _, sheet := range f.Sheets {
		assert.Len(t, sheet.Rows, 1, sheet.Name)
	}
}
