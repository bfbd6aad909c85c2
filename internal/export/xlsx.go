// Package export writes a reviewer workbook from a job's extraction results.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/clearclaim/estimate-cli/internal/model"
)

// WriteWorkbook renders the v2 extraction payload as an XLSX workbook with
// Totals, Line Items, Measurements, and Verification sheets.
func WriteWorkbook(payload model.ExtractionPayload, path string) error {
	f := xlsx.NewFile()

	if err := addTotalsSheet(f, payload.Totals); err != nil {
		return err
	}
	if err := addLineItemsSheet(f, payload.LineItems); err != nil {
		return err
	}
	if err := addMeasurementsSheet(f, payload.Measurements); err != nil {
		return err
	}
	if err := addVerificationSheet(f, payload.Verification); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addTotalsSheet(f *xlsx.File, totals *model.NormalizedTotals) error {
	sheet, err := f.AddSheet("Totals")
	if err != nil {
		return eris.Wrap(err, "export: add totals sheet")
	}
	addRow(sheet, "Field", "Value", "Source Page", "Matched Text")

	if totals == nil {
		return nil
	}

	sourceByField := map[model.TotalsField]model.FieldSource{}
	for _, src := range totals.Sources {
		sourceByField[src.Field] = src
	}

	writeField := func(field model.TotalsField, value string) {
		src := sourceByField[field]
		page := ""
		if src.PageNumber > 0 {
			page = fmt.Sprintf("%d", src.PageNumber)
		}
		addRow(sheet, string(field), value, page, src.MatchedText)
	}

	writeField(model.FieldRCV, formatFloat(totals.RCV))
	writeField(model.FieldACV, formatFloat(totals.ACV))
	writeField(model.FieldNetClaim, formatFloat(totals.NetClaim))
	writeField(model.FieldPriceList, formatString(totals.PriceList))
	writeField(model.FieldEstimateCompletedAt, formatString(totals.EstimateCompletedAt))

	addRow(sheet, "confidence", fmt.Sprintf("%.2f", totals.Confidence), "", "")
	addRow(sheet, "used_llm", fmt.Sprintf("%t", totals.UsedLLM), "", "")
	return nil
}

func addLineItemsSheet(f *xlsx.File, items []model.LineItem) error {
	sheet, err := f.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "export: add line items sheet")
	}
	addRow(sheet, "Category", "Code", "Description", "Quantity", "Unit", "Unit Price", "Total Price", "Source Pages")

	for _, item := range items {
		qty, unit := "", ""
		if item.Quantity != nil {
			qty = formatFloat(&item.Quantity.Value)
			unit = item.Quantity.Unit
		}
		addRow(sheet,
			string(item.Category),
			item.Code,
			item.Description,
			qty,
			unit,
			formatFloat(item.UnitPrice),
			formatFloat(item.TotalPrice),
			joinInts(item.SourcePages),
		)
	}
	return nil
}

func addMeasurementsSheet(f *xlsx.File, m *model.RoofMeasurements) error {
	sheet, err := f.AddSheet("Measurements")
	if err != nil {
		return eris.Wrap(err, "export: add measurements sheet")
	}
	addRow(sheet, "Measurement", "Value")

	if m == nil {
		return nil
	}

	addRow(sheet, "Ridge (LF)", formatFloat(m.RidgeLength))
	addRow(sheet, "Hip (LF)", formatFloat(m.HipLength))
	addRow(sheet, "Eave (LF)", formatFloat(m.EaveLength))
	addRow(sheet, "Rake (LF)", formatFloat(m.RakeLength))
	addRow(sheet, "Valley (LF)", formatFloat(m.ValleyLength))
	addRow(sheet, "Squares", formatFloat(m.Squares))
	addRow(sheet, "Pitch", formatString(m.Pitch))
	addRow(sheet, "Stories", formatInt(m.Stories))
	addRow(sheet, "Total Ridge/Hip (LF)", formatFloat(m.TotalRidgeHip))
	addRow(sheet, "Drip Edge Total (LF)", formatFloat(m.DripEdgeTotal))
	return nil
}

func addVerificationSheet(f *xlsx.File, v *model.VerificationResult) error {
	sheet, err := f.AddSheet("Verification")
	if err != nil {
		return eris.Wrap(err, "export: add verification sheet")
	}
	addRow(sheet, "Field", "Extracted", "Observed", "Confidence", "Pages", "Notes")

	if v == nil {
		return nil
	}

	for _, item := range v.Verifications {
		addRow(sheet,
			item.Field,
			formatAny(item.ExtractedValue),
			formatAny(item.ObservedValue),
			fmt.Sprintf("%.2f", item.Confidence),
			joinInts(item.Pages),
			item.Notes,
		)
	}

	for field, value := range v.Corrections {
		addRow(sheet, field, "", formatAny(value), "", "", "correction")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatAny(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func joinInts(vals []int) string {
	if len(vals) == 0 {
		return ""
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
