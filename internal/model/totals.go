package model

// TotalsField names one of the five scalar totals the normalizer targets.
type TotalsField string

const (
	FieldRCV                 TotalsField = "rcv"
	FieldACV                 TotalsField = "acv"
	FieldNetClaim            TotalsField = "net_claim"
	FieldPriceList           TotalsField = "price_list"
	FieldEstimateCompletedAt TotalsField = "estimate_completed_at"
)

// TotalsFieldCount is the number of fields the normalizer targets; the
// confidence score is always fieldsFound/TotalsFieldCount.
const TotalsFieldCount = 5

// FieldSource records where an extracted value came from.
type FieldSource struct {
	Field       TotalsField `json:"field"`
	PageNumber  int         `json:"page_number"`
	MatchedText string      `json:"matched_text"`
}

// NormalizedTotals holds the scalar totals extracted from an estimate.
// Pointer fields are nil when the value was not found; they are never
// defaulted to zero.
type NormalizedTotals struct {
	RCV                 *float64      `json:"rcv,omitempty"`
	ACV                 *float64      `json:"acv,omitempty"`
	NetClaim            *float64      `json:"net_claim,omitempty"`
	PriceList           *string       `json:"price_list,omitempty"`
	EstimateCompletedAt *string       `json:"estimate_completed_at,omitempty"` // ISO date, YYYY-MM-DD
	Confidence          float64       `json:"confidence"`
	Sources             []FieldSource `json:"sources,omitempty"`
	UsedLLM             bool          `json:"used_llm"`
}

// FoundCount returns how many of the five target fields are populated.
func (t *NormalizedTotals) FoundCount() int {
	n := 0
	if t.RCV != nil {
		n++
	}
	if t.ACV != nil {
		n++
	}
	if t.NetClaim != nil {
		n++
	}
	if t.PriceList != nil {
		n++
	}
	if t.EstimateCompletedAt != nil {
		n++
	}
	return n
}

// RecomputeConfidence sets Confidence to fieldsFound/5.
func (t *NormalizedTotals) RecomputeConfidence() {
	t.Confidence = float64(t.FoundCount()) / float64(TotalsFieldCount)
}

// MissingFields returns the target fields that are still unpopulated, in
// canonical order.
func (t *NormalizedTotals) MissingFields() []TotalsField {
	var missing []TotalsField
	if t.RCV == nil {
		missing = append(missing, FieldRCV)
	}
	if t.ACV == nil {
		missing = append(missing, FieldACV)
	}
	if t.NetClaim == nil {
		missing = append(missing, FieldNetClaim)
	}
	if t.PriceList == nil {
		missing = append(missing, FieldPriceList)
	}
	if t.EstimateCompletedAt == nil {
		missing = append(missing, FieldEstimateCompletedAt)
	}
	return missing
}
