package model

// VerificationItem is the model's judgment on one extracted total.
type VerificationItem struct {
	Field          string  `json:"field"`
	ExtractedValue any     `json:"extracted_value"`
	ObservedValue  any     `json:"observed_value,omitempty"`
	Confidence     float64 `json:"confidence"`
	Pages          []int   `json:"pages,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// VerificationResult aggregates the document-grounded cross-check of the
// normalizer's totals. Empty when verification was skipped or failed;
// verification never blocks the pipeline.
type VerificationResult struct {
	Verifications []VerificationItem `json:"verifications"`
	Corrections   map[string]any     `json:"corrections"`
}

// EmptyVerification returns a result with no findings and a non-nil
// corrections map, the shape callers receive when verification is skipped.
func EmptyVerification() *VerificationResult {
	return &VerificationResult{
		Verifications: []VerificationItem{},
		Corrections:   map[string]any{},
	}
}
