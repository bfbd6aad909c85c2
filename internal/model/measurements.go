package model

// RoofMeasurements holds roof geometry scalars parsed from the report pages.
// Nil means not found; derived fields are only populated when both operands
// are present.
type RoofMeasurements struct {
	RidgeLength  *float64 `json:"ridge_length,omitempty"`
	HipLength    *float64 `json:"hip_length,omitempty"`
	EaveLength   *float64 `json:"eave_length,omitempty"`
	RakeLength   *float64 `json:"rake_length,omitempty"`
	ValleyLength *float64 `json:"valley_length,omitempty"`
	Squares      *float64 `json:"squares,omitempty"`
	Pitch        *string  `json:"pitch,omitempty"` // raw "rise/run", e.g. "6/12"
	Stories      *int     `json:"stories,omitempty"`

	// Derived. TotalRidgeHip = ridge+hip, DripEdgeTotal = eave+rake.
	TotalRidgeHip *float64 `json:"total_ridge_hip,omitempty"`
	DripEdgeTotal *float64 `json:"drip_edge_total,omitempty"`
}

// ComputeDerived fills TotalRidgeHip and DripEdgeTotal when both constituent
// values are non-nil. Absent operands leave the derived field absent.
func (m *RoofMeasurements) ComputeDerived() {
	if m.RidgeLength != nil && m.HipLength != nil {
		v := *m.RidgeLength + *m.HipLength
		m.TotalRidgeHip = &v
	}
	if m.EaveLength != nil && m.RakeLength != nil {
		v := *m.EaveLength + *m.RakeLength
		m.DripEdgeTotal = &v
	}
}
