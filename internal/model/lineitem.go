package model

// Category identifies a roof edge-protection line-item type.
type Category string

const (
	CategoryRidgeCap    Category = "ridge_cap"
	CategoryStarter     Category = "starter"
	CategoryDripEdge    Category = "drip_edge"
	CategoryGutterApron Category = "gutter_apron"
	CategoryIceWater    Category = "ice_water"
)

// ExtractorCategories lists the categories that have a dedicated line-item
// extractor. CategoryRidgeCap items come from a separate review flow and are
// never produced here.
var ExtractorCategories = []Category{
	CategoryStarter,
	CategoryDripEdge,
	CategoryGutterApron,
	CategoryIceWater,
}

// Quantity is a measured amount with its unit as printed in the estimate.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// LineItem is a single estimate line attributed to one category. Two
// extractors never legitimately claim the same category; items across
// categories are concatenated without deduplication.
type LineItem struct {
	Category    Category  `json:"category"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description"`
	Quantity    *Quantity `json:"quantity,omitempty"`
	UnitPrice   *float64  `json:"unit_price,omitempty"`
	TotalPrice  *float64  `json:"total_price,omitempty"`
	SourcePages []int     `json:"source_pages,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
}
