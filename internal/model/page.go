package model

// PageText is the OCR output for a single estimate page. Produced once per
// job run, ordered by page number, and never mutated by extraction phases.
type PageText struct {
	PageNumber int    `json:"page_number"`
	RawText    string `json:"raw_text"`
}

// ConcatPages joins page text in page order with blank-line separators.
// Several extraction phases operate on the whole document at once.
func ConcatPages(pages []PageText) string {
	total := 0
	for _, p := range pages {
		total += len(p.RawText) + 2
	}
	buf := make([]byte, 0, total)
	for i, p := range pages {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, p.RawText...)
	}
	return string(buf)
}
