package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clearclaim/estimate-cli/internal/model"
)

// selectPages returns up to max pages whose text matches re, in page order.
// When nothing matches it falls back to the first fallback pages; a fallback
// of 0 returns an empty selection.
func selectPages(pages []model.PageText, re *regexp.Regexp, max, fallback int) []model.PageText {
	var selected []model.PageText
	for _, p := range pages {
		if re.MatchString(p.RawText) {
			selected = append(selected, p)
			if len(selected) >= max {
				return selected
			}
		}
	}
	if len(selected) > 0 {
		return selected
	}

	if fallback > len(pages) {
		fallback = len(pages)
	}
	return pages[:fallback]
}

// pageContext renders selected pages as prompt source material, truncating
// each page to maxChars to bound prompt size.
func pageContext(pages []model.PageText, maxChars int) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		text := p.RawText
		if maxChars > 0 && len(text) > maxChars {
			text = text[:maxChars]
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s", p.PageNumber, text)
	}
	return sb.String()
}

// pageNumbers lists the page numbers of a selection, for source attribution.
func pageNumbers(pages []model.PageText) []int {
	nums := make([]int, len(pages))
	for i, p := range pages {
		nums[i] = p.PageNumber
	}
	return nums
}
