package extraction

import (
	"regexp"
	"strings"

	"github.com/clearclaim/estimate-cli/internal/model"
)

// Length fields share one shape: label, optional separator, number, optional
// LF/ft/feet suffix. Squares, pitch, and stories have their own forms.
var measurementPatterns = map[string]*regexp.Regexp{
	"ridge":   lengthPattern(`(?:total\s+)?ridges?(?:\s+length)?`),
	"hip":     lengthPattern(`(?:total\s+)?hips?(?:\s+length)?`),
	"eave":    lengthPattern(`(?:total\s+)?eaves?(?:\s+length)?`),
	"rake":    lengthPattern(`(?:total\s+)?rakes?(?:\s+length)?`),
	"valley":  lengthPattern(`(?:total\s+)?valleys?(?:\s+length)?`),
	"squares": regexp.MustCompile(`(?i)\b(?:number\s+of\s+squares|total\s+squares|squares)\b\s*[:=]?\s*([\d,]+(?:\.\d+)?)`),
	"pitch":   regexp.MustCompile(`(?i)\b(?:predominant\s+pitch|pitch|slope)\b\s*[:=]?\s*(\d{1,2}\s*/\s*\d{1,2})`),
	"stories": regexp.MustCompile(`(?i)\b(?:number\s+of\s+stories|stories)\b\s*[:=]?\s*(\d+)`),
}

func lengthPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\b\s*[:=]?\s*([\d,]+(?:\.\d+)?)\s*(?:lf|ft|feet)?\b`)
}

// ParseMeasurements extracts roof geometry scalars from the concatenated page
// text. Pure regex, no model involvement; this phase runs even when every
// other phase fails. Derived totals are the orchestrator's job.
func ParseMeasurements(pages []model.PageText) model.RoofMeasurements {
	text := model.ConcatPages(pages)

	var m model.RoofMeasurements
	m.RidgeLength = matchLength(text, "ridge")
	m.HipLength = matchLength(text, "hip")
	m.EaveLength = matchLength(text, "eave")
	m.RakeLength = matchLength(text, "rake")
	m.ValleyLength = matchLength(text, "valley")
	m.Squares = matchLength(text, "squares")

	if sm := measurementPatterns["pitch"].FindStringSubmatch(text); sm != nil {
		pitch := strings.ReplaceAll(sm[1], " ", "")
		m.Pitch = &pitch
	}
	if sm := measurementPatterns["stories"].FindStringSubmatch(text); sm != nil {
		if v, err := parseNumber(sm[1]); err == nil {
			stories := int(v)
			m.Stories = &stories
		}
	}
	return m
}

func matchLength(text, field string) *float64 {
	sm := measurementPatterns[field].FindStringSubmatch(text)
	if sm == nil {
		return nil
	}
	v, err := parseNumber(sm[1])
	if err != nil {
		return nil
	}
	return &v
}
