package extraction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// cleanJSON strips a markdown code fence from around a model response and
// trims to the outermost JSON value. Models occasionally wrap strict-JSON
// output in ```json fences despite instructions.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Trim any prose around the outermost object or array.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(s, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(s, "]")
	}
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return s
}

// parseMoney parses a currency amount, tolerating a leading dollar sign,
// thousands separators, and missing cents.
func parseMoney(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "extraction: parse money %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("extraction: non-finite money value %q", s)
	}
	return v, nil
}

// parseNumber parses a plain number, stripping thousands separators.
func parseNumber(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "extraction: parse number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("extraction: non-finite value %q", s)
	}
	return v, nil
}

// parseDate parses MM/DD/YY or MM/DD/YYYY into ISO YYYY-MM-DD, rejecting
// dates that do not exist on the calendar. A two-digit year is 2000+YY.
func parseDate(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return "", eris.Errorf("extraction: malformed date %q", s)
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", eris.Wrapf(err, "extraction: date month %q", s)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", eris.Wrapf(err, "extraction: date day %q", s)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", eris.Wrapf(err, "extraction: date year %q", s)
	}
	if len(parts[2]) == 2 {
		year += 2000
	}

	// time.Date normalizes overflow (2/30 becomes 3/1); a changed month or
	// day means the input was not a real calendar date.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", eris.Errorf("extraction: invalid calendar date %q", s)
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}
