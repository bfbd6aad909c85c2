package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

// Anchored patterns for the five target fields. Each captures the raw value;
// parsing and validation happen after the match.
var totalsPatterns = map[model.TotalsField]*regexp.Regexp{
	model.FieldRCV: regexp.MustCompile(
		`(?i)\b(?:replacement\s+cost\s+value|total\s+rcv|rcv)\b[^\d$\n-]*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	model.FieldACV: regexp.MustCompile(
		`(?i)\b(?:actual\s+cash\s+value|total\s+acv|acv)\b[^\d$\n-]*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	model.FieldNetClaim: regexp.MustCompile(
		`(?i)\bnet\s+claim\b(?:\s+amount)?[^\d$\n-]*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	model.FieldPriceList: regexp.MustCompile(
		`(?i)\bprice\s+list\b\s*[:=]?\s*([A-Za-z][A-Za-z0-9_\-]{2,})`),
	model.FieldEstimateCompletedAt: regexp.MustCompile(
		`(?i)\b(?:date\s+completed|estimate\s+completed(?:\s+date)?|date\s+of\s+estimate|completed\s+on)\b\s*[:=]?\s*(\d{1,2}/\d{1,2}/\d{2,4})`),
}

// totalsFieldOrder fixes iteration order so Sources come out canonical.
var totalsFieldOrder = []model.TotalsField{
	model.FieldRCV,
	model.FieldACV,
	model.FieldNetClaim,
	model.FieldPriceList,
	model.FieldEstimateCompletedAt,
}

// normalizerKeywords selects the pages most likely to carry the totals block
// when the deterministic pass leaves gaps.
var normalizerKeywords = regexp.MustCompile(
	`(?i)\b(?:summary|total|rcv|acv|net\s+claim|price\s+list|replacement\s+cost)\b`)

// Normalizer extracts the five scalar totals from page text. The
// deterministic regex pass always runs; the model fallback fills only fields
// the regex pass missed, and only when a client is configured.
type Normalizer struct {
	LLM *LLM
	Cfg config.ExtractionConfig
}

// Extract runs the deterministic pass and, when fields remain missing and a
// client is configured, the model fallback. The returned totals are always
// usable; a non-nil error means the fallback failed and the deterministic
// result stands.
func (n *Normalizer) Extract(ctx context.Context, pages []model.PageText) (*model.NormalizedTotals, error) {
	totals := normalizeDeterministic(pages)

	if len(totals.MissingFields()) == 0 || n.LLM == nil {
		return totals, nil
	}

	err := n.fillMissing(ctx, totals, pages)
	totals.RecomputeConfidence()
	if err != nil {
		return totals, eris.Wrap(err, "extraction: totals fallback")
	}
	return totals, nil
}

// normalizeDeterministic applies the five patterns page by page. First match
// per field wins; later pages never override an already-found field.
func normalizeDeterministic(pages []model.PageText) *model.NormalizedTotals {
	totals := &model.NormalizedTotals{}

	for _, page := range pages {
		for _, field := range totalsFieldOrder {
			if totalsFieldSet(totals, field) {
				continue
			}
			m := totalsPatterns[field].FindStringSubmatch(page.RawText)
			if m == nil {
				continue
			}
			if setTotalsField(totals, field, m[1]) {
				totals.Sources = append(totals.Sources, model.FieldSource{
					Field:       field,
					PageNumber:  page.PageNumber,
					MatchedText: strings.TrimSpace(m[0]),
				})
			}
		}
	}

	totals.RecomputeConfidence()
	return totals
}

func totalsFieldSet(t *model.NormalizedTotals, field model.TotalsField) bool {
	switch field {
	case model.FieldRCV:
		return t.RCV != nil
	case model.FieldACV:
		return t.ACV != nil
	case model.FieldNetClaim:
		return t.NetClaim != nil
	case model.FieldPriceList:
		return t.PriceList != nil
	case model.FieldEstimateCompletedAt:
		return t.EstimateCompletedAt != nil
	}
	return false
}

// setTotalsField parses raw and assigns it. A value that fails to parse is
// treated as a non-match so a later page can still supply the field.
func setTotalsField(t *model.NormalizedTotals, field model.TotalsField, raw string) bool {
	switch field {
	case model.FieldRCV, model.FieldACV, model.FieldNetClaim:
		v, err := parseMoney(raw)
		if err != nil {
			return false
		}
		switch field {
		case model.FieldRCV:
			t.RCV = &v
		case model.FieldACV:
			t.ACV = &v
		default:
			t.NetClaim = &v
		}
	case model.FieldPriceList:
		s := strings.TrimSpace(raw)
		t.PriceList = &s
	case model.FieldEstimateCompletedAt:
		iso, err := parseDate(raw)
		if err != nil {
			return false
		}
		t.EstimateCompletedAt = &iso
	}
	return true
}

const normalizerSystem = `You extract scalar totals from insurance roofing estimates. ` +
	`Respond with strict JSON only: a single object whose keys are exactly the requested field names. ` +
	`Use numbers for dollar amounts (no currency symbols or separators), strings otherwise. ` +
	`Omit any field you cannot find in the source text. No prose, no markdown.`

// fillMissing issues one bounded model call for the fields the deterministic
// pass missed and merges the response. Deterministic values are never
// overwritten.
func (n *Normalizer) fillMissing(ctx context.Context, totals *model.NormalizedTotals, pages []model.PageText) error {
	missing := totals.MissingFields()

	selected := selectPages(pages, normalizerKeywords, n.Cfg.MaxKeywordPages, n.Cfg.NormalizerPages)

	fieldNames := make([]string, len(missing))
	for i, f := range missing {
		fieldNames[i] = string(f)
	}

	prompt := fmt.Sprintf(
		"Find the following fields in this estimate text: %s.\n"+
			"Field meanings: rcv = replacement cost value, acv = actual cash value, "+
			"net_claim = net claim amount, price_list = price list identifier, "+
			"estimate_completed_at = estimate completion date (return as YYYY-MM-DD).\n\n%s",
		strings.Join(fieldNames, ", "),
		pageContext(selected, n.Cfg.MaxCharsPerPage),
	)

	raw, err := n.LLM.Complete(ctx, "totals_fallback", normalizerSystem, prompt)
	if err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &payload); err != nil {
		return eris.Wrap(err, "extraction: totals fallback response")
	}

	for _, field := range missing {
		val, ok := payload[string(field)]
		if !ok || val == nil {
			continue
		}
		if !mergeFallbackField(totals, field, val) {
			zap.L().Debug("totals fallback value rejected",
				zap.String("field", string(field)),
				zap.Any("value", val))
		}
	}
	totals.UsedLLM = true
	return nil
}

// mergeFallbackField coerces a model-supplied value onto a missing field.
func mergeFallbackField(t *model.NormalizedTotals, field model.TotalsField, val any) bool {
	switch field {
	case model.FieldRCV, model.FieldACV, model.FieldNetClaim:
		v, ok := coerceNumber(val)
		if !ok {
			return false
		}
		switch field {
		case model.FieldRCV:
			t.RCV = &v
		case model.FieldACV:
			t.ACV = &v
		default:
			t.NetClaim = &v
		}
	case model.FieldPriceList:
		s, ok := val.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return false
		}
		s = strings.TrimSpace(s)
		t.PriceList = &s
	case model.FieldEstimateCompletedAt:
		s, ok := val.(string)
		if !ok {
			return false
		}
		iso, ok := coerceISODate(s)
		if !ok {
			return false
		}
		t.EstimateCompletedAt = &iso
	}
	return true
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func coerceISODate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if isoDatePattern.MatchString(s) {
		return s, true
	}
	iso, err := parseDate(s)
	if err != nil {
		return "", false
	}
	return iso, true
}

func coerceNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		n, err := parseMoney(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
