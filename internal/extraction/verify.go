package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

var verifyKeywords = regexp.MustCompile(
	`(?i)\b(?:summary|total|rcv|acv|net\s+claim|price\s+list|date\s+completed)\b`)

// Verifier cross-checks the normalizer's totals against quoted source pages
// with one model call.
type Verifier struct {
	LLM *LLM
	Cfg config.ExtractionConfig
}

const verifySystem = `You verify extracted values against insurance estimate source text. ` +
	`Respond with strict JSON only: {"verifications": [{"field": string, ` +
	`"extracted_value": any, "observed_value": any?, "confidence": number, ` +
	`"pages": [int], "notes": string?}], "corrections": {field: value}}. ` +
	`Include a correction entry only when the source contradicts the extracted value. ` +
	`No prose, no markdown.`

// Verify checks the five totals against up to MaxVerifyPages keyword pages.
// No configured client returns an empty result with skipped=true and no
// error. An empty page selection still prompts, with empty source context.
func (v *Verifier) Verify(ctx context.Context, totals *model.NormalizedTotals, pages []model.PageText) (*model.VerificationResult, bool, error) {
	if v.LLM == nil {
		return model.EmptyVerification(), true, nil
	}

	selected := selectPages(pages, verifyKeywords, v.Cfg.MaxVerifyPages, 0)

	extracted, err := json.Marshal(totals)
	if err != nil {
		return model.EmptyVerification(), false, eris.Wrap(err, "extraction: marshal totals for verify")
	}

	prompt := fmt.Sprintf(
		"Verify each of these extracted estimate totals against the source pages below. "+
			"For each field report the value you observe, a confidence from 0 to 1, and the pages you used.\n\n"+
			"Extracted values:\n%s\n\nSource pages:\n%s",
		extracted,
		pageContext(selected, v.Cfg.MaxCharsPerPage),
	)

	raw, err := v.LLM.Complete(ctx, "verify", verifySystem, prompt)
	if err != nil {
		return model.EmptyVerification(), false, err
	}

	var result model.VerificationResult
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &result); err != nil {
		return model.EmptyVerification(), false, eris.Wrap(err, "extraction: verification response")
	}
	if result.Corrections == nil {
		result.Corrections = map[string]any{}
	}
	return &result, false, nil
}
