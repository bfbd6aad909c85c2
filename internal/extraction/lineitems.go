package extraction

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/clearclaim/estimate-cli/internal/config"
	"github.com/clearclaim/estimate-cli/internal/model"
)

//go:embed categories.yaml
var categoriesYAML []byte

// CategoryDef describes one line-item category: the page-selection keywords
// and the domain guidance injected into the extraction prompt.
type CategoryDef struct {
	Category model.Category `yaml:"category"`
	Keywords []string       `yaml:"keywords"`
	Guidance string         `yaml:"guidance"`

	keywordRe *regexp.Regexp
}

type categoryFile struct {
	Categories []CategoryDef `yaml:"categories"`
}

// LoadCategories parses the embedded category definitions and compiles their
// keyword patterns.
func LoadCategories() ([]CategoryDef, error) {
	var file categoryFile
	if err := yaml.Unmarshal(categoriesYAML, &file); err != nil {
		return nil, eris.Wrap(err, "extraction: parse category definitions")
	}

	for i := range file.Categories {
		def := &file.Categories[i]
		if len(def.Keywords) == 0 {
			return nil, eris.Errorf("extraction: category %s has no keywords", def.Category)
		}
		re, err := regexp.Compile(`(?i)(?:` + strings.Join(def.Keywords, "|") + `)`)
		if err != nil {
			return nil, eris.Wrapf(err, "extraction: compile keywords for %s", def.Category)
		}
		def.keywordRe = re
	}
	return file.Categories, nil
}

// LineItemResult is the outcome of one category extraction. Skipped is true
// when no model client is configured; the caller treats that the same as "no
// items found" but can log it distinctly.
type LineItemResult struct {
	Items   []model.LineItem
	Skipped bool
}

// LineItemExtractor runs one model call per category over a keyword-filtered
// page subset.
type LineItemExtractor struct {
	LLM *LLM
	Cfg config.ExtractionConfig
}

const lineItemSystem = `You extract line items from insurance roofing estimates. ` +
	`Respond with strict JSON only: either a bare array of items or {"items": [...]}. ` +
	`Each item: {"code": string?, "description": string, ` +
	`"quantity": {"value": number, "unit": string}?, "unit_price": number?, ` +
	`"total_price": number?, "confidence": number?}. ` +
	`Return [] when no matching items exist. No prose, no markdown.`

// Extract runs one category. No configured client yields a Skipped result
// with no error; a model or parse failure yields an explicit error and the
// caller decides how to degrade.
func (e *LineItemExtractor) Extract(ctx context.Context, def CategoryDef, pages []model.PageText) (LineItemResult, error) {
	if e.LLM == nil {
		return LineItemResult{Skipped: true}, nil
	}

	selected := selectPages(pages, def.keywordRe, e.Cfg.MaxKeywordPages, e.Cfg.FallbackPages)

	prompt := fmt.Sprintf(
		"Extract every %s line item from this estimate text.\n%s\n\n%s",
		def.Category, strings.TrimSpace(def.Guidance),
		pageContext(selected, e.Cfg.MaxCharsPerPage),
	)

	raw, err := e.LLM.Complete(ctx, "line_items_"+string(def.Category), lineItemSystem, prompt)
	if err != nil {
		return LineItemResult{}, err
	}

	items, err := parseLineItems(raw)
	if err != nil {
		return LineItemResult{}, eris.Wrapf(err, "extraction: %s response", def.Category)
	}

	srcPages := pageNumbers(selected)
	for i := range items {
		items[i].Category = def.Category
		if len(items[i].SourcePages) == 0 {
			items[i].SourcePages = srcPages
		}
	}
	return LineItemResult{Items: items}, nil
}

// parseLineItems accepts either a bare JSON array or {"items": [...]},
// optionally fenced.
func parseLineItems(raw string) ([]model.LineItem, error) {
	cleaned := cleanJSON(raw)

	var items []model.LineItem
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []model.LineItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, eris.Wrap(err, "extraction: line items JSON")
	}
	return wrapped.Items, nil
}
