package extractor

import (
	"fmt"
	"regexp"
	"strings"
)

// Source tags, used for ranking and diagnostics.
const (
	SourceJSONLD  = "json-ld"
	SourceRawJSON = "raw-json"
	SourceCustom  = "custom"
	SourceSelector = "selector"
	SourceText    = "text"
)

// Candidate is one potential price reading with provenance.
type Candidate struct {
	Price    float64
	Currency string
	Selector string
	Source   string
	Score    int
	Snippet  string
}

const maxSnippetLen = 220

var (
	priceWordRe    = regexp.MustCompile(`(?i)price|fiyat|sale|deal|current|ourprice|discount`)
	shippingWordRe = regexp.MustCompile(`(?i)shipping|delivery|kargo|installment|taksit|monthly|save`)
	metaNoiseRe    = regexp.MustCompile(`(?i)availability|website|url|vat|date|mm/dd/yyyy`)
	cssNoiseRe     = regexp.MustCompile(`(?i)width|height|margin|padding|font|button|registry|spacing`)

	selectorPriceRe = regexp.MustCompile(`(?i)price|fiyat|ourprice|deal|sale|discount`)
	selectorOldRe   = regexp.MustCompile(`(?i)old|strike|cross|was|list|compare`)
)

func isWildcardSelector(selector string) bool {
	return strings.Contains(selector, `[class*="price"]`) || strings.Contains(selector, `[id*="price"]`)
}

// adjustScore applies the cumulative scoring table to a base score.
// Kept pure so the weights are testable without DOM traversal.
func adjustScore(base int, text, selector, currency, source string, price float64, preferred string) int {
	score := base

	if priceWordRe.MatchString(text) {
		score += 25
	}
	if shippingWordRe.MatchString(text) {
		score -= 25
	}
	if metaNoiseRe.MatchString(text) {
		score -= 40
	}
	if cssNoiseRe.MatchString(text) {
		score -= 45
	}

	if selectorPriceRe.MatchString(selector) {
		score += 18
	}
	if selectorOldRe.MatchString(selector) {
		score -= 20
	}
	if isWildcardSelector(selector) {
		score -= 20
	}

	if currency != preferred && source != SourceJSONLD {
		score -= 12
	}
	if price < 2 && source != SourceJSONLD {
		score -= 50
	}
	if _, ok := supportedCurrencies[currency]; ok {
		score += 8
	}
	if price > 0 && price < 2_000_000 {
		score += 5
	}
	return score
}

// buildCandidate turns a raw text fragment into a scored candidate.
// Returns nil when the fragment fails the construction rules.
func buildCandidate(text, selector, source, preferred string, base int) *Candidate {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxSnippetLen {
		return nil
	}

	currency := detectCurrency(text)
	explicit := currency != ""
	if !explicit {
		currency = preferred
	}

	numbers := numberPattern.FindAllString(text, -1)
	if len(numbers) == 0 {
		return nil
	}
	// Several numbers and no currency marker reads like a spec table
	// row, not a price.
	if len(numbers) > 2 && !explicit {
		return nil
	}
	if source == SourceText && !explicit && !priceWordRe.MatchString(text) {
		return nil
	}

	price, err := normalizeNumber(numbers[0], currency)
	if err != nil {
		return nil
	}

	return &Candidate{
		Price:    price,
		Currency: currency,
		Selector: selector,
		Source:   source,
		Score:    adjustScore(base, text, selector, currency, source, price, preferred),
		Snippet:  snippet(text),
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}

// dedupe keeps the highest-scored candidate per (selector, price,
// currency), preserving first-seen order otherwise.
func dedupe(cands []Candidate) []Candidate {
	type key struct {
		selector string
		price    float64
		currency string
	}
	best := make(map[key]int, len(cands))
	var out []Candidate
	for _, c := range cands {
		k := key{c.Selector, c.Price, c.Currency}
		if idx, ok := best[k]; ok {
			if c.Score > out[idx].Score {
				out[idx] = c
			}
			continue
		}
		best[k] = len(out)
		out = append(out, c)
	}
	return out
}

func (c Candidate) String() string {
	return fmt.Sprintf("%.2f %s via %s (%s, score %d)", c.Price, c.Currency, c.Selector, c.Source, c.Score)
}
