// Package availability classifies a product page as in stock or out of
// stock from structured data, visible text and purchase affordances.
package availability

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/pricewatch/internal/models"
)

const maxActionElements = 160

// Signal is one scored piece of evidence with provenance.
type Signal struct {
	Score  int
	Reason string
	Source string
}

// Signals is the evidence aggregate the collectors fill in before
// arbitration.
type Signals struct {
	BestIn  Signal
	BestOut Signal

	StructuredIn  *Signal
	StructuredOut *Signal

	HasEnabledPurchaseAction  bool
	HasDisabledPurchaseAction bool
	HasBuyingOptionsAction    bool
	HasNotifyAction           bool
	RequiresVariantSelection  bool
	HasVariantSelectors       bool
}

func (s *Signals) raiseOut(score int, reason, source string) {
	if score > s.BestOut.Score {
		s.BestOut = Signal{Score: score, Reason: reason, Source: source}
	}
}

func (s *Signals) raiseIn(score int, reason, source string) {
	if score > s.BestIn.Score {
		s.BestIn = Signal{Score: score, Reason: reason, Source: source}
	}
}

// Result is the classification verdict.
type Result struct {
	Status     models.StockStatus
	Confidence int
	Reason     string
	Source     string
	Signals    Signals
}

var availabilitySelectors = []string{
	"#availability",
	"#availabilityInsideBuyBox_feature_div",
	"#outOfStock",
	`[itemprop="availability"]`,
	`[class*="stock"]`,
	`[class*="availability"]`,
	`[id*="stock"]`,
	`[id*="availability"]`,
	"[data-stock]",
	"[data-availability]",
}

var amazonSecondaryOfferSelectors = []string{
	"#buybox-see-all-buying-choices",
	`[data-action="show-all-offers-display"]`,
	"#all-offers-display",
	"#aod-has-oas-offers",
	`a[href*="/gp/offer-listing/"]`,
	`a[href*="ref=dp_olp"]`,
}

// Classify collects evidence from the document and arbitrates it.
func Classify(doc *goquery.Document, html, pageURL string) Result {
	sig := Signals{}
	amazon := isAmazonHost(pageURL)

	collectStructuredMeta(doc, &sig)
	collectJSONLD(doc, &sig)
	collectTextualSelectors(doc, &sig)
	collectActions(doc, amazon, &sig)
	collectVariantStructure(doc, &sig)
	if amazon {
		collectAmazonStructure(doc, &sig)
	}

	return arbitrate(doc, amazon, sig)
}

func collectStructuredMeta(doc *goquery.Document, sig *Signals) {
	record := func(value, source string) {
		if value == "" {
			return
		}
		applyStructuredToken(value, source, sig)
	}
	doc.Find(`meta[itemprop="availability"], meta[property="product:availability"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		record(v, "meta")
	})
	doc.Find(`link[itemprop="availability"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("href")
		record(v, "meta")
	})
}

func applyStructuredToken(value, source string, sig *Signals) {
	folded := foldLetters(value)
	if term, ok := containsAny(folded, structuredOutTokens); ok {
		if sig.StructuredOut == nil || sig.StructuredOut.Score < 94 {
			sig.StructuredOut = &Signal{Score: 94, Reason: fmt.Sprintf("structured availability %q", term), Source: source}
		}
		sig.raiseOut(94, fmt.Sprintf("structured availability %q", term), source)
		return
	}
	if term, ok := containsAny(folded, structuredInTokens); ok {
		if sig.StructuredIn == nil || sig.StructuredIn.Score < 90 {
			sig.StructuredIn = &Signal{Score: 90, Reason: fmt.Sprintf("structured availability %q", term), Source: source}
		}
		sig.raiseIn(90, fmt.Sprintf("structured availability %q", term), source)
	}
}

func collectJSONLD(doc *goquery.Document, sig *Signals) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var root any
		if err := json.Unmarshal([]byte(s.Text()), &root); err != nil {
			return
		}
		walkForAvailability(root, sig)
	})
}

func walkForAvailability(node any, sig *Signals) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "availability" || key == "offerAvailability" {
				if str, ok := val.(string); ok {
					applyStructuredToken(str, "json-ld", sig)
				}
			}
			walkForAvailability(val, sig)
		}
	case []any:
		for _, item := range v {
			walkForAvailability(item, sig)
		}
	}
}

func collectTextualSelectors(doc *goquery.Document, sig *Signals) {
	for _, selector := range availabilitySelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if !isVisible(s) {
				return
			}
			text := strings.TrimSpace(s.Text())
			if text == "" || len(text) > 400 {
				return
			}
			matchStockTerms(text, "availability-selector", 12, sig)
		})
	}
}

// matchStockTerms applies the fuzzy multilingual term match. Longer
// phrases carry more weight; bonus reflects trust in the source.
func matchStockTerms(text, source string, bonus int, sig *Signals) {
	folded := foldText(text)
	if term, ok := containsAny(folded, outOfStockTerms); ok {
		base := 60
		if len(term) >= 10 {
			base = 70
		}
		sig.raiseOut(base+bonus, fmt.Sprintf("matched %q", term), source)
	}
	if term, ok := containsAny(folded, inStockTerms); ok {
		base := 54
		if len(term) >= 10 {
			base = 62
		}
		sig.raiseIn(base+bonus, fmt.Sprintf("matched %q", term), source)
	}
}

func collectActions(doc *goquery.Document, amazon bool, sig *Signals) {
	seen := 0
	doc.Find(`button, input[type="submit"], a[role="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		seen++
		if seen > maxActionElements {
			return false
		}
		if !isVisible(s) {
			return true
		}

		label := actionLabel(s)
		if label == "" {
			return true
		}
		folded := foldText(label)
		blob := foldText(attrBlob(s))
		disabled := isDisabled(s)

		if _, ok := containsAny(folded, variantPromptTerms); ok {
			sig.RequiresVariantSelection = true
		}

		if _, ok := containsAny(folded, buyingOptionsTerms); ok {
			sig.HasBuyingOptionsAction = true
			sig.raiseOut(68, "only buying options offered", "buying-options")
			return true
		}
		if term, ok := containsAny(folded, notifyTerms); ok {
			sig.HasNotifyAction = true
			sig.raiseOut(74, fmt.Sprintf("notify action %q", term), "notify-action")
			return true
		}

		purchase := false
		if _, ok := containsAny(folded, purchaseActionTerms); ok {
			purchase = true
		} else if _, ok := containsAny(blob, purchaseActionTerms); ok {
			purchase = true
		}
		if !purchase {
			return true
		}

		// Amazon renders keyboard-shortcut legends ("alt+shift+c to add
		// to cart") as hidden-ish chrome; those are not buy buttons.
		if amazon {
			if _, mod := containsAny(folded, keyboardModifierTerms); mod {
				return true
			}
		}

		if disabled {
			sig.HasDisabledPurchaseAction = true
			sig.raiseOut(80, "purchase action disabled", "purchase-action-disabled")
		} else {
			sig.HasEnabledPurchaseAction = true
			sig.raiseIn(78, "purchase action available", "purchase-action")
		}
		return true
	})
}

var variantAttrHints = []string{"size", "beden", "numara", "renk", "color", "variant", "option"}

func collectVariantStructure(doc *goquery.Document, sig *Signals) {
	doc.Find("select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find("option").Length() > 1 {
			sig.HasVariantSelectors = true
			return false
		}
		blob := foldText(attrBlob(s))
		if _, ok := containsAny(blob, variantAttrHints); ok {
			sig.HasVariantSelectors = true
			return false
		}
		return true
	})
}

func collectAmazonStructure(doc *goquery.Document, sig *Signals) {
	if doc.Find(`[id^="unqualifiedBuyBox"]`).Length() > 0 {
		sig.HasBuyingOptionsAction = true
		sig.raiseOut(88, "unqualified buy box", "amazon-buybox")
	}
	for _, selector := range amazonSecondaryOfferSelectors {
		if doc.Find(selector).Length() > 0 {
			sig.raiseOut(72, "only third-party offers listed", "amazon-offer-listing")
			break
		}
	}
}

var amazonStrongOOSPhrases = []string{
	"currently unavailable",
	"we dont know when or if this item will be back in stock",
	"out of stock",
	"derzeit nicht verfugbar",
	"actuellement indisponible",
}

// arbitrate applies the decision ladder; the first matching rule wins.
func arbitrate(doc *goquery.Document, amazon bool, sig Signals) Result {
	// A disabled buy button next to a variant picker usually means the
	// shopper has not picked a size yet, not that the item is gone.
	if (sig.RequiresVariantSelection || sig.HasVariantSelectors) &&
		sig.HasDisabledPurchaseAction && !sig.HasEnabledPurchaseAction &&
		sig.BestOut.Score < 92 && sig.StructuredOut == nil {
		return Result{
			Status:     models.StockInStock,
			Confidence: maxInt(sig.BestIn.Score, 72),
			Reason:     "variant selection required before purchase",
			Source:     "variant-arbitration",
			Signals:    sig,
		}
	}

	if sig.StructuredOut != nil && (sig.StructuredIn == nil || sig.StructuredOut.Score >= sig.StructuredIn.Score+2) {
		return Result{
			Status:     models.StockOutOfStock,
			Confidence: sig.StructuredOut.Score,
			Reason:     sig.StructuredOut.Reason,
			Source:     sig.StructuredOut.Source,
			Signals:    sig,
		}
	}
	if sig.StructuredIn != nil {
		return Result{
			Status:     models.StockInStock,
			Confidence: sig.StructuredIn.Score,
			Reason:     sig.StructuredIn.Reason,
			Source:     sig.StructuredIn.Source,
			Signals:    sig,
		}
	}

	if sig.HasEnabledPurchaseAction && !sig.HasDisabledPurchaseAction && sig.BestOut.Score < 88 {
		return Result{
			Status:     models.StockInStock,
			Confidence: maxInt(sig.BestIn.Score, 74),
			Reason:     "purchase action available",
			Source:     "purchase-action",
			Signals:    sig,
		}
	}

	if sig.BestOut.Score >= 82 && sig.BestOut.Score >= sig.BestIn.Score+10 {
		return Result{
			Status:     models.StockOutOfStock,
			Confidence: sig.BestOut.Score,
			Reason:     sig.BestOut.Reason,
			Source:     sig.BestOut.Source,
			Signals:    sig,
		}
	}
	if sig.BestIn.Score >= 72 && sig.BestIn.Score >= sig.BestOut.Score+6 {
		return Result{
			Status:     models.StockInStock,
			Confidence: sig.BestIn.Score,
			Reason:     sig.BestIn.Reason,
			Source:     sig.BestIn.Source,
			Signals:    sig,
		}
	}
	if sig.HasDisabledPurchaseAction && sig.BestOut.Score >= 74 {
		return Result{
			Status:     models.StockOutOfStock,
			Confidence: sig.BestOut.Score,
			Reason:     sig.BestOut.Reason,
			Source:     sig.BestOut.Source,
			Signals:    sig,
		}
	}

	if amazon {
		blob := foldText(amazonCompactBlob(doc))
		if term, ok := containsAny(blob, amazonStrongOOSPhrases); ok {
			return Result{
				Status:     models.StockOutOfStock,
				Confidence: maxInt(sig.BestOut.Score, 90),
				Reason:     fmt.Sprintf("matched %q", term),
				Source:     "amazon-text",
				Signals:    sig,
			}
		}
		if sig.HasBuyingOptionsAction && !sig.HasEnabledPurchaseAction && sig.BestIn.Score < 78 {
			return Result{
				Status:     models.StockOutOfStock,
				Confidence: maxInt(sig.BestOut.Score, 84),
				Reason:     "primary offer gone, only buying options remain",
				Source:     "amazon-buying-options",
				Signals:    sig,
			}
		}
	}

	conf := maxInt(sig.BestIn.Score, sig.BestOut.Score)
	if conf < 0 {
		conf = 0
	}
	return Result{
		Status:     models.StockUnknown,
		Confidence: conf,
		Reason:     "no decisive signal",
		Source:     "none",
		Signals:    sig,
	}
}

func amazonCompactBlob(doc *goquery.Document) string {
	var parts []string
	doc.Find("#availability, #outOfStock").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, strings.TrimSpace(s.Text()))
	})
	parts = append(parts, strings.TrimSpace(doc.Find("title").First().Text()))
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		parts = append(parts, desc)
	}
	return strings.Join(parts, " ")
}

func actionLabel(s *goquery.Selection) string {
	if v, ok := s.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return strings.TrimSpace(s.Text())
}

func attrBlob(s *goquery.Selection) string {
	var parts []string
	for _, attr := range []string{"id", "name", "class", "data-testid", "data-test-id"} {
		if v, ok := s.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, ok := s.Attr("aria-disabled"); ok && strings.EqualFold(v, "true") {
		return true
	}
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(strings.ToLower(class)) {
			if strings.Contains(c, "disabled") {
				return true
			}
		}
	}
	return false
}

var hiddenClasses = map[string]struct{}{
	"hidden":          {},
	"d-none":          {},
	"sr-only":         {},
	"visually-hidden": {},
}

func isVisible(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return false
	}
	if v, ok := s.Attr("aria-hidden"); ok && strings.EqualFold(v, "true") {
		return false
	}
	if style, ok := s.Attr("style"); ok {
		compact := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(compact, "display:none") ||
			strings.Contains(compact, "visibility:hidden") ||
			strings.Contains(compact, "opacity:0;") ||
			strings.HasSuffix(compact, "opacity:0") {
			return false
		}
	}
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(strings.ToLower(class)) {
			if _, hidden := hiddenClasses[c]; hidden {
				return false
			}
		}
	}
	return true
}

func isAmazonHost(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), "amazon.")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
