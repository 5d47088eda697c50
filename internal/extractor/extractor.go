// Package extractor turns fetched product HTML into a price reading
// with provenance, scoring candidates from structured data, selectors
// and text heuristics.
package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/maltedev/pricewatch/internal/availability"
	"github.com/maltedev/pricewatch/internal/models"
)

const (
	scoreJSONLD      = 95
	scoreRawPair     = 90
	scoreRawAmount   = 88
	scoreCustom      = 88
	scoreSelector    = 60
	scoreText        = 30
	maxTextNodes     = 1200
	maxPerSelector   = 8
	maxSuggestions   = 5
	oosSuppressScore = 80
)

// Result is the extraction outcome for one page.
type Result struct {
	Price        *float64
	Currency     string
	Confidence   int
	SelectorUsed string
	Source       string
	Suggestions  []Candidate
	Availability availability.Result
}

// Extract parses html and produces the best price candidate plus an
// availability verdict. selectorHint is the user-supplied probe, may be
// empty.
func Extract(html, selectorHint, pageURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	preferred := preferredCurrency(pageURL)
	amazon := isAmazonHost(pageURL)

	var cands []Candidate
	cands = append(cands, collectJSONLDOffers(doc, preferred)...)
	if !amazon {
		cands = append(cands, collectRawJSON(html, preferred)...)
	}
	if selectorHint != "" {
		cands = append(cands, collectCustomProbes(doc, selectorHint, preferred)...)
	}
	cands = append(cands, collectSelectorCandidates(doc, pageURL, preferred)...)
	if !amazon {
		cands = append(cands, collectTextHeuristic(doc, preferred)...)
	}

	cands = dedupe(cands)
	if amazon {
		cands = applyAmazonGate(cands, preferred)
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })

	avail := availability.Classify(doc, html, pageURL)

	res := Result{
		Currency:     preferred,
		Availability: avail,
	}
	if len(cands) > 0 {
		top := cands[0]
		price := top.Price
		res.Price = &price
		res.Currency = top.Currency
		res.SelectorUsed = top.Selector
		res.Source = top.Source
		res.Confidence = clamp(top.Score, 0, 100)
		n := len(cands)
		if n > maxSuggestions {
			n = maxSuggestions
		}
		res.Suggestions = append(res.Suggestions, cands[:n]...)
	}

	// A vanished Amazon buy box leaves list prices all over the page;
	// do not report them as the current price.
	if amazon && avail.Status == models.StockOutOfStock && avail.Confidence >= oosSuppressScore {
		res.Price = nil
		res.Confidence = avail.Confidence
	}

	return res, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- JSON-LD offers ---

func collectJSONLDOffers(doc *goquery.Document, preferred string) []Candidate {
	var cands []Candidate
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var root any
		if err := json.Unmarshal([]byte(s.Text()), &root); err != nil {
			return
		}
		walkOffers(root, preferred, &cands)
	})
	return cands
}

func walkOffers(node any, preferred string, out *[]Candidate) {
	switch v := node.(type) {
	case map[string]any:
		if offers, ok := v["offers"]; ok {
			collectOfferNode(offers, preferred, out)
		}
		for _, val := range v {
			walkOffers(val, preferred, out)
		}
	case []any:
		for _, item := range v {
			walkOffers(item, preferred, out)
		}
	}
}

func collectOfferNode(offers any, preferred string, out *[]Candidate) {
	switch v := offers.(type) {
	case []any:
		for _, o := range v {
			collectOfferNode(o, preferred, out)
		}
	case map[string]any:
		currency := preferred
		if c, ok := stringValue(v["priceCurrency"]); ok && c != "" {
			currency = strings.ToUpper(c)
		}
		for _, key := range []string{"price", "lowPrice", "highPrice"} {
			raw, ok := stringValue(v[key])
			if !ok || raw == "" {
				continue
			}
			price, err := normalizeNumber(raw, currency)
			if err != nil {
				continue
			}
			selector := "json-ld:offers." + key
			*out = append(*out, Candidate{
				Price:    price,
				Currency: currency,
				Selector: selector,
				Source:   SourceJSONLD,
				Score:    adjustScore(scoreJSONLD, raw, selector, currency, SourceJSONLD, price, preferred),
				Snippet:  snippet(raw + " " + currency),
			})
		}
	}
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%.2f", t), ".00"), true
	case nil:
		return "", false
	}
	return "", false
}

// --- raw JSON regex probes ---

var (
	rawPriceAmountRe = regexp.MustCompile(`"priceAmount"\s*:\s*"?([0-9][0-9.,]*)"?`)
	rawPricePairRe   = regexp.MustCompile(`"price"\s*:\s*"([0-9][0-9.,]*)"`)
	rawCurrencyRe    = regexp.MustCompile(`"priceCurrency"\s*:\s*"([A-Za-z]{3})"`)
)

const rawPairWindow = 200

func collectRawJSON(html, preferred string) []Candidate {
	var cands []Candidate

	if m := rawPriceAmountRe.FindStringSubmatch(html); m != nil {
		if price, err := normalizeNumber(m[1], preferred); err == nil {
			cands = append(cands, Candidate{
				Price:    price,
				Currency: preferred,
				Selector: "raw:priceAmount",
				Source:   SourceRawJSON,
				Score:    adjustScore(scoreRawAmount, m[1], "raw:priceAmount", preferred, SourceRawJSON, price, preferred),
				Snippet:  snippet(m[0]),
			})
		}
	}

	for _, loc := range rawPricePairRe.FindAllStringSubmatchIndex(html, 4) {
		raw := html[loc[2]:loc[3]]
		end := loc[1] + rawPairWindow
		if end > len(html) {
			end = len(html)
		}
		cm := rawCurrencyRe.FindStringSubmatch(html[loc[1]:end])
		if cm == nil {
			continue
		}
		currency := strings.ToUpper(cm[1])
		price, err := normalizeNumber(raw, currency)
		if err != nil {
			continue
		}
		cands = append(cands, Candidate{
			Price:    price,
			Currency: currency,
			Selector: "raw:price+priceCurrency",
			Source:   SourceRawJSON,
			Score:    adjustScore(scoreRawPair, raw, "raw:price", currency, SourceRawJSON, price, preferred),
			Snippet:  snippet(raw + " " + currency),
		})
	}
	return cands
}

// --- custom selector probes ---

func collectCustomProbes(doc *goquery.Document, hint, preferred string) []Candidate {
	probes := []string{
		hint,
		"#" + hint,
		"." + hint,
		fmt.Sprintf(`[data-test-id="%s"]`, hint),
		fmt.Sprintf(`[data-testid="%s"]`, hint),
	}
	var cands []Candidate
	for _, probe := range probes {
		matcher, err := cascadia.Compile(probe)
		if err != nil {
			continue
		}
		doc.FindMatcher(matcher).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if c := buildCandidate(readValue(s), probe, SourceCustom, preferred, scoreCustom); c != nil {
				cands = append(cands, *c)
			}
			return i < maxPerSelector
		})
	}
	return cands
}

// --- site adapter + generic selectors ---

func collectSelectorCandidates(doc *goquery.Document, pageURL, preferred string) []Candidate {
	var cands []Candidate
	for _, selector := range selectorsForHost(pageURL) {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if c := buildCandidate(readValue(s), selector, SourceSelector, preferred, scoreSelector); c != nil {
				cands = append(cands, *c)
			}
			return i < maxPerSelector
		})
	}
	return cands
}

// readValue prefers machine-readable attributes over rendered text.
func readValue(s *goquery.Selection) string {
	for _, attr := range []string{"content", "data-price", "aria-label"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return s.Text()
}

// --- text heuristic ---

var textPriceHintRe = regexp.MustCompile(`(?i)price|fiyat|sale`)

func collectTextHeuristic(doc *goquery.Document, preferred string) []Candidate {
	var cands []Candidate
	seen := 0
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		seen++
		if seen > maxTextNodes {
			return false
		}
		text := strings.TrimSpace(ownText(s))
		if len(text) < 2 || len(text) > 140 {
			return true
		}
		if detectCurrency(text) == "" && !textPriceHintRe.MatchString(text) {
			return true
		}
		if c := buildCandidate(text, "text", SourceText, preferred, scoreText); c != nil {
			cands = append(cands, *c)
		}
		return true
	})
	return cands
}

// ownText returns only the text directly inside the node, not its
// descendants, so nested markup does not produce duplicate fragments.
func ownText(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for child := s.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}
