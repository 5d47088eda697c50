package extractor

import (
	"net/url"
	"strings"
)

// siteAdapter pairs a host pattern with high-precision selectors for a
// known retailer.
type siteAdapter struct {
	hostContains string
	selectors    []string
}

var amazonSelectors = []string{
	"#corePrice_feature_div .a-price .a-offscreen",
	"#corePriceDisplay_desktop_feature_div .a-price .a-offscreen",
	"#corePrice_desktop .a-price .a-offscreen",
	"#apex_desktop .a-price .a-offscreen",
	"#price_inside_buybox",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#priceblock_saleprice",
	"#twister-plus-price-data-price",
}

var metaSelectors = []string{
	`meta[itemprop="price"]`,
	`meta[property="og:price:amount"]`,
	`meta[property="product:price:amount"]`,
}

var genericSelectors = []string{
	`[itemprop="price"]`,
	`[class*="price"]`,
	`[id*="price"]`,
	".a-price .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
}

var siteAdapters = []siteAdapter{
	{hostContains: "amazon.", selectors: amazonSelectors},
	{hostContains: "trendyol", selectors: []string{".prc-dsc", ".prc-slg"}},
	{hostContains: "hepsiburada", selectors: []string{`[data-test-id="price-current-price"]`, `[data-test-id="default-price"]`}},
	{hostContains: "n11.com", selectors: []string{".newPrice ins", ".priceContainer ins"}},
	{hostContains: "ebay.", selectors: []string{".x-price-primary .ux-textspans", "#prcIsum"}},
	{hostContains: "etsy.", selectors: []string{`[data-selector="price-only"] .currency-value`}},
}

// selectorsForHost merges host-matched adapter selectors with the
// generic base list. Amazon pages get only Amazon and meta selectors;
// the wildcard probes pick up too much junk there.
func selectorsForHost(pageURL string) []string {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = strings.ToLower(u.Hostname())
	}

	var matched []string
	for _, a := range siteAdapters {
		if strings.Contains(host, a.hostContains) {
			matched = append(matched, a.selectors...)
		}
	}

	if isAmazonHost(pageURL) {
		return append(matched, metaSelectors...)
	}

	out := make([]string, 0, len(matched)+len(metaSelectors)+len(genericSelectors))
	out = append(out, matched...)
	out = append(out, metaSelectors...)
	out = append(out, genericSelectors...)
	return out
}

// amazonSelectorAllowed reports whether a selector is precise enough to
// be trusted on an Amazon page. Everything else carries installment,
// per-unit and listing prices.
func amazonSelectorAllowed(selector string) bool {
	if strings.Contains(selector, "corePrice") ||
		strings.Contains(selector, "#priceblock_") ||
		strings.Contains(selector, "#price_inside_buybox") ||
		strings.Contains(selector, "#apex_") ||
		strings.Contains(selector, "twister-plus-price-data-price") {
		return true
	}
	for _, m := range metaSelectors {
		if selector == m {
			return true
		}
	}
	return false
}

// applyAmazonGate drops candidates that neither use a trusted Amazon
// selector nor price in the host's preferred currency.
func applyAmazonGate(cands []Candidate, preferred string) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		if !amazonSelectorAllowed(c.Selector) && c.Currency != preferred {
			continue
		}
		out = append(out, c)
	}
	return out
}
