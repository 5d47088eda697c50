package extractor

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern matches grouped numbers like "1.299,90", "1,299.00",
// "1 299", "199.99" and plain integers. The first match is the price.
var numberPattern = regexp.MustCompile(`[0-9]{1,3}(?:[.,\x{00a0} ][0-9]{3})+(?:[.,][0-9]{1,2})?|[0-9]+(?:[.,][0-9]{1,2})?`)

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "TRY": {}, "JPY": {}, "CNY": {}, "CAD": {}, "AUD": {},
}

// detectCurrency reads an explicit currency marker from the text
// itself. Empty means no marker was found.
func detectCurrency(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(text, "₺") || strings.Contains(upper, "TRY") || hasWord(upper, "TL"):
		return "TRY"
	case strings.Contains(text, "€") || strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(text, "¥") || strings.Contains(upper, "JPY") || strings.Contains(upper, "CNY"):
		if strings.Contains(upper, "CNY") {
			return "CNY"
		}
		return "JPY"
	case strings.Contains(upper, "CAD"):
		return "CAD"
	case strings.Contains(upper, "AUD"):
		return "AUD"
	case strings.Contains(text, "$") || strings.Contains(upper, "USD"):
		return "USD"
	}
	return ""
}

func hasWord(upper, word string) bool {
	for _, f := range strings.FieldsFunc(upper, func(r rune) bool {
		return r == ' ' || r == '\u00a0' || r == '\t' || r == '\n'
	}) {
		if f == word {
			return true
		}
	}
	return false
}

var turkishRetailers = []string{"trendyol", "hepsiburada", "n11", "gittigidiyor", "ciceksepeti"}

// preferredCurrency derives the currency a host most likely prices in.
func preferredCurrency(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "USD"
	}
	host := strings.ToLower(u.Hostname())

	if strings.HasSuffix(host, ".tr") {
		return "TRY"
	}
	for _, r := range turkishRetailers {
		if strings.Contains(host, r) {
			return "TRY"
		}
	}
	switch {
	case strings.HasSuffix(host, "amazon.de"):
		return "EUR"
	case strings.HasSuffix(host, "amazon.co.uk"):
		return "GBP"
	case strings.HasSuffix(host, "amazon.co.jp"), strings.HasSuffix(host, "amazon.jp"):
		return "JPY"
	case strings.HasSuffix(host, "amazon.ca"):
		return "CAD"
	case strings.HasSuffix(host, "amazon.com.au"):
		return "AUD"
	}
	return "USD"
}

// isAmazonHost reports whether the page belongs to any Amazon
// storefront, ccTLDs included.
func isAmazonHost(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), "amazon.")
}

// normalizeNumber resolves ambiguous thousands/decimal separators for
// a numeric string, using the currency to break ties the way Turkish
// retailers format prices ("1.299,90").
func normalizeNumber(raw, currency string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	turkish := currency == "TRY"
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		trailing := len(s) - lastComma - 1
		if turkish || trailing == 2 {
			if strings.Count(s, ",") == 1 {
				s = strings.Replace(s, ",", ".", 1)
			} else {
				// several commas can only be grouping
				s = strings.ReplaceAll(s, ",", "")
			}
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		trailing := len(s) - lastDot - 1
		if turkish && trailing == 3 {
			s = strings.ReplaceAll(s, ".", "")
		} else if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable number %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("number %q is not a positive finite value", raw)
	}
	return v, nil
}
