package extractor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricewatch/internal/models"
)

func TestShopifyStyleMetaPrice(t *testing.T) {
	html := `<html><head>
		<meta itemprop="price" content="199.99">
		<meta itemprop="priceCurrency" content="USD">
	</head><body>
		<button>Add to Cart</button>
	</body></html>`

	res, err := Extract(html, "", "https://shop.example.com/p/widget")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 199.99, *res.Price)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, models.StockInStock, res.Availability.Status)
	assert.GreaterOrEqual(t, res.Availability.Confidence, 74)
}

func TestAmazonCorePriceBeatsWildcardJunk(t *testing.T) {
	html := `<html><body>
		<div id="corePrice_feature_div"><span class="a-price"><span class="a-offscreen">$1,299.00</span></span></div>
		<div class="price">$17.99/mo</div>
		<button id="add-to-cart-button">Add to Cart</button>
	</body></html>`

	res, err := Extract(html, "", "https://www.amazon.com/dp/B00TEST")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 1299.00, *res.Price)
	assert.Equal(t, "USD", res.Currency)
	assert.Contains(t, res.SelectorUsed, "corePrice")
	assert.Equal(t, models.StockInStock, res.Availability.Status)

	for _, s := range res.Suggestions {
		assert.False(t, isWildcardSelector(s.Selector), "wildcard selector must not survive the Amazon gate: %s", s.Selector)
	}
}

func TestAmazonOutOfStockSuppressesPrice(t *testing.T) {
	html := `<html><body>
		<div id="unqualifiedBuyBox_feature_div"><span>See All Buying Options</span></div>
		<div id="corePrice_feature_div"><span class="a-price"><span class="a-offscreen">$499.00</span></span></div>
	</body></html>`

	res, err := Extract(html, "", "https://www.amazon.com/dp/B00TEST")
	require.NoError(t, err)
	assert.Nil(t, res.Price)
	assert.Equal(t, models.StockOutOfStock, res.Availability.Status)
	assert.GreaterOrEqual(t, res.Availability.Confidence, 88)
	assert.GreaterOrEqual(t, res.Confidence, 88)
}

func TestTurkishRetailerPrice(t *testing.T) {
	html := `<html><body>
		<div class="product-detail"><span class="prc-dsc">1.299,90 TL</span></div>
		<button>Sepete Ekle</button>
	</body></html>`

	res, err := Extract(html, "", "https://www.trendyol.com/p/urun-123")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 1299.90, *res.Price)
	assert.Equal(t, "TRY", res.Currency)
}

func TestJSONLDOfferWins(t *testing.T) {
	html := `<html><body>
		<script type="application/ld+json">
		{"@type":"Product","name":"Widget","offers":{"@type":"Offer","price":"89.90","priceCurrency":"EUR"}}
		</script>
		<div class="price">95,00 €</div>
	</body></html>`

	res, err := Extract(html, "", "https://shop.example.de/p/widget")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 89.90, *res.Price)
	assert.Equal(t, "EUR", res.Currency)
	assert.Equal(t, SourceJSONLD, res.Source)
}

func TestJSONLDOfferArrayAndNumericPrice(t *testing.T) {
	html := `<html><body>
		<script type="application/ld+json">
		[{"@type":"Product","offers":[{"price":49.5,"priceCurrency":"GBP"}]}]
		</script>
	</body></html>`

	res, err := Extract(html, "", "https://shop.example.co.uk/p/widget")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 49.5, *res.Price)
	assert.Equal(t, "GBP", res.Currency)
}

func TestCustomSelectorHint(t *testing.T) {
	html := `<html><body>
		<div data-testid="final-price">249,99 TL</div>
	</body></html>`

	res, err := Extract(html, "final-price", "https://www.hepsiburada.com/p/urun")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 249.99, *res.Price)
	assert.Equal(t, SourceCustom, res.Source)
}

func TestRawJSONPricePair(t *testing.T) {
	html := `<html><body><script>var state = {"sku":"x","price":"79.99","priceCurrency":"USD"};</script></body></html>`

	res, err := Extract(html, "", "https://shop.example.com/p/widget")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.Equal(t, 79.99, *res.Price)
	assert.Equal(t, SourceRawJSON, res.Source)
}

func TestNoPriceExtracted(t *testing.T) {
	res, err := Extract(`<html><body><p>about us</p></body></html>`, "", "https://shop.example.com/about")
	require.NoError(t, err)
	assert.Nil(t, res.Price)
	assert.Equal(t, 0, res.Confidence)
	assert.Empty(t, res.Suggestions)
}

func TestSpecTableRowRejected(t *testing.T) {
	// Three bare numbers with no currency marker read like a spec row.
	html := `<html><body><div class="product-price-info">10 20 30</div></body></html>`

	res, err := Extract(html, "", "https://shop.example.com/p/widget")
	require.NoError(t, err)
	assert.Nil(t, res.Price)
}

func TestSuggestionsCapped(t *testing.T) {
	body := ""
	for i := 1; i <= 8; i++ {
		body += fmt.Sprintf(`<div class="price-%d">$%d9.99</div>`, i, i)
	}
	html := "<html><body>" + body + "</body></html>"

	res, err := Extract(html, "", "https://shop.example.com/p/widget")
	require.NoError(t, err)
	require.NotNil(t, res.Price)
	assert.LessOrEqual(t, len(res.Suggestions), 5)
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		raw      string
		currency string
		want     float64
		wantErr  bool
	}{
		{"199.99", "USD", 199.99, false},
		{"1,299.00", "USD", 1299.00, false},
		{"1.299,90", "TRY", 1299.90, false},
		{"1.299", "TRY", 1299, false},
		{"12,99", "EUR", 12.99, false},
		{"1,299", "USD", 1299, false},
		{"1 299,50", "EUR", 1299.50, false},
		{"12.5", "USD", 12.5, false},
		{"0", "USD", 0, true},
		{"", "USD", 0, true},
		{"abc", "USD", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.currency, func(t *testing.T) {
			got, err := normalizeNumber(tt.raw, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, tt := range []struct {
		raw      string
		currency string
	}{
		{"1.299,90", "TRY"},
		{"1,299.00", "USD"},
		{"12,99", "EUR"},
		{"199.99", "USD"},
	} {
		first, err := normalizeNumber(tt.raw, tt.currency)
		require.NoError(t, err)
		second, err := normalizeNumber(fmt.Sprintf("%.2f", first), tt.currency)
		require.NoError(t, err)
		assert.Equal(t, first, second, "normalize(normalize(%q)) must be stable", tt.raw)
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"1.299,90 TL", "TRY"},
		{"₺499", "TRY"},
		{"€ 89,90", "EUR"},
		{"£12.50", "GBP"},
		{"¥1500", "JPY"},
		{"1500 CNY", "CNY"},
		{"$19.99", "USD"},
		{"19.99 USD", "USD"},
		{"just text", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectCurrency(tt.text), tt.text)
	}
}

func TestPreferredCurrency(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.trendyol.com/p/1", "TRY"},
		{"https://www.hepsiburada.com/p/1", "TRY"},
		{"https://www.example.com.tr/p/1", "TRY"},
		{"https://www.amazon.de/dp/B00", "EUR"},
		{"https://www.amazon.co.uk/dp/B00", "GBP"},
		{"https://www.amazon.co.jp/dp/B00", "JPY"},
		{"https://www.amazon.ca/dp/B00", "CAD"},
		{"https://www.amazon.com.au/dp/B00", "AUD"},
		{"https://www.amazon.com/dp/B00", "USD"},
		{"https://shop.example.com/p/1", "USD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, preferredCurrency(tt.url), tt.url)
	}
}

func TestAdjustScore(t *testing.T) {
	// Shipping text is penalized relative to a clean price label.
	clean := adjustScore(60, "Price: $19.99", ".price", "USD", SourceSelector, 19.99, "USD")
	shipping := adjustScore(60, "Shipping: $19.99", ".price", "USD", SourceSelector, 19.99, "USD")
	assert.Greater(t, clean, shipping)

	// Strikethrough selectors are penalized.
	current := adjustScore(60, "$19.99", ".price-current", "USD", SourceSelector, 19.99, "USD")
	was := adjustScore(60, "$19.99", ".price-was-strike", "USD", SourceSelector, 19.99, "USD")
	assert.Greater(t, current, was)

	// Sub-2 prices are heavily penalized outside JSON-LD.
	cheap := adjustScore(60, "$1.50", ".price", "USD", SourceSelector, 1.50, "USD")
	normal := adjustScore(60, "$15.00", ".price", "USD", SourceSelector, 15.00, "USD")
	assert.Greater(t, normal, cheap)

	ld := adjustScore(95, "1.50", "json-ld", "USD", SourceJSONLD, 1.50, "USD")
	assert.Greater(t, ld, cheap)
}

func TestDedupeKeepsHighestScore(t *testing.T) {
	cands := []Candidate{
		{Price: 10, Currency: "USD", Selector: ".p", Score: 40},
		{Price: 10, Currency: "USD", Selector: ".p", Score: 80},
		{Price: 12, Currency: "USD", Selector: ".p", Score: 50},
	}
	out := dedupe(cands)
	require.Len(t, out, 2)
	assert.Equal(t, 80, out[0].Score)
}
