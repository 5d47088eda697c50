package availability

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricewatch/internal/models"
)

func classify(t *testing.T, html, url string) Result {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return Classify(doc, html, url)
}

func TestStructuredOutOfStockWins(t *testing.T) {
	html := `<html><body>
		<script type="application/ld+json">
		{"@type":"Product","offers":{"price":"19.99","availability":"http://schema.org/OutOfStock"}}
		</script>
		<button>Add to Cart</button>
	</body></html>`

	res := classify(t, html, "https://shop.example.com/p/1")
	assert.Equal(t, models.StockOutOfStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 94)
	require.NotNil(t, res.Signals.StructuredOut)
}

func TestStructuredInStockBeatsText(t *testing.T) {
	html := `<html><head>
		<meta itemprop="availability" content="https://schema.org/InStock">
	</head><body><div class="stock-note">sold out last week, back now</div></body></html>`

	res := classify(t, html, "https://shop.example.com/p/2")
	assert.Equal(t, models.StockInStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 90)
}

func TestEnabledPurchaseActionMeansInStock(t *testing.T) {
	html := `<html><body><button id="buy">Add to Cart</button></body></html>`

	res := classify(t, html, "https://shop.example.com/p/3")
	assert.Equal(t, models.StockInStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 74)
	assert.Equal(t, "purchase-action", res.Source)
}

func TestDisabledPurchaseWithVariantsIsInStock(t *testing.T) {
	// Invariant: a disabled buy button plus a size picker is a prompt
	// to choose a size, not an out-of-stock page.
	html := `<html><body>
		<div class="stock">Select size</div>
		<select name="size"><option>38</option><option>39</option><option>40</option></select>
		<button disabled>Add to Cart</button>
	</body></html>`

	res := classify(t, html, "https://shop.example.com/p/4")
	assert.Equal(t, models.StockInStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 72)
	assert.Equal(t, "variant-arbitration", res.Source)
	assert.True(t, res.Signals.HasVariantSelectors)
}

func TestDisabledPurchaseAloneIsOutOfStock(t *testing.T) {
	html := `<html><body>
		<div id="availability">Out of stock</div>
		<button disabled>Add to Cart</button>
	</body></html>`

	res := classify(t, html, "https://shop.example.com/p/5")
	assert.Equal(t, models.StockOutOfStock, res.Status)
}

func TestNotifyMeLeansOutOfStock(t *testing.T) {
	html := `<html><body>
		<div id="stock-banner">Stokta yok</div>
		<button>Haber ver</button>
	</body></html>`

	res := classify(t, html, "https://www.trendyol.com/p/6")
	assert.Equal(t, models.StockOutOfStock, res.Status)
}

func TestTurkishFolding(t *testing.T) {
	assert.Equal(t, "satin al", foldText("SATIN AL"))
	assert.Equal(t, "tukendi", foldText("Tükendi"))
	assert.Equal(t, "grosse wahlen", foldText("Größe wählen"))
}

func TestHiddenElementsIgnored(t *testing.T) {
	html := `<html><body>
		<div class="stock" style="display:none">Out of stock</div>
		<button aria-hidden="true">Add to Cart</button>
		<span class="sr-only">sold out</span>
	</body></html>`

	res := classify(t, html, "https://shop.example.com/p/7")
	assert.Equal(t, models.StockUnknown, res.Status)
}

func TestAmazonUnqualifiedBuyBox(t *testing.T) {
	html := `<html><body>
		<div id="unqualifiedBuyBox_feature_div"><span>See All Buying Options</span></div>
	</body></html>`

	res := classify(t, html, "https://www.amazon.com/dp/B00TEST")
	assert.Equal(t, models.StockOutOfStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 88)
}

func TestAmazonBuyingOptionsWithoutPurchase(t *testing.T) {
	html := `<html><body>
		<a role="button" href="/gp/offer-listing/B00TEST">See All Buying Options</a>
	</body></html>`

	res := classify(t, html, "https://www.amazon.de/dp/B00TEST")
	assert.Equal(t, models.StockOutOfStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 84)
}

func TestAmazonKeyboardShortcutChromeIgnored(t *testing.T) {
	html := `<html><body>
		<button aria-label="alt+shift+c add to cart keyboard shortcut"></button>
	</body></html>`

	res := classify(t, html, "https://www.amazon.com/dp/B00TEST")
	assert.False(t, res.Signals.HasEnabledPurchaseAction)
}

func TestAmazonStrongTextFallback(t *testing.T) {
	html := `<html><head><title>Widget</title></head><body>
		<div id="availability"><span>Currently unavailable.</span></div>
	</body></html>`

	res := classify(t, html, "https://www.amazon.com/dp/B00TEST")
	assert.Equal(t, models.StockOutOfStock, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 82)
}

func TestUnknownOnEmptyPage(t *testing.T) {
	res := classify(t, `<html><body><p>hello</p></body></html>`, "https://shop.example.com/p/8")
	assert.Equal(t, models.StockUnknown, res.Status)
}

func TestFoldLetters(t *testing.T) {
	assert.Equal(t, "httpschemaorgoutofstock", foldLetters("http://schema.org/OutOfStock"))
	assert.Equal(t, "outofstock", foldLetters("OUT OF STOCK"))
}
