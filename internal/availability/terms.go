package availability

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Term lists are kept apart from the classifier logic. They are
// package-level variables compiled into the binary; nothing loads or
// extends them at runtime.

var outOfStockTerms = []string{
	"out of stock",
	"sold out",
	"currently unavailable",
	"temporarily out of stock",
	"stokta yok",
	"tukendi",
	"mevcut degil",
	"ausverkauft",
	"nicht verfugbar",
	"agotado",
	"no disponible",
	"rupture de stock",
	"indisponible",
	"esgotado",
	"esaurito",
	"non disponibile",
	"niet op voorraad",
	"uitverkocht",
	"brak w magazynie",
	"niedostepny",
	"net v nalichii",
	"unavailable",
}

var inStockTerms = []string{
	"in stock",
	"stokta",
	"stokta var",
	"sepete ekle",
	"hemen al",
	"auf lager",
	"lieferbar",
	"disponible",
	"en stock",
	"disponivel",
	"em estoque",
	"disponibile",
	"op voorraad",
	"dostepny",
	"v nalichii",
	"available now",
	"ready to ship",
}

var purchaseActionTerms = []string{
	"add to cart",
	"add to basket",
	"add to bag",
	"buy now",
	"buy it now",
	"checkout",
	"sepete ekle",
	"hemen al",
	"satin al",
	"addtocart",
	"add-to-cart",
	"buynow",
	"buy-now",
	"in den warenkorb",
	"jetzt kaufen",
}

var buyingOptionsTerms = []string{
	"see all buying options",
	"see buying options",
	"satin alma seceneklerini gor",
	"alle kaufoptionen ansehen",
	"ver opciones de compra",
	"voir les options d achat",
}

var notifyTerms = []string{
	"notify me",
	"email me",
	"email when available",
	"alert me",
	"haber ver",
	"gelince haber ver",
	"stok bildirimi",
	"benachrichtigen",
}

var variantPromptTerms = []string{
	"select size",
	"choose size",
	"select a size",
	"select an option",
	"choose an option",
	"select color",
	"select colour",
	"beden sec",
	"beden seciniz",
	"numara sec",
	"renk sec",
	"secenek seciniz",
	"grosse wahlen",
}

var keyboardModifierTerms = []string{"shift", "alt", "ctrl", "cmd"}

// structured schema.org-style availability tokens, matched against a
// letters-only fold of the raw value.
var structuredOutTokens = []string{
	"outofstock",
	"soldout",
	"discontinued",
	"currentlyunavailable",
	"temporarilyunavailable",
	"notinstock",
	"preorder",
	"backorder",
	"unavailable",
}

var structuredInTokens = []string{
	"instock",
	"limitedavailability",
	"availablefororder",
	"onlineonly",
}

// foldText lowercases, strips diacritics, maps Turkish dotless i and
// collapses whitespace so multilingual term matching is uniform.
func foldText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ı", "i")
	s = strings.ReplaceAll(s, "ß", "ss")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// foldLetters reduces a value to lowercase letters only, for matching
// machine tokens like "http://schema.org/OutOfStock".
func foldLetters(s string) string {
	folded := foldText(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(folded string, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(folded, t) {
			return t, true
		}
	}
	return "", false
}
