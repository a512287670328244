package crawl

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/normalize"
)

// Target identifies one crawl unit: a discover URL scoped to a category or
// subcategory on a platform.
type Target struct {
	Platform    string
	Category    string
	Subcategory string
	URL         string
}

// cardSelectors locate listing cards in the rendered DOM, tried in order
// until one matches. The markup churns; the fallbacks absorb most of it.
var cardSelectors = []string{
	"article.product-card",
	"article",
	"div[class*='product-card']",
}

// nonProductPathMarkers identify links that appear inside the listing grid
// but are not product pages.
var nonProductPathMarkers = []string{
	"/wishlists",
	"/followers",
	"/following",
	"/posts/",
	"/subscribe",
}

// ExtractCards parses listing cards out of rendered HTML. Cards that fail
// to parse are logged and skipped; partial results are valid results.
func ExtractCards(html string, target Target, scrapedAt time.Time) ([]model.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: parse html")
	}

	var cards *goquery.Selection
	for _, sel := range cardSelectors {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil, nil
	}

	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: parse target url %s", target.URL)
	}

	var products []model.Product
	cards.Each(func(i int, card *goquery.Selection) {
		p, ok := parseCard(card, base, target, scrapedAt)
		if !ok {
			zap.L().Debug("skipping unparseable card",
				zap.Int("index", i),
				zap.String("category", target.Category),
			)
			return
		}
		products = append(products, p)
	})
	return products, nil
}

// parseCard extracts one product from a card selection. Returns ok=false
// when the card has no usable product link or title.
func parseCard(card *goquery.Selection, base *url.URL, target Target, scrapedAt time.Time) (model.Product, bool) {
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		return model.Product{}, false
	}
	abs := absolutizeURL(base, href)
	if abs == "" || IsNonProductURL(abs) {
		return model.Product{}, false
	}

	title := firstText(card, "h2", "h3", "[class*='title']", "[itemprop='name']")
	if title == "" {
		title = strings.TrimSpace(card.Find("a[href]").First().Text())
	}
	if title == "" {
		return model.Product{}, false
	}

	p := model.Product{
		Platform:    target.Platform,
		Category:    target.Category,
		Subcategory: target.Subcategory,
		Title:       title,
		Creator:     firstText(card, "[class*='creator']", "[class*='author']", "[class*='seller']"),
		URL:         abs,
		ScrapedAt:   scrapedAt,
	}

	if priceText := firstText(card, "[class*='price']", "[itemprop='price']"); priceText != "" {
		facts := normalize.ParsePrice(priceText)
		p.PriceUSD = facts.USD
		p.PriceOriginal = facts.Original
		p.Currency = facts.Currency
		p.IsPWYW = facts.IsPWYW
	}

	ratingText := firstText(card, "[class*='rating']", "[aria-label*='rating']")
	if ratingText == "" {
		if label, ok := card.Find("[aria-label*='rating']").First().Attr("aria-label"); ok {
			ratingText = label
		}
	}
	if ratingText != "" {
		p.RatingAvg, p.RatingCount = normalize.ParseRating(ratingText)
	}

	if sales := normalize.ParseSales(card.Text()); sales != nil {
		p.SalesCount = sales
	}

	p.RevenueUSD, p.RevenueConfidence = normalize.EstimateRevenue(p.PriceUSD, p.SalesCount, p.IsPWYW, p.Currency)
	return p, true
}

// IsNonProductURL filters grid links that lead away from product pages:
// wishlists, follower/following pages, posts, subscribe links.
func IsNonProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)
	for _, marker := range nonProductPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func absolutizeURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String()
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
