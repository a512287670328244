package crawl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
)

func sampleCardProduct(priceUSD *float64) model.Product {
	return model.Product{
		Platform:  "gumroad",
		Category:  "design",
		Title:     "Alpha Kit",
		URL:       "https://gumroad.com/l/alphaed",
		PriceUSD:  priceUSD,
		Currency:  "USD",
		ScrapedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

const richListing = `<html><body>
<article class="product-card">
  <a href="/l/notion-kit"><h3>Notion Template Kit</h3></a>
  <div class="creator-name">Ana Builder</div>
  <div class="price">$29.99</div>
  <div class="rating">4.8 (123)</div>
  <div class="stats">1.2K sales</div>
</article>
<article class="product-card">
  <a href="https://gumroad.com/l/pwyw-pack?ref=grid"><h3>Starter Pack</h3></a>
  <div class="price">$0+</div>
</article>
<article class="product-card">
  <a href="/studiox/followers"><h3>Follow StudioX</h3></a>
</article>
<article class="product-card">
  <a href="/l/broken"></a>
</article>
</body></html>`

func TestExtractCards(t *testing.T) {
	scrapedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	products, err := ExtractCards(richListing, testTarget(), scrapedAt)
	require.NoError(t, err)

	// The followers link and the title-less card are dropped.
	require.Len(t, products, 2)

	kit := products[0]
	assert.Equal(t, "Notion Template Kit", kit.Title)
	assert.Equal(t, "https://gumroad.com/l/notion-kit", kit.URL)
	assert.Equal(t, "Ana Builder", kit.Creator)
	require.NotNil(t, kit.PriceUSD)
	assert.InDelta(t, 29.99, *kit.PriceUSD, 0.001)
	require.NotNil(t, kit.RatingAvg)
	assert.InDelta(t, 4.8, *kit.RatingAvg, 0.001)
	assert.Equal(t, 123, kit.RatingCount)
	require.NotNil(t, kit.SalesCount)
	assert.Equal(t, 1200, *kit.SalesCount)
	require.NotNil(t, kit.RevenueUSD)
	assert.InDelta(t, 29.99*1200*0.85, *kit.RevenueUSD, 0.01)
	assert.Equal(t, model.ConfidenceHigh, kit.RevenueConfidence)
	assert.Equal(t, scrapedAt, kit.ScrapedAt)

	pack := products[1]
	assert.Equal(t, "https://gumroad.com/l/pwyw-pack?ref=grid", pack.URL)
	assert.True(t, pack.IsPWYW)
	require.NotNil(t, pack.PriceUSD)
	assert.Zero(t, *pack.PriceUSD)
}

func TestExtractCardsFallbackSelector(t *testing.T) {
	html := `<html><body>
<article><a href="/l/plain"><h2>Plain Article</h2></a></article>
</body></html>`
	products, err := ExtractCards(html, testTarget(), time.Now())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Plain Article", products[0].Title)
}

func TestExtractCardsEmpty(t *testing.T) {
	products, err := ExtractCards("<html><body><p>no grid</p></body></html>", testTarget(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestIsNonProductURL(t *testing.T) {
	assert.True(t, IsNonProductURL("https://gumroad.com/studiox/followers"))
	assert.True(t, IsNonProductURL("https://gumroad.com/studiox/following"))
	assert.True(t, IsNonProductURL("https://gumroad.com/wishlists/favorites"))
	assert.True(t, IsNonProductURL("https://gumroad.com/studiox/posts/launch-day"))
	assert.True(t, IsNonProductURL("https://gumroad.com/subscribe"))
	assert.False(t, IsNonProductURL("https://gumroad.com/l/notion-kit"))
}
