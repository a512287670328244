package crawl

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/normalize"
)

// ApplyDetailPage folds a product's own page into its record: sales count,
// rating breakdown, description. Anything missing on the page leaves the
// existing value alone. The revenue estimate is recomputed afterwards.
func ApplyDetailPage(p *model.Product, html string) {
	if sales := normalize.ExtractSalesFromPage(html); sales != nil {
		p.SalesCount = sales
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		var sources []string
		doc.Find("[class*='rating'], [class*='review']").Each(func(_ int, s *goquery.Selection) {
			sources = append(sources, strings.TrimSpace(s.Text()))
		})
		sources = append(sources, doc.Text())

		var total *int
		if p.RatingCount > 0 {
			count := p.RatingCount
			total = &count
		}
		if breakdown := normalize.ParseRatingBreakdown(sources, total); breakdown != nil {
			p.RatingBreakdown = breakdown
		}

		if p.Description == "" {
			if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
				p.Description = strings.TrimSpace(desc)
			} else if desc := doc.Find("[class*='description']").First().Text(); desc != "" {
				p.Description = strings.TrimSpace(desc)
			}
		}
	}

	p.RevenueUSD, p.RevenueConfidence = normalize.EstimateRevenue(p.PriceUSD, p.SalesCount, p.IsPWYW, p.Currency)
}
