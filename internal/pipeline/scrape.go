package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/crawl"
	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/rate"
)

// ScrapeResult is the outcome of scraping one target under the retry
// policy. Aborted targets (dead routes, suspected blocks) are not
// errors; the caller decides whether to skip or stop.
type ScrapeResult struct {
	Target       crawl.Target
	Products     []model.Product
	Attempts     int
	ZeroProducts bool
	Aborted      bool
	AbortReason  crawl.AbortReason
	Diagnostics  *crawl.Diagnostics
}

// ScrapeTarget crawls one listing target through the registered scraper
// with rate-controlled retries. An aborted crawl short-circuits the
// retry loop; the failure is still recorded on the controller so pacing
// backs off.
func (p *Pipeline) ScrapeTarget(ctx context.Context, target crawl.Target) (*ScrapeResult, error) {
	scraper, err := p.registry.Get(target.Platform)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve scraper")
	}

	var aborted *crawl.Result
	outcome, err := rate.ScrapeWithRetry(ctx, p.ctrl, func(ctx context.Context) ([]model.Product, error) {
		res, scrapeErr := scraper.Scrape(ctx, target)
		if scrapeErr != nil {
			return nil, scrapeErr
		}
		if res.Aborted {
			aborted = res
			return nil, nil
		}
		return res.Products, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: scrape %s", target.URL)
	}

	result := &ScrapeResult{
		Target:       target,
		Products:     outcome.Products,
		Attempts:     outcome.Attempts,
		ZeroProducts: outcome.ZeroProducts,
	}
	if aborted != nil {
		result.Aborted = true
		result.AbortReason = aborted.AbortReason
		result.Diagnostics = aborted.Diagnostics
		result.ZeroProducts = false
		zap.L().Warn("pipeline: target aborted",
			zap.String("url", target.URL),
			zap.String("reason", string(aborted.AbortReason)),
		)
		return result, nil
	}
	if outcome.ZeroProducts {
		zap.L().Warn("pipeline: target yielded zero products, treating as possible block",
			zap.String("url", target.URL),
		)
		return result, nil
	}

	zap.L().Info("pipeline: target scraped",
		zap.String("url", target.URL),
		zap.Int("products", len(result.Products)),
		zap.Int("attempts", result.Attempts),
	)
	return result, nil
}
