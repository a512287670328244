package crawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/rate"
)

// AbortReason classifies why a crawl target was abandoned.
type AbortReason string

const (
	AbortInvalidRoute  AbortReason = "invalid_route"
	AbortPossibleBlock AbortReason = "possible_block"
)

// Diagnostics is the evidence bundle captured when a target looks blocked.
type Diagnostics struct {
	Title           string
	HTML            string
	Screenshot      []byte
	BlockIndicators []string
}

// Result is the outcome of crawling one target. Aborted results carry a
// reason and, for suspected blocks, diagnostics; they are not errors.
type Result struct {
	Target         Target
	Products       []model.Product
	Aborted        bool
	AbortReason    AbortReason
	ReachedEnd     bool
	ScrollAttempts int
	Diagnostics    *Diagnostics
}

// Options tunes the crawl loop. Zero values take the defaults below.
type Options struct {
	MaxProducts           int
	MaxScrollAttempts     int
	StallPerturbThreshold int
	StallStopThreshold    int
	SettleWait            time.Duration
	LoadMoreSelector      string

	EnrichDetails bool
	DetailRetries int
	DetailBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxProducts <= 0 {
		o.MaxProducts = 100
	}
	if o.MaxScrollAttempts <= 0 {
		o.MaxScrollAttempts = 200
	}
	if o.StallPerturbThreshold <= 0 {
		o.StallPerturbThreshold = 3
	}
	if o.StallStopThreshold <= 0 {
		o.StallStopThreshold = 15
	}
	if o.SettleWait <= 0 {
		o.SettleWait = 2 * time.Second
	}
	if o.LoadMoreSelector == "" {
		o.LoadMoreSelector = "button[class*='load-more']"
	}
	if o.DetailRetries <= 0 {
		o.DetailRetries = 3
	}
	if o.DetailBackoff <= 0 {
		o.DetailBackoff = 2 * time.Second
	}
	return o
}

// Engine drives one browser session through listing targets. It is
// sequential by design: pacing is the anti-block strategy, not an
// optimization target.
type Engine struct {
	browser Browser
	ctrl    *rate.Controller
	opts    Options
	now     func() time.Time
}

// NewEngine builds an Engine around a browser session and rate controller.
func NewEngine(browser Browser, ctrl *rate.Controller, opts Options) *Engine {
	return &Engine{
		browser: browser,
		ctrl:    ctrl,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

// CrawlTarget walks one listing page to exhaustion: navigate, classify,
// extract cards, scroll, repeat until the product cap, the stall cap, or
// the scroll cap is hit. Returns an error only for failures the caller's
// retry policy should handle; dead routes and blocks come back as aborted
// results.
func (e *Engine) CrawlTarget(ctx context.Context, target Target) (*Result, error) {
	log := zap.L().With(
		zap.String("platform", target.Platform),
		zap.String("category", target.Category),
		zap.String("subcategory", target.Subcategory),
	)

	status, err := e.browser.Navigate(ctx, target.URL)
	if err != nil {
		return nil, err
	}
	if status == 404 || status == 410 {
		log.Info("target route gone", zap.Int("status", status))
		return &Result{Target: target, Aborted: true, AbortReason: AbortInvalidRoute}, nil
	}

	title, err := e.browser.Title(ctx)
	if err != nil {
		return nil, err
	}
	bodyText, err := e.browser.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	if IsNotFoundPage(title, bodyText) {
		log.Info("target renders as not found", zap.String("title", title))
		return &Result{Target: target, Aborted: true, AbortReason: AbortInvalidRoute}, nil
	}

	seen := make(map[string]int) // url -> index into products
	var products []model.Product
	stalls := 0
	scrollAttempts := 0

	for {
		html, err := e.browser.HTML(ctx)
		if err != nil {
			return nil, err
		}

		cards, err := ExtractCards(html, target, e.now().UTC())
		if err != nil {
			return nil, err
		}

		if scrollAttempts == 0 && len(cards) == 0 {
			diag, blocked := e.captureDiagnostics(ctx)
			if blocked {
				log.Warn("zero cards with block indicators",
					zap.Strings("indicators", diag.BlockIndicators))
				return &Result{
					Target:      target,
					Aborted:     true,
					AbortReason: AbortPossibleBlock,
					Diagnostics: diag,
				}, nil
			}
			log.Debug("zero cards on first pass, no block indicators; continuing")
		}

		before := len(products)
		for _, p := range cards {
			if _, dup := seen[p.URL]; dup {
				continue
			}
			seen[p.URL] = len(products)
			products = append(products, p)
		}

		if len(products) >= e.opts.MaxProducts {
			products = products[:e.opts.MaxProducts]
			break
		}
		if scrollAttempts >= e.opts.MaxScrollAttempts {
			log.Warn("scroll attempt cap reached", zap.Int("products", len(products)))
			break
		}

		if len(products) == before {
			stalls++
		} else {
			stalls = 0
		}
		if stalls >= e.opts.StallStopThreshold {
			log.Info("feed exhausted", zap.Int("products", len(products)))
			return e.finish(ctx, target, products, scrollAttempts, true)
		}
		if stalls >= e.opts.StallPerturbThreshold {
			// Nudge lazy loaders that missed the last scroll event.
			if err := e.browser.ScrollToTop(ctx); err != nil {
				return nil, err
			}
		}

		if err := e.scrollOnce(ctx); err != nil {
			return nil, err
		}
		scrollAttempts++
	}

	return e.finish(ctx, target, products, scrollAttempts, false)
}

// scrollOnce performs the scroll sequence: three viewport scrolls, a jump
// to the bottom, a load-more click when present, then a settle wait.
func (e *Engine) scrollOnce(ctx context.Context) error {
	for i := 0; i < 3; i++ {
		if err := e.browser.ScrollBy(ctx, 1); err != nil {
			return err
		}
		if err := e.browser.Sleep(ctx, e.opts.SettleWait/4); err != nil {
			return err
		}
	}
	if err := e.browser.ScrollToBottom(ctx); err != nil {
		return err
	}
	if clicked, err := e.browser.ClickIfVisible(ctx, e.opts.LoadMoreSelector); err != nil {
		return err
	} else if clicked {
		zap.L().Debug("clicked load-more control")
	}
	return e.browser.Sleep(ctx, e.opts.SettleWait)
}

func (e *Engine) finish(ctx context.Context, target Target, products []model.Product, scrollAttempts int, reachedEnd bool) (*Result, error) {
	if e.opts.EnrichDetails {
		e.enrichAll(ctx, products)
	}
	return &Result{
		Target:         target,
		Products:       products,
		ReachedEnd:     reachedEnd,
		ScrollAttempts: scrollAttempts,
	}, nil
}

// captureDiagnostics grabs the evidence bundle for a suspicious page and
// reports whether block indicators were found. Capture failures degrade to
// a partial bundle.
func (e *Engine) captureDiagnostics(ctx context.Context) (*Diagnostics, bool) {
	diag := &Diagnostics{}
	if title, err := e.browser.Title(ctx); err == nil {
		diag.Title = title
	}
	if html, err := e.browser.HTML(ctx); err == nil {
		diag.HTML = html
	}
	if shot, err := e.browser.Screenshot(ctx); err == nil {
		diag.Screenshot = shot
	}
	bodyText, err := e.browser.BodyText(ctx)
	if err != nil {
		bodyText = diag.HTML
	}
	diag.BlockIndicators = ScanForBlockIndicators(diag.Title, bodyText)
	return diag, len(diag.BlockIndicators) > 0
}

// enrichAll fetches detail pages sequentially, one at a time, each preceded
// by a controller-issued jittered sleep. This is deliberate self-throttling.
func (e *Engine) enrichAll(ctx context.Context, products []model.Product) {
	for i := range products {
		if ctx.Err() != nil {
			return
		}
		if err := e.ctrl.WaitWithJitter(ctx, 0); err != nil {
			return
		}
		if err := e.enrichDetail(ctx, &products[i]); err != nil {
			zap.L().Warn("detail enrichment degraded",
				zap.String("url", products[i].URL),
				zap.Error(err),
			)
		}
	}
}

// enrichDetail pulls the rating breakdown, sales count, and description off
// a product's own page. Retries up to DetailRetries with linear backoff;
// exhaustion leaves the product partial, which is a valid result.
func (e *Engine) enrichDetail(ctx context.Context, p *model.Product) error {
	var lastErr error
	for attempt := 1; attempt <= e.opts.DetailRetries; attempt++ {
		lastErr = e.fetchDetail(ctx, p)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < e.opts.DetailRetries {
			if err := e.browser.Sleep(ctx, time.Duration(attempt)*e.opts.DetailBackoff); err != nil {
				return lastErr
			}
		}
	}
	return eris.Wrapf(lastErr, "crawl: enrich %s", p.URL)
}

func (e *Engine) fetchDetail(ctx context.Context, p *model.Product) error {
	status, err := e.browser.Navigate(ctx, p.URL)
	if err != nil {
		return err
	}
	if status >= 400 {
		return eris.Errorf("crawl: detail page status %d", status)
	}

	html, err := e.browser.HTML(ctx)
	if err != nil {
		return err
	}
	ApplyDetailPage(p, html)
	return nil
}
