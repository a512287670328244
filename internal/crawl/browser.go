package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/resilience"
)

// Browser is the automation surface the crawl engine needs. The production
// implementation drives headless Chrome; tests substitute a fake.
type Browser interface {
	// Navigate loads url and returns the HTTP status of the main document.
	Navigate(ctx context.Context, url string) (int, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)

	// ScrollBy scrolls down by the given number of viewport heights.
	ScrollBy(ctx context.Context, viewports float64) error
	ScrollToBottom(ctx context.Context) error
	ScrollToTop(ctx context.Context) error

	// ClickIfVisible clicks the first element matching selector if one is
	// present, reporting whether a click happened.
	ClickIfVisible(ctx context.Context, selector string) (bool, error)

	Screenshot(ctx context.Context) ([]byte, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// BrowserOptions configures the Chrome session.
type BrowserOptions struct {
	Headless    bool
	UserAgent   string
	ProxyServer string
	NavTimeout  time.Duration
}

// clickTimeout bounds how long ClickIfVisible waits for a matched node
// to become visible before giving up on the click.
const clickTimeout = 5 * time.Second

// ChromeBrowser implements Browser on top of chromedp.
type ChromeBrowser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	navTimeout  time.Duration
}

// NewChromeBrowser launches a Chrome session. Close must be called to tear
// it down.
func NewChromeBrowser(parent context.Context, opts BrowserOptions) (*ChromeBrowser, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here,
	// and pin request headers a real en-US browser would send.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, eris.Wrap(err, "crawl: launch browser")
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	return &ChromeBrowser{
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		navTimeout:  navTimeout,
	}, nil
}

// Close tears down the tab and the browser process.
func (b *ChromeBrowser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(b.ctx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	navCtx, cancel := context.WithTimeout(b.ctx, b.navTimeout)
	defer cancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, eris.Wrapf(err, "crawl: navigate %s", url)
	}
	if resp == nil {
		// Same-document navigation; treat as OK.
		return 200, nil
	}
	return int(resp.Status), nil
}

func (b *ChromeBrowser) Title(ctx context.Context) (string, error) {
	var title string
	if err := b.run(ctx, chromedp.Title(&title)); err != nil {
		return "", eris.Wrap(err, "crawl: read title")
	}
	return title, nil
}

func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "crawl: read html")
	}
	return html, nil
}

func (b *ChromeBrowser) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := b.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "crawl: read body text")
	}
	return text, nil
}

func (b *ChromeBrowser) ScrollBy(ctx context.Context, viewports float64) error {
	js := fmt.Sprintf("window.scrollBy(0, window.innerHeight * %f)", viewports)
	if err := b.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return eris.Wrap(err, "crawl: scroll by viewport")
	}
	return nil
}

func (b *ChromeBrowser) ScrollToBottom(ctx context.Context) error {
	if err := b.run(ctx, chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil)); err != nil {
		return eris.Wrap(err, "crawl: scroll to bottom")
	}
	return nil
}

func (b *ChromeBrowser) ScrollToTop(ctx context.Context) error {
	if err := b.run(ctx, chromedp.Evaluate("window.scrollTo(0, 0)", nil)); err != nil {
		return eris.Wrap(err, "crawl: scroll to top")
	}
	return nil
}

func (b *ChromeBrowser) ClickIfVisible(ctx context.Context, selector string) (bool, error) {
	var count int
	js := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	if err := b.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return false, eris.Wrapf(err, "crawl: query %s", selector)
	}
	if count == 0 {
		return false, nil
	}
	// Click waits for the node to become visible, which never resolves for
	// a hidden element. Bound the wait so a display:none button cannot
	// stall the crawl.
	clickCtx, cancel := context.WithTimeout(b.ctx, clickTimeout)
	defer cancel()
	if err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		// Hidden or gone between the query and the click counts as not
		// clicked.
		return false, nil
	}
	return true, nil
}

func (b *ChromeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, eris.Wrap(err, "crawl: screenshot")
	}
	return buf, nil
}

func (b *ChromeBrowser) Sleep(ctx context.Context, d time.Duration) error {
	return resilience.SleepContext(ctx, d)
}
