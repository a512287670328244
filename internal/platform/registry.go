package platform

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/crawl"
)

// Scraper crawls one listing target on a specific marketplace. All
// implementations share the signature so the worker can route targets
// without special-casing platforms.
type Scraper interface {
	Platform() string
	Scrape(ctx context.Context, target crawl.Target) (*crawl.Result, error)
}

// Registry maps platform slugs to scrapers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register adds or replaces the scraper for a platform slug.
func (r *Registry) Register(s Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Platform()] = s
}

// Get returns the scraper for a platform slug.
func (r *Registry) Get(platform string) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[platform]
	if !ok {
		return nil, eris.Errorf("platform: unsupported platform: %s", platform)
	}
	return s, nil
}

// Platforms returns the registered slugs sorted for stable output.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.scrapers))
	for slug := range r.scrapers {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// GumroadScraper drives the crawl engine over Gumroad discover pages.
type GumroadScraper struct {
	engine *crawl.Engine
}

func NewGumroadScraper(engine *crawl.Engine) *GumroadScraper {
	return &GumroadScraper{engine: engine}
}

func (s *GumroadScraper) Platform() string { return "gumroad" }

func (s *GumroadScraper) Scrape(ctx context.Context, target crawl.Target) (*crawl.Result, error) {
	if target.URL == "" {
		target.URL = BuildDiscoverURL(target.Category, target.Subcategory)
	}
	target.Platform = s.Platform()
	return s.engine.CrawlTarget(ctx, target)
}

const whopBaseURL = "https://whop.com"

// WhopScraper reuses the crawl engine against Whop discover pages. The
// card markup overlaps enough with Gumroad's that the shared selector
// fallbacks carry it.
type WhopScraper struct {
	engine *crawl.Engine
}

func NewWhopScraper(engine *crawl.Engine) *WhopScraper {
	return &WhopScraper{engine: engine}
}

func (s *WhopScraper) Platform() string { return "whop" }

func (s *WhopScraper) Scrape(ctx context.Context, target crawl.Target) (*crawl.Result, error) {
	if target.URL == "" {
		target.URL = WhopDiscoverURL(target.Category)
	}
	target.Platform = s.Platform()
	return s.engine.CrawlTarget(ctx, target)
}

// WhopDiscoverURL builds the Whop listing URL for a category slug.
func WhopDiscoverURL(categorySlug string) string {
	if categorySlug == "" {
		return whopBaseURL + "/discover"
	}
	return whopBaseURL + "/discover/" + strings.Trim(categorySlug, "/")
}
