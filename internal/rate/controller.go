package rate

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/nichewatch/nichewatch/internal/resilience"
)

// Config holds the base pacing parameters. Zero values are replaced by
// defaults tuned for a hostile marketplace that blocks aggressive crawlers.
type Config struct {
	CategoryDelay    time.Duration // delay between category targets
	SubcategoryDelay time.Duration // delay between subcategory targets
	FailureCooldown  time.Duration // base cooldown after a failed unit
	MaxMultiplier    float64       // cap on the failure multiplier
	JitterMin        time.Duration // lower bound of additive jitter
	JitterMax        time.Duration // upper bound of additive jitter
}

// DefaultConfig returns the pacing defaults: 60s/30s base delays, 5 minute
// failure cooldown, multiplier capped at 4x, 5-15s additive jitter.
func DefaultConfig() Config {
	return Config{
		CategoryDelay:    60 * time.Second,
		SubcategoryDelay: 30 * time.Second,
		FailureCooldown:  300 * time.Second,
		MaxMultiplier:    4.0,
		JitterMin:        5 * time.Second,
		JitterMax:        15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CategoryDelay <= 0 {
		c.CategoryDelay = d.CategoryDelay
	}
	if c.SubcategoryDelay <= 0 {
		c.SubcategoryDelay = d.SubcategoryDelay
	}
	if c.FailureCooldown <= 0 {
		c.FailureCooldown = d.FailureCooldown
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = d.MaxMultiplier
	}
	if c.JitterMin <= 0 {
		c.JitterMin = d.JitterMin
	}
	if c.JitterMax <= c.JitterMin {
		c.JitterMax = c.JitterMin + d.JitterMax - d.JitterMin
	}
	return c
}

// Controller adapts crawl pacing to observed failures. It is stateful per
// run and must not be shared across concurrently crawled targets.
type Controller struct {
	cfg                 Config
	consecutiveFailures int

	randFloat func() float64
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option overrides a Controller collaborator, mainly so tests can run
// without real timers.
type Option func(*Controller)

// WithSleep substitutes the sleep function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// WithRandom substitutes the jitter randomness source.
func WithRandom(fn func() float64) Option {
	return func(c *Controller) { c.randFloat = fn }
}

// NewController builds a Controller with real timers and randomness unless
// overridden by options.
func NewController(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg.withDefaults(),
		randFloat: rand.Float64,
		sleep:     resilience.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordSuccess decrements the consecutive-failure counter, floor zero.
func (c *Controller) RecordSuccess() {
	if c.consecutiveFailures > 0 {
		c.consecutiveFailures--
	}
}

// RecordFailure increments the consecutive-failure counter. The counter is
// unbounded; only the resulting multiplier is capped.
func (c *Controller) RecordFailure() {
	c.consecutiveFailures++
}

// ConsecutiveFailures returns the current failure streak.
func (c *Controller) ConsecutiveFailures() int {
	return c.consecutiveFailures
}

// Multiplier returns min(1 + 0.5*consecutiveFailures, MaxMultiplier).
func (c *Controller) Multiplier() float64 {
	m := 1 + 0.5*float64(c.consecutiveFailures)
	if m > c.cfg.MaxMultiplier {
		return c.cfg.MaxMultiplier
	}
	return m
}

// CategoryDelay returns the effective inter-category delay, before jitter.
func (c *Controller) CategoryDelay() time.Duration {
	return time.Duration(float64(c.cfg.CategoryDelay) * c.Multiplier())
}

// SubcategoryDelay returns the effective inter-subcategory delay, before jitter.
func (c *Controller) SubcategoryDelay() time.Duration {
	return time.Duration(float64(c.cfg.SubcategoryDelay) * c.Multiplier())
}

// FailureCooldown returns the effective cooldown after a failed crawl unit.
func (c *Controller) FailureCooldown() time.Duration {
	return time.Duration(float64(c.cfg.FailureCooldown) * c.Multiplier())
}

// Jitter returns a uniform random duration in [JitterMin, JitterMax].
func (c *Controller) Jitter() time.Duration {
	span := c.cfg.JitterMax - c.cfg.JitterMin
	return c.cfg.JitterMin + time.Duration(c.randFloat()*float64(span))
}

// WaitWithJitter sleeps for base plus jitter, honoring ctx.
func (c *Controller) WaitWithJitter(ctx context.Context, base time.Duration) error {
	return c.sleep(ctx, base+c.Jitter())
}
