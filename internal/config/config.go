// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nichewatch/nichewatch/internal/alerting"
	"github.com/nichewatch/nichewatch/internal/crawl"
	"github.com/nichewatch/nichewatch/internal/rate"
	"github.com/nichewatch/nichewatch/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig     `yaml:"store" mapstructure:"store"`
	Crawl   CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Rate    RateConfig      `yaml:"rate" mapstructure:"rate"`
	Scoring scoring.Config  `yaml:"scoring" mapstructure:"scoring"`
	Alerts  alerting.Config `yaml:"alerts" mapstructure:"alerts"`
	Worker  WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Log     LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CrawlConfig configures the browser session and the crawl loop.
type CrawlConfig struct {
	Headless          bool   `yaml:"headless" mapstructure:"headless"`
	ProxyServer       string `yaml:"proxy_server" mapstructure:"proxy_server"`
	NavTimeoutSecs    int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	MaxProducts       int    `yaml:"max_products" mapstructure:"max_products"`
	MaxScrollAttempts int    `yaml:"max_scroll_attempts" mapstructure:"max_scroll_attempts"`
	SettleWaitSecs    int    `yaml:"settle_wait_secs" mapstructure:"settle_wait_secs"`
	EnrichDetails     bool   `yaml:"enrich_details" mapstructure:"enrich_details"`
	DetailRetries     int    `yaml:"detail_retries" mapstructure:"detail_retries"`
}

// BrowserOptions maps the crawl section onto browser session options.
func (c CrawlConfig) BrowserOptions() crawl.BrowserOptions {
	return crawl.BrowserOptions{
		Headless:    c.Headless,
		UserAgent:   crawl.RandomUserAgent(),
		ProxyServer: c.ProxyServer,
		NavTimeout:  time.Duration(c.NavTimeoutSecs) * time.Second,
	}
}

// EngineOptions maps the crawl section onto crawl loop options.
func (c CrawlConfig) EngineOptions() crawl.Options {
	return crawl.Options{
		MaxProducts:       c.MaxProducts,
		MaxScrollAttempts: c.MaxScrollAttempts,
		SettleWait:        time.Duration(c.SettleWaitSecs) * time.Second,
		EnrichDetails:     c.EnrichDetails,
		DetailRetries:     c.DetailRetries,
	}
}

// RateConfig configures the adaptive pacing controller.
type RateConfig struct {
	CategoryDelaySecs    int     `yaml:"category_delay_secs" mapstructure:"category_delay_secs"`
	SubcategoryDelaySecs int     `yaml:"subcategory_delay_secs" mapstructure:"subcategory_delay_secs"`
	FailureCooldownSecs  int     `yaml:"failure_cooldown_secs" mapstructure:"failure_cooldown_secs"`
	MaxMultiplier        float64 `yaml:"max_multiplier" mapstructure:"max_multiplier"`
	JitterMinSecs        int     `yaml:"jitter_min_secs" mapstructure:"jitter_min_secs"`
	JitterMaxSecs        int     `yaml:"jitter_max_secs" mapstructure:"jitter_max_secs"`
}

// ControllerConfig maps the rate section onto the controller's config.
func (c RateConfig) ControllerConfig() rate.Config {
	return rate.Config{
		CategoryDelay:    time.Duration(c.CategoryDelaySecs) * time.Second,
		SubcategoryDelay: time.Duration(c.SubcategoryDelaySecs) * time.Second,
		FailureCooldown:  time.Duration(c.FailureCooldownSecs) * time.Second,
		MaxMultiplier:    c.MaxMultiplier,
		JitterMin:        time.Duration(c.JitterMinSecs) * time.Second,
		JitterMax:        time.Duration(c.JitterMaxSecs) * time.Second,
	}
}

// WorkerConfig configures the serial worker loop.
type WorkerConfig struct {
	ConsecutiveFatalLimit int    `yaml:"consecutive_fatal_limit" mapstructure:"consecutive_fatal_limit"`
	ArtifactDir           string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NICHEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "nichewatch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.nav_timeout_secs", 45)
	v.SetDefault("crawl.max_products", 100)
	v.SetDefault("crawl.max_scroll_attempts", 200)
	v.SetDefault("crawl.settle_wait_secs", 2)
	v.SetDefault("crawl.enrich_details", false)
	v.SetDefault("crawl.detail_retries", 3)

	v.SetDefault("rate.category_delay_secs", 60)
	v.SetDefault("rate.subcategory_delay_secs", 30)
	v.SetDefault("rate.failure_cooldown_secs", 300)
	v.SetDefault("rate.max_multiplier", 4.0)
	v.SetDefault("rate.jitter_min_secs", 5)
	v.SetDefault("rate.jitter_max_secs", 15)

	v.SetDefault("worker.consecutive_fatal_limit", 5)
	v.SetDefault("worker.artifact_dir", "artifacts")

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.weights.velocity", sc.Weights.Velocity)
	v.SetDefault("scoring.weights.copyability", sc.Weights.Copyability)
	v.SetDefault("scoring.weights.novelty", sc.Weights.Novelty)
	v.SetDefault("scoring.weights.price_to_value", sc.Weights.PriceToValue)
	v.SetDefault("scoring.weights.saturation_penalty", sc.Weights.SaturationPenalty)
	v.SetDefault("scoring.velocity.rating_per_hour_for_max", sc.Velocity.RatingPerHourForMax)
	v.SetDefault("scoring.velocity.sales_per_hour_for_max", sc.Velocity.SalesPerHourForMax)
	v.SetDefault("scoring.velocity.min_hours", sc.Velocity.MinHours)
	v.SetDefault("scoring.price_to_value.sweet_spot_low", sc.PriceToValue.SweetSpotLow)
	v.SetDefault("scoring.price_to_value.sweet_spot_high", sc.PriceToValue.SweetSpotHigh)
	v.SetDefault("scoring.price_to_value.acceptable_low", sc.PriceToValue.AcceptableLow)
	v.SetDefault("scoring.price_to_value.acceptable_high", sc.PriceToValue.AcceptableHigh)
	v.SetDefault("scoring.price_to_value.penalty_high", sc.PriceToValue.PenaltyHigh)
	v.SetDefault("scoring.price_to_value.penalty_low", sc.PriceToValue.PenaltyLow)
	v.SetDefault("scoring.novelty.min_token_length", sc.Novelty.MinTokenLength)
	v.SetDefault("scoring.copyability.format_keywords", sc.Copyability.FormatKeywords)
	v.SetDefault("scoring.copyability.brand_blocks", sc.Copyability.BrandBlocks)
	v.SetDefault("scoring.copyability.creator_penalty", sc.Copyability.CreatorPenalty)
	v.SetDefault("scoring.saturation.similarity_threshold", sc.Saturation.SimilarityThreshold)
	v.SetDefault("scoring.saturation.penalty_per_neighbor", sc.Saturation.PenaltyPerNeighbor)
	v.SetDefault("scoring.saturation.max_penalty", sc.Saturation.MaxPenalty)
	v.SetDefault("scoring.confidence.reviews_high", sc.Confidence.ReviewsHigh)
	v.SetDefault("scoring.confidence.reviews_med", sc.Confidence.ReviewsMed)
	v.SetDefault("scoring.confidence.sales_high", sc.Confidence.SalesHigh)
	v.SetDefault("scoring.confidence.sales_med", sc.Confidence.SalesMed)

	al := alerting.DefaultConfig()
	v.SetDefault("alerts.spike_rating_delta", al.SpikeRatingDelta)
	v.SetDefault("alerts.spike_sales_delta", al.SpikeSalesDelta)
	v.SetDefault("alerts.min_price_change", al.MinPriceChange)
	v.SetDefault("alerts.price_pct_move", al.PricePctMove)
}

// Validate checks the loaded config for values the commands cannot
// recover from.
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if err := scoring.Validate(c.Scoring); err != nil {
		return err
	}
	return alerting.Validate(c.Alerts)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
