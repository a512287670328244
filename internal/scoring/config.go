// Package scoring turns snapshots and their diffs into explainable,
// bounded opportunity scores.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Config holds all scoring weights and thresholds. It is immutable once
// loaded; every component receives it explicitly so scoring stays
// deterministic.
type Config struct {
	Weights      WeightsConfig      `yaml:"weights" mapstructure:"weights"`
	Velocity     VelocityConfig     `yaml:"velocity" mapstructure:"velocity"`
	PriceToValue PriceToValueConfig `yaml:"price_to_value" mapstructure:"price_to_value"`
	Novelty      NoveltyConfig      `yaml:"novelty" mapstructure:"novelty"`
	Copyability  CopyabilityConfig  `yaml:"copyability" mapstructure:"copyability"`
	Saturation   SaturationConfig   `yaml:"saturation" mapstructure:"saturation"`
	Confidence   ConfidenceConfig   `yaml:"confidence" mapstructure:"confidence"`
}

// WeightsConfig weights the component scores in the final combination.
// SaturationPenalty is applied as a subtraction, not a positive term.
type WeightsConfig struct {
	Velocity          float64 `yaml:"velocity" mapstructure:"velocity"`
	Copyability       float64 `yaml:"copyability" mapstructure:"copyability"`
	Novelty           float64 `yaml:"novelty" mapstructure:"novelty"`
	PriceToValue      float64 `yaml:"price_to_value" mapstructure:"price_to_value"`
	SaturationPenalty float64 `yaml:"saturation_penalty" mapstructure:"saturation_penalty"`
}

type VelocityConfig struct {
	RatingPerHourForMax float64 `yaml:"rating_per_hour_for_max" mapstructure:"rating_per_hour_for_max"`
	SalesPerHourForMax  float64 `yaml:"sales_per_hour_for_max" mapstructure:"sales_per_hour_for_max"`
	MinHours            float64 `yaml:"min_hours" mapstructure:"min_hours"`
}

type PriceToValueConfig struct {
	SweetSpotLow   float64 `yaml:"sweet_spot_low" mapstructure:"sweet_spot_low"`
	SweetSpotHigh  float64 `yaml:"sweet_spot_high" mapstructure:"sweet_spot_high"`
	AcceptableLow  float64 `yaml:"acceptable_low" mapstructure:"acceptable_low"`
	AcceptableHigh float64 `yaml:"acceptable_high" mapstructure:"acceptable_high"`
	PenaltyHigh    float64 `yaml:"penalty_high" mapstructure:"penalty_high"`
	PenaltyLow     float64 `yaml:"penalty_low" mapstructure:"penalty_low"`
}

type NoveltyConfig struct {
	MinTokenLength int `yaml:"min_token_length" mapstructure:"min_token_length"`
}

type CopyabilityConfig struct {
	FormatKeywords []string `yaml:"format_keywords" mapstructure:"format_keywords"`
	BrandBlocks    []string `yaml:"brand_blocks" mapstructure:"brand_blocks"`
	CreatorPenalty float64  `yaml:"creator_penalty" mapstructure:"creator_penalty"`
}

type SaturationConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	PenaltyPerNeighbor  float64 `yaml:"penalty_per_neighbor" mapstructure:"penalty_per_neighbor"`
	MaxPenalty          float64 `yaml:"max_penalty" mapstructure:"max_penalty"`
}

type ConfidenceConfig struct {
	ReviewsHigh int `yaml:"reviews_high" mapstructure:"reviews_high"`
	ReviewsMed  int `yaml:"reviews_med" mapstructure:"reviews_med"`
	SalesHigh   int `yaml:"sales_high" mapstructure:"sales_high"`
	SalesMed    int `yaml:"sales_med" mapstructure:"sales_med"`
}

// DefaultConfig returns the tuned default scoring configuration.
// Weights sum to 1.0 including the saturation penalty weight.
func DefaultConfig() Config {
	return Config{
		Weights: WeightsConfig{
			Velocity:          0.35,
			Copyability:       0.20,
			Novelty:           0.15,
			PriceToValue:      0.20,
			SaturationPenalty: 0.10,
		},
		Velocity: VelocityConfig{
			RatingPerHourForMax: 5,
			SalesPerHourForMax:  20,
			MinHours:            6,
		},
		PriceToValue: PriceToValueConfig{
			SweetSpotLow:   15,
			SweetSpotHigh:  79,
			AcceptableLow:  5,
			AcceptableHigh: 149,
			PenaltyHigh:    40,
			PenaltyLow:     20,
		},
		Novelty: NoveltyConfig{
			MinTokenLength: 4,
		},
		Copyability: CopyabilityConfig{
			FormatKeywords: []string{
				"template", "checklist", "playbook", "framework",
				"prompts", "swipe", "spreadsheet", "notion",
			},
			BrandBlocks:    []string{" by ", "with "},
			CreatorPenalty: 20,
		},
		Saturation: SaturationConfig{
			SimilarityThreshold: 0.55,
			PenaltyPerNeighbor:  12,
			MaxPenalty:          60,
		},
		Confidence: ConfidenceConfig{
			ReviewsHigh: 25,
			ReviewsMed:  5,
			SalesHigh:   150,
			SalesMed:    25,
		},
	}
}

// WeightSum returns the sum of all component weights including the
// saturation penalty weight.
func WeightSum(c Config) float64 {
	return c.Weights.Velocity + c.Weights.Copyability + c.Weights.Novelty +
		c.Weights.PriceToValue + c.Weights.SaturationPenalty
}

// Validate checks that a Config is internally consistent.
func Validate(c Config) error {
	var errs []string

	weights := map[string]float64{
		"velocity":           c.Weights.Velocity,
		"copyability":        c.Weights.Copyability,
		"novelty":            c.Weights.Novelty,
		"price_to_value":     c.Weights.PriceToValue,
		"saturation_penalty": c.Weights.SaturationPenalty,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", name))
		}
	}

	sum := WeightSum(c)
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.2f", sum))
	}

	if c.Velocity.MinHours <= 0 {
		errs = append(errs, "velocity.min_hours must be > 0")
	}
	if c.PriceToValue.SweetSpotHigh < c.PriceToValue.SweetSpotLow {
		errs = append(errs, "price_to_value sweet spot range is inverted")
	}
	if c.PriceToValue.AcceptableHigh < c.PriceToValue.AcceptableLow {
		errs = append(errs, "price_to_value acceptable range is inverted")
	}
	if c.Saturation.SimilarityThreshold <= 0 || c.Saturation.SimilarityThreshold > 1 {
		errs = append(errs, "saturation.similarity_threshold must be in (0, 1]")
	}
	if c.Confidence.ReviewsMed > c.Confidence.ReviewsHigh {
		errs = append(errs, "confidence review thresholds are inverted")
	}
	if c.Confidence.SalesMed > c.Confidence.SalesHigh {
		errs = append(errs, "confidence sales thresholds are inverted")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
