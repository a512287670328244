package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"ai", "prompts", "the", "ultimate", "pack"},
		tokenize("AI Prompts: The Ultimate Pack!"))
	assert.Equal(t, []string{"self-care", "kit"}, tokenize("Self-Care Kit"))
	assert.Empty(t, tokenize("!!!"))
}

func TestHoursBetweenRuns(t *testing.T) {
	now := time.Now().UTC()

	assert.Equal(t, 24.0, HoursBetweenRuns(&model.Run{StartedAt: now}, nil))
	assert.Equal(t, 24.0, HoursBetweenRuns(nil, nil))

	prev := &model.Run{StartedAt: now.Add(-30 * time.Minute)}
	assert.Equal(t, 1.0, HoursBetweenRuns(&model.Run{StartedAt: now}, prev))

	prev = &model.Run{StartedAt: now.Add(-10 * time.Hour)}
	assert.InDelta(t, 10.0, HoursBetweenRuns(&model.Run{StartedAt: now}, prev), 0.001)
}

func TestVelocityScore(t *testing.T) {
	cfg := DefaultConfig().Velocity

	score, notes := velocityScore(model.ProductDiff{}, 6, cfg)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, notes)

	diff := model.ProductDiff{
		RatingCountDelta: intPtr(30),
		SalesCountDelta:  intPtr(120),
	}
	score, notes = velocityScore(diff, 6, cfg)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, []string{"ratings +30 over 6.0h", "sales +120 over 6.0h"}, notes)

	// hours below the floor are clamped up, never amplifying the rate
	short, _ := velocityScore(diff, 1, cfg)
	assert.Equal(t, score, short)

	small, _ := velocityScore(model.ProductDiff{RatingCountDelta: intPtr(6)}, 6, cfg)
	big, _ := velocityScore(model.ProductDiff{RatingCountDelta: intPtr(18)}, 6, cfg)
	assert.Greater(t, big, small)
}

func TestPriceToValueScore(t *testing.T) {
	cfg := DefaultConfig().PriceToValue

	tests := []struct {
		name   string
		price  *float64
		score  float64
		reason string
	}{
		{"no price", nil, 55.0, "no price"},
		{"sweet spot", floatPtr(25), 95.0, "priced in sweet spot"},
		{"acceptable", floatPtr(100), 80.0, "priced within acceptable band"},
		{"very low", floatPtr(2), 60.0, "very low price"},
		{"premium", floatPtr(200), 40.0, "premium priced"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reason := priceToValueScore(tt.price, cfg)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestNoveltyScore(t *testing.T) {
	cfg := DefaultConfig().Novelty

	score, reason := noveltyScore("a b c", map[string]int{}, 1, cfg)
	assert.Equal(t, 50.0, score)
	assert.Equal(t, "plain title", reason)

	// against an empty corpus every token gets idf ln(2)+1
	score, reason = noveltyScore("Notion Template", map[string]int{}, 1, cfg)
	assert.Equal(t, 56.44, score)
	assert.Equal(t, "common wording", reason)

	corpus := []string{
		"budget template", "budget template pro", "budget template 2024",
		"budget template deluxe", "budget template lite", "budget template max",
		"budget template mini", "budget template plus", "budget template gold",
		"budget template free",
	}
	df, totalDocs := documentFrequencies(corpus, cfg.MinTokenLength)
	require.Equal(t, 10, totalDocs)
	require.Equal(t, 10, df["template"])

	commonScore, commonReason := noveltyScore("template", df, totalDocs, cfg)
	rareScore, rareReason := noveltyScore("quixotic", df, totalDocs, cfg)
	assert.Greater(t, rareScore, commonScore)
	assert.Equal(t, "common wording", commonReason)
	assert.Equal(t, "unique phrasing", rareReason)
	assert.Equal(t, 100.0, rareScore)
}

func TestCopyabilityScore(t *testing.T) {
	cfg := DefaultConfig().Copyability

	score, reason := copyabilityScore("Notion Template for Freelancers", cfg)
	assert.Equal(t, 90.0, score)
	assert.Equal(t, "clear format (template, notion); targets a specific audience", reason)

	score, reason = copyabilityScore("Art by Jane", cfg)
	assert.Equal(t, 40.0, score)
	assert.Equal(t, "personal brand heavy", reason)

	score, reason = copyabilityScore("Mystery Box", cfg)
	assert.Equal(t, 60.0, score)
	assert.Equal(t, "generic positioning", reason)

	score, _ = copyabilityScore("template checklist playbook framework prompts swipe spreadsheet notion for everyone", cfg)
	assert.Equal(t, 100.0, score)
}

func TestSaturationPenalty(t *testing.T) {
	cfg := DefaultConfig().Saturation

	corpus := []string{
		"notion budget template",
		"notion budget template 2024",
		"budget template notion",
		"watercolor brush set",
	}
	penalty, reason, neighbors := saturationPenalty("notion budget template", corpus, cfg)
	assert.Equal(t, 24.0, penalty)
	assert.Equal(t, "crowded niche", reason)
	assert.Len(t, neighbors, 2)

	penalty, reason, neighbors = saturationPenalty("watercolor brush set", []string{"notion budget template"}, cfg)
	assert.Equal(t, 0.0, penalty)
	assert.Equal(t, "few close comps", reason)
	assert.Empty(t, neighbors)
}

func TestSaturationPenalty_Capped(t *testing.T) {
	cfg := DefaultConfig().Saturation

	corpus := make([]string, 0, 6)
	for _, suffix := range []string{"a", "b", "c", "d", "e", "f"} {
		corpus = append(corpus, "notion budget template "+suffix)
	}
	penalty, _, neighbors := saturationPenalty("notion budget template", corpus, cfg)
	assert.Equal(t, cfg.MaxPenalty, penalty)
	assert.Len(t, neighbors, 5)
}

func TestInferConfidence(t *testing.T) {
	cfg := DefaultConfig().Confidence

	tests := []struct {
		name        string
		ratingCount int
		sales       *int
		want        model.Confidence
	}{
		{"many reviews", 30, nil, model.ConfidenceHigh},
		{"many sales", 0, intPtr(200), model.ConfidenceHigh},
		{"some reviews", 10, nil, model.ConfidenceMed},
		{"some sales", 0, intPtr(30), model.ConfidenceMed},
		{"nothing", 0, nil, model.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferConfidence(tt.ratingCount, tt.sales, cfg))
		})
	}
}

func TestGenerate(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	computedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	snapshots := []model.ProductSnapshot{
		{
			Platform:    "gumroad",
			ProductID:   "alpha",
			RunID:       "run-1",
			Title:       "Notion Budget Template for Creators",
			PriceUSD:    floatPtr(29),
			RatingCount: 30,
			SalesCount:  intPtr(200),
		},
		{
			Platform:  "gumroad",
			ProductID: "beta",
			RunID:     "run-1",
			Title:     "Mystery Box",
		},
	}
	diffs := []model.ProductDiff{
		{
			Platform:         "gumroad",
			ProductID:        "alpha",
			RunID:            "run-1",
			PreviousRunID:    "run-0",
			RatingCountDelta: intPtr(30),
			SalesCountDelta:  intPtr(120),
		},
	}
	corpus := []string{
		"Notion Budget Template for Creators",
		"Mystery Box",
	}

	out := engine.Generate(snapshots, diffs, corpus, 6, computedAt)
	require.Len(t, out, 2)

	assert.Equal(t, "alpha", out[0].ProductID)
	assert.InDelta(t, 79.03, out[0].Score, 0.011)
	assert.Equal(t, 100.0, out[0].Velocity)
	assert.Equal(t, 95.0, out[0].PriceToValue)
	assert.Equal(t, model.ConfidenceHigh, out[0].Confidence)
	assert.True(t, strings.HasPrefix(out[0].Reason, "Score 79/100 | "))
	assert.Contains(t, out[0].Reason, "ratings +30 over 6.0h")
	assert.Equal(t, computedAt, out[0].ComputedAt)

	assert.Equal(t, "beta", out[1].ProductID)
	assert.InDelta(t, 30.03, out[1].Score, 0.011)
	assert.Equal(t, 0.0, out[1].Velocity)
	assert.Equal(t, model.ConfidenceLow, out[1].Confidence)

	for _, opp := range out {
		assert.GreaterOrEqual(t, opp.Score, 0.0)
		assert.LessOrEqual(t, opp.Score, 100.0)
	}
}

func TestReasonString_Truncated(t *testing.T) {
	long := strings.Repeat("crowded niche and then some ", 20)
	out := reasonString(50, []string{long}, long)
	assert.LessOrEqual(t, len([]rune(out)), maxReasonLength)
	assert.True(t, strings.HasPrefix(out, "Score 50/100 | "))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.InDelta(t, 1.0, WeightSum(cfg), 0.001)
}

func TestValidate_Rejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Velocity = -0.1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights.velocity")

	cfg = DefaultConfig()
	cfg.PriceToValue.SweetSpotHigh = 10
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweet spot")

	cfg = DefaultConfig()
	cfg.Saturation.SimilarityThreshold = 1.5
	require.Error(t, Validate(cfg))
}
