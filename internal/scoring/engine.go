package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/model"
)

const maxReasonLength = 280

// Engine computes opportunity scores for the snapshots of a run. It is
// stateless between calls; the title corpus is rebuilt per invocation so
// novelty and saturation always reflect the caller's window.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// HoursBetweenRuns returns the elapsed hours between two runs, floored at
// one hour. A missing previous run falls back to a 24h window so velocity
// on a first run is conservative rather than explosive.
func HoursBetweenRuns(current, previous *model.Run) float64 {
	if current == nil || previous == nil || previous.StartedAt.IsZero() {
		return 24.0
	}
	hours := current.StartedAt.Sub(previous.StartedAt).Hours()
	return math.Max(hours, 1.0)
}

// Generate scores every snapshot against its diff and the title corpus,
// returning opportunities sorted by score descending. Corpus titles feed
// novelty (rare phrasing scores higher) and saturation (near-duplicate
// titles are penalized); hoursDelta is the spacing to the previous run.
func (e *Engine) Generate(snapshots []model.ProductSnapshot, diffs []model.ProductDiff, corpus []string, hoursDelta float64, computedAt time.Time) []model.Opportunity {
	diffByProduct := make(map[string]model.ProductDiff, len(diffs))
	for _, d := range diffs {
		diffByProduct[d.Platform+"|"+d.ProductID] = d
	}
	df, totalDocs := documentFrequencies(corpus, e.cfg.Novelty.MinTokenLength)

	opportunities := make([]model.Opportunity, 0, len(snapshots))
	for i := range snapshots {
		snap := &snapshots[i]
		diff := diffByProduct[snap.Platform+"|"+snap.ProductID]
		opportunities = append(opportunities, e.score(snap, diff, df, totalDocs, corpus, hoursDelta, computedAt))
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].Score != opportunities[j].Score {
			return opportunities[i].Score > opportunities[j].Score
		}
		return opportunities[i].ProductID < opportunities[j].ProductID
	})

	zap.L().Info("scoring: generated opportunities",
		zap.Int("count", len(opportunities)),
		zap.Float64("hours_delta", hoursDelta))
	return opportunities
}

func (e *Engine) score(snap *model.ProductSnapshot, diff model.ProductDiff, df map[string]int, totalDocs int, corpus []string, hoursDelta float64, computedAt time.Time) model.Opportunity {
	velocity, velocityNotes := velocityScore(diff, hoursDelta, e.cfg.Velocity)
	priceToValue, priceReason := priceToValueScore(snap.PriceUSD, e.cfg.PriceToValue)
	novelty, noveltyReason := noveltyScore(snap.Title, df, totalDocs, e.cfg.Novelty)
	copyability, copyReason := copyabilityScore(snap.Title, e.cfg.Copyability)
	saturation, saturationReason, _ := saturationPenalty(snap.Title, corpus, e.cfg.Saturation)

	w := e.cfg.Weights
	weighted := velocity*w.Velocity +
		copyability*w.Copyability +
		novelty*w.Novelty +
		priceToValue*w.PriceToValue -
		saturation*w.SaturationPenalty
	score := round2(clamp(weighted, 0, 100))

	return model.Opportunity{
		Platform:          snap.Platform,
		ProductID:         snap.ProductID,
		RunID:             snap.RunID,
		Score:             score,
		Velocity:          velocity,
		Copyability:       copyability,
		Novelty:           novelty,
		PriceToValue:      priceToValue,
		SaturationPenalty: saturation,
		Confidence:        inferConfidence(snap.RatingCount, snap.SalesCount, e.cfg.Confidence),
		Reason:            reasonString(score, velocityNotes, priceReason, noveltyReason, copyReason, saturationReason),
		ComputedAt:        computedAt,
	}
}

// velocityScore rates how fast social proof is accumulating. Rating and
// sales rates each cap at their per-hour-for-max tunable and contribute
// half of the component.
func velocityScore(diff model.ProductDiff, hoursDelta float64, cfg VelocityConfig) (float64, []string) {
	hours := math.Max(hoursDelta, cfg.MinHours)

	var ratingDelta, salesDelta int
	if diff.RatingCountDelta != nil {
		ratingDelta = *diff.RatingCountDelta
	}
	if diff.SalesCountDelta != nil {
		salesDelta = *diff.SalesCountDelta
	}

	ratingScore := math.Min(1.0, float64(ratingDelta)/hours/cfg.RatingPerHourForMax)
	salesScore := math.Min(1.0, float64(salesDelta)/hours/cfg.SalesPerHourForMax)
	score := round2((ratingScore*0.5 + salesScore*0.5) * 100)

	var notes []string
	if ratingDelta != 0 {
		notes = append(notes, fmt.Sprintf("ratings %+d over %.1fh", ratingDelta, hours))
	}
	if salesDelta != 0 {
		notes = append(notes, fmt.Sprintf("sales %+d over %.1fh", salesDelta, hours))
	}
	return score, notes
}

func priceToValueScore(priceUSD *float64, cfg PriceToValueConfig) (float64, string) {
	if priceUSD == nil {
		return 55.0, "no price"
	}
	price := *priceUSD
	switch {
	case price >= cfg.SweetSpotLow && price <= cfg.SweetSpotHigh:
		return 95.0, "priced in sweet spot"
	case price >= cfg.AcceptableLow && price <= cfg.AcceptableHigh:
		return 80.0, "priced within acceptable band"
	case price < cfg.AcceptableLow:
		return math.Max(40.0, 80.0-cfg.PenaltyLow), "very low price"
	default:
		return math.Max(35.0, 80.0-cfg.PenaltyHigh), "premium priced"
	}
}

// noveltyScore is the mean inverse document frequency of the title's
// significant tokens against the corpus, scaled so an avg IDF of 3
// saturates at 100.
func noveltyScore(title string, df map[string]int, totalDocs int, cfg NoveltyConfig) (float64, string) {
	tokens := uniqueTokens(title, cfg.MinTokenLength)
	if len(tokens) == 0 {
		return 50.0, "plain title"
	}

	var sum float64
	for _, tok := range tokens {
		idf := math.Log(float64(1+totalDocs)/float64(1+df[tok])) + 1.0
		sum += idf
	}
	avg := sum / float64(len(tokens))
	normalized := round2(math.Min(100.0, avg/3.0*100.0))

	if normalized > 70 {
		return normalized, "unique phrasing"
	}
	return normalized, "common wording"
}

func copyabilityScore(title string, cfg CopyabilityConfig) (float64, string) {
	lower := strings.ToLower(title)

	var hits []string
	for _, kw := range cfg.FormatKeywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	audience := false
	for _, tok := range tokenize(title) {
		if tok == "for" {
			audience = true
			break
		}
	}
	brand := false
	for _, block := range cfg.BrandBlocks {
		if strings.Contains(lower, block) {
			brand = true
			break
		}
	}

	score := 60.0 + 10.0*float64(len(hits))
	if audience {
		score += 10.0
	}
	if brand {
		score -= cfg.CreatorPenalty
	}
	score = clamp(score, 10.0, 100.0)

	var parts []string
	if len(hits) > 0 {
		parts = append(parts, fmt.Sprintf("clear format (%s)", strings.Join(hits, ", ")))
	}
	if audience {
		parts = append(parts, "targets a specific audience")
	}
	if brand {
		parts = append(parts, "personal brand heavy")
	}
	if len(parts) == 0 {
		return score, "generic positioning"
	}
	return score, strings.Join(parts, "; ")
}

// saturationPenalty counts near-duplicate titles in the corpus by Jaccard
// similarity over token sets. Also returns up to five of the closest
// neighbor titles for diagnostics.
func saturationPenalty(title string, corpus []string, cfg SaturationConfig) (float64, string, []string) {
	base := tokenSet(title)
	var neighbors []string
	for _, other := range corpus {
		if other == title {
			continue
		}
		if jaccard(base, tokenSet(other)) >= cfg.SimilarityThreshold {
			neighbors = append(neighbors, other)
		}
	}

	penalty := math.Min(cfg.MaxPenalty, float64(len(neighbors))*cfg.PenaltyPerNeighbor)
	reason := "few close comps"
	if len(neighbors) > 0 {
		reason = "crowded niche"
	}
	if len(neighbors) > 5 {
		neighbors = neighbors[:5]
	}
	return penalty, reason, neighbors
}

func inferConfidence(ratingCount int, salesCount *int, cfg ConfidenceConfig) model.Confidence {
	sales := 0
	if salesCount != nil {
		sales = *salesCount
	}
	switch {
	case ratingCount >= cfg.ReviewsHigh || sales >= cfg.SalesHigh:
		return model.ConfidenceHigh
	case ratingCount >= cfg.ReviewsMed || sales >= cfg.SalesMed:
		return model.ConfidenceMed
	default:
		return model.ConfidenceLow
	}
}

// reasonString joins the non-empty component reasons into a single line
// capped at 280 characters so it fits an alert message verbatim.
func reasonString(score float64, velocityNotes []string, reasons ...string) string {
	parts := []string{fmt.Sprintf("Score %.0f/100", score)}
	if note := strings.Join(velocityNotes, "; "); note != "" {
		parts = append(parts, note)
	}
	for _, r := range reasons {
		if r != "" {
			parts = append(parts, r)
		}
	}
	joined := strings.Join(parts, " | ")
	if runes := []rune(joined); len(runes) > maxReasonLength {
		return string(runes[:maxReasonLength])
	}
	return joined
}

// tokenize lowercases a title, strips every rune that is not a letter,
// digit, hyphen, or space, and splits on whitespace.
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

func uniqueTokens(title string, minLen int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokenize(title) {
		if len(tok) < minLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func tokenSet(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(title) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// documentFrequencies counts, per significant token, how many corpus
// titles contain it at least once.
func documentFrequencies(corpus []string, minTokenLength int) (map[string]int, int) {
	df := make(map[string]int)
	for _, title := range corpus {
		for _, tok := range uniqueTokens(title, minTokenLength) {
			df[tok]++
		}
	}
	totalDocs := len(corpus)
	if totalDocs < 1 {
		totalDocs = 1
	}
	return df, totalDocs
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
