package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	breakdownPctRe   = regexp.MustCompile(`(?i)(\d)\s*stars?\D*?(\d+(?:\.\d+)?)\s*%`)
	breakdownCountRe = regexp.MustCompile(`(?i)(\d)\s*stars?\D*?([\d,]+)\s*(?:ratings?|reviews?)`)
)

// ParseRatingBreakdown reconciles per-star rating fragments from multiple
// candidate text sources into a map keyed "1".."5". Percentage-style values
// are preferred; count-style values are converted to percentages when the
// total review count is known, otherwise stored as rounded raw counts. The
// first fragment that yields a definite value for a star wins.
func ParseRatingBreakdown(sources []string, totalReviews *int) map[string]float64 {
	breakdown := make(map[string]float64)

	for _, src := range sources {
		if src == "" {
			continue
		}
		for _, m := range breakdownPctRe.FindAllStringSubmatch(src, -1) {
			star := m[1]
			if _, seen := breakdown[star]; seen {
				continue
			}
			if pct, err := strconv.ParseFloat(m[2], 64); err == nil {
				breakdown[star] = round1(pct)
			}
		}
		for _, m := range breakdownCountRe.FindAllStringSubmatch(src, -1) {
			star := m[1]
			if _, seen := breakdown[star]; seen {
				continue
			}
			count, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
			if err != nil {
				continue
			}
			if totalReviews != nil && *totalReviews > 0 {
				breakdown[star] = round1(count / float64(*totalReviews) * 100)
			} else {
				breakdown[star] = math.Round(count)
			}
		}
	}

	if len(breakdown) == 0 {
		return nil
	}
	return breakdown
}

// MixedReviewShare returns the share (percent, 0-100) of 2-4 star reviews
// in a breakdown. Percent-style breakdowns are summed directly; count-style
// breakdowns are converted using their own total.
func MixedReviewShare(breakdown map[string]float64) float64 {
	if len(breakdown) == 0 {
		return 0
	}

	var total, mid float64
	for star, v := range breakdown {
		total += v
		if star == "2" || star == "3" || star == "4" {
			mid += v
		}
	}

	// Percent-style values sum to roughly 100 already.
	if total <= 110 {
		return round1(mid)
	}
	if total == 0 {
		return 0
	}
	return round1(mid / total * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
