package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// ratingPatterns are tried in priority order. Each must capture the average
// in group 1; a count in group 2 is optional.
var ratingPatterns = []*regexp.Regexp{
	// "4.8 stars (123)"
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*stars?\s*\(\s*([\d,]+)\s*(?:ratings?|reviews?)?\s*\)`),
	// "4.8 / 5 ( 123 ratings )"
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*/\s*5\s*\(\s*([\d,]+)\s*(?:ratings?|reviews?)?\s*\)`),
	// "4.8(123)"
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\(\s*([\d,]+)\s*\)`),
	// bare "4.8"
	regexp.MustCompile(`(\d+(?:\.\d+)?)`),
}

// ParseRating extracts an average rating and review count from noisy text.
// Any average outside [0,5] is rejected (the DOM sometimes surfaces
// unrelated numbers there) but a recovered count still survives.
func ParseRating(text string) (*float64, int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0
	}

	for _, re := range ratingPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		avg, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		count := 0
		if len(m) > 2 && m[2] != "" {
			if c, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", "")); err == nil {
				count = c
			}
		}
		if avg < 0 || avg > 5 {
			return nil, count
		}
		return &avg, count
	}
	return nil, 0
}
