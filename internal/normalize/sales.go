package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	salesTextRe = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*([KM])?\s*sales?`)
	// Embedded machine-readable counts beat anything the visible text says.
	salesEmbeddedRes = []*regexp.Regexp{
		regexp.MustCompile(`"sales_count"\s*:\s*"?(\d+)"?`),
		regexp.MustCompile(`"salesCount"\s*:\s*"?(\d+)"?`),
	}
)

// ParseSales extracts a sales count from visible text. Supports bare
// integers with thousands separators and case-insensitive K/M suffixes
// ("1.2K sales" -> 1200). Returns nil when nothing parseable is present.
func ParseSales(text string) *int {
	m := salesTextRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n *= 1_000
	case "M":
		n *= 1_000_000
	}
	count := int(n)
	return &count
}

// ExtractSalesFromPage pulls a sales count out of a full page: embedded
// JSON fragments first, then the visible-text patterns as a fallback.
func ExtractSalesFromPage(page string) *int {
	for _, re := range salesEmbeddedRes {
		if m := re.FindStringSubmatch(page); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return &n
			}
		}
	}
	return ParseSales(page)
}
