package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PriceFacts is the normalized result of parsing a raw price fragment.
// Currency is an ISO code, or "" when the currency could not be identified
// (the amount is then carried through unconverted).
type PriceFacts struct {
	USD      *float64 `json:"usd,omitempty"`
	Original string   `json:"original"`
	Currency string   `json:"currency,omitempty"`
	IsPWYW   bool     `json:"is_pwyw"`
}

// usdRates converts one unit of the named currency to USD. Static table;
// precision beyond the confidence tiers is not a goal here.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.10,
	"GBP": 1.27,
	"CAD": 0.74,
	"AUD": 0.66,
	"JPY": 0.0067,
	"INR": 0.012,
}

// currencySymbols maps symbols to codes. Order matters: C$ and A$ must be
// checked before the bare dollar sign.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
	{"$", "USD"},
}

var (
	subscriptionSuffixRe = regexp.MustCompile(`(?i)\s*(a month|per month|/\s*mo(nth)?|a year|per year|/\s*yr|/\s*year|a week|per week|/\s*wk)\s*$`)
	pwywRe               = regexp.MustCompile(`(?i)(name your (own )?price|pay what you want|pwyw)`)
	amountRe             = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)`)
	currencyCodeRe       = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

// ParsePrice converts a raw price fragment into typed facts. It never fails:
// unparseable input degrades to a nil USD amount with the original text kept.
// "free", "$0" and "0" normalize to zero USD with the original text set to
// "Free"; a zero-floor trailing "+" or an explicit pay-what-you-want phrase
// flags PWYW.
func ParsePrice(text string) PriceFacts {
	original := strings.TrimSpace(text)
	facts := PriceFacts{Original: original}
	if original == "" {
		return facts
	}

	cleaned := subscriptionSuffixRe.ReplaceAllString(original, "")
	lower := strings.ToLower(cleaned)

	if pwywRe.MatchString(cleaned) {
		facts.IsPWYW = true
	}

	if lower == "free" || lower == "$0" || lower == "0" {
		zero := 0.0
		facts.Original = "Free"
		facts.USD = &zero
		facts.Currency = "USD"
		return facts
	}

	currency := ""
	for _, cs := range currencySymbols {
		if strings.Contains(cleaned, cs.symbol) {
			currency = cs.code
			break
		}
	}
	if currency == "" {
		if m := currencyCodeRe.FindStringSubmatch(cleaned); m != nil {
			if _, ok := usdRates[m[1]]; ok {
				currency = m[1]
			}
		}
	}

	m := amountRe.FindStringSubmatch(cleaned)
	if m == nil {
		facts.Currency = currency
		return facts
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		facts.Currency = currency
		return facts
	}

	// A trailing plus marks a name-your-price floor only at zero ("$0+").
	// Nonzero plus prices ("$29+") are tier floors, not pay-what-you-want.
	idx := strings.Index(cleaned, m[1]) + len(m[1])
	if amount == 0 && idx < len(cleaned) && strings.HasPrefix(strings.TrimSpace(cleaned[idx:]), "+") {
		facts.IsPWYW = true
	}

	rate := 1.0
	if currency == "" && !strings.ContainsAny(cleaned, "€£₹¥$") && currencyCodeRe.MatchString(cleaned) {
		// Amount tagged with an unrecognized code: keep it unconverted.
	} else if currency == "" {
		currency = "USD"
	}
	if r, ok := usdRates[currency]; ok {
		rate = r
	}

	usd := round2(amount * rate)
	facts.USD = &usd
	facts.Currency = currency
	return facts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
