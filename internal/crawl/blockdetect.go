package crawl

import "strings"

// blockIndicators are phrases that show up on CAPTCHA walls, rate-limit
// interstitials, and bot-detection challenge pages.
var blockIndicators = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"are you human",
	"verify you are",
	"unusual traffic",
	"access denied",
	"too many requests",
	"rate limit",
	"checking your browser",
	"cloudflare",
	"blocked",
}

// ScanForBlockIndicators returns the indicators present in the page title or
// body text. An empty result means no block signals were found.
func ScanForBlockIndicators(title, bodyText string) []string {
	haystack := strings.ToLower(title + "\n" + bodyText)
	var found []string
	for _, indicator := range blockIndicators {
		if strings.Contains(haystack, indicator) {
			found = append(found, indicator)
		}
	}
	return found
}

// notFoundPhrases mark a listing route that no longer exists.
var notFoundPhrases = []string{
	"page not found",
	"this page doesn't exist",
	"404",
	"nothing to see here",
}

// IsNotFoundPage reports whether the page reads as a dead route: a
// not-found phrase in the body together with a matching title.
func IsNotFoundPage(title, bodyText string) bool {
	lowerTitle := strings.ToLower(title)
	lowerBody := strings.ToLower(bodyText)

	bodyHit := false
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lowerBody, phrase) {
			bodyHit = true
			break
		}
	}
	if !bodyHit {
		return false
	}
	return strings.Contains(lowerTitle, "not found") || strings.Contains(lowerTitle, "404")
}
