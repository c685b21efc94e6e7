package fetch

import "strings"

// Domains that hard-paywall most articles.
var paywalledDomains = []string{
	"wsj.com",
	"nytimes.com",
	"ft.com",
	"economist.com",
	"bloomberg.com",
	"washingtonpost.com",
	"theathletic.com",
	"businessinsider.com",
	"barrons.com",
	"telegraph.co.uk",
	"thetimes.co.uk",
}

var paywallPhrases = []string{
	"subscribe to continue",
	"subscription required",
	"subscribe to read",
	"sign in to continue reading",
	"already a subscriber",
	"this article is for subscribers",
	"create a free account to continue",
	"to continue reading",
}

var botPhrases = []string{
	"unusual activity",
	"captcha",
	"verify you are human",
	"access denied",
	"cloudflare",
	"just a moment",
	"checking your browser",
	"ray id",
	"pardon our interruption",
	"please enable javascript",
}

// Phrases that alone are strong enough to flag a short page.
var strongBotPhrases = []string{
	"captcha",
	"verify you are human",
	"just a moment",
	"checking your browser",
	"pardon our interruption",
}

// isPaywalledDomain reports whether the host belongs to a known-paywalled
// publisher.
func isPaywalledDomain(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range paywalledDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// looksPaywalled flags short pages from paywalled publishers and pages that
// carry subscription prompts in place of content.
func looksPaywalled(host, content string) bool {
	lower := strings.ToLower(content)
	if isPaywalledDomain(host) && len(content) < 1000 {
		return true
	}
	if len(content) < 3000 {
		for _, phrase := range paywallPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}

// looksBotDetection flags CAPTCHA and bot-interstitial pages: two or more
// indicator phrases in a body under 3000 characters, or one strong
// indicator in a body under 2000 characters.
func looksBotDetection(content string) bool {
	lower := strings.ToLower(content)

	if len(content) < 2000 {
		for _, phrase := range strongBotPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	if len(content) >= 3000 {
		return false
	}
	hits := 0
	for _, phrase := range botPhrases {
		if strings.Contains(lower, phrase) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}
