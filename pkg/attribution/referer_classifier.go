package attribution

import "strings"

// Traffic source categories returned by RefererClassifier.
const (
	SourceDirect   = "Direct"
	SourceSearch   = "Search"
	SourceSocial   = "Social"
	SourceAI       = "AI"
	SourceReferral = "Referral"
)

// RefererSourceKey is the document key holding the referer's source category.
const RefererSourceKey = RefererPrefix + "source_type"

// RefererClassifier classifies traffic sources from referer hostnames.
type RefererClassifier struct {
	searchEngines []string
	socialMedia   []string
	aiPlatforms   []string
}

// NewRefererClassifier creates a RefererClassifier with the built-in domain lists.
func NewRefererClassifier() *RefererClassifier {
	return &RefererClassifier{
		searchEngines: []string{
			"google.",
			"bing.com",
			"yahoo.com",
			"duckduckgo.com",
			"baidu.com",
			"yandex.",
			"ecosia.org",
			"naver.com",
			"seznam.cz",
		},
		socialMedia: []string{
			"facebook.com",
			"twitter.com",
			"t.co",
			"x.com",
			"instagram.com",
			"linkedin.com",
			"lnkd.in",
			"pinterest.com",
			"reddit.com",
			"tiktok.com",
			"youtube.com",
			"threads.net",
			"mastodon.social",
		},
		aiPlatforms: []string{
			"chatgpt.com",
			"chat.openai.com",
			"claude.ai",
			"gemini.google.com",
			"perplexity.ai",
			"copilot.microsoft.com",
		},
	}
}

// Classify returns the category for a referer hostname. An empty hostname is
// a direct visit; a hostname equal to ownHost (or a subdomain of it) is also
// treated as direct.
func (r *RefererClassifier) Classify(hostname, ownHost string) string {
	hostname = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hostname)), "www.")
	if hostname == "" {
		return SourceDirect
	}

	ownHost = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ownHost)), "www.")
	if ownHost != "" && (hostname == ownHost || strings.HasSuffix(hostname, "."+ownHost)) {
		return SourceDirect
	}

	// AI platforms first: gemini.google.com would otherwise match google.
	if matchesAny(hostname, r.aiPlatforms) {
		return SourceAI
	}
	if matchesAny(hostname, r.searchEngines) {
		return SourceSearch
	}
	if matchesAny(hostname, r.socialMedia) {
		return SourceSocial
	}
	return SourceReferral
}

func matchesAny(hostname string, domains []string) bool {
	for _, domain := range domains {
		if strings.HasSuffix(domain, ".") {
			if strings.HasPrefix(hostname, domain) || strings.Contains(hostname, "."+domain) {
				return true
			}
			continue
		}
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}
