package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	feedlikeRegex = regexp.MustCompile(`(?i)\b(rss|feeds?|atom|json|xml|rdf|blogs?|subscribe)\b`)
	podcastRegex  = regexp.MustCompile(`(?i)\b(podcasts?)\b`)
	authorRegex   = regexp.MustCompile(`(?i)(authors?|journalists?|writers?|contributors?)`)
	dateRegex     = regexp.MustCompile(`/(\d{4}/\d{2})/`)

	// invalidFiletypes are rejected path suffixes (after stripping query).
	invalidFiletypes = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
		"mp4": true, "mp3": true, "mkv": true, "md": true, "css": true,
		"avi": true, "pdf": true, "js": true, "woff": true, "woff2": true,
		"svg": true, "ttf": true, "zip": true,
	}

	// bannedSubstrings are always rejected when present in the lowercased
	// URL string.
	bannedSubstrings = []string{
		"wp-admin", "wp-content", "wp-includes", "wp-json", "xmlrpc",
		"/amp/", "mailto:", "//font.",
	}

	// bannedQueryKeys reject a URL outright when present as a query key.
	bannedQueryKeys = map[string]bool{
		"comment": true, "comments": true, "post": true, "view": true, "theme": true,
	}

	// lowPriorityPatterns match content that is still worth fetching but
	// less likely to be a feed.
	lowPriorityPatterns = []string{"/archive/", "/page/", "forum", "//cdn."}
)

// LinkElement is a discovered anchor or <link> element together with the
// attributes the Link Filter needs to classify it: an href and, for <link>
// tags, an optional rel/type pair.
type LinkElement struct {
	Href string
	Rel  string
	Type string
}

// feedTypeMimeTypes are the <link type="..."> values that mark a link as
// an explicit feed reference, short-circuiting straight to priority 2.
var feedTypeMimeTypes = map[string]bool{
	"application/json":     true,
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/rdf+xml":  true,
}

// LinkFilter classifies discovered hrefs for feed-likelihood.
type LinkFilter struct {
	// FullCrawl, when true, disables the feedlike/podcast gate at step 7,
	// accepting any otherwise-valid link (used by a full-site crawl mode).
	FullCrawl bool
}

// NewLinkFilter returns a LinkFilter in default (feed-discovery-only) mode.
func NewLinkFilter() *LinkFilter {
	return &LinkFilter{}
}

// Classify returns the accepted, query-adjusted URL and its priority, or
// ok=false if the link should be rejected. origin is the Response's own
// URL (used to resolve a relative href); root is the crawl's original seed
// URL, used for the one-jump-from-origin cross-domain check. If root is nil,
// origin is used as the root too (the common case of classifying links found
// on the seed page itself).
func (f *LinkFilter) Classify(elem LinkElement, origin *url.URL, root *url.URL) (accepted *url.URL, priority int, ok bool) {
	if elem.Href == "" {
		return nil, 0, false
	}
	u, err := url.Parse(strings.TrimSpace(elem.Href))
	if err != nil {
		return nil, 0, false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return nil, 0, false
	}
	if origin != nil && u.Host == "" {
		u = origin.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if root == nil {
		root = origin
	}

	if origin != nil && root != nil && !isOneJumpFromOrigin(root, origin, u) {
		return nil, 0, false
	}

	// An explicit feed media type on the element is decisive: accept at
	// priority 2 immediately, query intact, skipping the feedlike,
	// filetype, and query-key checks below.
	typ := strings.ToLower(elem.Type)
	if typ != "" && feedTypeMimeTypes[typ] && !strings.Contains(typ, "json+oembed") {
		return u, PriorityFeedType, true
	}

	queryStripped := stripQuery(u)
	isFeedlikeHref := feedlikeRegex.MatchString(queryStripped)
	isFeedlikeQuery := queryHasFeedlikeKey(u)
	isPodcastURL := podcastRegex.MatchString(u.Path) || podcastRegex.MatchString(u.RawQuery)
	isFeedlikeURL := isFeedlikeHref || isFeedlikeQuery

	if !f.FullCrawl && !isFeedlikeURL && !isPodcastURL {
		return nil, 0, false
	}

	if invalidFiletypes[strings.ToLower(strings.TrimPrefix(pathExt(u.Path), "."))] {
		return nil, 0, false
	}

	lowered := strings.ToLower(u.String())
	for _, banned := range bannedSubstrings {
		if strings.Contains(lowered, banned) {
			return nil, 0, false
		}
	}
	for key := range u.Query() {
		if bannedQueryKeys[strings.ToLower(key)] {
			return nil, 0, false
		}
	}

	priority = classifyPriority(isFeedlikeURL, isPodcastURL, u)

	if !isFeedlikeURL {
		stripped := *u
		stripped.RawQuery = ""
		u = &stripped
	}
	return u, priority, true
}

func classifyPriority(isFeedlikeURL, isPodcastURL bool, u *url.URL) int {
	switch {
	case isFeedlikeURL:
		return PriorityFeedlikeURL
	case authorRegex.MatchString(u.Path):
		return PriorityAuthorPage
	case isPodcastURL:
		return PriorityPodcast
	case isLowPriority(u):
		return PriorityLow
	default:
		return PriorityDefault
	}
}

func isLowPriority(u *url.URL) bool {
	lowered := strings.ToLower(u.String())
	for _, pattern := range lowPriorityPatterns {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return dateRegex.MatchString(u.Path)
}

func queryHasFeedlikeKey(u *url.URL) bool {
	for key := range u.Query() {
		if feedlikeRegex.MatchString(key) {
			return true
		}
	}
	return false
}

func stripQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}

func pathExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// isOneJumpFromOrigin allows a cross-domain link on the first hop away from
// the crawl's root domain, but rejects a further jump from an already
// off-domain page to yet another domain. Sub-domains of the root are always
// on-domain and never count as a jump. root is the crawl's original seed
// URL; current is the page the candidate link was found on.
//
//	ok: "test.com" -> "feedhost.com" (first jump)
//	ok: "test.com" -> "feeds.test.com" (sub-domain, not a jump)
//	not ok: "test.com" -> "feedhost.com" -> "thirdhost.com" (second jump)
func isOneJumpFromOrigin(root, current, candidate *url.URL) bool {
	if candidate.Host == "" {
		return true
	}
	rootHost := root.Hostname()
	if sameDomain(rootHost, candidate.Hostname()) {
		return true
	}
	// current is already off the root domain, and candidate is a distinct
	// domain too: that's a second jump.
	if !sameDomain(rootHost, current.Hostname()) {
		return false
	}
	return true
}

// sameDomain reports whether a and b share a registrable domain (eTLD+1),
// so a sub-domain of root is always considered on-domain. Hosts the public
// suffix list can't resolve (bare IPs, "localhost") fall back to an exact,
// www-insensitive comparison.
func sameDomain(a, b string) bool {
	ra, erra := publicsuffix.EffectiveTLDPlusOne(a)
	rb, errb := publicsuffix.EffectiveTLDPlusOne(b)
	if erra != nil || errb != nil {
		return removeWWW(a) == removeWWW(b)
	}
	return strings.EqualFold(ra, rb)
}

func removeWWW(host string) string {
	return strings.ToLower(strings.TrimPrefix(host, "www."))
}
