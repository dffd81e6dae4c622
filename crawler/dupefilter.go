package crawler

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// feedHintKeys are query keys whose presence means the query string is
// significant to feed identity and must survive canonicalization.
var feedHintKeys = map[string]bool{
	"feed":       true,
	"feedformat": true,
	"format":     true,
	"rss":        true,
	"atom":       true,
	"jsonfeed":   true,
	"podcast":    true,
}

// DuplicateFilter tracks which URL+method fingerprints have already been
// seen. It never errors; contention is the only concern, handled by a
// short critical section around the map.
type DuplicateFilter struct {
	mu           sync.Mutex
	fingerprints map[string]string

	// feedAware, when true, preserves the query string on canonicalization
	// whenever it carries a feed hint key; otherwise the query is always
	// stripped, so tracking-parameter variants of a page collapse.
	feedAware bool
}

// NewDuplicateFilter creates a filter using the plain canonicalization
// rules (no query stripping beyond ordering).
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{fingerprints: make(map[string]string)}
}

// NewFeedAwareDuplicateFilter creates a filter that strips the query string
// before hashing unless it contains one of the feed hint keys.
func NewFeedAwareDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{fingerprints: make(map[string]string), feedAware: true}
}

// IsURLSeen atomically computes the fingerprint, checks the store, inserts
// it if absent, and returns whether it was already present.
func (d *DuplicateFilter) IsURLSeen(u *url.URL, method string) bool {
	canon := d.canonicalize(u)
	fp := urlFingerprintHash(canon, method)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fingerprints[fp]; ok {
		return true
	}
	d.fingerprints[fp] = canon
	return false
}

// canonicalize normalizes scheme case, elides the default port, lowercases
// the host, strips a trailing dot from the host, and orders query
// parameters. The feed-aware variant additionally strips the query unless
// it carries a recognized feed hint key.
func (d *DuplicateFilter) canonicalize(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	c.Host = strings.TrimSuffix(c.Host, ".")
	c.Host = elideDefaultPort(c.Scheme, c.Host)

	if d.feedAware && !hasFeedHintKey(c.Query()) {
		c.RawQuery = ""
	} else if c.RawQuery != "" {
		c.RawQuery = sortedQuery(c.Query())
	}
	return c.String()
}

func hasFeedHintKey(q url.Values) bool {
	for key := range q {
		if feedHintKeys[strings.ToLower(key)] {
			return true
		}
	}
	return false
}

func sortedQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		values := q[k]
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func elideDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

// urlFingerprintHash returns the SHA-1 hex digest of url, optionally mixed
// with method.
func urlFingerprintHash(canonURL, method string) string {
	h := sha1.New()
	h.Write([]byte(canonURL))
	if method != "" {
		h.Write([]byte(method))
	}
	return hex.EncodeToString(h.Sum(nil))
}
