package crawler

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}

func TestDuplicateFilterSeenTwice(t *testing.T) {
	d := NewDuplicateFilter()
	u := mustParse(t, "https://example.com/feed")
	if d.IsURLSeen(u, "GET") {
		t.Fatal("expected first IsURLSeen to return false")
	}
	if !d.IsURLSeen(u, "GET") {
		t.Fatal("expected second IsURLSeen to return true")
	}
}

func TestDuplicateFilterCanonicalizesDefaultPort(t *testing.T) {
	d := NewDuplicateFilter()
	a := mustParse(t, "https://Example.COM:443/path")
	b := mustParse(t, "https://example.com/path")
	d.IsURLSeen(a, "GET")
	if !d.IsURLSeen(b, "GET") {
		t.Fatal("expected default-port/case variant to collapse to same fingerprint")
	}
}

func TestFeedAwareDuplicateFilterStripsPlainQuery(t *testing.T) {
	d := NewFeedAwareDuplicateFilter()
	withQuery := mustParse(t, "https://example.com/feed?utm_source=x")
	plain := mustParse(t, "https://example.com/feed")
	d.IsURLSeen(plain, "")
	if !d.IsURLSeen(withQuery, "") {
		t.Fatal("expected query-string variant with no feed hint key to collapse with plain URL")
	}
}

func TestFeedAwareDuplicateFilterPreservesFeedHintQuery(t *testing.T) {
	d := NewFeedAwareDuplicateFilter()
	rss := mustParse(t, "https://example.com/?feed=rss")
	atom := mustParse(t, "https://example.com/?feed=atom")
	if d.IsURLSeen(rss, "") {
		t.Fatal("expected first IsURLSeen to return false")
	}
	if d.IsURLSeen(atom, "") {
		t.Fatal("expected distinct feed query values to be distinct fingerprints")
	}
}
