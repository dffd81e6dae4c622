package feedspider

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/feedcrawler/core/crawler"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestParseResponseSniffsJSONFeed(t *testing.T) {
	s := New(crawler.New("test-agent"))
	req := crawler.NewRequest(mustURL(t, "https://example.com/feed.json"))
	resp := &crawler.Response{
		StatusCode: 200,
		URL:        req.URL,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Data:       []byte(`{"version":"https://jsonfeed.org/version/1","feed_url":"https://example.com/feed.json","items":[]}`),
	}

	out, err := s.ParseResponse(req, resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}
	info, ok := out[0].(FeedInfo)
	if !ok || !info.JSONFeed {
		t.Errorf("out[0] = %+v, want a JSONFeed FeedInfo", out[0])
	}
}

func TestParseResponseSniffsXMLFeed(t *testing.T) {
	s := New(crawler.New("test-agent"))
	req := crawler.NewRequest(mustURL(t, "https://example.com/feed"))
	resp := &crawler.Response{
		StatusCode: 200,
		URL:        req.URL,
		Headers:    http.Header{"Content-Type": []string{"application/rss+xml"}},
		Data:       []byte(`<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`),
	}

	out, err := s.ParseResponse(req, resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}
	if _, ok := out[0].(FeedInfo); !ok {
		t.Errorf("out[0] = %+v, want a FeedInfo", out[0])
	}
}

func TestParseResponseFollowsFeedlikeLinks(t *testing.T) {
	s := New(crawler.New("test-agent"))
	req := crawler.NewRequest(mustURL(t, "https://example.com/"))
	resp := &crawler.Response{
		StatusCode: 200,
		URL:        req.URL,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Data: []byte(`<html><head>
			<link rel="alternate" type="application/rss+xml" href="/rss.xml" />
		 </head><body>
			<a href="/about">About</a>
		 </body></html>`),
	}

	out, err := s.ParseResponse(req, resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1 (only the rss.xml feed link should pass the Link Filter)", len(out))
	}
	followed, ok := out[0].(*crawler.Request)
	if !ok {
		t.Fatalf("out[0] is %T, want *crawler.Request", out[0])
	}
	if followed.URL.Path != "/rss.xml" {
		t.Errorf("followed URL = %s, want /rss.xml", followed.URL.Path)
	}
}

func TestParseResponseSkipsNonOKResponse(t *testing.T) {
	s := New(crawler.New("test-agent"))
	req := crawler.NewRequest(mustURL(t, "https://example.com/"))
	resp := &crawler.Response{StatusCode: 500, URL: req.URL, Headers: http.Header{}}

	out, err := s.ParseResponse(req, resp)
	if err != nil || out != nil {
		t.Errorf("ParseResponse on a failed response = (%v, %v), want (nil, nil)", out, err)
	}
}
