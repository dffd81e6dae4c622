// Package feedspider provides a reference parse callback for feed
// discovery, wired on top of the core crawler package: it sniffs a
// fetched document for a JSON Feed or an RSS/Atom/RDF document before
// falling back to walking the page's HTML for more links to follow.
package feedspider

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/feedcrawler/core/crawler"
	"github.com/feedcrawler/core/crawler/htmlcontent"
)

const sniffWindow = 1000

var feedTagRegex = regexp.MustCompile(`(?i)<\s*(rss|rdf|feed)\b`)

// FeedInfo is the minimal Item the spider emits once a URL is confirmed to
// be a feed: just enough for a caller's ItemSink to persist or queue
// further processing.
type FeedInfo struct {
	URL         string
	ContentType string
	Depth       int
	JSONFeed    bool
}

// Spider bundles an HTML content parser and the Link Filter used to
// classify discovered anchors, and exposes ParseResponse as a
// crawler.Callback.
type Spider struct {
	crawler *crawler.Crawler
	parser  *htmlcontent.Parser
	filter  *crawler.LinkFilter

	// FeedParser, when set, turns a confirmed feed document into a richer
	// Item than the bare FeedInfo discovery record. Nil is valid; FeedInfo
	// is emitted as-is.
	FeedParser crawler.FeedParser
}

// New returns a Spider whose ParseResponse method can be passed directly as
// a crawler.Callback. Since ParseResponse closes over c to call c.Follow,
// wire it in with c.SetCallback(spider.ParseResponse) after construction
// rather than crawler.WithCallback (which only runs before c exists).
func New(c *crawler.Crawler) *Spider {
	return &Spider{
		crawler: c,
		parser:  htmlcontent.NewParser(),
		filter:  crawler.NewLinkFilter(),
	}
}

// ParseResponse is the spider's parse callback: on a non-OK response it
// records nothing here (the orchestrator itself tracks seed failures); on
// a JSON Feed it emits a FeedInfo item; on a body whose first 1000 bytes
// look like RSS/RDF/Atom it emits a FeedInfo item; otherwise it walks the
// HTML and follows every link the Link Filter accepts.
func (s *Spider) ParseResponse(req *crawler.Request, resp *crawler.Response) ([]any, error) {
	if !resp.OK() {
		return nil, nil
	}

	if info, ok := sniffJSONFeed(resp); ok {
		info.Depth = len(req.History)
		return []any{s.feedItem(info, resp)}, nil
	}

	if sniffXMLFeed(resp.Data) {
		info := FeedInfo{
			URL:         resp.URL.String(),
			ContentType: resp.Headers.Get("Content-Type"),
			Depth:       len(req.History),
		}
		return []any{s.feedItem(info, resp)}, nil
	}

	result, err := s.parser.Parse(resp.Data)
	if err != nil {
		return nil, err
	}

	// root is the crawl's original seed URL, not this response's own URL,
	// so "one jump from origin" (crawler.LinkFilter.Classify) is measured
	// from the seed's domain at every depth, not the immediate parent page.
	root := resp.URL
	if len(req.History) > 0 {
		root = req.History[0]
	}

	var out []any
	for _, fl := range result.FeedLinks {
		if target, priority, ok := s.filter.Classify(fl, resp.URL, root); ok {
			if followed := s.crawler.Follow(target.String(), s.ParseResponse, resp, withPriority(priority)); followed != nil {
				out = append(out, followed)
			}
		}
	}
	for _, link := range result.Links {
		target, priority, ok := s.filter.Classify(link, resp.URL, root)
		if !ok {
			continue
		}
		followed := s.crawler.Follow(target.String(), s.ParseResponse, resp, withPriority(priority))
		if followed != nil {
			out = append(out, followed)
		}
	}
	return out, nil
}

func withPriority(p int) func(*crawler.Request) {
	return func(r *crawler.Request) { r.SetPriority(p) }
}

// feedItem hands a confirmed feed to the configured FeedParser, falling
// back to the bare discovery record when none is set or parsing fails.
func (s *Spider) feedItem(info FeedInfo, resp *crawler.Response) crawler.Item {
	if s.FeedParser == nil {
		return info
	}
	item, err := s.FeedParser.ParseFeed(resp)
	if err != nil || item == nil {
		return info
	}
	return item
}

// sniffJSONFeed reports whether resp.Data parses as a JSON object carrying
// the "version"+"jsonfeed" marker and a "feed_url" key, per the JSON Feed
// spec's root object shape.
func sniffJSONFeed(resp *crawler.Response) (FeedInfo, bool) {
	var doc map[string]any
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return FeedInfo{}, false
	}
	version, _ := doc["version"].(string)
	feedURL, _ := doc["feed_url"].(string)
	if version == "" || feedURL == "" {
		return FeedInfo{}, false
	}
	if !strings.Contains(version, "jsonfeed") {
		return FeedInfo{}, false
	}
	return FeedInfo{
		URL:         resp.URL.String(),
		ContentType: resp.Headers.Get("Content-Type"),
		JSONFeed:    true,
	}, true
}

// sniffXMLFeed reports whether the first sniffWindow bytes of body look
// like an RSS, RDF, or bare Atom "feed" root element.
func sniffXMLFeed(body []byte) bool {
	if len(body) > sniffWindow {
		body = body[:sniffWindow]
	}
	return feedTagRegex.Match(body)
}
