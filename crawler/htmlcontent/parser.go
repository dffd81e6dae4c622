// Package htmlcontent implements the HTML-walking half of feed discovery:
// given a fetched document, it extracts every anchor and <link> element
// worth handing to the link filter, plus the page's own feed metadata.
package htmlcontent

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedcrawler/core/crawler"
)

// Parser walks an HTML document and extracts LinkElements for
// classification. It has no notion of origin/base URL resolution or feed
// likelihood (that's the link filter's job); it only reads the DOM.
type Parser struct{}

// NewParser returns an HTML content parser backed by goquery.
func NewParser() *Parser { return &Parser{} }

// ParseResult is everything the spider's callback needs out of one page:
// the raw links to classify, and the feed-related metadata discoverable
// directly from the document head.
type ParseResult struct {
	Links []crawler.LinkElement
	Title string
	// FeedLinks holds <link rel="alternate"|"feed"> elements whose type
	// names RSS, Atom, RDF or JSON, verbatim and apart from Links, since
	// those are explicit feed pointers. The spider still passes them
	// through the Link Filter, which resolves them and applies its
	// cross-domain check.
	FeedLinks []crawler.LinkElement
}

// Parse reads body as HTML and extracts every <a> and <link> element.
func (p *Parser) Parse(body []byte) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		result.Links = append(result.Links, crawler.LinkElement{Href: href})
	})

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		rel, _ := s.Attr("rel")
		typ, _ := s.Attr("type")
		elem := crawler.LinkElement{Href: href, Rel: rel, Type: typ}
		if isFeedRel(rel, typ) {
			result.FeedLinks = append(result.FeedLinks, elem)
			return
		}
		result.Links = append(result.Links, elem)
	})

	return result, nil
}

func isFeedRel(rel, typ string) bool {
	rel = strings.ToLower(rel)
	typ = strings.ToLower(typ)
	if rel != "alternate" && rel != "feed" {
		return false
	}
	return strings.Contains(typ, "rss") || strings.Contains(typ, "atom") ||
		strings.Contains(typ, "json") || strings.Contains(typ, "rdf")
}
