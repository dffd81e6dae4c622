package htmlcontent

import "testing"

func TestParseExtractsAnchorsAndFeedLinks(t *testing.T) {
	parser := NewParser()
	body := []byte(`<head>
		<title>Example Blog</title>
		<link rel="alternate" type="application/rss+xml" href="/feed.xml" />
		<link rel="canonical" href="/canonical" />
	 </head>
	 <body>
		<a href="/posts/one">One</a>
		<a href="/posts/two">Two</a>
	</body>`)

	res, err := parser.Parse(body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Title != "Example Blog" {
		t.Errorf("Title = %q, want %q", res.Title, "Example Blog")
	}
	if len(res.FeedLinks) != 1 || res.FeedLinks[0].Href != "/feed.xml" {
		t.Errorf("FeedLinks = %+v, want one element pointing at /feed.xml", res.FeedLinks)
	}
	wantLinks := map[string]bool{"/posts/one": true, "/posts/two": true, "/canonical": true}
	if len(res.Links) != len(wantLinks) {
		t.Errorf("Links = %+v, want %d entries", res.Links, len(wantLinks))
	}
	for _, l := range res.Links {
		if !wantLinks[l.Href] {
			t.Errorf("unexpected link %q", l.Href)
		}
	}
}

func TestParseToleratesEmptyBody(t *testing.T) {
	parser := NewParser()
	if _, err := parser.Parse(nil); err != nil {
		t.Errorf("Parse(nil) = %v, want nil error (goquery tolerates an empty document)", err)
	}
}
