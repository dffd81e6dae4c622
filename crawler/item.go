package crawler

import "sync"

// Item is opaque to the core: whatever a Callback yields that is not a
// *Request, a []any to expand, nil, or an error is treated as an Item and
// handed to ItemSink.
type Item any

// ItemSink receives every Item produced during a crawl. The default sink
// (used when Config.ItemSink is nil) simply appends to an in-memory set
// retrievable after the crawl completes via Crawler.Items.
type ItemSink interface {
	ProcessItem(item Item) error
}

// FeedParser consumes a fetched document once a spider has confirmed it is
// a feed, turning the raw bytes into a richer Item than the bare discovery
// record. Implementations live outside the core; a nil FeedParser is valid
// and leaves discovery records as-is.
type FeedParser interface {
	ParseFeed(resp *Response) (Item, error)
}

// memoryItemSink is the default ItemSink: an in-memory slice guarded by a
// mutex, since distinct worker goroutines can each land on the CallbackResult
// fanout's default case concurrently.
type memoryItemSink struct {
	mu    sync.Mutex
	items []Item
}

func newMemoryItemSink() *memoryItemSink {
	return &memoryItemSink{}
}

func (s *memoryItemSink) ProcessItem(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}
