// Package messaging streams discovered feed items out to decoupled
// consumers: an ItemSink marshals every crawler.Item and hands it to
// whatever broker transport the configured Producer wraps, could be a
// RabbitMQ driver as well as kafka or redis.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/feedcrawler/core/crawler"
)

// Producer enqueues one marshaled item payload onto the backing transport.
type Producer interface {
	Produce([]byte) error
}

// ItemSink adapts a Producer into a crawler.ItemSink: every discovered Item
// is JSON-marshaled and handed to Produce, so a crawl can fan its results
// out onto whatever queue the Producer is backed by instead of keeping
// them in memory.
type ItemSink struct {
	producer Producer
}

// NewItemSink wraps producer as a crawler.ItemSink.
func NewItemSink(producer Producer) *ItemSink {
	return &ItemSink{producer: producer}
}

// ProcessItem implements crawler.ItemSink.
func (s *ItemSink) ProcessItem(item crawler.Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("messaging: marshal item: %w", err)
	}
	return s.producer.Produce(payload)
}

var _ crawler.ItemSink = (*ItemSink)(nil)
