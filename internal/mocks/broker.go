package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/cache"
)

type PublishedEvent struct {
	Key   string
	Event any
}

// Publisher records every event it is asked to publish.
type Publisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

var _ broker.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, PublishedEvent{Key: key, Event: event})
	return nil
}

func (p *Publisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// Cache is a map backed cache.Cache that ignores TTLs.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

var _ cache.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{entries: map[string][]byte{}}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.deletes++
	return nil
}

func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *Cache) Deletes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes
}
