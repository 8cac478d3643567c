package data

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type cacheEntry[V any] struct {
	value     V
	key       string
	expiresAt time.Time
}

// ResultCache keeps solved results for a fixed TTL under a random id, with
// an optional request key so identical requests can reuse a result.
//
// Each server owns its cache. Close stops the background sweep.
type ResultCache[V any] struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry[V]
	keys  map[string]string // request key -> id
	ttl   time.Duration
	now   func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewResultCache starts a cache whose expired entries are swept every
// interval. interval <= 0 disables the sweep; expired entries are still
// never returned.
func NewResultCache[V any](ttl, interval time.Duration) *ResultCache[V] {
	c := &ResultCache[V]{
		store: make(map[string]*cacheEntry[V]),
		keys:  make(map[string]string),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if interval > 0 {
		go c.cleanup(interval)
	}
	return c
}

// Add stores v and returns its new id. key may be empty.
func (c *ResultCache[V]) Add(key string, v V) string {
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[id] = &cacheEntry[V]{value: v, key: key, expiresAt: c.now().Add(c.ttl)}
	if key != "" {
		c.keys[key] = id
	}
	return id
}

// Get returns the value stored under id if it has not expired.
func (c *ResultCache[V]) Get(id string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[id]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Find returns the live entry last added under key.
func (c *ResultCache[V]) Find(key string) (string, V, bool) {
	c.mu.RLock()
	id, ok := c.keys[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return "", zero, false
	}
	v, ok := c.Get(id)
	return id, v, ok
}

func (c *ResultCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries.
func (c *ResultCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*cacheEntry[V])
	c.keys = make(map[string]string)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *ResultCache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *ResultCache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ResultCache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, e := range c.store {
		if now.After(e.expiresAt) {
			delete(c.store, id)
			if e.key != "" && c.keys[e.key] == id {
				delete(c.keys, e.key)
			}
		}
	}
}

// RequestKey hashes the JSON encoding of a request into a cache key.
func RequestKey(req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:]), nil
}
