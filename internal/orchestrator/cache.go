package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
)

// CacheConfig bounds the response cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `koanf:"size" validate:"gte=0"`
	TTL  time.Duration `koanf:"ttl" validate:"gte=0"`
}

// DefaultCacheConfig keeps 100 answers for five minutes.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Size: 100, TTL: 5 * time.Minute}
}

// responseCache is a bounded, expiring cache of answered outcomes.
// Entries are copied on the way in and out.
type responseCache struct {
	lru *expirable.LRU[string, Outcome]
}

func newResponseCache(cfg CacheConfig) *responseCache {
	if cfg.Size <= 0 {
		return nil
	}
	return &responseCache{lru: expirable.NewLRU[string, Outcome](cfg.Size, nil, cfg.TTL)}
}

func cacheKey(query string, style knowledge.Style, topIDs []string) string {
	h := sha256.New()
	h.Write([]byte(escalation.Normalize(query)))
	h.Write([]byte{'|'})
	h.Write([]byte(style))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(topIDs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) get(key string) (*Outcome, bool) {
	if c == nil {
		return nil, false
	}
	o, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	cp := o.clone()
	return &cp, true
}

func (c *responseCache) put(key string, o *Outcome) {
	if c == nil || o == nil {
		return
	}
	c.lru.Add(key, o.clone())
}

func (c *responseCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *responseCache) purge() {
	if c != nil {
		c.lru.Purge()
	}
}
