package infra

import (
	"sync"
	"time"
)

// TokenCache holds a bearer token and its expiry. Callers pass the current
// time explicitly so expiry is testable without sleeping.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	// skew renews the token slightly before it actually expires
	skew time.Duration
}

func NewTokenCache(skew time.Duration) *TokenCache {
	return &TokenCache{skew: skew}
}

// Get returns the cached token if it is still valid at now.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Add(c.skew).Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token valid for ttl from now.
func (c *TokenCache) Set(token string, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = now.Add(ttl)
}

// Invalidate drops the token, e.g. after a 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
