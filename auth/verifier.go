package auth

import (
	"context"
	"sync"
	"time"
)

// CachedVerifier remembers positive UserVerifier answers for a TTL so that
// authenticated requests do not hit the database every time.
type CachedVerifier struct {
	inner UserVerifier
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[uint]time.Time
}

func NewCachedVerifier(inner UserVerifier, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{inner: inner, ttl: ttl, now: time.Now, cache: make(map[uint]time.Time)}
}

// Verify satisfies UserVerifier.
func (c *CachedVerifier) Verify(ctx context.Context, uid uint) bool {
	c.mu.RLock()
	exp, ok := c.cache[uid]
	c.mu.RUnlock()
	if ok && c.now().Before(exp) {
		return true
	}
	if !c.inner(ctx, uid) {
		c.Invalidate(uid)
		return false
	}
	c.mu.Lock()
	c.cache[uid] = c.now().Add(c.ttl)
	c.mu.Unlock()
	return true
}

// Invalidate forgets uid, e.g. after it signs out.
func (c *CachedVerifier) Invalidate(uid uint) {
	c.mu.Lock()
	delete(c.cache, uid)
	c.mu.Unlock()
}

// Watch drops cached entries whenever a signed_out event is published, until
// ctx is done.
func (c *CachedVerifier) Watch(ctx context.Context, b Broker) {
	events, cancel := b.SubscribeAll(ctx)
	go func() {
		defer cancel()
		for ev := range events {
			if ev.Type == EventSignedOut {
				c.Invalidate(ev.UserID)
			}
		}
	}()
}
