package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// cacheKey returns SHA-256 hex of the normalized query for cache lookup.
func cacheKey(q Query) string {
	normalized := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(q.Address)),
		strings.ToLower(strings.TrimSpace(q.District)),
		strings.ToLower(strings.TrimSpace(q.City)),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// cached returns a copy of a cached result. Cached non-matches are returned
// too so repeated unknown addresses do not hit the upstream.
func (g *geocoder) cached(key string) (*Result, bool) {
	if g.cache == nil {
		return nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.cache[key]
	if !ok {
		return nil, false
	}
	zap.L().Debug("geocode: cache hit", zap.String("key", key[:12]), zap.Bool("matched", r.Matched))
	r.Source = "cache"
	return &r, true
}

func (g *geocoder) store(key string, r *Result) {
	if g.cache == nil || r == nil {
		return
	}
	g.mu.Lock()
	g.cache[key] = *r
	g.mu.Unlock()
}
