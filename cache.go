package main

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// analysisCache keeps recent analyses keyed by the text that produced them, so
// resubmitting the same message does not spend another model call.
type analysisCache struct {
	cache *gocache.Cache
}

// newAnalysisCache returns nil when ttl is not positive; a nil cache never hits.
func newAnalysisCache(ttl time.Duration) *analysisCache {
	if ttl <= 0 {
		return nil
	}
	return &analysisCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (c *analysisCache) Get(text string) (AnalysisResponse, bool) {
	if c == nil {
		return AnalysisResponse{}, false
	}
	if val, found := c.cache.Get(cacheKey(text)); found {
		if resp, ok := val.(AnalysisResponse); ok {
			return resp, true
		}
	}
	return AnalysisResponse{}, false
}

func (c *analysisCache) Set(text string, resp AnalysisResponse) {
	if c == nil {
		return
	}
	c.cache.SetDefault(cacheKey(text), resp)
}

func (c *analysisCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.ItemCount()
}
