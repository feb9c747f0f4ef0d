package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		var cache *analysisCache = newAnalysisCache(0)
		assert.Nil(t, cache)

		cache.Set("text", AnalysisResponse{FinalScore: 10})
		_, ok := cache.Get("text")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("keys on trimmed text", func(t *testing.T) {
		cache := newAnalysisCache(time.Minute)
		cache.Set("  same text ", AnalysisResponse{FinalScore: 33})

		got, ok := cache.Get("same text")
		assert.True(t, ok)
		assert.Equal(t, 33, got.FinalScore)

		_, ok = cache.Get("different text")
		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		cache := newAnalysisCache(20 * time.Millisecond)
		cache.Set("text", AnalysisResponse{FinalScore: 1})
		time.Sleep(40 * time.Millisecond)

		_, ok := cache.Get("text")
		assert.False(t, ok)
	})
}
