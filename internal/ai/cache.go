package ai

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultEmbedCacheSize = 1024
	defaultEmbedCacheTTL  = time.Hour
)

type cachedEmbedder struct {
	inner IEmbedder
	cache *expirable.LRU[string, []float32]
}

// WrapLRU caches embeddings per text and task type. Useful for repeated
// query embedding and for index resync runs that revisit the same chunks.
func WrapLRU(inner IEmbedder, size int, ttl time.Duration) IEmbedder {
	if size <= 0 {
		size = defaultEmbedCacheSize
	}
	if ttl <= 0 {
		ttl = defaultEmbedCacheTTL
	}
	return &cachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := taskType + "\x00" + text
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, vec)
	return vec, nil
}

func (e *cachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
