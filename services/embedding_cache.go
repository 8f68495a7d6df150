package services

import (
	"context"
	"fmt"
	"time"

	"closetapi/languageutil"
	"closetapi/recommendation"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
)

const probeEmbeddingTTL = 6 * time.Hour

// CachedEmbedder memoizes probe embeddings. Probe texts repeat a lot: the
// same occasion, season and style produce the same text for every user.
type CachedEmbedder struct {
	cache *cache.LoadableCache[[]float32]
}

func NewCachedEmbedder(inner recommendation.Embedder) (*CachedEmbedder, error) {
	ristrettoStore, err := newRistrettoStore(1 << 14)
	if err != nil {
		return nil, err
	}
	loadFunction := func(ctx context.Context, key any) ([]float32, []store.Option, error) {
		text, ok := key.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid key type provided to embedding cache: expected string, got %T", key)
		}
		values, err := inner.Embed(ctx, text)
		return values, []store.Option{store.WithExpiration(probeEmbeddingTTL), store.WithCost(1)}, err
	}
	return &CachedEmbedder{
		cache: cache.NewLoadable[[]float32](loadFunction, cache.New[[]float32](ristrettoStore)),
	}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.cache.Get(ctx, languageutil.Normalize(text))
}
