// services/url_cache_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"closetapi/logging"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// slightly less than the presign expiration
const cacheCleanupInterval = 12 * time.Minute

type URLCacheServiceProvider interface {
	GetReadURL(ctx context.Context, objectKey string) (string, error)
}

// newRistrettoStore is the in-process store behind every loadable cache here.
func newRistrettoStore(maxCost int64) (*ristretto_store.RistrettoStore, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return ristretto_store.NewRistretto(ristrettoCache), nil
}

// URLCacheService hands out presigned wardrobe image URLs, reusing each one
// until shortly before it expires.
type URLCacheService struct {
	cache      *cache.LoadableCache[string]
	bucketName string
}

func NewURLCacheService(awsService AWSServiceProvider, bucketName string, logger *logging.Logger) (*URLCacheService, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	ristrettoStore, err := newRistrettoStore(1 << 20)
	if err != nil {
		return nil, err
	}

	loadFunction := func(ctx context.Context, key any) (string, []store.Option, error) {
		objectKey, ok := key.(string)
		if !ok {
			return "", nil, fmt.Errorf("invalid key type provided to URL cache: expected string, got %T", key)
		}
		logger.Debug("presigned url cache miss", "object_key", objectKey)
		url, err := awsService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
		return url, []store.Option{store.WithExpiration(cacheCleanupInterval), store.WithCost(1)}, err
	}

	return &URLCacheService{
		cache:      cache.NewLoadable[string](loadFunction, cache.New[string](ristrettoStore)),
		bucketName: bucketName,
	}, nil
}

func (s *URLCacheService) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return s.cache.Get(ctx, objectKey)
}
