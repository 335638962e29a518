package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
)

const cacheKeyPrefix = "overpass:segment:"

// CachedDirectory serves repeated segment queries from a cache.
// Cache failures are logged and never fail the segment.
type CachedDirectory struct {
	next  providers.DirectoryClient
	cache providers.CacheProvider
	ttl   time.Duration
}

var _ providers.DirectoryClient = (*CachedDirectory)(nil)

// NewCachedDirectory wraps next with a response cache
func NewCachedDirectory(next providers.DirectoryClient, cache providers.CacheProvider, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, ttl: ttl}
}

// CacheKey returns the cache key for a segment's query body
func CacheKey(segment entities.ImportSegment) string {
	sum := sha256.Sum256([]byte(BuildQuery(segment)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Execute implements providers.DirectoryClient
func (c *CachedDirectory) Execute(ctx context.Context, segment entities.ImportSegment) ([]entities.DirectoryElement, error) {
	logger := observability.LoggerFromContext(ctx)
	key := CacheKey(segment)

	if data, err := c.cache.Get(ctx, key); err == nil {
		var elements []entities.DirectoryElement
		if err := json.Unmarshal(data, &elements); err == nil {
			logger.Debug().Str("segment", segment.Key()).Int("elements", len(elements)).Msg("Directory cache hit")
			return elements, nil
		}
		logger.Warn().Str("segment", segment.Key()).Msg("Discarding unreadable cached directory response")
	}

	elements, err := c.next.Execute(ctx, segment)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(elements)
	if err != nil {
		logger.Warn().Err(err).Str("segment", segment.Key()).Msg("Failed to encode directory response for cache")
		return elements, nil
	}
	if err := c.cache.Set(ctx, key, data, int(c.ttl.Seconds())); err != nil {
		logger.Warn().Err(err).Str("segment", segment.Key()).Msg("Failed to cache directory response")
	}
	return elements, nil
}
