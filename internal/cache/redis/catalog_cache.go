package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// CatalogCache implements domain.CatalogCache using Redis hashes.
// Each (category, league) catalog is stored as a hash at key
// "catalog:{category}:{league}" mapping entity name to its upstream
// numeric id, with a TTL so stale catalogs expire between cycles.
type CatalogCache struct {
	rdb *redis.Client
}

// NewCatalogCache creates a CatalogCache backed by the given Client.
func NewCatalogCache(c *Client) *CatalogCache {
	return &CatalogCache{rdb: c.Underlying()}
}

func catalogKey(category domain.Category, league string) string {
	return "catalog:" + string(category) + ":" + league
}

// SetCatalog stores the name -> id catalog for a (category, league) pair and
// arms the TTL. An empty catalog is a no-op.
func (cc *CatalogCache) SetCatalog(ctx context.Context, category domain.Category, league string, catalog map[string]int, ttl time.Duration) error {
	if len(catalog) == 0 {
		return nil
	}

	key := catalogKey(category, league)
	fields := make(map[string]interface{}, len(catalog))
	for name, id := range catalog {
		fields[name] = strconv.Itoa(id)
	}

	pipe := cc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set catalog %s: %w", key, err)
	}
	return nil
}

// GetCatalog retrieves the cached catalog for a (category, league) pair.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (cc *CatalogCache) GetCatalog(ctx context.Context, category domain.Category, league string) (map[string]int, error) {
	key := catalogKey(category, league)
	vals, err := cc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get catalog %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	catalog := make(map[string]int, len(vals))
	for name, idStr := range vals {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse catalog id for %q: %w", name, err)
		}
		catalog[name] = id
	}
	return catalog, nil
}

// Compile-time interface check.
var _ domain.CatalogCache = (*CatalogCache)(nil)
