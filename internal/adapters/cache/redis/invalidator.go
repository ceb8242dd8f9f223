package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"3tcapital/saftprocessor/internal/core/saft"
)

const scanCount = 500

// Invalidator drops analytics entries memoized under keys ending in /<company_id>.
type Invalidator struct {
	client redis.UniversalClient
	log    *slog.Logger
}

var _ saft.CacheInvalidator = (*Invalidator)(nil)

// NewInvalidator creates an invalidator over an existing client.
func NewInvalidator(client redis.UniversalClient, log *slog.Logger) *Invalidator {
	return &Invalidator{client: client, log: log.With("component", "cache_invalidator")}
}

// InvalidateCompany deletes every key matching */<companyID>, walking the keyspace with SCAN.
func (i *Invalidator) InvalidateCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil
	}
	pattern := KeyPattern(companyID)

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := i.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := i.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("delete cache keys: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	i.log.Info("Cache invalidated", "company_id", companyID, "keys_deleted", deleted)
	return nil
}

// KeyPattern is the glob matching every cache entry of a taxpayer.
func KeyPattern(companyID string) string {
	return "*/" + companyID
}
