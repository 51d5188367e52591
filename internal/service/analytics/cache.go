package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brandmonkz/engagement-tracker/internal/domain"
	"github.com/brandmonkz/engagement-tracker/internal/pkg/logger"
)

// CachedService wraps Service with a short-TTL Redis cache for the campaign
// rollup, so dashboard polling doesn't re-run the rate queries on every
// refresh. Cache failures degrade to direct reads; a nil client disables
// caching outright.
type CachedService struct {
	svc *Service
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedService wraps svc with a Redis cache using the given TTL.
func NewCachedService(svc *Service, rdb *redis.Client, ttl time.Duration) *CachedService {
	return &CachedService{svc: svc, rdb: rdb, ttl: ttl}
}

func cacheKey(campaignID string) string {
	return "analytics:campaign:" + campaignID
}

// CampaignAnalytics returns the cached rollup when fresh, otherwise computes
// and stores it. Not-found is never cached: a campaign created between polls
// should appear immediately.
func (c *CachedService) CampaignAnalytics(ctx context.Context, campaignID string) (*CampaignAnalytics, error) {
	if c.rdb == nil {
		return c.svc.CampaignAnalytics(ctx, campaignID)
	}

	key := cacheKey(campaignID)
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var out CampaignAnalytics
		if err := json.Unmarshal(data, &out); err == nil {
			return &out, nil
		}
		// Unreadable entry: drop it and recompute.
		c.rdb.Del(ctx, key)
	}

	out, err := c.svc.CampaignAnalytics(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Warn("analytics cache write failed", "campaign_id", campaignID, "error", err)
		}
	}
	return out, nil
}

// RecordEvents is a pass-through: the events feed is already bounded per
// record and is expected to change between polls.
func (c *CachedService) RecordEvents(ctx context.Context, recordID string) ([]domain.TrackingEvent, error) {
	return c.svc.RecordEvents(ctx, recordID)
}
