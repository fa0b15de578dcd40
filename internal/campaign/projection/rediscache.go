package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "fundforge/internal/platform/redis"
	id "fundforge/pkg/domain"
)

const cardKeyPrefix = "fundforge:card:"

// RedisCache keeps serialized cards in redis with a short TTL. Every error is
// swallowed into a miss; the projector falls back to the store.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cardKey(campaignID id.CampaignID) string {
	return cardKeyPrefix + campaignID.String()
}

func (c *RedisCache) Get(ctx context.Context, campaignID id.CampaignID) (*CampaignCard, bool) {
	raw, err := c.client.Get(ctx, cardKey(campaignID)).Bytes()
	if err != nil {
		if err != goredis.Nil && c.logger != nil {
			c.logger.WarnContext(ctx, "projection cache read failed", "error", err)
		}
		return nil, false
	}
	var card CampaignCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, false
	}
	return &card, true
}

func (c *RedisCache) Set(ctx context.Context, card *CampaignCard) {
	raw, err := json.Marshal(card)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cardKey(card.ID), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "projection cache write failed", "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, campaignID id.CampaignID) {
	if err := c.client.Del(ctx, cardKey(campaignID)).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "projection cache delete failed", "error", err)
	}
}
