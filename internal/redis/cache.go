package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sehatclinic/booking-api/internal/schedule"
)

// ScheduleCache keeps doctors' weekly templates in Redis for a short
// TTL so slot requests do not hit Postgres for every page load. The
// cache is best effort: any Redis failure is logged and treated as a
// miss, and saves invalidate the key.
type ScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewScheduleCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *ScheduleCache {
	return &ScheduleCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "schedule_cache").Logger(),
	}
}

func scheduleKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("schedule:doctor:%s", doctorID.String())
}

func (c *ScheduleCache) Get(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, bool) {
	raw, err := c.client.Get(ctx, scheduleKey(doctorID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("schedule cache read failed")
		}
		return nil, false
	}

	var w schedule.Weekly
	if err := json.Unmarshal(raw, &w); err != nil {
		c.log.Warn().Err(err).Msg("schedule cache entry corrupt, dropping")
		_ = c.client.Del(ctx, scheduleKey(doctorID)).Err()
		return nil, false
	}
	return w, true
}

func (c *ScheduleCache) Set(ctx context.Context, doctorID uuid.UUID, w schedule.Weekly) {
	raw, err := json.Marshal(w)
	if err != nil {
		c.log.Warn().Err(err).Msg("schedule cache encode failed")
		return
	}
	if err := c.client.Set(ctx, scheduleKey(doctorID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("schedule cache write failed")
	}
}

func (c *ScheduleCache) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := c.client.Del(ctx, scheduleKey(doctorID)).Err(); err != nil {
		c.log.Warn().Err(err).Msg("schedule cache invalidate failed")
	}
}
