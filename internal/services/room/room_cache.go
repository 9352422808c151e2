package room

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisRoomKeyPrefix = "room:"

// roomCache keeps room metadata in a Redis hash so the join gate does not hit
// Postgres for every page view. Any Redis failure falls back to the database.
type roomCache struct {
	rdc *redis.Client
	ttl time.Duration
}

func newRoomCache(rdc *redis.Client, ttl time.Duration) *roomCache {
	return &roomCache{rdc: rdc, ttl: ttl}
}

func (c *roomCache) get(ctx context.Context, id string) (*RoomDTO, bool) {
	if c.rdc == nil {
		return nil, false
	}
	snap, err := c.rdc.HGetAll(ctx, redisRoomKeyPrefix+id).Result()
	if err != nil || len(snap) == 0 {
		return nil, false
	}
	capacity, err := strconv.Atoi(snap["max"])
	if err != nil {
		return nil, false
	}
	return &RoomDTO{
		ID:           snap["id"],
		Title:        snap["t"],
		Max:          capacity,
		Owner:        snap["own"],
		Locked:       snap["pw"] != "",
		CreatedAt:    ts(snap["ca"]),
		passwordHash: snap["pw"],
	}, true
}

func (c *roomCache) put(ctx context.Context, r *RoomDTO) {
	if c.rdc == nil {
		return
	}
	key := redisRoomKeyPrefix + r.ID
	err := c.rdc.HSet(ctx, key,
		"id", r.ID,
		"t", r.Title,
		"max", strconv.Itoa(r.Max),
		"own", r.Owner,
		"pw", r.passwordHash,
		"ca", strconv.FormatInt(r.CreatedAt.Unix(), 10),
	).Err()
	if err == nil {
		err = c.rdc.Expire(ctx, key, c.ttl).Err()
	}
	if err != nil {
		zap.L().Debug("room.cache_put", zap.String("room", r.ID), zap.Error(err))
	}
}

func (c *roomCache) evict(ctx context.Context, id string) {
	if c.rdc == nil {
		return
	}
	if err := c.rdc.Del(ctx, redisRoomKeyPrefix+id).Err(); err != nil {
		zap.L().Warn("room.cache_evict", zap.String("room", id), zap.Error(err))
	}
}

// helpers
func ts(s string) time.Time {
	i, _ := strconv.ParseInt(s, 10, 64)
	return time.Unix(i, 0).UTC()
}
