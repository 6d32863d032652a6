package service

import (
	"context"
	"encoding/json"
	"errors"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICacheClient is the subset of *redis.Client the services use.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ProfileCache is a cache-aside store for user profiles. A nil *ProfileCache
// or one without a client is a no-op, and cache errors never fail a request.
type ProfileCache struct {
	client ICacheClient
	ttl    time.Duration
}

func NewProfileCache(client ICacheClient, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

func (c *ProfileCache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached profile, or nil on a miss.
func (c *ProfileCache) Get(ctx context.Context, userID string) *model.UserProfile {
	if !c.enabled() {
		return nil
	}

	raw, err := c.client.Get(ctx, profileKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("Profile cache read failed")
		}
		return nil
	}

	var profile model.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("Discarding undecodable cached profile")
		return nil
	}
	return &profile
}

func (c *ProfileCache) Set(ctx context.Context, profile *model.UserProfile) {
	if !c.enabled() || profile == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to encode profile for cache")
		return
	}
	if err := c.client.Set(ctx, profileKey(profile.ID), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", profile.ID).Warn("Profile cache write failed")
	}
}

// Invalidate drops the cached profile after the user row changed.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("Profile cache invalidation failed")
	}
}
