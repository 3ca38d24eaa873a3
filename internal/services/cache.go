// cache.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/localnerve/settingsdb/internal/config"
	"github.com/localnerve/settingsdb/internal/settings"
	gocache "github.com/patrickmn/go-cache"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is a settings cache the service owns: it can be pinged and closed.
type Backend interface {
	settings.Cache
	Pinger
	Close() error
}

// OpenCache creates the cache selected by CACHE_TYPE.
func OpenCache(cfg *config.Config) (Backend, error) {
	switch cfg.CacheType {
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case "memory":
		return NewMemoryCache(), nil
	}
	return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
}

// RedisCache is the shared settings cache used when several workers serve
// the same store. Entries do not expire; writers overwrite them.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to a single redis server.
func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Get implements settings.Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %w", settings.ErrCacheUnavailable, key, err)
	}
	return value, true, nil
}

// Set implements settings.Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", settings.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Add implements settings.Cache.
func (c *RedisCache) Add(ctx context.Context, key, value string) (bool, error) {
	added, err := c.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("%w: add %s: %w", settings.ErrCacheUnavailable, key, err)
	}
	return added, nil
}

// Delete implements settings.Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %w", settings.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if pong, err := c.client.Ping(ctx).Result(); err != nil || pong != "PONG" {
		return fmt.Errorf("%w: ping: %v", settings.ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is a process-local settings cache for single-worker deployments.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates an empty cache with no expiry.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get implements settings.Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

// Set implements settings.Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.items.Set(key, value, gocache.NoExpiration)
	return nil
}

// Add implements settings.Cache. gocache only fails Add on an existing key.
func (c *MemoryCache) Add(_ context.Context, key, value string) (bool, error) {
	return c.items.Add(key, value, gocache.NoExpiration) == nil, nil
}

// Delete implements settings.Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.items.Flush()
	return nil
}

var (
	_ Backend = (*RedisCache)(nil)
	_ Backend = (*MemoryCache)(nil)
)
