// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redis caches the recent conversation window. The cache is an
// accelerator only; Postgres stays the source of truth and every cache
// failure degrades to a database read.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentdesk/agentdesk/internal/memory"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
)

// MemoryCache implements memory.Cache on a Redis instance
type MemoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis using a URL like redis://localhost:6379/0
func New(ctx context.Context, url string, ttl time.Duration) (*MemoryCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &MemoryCache{client: client, ttl: ttl}, nil
}

// Close closes the underlying client
func (c *MemoryCache) Close() error {
	return c.client.Close()
}

func cacheKey(tenantID string) string {
	return "memory:" + tenantID
}

// Get returns the cached window for a tenant, reporting a miss on any
// error
func (c *MemoryCache) Get(ctx context.Context, tenantID string) ([]memory.Entry, bool) {
	payload, err := c.client.Get(ctx, cacheKey(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "memory cache read failed",
				logger.TenantID(tenantID),
				logger.Error(err))
		}
		return nil, false
	}

	var entries []memory.Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		// Stale or corrupt entry; drop it and miss
		c.Invalidate(ctx, tenantID)
		return nil, false
	}

	return entries, true
}

// Set stores the window for a tenant, best effort
func (c *MemoryCache) Set(ctx context.Context, tenantID string, entries []memory.Entry) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(tenantID), payload, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "memory cache write failed",
			logger.TenantID(tenantID),
			logger.Error(err))
	}
}

// Invalidate drops a tenant's cached window
func (c *MemoryCache) Invalidate(ctx context.Context, tenantID string) {
	if err := c.client.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		slog.WarnContext(ctx, "memory cache invalidate failed",
			logger.TenantID(tenantID),
			logger.Error(err))
	}
}
