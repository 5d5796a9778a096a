// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package health implements the health monitor (spec §4.5, component
// C5): periodic probing of every registered plugin, caching the last
// record, and bounded auto-recovery.
package health

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
)

// Cache stores the most recent health record per plugin and must be
// safe for concurrent Get/Set. Reset writes recovery_attempts = 0 into
// a cached record's Details. The attempt counter that gates
// auto-recovery is not kept here: the Monitor holds it under its own
// mutex and does not copy it into the records it caches.
type Cache interface {
	Get(ctx context.Context, pluginID string) (plugin.HealthRecord, bool)
	Set(ctx context.Context, record plugin.HealthRecord) error
	Reset(ctx context.Context, pluginID string) error
}

// MemoryCache is a concurrent in-memory Cache, the default transport
// (spec's "concurrent map" in §5).
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]plugin.HealthRecord
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[string]plugin.HealthRecord)}
}

func (c *MemoryCache) Get(_ context.Context, pluginID string) (plugin.HealthRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[pluginID]
	return r, ok
}

func (c *MemoryCache) Set(_ context.Context, record plugin.HealthRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[record.PluginID] = record
	return nil
}

func (c *MemoryCache) Reset(_ context.Context, pluginID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[pluginID]
	if !ok {
		return nil
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.Details["recovery_attempts"] = 0
	c.records[pluginID] = r
	return nil
}

// RedisCache backs the health cache with one Redis string key per
// plugin (prefix + plugin id) holding the JSON-encoded record, for
// deployments that run the health monitor out-of-process from
// the facade (e.g. a CLI querying health without holding the live
// in-memory cache). Grounded on the domain-stack's `go-redis/v9` entry;
// the teacher has no distributed-cache precedent of its own, so this
// package follows go-redis's own idiomatic client usage.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing *redis.Client. Keys are stored under
// prefix+pluginID.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "pluginrt:health:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(pluginID string) string { return c.prefix + pluginID }

func (c *RedisCache) Get(ctx context.Context, pluginID string) (plugin.HealthRecord, bool) {
	data, err := c.client.Get(ctx, c.key(pluginID)).Bytes()
	if err != nil {
		return plugin.HealthRecord{}, false
	}
	var r plugin.HealthRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return plugin.HealthRecord{}, false
	}
	return r, true
}

func (c *RedisCache) Set(ctx context.Context, record plugin.HealthRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return perr.InvalidArgument("RedisCache.Set", "health record not serializable", err)
	}
	if err := c.client.Set(ctx, c.key(record.PluginID), data, 0).Err(); err != nil {
		return perr.TransportFailure("RedisCache.Set", "redis set failed", err)
	}
	return nil
}

func (c *RedisCache) Reset(ctx context.Context, pluginID string) error {
	r, ok := c.Get(ctx, pluginID)
	if !ok {
		return nil
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.Details["recovery_attempts"] = 0
	return c.Set(ctx, r)
}
