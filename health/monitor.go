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

package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TimeWtr/pluginrt/eventbus"
	"github.com/TimeWtr/pluginrt/log"
	"github.com/TimeWtr/pluginrt/metrics"
	"github.com/TimeWtr/pluginrt/plugin"
)

// Enumerator is the slice of the lifecycle registry (C4) the monitor
// needs: list every descriptor, fetch a live plugin instance to probe
// its health-indicator capability.
type Enumerator interface {
	All() []plugin.Descriptor
	Plugin(id string) (plugin.Plugin, error)
}

// Restarter is the slice of the facade (C6) the monitor needs for
// auto-recovery; kept as a narrow interface so this package never
// imports the facade and creates a cycle.
type Restarter interface {
	Restart(ctx context.Context, id string) error
}

// Config controls the monitor's tick interval and auto-recovery
// policy (spec §6 "health.*" configuration keys).
type Config struct {
	Interval            time.Duration
	AutoRecoveryEnabled bool
	MaxRecoveryAttempts int
}

// Monitor implements component C5.
type Monitor struct {
	reg       Enumerator
	bus       eventbus.Bus
	cache     Cache
	restarter Restarter
	cfg       Config
	l         log.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu       sync.Mutex
	attempts map[string]int
	ticking  sync.WaitGroup
}

// New creates a monitor. cache defaults to an in-memory MemoryCache
// when nil.
func New(reg Enumerator, bus eventbus.Bus, cache Cache, restarter Restarter, cfg Config, l log.Logger) *Monitor {
	if l == nil {
		l = log.Nop()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Monitor{
		reg:       reg,
		bus:       bus,
		cache:     cache,
		restarter: restarter,
		cfg:       cfg,
		l:         l,
		attempts:  make(map[string]int),
	}
}

// Start begins periodic probing using a robfig/cron schedule
// expressed as "@every <interval>", matching the cron library's own
// idiomatic interval syntax rather than hand-rolling a ticker loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New()
	spec := fmt.Sprintf("@every %s", m.cfg.Interval)
	id, err := m.cron.AddFunc(spec, func() { m.tick(ctx) })
	if err != nil {
		return err
	}
	m.entryID = id
	m.cron.Start()
	return nil
}

// Stop cancels the next tick and awaits the current tick's completion
// before returning (spec §5 "Monitor and watcher loops honor a stop
// signal... and await current tick completion before returning").
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cron == nil {
		return nil
	}
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	m.ticking.Wait()
	return nil
}

// tick enumerates every plugin, probes it, caches the record,
// publishes a health event, and (if enabled) drives bounded
// auto-recovery. A probe failure is captured as a DOWN record; the
// tick continues for remaining plugins (spec §7 "Health probes
// convert raised errors into DOWN records").
func (m *Monitor) tick(ctx context.Context) {
	m.ticking.Add(1)
	defer m.ticking.Done()

	for _, desc := range m.reg.All() {
		record := m.probe(ctx, desc)
		metrics.ObserveHealth(record)
		if err := m.cache.Set(ctx, record); err != nil {
			m.l.Error("failed to cache health record",
				log.StringField("plugin", desc.Metadata.ID), log.ErrorField(err))
		}
		if m.bus != nil {
			_ = m.bus.Publish(ctx, eventbus.NewHealthEvent(record))
		}
		m.maybeRecover(ctx, desc.Metadata.ID, record)
	}
}

// Snapshot probes every registered plugin once, synchronously, and
// returns the resulting records without publishing events or touching
// the cache. Used by operator tooling for an on-demand read between
// ticks.
func (m *Monitor) Snapshot(ctx context.Context) []plugin.HealthRecord {
	all := m.reg.All()
	records := make([]plugin.HealthRecord, 0, len(all))
	for _, desc := range all {
		records = append(records, m.probe(ctx, desc))
	}
	return records
}

func (m *Monitor) probe(ctx context.Context, desc plugin.Descriptor) plugin.HealthRecord {
	p, err := m.reg.Plugin(desc.Metadata.ID)
	if err == nil {
		if indicator, ok := p.(plugin.HealthIndicator); ok {
			return safeProbe(ctx, desc.Metadata.ID, indicator)
		}
	}
	return synthesize(desc)
}

func safeProbe(ctx context.Context, pluginID string, indicator plugin.HealthIndicator) (record plugin.HealthRecord) {
	defer func() {
		if r := recover(); r != nil {
			record = plugin.HealthRecord{
				PluginID:  pluginID,
				Status:    plugin.Down,
				Message:   fmt.Sprintf("health probe panicked: %v", r),
				Timestamp: time.Now(),
			}
		}
	}()
	return indicator.Health(ctx)
}

// synthesize derives a health record from current state when the
// plugin does not implement the health-indicator capability, exactly
// per spec §4.5 step 2.
func synthesize(desc plugin.Descriptor) plugin.HealthRecord {
	now := time.Now()
	switch desc.State {
	case plugin.Started:
		return plugin.HealthRecord{PluginID: desc.Metadata.ID, Status: plugin.Up, Timestamp: now}
	case plugin.Stopped:
		return plugin.HealthRecord{PluginID: desc.Metadata.ID, Status: plugin.Down, Message: "Plugin is stopped", Timestamp: now}
	case plugin.Failed:
		return plugin.HealthRecord{PluginID: desc.Metadata.ID, Status: plugin.Down, Message: "Plugin failed to start", Timestamp: now}
	default:
		return plugin.HealthRecord{PluginID: desc.Metadata.ID, Status: plugin.Unknown, Timestamp: now}
	}
}

// maybeRecover implements spec §4.5 step 4's bounded auto-recovery,
// serialized per plugin id via m.mu to avoid a double-increment race
// between overlapping ticks.
func (m *Monitor) maybeRecover(ctx context.Context, pluginID string, record plugin.HealthRecord) {
	if !m.cfg.AutoRecoveryEnabled || record.Status != plugin.Down || m.restarter == nil {
		return
	}

	m.mu.Lock()
	attempts := m.attempts[pluginID]
	if attempts >= m.cfg.MaxRecoveryAttempts {
		m.mu.Unlock()
		return
	}
	m.attempts[pluginID] = attempts + 1
	m.mu.Unlock()
	metrics.IncRecoveryAttempt(pluginID)

	if err := m.restarter.Restart(ctx, pluginID); err != nil {
		m.l.Warn("auto-recovery restart failed",
			log.StringField("plugin", pluginID), log.ErrorField(err))
		return
	}

	p, err := m.reg.Plugin(pluginID)
	if err != nil {
		return
	}
	indicator, ok := p.(plugin.HealthIndicator)
	if !ok {
		return
	}
	if safeProbe(ctx, pluginID, indicator).Status == plugin.Up {
		m.mu.Lock()
		m.attempts[pluginID] = 0
		m.mu.Unlock()
		_ = m.cache.Reset(ctx, pluginID)
	}
}

// Reset clears the recovery-attempt counter for pluginID, letting an
// external actor resume auto-recovery after exceeding the cap (spec
// §4.5 "until... an external actor resets the counter").
func (m *Monitor) Reset(ctx context.Context, pluginID string) error {
	m.mu.Lock()
	m.attempts[pluginID] = 0
	m.mu.Unlock()
	return m.cache.Reset(ctx, pluginID)
}
