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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimeWtr/pluginrt/plugin"
)

type fakeEnumerator struct {
	descriptors []plugin.Descriptor
	plugins     map[string]plugin.Plugin
}

func (f *fakeEnumerator) All() []plugin.Descriptor { return f.descriptors }
func (f *fakeEnumerator) Plugin(id string) (plugin.Plugin, error) {
	p, ok := f.plugins[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

type indicatorPlugin struct {
	id     string
	status plugin.HealthStatus
}

func (p *indicatorPlugin) Metadata() plugin.Metadata              { return plugin.Metadata{ID: p.id} }
func (p *indicatorPlugin) Initialize(ctx context.Context) error   { return nil }
func (p *indicatorPlugin) Start(ctx context.Context) error        { return nil }
func (p *indicatorPlugin) Stop(ctx context.Context) error         { return nil }
func (p *indicatorPlugin) Uninstall(ctx context.Context) error    { return nil }
func (p *indicatorPlugin) Health(ctx context.Context) plugin.HealthRecord {
	return plugin.HealthRecord{PluginID: p.id, Status: p.status}
}

func TestSynthesize_FromState(t *testing.T) {
	cases := []struct {
		state plugin.State
		want  plugin.HealthStatus
	}{
		{plugin.Started, plugin.Up},
		{plugin.Stopped, plugin.Down},
		{plugin.Failed, plugin.Down},
		{plugin.Installed, plugin.Unknown},
	}
	for _, c := range cases {
		got := synthesize(plugin.Descriptor{Metadata: plugin.Metadata{ID: "p1"}, State: c.state})
		assert.Equal(t, c.want, got.Status)
	}
}

func TestMonitor_Snapshot(t *testing.T) {
	p := &indicatorPlugin{id: "p1", status: plugin.Up}
	enum := &fakeEnumerator{
		descriptors: []plugin.Descriptor{
			{Metadata: plugin.Metadata{ID: "p1"}, State: plugin.Started},
			{Metadata: plugin.Metadata{ID: "p2"}, State: plugin.Stopped},
		},
		plugins: map[string]plugin.Plugin{"p1": p},
	}
	cache := NewMemoryCache()
	m := New(enum, nil, cache, nil, Config{}, nil)

	records := m.Snapshot(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, plugin.Up, records[0].Status)
	assert.Equal(t, plugin.Down, records[1].Status)

	_, ok := cache.Get(context.Background(), "p1")
	require.False(t, ok, "Snapshot must not populate the cache")
}

func TestMonitor_Tick_UsesHealthIndicatorWhenAvailable(t *testing.T) {
	p := &indicatorPlugin{id: "p1", status: plugin.Degraded}
	enum := &fakeEnumerator{
		descriptors: []plugin.Descriptor{{Metadata: plugin.Metadata{ID: "p1"}, State: plugin.Started}},
		plugins:     map[string]plugin.Plugin{"p1": p},
	}
	cache := NewMemoryCache()
	m := New(enum, nil, cache, nil, Config{}, nil)

	m.tick(context.Background())

	rec, ok := cache.Get(context.Background(), "p1")
	require.True(t, ok)
	assert.Equal(t, plugin.Degraded, rec.Status)
}

func TestMonitor_Tick_SynthesizesWithoutIndicator(t *testing.T) {
	enum := &fakeEnumerator{
		descriptors: []plugin.Descriptor{{Metadata: plugin.Metadata{ID: "p1"}, State: plugin.Stopped}},
		plugins:     map[string]plugin.Plugin{},
	}
	cache := NewMemoryCache()
	m := New(enum, nil, cache, nil, Config{}, nil)

	m.tick(context.Background())

	rec, ok := cache.Get(context.Background(), "p1")
	require.True(t, ok)
	assert.Equal(t, plugin.Down, rec.Status)
	assert.Equal(t, "Plugin is stopped", rec.Message)
}

type countingRestarter struct {
	calls   int
	succeed bool
}

func (r *countingRestarter) Restart(ctx context.Context, id string) error {
	r.calls++
	if !r.succeed {
		return errors.New("restart failed")
	}
	return nil
}

func TestMonitor_AutoRecovery_CapsAttempts(t *testing.T) {
	enum := &fakeEnumerator{
		descriptors: []plugin.Descriptor{{Metadata: plugin.Metadata{ID: "p1"}, State: plugin.Failed}},
		plugins:     map[string]plugin.Plugin{},
	}
	cache := NewMemoryCache()
	restarter := &countingRestarter{succeed: false}
	m := New(enum, nil, cache, restarter, Config{AutoRecoveryEnabled: true, MaxRecoveryAttempts: 2}, nil)

	m.tick(context.Background())
	m.tick(context.Background())
	m.tick(context.Background())

	assert.Equal(t, 2, restarter.calls, "third tick must not attempt recovery beyond the cap")
}

// recoveringRestarter brings p back UP on every restart.
type recoveringRestarter struct {
	p     *indicatorPlugin
	calls int
}

func (r *recoveringRestarter) Restart(ctx context.Context, id string) error {
	r.calls++
	r.p.status = plugin.Up
	return nil
}

func TestMonitor_AutoRecovery_ResetsCounterOnSuccess(t *testing.T) {
	p := &indicatorPlugin{id: "p1", status: plugin.Down}
	enum := &fakeEnumerator{
		descriptors: []plugin.Descriptor{{Metadata: plugin.Metadata{ID: "p1"}, State: plugin.Failed}},
		plugins:     map[string]plugin.Plugin{"p1": p},
	}
	cache := NewMemoryCache()
	restarter := &recoveringRestarter{p: p}
	m := New(enum, nil, cache, restarter, Config{AutoRecoveryEnabled: true, MaxRecoveryAttempts: 2}, nil)

	m.tick(context.Background())

	assert.Equal(t, 1, restarter.calls, "a DOWN probe must trigger one recovery attempt")
	m.mu.Lock()
	attempts := m.attempts["p1"]
	m.mu.Unlock()
	assert.Equal(t, 0, attempts, "successful recovery resets the counter")
}

func TestMonitor_Reset(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Set(context.Background(), plugin.HealthRecord{
		PluginID: "p1",
		Details:  map[string]any{"recovery_attempts": 5},
	}))

	m := New(&fakeEnumerator{}, nil, cache, nil, Config{}, nil)
	m.mu.Lock()
	m.attempts["p1"] = 5
	m.mu.Unlock()

	require.NoError(t, m.Reset(context.Background(), "p1"))

	rec, _ := cache.Get(context.Background(), "p1")
	assert.Equal(t, 0, rec.RecoveryAttempts())

	m.mu.Lock()
	assert.Equal(t, 0, m.attempts["p1"])
	m.mu.Unlock()
}
