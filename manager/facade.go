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

// Package manager implements the plugin manager facade (spec §4.6,
// component C6): a thin composition over the event bus, extension
// registry, dependency resolver, lifecycle registry and health
// monitor.
package manager

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/TimeWtr/pluginrt/config"
	"github.com/TimeWtr/pluginrt/depres"
	"github.com/TimeWtr/pluginrt/eventbus"
	"github.com/TimeWtr/pluginrt/extension"
	"github.com/TimeWtr/pluginrt/health"
	"github.com/TimeWtr/pluginrt/hotdeploy"
	"github.com/TimeWtr/pluginrt/log"
	"github.com/TimeWtr/pluginrt/metrics"
	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
	"github.com/TimeWtr/pluginrt/registry"
)

// Facade is the single entry point an embedding host or the CLI talks
// to. It owns the startup/shutdown order of every subsystem: C1 → C2
// → C3 → C4 → C5 on Initialize, the reverse on Shutdown, with C5
// draining its tick loop before C4 stops each plugin, per spec §4.6.
type Facade struct {
	cfg     config.Config
	l       log.Logger
	loader  plugin.Loader
	bus     eventbus.Bus
	ext     *extension.Registry
	reg     *registry.Registry
	monitor *health.Monitor
	watcher hotdeploy.Watcher

	mu          sync.Mutex
	handleToID  map[hotdeploy.Handle]string
	watcherDone chan struct{}
}

// New builds a Facade from cfg. loader is the external collaborator
// that turns a hot-deploy handle into a plugin instance (spec §6); it
// may be nil if hot deployment is disabled.
func New(cfg config.Config, loader plugin.Loader, l log.Logger) (*Facade, error) {
	if l == nil {
		l = log.Nop()
	}

	bus, err := newBus(cfg, l)
	if err != nil {
		return nil, err
	}

	ext := extension.New(l)
	reg := registry.New(bus, ext, l, registry.WithHookTimeout(0))

	f := &Facade{
		cfg:        cfg,
		l:          l,
		loader:     loader,
		bus:        bus,
		ext:        ext,
		reg:        reg,
		handleToID: make(map[hotdeploy.Handle]string),
	}

	if cfg.Health.Enabled {
		var cache health.Cache
		f.monitor = health.New(reg, bus, cache, f, health.Config{
			Interval:            cfg.Health.Interval(),
			AutoRecoveryEnabled: cfg.Health.AutoRecoveryEnabled,
			MaxRecoveryAttempts: cfg.Health.MaxRecoveryAttempts,
		}, l)
	}

	return f, nil
}

func newBus(cfg config.Config, l log.Logger) (eventbus.Bus, error) {
	if cfg.EventBus.Type != "broker" {
		return eventbus.NewInProcessBus(0, l), nil
	}

	return eventbus.NewBrokerBus(eventbus.BrokerConfig{
		URL:           cfg.EventBus.Broker.Bootstrap,
		Subject:       cfg.EventBus.Broker.DefaultTopic,
		QueueGroup:    cfg.EventBus.Broker.ConsumerGroup,
		MaxReconnects: -1,
	}, l)
}

// Initialize brings every subsystem up in order C1 → C2 → C3 → C4 →
// C5, then (if configured) starts the hot-deploy watcher. C2
// (extension) and C4 (registry) have no separate initialize step of
// their own; they are ready as soon as constructed.
func (f *Facade) Initialize(ctx context.Context) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	if err := f.bus.Initialize(ctx); err != nil {
		return err
	}

	if f.monitor != nil {
		if err := f.monitor.Start(ctx); err != nil {
			return err
		}
	}

	if f.cfg.HotDeployment.Enabled && f.loader != nil {
		w, err := f.newWatcher()
		if err != nil {
			return err
		}
		f.watcher = w
		f.watcherDone = make(chan struct{})
		go f.watchLoop()
	}

	return nil
}

// Shutdown tears every subsystem down in the reverse order, draining
// C5's tick loop before touching C4, and aggregates every subsystem's
// shutdown error with multierr rather than stopping at the first one.
func (f *Facade) Shutdown(ctx context.Context) error {
	var err error

	if f.watcher != nil {
		err = multierr.Append(err, f.watcher.Close())
		<-f.watcherDone
	}

	if f.monitor != nil {
		err = multierr.Append(err, f.monitor.Stop(ctx))
	}

	for _, d := range f.reg.ByState(plugin.Started) {
		err = multierr.Append(err, f.reg.Stop(ctx, d.Metadata.ID))
	}

	err = multierr.Append(err, f.bus.Shutdown(ctx))
	return err
}

// Install registers a new plugin instance with the lifecycle
// registry. This is C6's "install" operation, delegating to C4.
func (f *Facade) Install(ctx context.Context, p plugin.Plugin, location string) error {
	return f.reg.Register(ctx, p, location)
}

// Start brings up id and, transitively, every prerequisite it depends
// on that is not already started, in dependency order (spec §4.6).
func (f *Facade) Start(ctx context.Context, id string) error {
	order, err := f.closure(id, prerequisites)
	if err != nil {
		return err
	}
	for _, m := range order {
		if err := f.reg.Start(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// Stop brings down id and, transitively, every dependent plugin that
// is currently started, stopping dependents before their prerequisite
// (spec §4.6).
func (f *Facade) Stop(ctx context.Context, id string) error {
	order, err := f.closure(id, dependents)
	if err != nil {
		return err
	}
	for _, m := range order {
		if err := f.reg.Stop(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// Restart stops id's dependents closure then starts id's prerequisite
// closure, per spec §4.6's "restart = stop then start".
func (f *Facade) Restart(ctx context.Context, id string) error {
	if err := f.Stop(ctx, id); err != nil {
		return err
	}
	return f.Start(ctx, id)
}

// SetConfiguration delegates to C4.
func (f *Facade) SetConfiguration(ctx context.Context, id string, cfg map[string]any) error {
	return f.reg.SetConfiguration(ctx, id, cfg)
}

// Descriptor, List and ByState are query operations delegating to C4.
func (f *Facade) Descriptor(id string) (plugin.Descriptor, error) { return f.reg.Descriptor(id) }
func (f *Facade) List() []plugin.Descriptor                       { return f.reg.All() }
func (f *Facade) ByState(state plugin.State) []plugin.Descriptor  { return f.reg.ByState(state) }

// Extensions exposes C2's discovery surface (extension.Registry.Snapshot).
func (f *Facade) Extensions() map[string][]extension.Entry { return f.ext.Snapshot() }

// Health returns an on-demand health snapshot of every registered
// plugin, for callers that can't wait for C5's next periodic tick. It
// returns an error if health monitoring is disabled in configuration.
func (f *Facade) Health(ctx context.Context) ([]plugin.HealthRecord, error) {
	if f.monitor == nil {
		return nil, perr.InvalidArgument("Health", "health monitoring is disabled", nil)
	}
	return f.monitor.Snapshot(ctx), nil
}

// Uninstall withdraws id: stops it first if started, then delegates
// uninstall to C4.
func (f *Facade) Uninstall(ctx context.Context, id string) error {
	desc, err := f.reg.Descriptor(id)
	if err != nil {
		return err
	}
	if desc.State == plugin.Started {
		if err := f.Stop(ctx, id); err != nil {
			return err
		}
	}
	return f.reg.Unregister(ctx, id)
}

type closureDirection uint8

const (
	prerequisites closureDirection = iota
	dependents
)

// closure computes the transitive closure of id in the requested
// direction against the currently registered metadata graph. The
// prerequisites closure is ordered with depres.Resolve (start order);
// the dependents closure is returned in the post-order of its own walk,
// which puts every dependent before the plugin it depends on.
func (f *Facade) closure(id string, dir closureDirection) ([]plugin.Metadata, error) {
	all := f.reg.All()
	byID := make(map[string]plugin.Descriptor, len(all))
	for _, d := range all {
		byID[d.Metadata.ID] = d
	}
	if _, ok := byID[id]; !ok {
		return nil, perr.NotFound("closure", id, "plugin not registered")
	}

	var included []plugin.Metadata
	seen := make(map[string]bool)

	switch dir {
	case prerequisites:
		var walk func(string)
		walk = func(pid string) {
			if seen[pid] {
				return
			}
			seen[pid] = true
			d, ok := byID[pid]
			if !ok {
				return
			}
			for _, dep := range d.Metadata.Dependencies {
				walk(dep.ID)
			}
			included = append(included, d.Metadata)
		}
		walk(id)
	case dependents:
		var walk func(string)
		walk = func(pid string) {
			if seen[pid] {
				return
			}
			seen[pid] = true
			for _, d := range all {
				for _, dep := range d.Metadata.Dependencies {
					if dep.ID == pid {
						walk(d.Metadata.ID)
					}
				}
			}
			included = append(included, byID[pid].Metadata)
		}
		walk(id)
	}

	if dir == dependents {
		// included is already in a valid stop order: the walk above
		// appends each node only after every one of its own dependents
		// has been appended, so id itself lands last. depres.Resolve
		// cannot be reused here since it requires every non-optional
		// dependency of an included plugin to also be present in the
		// slice, which does not hold for an arbitrary dependents
		// closure (a dependent's own prerequisites other than id are
		// not necessarily included).
		return included, nil
	}

	// The prerequisites closure walked above already includes every
	// dependency transitively, so depres.Resolve both re-derives the
	// same start order and, as a side effect, catches a circular or
	// version-incompatible dependency that might have been introduced
	// since the plugins were first registered.
	return depres.Resolve(included)
}
