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

// Package registry implements the lifecycle registry (spec §4.4,
// component C4): it owns plugin descriptors and the lifecycle state
// machine, and emits exactly one Lifecycle event per successful
// transition.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/TimeWtr/pluginrt/eventbus"
	"github.com/TimeWtr/pluginrt/extension"
	"github.com/TimeWtr/pluginrt/log"
	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
)

// entry is the registry's private record for a plugin: the live
// instance plus its descriptor, guarded by its own mutex so
// per-plugin transitions serialize without blocking other plugins
// (spec §5 "different plugins may be transitioned concurrently").
type entry struct {
	mu   sync.Mutex
	inst plugin.Plugin
	desc plugin.Descriptor
}

// Registry implements component C4.
type Registry struct {
	bus         eventbus.Bus
	ext         *extension.Registry
	l           log.Logger
	hookTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithHookTimeout bounds how long a single lifecycle hook invocation
// (initialize/start/stop/uninstall) may run before the call is
// abandoned and the plugin transitions to FAILED (spec §5
// "Cancellation & timeouts"). Zero (the default) means no timeout.
func WithHookTimeout(d time.Duration) Option {
	return func(r *Registry) { r.hookTimeout = d }
}

// New creates an empty lifecycle registry. bus receives one Lifecycle
// event per successful transition and one Configuration event per
// SetConfiguration call; ext receives extension withdrawals on
// Unregister.
func New(bus eventbus.Bus, ext *extension.Registry, l log.Logger, opts ...Option) *Registry {
	if l == nil {
		l = log.Nop()
	}
	r := &Registry{
		bus:     bus,
		ext:     ext,
		l:       l,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a descriptor in INSTALLED, then invokes the
// plugin's Initialize hook; on success it transitions to INITIALIZED
// and emits a Lifecycle event. Registering a duplicate id fails.
func (r *Registry) Register(ctx context.Context, p plugin.Plugin, location string) error {
	meta := p.Metadata()
	if meta.ID == "" {
		return perr.InvalidArgument("Register", "plugin metadata id must not be empty", nil)
	}

	r.mu.Lock()
	if _, exists := r.entries[meta.ID]; exists {
		r.mu.Unlock()
		return perr.Duplicate("Register", meta.ID, "plugin already registered")
	}
	e := &entry{
		inst: p,
		desc: plugin.Descriptor{Metadata: meta, State: plugin.Installed, Location: location},
	}
	r.entries[meta.ID] = e
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := r.runHook(ctx, meta.ID, "Register", func(ctx context.Context) error { return p.Initialize(ctx) }); err != nil {
		r.fail(e, meta.ID)
		return err
	}
	r.transition(e, meta.ID, plugin.Initialized)
	return nil
}

// Unregister removes the plugin, moving the descriptor to UNINSTALLED,
// invokes the plugin's Uninstall hook, emits an event, and drops
// extension entries owned by id through the extension registry.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := r.runHook(ctx, id, "Unregister", func(ctx context.Context) error { return e.inst.Uninstall(ctx) }); err != nil {
		r.l.Warn("uninstall hook failed",
			log.StringField("plugin", id),
			log.StringField("op", "Unregister"),
			log.StringField("kind", string(perr.KindHookFailure)),
			log.ErrorField(err))
	}
	r.transition(e, id, plugin.Uninstalled)

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	if r.ext != nil {
		r.ext.UnregisterOwner(id)
	}
	return nil
}

// Start invokes the plugin's Start hook and transitions to STARTED.
// Starting a plugin already STARTED is a no-op success (spec §4.4 and
// §5 idempotence property).
func (r *Registry) Start(ctx context.Context, id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.desc.State == plugin.Started {
		return nil
	}

	if err := r.runHook(ctx, id, "Start", func(ctx context.Context) error { return e.inst.Start(ctx) }); err != nil {
		r.fail(e, id)
		return err
	}

	r.transition(e, id, plugin.Started)

	if provider, ok := e.inst.(plugin.ExtensionProvider); ok && r.ext != nil {
		for _, ent := range provider.ProvidedExtensions() {
			if regErr := r.ext.RegisterExtension(ent.PointID, id, ent.Impl, ent.Priority); regErr != nil {
				r.l.Warn("failed to register provided extension",
					log.StringField("plugin", id), log.StringField("point", ent.PointID),
					log.ErrorField(regErr))
			}
		}
	}
	return nil
}

// Stop invokes the plugin's Stop hook and transitions to STOPPED.
// Stopping a plugin not in STARTED is a no-op success.
func (r *Registry) Stop(ctx context.Context, id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.desc.State != plugin.Started {
		return nil
	}

	if err := r.runHook(ctx, id, "Stop", func(ctx context.Context) error { return e.inst.Stop(ctx) }); err != nil {
		r.fail(e, id)
		return err
	}

	r.transition(e, id, plugin.Stopped)
	return nil
}

// SetConfiguration replaces the descriptor's configuration and emits a
// Configuration event carrying (previous, new).
func (r *Registry) SetConfiguration(ctx context.Context, id string, cfg map[string]any) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	previous := e.desc.Config
	e.desc.Config = cfg
	e.mu.Unlock()

	if r.bus != nil {
		_ = r.bus.Publish(ctx, eventbus.NewConfigurationEvent(id, previous, cfg))
	}
	return nil
}

// Descriptor returns the current descriptor for id.
func (r *Registry) Descriptor(id string) (plugin.Descriptor, error) {
	e, err := r.get(id)
	if err != nil {
		return plugin.Descriptor{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc.Clone(), nil
}

// Plugin returns the live plugin instance for id.
func (r *Registry) Plugin(id string) (plugin.Plugin, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inst, nil
}

// All returns every registered descriptor.
func (r *Registry) All() []plugin.Descriptor {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]plugin.Descriptor, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.desc.Clone())
		e.mu.Unlock()
	}
	return out
}

// ByState returns every descriptor currently in state.
func (r *Registry) ByState(state plugin.State) []plugin.Descriptor {
	all := r.All()
	out := all[:0:0]
	for _, d := range all {
		if d.State == state {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, perr.NotFound("registry", id, "plugin not registered")
	}
	return e, nil
}

// transition applies newState, makes it visible, then publishes the
// Lifecycle event — state-update-before-publish, per spec §4.4's
// emission guarantee. Caller must hold e.mu.
func (r *Registry) transition(e *entry, id string, newState plugin.State) {
	previous := e.desc.State
	e.desc.State = newState
	if r.bus != nil {
		_ = r.bus.Publish(context.Background(), eventbus.NewLifecycleEvent(id, previous, newState))
	}

	fields := []log.Field{
		log.StringField("plugin", id),
		log.StringField("from", previous.String()),
		log.StringField("to", newState.String()),
	}
	if newState == plugin.Failed {
		r.l.Error("plugin transitioned", fields...)
		return
	}
	r.l.Info("plugin transitioned", fields...)
}

// fail transitions e to FAILED; caller must hold e.mu.
func (r *Registry) fail(e *entry, id string) {
	r.transition(e, id, plugin.Failed)
}

// runHook invokes fn honoring the registry's configured hook timeout.
// On timeout it returns a *perr.Error of kind timeout rather than
// propagating context.DeadlineExceeded directly, so callers can branch
// on perr.OfKind uniformly; any other failure is wrapped as a
// hook-failure.
func (r *Registry) runHook(ctx context.Context, id, op string, fn func(context.Context) error) error {
	if r.hookTimeout <= 0 {
		if err := fn(ctx); err != nil {
			return perr.HookFailure(op, id, err)
		}
		return nil
	}

	hookCtx, cancel := context.WithTimeout(ctx, r.hookTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(hookCtx) }()

	select {
	case err := <-done:
		if err != nil {
			return perr.HookFailure(op, id, err)
		}
		return nil
	case <-hookCtx.Done():
		return perr.Timeout(op, id)
	}
}
