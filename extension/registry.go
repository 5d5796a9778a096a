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

// Package extension implements the extension-point registry (spec
// §4.2, component C2): it maps extension-point ids to priority-ordered
// lists of plugin-supplied implementations.
package extension

import (
	"reflect"
	"sort"
	"sync"

	"github.com/TimeWtr/pluginrt/log"
	"github.com/TimeWtr/pluginrt/perr"
)

// Entry is a single registered implementation at a point.
type Entry struct {
	Impl     any
	Priority int
	OwnerID  string
	seq      int64
}

type point struct {
	contract reflect.Type
	multiple bool
	entries  []Entry // always kept sorted by (-priority, seq)
}

// Registry implements component C2.
//
//go:generate mockgen -source=registry.go -destination=registry_mock.go -package=extension
type Registry struct {
	mu     sync.RWMutex
	points map[string]*point
	seq    int64
	l      log.Logger
}

// New creates an empty extension registry.
func New(l log.Logger) *Registry {
	if l == nil {
		l = log.Nop()
	}
	return &Registry{
		points: make(map[string]*point),
		l:      l,
	}
}

// RegisterExtensionPoint is idempotent on identical arguments; it
// fails if the same id is re-registered with a different contract.
func (r *Registry) RegisterExtensionPoint(id string, contract reflect.Type, allowMultiple bool) error {
	if id == "" {
		return perr.InvalidArgument("RegisterExtensionPoint", "extension point id must not be empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.points[id]; ok {
		if existing.contract != contract {
			return perr.InvalidArgument("RegisterExtensionPoint",
				"extension point "+id+" already registered with a different contract", nil)
		}
		return nil
	}

	r.points[id] = &point{contract: contract, multiple: allowMultiple}
	r.l.Debug("extension point registered", log.StringField("id", id))
	return nil
}

// RegisterExtension fails if id is unknown or impl does not satisfy
// the point's contract.
func (r *Registry) RegisterExtension(id string, ownerID string, impl any, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.points[id]
	if !ok {
		return perr.NotFound("RegisterExtension", ownerID, "unknown extension point "+id)
	}

	if impl == nil {
		return perr.InvalidArgument("RegisterExtension", "implementation must not be nil", nil)
	}
	if p.contract != nil && !reflect.TypeOf(impl).Implements(p.contract) {
		return perr.InvalidArgument("RegisterExtension",
			"implementation does not satisfy contract for "+id, nil)
	}
	if !p.multiple && len(p.entries) > 0 {
		return perr.StateViolation("RegisterExtension", ownerID,
			"extension point "+id+" does not allow multiple implementations")
	}

	r.seq++
	entry := Entry{Impl: impl, Priority: priority, OwnerID: ownerID, seq: r.seq}
	p.entries = append(p.entries, entry)
	sortEntries(p.entries)

	r.l.Debug("extension registered",
		log.StringField("point", id),
		log.StringField("owner", ownerID),
		log.IntField("priority", priority))
	return nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].seq < entries[j].seq
	})
}

// UnregisterExtension removes by identity; no-op if absent.
func (r *Registry) UnregisterExtension(id string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.points[id]
	if !ok {
		return
	}
	for i, e := range p.entries {
		if e.Impl == impl {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// UnregisterOwner withdraws every entry registered by ownerID, across
// every extension point. Used by the lifecycle registry on uninstall
// (spec §3 "automatically withdrawn on uninstall").
func (r *Registry) UnregisterOwner(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.points {
		kept := p.entries[:0:0]
		for _, e := range p.entries {
			if e.OwnerID != ownerID {
				kept = append(kept, e)
			}
		}
		p.entries = kept
	}
}

// GetExtensions enumerates entries in descending priority, ties
// broken by registration order.
func (r *Registry) GetExtensions(id string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok {
		return nil
	}
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// GetHighestPriorityExtension returns the first element of
// GetExtensions, or false if empty.
func (r *Registry) GetHighestPriorityExtension(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok || len(p.entries) == 0 {
		return Entry{}, false
	}
	return p.entries[0], true
}

// GetExtensionPoints enumerates all registered point ids.
func (r *Registry) GetExtensionPoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.points))
	for id := range r.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns every entry for every point, grouped by point id.
// A debug/discovery accessor in the spirit of the teacher's
// PluginsDiscover interface, exposed through manager.Facade.Extensions.
func (r *Registry) Snapshot() map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Entry, len(r.points))
	for id, p := range r.points {
		entries := make([]Entry, len(p.entries))
		copy(entries, p.entries)
		out[id] = entries
	}
	return out
}
