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

// Package eventbus implements the typed pub/sub event bus (spec §4.1,
// component C1), with a pluggable transport: an in-process fan-out and
// an external message-broker bridge.
package eventbus

import (
	"sync"
	"time"

	"github.com/TimeWtr/pluginrt/plugin"
)

// Event is the base shape every event subtype satisfies (spec §3):
// {plugin_id, event_type_tag, creation_timestamp} plus payload.
type Event interface {
	PluginID() string
	TypeTag() string
	Timestamp() time.Time
}

// Base is embedded by concrete event subtypes to satisfy Event.
type Base struct {
	Plugin  string
	Tag     string
	Created time.Time
}

func (b Base) PluginID() string     { return b.Plugin }
func (b Base) TypeTag() string      { return b.Tag }
func (b Base) Timestamp() time.Time { return b.Created }

// LifecycleTag/ConfigurationTag are the two built-in subtypes named in
// spec §3; all other tags are open, host-registered subtypes.
const (
	LifecycleTag    = "lifecycle"
	ConfigurationTag = "configuration"
)

// LifecycleEvent carries a plugin's state transition.
type LifecycleEvent struct {
	Base
	PreviousState plugin.State
	NewState      plugin.State
}

// NewLifecycleEvent builds a LifecycleEvent stamped with the current time.
func NewLifecycleEvent(pluginID string, previous, next plugin.State) LifecycleEvent {
	return LifecycleEvent{
		Base:          Base{Plugin: pluginID, Tag: LifecycleTag, Created: time.Now()},
		PreviousState: previous,
		NewState:      next,
	}
}

// ConfigurationEvent carries a plugin's configuration replacement.
type ConfigurationEvent struct {
	Base
	PreviousConfig map[string]any
	NewConfig      map[string]any
}

// NewConfigurationEvent builds a ConfigurationEvent stamped with the
// current time.
func NewConfigurationEvent(pluginID string, previous, next map[string]any) ConfigurationEvent {
	return ConfigurationEvent{
		Base:           Base{Plugin: pluginID, Tag: ConfigurationTag, Created: time.Now()},
		PreviousConfig: previous,
		NewConfig:      next,
	}
}

// HealthEvent carries a health-probe outcome; used by the health
// monitor (component C5) to publish on every tick.
type HealthEvent struct {
	Base
	Record plugin.HealthRecord
}

const HealthTag = "health"

func NewHealthEvent(record plugin.HealthRecord) HealthEvent {
	return HealthEvent{
		Base:   Base{Plugin: record.PluginID, Tag: HealthTag, Created: time.Now()},
		Record: record,
	}
}

// typeRegistry is the tag -> constructor table used when deserializing
// events received over the broker transport (spec §9 "Runtime type for
// events"). Host-defined subtypes register here too.
var (
	typeRegistryMu sync.RWMutex
	typeRegistry   = map[string]func() Event{
		LifecycleTag:     func() Event { return &LifecycleEvent{} },
		ConfigurationTag: func() Event { return &ConfigurationEvent{} },
		HealthTag:        func() Event { return &HealthEvent{} },
	}
)

// RegisterEventType adds a host-defined event subtype to the
// serialization registry.
func RegisterEventType(tag string, factory func() Event) {
	typeRegistryMu.Lock()
	defer typeRegistryMu.Unlock()
	typeRegistry[tag] = factory
}

// lookupEventType returns the constructor for tag, if registered.
func lookupEventType(tag string) (func() Event, bool) {
	typeRegistryMu.RLock()
	defer typeRegistryMu.RUnlock()
	f, ok := typeRegistry[tag]
	return f, ok
}
