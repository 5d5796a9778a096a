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

package plugin

// State is a plugin's position in the lifecycle state machine (spec §4.4).
type State uint8

const (
	Installed State = iota
	Initialized
	Started
	Stopped
	Failed
	Uninstalled
)

func (s State) String() string {
	switch s {
	case Installed:
		return "INSTALLED"
	case Initialized:
		return "INITIALIZED"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	case Failed:
		return "FAILED"
	case Uninstalled:
		return "UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is the mutable, externally-observed snapshot of a plugin:
// metadata + current state + current configuration + opaque loader
// location info. It never carries the live plugin object (spec §3).
type Descriptor struct {
	Metadata Metadata
	State    State
	Config   map[string]any
	Location string
}

// Clone returns a deep-enough copy so callers can't mutate the
// registry's internal view through the returned Config map.
func (d Descriptor) Clone() Descriptor {
	cfg := make(map[string]any, len(d.Config))
	for k, v := range d.Config {
		cfg[k] = v
	}
	d.Config = cfg
	return d
}
