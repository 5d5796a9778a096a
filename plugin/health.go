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

import "time"

// HealthStatus is the outcome of a health probe (spec §3).
type HealthStatus uint8

const (
	Up HealthStatus = iota
	Down
	Degraded
	Unknown
)

func (h HealthStatus) String() string {
	switch h {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Degraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// HealthRecord is the result of a single probe against one plugin.
type HealthRecord struct {
	PluginID  string
	Status    HealthStatus
	Message   string
	Timestamp time.Time
	Details   map[string]any
}

// RecoveryAttempts reads the "recovery_attempts" detail, defaulting to 0.
func (h HealthRecord) RecoveryAttempts() int {
	if h.Details == nil {
		return 0
	}
	if v, ok := h.Details["recovery_attempts"]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}
