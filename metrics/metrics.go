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

// Package metrics defines the runtime's Prometheus instrumentation,
// grounded on cuemby-warren's pkg/metrics package (package-level
// collector vars, a Register step kept separate from collection so
// callers control when they join the default registry).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TimeWtr/pluginrt/plugin"
)

var (
	// BusDroppedEventsTotal counts events discarded by the in-process
	// bus because a subscriber's buffer was full (spec §5 "dispatch
	// must not block the publisher").
	BusDroppedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pluginrt_bus_dropped_events_total",
		Help: "Total number of events dropped because a subscriber's buffer was full.",
	})

	// HealthStatus reports the last health status observed for a
	// plugin, one gauge row per (plugin, status) pair; exactly one row
	// per plugin is 1 at any time, the rest 0, the same encoding
	// warren uses for warren_raft_is_leader-style state gauges.
	HealthStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pluginrt_health_status",
		Help: "Health status per plugin (1 = current status, 0 = otherwise).",
	}, []string{"plugin_id", "status"})

	// RecoveryAttemptsTotal counts auto-recovery restarts attempted by
	// the health monitor per plugin.
	RecoveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginrt_recovery_attempts_total",
		Help: "Total number of auto-recovery restarts attempted per plugin.",
	}, []string{"plugin_id"})
)

// Register adds every collector to reg; a collector already registered
// there is skipped. Nothing is registered from package init(). The
// facade calls Register during Initialize with
// prometheus.DefaultRegisterer and offers no option to pick another
// registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{BusDroppedEventsTotal, HealthStatus, RecoveryAttemptsTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveHealth updates the status gauge for record.PluginID, zeroing
// every other known status row so exactly one reads 1.
func ObserveHealth(record plugin.HealthRecord) {
	for _, s := range []plugin.HealthStatus{plugin.Up, plugin.Down, plugin.Degraded, plugin.Unknown} {
		v := 0.0
		if s == record.Status {
			v = 1.0
		}
		HealthStatus.WithLabelValues(record.PluginID, s.String()).Set(v)
	}
}

// IncRecoveryAttempt records one auto-recovery restart attempt for pluginID.
func IncRecoveryAttempt(pluginID string) {
	RecoveryAttemptsTotal.WithLabelValues(pluginID).Inc()
}
