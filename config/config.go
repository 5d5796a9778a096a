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

// Package config loads and hot-reloads the runtime's configuration file,
// recognizing the keys listed in spec section 6.
package config

import "time"

// EventBusConfig selects and configures the C1 transport.
type EventBusConfig struct {
	Type   string       `yaml:"type" json:"type" toml:"type"`
	Broker BrokerConfig `yaml:"broker" json:"broker" toml:"broker"`
}

// BrokerConfig configures the NATS-backed event bus, only consulted
// when EventBusConfig.Type is "broker".
type BrokerConfig struct {
	Bootstrap     string `yaml:"bootstrap" json:"bootstrap" toml:"bootstrap"`
	ConsumerGroup string `yaml:"consumer_group" json:"consumer_group" toml:"consumer_group"`
	DefaultTopic  string `yaml:"default_topic" json:"default_topic" toml:"default_topic"`
}

// HealthConfig configures the C5 health monitor.
type HealthConfig struct {
	Enabled               bool `yaml:"enabled" json:"enabled" toml:"enabled"`
	MonitoringIntervalMS  int  `yaml:"monitoring_interval_ms" json:"monitoring_interval_ms" toml:"monitoring_interval_ms"`
	AutoRecoveryEnabled   bool `yaml:"auto_recovery_enabled" json:"auto_recovery_enabled" toml:"auto_recovery_enabled"`
	MaxRecoveryAttempts   int  `yaml:"max_recovery_attempts" json:"max_recovery_attempts" toml:"max_recovery_attempts"`
}

// Interval returns MonitoringIntervalMS as a time.Duration, defaulting
// to 30s when unset.
func (h HealthConfig) Interval() time.Duration {
	if h.MonitoringIntervalMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.MonitoringIntervalMS) * time.Millisecond
}

// HotDeploymentConfig configures the hot-deploy watcher.
type HotDeploymentConfig struct {
	Enabled           bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	AutoReload        bool   `yaml:"auto_reload" json:"auto_reload" toml:"auto_reload"`
	WatchDir          string `yaml:"watch_dir" json:"watch_dir" toml:"watch_dir"`
	WatchForNew       bool   `yaml:"watch_for_new" json:"watch_for_new" toml:"watch_for_new"`
	WatchForUpdates   bool   `yaml:"watch_for_updates" json:"watch_for_updates" toml:"watch_for_updates"`
	WatchForDeletions bool   `yaml:"watch_for_deletions" json:"watch_for_deletions" toml:"watch_for_deletions"`
	PollingIntervalMS int    `yaml:"polling_interval_ms" json:"polling_interval_ms" toml:"polling_interval_ms"`
}

// PollingInterval returns PollingIntervalMS as a time.Duration,
// defaulting to 5s when unset.
func (h HotDeploymentConfig) PollingInterval() time.Duration {
	if h.PollingIntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(h.PollingIntervalMS) * time.Millisecond
}

// ResourcesConfig carries advisory resource hints. The runtime never
// enforces these; they exist for operators and external supervisors
// to read.
type ResourcesConfig struct {
	MaxMemoryMB           int `yaml:"max_memory_mb" json:"max_memory_mb" toml:"max_memory_mb"`
	MaxCPUPercent         int `yaml:"max_cpu_percent" json:"max_cpu_percent" toml:"max_cpu_percent"`
	MaxThreads            int `yaml:"max_threads" json:"max_threads" toml:"max_threads"`
	MaxFileHandles        int `yaml:"max_file_handles" json:"max_file_handles" toml:"max_file_handles"`
	MaxNetworkConnections int `yaml:"max_network_connections" json:"max_network_connections" toml:"max_network_connections"`
}

// Config is the root configuration document, covering every key spec
// section 6 recognizes.
type Config struct {
	EventBus         EventBusConfig      `yaml:"event_bus" json:"event_bus" toml:"event_bus"`
	Health           HealthConfig        `yaml:"health" json:"health" toml:"health"`
	HotDeployment    HotDeploymentConfig `yaml:"hot_deployment" json:"hot_deployment" toml:"hot_deployment"`
	AutoStartPlugins bool                `yaml:"auto_start_plugins" json:"auto_start_plugins" toml:"auto_start_plugins"`
	Resources        ResourcesConfig     `yaml:"resources" json:"resources" toml:"resources"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		EventBus: EventBusConfig{Type: "in-memory"},
		Health: HealthConfig{
			Enabled:              true,
			MonitoringIntervalMS: 30_000,
			AutoRecoveryEnabled:  false,
			MaxRecoveryAttempts:  3,
		},
		HotDeployment: HotDeploymentConfig{
			Enabled:           false,
			WatchForNew:       true,
			WatchForUpdates:   true,
			WatchForDeletions: true,
			PollingIntervalMS: 5_000,
		},
		AutoStartPlugins: true,
	}
}
