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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const yamlDoc = `
event_bus:
  type: in-memory
health:
  enabled: true
  monitoring_interval_ms: 1000
  auto_recovery_enabled: true
  max_recovery_attempts: 2
hot_deployment:
  enabled: true
  watch_for_new: true
auto_start_plugins: true
`

const yamlDocV2 = `
event_bus:
  type: broker
  broker:
    bootstrap: nats://localhost:4222
health:
  enabled: false
auto_start_plugins: false
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProvider_InitialLoad(t *testing.T) {
	path := writeTemp(t, "config.yaml", yamlDoc)

	p, err := NewFileProvider(path, "", nil)
	require.NoError(t, err)
	defer p.Close()

	ch, err := p.Watch()
	require.NoError(t, err)

	select {
	case cfg := <-ch:
		require.Equal(t, "in-memory", cfg.EventBus.Type)
		require.True(t, cfg.Health.Enabled)
		require.Equal(t, 2, cfg.Health.MaxRecoveryAttempts)
		require.True(t, cfg.AutoStartPlugins)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial config")
	}
}

func TestFileProvider_ReloadsOnWrite(t *testing.T) {
	path := writeTemp(t, "config.yaml", yamlDoc)

	p, err := NewFileProvider(path, "", nil)
	require.NoError(t, err)
	p.debounceDuration = 10 * time.Millisecond
	defer p.Close()

	ch, err := p.Watch()
	require.NoError(t, err)
	<-ch // drain initial

	require.NoError(t, os.WriteFile(path, []byte(yamlDocV2), 0o644))

	select {
	case cfg := <-ch:
		require.Equal(t, "broker", cfg.EventBus.Type)
		require.Equal(t, "nats://localhost:4222", cfg.EventBus.Broker.Bootstrap)
		require.False(t, cfg.Health.Enabled)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reloaded config")
	}
}

func TestFileProvider_WatchTwiceFails(t *testing.T) {
	path := writeTemp(t, "config.yaml", yamlDoc)

	p, err := NewFileProvider(path, "", nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Watch()
	require.NoError(t, err)

	_, err = p.Watch()
	require.Error(t, err)
}

func TestFileProvider_JSONFormat(t *testing.T) {
	path := writeTemp(t, "config.json", `{"event_bus":{"type":"in-memory"},"auto_start_plugins":true}`)

	p, err := NewFileProvider(path, "", nil)
	require.NoError(t, err)
	defer p.Close()

	ch, err := p.Watch()
	require.NoError(t, err)

	cfg := <-ch
	require.Equal(t, "in-memory", cfg.EventBus.Type)
	require.True(t, cfg.AutoStartPlugins)
}

func TestFileProvider_TOMLFormat(t *testing.T) {
	path := writeTemp(t, "config.toml", "auto_start_plugins = true\n\n[event_bus]\ntype = \"in-memory\"\n")

	p, err := NewFileProvider(path, "", nil)
	require.NoError(t, err)
	defer p.Close()

	ch, err := p.Watch()
	require.NoError(t, err)

	cfg := <-ch
	require.Equal(t, "in-memory", cfg.EventBus.Type)
	require.True(t, cfg.AutoStartPlugins)
}

func TestParseTypeFromExt(t *testing.T) {
	require.Equal(t, ParseTypeJSON, ParseTypeFromExt(".json"))
	require.Equal(t, ParseTypeTOML, ParseTypeFromExt("toml"))
	require.Equal(t, ParseTypeYAML, ParseTypeFromExt(".yaml"))
	require.Equal(t, ParseTypeYAML, ParseTypeFromExt(".unknown"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "in-memory", cfg.EventBus.Type)
	require.True(t, cfg.Health.Enabled)
	require.Equal(t, 30*time.Second, cfg.Health.Interval())
	require.Equal(t, 5*time.Second, cfg.HotDeployment.PollingInterval())
}
