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

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/TimeWtr/pluginrt/config"
	"github.com/TimeWtr/pluginrt/manager"
	"github.com/TimeWtr/pluginrt/plugin"
	"github.com/spf13/cobra"
)

// demoPlugin is a minimal plugin.Plugin used to seed a Facade from the
// command line. Real artifact loading is outside this runtime's scope
// (spec's artifact format / symbol loading is explicitly excluded);
// pluginctl instead lets an operator describe a plugin's shape
// directly via --plugin and exercises the lifecycle against it.
type demoPlugin struct {
	meta plugin.Metadata
}

func (d *demoPlugin) Metadata() plugin.Metadata          { return d.meta }
func (d *demoPlugin) Initialize(_ context.Context) error { return nil }
func (d *demoPlugin) Start(_ context.Context) error      { return nil }
func (d *demoPlugin) Stop(_ context.Context) error       { return nil }
func (d *demoPlugin) Uninstall(_ context.Context) error  { return nil }

// parsePluginFlag parses "id=name@version[,dep[,dep...]]" where each
// dep is a DependencySpec string accepted by plugin.ParseDependencySpec
// (e.g. "db>=1.0.0").
func parsePluginFlag(raw string) (plugin.Metadata, error) {
	idRest := strings.SplitN(raw, "=", 2)
	if len(idRest) != 2 {
		return plugin.Metadata{}, fmt.Errorf("invalid --plugin %q: want id=name@version[,dep...]", raw)
	}
	id := idRest[0]

	parts := strings.Split(idRest[1], ",")
	nameVersion := strings.SplitN(parts[0], "@", 2)
	if len(nameVersion) != 2 {
		return plugin.Metadata{}, fmt.Errorf("invalid --plugin %q: want name@version", raw)
	}

	meta := plugin.Metadata{ID: id, Name: nameVersion[0], Version: nameVersion[1]}
	for _, depRaw := range parts[1:] {
		depRaw = strings.TrimSpace(depRaw)
		if depRaw == "" {
			continue
		}
		dep, err := plugin.ParseDependencySpec(depRaw)
		if err != nil {
			return plugin.Metadata{}, fmt.Errorf("invalid dependency %q in --plugin %q: %w", depRaw, raw, err)
		}
		meta.Dependencies = append(meta.Dependencies, dep)
	}
	return meta, nil
}

// buildFacade loads config (--config, or built-in defaults), brings up
// a Facade, and installs every plugin named by --plugin.
func buildFacade(ctx context.Context, cmd *cobra.Command) (*manager.Facade, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	l := runtimeLogger()
	f, err := manager.New(cfg, nil, l)
	if err != nil {
		return nil, err
	}
	if err := f.Initialize(ctx); err != nil {
		return nil, err
	}

	rawPlugins, _ := cmd.Flags().GetStringArray("plugin")
	for _, raw := range rawPlugins {
		meta, err := parsePluginFlag(raw)
		if err != nil {
			return nil, err
		}
		if err := f.Install(ctx, &demoPlugin{meta: meta}, "cli"); err != nil {
			return nil, fmt.Errorf("install %q: %w", meta.ID, err)
		}
	}
	return f, nil
}
