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

import "context"

// Plugin is the capability set every loader-supplied instance must
// satisfy (spec §6). There is no base class to inherit from: a plugin
// is whatever value implements this interface.
type Plugin interface {
	Metadata() Metadata
	Initialize(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Uninstall(ctx context.Context) error
}

// HealthIndicator is an optional capability: a plugin that knows how
// to report its own health rather than have it synthesized from state.
type HealthIndicator interface {
	Health(ctx context.Context) HealthRecord
}

// ExtensionEntry is one (point, implementation, priority) triple a
// plugin offers to the extension registry.
type ExtensionEntry struct {
	PointID    string
	Impl       any
	Priority   int
}

// ExtensionProvider is an optional capability: a plugin that
// contributes implementations to one or more extension points on
// start.
type ExtensionProvider interface {
	ProvidedExtensions() []ExtensionEntry
}

// Loader produces plugin instances from some external medium (disk
// artifact, repository checkout, in-process scan, remote debug
// attach). The runtime never inspects how; it only consumes the
// result. Loader is the external collaborator of spec §6: the manager
// facade calls Load for hot-deploy watcher events when it was given a
// Loader, and an embedding host may call it directly.
type Loader interface {
	Load(ctx context.Context, location string) (Plugin, error)
}
