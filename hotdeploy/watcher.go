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

// Package hotdeploy implements the watcher contract consumed by the
// facade (spec §6): it hot-installs, re-installs, and uninstalls
// plugins as artifacts appear, change, or disappear on disk. The core
// never opens the artifacts themselves; that remains a loader's job.
package hotdeploy

import "time"

// EventKind is one of the three kinds the watcher contract names.
type EventKind uint8

const (
	Created EventKind = iota
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Handle is the opaque artifact handle the watcher contract carries;
// both implementations in this package use the artifact's filesystem
// path as the handle.
type Handle = string

// Event is a single watcher notification.
type Event struct {
	Kind      EventKind
	Handle    Handle
	Timestamp time.Time
}

// Watcher is the contract consumed by the facade (spec §6). Events()
// returns a channel the facade drains until Close(); it never returns
// more than one event per filesystem change.
type Watcher interface {
	Events() <-chan Event
	Close() error
}
