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

// Package depres implements the dependency resolver (spec §4.3,
// component C3): it topologically orders a set of plugins and checks
// version constraints along the way.
package depres

import (
	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
)

type visitState uint8

const (
	unvisited visitState = iota
	inPath
	visited
)

// Resolve orders plugins such that every plugin appears after every
// plugin it depends on. It fails with a *perr.Error of kind
// dependency-not-found or incompatible-dependency, or with a
// *perr.CircularDependencyError, per spec §4.3.
func Resolve(plugins []plugin.Metadata) ([]plugin.Metadata, error) {
	byID := make(map[string]plugin.Metadata, len(plugins))
	for _, p := range plugins {
		byID[p.ID] = p
	}

	state := make(map[string]visitState, len(plugins))
	var path []string
	out := make([]plugin.Metadata, 0, len(plugins))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case inPath:
			cycle := append(append([]string{}, path...), id)
			return perr.CircularDependency("Resolve", cycle)
		case visited:
			return nil
		}

		state[id] = inPath
		path = append(path, id)

		p, ok := byID[id]
		if !ok {
			// Nothing to recurse into; callers only ever invoke visit
			// with ids drawn from byID or from a dependency spec
			// already checked for presence below.
			return nil
		}

		for _, dep := range p.Dependencies {
			target, present := byID[dep.ID]
			if !present {
				if dep.Optional {
					continue
				}
				return perr.DependencyNotFound("Resolve", id, dep.ID)
			}

			if !dep.AnyVersion() && !dep.Satisfies(target.Version) {
				return perr.IncompatibleDependency("Resolve", id, dep.ID, dep.String())
			}

			if err := visit(dep.ID); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[id] = visited
		out = append(out, p)
		return nil
	}

	for _, p := range plugins {
		if state[p.ID] == visited {
			continue
		}
		if err := visit(p.ID); err != nil {
			return nil, err
		}
	}

	return out, nil
}
