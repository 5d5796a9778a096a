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

package depres

import (
	"testing"

	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDep(t *testing.T, raw string) plugin.DependencySpec {
	t.Helper()
	d, err := plugin.ParseDependencySpec(raw)
	require.NoError(t, err)
	return d
}

func indexOf(plugins []plugin.Metadata, id string) int {
	for i, p := range plugins {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func TestResolve_LinearOrder(t *testing.T) {
	a := plugin.Metadata{ID: "A", Version: "1.0.0"}
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "A>=1.0.0")}}
	c := plugin.Metadata{ID: "C", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "B")}}

	order, err := Resolve([]plugin.Metadata{c, a, b})
	require.NoError(t, err)
	require.Len(t, order, 3)

	assert.Less(t, indexOf(order, "A"), indexOf(order, "B"))
	assert.Less(t, indexOf(order, "B"), indexOf(order, "C"))
}

func TestResolve_Cycle(t *testing.T) {
	a := plugin.Metadata{ID: "A", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "B")}}
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "A")}}

	_, err := Resolve([]plugin.Metadata{a, b})
	require.Error(t, err)

	var cycleErr *perr.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Cycle, "A")
	assert.Contains(t, cycleErr.Cycle, "B")
}

func TestResolve_IncompatibleVersion(t *testing.T) {
	a := plugin.Metadata{ID: "A", Version: "1.0.0"}
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "A>=2.0.0")}}

	_, err := Resolve([]plugin.Metadata{a, b})
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindIncompatibleDependency))
}

func TestResolve_DependencyNotFound(t *testing.T) {
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "A")}}

	_, err := Resolve([]plugin.Metadata{b})
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindDependencyNotFound))
}

func TestResolve_OptionalDependencyAbsent(t *testing.T) {
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "?x>=1")}}

	order, err := Resolve([]plugin.Metadata{b})
	require.NoError(t, err)
	require.Len(t, order, 1)
}

func TestResolve_OptionalDependencyPresentButIncompatible(t *testing.T) {
	x := plugin.Metadata{ID: "x", Version: "0.9"}
	b := plugin.Metadata{ID: "B", Version: "1.0.0", Dependencies: []plugin.DependencySpec{mustDep(t, "?x>=1")}}

	_, err := Resolve([]plugin.Metadata{x, b})
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindIncompatibleDependency))
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, plugin.CompareVersions("1.0", "1.0.0"))
	assert.Equal(t, 1, plugin.CompareVersions("1.10", "1.2"))
	assert.Equal(t, 0, plugin.CompareVersions("1.0-SNAPSHOT", "1.0"))
}
