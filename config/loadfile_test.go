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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFile_InfersFormatFromExtension(t *testing.T) {
	path := writeTemp(t, "config.yaml", yamlDocV2)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "broker", cfg.EventBus.Type)
	require.False(t, cfg.Health.Enabled)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
