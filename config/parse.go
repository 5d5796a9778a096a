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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ParseType identifies the serialization format of a configuration file.
type ParseType string

const (
	ParseTypeYAML ParseType = "YAML"
	ParseTypeJSON ParseType = "JSON"
	ParseTypeTOML ParseType = "TOML"
)

func (p ParseType) String() string { return string(p) }

func (p ParseType) valid() bool {
	switch p {
	case ParseTypeYAML, ParseTypeJSON, ParseTypeTOML:
		return true
	default:
		return false
	}
}

// ParseTypeFromExt infers a ParseType from a file extension such as
// ".yaml", ".yml", ".json" or ".toml". It defaults to ParseTypeYAML
// for anything unrecognized.
func ParseTypeFromExt(ext string) ParseType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return ParseTypeJSON
	case "toml":
		return ParseTypeTOML
	default:
		return ParseTypeYAML
	}
}

func parseYaml(data []byte) (Config, error) {
	cfg := Default()
	err := yaml.Unmarshal(data, &cfg)
	return cfg, err
}

func parseJSON(data []byte) (Config, error) {
	cfg := Default()
	err := json.Unmarshal(data, &cfg)
	return cfg, err
}

func parseToml(data []byte) (Config, error) {
	cfg := Default()
	err := toml.Unmarshal(data, &cfg)
	return cfg, err
}

// LoadFile reads and parses a configuration file once, inferring its
// format from the extension. For a long-lived process that must track
// edits, use FileProvider instead.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	switch ParseTypeFromExt(filepath.Ext(path)) {
	case ParseTypeJSON:
		return parseJSON(data)
	case ParseTypeTOML:
		return parseToml(data)
	default:
		return parseYaml(data)
	}
}
