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

// Command pluginctl is an operator CLI for exercising a plugin
// runtime's lifecycle (install/start/stop/restart/list/health) during
// development. It has no network surface and persists nothing across
// invocations: each run builds its own in-process manager.Facade,
// seeds it from --plugin flags, performs the requested operation, and
// shuts down.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimeWtr/pluginrt/log"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var zl zerolog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pluginctl",
	Short:   "Operate a plugin runtime instance",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pluginctl version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("config", "", "Path to a runtime config file (YAML/JSON/TOML); defaults built in if unset")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON instead of console output")
	rootCmd.PersistentFlags().StringArray("plugin", nil, "Seed plugin as id=name@version[,dep[,dep...]], repeatable")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(healthCmd)
}

func initLogging() {
	levelStr, _ := rootCmd.PersistentFlags().GetString("log-level")
	asJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if asJSON {
		zl = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
}

func runtimeLogger() log.Logger {
	return log.NewZerologAdapter(zl)
}
