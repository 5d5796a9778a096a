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

	"github.com/spf13/cobra"

	"github.com/TimeWtr/pluginrt/plugin"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Install --plugin entries and print every descriptor's current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		f, err := buildFacade(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() { _ = f.Shutdown(ctx) }()

		printDescriptors(f.List())
		return nil
	},
}

func printDescriptors(descs []plugin.Descriptor) {
	if len(descs) == 0 {
		fmt.Println("no plugins installed")
		return
	}
	for _, d := range descs {
		fmt.Printf("%-20s %-10s %s@%s\n", d.Metadata.ID, d.State, d.Metadata.Name, d.Metadata.Version)
	}
}
