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
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Install --plugin entries, start them all, then print a one-shot health snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		f, err := buildFacade(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() { _ = f.Shutdown(ctx) }()

		for _, d := range f.List() {
			if err := f.Start(ctx, d.Metadata.ID); err != nil {
				return fmt.Errorf("start %s: %w", d.Metadata.ID, err)
			}
		}

		records, err := f.Health(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no plugins installed")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%-20s %-8s %s\n", r.PluginID, r.Status, r.Message)
		}
		return nil
	},
}
