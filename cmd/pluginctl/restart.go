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

var restartCmd = &cobra.Command{
	Use:   "restart <id>",
	Short: "Install --plugin entries, start <id>, then restart it (stop-then-start)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		f, err := buildFacade(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() { _ = f.Shutdown(ctx) }()

		if err := f.Start(ctx, args[0]); err != nil {
			return err
		}
		if err := f.Restart(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("restarted %s\n", args[0])
		printDescriptors(f.List())
		return nil
	},
}
