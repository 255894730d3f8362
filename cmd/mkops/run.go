/*
Copyright 2023 The Marketplace Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WilsonBarr/marketplace-ops/pkg/ops"
	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

var runCmd = &cobra.Command{
	Use:   "run <recipe> [key=value ...]",
	Short: "Run executes the named recipe with the given parameter overrides.",
	Example: `  mkops run reinit-db
  mkops run upload-data file=dump.json
  mkops run oc-create-secret`,
	RunE: runRunCmd,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("a recipe name is required")
	}

	params, err := recipe.ParseParams(args[1:])
	if err != nil {
		return err
	}

	registry := ops.NewRegistry(newDeps())

	// steps block until their process exits; the timeout only bounds
	// waits, readiness polls and uploads inside the recipes
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return registry.Run(ctx, args[0], params)
}
