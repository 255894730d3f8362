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

package recipe

import (
	"context"
)

// Recipe is a named, ordered sequence of steps triggered by an operator
// command. Prerequisites are executed depth-first, left to right, before
// the recipe's own steps.
type Recipe struct {
	// Name is the unique identifier the operator invokes.
	Name string

	// Summary is a one line description shown by the list command.
	Summary string

	// Needs holds the prerequisite recipe names, executed in declared
	// order before the recipe body. Repeated references are re-executed.
	Needs []string

	// Steps is the recipe body.
	Steps []Step
}

// Step is a single unit of a recipe body.
type Step struct {
	// Desc names the step in error reports.
	Desc string

	// Run performs the step. Side effects are entirely external.
	Run func(ctx context.Context, params *Params) error

	// IgnoreFailure lets the chain continue when this step fails,
	// for steps that are expected to sometimes fail, such as stopping
	// a process that may not be running.
	IgnoreFailure bool
}
