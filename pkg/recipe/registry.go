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
	"errors"
	"fmt"
	"sort"
)

// Logger receives progress output while recipes run.
type Logger interface {
	Println(a ...interface{})
}

// Registry resolves recipe names to recipes and executes them. It holds
// no state across invocations; all side effects are external.
type Registry struct {
	recipes map[string]*Recipe
	logger  Logger
}

func NewRegistry(logger Logger) *Registry {
	return &Registry{
		recipes: map[string]*Recipe{},
		logger:  logger,
	}
}

// Register adds a recipe. Recipe names are unique; a duplicate name is a
// programming error and panics at startup.
func (r *Registry) Register(recipes ...*Recipe) {
	for _, recipe := range recipes {
		if _, exists := r.recipes[recipe.Name]; exists {
			panic(fmt.Sprintf("recipe '%s' registered twice", recipe.Name))
		}
		r.recipes[recipe.Name] = recipe
	}
}

// Get returns the named recipe or a ConfigurationError.
func (r *Registry) Get(name string) (*Recipe, error) {
	recipe, ok := r.recipes[name]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown recipe '%s'", name)}
	}
	return recipe, nil
}

// List returns all recipes sorted by name.
func (r *Registry) List() []*Recipe {
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]*Recipe, 0, len(names))
	for _, name := range names {
		list = append(list, r.recipes[name])
	}
	return list
}

// Run executes the named recipe: prerequisites depth-first in declared
// order, then the recipe's own steps, aborting the whole chain on the
// first failing step unless that step ignores failures. A prerequisite
// referenced more than once runs more than once.
func (r *Registry) Run(ctx context.Context, name string, params *Params) error {
	recipe, err := r.Get(name)
	if err != nil {
		return err
	}

	for _, need := range recipe.Needs {
		if _, err := r.Get(need); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("recipe '%s' requires unknown recipe '%s'", name, need)}
		}
		if err := r.Run(ctx, need, params); err != nil {
			return err
		}
	}

	r.logger.Println("▶", recipe.Name)
	for _, step := range recipe.Steps {
		if err := step.Run(ctx, params); err != nil {
			if step.IgnoreFailure {
				r.logger.Println("⚠", fmt.Sprintf("step '%s' failed (ignored): %v", step.Desc, err))
				continue
			}
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				return err
			}
			return &ExecutionError{Recipe: recipe.Name, Step: step.Desc, Err: err}
		}
	}

	return nil
}
