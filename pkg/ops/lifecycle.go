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

package ops

import (
	"context"
	"fmt"
	"os"

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

func lifecycleRecipes(deps Deps) []*recipe.Recipe {
	cfg := deps.Config

	return []*recipe.Recipe{
		{
			Name:    "clean",
			Summary: "Remove generated files: static assets, coverage reports, bytecode caches.",
			Steps: []recipe.Step{
				{
					Desc: "remove generated files",
					Run: func(ctx context.Context, params *recipe.Params) error {
						for _, path := range []string{cfg.StaticDir, ".coverage", "htmlcov"} {
							if err := os.RemoveAll(path); err != nil {
								return err
							}
						}
						return nil
					},
				},
			},
		},
		{
			Name:    "lint",
			Summary: "Run the style checks over the server sources.",
			Steps: []recipe.Step{
				{
					Desc: "flake8",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "flake8", "--max-line-length=120", "marketplace")
					},
				},
			},
		},
		{
			Name:    "unittest",
			Summary: "Run the server unit tests.",
			Steps: []recipe.Step{
				{
					Desc: "manage test",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, cfg.Manage, "test")
					},
				},
			},
		},
		{
			Name:    "test-coverage",
			Summary: "Run the unit tests under coverage and print the report.",
			Steps: []recipe.Step{
				{
					Desc: "coverage run",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "coverage run ./manage.py", "test")
					},
				},
				{
					Desc: "coverage report",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "coverage", "report", "-m")
					},
				},
			},
		},
		{
			Name:    "build",
			Summary: "Build the application container image.",
			Needs:   []string{"clean"},
			Steps: []recipe.Step{
				{
					Desc: "docker build",
					Run: func(ctx context.Context, params *recipe.Params) error {
						image := fmt.Sprintf("%s:%s", cfg.Image, cfg.ImageTag)
						return deps.Runner.Exec(ctx, "docker", "build", "-t", image, ".")
					},
				},
				{
					Desc: "docker tag latest",
					Run: func(ctx context.Context, params *recipe.Params) error {
						image := fmt.Sprintf("%s:%s", cfg.Image, cfg.ImageTag)
						return deps.Runner.Exec(ctx, "docker", "tag", image, cfg.Image+":latest")
					},
				},
			},
		},
	}
}
