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

	"github.com/WilsonBarr/marketplace-ops/pkg/forward"
	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

func serviceRecipes(deps Deps) []*recipe.Recipe {
	cfg := deps.Config

	composeDown := recipe.Step{
		Desc: "compose down",
		Run: func(ctx context.Context, params *recipe.Params) error {
			return deps.Runner.Exec(ctx, "docker-compose", "-f", cfg.ComposeFile, "down")
		},
	}
	composeUp := recipe.Step{
		Desc: "compose up",
		Run: func(ctx context.Context, params *recipe.Params) error {
			return deps.Runner.Exec(ctx, "docker-compose", "-f", cfg.ComposeFile, "up", "-d")
		},
	}
	waitDB := recipe.Step{
		Desc: "wait for database",
		Run: func(ctx context.Context, params *recipe.Params) error {
			return forward.WaitForListener(fmt.Sprintf("127.0.0.1:%d", cfg.DBPort), deps.Timeout)
		},
	}
	removeData := recipe.Step{
		Desc: "remove data directory",
		Run: func(ctx context.Context, params *recipe.Params) error {
			return os.RemoveAll(cfg.DataDir)
		},
	}
	migrate := recipe.Step{
		Desc: "manage migrate",
		Run: func(ctx context.Context, params *recipe.Params) error {
			return deps.Runner.Exec(ctx, cfg.Manage, "migrate")
		},
	}

	return []*recipe.Recipe{
		{
			Name:    "serve",
			Summary: "Run the development server against the local database.",
			Needs:   []string{"start-db"},
			Steps: []recipe.Step{
				{
					Desc: "manage runserver",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, cfg.Manage, "runserver")
					},
				},
			},
		},
		{
			Name:    "server-migrate",
			Summary: "Apply the database migrations locally.",
			Steps:   []recipe.Step{migrate},
		},
		{
			Name:    "server-static",
			Summary: "Collect the static assets.",
			Steps: []recipe.Step{
				{
					Desc: "manage collectstatic",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, cfg.Manage, "collectstatic", "--noinput")
					},
				},
			},
		},
		{
			Name:    "server-init",
			Summary: "Initialize a fresh server: migrations, static assets, admin account.",
			Needs:   []string{"server-migrate", "server-static"},
			Steps: []recipe.Step{
				{
					Desc: "manage createsuperuser",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, cfg.Manage, "createsuperuser", "--noinput")
					},
					// fails when the account already exists
					IgnoreFailure: true,
				},
			},
		},
		{
			Name:    "start-db",
			Summary: "Start the local database and wait until it accepts connections.",
			Steps:   []recipe.Step{composeUp, waitDB},
		},
		{
			Name:    "clean-db",
			Summary: "Stop the local database and remove its data directory.",
			Steps:   []recipe.Step{composeDown, removeData},
		},
		{
			Name:    "reinit-db",
			Summary: "Recreate the local database from scratch and apply migrations.",
			Steps:   []recipe.Step{composeDown, removeData, composeUp, waitDB, migrate},
		},
	}
}
