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

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

func dataRecipes(deps Deps) []*recipe.Recipe {
	cfg := deps.Config

	uploadStep := func(proxy bool) recipe.Step {
		return recipe.Step{
			Desc: "upload archive",
			Run: func(ctx context.Context, params *recipe.Params) error {
				file, err := params.Require("file")
				if err != nil {
					return err
				}
				uploader := deps.uploader(proxy)
				if proxy && uploader.ProxyURL == "" {
					return &recipe.ConfigurationError{Reason: "no proxy URL configured", Missing: []string{"proxyURL"}}
				}
				status, err := uploader.Upload(ctx, file)
				if err != nil {
					return err
				}
				deps.Logger.Println("✔", fmt.Sprintf("uploaded %s: %s", file, status))
				return nil
			},
		}
	}

	return []*recipe.Recipe{
		{
			Name:    "local-upload-data",
			Summary: "Load a data file into the local server.",
			Steps: []recipe.Step{
				{
					Desc: "manage loaddata",
					Run: func(ctx context.Context, params *recipe.Params) error {
						file, err := params.Require("file")
						if err != nil {
							return err
						}
						return deps.Runner.Exec(ctx, cfg.Manage, "loaddata", file)
					},
				},
			},
		},
		{
			Name:    "upload-data",
			Summary: "Archive a data file and post it to the ingress service.",
			Steps:   []recipe.Step{uploadStep(false)},
		},
		{
			Name:    "upload-proxy-data",
			Summary: "Archive a data file and post it to the ingress service through the proxy.",
			Steps:   []recipe.Step{uploadStep(true)},
		},
		{
			Name:    "sample-data",
			Summary: "Generate the sample data set.",
			Steps: []recipe.Step{
				{
					Desc: "manage sample_data",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, cfg.Manage, "sample_data")
					},
				},
			},
		},
	}
}
