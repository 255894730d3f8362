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

// Package ops defines the fixed recipe set of the marketplace project:
// local development lifecycle, database lifecycle, cluster operations
// and data transfer.
package ops

import (
	"time"

	"github.com/WilsonBarr/marketplace-ops/pkg/config"
	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
	"github.com/WilsonBarr/marketplace-ops/pkg/reconciler"
	"github.com/WilsonBarr/marketplace-ops/pkg/runner"
	"github.com/WilsonBarr/marketplace-ops/pkg/template"
	"github.com/WilsonBarr/marketplace-ops/pkg/upload"
)

// AppName is the deployment name stamped on all managed cluster objects.
const AppName = "marketplace"

// DataName is the inventory name tracking the persistent data objects.
const DataName = "marketplace-data"

// Deps carries the collaborators recipes act through. The cluster
// reconciler is constructed lazily so local recipes never touch the
// kubeconfig.
type Deps struct {
	Config  *config.Config
	Runner  runner.Runner
	Logger  recipe.Logger
	Cluster func() (*reconciler.Reconciler, error)
	Timeout time.Duration
}

// NewRegistry builds the recipe registry with the complete command
// surface of the marketplace project.
func NewRegistry(deps Deps) *recipe.Registry {
	reg := recipe.NewRegistry(deps.Logger)

	reg.Register(lifecycleRecipes(deps)...)
	reg.Register(serviceRecipes(deps)...)
	reg.Register(clusterRecipes(deps)...)
	reg.Register(dataRecipes(deps)...)

	return reg
}

func (d Deps) templates() template.Dir {
	return template.Dir{Path: d.Config.TemplateDir}
}

func (d Deps) uploader(proxy bool) *upload.Uploader {
	u := &upload.Uploader{
		URL:            d.Config.IngressURL,
		RecipientsFile: d.Config.AgeRecipients,
		Timeout:        d.Timeout,
	}
	if proxy {
		u.ProxyURL = d.Config.ProxyURL
	}
	return u
}
