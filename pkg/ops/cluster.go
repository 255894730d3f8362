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

	"github.com/Masterminds/semver/v3"
	"github.com/fluxcd/pkg/ssa"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/WilsonBarr/marketplace-ops/pkg/forward"
	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
	"github.com/WilsonBarr/marketplace-ops/pkg/reconciler"
	"github.com/WilsonBarr/marketplace-ops/pkg/template"
)

func clusterRecipes(deps Deps) []*recipe.Recipe {
	cfg := deps.Config

	return []*recipe.Recipe{
		{
			Name:    "oc-up",
			Summary: "Start the local cluster after checking the oc client version.",
			Steps: []recipe.Step{
				{
					Desc: "check oc client version",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return checkOCVersion(ctx, deps)
					},
				},
				{
					Desc: "oc cluster up",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "oc", "cluster", "up")
					},
				},
			},
		},
		{
			Name:    "oc-down",
			Summary: "Stop the local cluster.",
			Steps: []recipe.Step{
				{
					Desc: "oc cluster down",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "oc", "cluster", "down")
					},
				},
			},
		},
		{
			Name:    "oc-clean",
			Summary: "Stop the local cluster and remove its state directories.",
			Needs:   []string{"oc-down"},
			Steps: []recipe.Step{
				{
					Desc: "remove cluster state",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return os.RemoveAll("openshift.local.clusterup")
					},
				},
			},
		},
		{
			Name:    "oc-login-admin",
			Summary: "Log the oc session in as the cluster administrator.",
			Steps: []recipe.Step{
				{
					Desc: "oc login admin",
					Run: func(ctx context.Context, params *recipe.Params) error {
						password, err := params.Require("MARKETPLACE_ADMIN_PASSWORD")
						if err != nil {
							return err
						}
						return deps.Runner.Exec(ctx, "oc", "login", "-u", "system:admin", "-p", password)
					},
				},
			},
		},
		{
			Name:    "oc-login-developer",
			Summary: "Log the oc session in as the developer account.",
			Steps: []recipe.Step{
				{
					Desc: "oc login developer",
					Run: func(ctx context.Context, params *recipe.Params) error {
						password, err := params.Require("MARKETPLACE_DEVELOPER_PASSWORD")
						if err != nil {
							return err
						}
						return deps.Runner.Exec(ctx, "oc", "login", "-u", "developer", "-p", password)
					},
				},
			},
		},
		{
			Name:    "oc-project",
			Summary: "Ensure the marketplace namespace exists and select it.",
			Steps: []recipe.Step{
				{
					Desc: "ensure namespace",
					Run: func(ctx context.Context, params *recipe.Params) error {
						cluster, err := deps.Cluster()
						if err != nil {
							return err
						}
						return cluster.EnsureNamespace(ctx, cfg.Namespace)
					},
				},
				{
					Desc: "oc project",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "oc", "project", cfg.Namespace)
					},
				},
			},
		},
		{
			Name:    "oc-create-secret",
			Summary: "Create or update the database credentials secret.",
			Needs:   []string{"oc-project"},
			Steps: []recipe.Step{
				{
					Desc: "reconcile secret template",
					Run: func(ctx context.Context, params *recipe.Params) error {
						if _, err := params.Require("MARKETPLACE_DB_PASSWORD"); err != nil {
							return err
						}
						return ensureTemplate(ctx, deps, AppName, "secret", params)
					},
				},
			},
		},
		{
			Name:    "oc-deploy",
			Summary: "Deploy the marketplace application and its data objects.",
			Needs:   []string{"oc-project", "oc-create-secret"},
			Steps: []recipe.Step{
				{
					Desc: "reconcile data template",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return ensureTemplate(ctx, deps, DataName, "data", params)
					},
				},
				{
					Desc: "apply application manifests",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return applyDeployment(ctx, deps, params)
					},
				},
			},
		},
		{
			Name:    "oc-server-migrate",
			Summary: "Run the database migrations inside the deployed server.",
			Steps: []recipe.Step{
				{
					Desc: "migrate in pod",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deps.Runner.Exec(ctx, "oc", "-n", cfg.Namespace, "exec",
							"deployment/marketplace", "--", "python", "manage.py", "migrate")
					},
				},
			},
		},
		{
			Name:    "oc-delete-marketplace",
			Summary: "Delete every marketplace object recorded in the inventory.",
			Steps: []recipe.Step{
				{
					Desc: "delete inventory objects",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deleteInventory(ctx, deps, AppName)
					},
				},
			},
		},
		{
			Name:    "oc-delete-marketplace-data",
			Summary: "Delete the persistent data objects recorded in the data inventory.",
			Steps: []recipe.Step{
				{
					Desc: "delete data inventory objects",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return deleteInventory(ctx, deps, DataName)
					},
				},
			},
		},
		{
			Name:    "oc-refresh",
			Summary: "Redeploy the server when the image digest changed in the registry.",
			Steps: []recipe.Step{
				{
					Desc: "refresh deployment",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return refreshDeployment(ctx, deps)
					},
				},
			},
		},
		{
			Name:    "oc-forward-ports",
			Summary: "Forward the database service port to localhost in the background.",
			Steps: []recipe.Step{
				{
					Desc: "start port-forward",
					Run: func(ctx context.Context, params *recipe.Params) error {
						fwd, err := forward.Start(cfg.DataDir, "oc",
							"-n", cfg.Namespace, "port-forward", "svc/marketplace-db",
							fmt.Sprintf("%d:%d", cfg.DBPort, cfg.DBPort))
						if err != nil {
							return err
						}
						return fwd.WaitReady(fmt.Sprintf("127.0.0.1:%d", cfg.DBPort), deps.Timeout)
					},
				},
			},
		},
		{
			Name:    "oc-stop-forwarding-ports",
			Summary: "Stop the background port-forward if one is running.",
			Steps: []recipe.Step{
				{
					Desc: "stop port-forward",
					Run: func(ctx context.Context, params *recipe.Params) error {
						return forward.StopByPidFile(cfg.DataDir)
					},
					// nothing may be running
					IgnoreFailure: true,
				},
			},
		},
	}
}

func checkOCVersion(ctx context.Context, deps Deps) error {
	output, err := deps.Runner.Output(ctx, "oc", "version", "--client", "--short")
	if err != nil {
		return err
	}

	current, err := semver.NewVersion(parseOCVersion(output))
	if err != nil {
		return fmt.Errorf("parsing oc version from '%s' failed: %w", output, err)
	}

	min, err := semver.NewVersion(deps.Config.MinOCVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum oc version '%s': %w", deps.Config.MinOCVersion, err)
	}

	if current.LessThan(min) {
		return fmt.Errorf("oc client %s is older than the minimum %s", current, min)
	}
	return nil
}

// ensureTemplate renders the named template and reconciles its objects
// with create-or-apply semantics, recording them in the inventory.
func ensureTemplate(ctx context.Context, deps Deps, inventoryName, templateName string, params *recipe.Params) error {
	cluster, err := deps.Cluster()
	if err != nil {
		return err
	}

	manifest, err := deps.templates().Render(templateName, params)
	if err != nil {
		return err
	}
	objects, err := template.Objects(manifest)
	if err != nil {
		return err
	}

	if err := cluster.EnsureNamespace(ctx, deps.Config.Namespace); err != nil {
		return err
	}

	changeSet, err := cluster.Ensure(ctx, inventoryName, deps.Config.Namespace, objects)
	if err != nil {
		return err
	}
	for _, entry := range changeSet.Entries {
		deps.Logger.Println(entry.String())
	}

	return saveInventory(ctx, cluster, deps, inventoryName, objects)
}

// applyDeployment builds the deployment overlay and applies it in
// stages, waiting for readiness.
func applyDeployment(ctx context.Context, deps Deps, params *recipe.Params) error {
	cluster, err := deps.Cluster()
	if err != nil {
		return err
	}

	params.WithDefault("IMAGE", deps.Config.Image)
	params.WithDefault("IMAGE_TAG", deps.Config.ImageTag)
	params.WithDefault("NAMESPACE", deps.Config.Namespace)

	var manifest []byte
	overlay := deps.templates().Path + "/overlay"
	if _, err := os.Stat(overlay + "/kustomization.yaml"); err == nil {
		manifest, err = template.BuildKustomization(overlay)
		if err != nil {
			return err
		}
	} else {
		manifest, err = deps.templates().Render("marketplace", params)
		if err != nil {
			return err
		}
	}

	objects, err := template.Objects(manifest)
	if err != nil {
		return err
	}

	waitOpts := ssa.DefaultWaitOptions()
	waitOpts.Timeout = deps.Timeout

	changeSet, err := cluster.Apply(ctx, AppName, deps.Config.Namespace, objects, waitOpts)
	if err != nil {
		return err
	}
	for _, entry := range changeSet.Entries {
		deps.Logger.Println(entry.String())
	}

	return saveInventory(ctx, cluster, deps, AppName, objects)
}

// saveInventory merges the applied objects into the recorded inventory
// so a later delete removes everything ever applied under the name.
func saveInventory(ctx context.Context, cluster *reconciler.Reconciler, deps Deps, name string, objects []*unstructured.Unstructured) error {
	inv := reconciler.NewInventory(name, deps.Config.Namespace)
	if err := inv.AddObjects(objects); err != nil {
		return err
	}

	existing := reconciler.NewInventory(name, deps.Config.Namespace)
	if err := cluster.GetInventory(ctx, existing); err == nil {
		seen := map[string]bool{}
		for _, entry := range inv.Entries {
			seen[entry.ObjectID] = true
		}
		for _, entry := range existing.Entries {
			if !seen[entry.ObjectID] {
				inv.Entries = append(inv.Entries, entry)
			}
		}
	} else if !apierrors.IsNotFound(err) {
		return err
	}

	return cluster.SaveInventory(ctx, inv)
}

func deleteInventory(ctx context.Context, deps Deps, name string) error {
	cluster, err := deps.Cluster()
	if err != nil {
		return err
	}

	inv := reconciler.NewInventory(name, deps.Config.Namespace)
	if err := cluster.GetInventory(ctx, inv); err != nil {
		if apierrors.IsNotFound(err) {
			deps.Logger.Println("⚠", fmt.Sprintf("no inventory found for '%s', nothing to delete", name))
			return nil
		}
		return err
	}

	objects, err := inv.ListObjects()
	if err != nil {
		return err
	}

	changeSet, err := cluster.Delete(ctx, objects)
	if err != nil {
		return err
	}
	for _, entry := range changeSet.Entries {
		deps.Logger.Println(entry.String())
	}

	return cluster.DeleteInventory(ctx, inv)
}
