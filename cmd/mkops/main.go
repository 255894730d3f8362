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
	"fmt"
	"os"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/WilsonBarr/marketplace-ops/pkg/config"
	"github.com/WilsonBarr/marketplace-ops/pkg/ops"
	"github.com/WilsonBarr/marketplace-ops/pkg/reconciler"
	"github.com/WilsonBarr/marketplace-ops/pkg/runner"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "mkops"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to build, run and deploy the marketplace server.",
	Long: `mkops drives the marketplace development and deployment workflows.

Local lifecycle:

- mkops run clean|lint|unittest|test-coverage|build
- mkops run serve|server-migrate|server-static|server-init
- mkops run start-db|clean-db|reinit-db

Cluster operations:

- mkops run oc-up|oc-down|oc-clean
- mkops run oc-login-admin|oc-login-developer|oc-project
- mkops run oc-create-secret|oc-deploy|oc-server-migrate|oc-refresh
- mkops run oc-delete-marketplace|oc-delete-marketplace-data
- mkops run oc-forward-ports|oc-stop-forwarding-ports

Data transfer:

- mkops run local-upload-data file=<path>
- mkops run upload-data file=<path>
- mkops run upload-proxy-data file=<path>
- mkops run sample-data
`,
	// the config is loaded after flag parsing so --config is honored
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Read(rootArgs.configPath)
		if err != nil {
			return fmt.Errorf("loading the config failed: %w", err)
		}
		cfg = c
		return nil
	},
}

type rootFlags struct {
	timeout    time.Duration
	configPath string
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
	owner    = ssa.Owner{
		Field: config.FieldManagerName,
		Group: "marketplace.dev",
	}
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", time.Minute,
		"The length of time to wait for cluster reconciliation, readiness checks and uploads.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", "",
		"Path to the config file, defaults to '$HOME/.mkops/config'.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	defaultNamespace := "marketplace"
	kubeconfigArgs.Namespace = &defaultNamespace
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n",
		*kubeconfigArgs.Namespace, "The marketplace namespace.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

// newDeps wires the recipe collaborators; the cluster reconciler is
// built on first use so local recipes work without a kubeconfig.
func newDeps() ops.Deps {
	if kubeconfigArgs.Namespace != nil && *kubeconfigArgs.Namespace != "" {
		cfg.Namespace = *kubeconfigArgs.Namespace
	}

	return ops.Deps{
		Config:  cfg,
		Runner:  runner.NewToolRunner(),
		Logger:  logger,
		Timeout: rootArgs.timeout,
		Cluster: func() (*reconciler.Reconciler, error) {
			resMgr, err := newResourceManager(kubeconfigArgs)
			if err != nil {
				return nil, fmt.Errorf("client init failed: %w", err)
			}
			return reconciler.New(resMgr, owner, logger), nil
		},
	}
}
