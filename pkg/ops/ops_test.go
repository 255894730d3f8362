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
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/WilsonBarr/marketplace-ops/pkg/config"
	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
	"github.com/WilsonBarr/marketplace-ops/pkg/reconciler"
	"github.com/WilsonBarr/marketplace-ops/pkg/runner"
)

type discardLogger struct{}

func (discardLogger) Println(a ...interface{}) {}

func newTestDeps(t *testing.T) (Deps, *runner.Recorder) {
	t.Helper()
	rec := runner.NewRecorder()

	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.StaticDir = filepath.Join(t.TempDir(), "static")
	cfg.TemplateDir = t.TempDir()

	deps := Deps{
		Config: cfg,
		Runner: rec,
		Logger: discardLogger{},
		Cluster: func() (*reconciler.Reconciler, error) {
			return nil, fmt.Errorf("no cluster in this test")
		},
		Timeout: 5 * time.Second,
	}
	return deps, rec
}

func TestRegistryCommandSurface(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := NewRegistry(deps)

	expected := []string{
		"build",
		"clean",
		"clean-db",
		"lint",
		"local-upload-data",
		"oc-clean",
		"oc-create-secret",
		"oc-delete-marketplace",
		"oc-delete-marketplace-data",
		"oc-deploy",
		"oc-down",
		"oc-forward-ports",
		"oc-login-admin",
		"oc-login-developer",
		"oc-project",
		"oc-refresh",
		"oc-server-migrate",
		"oc-stop-forwarding-ports",
		"oc-up",
		"reinit-db",
		"sample-data",
		"serve",
		"server-init",
		"server-migrate",
		"server-static",
		"start-db",
		"test-coverage",
		"unittest",
		"upload-data",
		"upload-proxy-data",
	}

	var names []string
	for _, r := range reg.List() {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestReinitDBOrder(t *testing.T) {
	deps, rec := newTestDeps(t)

	// stand in for the database so the readiness poll succeeds
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	deps.Config.DBPort = ln.Addr().(*net.TCPAddr).Port

	reg := NewRegistry(deps)
	if err := reg.Run(context.Background(), "reinit-db", recipe.NewParams()); err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"docker-compose -f docker-compose.yml down",
		"docker-compose -f docker-compose.yml up -d",
		"python manage.py migrate",
	}
	if diff := cmp.Diff(expected, rec.Calls); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestBuildRunsCleanFirst(t *testing.T) {
	deps, rec := newTestDeps(t)
	reg := NewRegistry(deps)

	if err := reg.Run(context.Background(), "build", recipe.NewParams()); err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"docker build -t marketplace/server:latest .",
		"docker tag marketplace/server:latest marketplace/server:latest",
	}
	if diff := cmp.Diff(expected, rec.Calls); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestFailingStepAbortsRecipe(t *testing.T) {
	deps, rec := newTestDeps(t)
	rec.FailOn = []string{"docker-compose"}

	reg := NewRegistry(deps)
	err := reg.Run(context.Background(), "reinit-db", recipe.NewParams())

	var execErr *recipe.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if execErr.Step != "compose down" {
		t.Errorf("expected failure at 'compose down', got '%s'", execErr.Step)
	}
	if len(rec.Calls) != 1 {
		t.Errorf("expected the chain to stop after one call, got %v", rec.Calls)
	}
}

func TestOCUpChecksClientVersion(t *testing.T) {
	deps, rec := newTestDeps(t)
	rec.Outputs["version"] = "oc v3.11.0+0cbc58b"

	reg := NewRegistry(deps)
	if err := reg.Run(context.Background(), "oc-up", recipe.NewParams()); err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"oc version --client --short",
		"oc cluster up",
	}
	if diff := cmp.Diff(expected, rec.Calls); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestOCUpRejectsOldClient(t *testing.T) {
	deps, rec := newTestDeps(t)
	rec.Outputs["version"] = "oc v3.9.0+191fece"

	reg := NewRegistry(deps)
	err := reg.Run(context.Background(), "oc-up", recipe.NewParams())

	var execErr *recipe.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T: %v", err, err)
	}

	// the cluster must not be started with an old client
	if len(rec.Calls) != 1 {
		t.Errorf("expected only the version check to run, got %v", rec.Calls)
	}
}

func TestOCLoginRequiresPassword(t *testing.T) {
	deps, rec := newTestDeps(t)
	reg := NewRegistry(deps)

	err := reg.Run(context.Background(), "oc-login-admin", recipe.NewParams())
	var cfgErr *recipe.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if diff := cmp.Diff([]string{"MARKETPLACE_ADMIN_PASSWORD"}, cfgErr.Missing); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
	if len(rec.Calls) != 0 {
		t.Errorf("expected no oc invocation, got %v", rec.Calls)
	}
}

func TestStopForwardingPortsIgnoresMissingForwarder(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := NewRegistry(deps)

	// no pidfile exists, the failure is ignored
	if err := reg.Run(context.Background(), "oc-stop-forwarding-ports", recipe.NewParams()); err != nil {
		t.Fatal(err)
	}
}

func TestUploadDataRequiresFile(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := NewRegistry(deps)

	err := reg.Run(context.Background(), "upload-data", recipe.NewParams())
	var cfgErr *recipe.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if diff := cmp.Diff([]string{"file"}, cfgErr.Missing); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestUploadProxyDataRequiresProxyURL(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Config.ProxyURL = ""
	reg := NewRegistry(deps)

	params := recipe.NewParams()
	params.Set("file", "dump.json")

	err := reg.Run(context.Background(), "upload-proxy-data", params)
	var cfgErr *recipe.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestLocalUploadData(t *testing.T) {
	deps, rec := newTestDeps(t)
	reg := NewRegistry(deps)

	params := recipe.NewParams()
	params.Set("file", "dump.json")

	if err := reg.Run(context.Background(), "local-upload-data", params); err != nil {
		t.Fatal(err)
	}

	expected := []string{"python manage.py loaddata dump.json"}
	if diff := cmp.Diff(expected, rec.Calls); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestParseOCVersion(t *testing.T) {
	cases := map[string]string{
		"oc v3.11.0+0cbc58b":     "3.11.0",
		"Client Version: 4.6.16": "4.6.16",
		"oc v3.9.0+191fece":      "3.9.0",
	}
	for output, expected := range cases {
		if got := parseOCVersion(output); got != expected {
			t.Errorf("parseOCVersion(%q) = %q, expected %q", output, got, expected)
		}
	}
}
