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

package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

func TestReadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Read(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(NewConfig(), cfg); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	cfg := NewConfig()
	cfg.Namespace = "marketplace-staging"
	cfg.IngressURL = "https://ingress.example.com/upload"
	if err := cfg.Write(path); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestEnvironmentOverlay(t *testing.T) {
	t.Setenv("MARKETPLACE_NAMESPACE", "marketplace-env")
	t.Setenv("MARKETPLACE_PROXY_URL", "http://proxy.internal:3128")

	cfg, err := Read(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Namespace != "marketplace-env" {
		t.Errorf("expected namespace from environment, got '%s'", cfg.Namespace)
	}
	if cfg.ProxyURL != "http://proxy.internal:3128" {
		t.Errorf("expected proxy from environment, got '%s'", cfg.ProxyURL)
	}
}

func TestValidateReportsAllMissingKeys(t *testing.T) {
	cfg := NewConfig()
	cfg.Namespace = ""
	cfg.Manage = ""
	cfg.Image = ""

	err := cfg.Validate()
	var cfgErr *recipe.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}

	expected := []string{"image", "manage", "namespace"}
	if diff := cmp.Diff(expected, cfgErr.Missing); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}
