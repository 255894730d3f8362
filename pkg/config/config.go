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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

const (
	ConfigKind       = "Config"
	ConfigApiVersion = "marketplace.dev/v1"
	FieldManagerName = "marketplace-ops"

	// EnvPrefix is the prefix of all environment overrides.
	EnvPrefix = "MARKETPLACE_"
)

// Config holds the operator-facing settings of the marketplace ops tool.
// Credentials are deliberately absent: they are read from the environment
// on use and never persisted.
type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Namespace is the cluster namespace holding the marketplace deployment.
	Namespace string `json:"namespace"`

	// TemplateDir holds the manifest templates and their parameter files
	// under '<templateDir>/<name>.yaml' and '<templateDir>/parameters/<name>.env'.
	TemplateDir string `json:"templateDir"`

	// DataDir is the local database data directory removed by clean-db.
	DataDir string `json:"dataDir"`

	// StaticDir is the collected static assets directory.
	StaticDir string `json:"staticDir"`

	// ComposeFile is the docker-compose file that runs the local database.
	ComposeFile string `json:"composeFile"`

	// Manage is the management command invocation, e.g. 'python manage.py'.
	Manage string `json:"manage"`

	// Image is the application image reference without tag.
	Image string `json:"image"`

	// ImageTag is the application image tag built and deployed.
	ImageTag string `json:"imageTag"`

	// IngressURL is the upload endpoint that accepts data archives.
	IngressURL string `json:"ingressURL,omitempty"`

	// ProxyURL routes upload-proxy-data through an HTTP proxy.
	ProxyURL string `json:"proxyURL,omitempty"`

	// DBPort is the local database port probed for readiness.
	DBPort int `json:"dbPort"`

	// AgeRecipients optionally points to an age recipients file; when set,
	// uploaded archives are encrypted before leaving the machine.
	AgeRecipients string `json:"ageRecipients,omitempty"`

	// MinOCVersion is the minimum accepted oc client version.
	MinOCVersion string `json:"minOCVersion"`
}

// NewConfig returns a config with the development defaults.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigApiVersion,
		},
		Namespace:    "marketplace",
		TemplateDir:  "deploy/templates",
		DataDir:      "data/db",
		StaticDir:    "static",
		ComposeFile:  "docker-compose.yml",
		Manage:       "python manage.py",
		Image:        "marketplace/server",
		ImageTag:     "latest",
		DBPort:       5432,
		MinOCVersion: "3.11.0",
	}
}

// DefaultConfigPath returns '$HOME/.mkops/config'.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".mkops/config"), nil
}

// Read loads the config from the specified path and applies the
// environment overrides. If the config file is not found, the defaults
// are used.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	cfg := NewConfig()
	if _, err := os.Stat(configPath); !errors.Is(err, os.ErrNotExist) {
		cfgData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(cfgData, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the MARKETPLACE_* environment variables on the config.
func (c *Config) applyEnv() {
	for key, target := range map[string]*string{
		EnvPrefix + "NAMESPACE":      &c.Namespace,
		EnvPrefix + "TEMPLATE_DIR":   &c.TemplateDir,
		EnvPrefix + "DATA_DIR":       &c.DataDir,
		EnvPrefix + "STATIC_DIR":     &c.StaticDir,
		EnvPrefix + "COMPOSE_FILE":   &c.ComposeFile,
		EnvPrefix + "MANAGE":         &c.Manage,
		EnvPrefix + "IMAGE":          &c.Image,
		EnvPrefix + "IMAGE_TAG":      &c.ImageTag,
		EnvPrefix + "INGRESS_URL":    &c.IngressURL,
		EnvPrefix + "PROXY_URL":      &c.ProxyURL,
		EnvPrefix + "AGE_RECIPIENTS": &c.AgeRecipients,
	} {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
}

// Validate reports all missing required keys in a single error instead of
// failing on the first one encountered.
func (c *Config) Validate() error {
	required := map[string]string{
		"namespace":   c.Namespace,
		"templateDir": c.TemplateDir,
		"dataDir":     c.DataDir,
		"staticDir":   c.StaticDir,
		"composeFile": c.ComposeFile,
		"manage":      c.Manage,
		"image":       c.Image,
		"imageTag":    c.ImageTag,
	}

	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &recipe.ConfigurationError{Reason: "incomplete configuration", Missing: missing}
	}
	return nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.mkops/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, cfgData, os.FileMode(0666))
}
