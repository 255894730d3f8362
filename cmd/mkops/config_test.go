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
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/WilsonBarr/marketplace-ops/pkg/config"
)

func TestConfigInit(t *testing.T) {
	g := NewWithT(t)
	cfgPath := filepath.Join(t.TempDir(), "config")
	defer func() { rootArgs.configPath = "" }()

	_, err := executeCommand("config init --config " + cfgPath)
	g.Expect(err).NotTo(HaveOccurred())

	data, err := os.ReadFile(cfgPath)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("namespace: marketplace"))
}

func TestConfigFlagOverridesPath(t *testing.T) {
	g := NewWithT(t)
	cfgPath := filepath.Join(t.TempDir(), "config")
	defer func() { rootArgs.configPath = "" }()

	c := config.NewConfig()
	c.Namespace = "marketplace-alt"
	g.Expect(c.Write(cfgPath)).To(Succeed())

	output, err := executeCommand("config view --config " + cfgPath)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring("namespace: marketplace-alt"))
}

func TestConfigView(t *testing.T) {
	g := NewWithT(t)

	output, err := executeCommand("config view")
	g.Expect(err).NotTo(HaveOccurred())

	for _, key := range []string{"namespace:", "templateDir:", "composeFile:"} {
		g.Expect(output).To(ContainSubstring(key))
	}
}
