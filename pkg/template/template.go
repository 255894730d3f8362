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

// Package template renders the manifest templates kept under the template
// directory. A template named 'db' lives at '<dir>/db.yaml' with optional
// defaults at '<dir>/parameters/db.env'; ${KEY} references are substituted
// from the parameter set before the manifest is parsed.
package template

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fluxcd/pkg/ssa"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/WilsonBarr/marketplace-ops/pkg/recipe"
)

// Dir locates templates and parameter files under a fixed layout.
type Dir struct {
	Path string
}

// Render loads the named template, overlays its parameter file defaults
// with the given parameters and substitutes all ${KEY} references.
func (d Dir) Render(name string, params *recipe.Params) ([]byte, error) {
	templatePath := filepath.Join(d.Path, name+".yaml")
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &recipe.ConfigurationError{Reason: fmt.Sprintf("template '%s' not found", templatePath)}
		}
		return nil, err
	}

	defaults, err := d.parameterFile(name)
	if err != nil {
		return nil, err
	}
	for key, value := range defaults {
		params.WithDefault(key, value)
	}

	rendered, err := params.Expand(string(data))
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

// Objects parses a rendered manifest into unstructured objects.
func Objects(manifest []byte) ([]*unstructured.Unstructured, error) {
	objects, err := ssa.ReadObjects(strings.NewReader(string(manifest)))
	if err != nil {
		return nil, fmt.Errorf("parsing manifest failed: %w", err)
	}
	return objects, nil
}

// parameterFile reads '<dir>/parameters/<name>.env'. A missing file is
// not an error; templates without parameters are common.
func (d Dir) parameterFile(name string) (map[string]string, error) {
	path := filepath.Join(d.Path, "parameters", name+".env")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	params := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			return nil, &recipe.ConfigurationError{Reason: fmt.Sprintf("invalid line '%s' in %s", line, path)}
		}
		params[line[:i]] = strings.Trim(line[i+1:], `"`)
	}
	return params, scanner.Err()
}
