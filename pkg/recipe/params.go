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

package recipe

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Params holds the named string parameters substituted into recipe steps.
// Lookup order is explicit overrides first, then the process environment,
// then recipe defaults.
type Params struct {
	overrides map[string]string
	defaults  map[string]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{
		overrides: map[string]string{},
		defaults:  map[string]string{},
	}
}

// ParseParams builds a parameter set from 'key=value' command line arguments.
func ParseParams(args []string) (*Params, error) {
	p := NewParams()
	for _, arg := range args {
		k, v, found := cut(arg, "=")
		if !found || k == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid parameter '%s', expected key=value", arg)}
		}
		p.overrides[k] = v
	}
	return p, nil
}

// WithDefault sets a fallback value used when neither an override nor an
// environment variable provides the key.
func (p *Params) WithDefault(key, value string) *Params {
	if p.defaults == nil {
		p.defaults = map[string]string{}
	}
	p.defaults[key] = value
	return p
}

// Set records an explicit override.
func (p *Params) Set(key, value string) {
	if p.overrides == nil {
		p.overrides = map[string]string{}
	}
	p.overrides[key] = value
}

// Lookup resolves a parameter value.
func (p *Params) Lookup(key string) (string, bool) {
	if v, ok := p.overrides[key]; ok {
		return v, true
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	if v, ok := p.defaults[key]; ok {
		return v, true
	}
	return "", false
}

// Require resolves a parameter value or fails with a ConfigurationError.
func (p *Params) Require(key string) (string, error) {
	if v, ok := p.Lookup(key); ok {
		return v, nil
	}
	return "", &ConfigurationError{Reason: "missing required parameter", Missing: []string{key}}
}

// Expand substitutes ${key} references in the given template string.
// Unknown references fail instead of expanding to an empty string.
func (p *Params) Expand(template string) (string, error) {
	var missing []string
	expanded := os.Expand(template, func(key string) string {
		if v, ok := p.Lookup(key); ok {
			return v
		}
		missing = append(missing, key)
		return ""
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &ConfigurationError{Reason: "missing required parameter", Missing: missing}
	}
	return expanded, nil
}

func cut(s, sep string) (string, string, bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
