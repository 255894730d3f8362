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
	"strings"
)

// ConfigurationError reports an operator mistake: an unknown recipe name,
// a missing required parameter or a missing template/parameter file.
type ConfigurationError struct {
	Reason  string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: [%s]", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// ExecutionError reports a recipe step whose underlying tool returned a
// failure status. The chain is halted at the first ExecutionError unless
// the failing step opted out with IgnoreFailure.
type ExecutionError struct {
	Recipe string
	Step   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("recipe '%s' failed at step '%s': %v", e.Recipe, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
