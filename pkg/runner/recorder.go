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

package runner

import (
	"context"
	"fmt"
	"strings"
)

// Recorder is a Runner for tests. It records every invocation and can be
// scripted to fail commands matching a substring.
type Recorder struct {
	Calls   []string
	Outputs map[string]string
	FailOn  []string
}

func NewRecorder() *Recorder {
	return &Recorder{Outputs: map[string]string{}}
}

func (r *Recorder) Exec(ctx context.Context, command string, args ...string) error {
	_, err := r.record(command, args)
	return err
}

func (r *Recorder) Output(ctx context.Context, command string, args ...string) (string, error) {
	return r.record(command, args)
}

func (r *Recorder) Pipe(ctx context.Context, input string, command string, args ...string) (string, error) {
	return r.record(command, args)
}

func (r *Recorder) record(command string, args []string) (string, error) {
	call := strings.Join(append([]string{command}, args...), " ")
	r.Calls = append(r.Calls, call)
	for _, fail := range r.FailOn {
		if strings.Contains(call, fail) {
			return "", fmt.Errorf("command '%s' failed", call)
		}
	}
	for match, output := range r.Outputs {
		if strings.Contains(call, match) {
			return output, nil
		}
	}
	return "", nil
}
