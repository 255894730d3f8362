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
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Runner executes external tools on behalf of recipes.
type Runner interface {
	// Exec runs the command inheriting the process stdio.
	Exec(ctx context.Context, command string, args ...string) error

	// Output runs the command and returns its combined output.
	Output(ctx context.Context, command string, args ...string) (string, error)

	// Pipe runs the command feeding the given input on stdin.
	Pipe(ctx context.Context, input string, command string, args ...string) (string, error)
}

// ToolRunner shells out to external tools. The base command is split with
// shellwords so invocations like "docker-compose -f deploy/compose.yaml"
// or quoted arguments work as a single command string.
type ToolRunner struct {
	env []string
	dir string
}

func NewToolRunner() *ToolRunner {
	return &ToolRunner{}
}

// WithEnv returns a runner that appends the given variables to the
// inherited environment.
func (r *ToolRunner) WithEnv(env ...string) *ToolRunner {
	return &ToolRunner{env: append(r.env[:len(r.env):len(r.env)], env...), dir: r.dir}
}

// WithDir returns a runner that executes commands in the given directory.
func (r *ToolRunner) WithDir(dir string) *ToolRunner {
	return &ToolRunner{env: r.env, dir: dir}
}

func (r *ToolRunner) Exec(ctx context.Context, command string, args ...string) error {
	cmd, err := r.buildCmd(ctx, command, args)
	if err != nil {
		return err
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (r *ToolRunner) Output(ctx context.Context, command string, args ...string) (string, error) {
	cmd, err := r.buildCmd(ctx, command, args)
	if err != nil {
		return "", err
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s", string(output))
	}
	return strings.TrimSuffix(string(output), "\n"), nil
}

func (r *ToolRunner) Pipe(ctx context.Context, input string, command string, args ...string) (string, error) {
	cmd, err := r.buildCmd(ctx, command, args)
	if err != nil {
		return "", err
	}
	cmd.Stdin = strings.NewReader(input)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s", string(output))
	}
	return strings.TrimSuffix(string(output), "\n"), nil
}

func (r *ToolRunner) buildCmd(ctx context.Context, command string, args []string) (*exec.Cmd, error) {
	base, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing command '%s' failed: %w", command, err)
	}
	if len(base) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	s := append(base, args...)
	cmd := exec.CommandContext(ctx, s[0], s[1:]...)
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	cmd.Dir = r.dir
	return cmd, nil
}
