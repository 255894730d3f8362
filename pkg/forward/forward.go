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

// Package forward runs the cluster port-forward as a background process
// with an explicit handle. The process identity is kept in a pidfile so
// a later invocation can stop the forwarder without scanning the
// process table.
package forward

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"k8s.io/apimachinery/pkg/util/wait"
)

const pidFileName = "port-forward.pid"

// Forwarder is the handle of a running background port-forward.
type Forwarder struct {
	cmd     *exec.Cmd
	pidFile string
}

// Start spawns the given port-forward command detached from the current
// process and writes the pidfile under dir.
func Start(dir, command string, args ...string) (*Forwarder, error) {
	base, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing command '%s' failed: %w", command, err)
	}
	if len(base) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	s := append(base, args...)

	cmd := exec.Command(s[0], s[1:]...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting port-forward failed: %w", err)
	}

	if err := os.MkdirAll(dir, os.FileMode(0755)); err != nil {
		return nil, err
	}
	pidFile := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), os.FileMode(0644)); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	// reap the child when it exits so it doesn't linger as a zombie
	go func() { _ = cmd.Wait() }()

	return &Forwarder{cmd: cmd, pidFile: pidFile}, nil
}

// WaitReady polls the local address until it accepts TCP connections,
// instead of sleeping a fixed number of seconds.
func (f *Forwarder) WaitReady(addr string, timeout time.Duration) error {
	return waitForListener(addr, timeout)
}

// Stop terminates the forwarding process and removes the pidfile.
func (f *Forwarder) Stop() error {
	err := f.cmd.Process.Signal(syscall.SIGTERM)
	_ = os.Remove(f.pidFile)
	return err
}

// StopByPidFile terminates a forwarder started by a previous invocation.
// A missing pidfile or an already exited process is an error so callers
// can decide to ignore it.
func StopByPidFile(dir string) error {
	pidFile := filepath.Join(dir, pidFileName)
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("no port-forward pidfile at %s", pidFile)
	}
	defer os.Remove(pidFile)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid pidfile %s: %w", pidFile, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stopping port-forward pid %d failed: %w", pid, err)
	}
	return nil
}

func waitForListener(addr string, timeout time.Duration) error {
	return wait.PollImmediate(250*time.Millisecond, timeout, func() (bool, error) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false, nil
		}
		conn.Close()
		return true, nil
	})
}

// WaitForListener polls a local TCP address until it accepts
// connections, used as the readiness barrier for the local database.
func WaitForListener(addr string, timeout time.Duration) error {
	return waitForListener(addr, timeout)
}
