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

package forward

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"
)

func TestStartWritesPidFile(t *testing.T) {
	dir := t.TempDir()

	fwd, err := Start(dir, "sleep 30")
	if err != nil {
		t.Fatal(err)
	}
	defer fwd.Stop()

	data, err := os.ReadFile(filepath.Join(dir, "port-forward.pid"))
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("invalid pidfile content '%s'", string(data))
	}

	if err := syscall.Kill(pid, 0); err != nil {
		t.Errorf("expected pid %d to be running: %v", pid, err)
	}
}

func TestStopRemovesPidFile(t *testing.T) {
	dir := t.TempDir()

	fwd, err := Start(dir, "sleep 30")
	if err != nil {
		t.Fatal(err)
	}

	if err := fwd.Stop(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "port-forward.pid")); !os.IsNotExist(err) {
		t.Error("expected pidfile to be removed")
	}
}

func TestStartQuotedCommand(t *testing.T) {
	dir := t.TempDir()

	fwd, err := Start(dir, "sh -c 'sleep 30'")
	if err != nil {
		t.Fatal(err)
	}
	defer fwd.Stop()

	// a mis-split quoted command would exit right away
	time.Sleep(200 * time.Millisecond)

	data, err := os.ReadFile(filepath.Join(dir, "port-forward.pid"))
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("invalid pidfile content '%s'", string(data))
	}

	if err := syscall.Kill(pid, 0); err != nil {
		t.Errorf("expected pid %d to be running: %v", pid, err)
	}
}

func TestStopByPidFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := Start(dir, "sleep 30"); err != nil {
		t.Fatal(err)
	}

	if err := StopByPidFile(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "port-forward.pid")); !os.IsNotExist(err) {
		t.Error("expected pidfile to be removed")
	}
}

func TestStopByPidFileMissing(t *testing.T) {
	if err := StopByPidFile(t.TempDir()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStartEmptyCommand(t *testing.T) {
	if _, err := Start(t.TempDir(), ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestWaitForListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if err := WaitForListener(ln.Addr().String(), 5*time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestWaitForListenerTimeout(t *testing.T) {
	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if err := WaitForListener(addr, time.Second); err == nil {
		t.Fatal("expected a timeout error")
	}
}
