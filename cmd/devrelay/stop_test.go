// Package main provides tests for the stop command.
package main

import (
	"os"
	"testing"
	"time"

	"github.com/devrelay/cli/internal/discovery"
)

// setStopDir points the stop command at a test project for one test.
func setStopDir(t *testing.T, dir string) {
	t.Helper()
	old := stopDir
	stopDir = dir
	t.Cleanup(func() { stopDir = old })
}

// TestRunStopNoRecord verifies that stop is a no-op without a record.
func TestRunStopNoRecord(t *testing.T) {
	proj := newTestProject(t)
	setStopDir(t, proj.Root)

	if err := runStop(stopCmd, nil); err != nil {
		t.Fatalf("runStop: %v", err)
	}
}

// TestRunStopClearsStaleRecord verifies that a record whose PID is gone
// is removed without signaling anything.
func TestRunStopClearsStaleRecord(t *testing.T) {
	proj := newTestProject(t)
	writeRecord(t, proj, "http://127.0.0.1:5173", reapedPID(t))
	setStopDir(t, proj.Root)

	if err := runStop(stopCmd, nil); err != nil {
		t.Fatalf("runStop: %v", err)
	}

	rec, err := discovery.Read(proj.DiscoveryPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Error("stale record still present after stop")
	}
}

// TestRunStopRefusesRecycledPID verifies that a live PID that is not a
// dev server process is never signaled; the record is just removed.
// The test binary's own PID stands in for the recycled process.
func TestRunStopRefusesRecycledPID(t *testing.T) {
	proj := newTestProject(t)
	writeRecord(t, proj, "http://127.0.0.1:5173", os.Getpid())
	setStopDir(t, proj.Root)

	if err := runStop(stopCmd, nil); err != nil {
		t.Fatalf("runStop: %v", err)
	}

	rec, err := discovery.Read(proj.DiscoveryPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec != nil {
		t.Error("record still present after stop")
	}
}

// TestAwaitProcessExit verifies both outcomes of the exit poll.
func TestAwaitProcessExit(t *testing.T) {
	t.Run("already gone", func(t *testing.T) {
		if !awaitProcessExit(reapedPID(t), time.Second) {
			t.Error("awaitProcessExit = false for a reaped process")
		}
	})

	t.Run("still running", func(t *testing.T) {
		if awaitProcessExit(os.Getpid(), 300*time.Millisecond) {
			t.Error("awaitProcessExit = true for the running test binary")
		}
	})
}
