// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup manages process-group lifecycles so that a child and every
// process it spawned can be terminated together.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

var (
	// ErrKillFailed is returned when a process did not exit within the grace period
	// after it was killed.
	ErrKillFailed = errors.New("kill operation failed")
)

// Set configures the command to start in a new process group.
// Mandatory for ForceKill and Terminate to reach grandchildren.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// ForceKill sends SIGKILL to the whole process group of cmd and waits up to grace
// for waitCh (the result of cmd.Wait) to report the exit.
// It returns ErrKillFailed when the exit was not observed in time.
// It is safe to call on nil commands (returns nil).
func ForceKill(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	signalGroup(cmd, sigKill)
	return awaitExit(waitCh, grace, "forced")
}

// Terminate attempts to gracefully stop a process group.
// It sends SIGTERM, waits up to grace for the process to exit, and if it doesn't,
// escalates to ForceKill with the same grace.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	signalGroup(cmd, sigTerm)

	select {
	case err := <-waitCh:
		recordWait("", err)
		return nil
	case <-time.After(grace):
	}

	return ForceKill(cmd, waitCh, grace)
}

func awaitExit(waitCh <-chan error, grace time.Duration, prefix string) error {
	select {
	case err := <-waitCh:
		recordWait(prefix, err)
		return nil
	case <-time.After(grace):
		recordWait(prefix, ErrKillFailed)
		return ErrKillFailed
	}
}
