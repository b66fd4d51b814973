// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"

	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
)

const (
	sigTerm = syscall.SIGTERM
	sigKill = syscall.SIGKILL
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends a signal to the process group of the command.
// If the command or process is nil, or if the process has already exited, it returns nil.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	// Setpgid=true makes the child a group leader with PGID = PID.
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// Negative PGID signals the whole group
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	name := "SIGTERM"
	if sig == syscall.SIGKILL {
		name = "SIGKILL"
	}

	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		log.L().Warn().Err(err).Int(log.FieldPID, cmd.Process.Pid).Str("signal", name).
			Msg("process group signal failed, falling back to leader only")
		if sig == syscall.SIGKILL {
			_ = cmd.Process.Kill()
		} else {
			_ = cmd.Process.Signal(sig)
		}
		return
	}
	metrics.IncProcTerminate(name, "sent")
	log.L().Debug().Int(log.FieldPID, cmd.Process.Pid).Str("signal", name).Msg("signalled process group")
}

func recordWait(prefix string, err error) {
	result := "exit0"
	switch {
	case errors.Is(err, ErrKillFailed):
		result = "kill_failed"
	case err != nil:
		result = "exit_nonzero"
	}
	if prefix != "" {
		result = prefix + "_" + result
	}
	metrics.IncProcWait(result)
}
