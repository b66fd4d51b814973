// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"os"
	"os/exec"

	"github.com/ManuGH/vidlens/internal/metrics"
)

type signal int

const (
	sigTerm signal = iota
	sigKill
)

func set(cmd *exec.Cmd) {
	// No process groups; only the root process can be reached.
}

func signalGroup(cmd *exec.Cmd, sig signal) {
	if sig == sigKill {
		_ = cmd.Process.Kill()
		metrics.IncProcTerminate("KILL", "sent")
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
	metrics.IncProcTerminate("INTERRUPT", "sent")
}

func recordWait(prefix string, err error) {
	result := "exit0"
	if err != nil {
		result = "exit_nonzero"
	}
	if prefix != "" {
		result = prefix + "_" + result
	}
	metrics.IncProcWait(result)
}
