// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/ManuGH/vidlens/internal/procgroup"
	"github.com/rs/zerolog"
)

var (
	// ErrTimedOut is returned when the process outlived its timeout and was killed.
	ErrTimedOut = errors.New("process timed out")
	// ErrLaunchFailed is returned when the executable could not be started
	// (not found, not executable, pipe setup failure).
	ErrLaunchFailed = errors.New("process launch failed")
)

const (
	defaultKillGrace    = 5 * time.Second
	defaultDrainTimeout = 5 * time.Second
	defaultProbeTimeout = 10 * time.Second
	defaultTailLines    = 200
	maxLineBytes        = 1 << 20
)

// Result describes a process that ran to its natural exit.
type Result struct {
	ExitCode int
	Elapsed  time.Duration
	// Output holds the tail of the merged stdout/stderr stream.
	Output []string
}

// Runner executes external processes. The zero value is usable; NewRunner wires a logger.
type Runner struct {
	// KillGrace bounds how long the runner waits for a killed process to be reaped.
	KillGrace time.Duration
	// DrainTimeout bounds how long the runner waits for the output reader after exit.
	DrainTimeout time.Duration
	// ProbeTimeout bounds Available.
	ProbeTimeout time.Duration
	// ProbeArgs are passed to the executable by Available. Defaults to "-version".
	ProbeArgs []string
	// TailLines is the number of output lines kept in Result.Output.
	TailLines int

	Logger zerolog.Logger
}

// NewRunner returns a Runner with default bounds.
func NewRunner() *Runner {
	return &Runner{
		KillGrace:    defaultKillGrace,
		DrainTimeout: defaultDrainTimeout,
		ProbeTimeout: defaultProbeTimeout,
		ProbeArgs:    []string{"-version"},
		TailLines:    defaultTailLines,
		Logger:       log.WithComponent("procexec"),
	}
}

// Run starts name with args and blocks until it exits, the timeout elapses or ctx is done.
//
// A natural exit returns a Result with the exit code and a nil error, whatever the code.
// A timeout returns an error wrapping ErrTimedOut; cancellation returns ctx.Err() wrapped.
// A zero or negative timeout disables the timer.
func (r *Runner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	logger := log.WithContext(ctx, r.Logger).With().Str(log.FieldBinary, name).Logger()
	ring := NewLineRing(r.tailLines())

	pr, pw, err := os.Pipe()
	if err != nil {
		metrics.IncProcessRun("launch_failed")
		return Result{}, fmt.Errorf("%w: output pipe: %v", ErrLaunchFailed, err)
	}
	defer pr.Close()

	// #nosec G204 -- executable and arguments come from operator configuration and planner output
	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	procgroup.Set(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		metrics.IncProcessRun("launch_failed")
		return Result{}, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, name, err)
	}
	// The child holds its own copy of the write end; EOF arrives once it (and its children) exit.
	_ = pw.Close()

	logger.Debug().Int(log.FieldPID, cmd.Process.Pid).Strs("args", args).Msg("process started")

	drained := make(chan struct{})
	go drain(pr, ring, logger, drained)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case waitErr := <-waitCh:
		r.join(pr, drained, logger)
		res := Result{ExitCode: exitCode(waitErr), Elapsed: time.Since(start), Output: ring.LastN(r.tailLines())}
		if res.ExitCode < 0 && waitErr != nil {
			logger.Warn().Err(waitErr).Msg("process ended without an exit status")
		}
		metrics.IncProcessRun("exited")
		logger.Debug().Int(log.FieldExitCode, res.ExitCode).Dur("elapsed", res.Elapsed).Msg("process exited")
		return res, nil

	case <-timer:
		logger.Error().Dur("timeout", timeout).Int(log.FieldPID, cmd.Process.Pid).Msg("process timed out, killing process group")
		if err := procgroup.ForceKill(cmd, waitCh, r.killGrace()); err != nil {
			logger.Error().Err(err).Msg("process did not exit after kill")
		}
		r.join(pr, drained, logger)
		metrics.IncProcessRun("timed_out")
		return Result{ExitCode: -1, Elapsed: time.Since(start), Output: ring.LastN(r.tailLines())},
			fmt.Errorf("%w after %s", ErrTimedOut, timeout)

	case <-ctx.Done():
		logger.Warn().Int(log.FieldPID, cmd.Process.Pid).Msg("context done, terminating process group")
		if err := procgroup.Terminate(cmd, waitCh, r.killGrace()); err != nil {
			logger.Error().Err(err).Msg("process did not exit after terminate")
		}
		r.join(pr, drained, logger)
		metrics.IncProcessRun("cancelled")
		return Result{ExitCode: -1, Elapsed: time.Since(start), Output: ring.LastN(r.tailLines())},
			fmt.Errorf("process cancelled: %w", ctx.Err())
	}
}

// Available reports whether name can be launched and exits 0 for the probe arguments.
func (r *Runner) Available(ctx context.Context, name string) bool {
	probeArgs := r.ProbeArgs
	if len(probeArgs) == 0 {
		probeArgs = []string{"-version"}
	}
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	res, err := r.Run(ctx, name, probeArgs, timeout)
	if err != nil {
		r.Logger.Warn().Err(err).Str(log.FieldBinary, name).Msg("availability probe failed")
		return false
	}
	if res.ExitCode != 0 {
		r.Logger.Warn().Int(log.FieldExitCode, res.ExitCode).Str(log.FieldBinary, name).Msg("availability probe exited non-zero")
		return false
	}
	return true
}

// join waits for the output reader. If it does not finish within DrainTimeout
// (a detached grandchild may still hold the pipe) the read end is closed to release it.
func (r *Runner) join(pr *os.File, drained <-chan struct{}, logger zerolog.Logger) {
	bound := r.DrainTimeout
	if bound <= 0 {
		bound = defaultDrainTimeout
	}
	select {
	case <-drained:
		return
	case <-time.After(bound):
	}
	logger.Warn().Dur("bound", bound).Msg("output reader still busy after exit, discarding remaining output")
	_ = pr.Close()
	<-drained
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace <= 0 {
		return defaultKillGrace
	}
	return r.KillGrace
}

func (r *Runner) tailLines() int {
	if r.TailLines <= 0 {
		return defaultTailLines
	}
	return r.TailLines
}

func drain(rd io.Reader, ring *LineRing, logger zerolog.Logger, done chan<- struct{}) {
	defer close(done)

	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanOutputLines)
	for sc.Scan() {
		line := sc.Text()
		ring.Add(line)
		logger.Debug().Str("line", line).Msg("process output")
	}
	if err := sc.Err(); err != nil {
		// Keep the pipe flowing even when a single line is unreasonably long.
		logger.Debug().Err(err).Msg("output scanner stopped, discarding rest of stream")
		_, _ = io.Copy(io.Discard, rd)
	}
}

// scanOutputLines is a bufio.SplitFunc that treats both '\n' and '\r' as line ends,
// so carriage-return progress updates become individual lines. Empty lines are dropped.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\n' || data[start] == '\r') {
		start++
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		if start == len(data) {
			return len(data), nil, nil
		}
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
