// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procexec runs external executables with a hard timeout.
//
// Standard output and standard error share a single pipe that is drained by a
// dedicated goroutine for the whole lifetime of the child, so a tool that writes
// verbose progress output can never block on a full pipe buffer. The last lines of
// that output are kept in a LineRing for diagnostics.
//
// When the timeout elapses the child's process group is killed, the runner waits a
// short grace period for the exit to be observed and reports ErrTimedOut. The exit
// code of a timed-out process is never reported.
package procexec
