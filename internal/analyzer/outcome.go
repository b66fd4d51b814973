// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrFileMissing is returned when the video or the instruction document cannot be read.
	ErrFileMissing = errors.New("analysis input missing")
	// ErrEmptyResponse is returned when the model answered without any content.
	ErrEmptyResponse = errors.New("model returned empty content")
	// ErrRemote covers transport, authentication and rate-limit failures of the model endpoint.
	ErrRemote = errors.New("model endpoint error")
	// ErrReportWrite is returned when the report could not be persisted next to the video.
	ErrReportWrite = errors.New("report write failed")
)

// RemoteError describes a failure reported by the model provider.
type RemoteError struct {
	HTTPStatus int
	Code       string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("model endpoint error (http %d, code %s): %s", e.HTTPStatus, e.Code, msg)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("model endpoint error (http %d): %s", e.HTTPStatus, msg)
	}
	return "model endpoint error: " + msg
}

// Unwrap exposes ErrRemote and the underlying cause.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// Outcome is Succeeded or Failed.
type Outcome interface {
	isOutcome()
}

type Succeeded struct {
	Report     string
	ReportPath string
}

type Failed struct {
	Err error
}

func (Succeeded) isOutcome() {}
func (Failed) isOutcome()    {}

func (f Failed) Reason() string {
	if f.Err == nil {
		return "unknown analysis failure"
	}
	return f.Err.Error()
}
