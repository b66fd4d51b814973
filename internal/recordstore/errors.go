// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteAPI is wrapped by every APIError.
	ErrRemoteAPI = errors.New("record store rejected the request")
	// ErrTransport covers connection failures, unexpected HTTP statuses and undecodable bodies.
	ErrTransport = errors.New("record store transport error")
)

// Token error codes returned when a bearer token is expired or unknown.
const (
	codeTokenInvalid = 99991663
	codeTokenExpired = 99991668
)

// APIError is a non-zero status code in a record store response body.
type APIError struct {
	Code       int
	Msg        string
	HTTPStatus int
	Op         string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("record store %s failed: code=%d msg=%q (http %d)", e.Op, e.Code, e.Msg, e.HTTPStatus)
}

func (e *APIError) Unwrap() error { return ErrRemoteAPI }

// TokenRejected reports whether the error means the bearer token must be reissued.
func (e *APIError) TokenRejected() bool {
	return e.Code == codeTokenInvalid || e.Code == codeTokenExpired
}
