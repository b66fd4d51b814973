// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth implements shared-secret admission for inbound triggers.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderTriggerToken carries the shared trigger secret.
const HeaderTriggerToken = "X-Trigger-Token"

// ExtractToken retrieves the trigger token from the request.
// The dedicated header wins over an Authorization bearer token.
func ExtractToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(HeaderTriggerToken)); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expectedToken.
func AuthorizeRequest(r *http.Request, expectedToken string) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r), expectedToken)
}
