// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
)

// Headers consumed by HeaderAuthenticator.
const (
	SubjectHeader = "X-Authenticated-Subject"
	ClaimsHeader  = "X-Authenticated-Claims"
)

// ErrNotAuthenticated is returned when no resource owner identity is present.
var ErrNotAuthenticated = errors.New("request carries no authenticated subject")

// HeaderAuthenticator trusts identity headers set by an authenticating
// reverse proxy in front of this server. The subject header is required; the
// claims header optionally carries a JSON object of resource-owner claims.
type HeaderAuthenticator struct{}

// Authenticate implements Authenticator.
func (HeaderAuthenticator) Authenticate(r *http.Request) (*jwt.Principal, error) {
	subject := r.Header.Get(SubjectHeader)
	if subject == "" {
		return nil, ErrNotAuthenticated
	}

	principal := &jwt.Principal{Subject: subject, Claims: map[string]any{}}
	if raw := r.Header.Get(ClaimsHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &principal.Claims); err != nil {
			return nil, errors.New("malformed claims header")
		}
	}
	return principal, nil
}
