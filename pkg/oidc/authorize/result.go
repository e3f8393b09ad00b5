// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"time"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
)

// Standard authorization response parameter names.
const (
	AccessTokenName       = "access_token"
	AuthorizationCodeName = "code"
	IDTokenName           = "id_token"
	StateName             = "state"
	RedirectURIName       = "redirect_uri"
)

// FormAction is the internal endpoint rendering the auto-submitting form for
// response_mode=form_post.
const FormAction = "form"

// ActionType says how the caller should deliver the response.
type ActionType int

// Action types.
const (
	// RedirectToCallbackURL sends the parameters to the client's redirect URI.
	RedirectToCallbackURL ActionType = iota

	// RedirectToAction sends the user agent to an internal endpoint instead.
	RedirectToAction
)

// RedirectInstruction carries the assembled response parameters.
type RedirectInstruction struct {
	// Parameters are the response parameters to encode.
	Parameters map[string]string

	// ResponseMode says whether parameters go in the query or the fragment.
	ResponseMode param.ResponseMode

	// Action is the internal endpoint for RedirectToAction results.
	Action string
}

// AddParameter records one response parameter.
func (r *RedirectInstruction) AddParameter(name, value string) {
	if r.Parameters == nil {
		r.Parameters = make(map[string]string)
	}
	r.Parameters[name] = value
}

// ActionResult is the mutable outcome of an authorization request.
type ActionResult struct {
	Type                ActionType
	RedirectInstruction *RedirectInstruction
}

// NewActionResult creates an ActionResult ready for parameter collection.
func NewActionResult() *ActionResult {
	return &ActionResult{
		Type:                RedirectToCallbackURL,
		RedirectInstruction: &RedirectInstruction{Parameters: make(map[string]string)},
	}
}

// Scope is a scope definition known to the server.
type Scope struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsOpenID    bool   `json:"is_openid"`
}

// AuthorizationCode is a short-lived single-use credential minted when a
// confirmed consent exists. Single use is enforced by the repository.
type AuthorizationCode struct {
	Code                string      `json:"code"`
	ClientID            string      `json:"client_id"`
	RedirectURI         string      `json:"redirect_uri"`
	Scopes              string      `json:"scopes"`
	CreateDateTime      time.Time   `json:"create_date_time"`
	IDTokenPayload      jwt.Payload `json:"id_token_payload,omitempty"`
	UserInfoPayload     jwt.Payload `json:"user_info_payload,omitempty"`
	CodeChallenge       string      `json:"code_challenge,omitempty"`
	CodeChallengeMethod string      `json:"code_challenge_method,omitempty"`
}
