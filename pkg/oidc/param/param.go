// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package param holds the immutable inputs of a single authorization flow and
// the parsing of the space-delimited request parameters into closed enum sets.
package param

// ResponseType is one token of the response_type request parameter.
type ResponseType string

// Response types from OAuth2 and OIDC.
const (
	ResponseTypeCode    ResponseType = "code"
	ResponseTypeToken   ResponseType = "token"
	ResponseTypeIDToken ResponseType = "id_token"
)

// Prompt is one token of the prompt request parameter.
type Prompt string

// Prompt values from OIDC core.
const (
	PromptNone          Prompt = "none"
	PromptLogin         Prompt = "login"
	PromptConsent       Prompt = "consent"
	PromptSelectAccount Prompt = "select_account"
)

// ResponseMode selects how response parameters are delivered to the client.
type ResponseMode string

// Response modes from the OAuth2 multiple response types spec.
const (
	ResponseModeNone     ResponseMode = ""
	ResponseModeQuery    ResponseMode = "query"
	ResponseModeFragment ResponseMode = "fragment"
	ResponseModeFormPost ResponseMode = "form_post"
)

// ClaimParameter is one entry of an OIDC claims request.
type ClaimParameter struct {
	// Name is the claim name, e.g. "email".
	Name string

	// Essential marks the claim as essential per OIDC core section 5.5.
	Essential bool

	// Value is the specific value requested, if any.
	Value string

	// Values are the acceptable values requested, if any.
	Values []string
}

// ClaimsParameter is the structured claims request of an authorization request.
type ClaimsParameter struct {
	// IDToken lists the claims requested for the ID token.
	IDToken []ClaimParameter

	// UserInfo lists the claims requested for the user-info payload.
	UserInfo []ClaimParameter
}

// HasIDTokenClaims reports whether any ID-token claim was explicitly requested.
func (c *ClaimsParameter) HasIDTokenClaims() bool {
	return c != nil && len(c.IDToken) > 0
}

// HasUserInfoClaims reports whether any user-info claim was explicitly requested.
func (c *ClaimsParameter) HasUserInfoClaims() bool {
	return c != nil && len(c.UserInfo) > 0
}

// AuthorizationParameter is the validated input of one authorization flow.
// It is treated as read-only by the response generator.
type AuthorizationParameter struct {
	ClientID            string
	Scope               string
	ResponseType        string
	State               string
	RedirectURL         string
	Prompt              string
	ResponseMode        ResponseMode
	Nonce               string
	Claims              *ClaimsParameter
	CodeChallenge       string
	CodeChallengeMethod string
}
