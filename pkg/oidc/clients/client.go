// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clients holds the registered OAuth client model and the per-client
// cryptographic policy: which algorithms sign and encrypt each token class.
package clients

import (
	"crypto"
)

// DefaultSigningAlg is the signing algorithm applied when a client registered
// no explicit preference.
const DefaultSigningAlg = "RS256"

// DefaultEncryptionEnc is the content encryption applied when a client
// registered a key-management algorithm but no content-encryption algorithm.
const DefaultEncryptionEnc = "A128CBC-HS256"

// Client is a registered OAuth2/OIDC client. It is read-only during a flow.
type Client struct {
	// ClientID is the unique client identifier.
	ClientID string `json:"client_id"`

	// ClientName is the human-readable name shown on consent screens.
	ClientName string `json:"client_name,omitempty"`

	// RedirectURIs are the registered redirect endpoints.
	RedirectURIs []string `json:"redirect_uris,omitempty"`

	// AllowedScopes are the scopes this client may request.
	AllowedScopes []string `json:"allowed_scopes,omitempty"`

	// RequirePKCE forces code_challenge handling on authorization codes.
	RequirePKCE bool `json:"require_pkce,omitempty"`

	// IDTokenSignedResponseAlg is the JWS algorithm for ID tokens.
	// Empty means the server default.
	IDTokenSignedResponseAlg string `json:"id_token_signed_response_alg,omitempty"`

	// IDTokenEncryptedResponseAlg is the JWE key-management algorithm for ID
	// tokens. Empty means ID tokens are not encrypted for this client.
	IDTokenEncryptedResponseAlg string `json:"id_token_encrypted_response_alg,omitempty"`

	// IDTokenEncryptedResponseEnc is the JWE content-encryption algorithm.
	IDTokenEncryptedResponseEnc string `json:"id_token_encrypted_response_enc,omitempty"`

	// UserInfoSignedResponseAlg is the JWS algorithm for user-info responses.
	// Empty means the server default.
	UserInfoSignedResponseAlg string `json:"userinfo_signed_response_alg,omitempty"`

	// EncryptionKey is the client's public key for JWE nesting. Required when
	// an encrypted-response algorithm is registered. Not serialized; key
	// material is provisioned out of band.
	EncryptionKey crypto.PublicKey `json:"-"`
}

// TokenClass identifies which token a cryptographic preference applies to.
type TokenClass int

// Token classes with per-client algorithm preferences.
const (
	IDTokenClass TokenClass = iota
	UserInfoClass
)

// SigningAlg resolves the effective signing algorithm for the token class,
// falling back to the server default.
func (c *Client) SigningAlg(class TokenClass) string {
	var alg string
	switch class {
	case IDTokenClass:
		alg = c.IDTokenSignedResponseAlg
	case UserInfoClass:
		alg = c.UserInfoSignedResponseAlg
	}
	if alg == "" {
		return DefaultSigningAlg
	}
	return alg
}

// EncryptionAlgs resolves the JWE algorithms for the token class. The second
// return value is false when the token class is not encrypted for this client.
func (c *Client) EncryptionAlgs(class TokenClass) (alg, enc string, ok bool) {
	if class != IDTokenClass || c.IDTokenEncryptedResponseAlg == "" {
		return "", "", false
	}
	enc = c.IDTokenEncryptedResponseEnc
	if enc == "" {
		enc = DefaultEncryptionEnc
	}
	return c.IDTokenEncryptedResponseAlg, enc, true
}
