// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package jwt builds, signs and parses the JWS/JWE payloads used by the
// authorization core: ID tokens, user-info payloads and UMA claim tokens.
package jwt

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/simpleidserver/simpleidserver/pkg/jwt/keys"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
)

// Payload is a JWS claim set. Payloads built by the generator contain no
// time-varying claims (exp, iat); those are stamped at signing time so that
// identical requests produce identical payloads for granted-token reuse.
type Payload map[string]any

// Principal is the authenticated resource owner of the current request.
type Principal struct {
	// Subject is the resource owner identifier (the "sub" claim).
	Subject string

	// Claims holds the resource owner's attributes by claim name.
	Claims map[string]any
}

// scopeClaims maps each standard scope to the claims it releases.
var scopeClaims = map[string][]string{
	"profile": {
		"name", "family_name", "given_name", "middle_name", "nickname",
		"preferred_username", "profile", "picture", "website", "gender",
		"birthdate", "zoneinfo", "locale", "updated_at",
	},
	"email":   {"email", "email_verified"},
	"address": {"address"},
	"phone":   {"phone_number", "phone_number_verified"},
}

// Generator builds and signs token payloads.
type Generator struct {
	issuer   string
	validity time.Duration
	keys     keys.Provider
}

// NewGenerator creates a Generator signing with keys from the provider.
// validity is the lifetime stamped into signed tokens.
func NewGenerator(issuer string, validity time.Duration, provider keys.Provider) *Generator {
	return &Generator{issuer: issuer, validity: validity, keys: provider}
}

// GenerateIDTokenPayloadForScopes derives the default ID-token payload from
// the granted scopes.
func (g *Generator) GenerateIDTokenPayloadForScopes(principal *Principal, p *param.AuthorizationParameter) Payload {
	payload := g.basePayload(principal, p)
	g.addScopeClaims(payload, principal, p.Scope)
	return payload
}

// GenerateFilteredIDTokenPayload builds an ID-token payload containing exactly
// the explicitly requested claims.
func (g *Generator) GenerateFilteredIDTokenPayload(
	principal *Principal, p *param.AuthorizationParameter, requested []param.ClaimParameter,
) Payload {
	payload := g.basePayload(principal, p)
	g.addFilteredClaims(payload, principal, requested)
	return payload
}

// GenerateUserInfoPayloadForScopes derives the default user-info payload from
// the granted scopes.
func (g *Generator) GenerateUserInfoPayloadForScopes(principal *Principal, p *param.AuthorizationParameter) Payload {
	payload := Payload{"sub": principal.Subject}
	g.addScopeClaims(payload, principal, p.Scope)
	return payload
}

// GenerateFilteredUserInfoPayload builds a user-info payload containing
// exactly the explicitly requested claims.
func (g *Generator) GenerateFilteredUserInfoPayload(
	requested []param.ClaimParameter, principal *Principal, _ *param.AuthorizationParameter,
) Payload {
	payload := Payload{"sub": principal.Subject}
	g.addFilteredClaims(payload, principal, requested)
	return payload
}

// FillInOtherClaims backfills the at_hash and c_hash ID-token claims from the
// issued access token and authorization code. Empty values are skipped, so
// callers pass "" when an artifact was not issued.
func (g *Generator) FillInOtherClaims(payload Payload, authorizationCode, accessToken, alg string) {
	if accessToken != "" {
		payload["at_hash"] = leftHalfHash(accessToken, alg)
	}
	if authorizationCode != "" {
		payload["c_hash"] = leftHalfHash(authorizationCode, alg)
	}
}

// Sign serializes the payload as a compact JWS with the given algorithm,
// stamping exp and iat from the configured validity period.
func (g *Generator) Sign(payload Payload, alg string) (string, error) {
	key, err := g.keys.SigningKey()
	if err != nil {
		return "", err
	}

	claims := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		claims[k] = v
	}
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(g.validity).Unix()

	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	opts := (&jose.SignerOptions{}).WithType("JWT")
	opts = opts.WithHeader(jose.HeaderKey("kid"), key.KeyID)
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(alg),
		Key:       key.Key,
	}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	obj, err := signer.Sign(data)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return obj.CompactSerialize()
}

// Encrypt nests a compact JWS inside a JWE using the recipient's public key.
func (g *Generator) Encrypt(jws, alg, enc string, recipient crypto.PublicKey) (string, error) {
	encrypter, err := jose.NewEncrypter(
		jose.ContentEncryption(enc),
		jose.Recipient{Algorithm: jose.KeyAlgorithm(alg), Key: recipient},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypter: %w", err)
	}

	obj, err := encrypter.Encrypt([]byte(jws))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return obj.CompactSerialize()
}

// basePayload builds the claims common to every ID token.
func (g *Generator) basePayload(principal *Principal, p *param.AuthorizationParameter) Payload {
	payload := Payload{
		"iss": g.issuer,
		"sub": principal.Subject,
		"aud": []string{p.ClientID},
		"azp": p.ClientID,
	}
	if p.Nonce != "" {
		payload["nonce"] = p.Nonce
	}
	return payload
}

// addScopeClaims copies the principal claims released by the granted scopes.
func (*Generator) addScopeClaims(payload Payload, principal *Principal, scope string) {
	for _, s := range param.ParseScopes(scope) {
		for _, name := range scopeClaims[s] {
			if v, ok := principal.Claims[name]; ok {
				payload[name] = v
			}
		}
	}
}

// addFilteredClaims copies exactly the requested claims that the principal has.
func (*Generator) addFilteredClaims(payload Payload, principal *Principal, requested []param.ClaimParameter) {
	for _, c := range requested {
		if v, ok := principal.Claims[c.Name]; ok {
			payload[c.Name] = v
		}
	}
}

// leftHalfHash computes the OIDC token hash: the left half of the hash
// matching the signing algorithm's bit size, base64url-encoded without padding.
func leftHalfHash(value, alg string) string {
	var sum []byte
	switch alg {
	case "RS384", "ES384", "PS384":
		h := sha512.Sum384([]byte(value))
		sum = h[:]
	case "RS512", "ES512", "PS512":
		h := sha512.Sum512([]byte(value))
		sum = h[:]
	default:
		h := sha256.Sum256([]byte(value))
		sum = h[:]
	}
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
