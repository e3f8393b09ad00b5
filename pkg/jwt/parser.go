// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/simpleidserver/simpleidserver/pkg/jwt/keys"
)

// ErrInvalidToken is returned when a claim token cannot be validated.
var ErrInvalidToken = errors.New("invalid token")

// Parser validates claim tokens signed by this server.
type Parser struct {
	keys keys.Provider
}

// NewParser creates a Parser verifying against the provider's keys.
func NewParser(provider keys.Provider) *Parser {
	return &Parser{keys: provider}
}

// UnSign verifies the compact JWS signature and returns its claim set.
// Invalid, expired or foreign-key tokens yield an error; callers treat that
// as an absent payload.
func (p *Parser) UnSign(token string) (Payload, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, p.keyFunc,
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return Payload(claims), nil
}

// keyFunc resolves the verification key, checking the kid header when present.
func (p *Parser) keyFunc(token *jwt.Token) (any, error) {
	key, err := p.keys.SigningKey()
	if err != nil {
		return nil, err
	}
	if kid, ok := token.Header["kid"].(string); ok && kid != key.KeyID {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return &key.Key.PublicKey, nil
}
