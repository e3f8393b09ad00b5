// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the repository implementations behind the
// authorization core: a thread-safe in-memory store for development and
// testing, and a Redis-backed store for deployments that scale horizontally.
//
// The core packages define the narrow interfaces they consume
// (token.Store, consent.Store, authorize.ScopeStore, uma.ResourceSetStore,
// ...); the aggregates here satisfy them per entity.
package storage

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
)

// grantedTokenKey derives the deterministic reuse key of a granted token:
// (scope, clientID, idTokenPayload, userInfoPayload). Payload maps marshal
// with sorted keys, so equal payloads always produce equal keys.
func grantedTokenKey(scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload) (string, error) {
	idData, err := json.Marshal(idTokenPayload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal id token payload: %w", err)
	}
	userData, err := json.Marshal(userInfoPayload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user info payload: %w", err)
	}

	h := sha256.New()
	for _, part := range [][]byte{[]byte(scope), []byte(clientID), idData, userData} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}
