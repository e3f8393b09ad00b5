// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"crypto"
	"fmt"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
)

// Signer signs and encrypts token payloads. Implemented by jwt.Generator.
type Signer interface {
	Sign(payload jwt.Payload, alg string) (string, error)
	Encrypt(jws, alg, enc string, recipient crypto.PublicKey) (string, error)
}

// Helper applies a client's cryptographic policy to token payloads.
type Helper struct {
	signer Signer
}

// NewHelper creates a Helper using the given signer.
func NewHelper(signer Signer) *Helper {
	return &Helper{signer: signer}
}

// GenerateIDToken signs the payload with the client's effective ID-token
// algorithm and nests it in a JWE when the client registered encryption.
func (h *Helper) GenerateIDToken(client *Client, payload jwt.Payload) (string, error) {
	signed, err := h.signer.Sign(payload, client.SigningAlg(IDTokenClass))
	if err != nil {
		return "", err
	}

	alg, enc, ok := client.EncryptionAlgs(IDTokenClass)
	if !ok {
		return signed, nil
	}
	if client.EncryptionKey == nil {
		return "", fmt.Errorf("client %s registered %s encryption but has no encryption key", client.ClientID, alg)
	}
	return h.signer.Encrypt(signed, alg, enc, client.EncryptionKey)
}
