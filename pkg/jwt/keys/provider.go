// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keys provides the signing keys used for ID tokens and their
// publication as a JWK set.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// ErrNoSigningKey is returned when no signing key is available.
var ErrNoSigningKey = errors.New("no signing key available")

// SigningKey is an RSA signing key with its stable key ID.
type SigningKey struct {
	// KeyID identifies the key in JWS headers and the JWK set.
	KeyID string

	// Key is the private key.
	Key *rsa.PrivateKey
}

// Provider supplies the current signing key and the public JWK set.
type Provider interface {
	// SigningKey returns the key used to sign new tokens.
	SigningKey() (*SigningKey, error)

	// PublicJWKS returns the public keys as a JWK set for the JWKS endpoint.
	PublicJWKS() (jwk.Set, error)
}

// StaticProvider holds a fixed signing key.
type StaticProvider struct {
	key *SigningKey
}

// NewGeneratedProvider creates a provider with a fresh ephemeral RSA key.
// Suitable for development; restarts invalidate previously issued tokens.
func NewGeneratedProvider() (*StaticProvider, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return newStaticProvider(priv)
}

// NewFileProvider loads an RSA private key from a PEM file (PKCS1 or PKCS8).
func NewFileProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	var priv *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 key: %w", err)
		}
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS8 key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key in %s is not an RSA key", path)
		}
		priv = rsaKey
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}

	return newStaticProvider(priv)
}

// NewStaticProvider wraps an existing private key, mainly for tests.
func NewStaticProvider(priv *rsa.PrivateKey) (*StaticProvider, error) {
	return newStaticProvider(priv)
}

func newStaticProvider(priv *rsa.PrivateKey) (*StaticProvider, error) {
	kid, err := keyID(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{key: &SigningKey{KeyID: kid, Key: priv}}, nil
}

// SigningKey implements Provider.
func (p *StaticProvider) SigningKey() (*SigningKey, error) {
	if p.key == nil {
		return nil, ErrNoSigningKey
	}
	return p.key, nil
}

// PublicJWKS implements Provider.
func (p *StaticProvider) PublicJWKS() (jwk.Set, error) {
	if p.key == nil {
		return nil, ErrNoSigningKey
	}

	pub, err := jwk.Import(&p.key.Key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build JWK: %w", err)
	}
	if err := pub.Set(jwk.KeyIDKey, p.key.KeyID); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return set, nil
}

// keyID derives a stable key ID from the SHA-256 of the public key.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:8]), nil
}
