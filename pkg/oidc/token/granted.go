// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package token mints opaque access/refresh tokens and looks up previously
// issued tokens for reuse.
package token

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	"github.com/simpleidserver/simpleidserver/pkg/errors"
	"github.com/simpleidserver/simpleidserver/pkg/jwt"
)

// GrantedToken is an issued access/refresh token pair. Immutable once issued.
type GrantedToken struct {
	AccessToken    string        `json:"access_token"`
	RefreshToken   string        `json:"refresh_token"`
	ExpiresIn      time.Duration `json:"expires_in"`
	CreateDateTime time.Time     `json:"create_date_time"`
	Scope          string        `json:"scope"`
	ClientID       string        `json:"client_id"`

	// IDTokenPayload and UserInfoPayload are part of the reuse key: a token is
	// only shared between requests that would carry identical identity data.
	IDTokenPayload  jwt.Payload `json:"id_token_payload,omitempty"`
	UserInfoPayload jwt.Payload `json:"user_info_payload,omitempty"`
}

// Valid reports whether the token is still within its lifetime.
func (t *GrantedToken) Valid(now time.Time) bool {
	return now.Before(t.CreateDateTime.Add(t.ExpiresIn))
}

// Store is the granted-token persistence consumed by this package.
// GetToken returns nil when no token matches the reuse key.
type Store interface {
	GetToken(ctx context.Context, scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload) (*GrantedToken, error)
	Insert(ctx context.Context, token *GrantedToken) error
}

// Helper looks up previously granted tokens for de-duplication.
type Helper struct {
	store Store
}

// NewHelper creates a Helper backed by the store.
func NewHelper(store Store) *Helper {
	return &Helper{store: store}
}

// GetValidGrantedToken returns the existing token matching the
// (scope, clientID, idTokenPayload, userInfoPayload) reuse key, or nil when no
// such token exists or the stored one has expired. Expired tokens are treated
// as absent; they are never repaired or deleted here.
func (h *Helper) GetValidGrantedToken(
	ctx context.Context, scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload,
) (*GrantedToken, error) {
	granted, err := h.store.GetToken(ctx, scope, clientID, idTokenPayload, userInfoPayload)
	if err != nil {
		return nil, err
	}
	if granted == nil || !granted.Valid(time.Now()) {
		return nil, nil
	}
	return granted, nil
}

// Generator mints new granted tokens.
type Generator struct {
	cfg config.Service
}

// NewGenerator creates a Generator reading token lifetimes from cfg.
func NewGenerator(cfg config.Service) *Generator {
	return &Generator{cfg: cfg}
}

// Generate mints a new granted token bound to the client and scope set.
// The access and refresh token values are opaque cryptographically random
// strings. The caller persists the token; two concurrent identical requests
// may therefore both mint one (accepted eventual-dedup behavior).
func (g *Generator) Generate(
	clientID, scope string, userInfoPayload, idTokenPayload jwt.Payload,
) (*GrantedToken, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.NewInvalidArgument("clientID")
	}
	if strings.TrimSpace(scope) == "" {
		return nil, errors.NewInvalidArgument("scope")
	}

	return &GrantedToken{
		AccessToken:     rand.Text(),
		RefreshToken:    rand.Text(),
		ExpiresIn:       g.cfg.TokenValidityPeriod(),
		CreateDateTime:  time.Now().UTC(),
		Scope:           scope,
		ClientID:        clientID,
		IDTokenPayload:  idTokenPayload,
		UserInfoPayload: userInfoPayload,
	}, nil
}
