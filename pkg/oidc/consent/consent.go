// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package consent matches a resource owner's prior approvals against the
// scopes or claims a client is requesting.
package consent

import (
	"context"
	"slices"

	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
)

// Consent is a resource owner's approval of a client's access.
// Created by the consent UI flow; read-only here.
type Consent struct {
	ID              string   `json:"id"`
	ClientID        string   `json:"client_id"`
	ResourceOwnerID string   `json:"resource_owner_id"`
	GrantedScopes   []string `json:"granted_scopes"`
	Claims          []string `json:"claims"`
}

// Store is the consent persistence consumed by this package.
type Store interface {
	GetConsentsForUser(ctx context.Context, subject string) ([]*Consent, error)
}

// Matcher decides whether a confirmed consent covers a request.
type Matcher struct {
	store Store
}

// NewMatcher creates a Matcher backed by the store.
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// GetConfirmedConsent returns the first consent of the subject that covers the
// authorization request, or nil when none does.
//
// When the request carries an explicit claim filter, matching is by claim
// containment: the consent must list every requested claim name. Otherwise it
// is by scope containment: the consent's granted scopes must include every
// requested scope. Only consents for the requesting client are candidates, and
// no ordering beyond "first match" is guaranteed.
func (m *Matcher) GetConfirmedConsent(
	ctx context.Context, subject string, p *param.AuthorizationParameter,
) (*Consent, error) {
	consents, err := m.store.GetConsentsForUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(consents) == 0 {
		return nil, nil
	}

	if p.Claims.HasIDTokenClaims() || p.Claims.HasUserInfoClaims() {
		requested := requestedClaimNames(p.Claims)
		for _, c := range consents {
			if c.ClientID == p.ClientID && containsAll(c.Claims, requested) {
				return c, nil
			}
		}
		return nil, nil
	}

	scopes := param.ParseScopes(p.Scope)
	for _, c := range consents {
		if c.ClientID == p.ClientID && containsAll(c.GrantedScopes, scopes) {
			return c, nil
		}
	}
	return nil, nil
}

// requestedClaimNames collects the distinct claim names of both token classes.
func requestedClaimNames(claims *param.ClaimsParameter) []string {
	var names []string
	for _, c := range claims.IDToken {
		if !slices.Contains(names, c.Name) {
			names = append(names, c.Name)
		}
	}
	for _, c := range claims.UserInfo {
		if !slices.Contains(names, c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

// containsAll reports whether granted is a superset of requested.
func containsAll(granted, requested []string) bool {
	for _, r := range requested {
		if !slices.Contains(granted, r) {
			return false
		}
	}
	return true
}
