// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authorize turns a validated authorization request into the redirect
// instruction carrying the authorization code, access token and ID token the
// response_type combination asks for.
package authorize

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/simpleidserver/simpleidserver/pkg/errors"
	"github.com/simpleidserver/simpleidserver/pkg/events"
	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/consent"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/token"
)

// ScopeStore resolves the scopes this server recognizes.
// GetByName returns nil when the scope is unknown.
type ScopeStore interface {
	GetByName(ctx context.Context, name string) (*Scope, error)
}

// CodeStore persists newly minted authorization codes.
type CodeStore interface {
	Add(ctx context.Context, code *AuthorizationCode) error
}

// TokenStore persists newly minted granted tokens.
type TokenStore interface {
	Insert(ctx context.Context, granted *token.GrantedToken) error
}

// TokenHelper looks up reusable granted tokens.
type TokenHelper interface {
	GetValidGrantedToken(ctx context.Context, scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload) (*token.GrantedToken, error)
}

// TokenGenerator mints granted tokens.
type TokenGenerator interface {
	Generate(clientID, scope string, userInfoPayload, idTokenPayload jwt.Payload) (*token.GrantedToken, error)
}

// ConsentMatcher resolves the confirmed consent covering a request.
type ConsentMatcher interface {
	GetConfirmedConsent(ctx context.Context, subject string, p *param.AuthorizationParameter) (*consent.Consent, error)
}

// PayloadGenerator builds and backfills JWS payloads. Implemented by jwt.Generator.
type PayloadGenerator interface {
	GenerateIDTokenPayloadForScopes(principal *jwt.Principal, p *param.AuthorizationParameter) jwt.Payload
	GenerateFilteredIDTokenPayload(principal *jwt.Principal, p *param.AuthorizationParameter, requested []param.ClaimParameter) jwt.Payload
	GenerateUserInfoPayloadForScopes(principal *jwt.Principal, p *param.AuthorizationParameter) jwt.Payload
	GenerateFilteredUserInfoPayload(requested []param.ClaimParameter, principal *jwt.Principal, p *param.AuthorizationParameter) jwt.Payload
	FillInOtherClaims(payload jwt.Payload, authorizationCode, accessToken, alg string)
}

// IDTokenSigner applies the client's cryptographic policy to an ID-token
// payload. Implemented by clients.Helper.
type IDTokenSigner interface {
	GenerateIDToken(client *clients.Client, payload jwt.Payload) (string, error)
}

// Generator drives the authorization response pipeline.
type Generator struct {
	codes          CodeStore
	tokens         TokenStore
	scopes         ScopeStore
	tokenHelper    TokenHelper
	tokenGenerator TokenGenerator
	consents       ConsentMatcher
	payloads       PayloadGenerator
	idTokens       IDTokenSigner
	events         events.Source
}

// NewGenerator wires the pipeline's collaborators. A nil event source
// disables telemetry; all other collaborators are required.
func NewGenerator(
	codes CodeStore,
	tokens TokenStore,
	scopes ScopeStore,
	tokenHelper TokenHelper,
	tokenGenerator TokenGenerator,
	consents ConsentMatcher,
	payloads PayloadGenerator,
	idTokens IDTokenSigner,
	src events.Source,
) *Generator {
	return &Generator{
		codes:          codes,
		tokens:         tokens,
		scopes:         scopes,
		tokenHelper:    tokenHelper,
		tokenGenerator: tokenGenerator,
		consents:       consents,
		payloads:       payloads,
		idTokens:       idTokens,
		events:         events.NewSafe(src),
	}
}

// Execute generates the authorization response for the request and records it
// on actionResult.RedirectInstruction.
//
// Exactly one persistence write happens per newly minted artifact and none on
// pure reuse. Persistence failures propagate to the caller; telemetry
// failures never do.
func (g *Generator) Execute(
	ctx context.Context,
	actionResult *ActionResult,
	p *param.AuthorizationParameter,
	principal *jwt.Principal,
	client *clients.Client,
) error {
	if actionResult == nil || actionResult.RedirectInstruction == nil {
		return errors.NewInvalidArgument("actionResult")
	}
	if p == nil {
		return errors.NewInvalidArgument("authorizationParameter")
	}
	if principal == nil {
		return errors.NewInvalidArgument("principal")
	}
	if client == nil {
		return errors.NewInvalidArgument("client")
	}

	g.events.StartAuthorizationResponse(p.ClientID, p.ResponseType)

	responses := param.ParseResponseTypes(p.ResponseType)
	idTokenPayload := g.generateIDTokenPayload(principal, p)
	userInfoPayload := g.generateUserInfoPayload(principal, p)

	var (
		grantedToken    *token.GrantedToken
		newTokenGranted bool
		allowedScopes   string
	)
	if slices.Contains(responses, param.ResponseTypeToken) {
		var err error
		allowedScopes, err = g.allowedScopes(ctx, p.Scope)
		if err != nil {
			return err
		}

		// An access token is assumed unique for a given client, scope set and
		// identity payload pair, so an existing valid one is reused as-is.
		grantedToken, err = g.tokenHelper.GetValidGrantedToken(ctx, allowedScopes, p.ClientID, idTokenPayload, userInfoPayload)
		if err != nil {
			return err
		}
		if grantedToken == nil {
			grantedToken, err = g.tokenGenerator.Generate(p.ClientID, allowedScopes, userInfoPayload, idTokenPayload)
			if err != nil {
				return err
			}
			newTokenGranted = true
		}

		actionResult.RedirectInstruction.AddParameter(AccessTokenName, grantedToken.AccessToken)
	}

	var (
		authorizationCode *AuthorizationCode
		newCodeGranted    bool
	)
	if slices.Contains(responses, param.ResponseTypeCode) {
		assignedConsent, err := g.consents.GetConfirmedConsent(ctx, principal.Subject, p)
		if err != nil {
			return err
		}
		// No consent means no code. This is silent: the upstream controller is
		// expected to have sent the resource owner through the consent screen.
		if assignedConsent != nil {
			authorizationCode = &AuthorizationCode{
				Code:            uuid.NewString(),
				ClientID:        p.ClientID,
				RedirectURI:     p.RedirectURL,
				Scopes:          p.Scope,
				CreateDateTime:  time.Now().UTC(),
				IDTokenPayload:  idTokenPayload,
				UserInfoPayload: userInfoPayload,
			}
			if client.RequirePKCE {
				authorizationCode.CodeChallenge = p.CodeChallenge
				authorizationCode.CodeChallengeMethod = p.CodeChallengeMethod
			}

			newCodeGranted = true
			actionResult.RedirectInstruction.AddParameter(AuthorizationCodeName, authorizationCode.Code)
		}
	}

	code, accessToken := "", ""
	if authorizationCode != nil {
		code = authorizationCode.Code
	}
	if grantedToken != nil {
		accessToken = grantedToken.AccessToken
	}
	// The hash claims are stamped onto a copy used only for signing. The stored
	// token and code keep the identity-only payload, so a later identical
	// request computes the same reuse key.
	signingPayload := maps.Clone(idTokenPayload)
	g.payloads.FillInOtherClaims(signingPayload, code, accessToken, client.SigningAlg(clients.IDTokenClass))

	if newTokenGranted {
		if err := g.tokens.Insert(ctx, grantedToken); err != nil {
			return err
		}
		g.events.AccessGranted(p.ClientID, allowedScopes)
	}

	if newCodeGranted {
		if err := g.codes.Add(ctx, authorizationCode); err != nil {
			return err
		}
		g.events.AuthorizationCodeGranted(p.ClientID, p.Scope)
	}

	if slices.Contains(responses, param.ResponseTypeIDToken) {
		idToken, err := g.idTokens.GenerateIDToken(client, signingPayload)
		if err != nil {
			return err
		}
		actionResult.RedirectInstruction.AddParameter(IDTokenName, idToken)
	}

	if p.State != "" {
		actionResult.RedirectInstruction.AddParameter(StateName, p.State)
	}

	if p.ResponseMode == param.ResponseModeFormPost {
		actionResult.Type = RedirectToAction
		actionResult.RedirectInstruction.Action = FormAction
		actionResult.RedirectInstruction.AddParameter(RedirectURIName, p.RedirectURL)
	}

	if actionResult.Type == RedirectToCallbackURL {
		responseMode := p.ResponseMode
		if responseMode == param.ResponseModeNone {
			flow := param.GetAuthorizationFlow(responses)
			responseMode = param.DefaultResponseMode(flow)
		}
		actionResult.RedirectInstruction.ResponseMode = responseMode
	}

	g.events.EndAuthorizationResponse(p.ClientID, actionResult.RedirectInstruction.Parameters)
	return nil
}

// allowedScopes joins the requested scopes the scope store recognizes,
// preserving request order.
func (g *Generator) allowedScopes(ctx context.Context, scope string) (string, error) {
	var allowed []string
	for _, name := range param.ParseScopes(scope) {
		s, err := g.scopes.GetByName(ctx, name)
		if err != nil {
			return "", err
		}
		if s != nil {
			allowed = append(allowed, name)
		}
	}
	return param.JoinScopes(allowed), nil
}

// generateIDTokenPayload returns the claim-filtered payload when the request
// names ID-token claims, otherwise the scope-derived default.
func (g *Generator) generateIDTokenPayload(principal *jwt.Principal, p *param.AuthorizationParameter) jwt.Payload {
	if p.Claims.HasIDTokenClaims() {
		return g.payloads.GenerateFilteredIDTokenPayload(principal, p, slices.Clone(p.Claims.IDToken))
	}
	return g.payloads.GenerateIDTokenPayloadForScopes(principal, p)
}

// generateUserInfoPayload mirrors generateIDTokenPayload for the user-info
// token class.
func (g *Generator) generateUserInfoPayload(principal *jwt.Principal, p *param.AuthorizationParameter) jwt.Payload {
	if p.Claims.HasUserInfoClaims() {
		return g.payloads.GenerateFilteredUserInfoPayload(slices.Clone(p.Claims.UserInfo), principal, p)
	}
	return g.payloads.GenerateUserInfoPayloadForScopes(principal, p)
}
